// Package clustering groups near-duplicate content items.
//
// AddItemToBestCluster places one item: candidates are ranked by similarity
// score, then by the size of the cluster they already belong to, then by id,
// and the item joins the first ranked candidate that is already clustered.
// ProcessClusters revisits clusters by priority and merges a cluster into
// the cluster its exemplar now most resembles, so clusters formed from noisy
// early matches converge over time.
package clustering
