// Package similarity implements the local model backend: term-frequency
// vectorization persisted in the content store, brute-force cosine
// similarity search over a workspace, and TF-IDF keyword ranking.
//
// Results of RequestSimilar are unordered and may include the query item
// itself; callers sort and filter.
package similarity
