// Package textutil provides text processing utilities for content cleaning,
// fingerprinting, similarity, and keyword ranking.
//
// The primary use cases are:
//   - Normalizing social-media text (NFKC, case folding, link and mention removal)
//   - Creating token-based fingerprints from text for comparison
//   - Computing cosine similarity between fingerprints
//   - Ranking the most distinctive terms of a document as keywords
//
// Fingerprints use term frequency vectors normalized for efficient comparison.
// Tokenization lowercases text, splits on anything that is not a letter or
// digit, and filters tokens shorter than 3 characters by default.
package textutil
