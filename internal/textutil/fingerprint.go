package textutil

import (
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultMinTokenLength is the shortest token kept by Tokenize.
const DefaultMinTokenLength = 3

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return FingerprintFromWeights(counts)
}

// FingerprintFromWeights rebuilds a fingerprint from stored term weights.
// Returns nil when no term has a non-zero weight.
func FingerprintFromWeights(weights map[string]float64) *Fingerprint {
	tokens := make(map[string]float64, len(weights))
	var norm float64
	for token, w := range weights {
		if w == 0 {
			continue
		}
		tokens[token] = w
		norm += w * w
	}
	if len(tokens) == 0 {
		return nil
	}
	return &Fingerprint{tokens: tokens, norm: math.Sqrt(norm)}
}

// Weights returns a copy of the term weights, suitable for persistence.
func (f *Fingerprint) Weights() map[string]float64 {
	if f == nil {
		return nil
	}
	out := make(map[string]float64, len(f.tokens))
	for token, w := range f.tokens {
		out[token] = w
	}
	return out
}

// Tokenize splits text into lowercase tokens, filtering short tokens.
func Tokenize(text string) []string {
	return TokenizeMin(text, DefaultMinTokenLength)
}

// TokenizeMin splits text into lowercase letter/digit runs of at least
// minLength runes.
func TokenizeMin(text string, minLength int) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWordRune(r) })
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if utf8.RuneCountInString(token) < minLength {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// WithIDF returns a new Fingerprint with TF-IDF weights applied.
// Each term's count is multiplied by its IDF weight. The norm is recomputed.
// Terms absent from the IDF map retain their original weight.
func (f *Fingerprint) WithIDF(idf map[string]float64) *Fingerprint {
	if f == nil || len(idf) == 0 {
		return f
	}
	weighted := make(map[string]float64, len(f.tokens))
	for token, count := range f.tokens {
		w := count
		if idfVal, ok := idf[token]; ok {
			w *= idfVal
		}
		weighted[token] = w
	}
	return FingerprintFromWeights(weighted)
}

// Corpus collects document frequency statistics for IDF computation.
type Corpus struct {
	docCount int
	docFreq  map[string]int
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docFreq: make(map[string]int)}
}

// Add registers a fingerprint's unique terms in the corpus.
func (c *Corpus) Add(fp *Fingerprint) {
	if c == nil || fp == nil {
		return
	}
	c.docCount++
	for token := range fp.tokens {
		c.docFreq[token]++
	}
}

// Len returns the number of documents added.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return c.docCount
}

// IDF computes smoothed inverse document frequency weights:
// log((N+1)/(1+df)) + 1 for each term, so terms present in every document
// still carry weight.
func (c *Corpus) IDF() map[string]float64 {
	if c == nil || c.docCount == 0 {
		return nil
	}
	idf := make(map[string]float64, len(c.docFreq))
	n := float64(c.docCount)
	for term, df := range c.docFreq {
		idf[term] = math.Log((n+1)/(1+float64(df))) + 1
	}
	return idf
}
