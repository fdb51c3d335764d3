package textutil

import "sort"

// Keyword is a ranked term extracted from a document.
type Keyword struct {
	Term  string
	Score float64
}

var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "all": {}, "also": {}, "and": {}, "any": {}, "are": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "but": {}, "can": {}, "could": {}, "did": {},
	"does": {}, "doing": {}, "for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "her": {},
	"here": {}, "him": {}, "his": {}, "how": {}, "into": {}, "its": {}, "just": {}, "more": {},
	"most": {}, "not": {}, "now": {}, "off": {}, "once": {}, "only": {}, "other": {}, "our": {},
	"out": {}, "over": {}, "own": {}, "same": {}, "she": {}, "should": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "the": {}, "their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "through": {}, "too": {}, "under": {}, "until": {}, "very": {},
	"was": {}, "were": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

// IsStopWord reports whether term is ignored by keyword ranking.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// RankKeywords returns up to limit terms of text ordered by descending
// tf * idf score, ties broken alphabetically. A nil idf weights every term 1.
func RankKeywords(text string, idf map[string]float64, limit, minLength int) []Keyword {
	if limit <= 0 {
		return nil
	}
	if minLength <= 0 {
		minLength = DefaultMinTokenLength
	}
	counts := make(map[string]float64)
	for _, token := range TokenizeMin(text, minLength) {
		if IsStopWord(token) {
			continue
		}
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}

	keywords := make([]Keyword, 0, len(counts))
	for term, count := range counts {
		weight := 1.0
		if w, ok := idf[term]; ok {
			weight = w
		}
		keywords = append(keywords, Keyword{Term: term, Score: count * weight})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score > keywords[j].Score
		}
		return keywords[i].Term < keywords[j].Term
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}
