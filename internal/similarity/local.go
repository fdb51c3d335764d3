package similarity

import (
	"context"
	"fmt"
	"log/slog"

	"contentflow/internal/logging"
	"contentflow/internal/store"
	"contentflow/internal/textutil"
)

// Candidate is one similarity match: a score and the matching item id.
type Candidate struct {
	Score  float64
	ItemID int64
}

// VectorStore persists item vectors.
type VectorStore interface {
	SaveVector(ctx context.Context, itemID int64, workspaceID string, vector map[string]float64) error
	GetVector(ctx context.Context, itemID int64) (map[string]float64, error)
	WorkspaceVectors(ctx context.Context, workspaceID string) (map[int64]map[string]float64, error)
}

// Options tunes the local backend.
type Options struct {
	MaxKeywords    int
	MinTokenLength int
}

// Local answers vectorize, similarity, and keyword requests in-process.
type Local struct {
	vectors VectorStore
	opts    Options
	logger  *slog.Logger
}

// NewLocal builds a local backend over the given vector store.
func NewLocal(vectors VectorStore, opts Options, logger *slog.Logger) *Local {
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = 5
	}
	if opts.MinTokenLength <= 0 {
		opts.MinTokenLength = textutil.DefaultMinTokenLength
	}
	return &Local{
		vectors: vectors,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "similarity"),
	}
}

// Vectorize computes and stores a term-frequency vector for every item.
func (l *Local) Vectorize(ctx context.Context, items []*store.Item) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		weights := textutil.NewFingerprint(item.Content).Weights()
		if weights == nil {
			weights = map[string]float64{}
		}
		if err := l.vectors.SaveVector(ctx, item.ID, item.WorkspaceID, weights); err != nil {
			return fmt.Errorf("vectorize item %d: %w", item.ID, err)
		}
	}
	l.logger.Debug("vectorized items", logging.Int("count", len(items)))
	return nil
}

// RequestSimilar returns every item in the workspace whose cosine similarity
// with item is at least threshold.
func (l *Local) RequestSimilar(ctx context.Context, item *store.Item, threshold float64) ([]Candidate, error) {
	weights, err := l.vectors.GetVector(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	query := textutil.FingerprintFromWeights(weights)
	if query == nil {
		query = textutil.NewFingerprint(item.Content)
	}
	if query == nil {
		return nil, nil
	}

	all, err := l.vectors.WorkspaceVectors(ctx, item.WorkspaceID)
	if err != nil {
		return nil, err
	}
	var candidates []Candidate
	for id, vector := range all {
		score := textutil.CosineSimilarity(query, textutil.FingerprintFromWeights(vector))
		if score > 0 && score >= threshold {
			candidates = append(candidates, Candidate{Score: score, ItemID: id})
		}
	}
	return candidates, nil
}

// ExtractKeywords ranks the item's terms against document frequencies of the
// workspace's stored vectors.
func (l *Local) ExtractKeywords(ctx context.Context, item *store.Item) ([]store.Keyword, error) {
	all, err := l.vectors.WorkspaceVectors(ctx, item.WorkspaceID)
	if err != nil {
		return nil, err
	}
	corpus := textutil.NewCorpus()
	for _, vector := range all {
		corpus.Add(textutil.FingerprintFromWeights(vector))
	}
	ranked := textutil.RankKeywords(item.Content, corpus.IDF(), l.opts.MaxKeywords, l.opts.MinTokenLength)
	keywords := make([]store.Keyword, 0, len(ranked))
	for _, kw := range ranked {
		keywords = append(keywords, store.Keyword{Term: kw.Term, Score: kw.Score})
	}
	return keywords, nil
}
