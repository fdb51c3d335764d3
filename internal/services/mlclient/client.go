// Package mlclient talks to a remote model service that vectorizes content,
// answers similarity queries, and extracts keywords. Every call goes through
// a circuit breaker so a failing service degrades into transient item errors
// instead of stalling every worker on timeouts.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"contentflow/internal/logging"
	"contentflow/internal/services"
	"contentflow/internal/similarity"
	"contentflow/internal/store"
)

// Options configures the remote client.
type Options struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
	MaxKeywords      int
	HTTPClient       *http.Client
}

// Client is the remote model backend.
type Client struct {
	endpoint    string
	apiKey      string
	maxKeywords int
	http        *http.Client
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// New creates a reusable client.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mlclient", "new", "base url is required", nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = 5
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	log := logging.NewComponentLogger(logger, "mlclient")
	threshold := uint32(opts.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        "ml-service",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAgainstBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WarnWithContext(log, "circuit breaker state change", "breaker_state_change",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldErrorHint, "check the model service health"),
			)
		},
	}

	return &Client{
		endpoint:    endpoint,
		apiKey:      opts.APIKey,
		maxKeywords: opts.MaxKeywords,
		http:        httpClient,
		breaker:     gobreaker.NewCircuitBreaker(settings),
		logger:      log,
	}, nil
}

type itemPayload struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// Vectorize asks the service to compute and store vectors for items.
func (c *Client) Vectorize(ctx context.Context, items []*store.Item) error {
	if len(items) == 0 {
		return nil
	}
	payload := struct {
		WorkspaceID string        `json:"workspace_id"`
		Items       []itemPayload `json:"items"`
	}{WorkspaceID: items[0].WorkspaceID}
	for _, item := range items {
		payload.Items = append(payload.Items, itemPayload{ID: item.ID, Content: item.Content})
	}
	return c.call(ctx, "vectorize", "/vectorize", payload, nil)
}

// RequestSimilar returns the service's matches at or above threshold.
func (c *Client) RequestSimilar(ctx context.Context, item *store.Item, threshold float64) ([]similarity.Candidate, error) {
	payload := struct {
		WorkspaceID string  `json:"workspace_id"`
		ItemID      int64   `json:"item_id"`
		Content     string  `json:"content"`
		Threshold   float64 `json:"threshold"`
	}{item.WorkspaceID, item.ID, item.Content, threshold}
	var resp struct {
		Results []struct {
			Score  float64 `json:"score"`
			ItemID int64   `json:"item_id"`
		} `json:"results"`
	}
	if err := c.call(ctx, "similar", "/similar", payload, &resp); err != nil {
		return nil, err
	}
	candidates := make([]similarity.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		candidates = append(candidates, similarity.Candidate{Score: r.Score, ItemID: r.ItemID})
	}
	return candidates, nil
}

// ExtractKeywords requests ranked keywords for the item.
func (c *Client) ExtractKeywords(ctx context.Context, item *store.Item) ([]store.Keyword, error) {
	payload := struct {
		WorkspaceID string `json:"workspace_id"`
		ItemID      int64  `json:"item_id"`
		Content     string `json:"content"`
		Limit       int    `json:"limit"`
	}{item.WorkspaceID, item.ID, item.Content, c.maxKeywords}
	var resp struct {
		Keywords []struct {
			Term  string  `json:"term"`
			Score float64 `json:"score"`
		} `json:"keywords"`
	}
	if err := c.call(ctx, "keywords", "/keywords", payload, &resp); err != nil {
		return nil, err
	}
	keywords := make([]store.Keyword, 0, len(resp.Keywords))
	for _, kw := range resp.Keywords {
		keywords = append(keywords, store.Keyword{Term: kw.Term, Score: kw.Score})
	}
	return keywords, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, v any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, operation, path, payload, v)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return services.Wrap(services.ErrTransient, "mlclient", operation, "circuit breaker open", err)
	}
	return err
}

func (c *Client) post(ctx context.Context, operation, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "mlclient", operation, "marshal payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "mlclient", operation, "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return services.Wrap(services.ErrTimeout, "mlclient", operation, "request timed out", err)
		}
		return services.Wrap(services.ErrTransient, "mlclient", operation, "do request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("unexpected status %s", resp.Status)
		if text := strings.TrimSpace(string(snippet)); text != "" {
			msg += ": " + text
		}
		marker := services.ErrExternalService
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "mlclient", operation, msg, nil)
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return services.Wrap(services.ErrExternalService, "mlclient", operation, "decode response", err)
	}
	return nil
}

func countsAgainstBreaker(err error) bool {
	return errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrTimeout)
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
