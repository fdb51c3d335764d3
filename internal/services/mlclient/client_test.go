package mlclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"contentflow/internal/services"
	"contentflow/internal/services/mlclient"
	"contentflow/internal/store"
)

func newClient(t *testing.T, handler http.HandlerFunc, threshold int) *mlclient.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := mlclient.New(mlclient.Options{
		BaseURL:          server.URL + "/",
		APIKey:           "secret",
		Timeout:          time.Second,
		FailureThreshold: threshold,
		OpenTimeout:      time.Minute,
		MaxKeywords:      3,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestRequestSimilarDecodesResults(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/similar" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["threshold"] != 0.7 || body["item_id"] != float64(5) {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"results":[{"score":1.4,"item_id":9},{"score":0.8,"item_id":3}]}`))
	}, 5)

	got, err := client.RequestSimilar(context.Background(), &store.Item{ID: 5, WorkspaceID: "ws", Content: "x"}, 0.7)
	if err != nil {
		t.Fatalf("RequestSimilar: %v", err)
	}
	if len(got) != 2 || got[0].ItemID != 9 || got[0].Score != 1.4 {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestExtractKeywordsAndVectorize(t *testing.T) {
	var vectorized atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vectorize":
			vectorized.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/keywords":
			_, _ = w.Write([]byte(`{"keywords":[{"term":"park","score":2}]}`))
		default:
			http.NotFound(w, r)
		}
	}, 5)

	ctx := context.Background()
	items := []*store.Item{{ID: 1, WorkspaceID: "ws", Content: "a"}, {ID: 2, WorkspaceID: "ws", Content: "b"}}
	if err := client.Vectorize(ctx, items); err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if err := client.Vectorize(ctx, nil); err != nil {
		t.Fatalf("Vectorize(nil): %v", err)
	}
	if vectorized.Load() != 1 {
		t.Fatalf("expected one vectorize call, got %d", vectorized.Load())
	}
	keywords, err := client.ExtractKeywords(ctx, items[0])
	if err != nil {
		t.Fatalf("ExtractKeywords: %v", err)
	}
	if len(keywords) != 1 || keywords[0].Term != "park" {
		t.Fatalf("unexpected keywords %v", keywords)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		marker error
	}{
		{"server error is transient", http.StatusBadGateway, services.ErrTransient},
		{"rate limit is transient", http.StatusTooManyRequests, services.ErrTransient},
		{"client error is external", http.StatusBadRequest, services.ErrExternalService},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}, 5)
			_, err := client.ExtractKeywords(context.Background(), &store.Item{ID: 1})
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 2)

	ctx := context.Background()
	item := &store.Item{ID: 1, WorkspaceID: "ws"}
	for i := 0; i < 2; i++ {
		if _, err := client.RequestSimilar(ctx, item, 0.5); !errors.Is(err, services.ErrTransient) {
			t.Fatalf("call %d: expected transient error, got %v", i, err)
		}
	}
	_, err := client.RequestSimilar(ctx, item, 0.5)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error from open breaker, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to short-circuit the third call, server saw %d", calls.Load())
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}, 1)

	for i := 0; i < 3; i++ {
		_, _ = client.ExtractKeywords(context.Background(), &store.Item{ID: 1})
	}
	if calls.Load() != 3 {
		t.Fatalf("expected every call to reach the server, got %d", calls.Load())
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := mlclient.New(mlclient.Options{}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
