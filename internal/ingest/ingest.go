// Package ingest turns raw JSON-lines records into content items.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"contentflow/internal/logging"
	"contentflow/internal/metrics"
	"contentflow/internal/services"
	"contentflow/internal/store"
	"contentflow/internal/workflow"
)

const maxLineBytes = 16 << 20

// Record is one raw source record as it appears in an ingest file.
type Record struct {
	RawContentID string            `json:"raw_content_id"`
	SourceID     string            `json:"source_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Fields       map[string]string `json:"fields"`
}

// Inserter persists extracted items.
type Inserter interface {
	InsertItem(ctx context.Context, kind string, n store.NewItem, force bool) (store.InsertResult, error)
}

// Summary counts the outcome of one ingest.
type Summary struct {
	Records    int
	Inserted   int
	Duplicates int
	Replaced   int
	Empty      int
}

// Ingester extracts and inserts records for a workflow.
type Ingester struct {
	store   Inserter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New constructs an Ingester.
func New(st Inserter, m *metrics.Metrics, logger *slog.Logger) *Ingester {
	return &Ingester{
		store:   st,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "ingest"),
	}
}

// IngestFile ingests every record in the JSON-lines file at path.
func (i *Ingester) IngestFile(ctx context.Context, path, workspaceID string, wf workflow.Workflow, force bool) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open ingest file: %w", err)
	}
	defer f.Close()
	return i.Ingest(ctx, f, workspaceID, wf, force)
}

// Ingest reads JSON-lines records from r. Blank lines are ignored; a
// malformed line aborts the ingest after the records before it were stored.
// With force, existing items are replaced even when they have not failed.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader, workspaceID string, wf workflow.Workflow, force bool) (Summary, error) {
	var summary Summary
	if strings.TrimSpace(workspaceID) == "" {
		return summary, services.Wrap(services.ErrValidation, "ingest", "ingest", "workspace is required", nil)
	}
	ctx = services.WithWorkflow(services.WithWorkspace(ctx, workspaceID), wf.ID())
	logger := logging.WithContext(ctx, i.logger)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return summary, services.Wrap(services.ErrValidation, "ingest", "decode", fmt.Sprintf("line %d", line), err)
		}
		summary.Records++
		if err := i.insertRecord(ctx, workspaceID, wf, record, force, &summary); err != nil {
			return summary, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read ingest input: %w", err)
	}

	logger.Info("ingest complete",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.Int("records", summary.Records),
		logging.Int("inserted", summary.Inserted),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("replaced", summary.Replaced),
		logging.Int("empty", summary.Empty),
	)
	return summary, nil
}

func decodeRecord(raw string) (Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return record, err
	}
	if strings.TrimSpace(record.RawContentID) == "" {
		return record, errors.New("raw_content_id is required")
	}
	return record, nil
}

func (i *Ingester) insertRecord(ctx context.Context, workspaceID string, wf workflow.Workflow, record Record, force bool, summary *Summary) error {
	items := wf.ExtractItems(workflow.RawRecord{
		WorkspaceID:  workspaceID,
		SourceID:     record.SourceID,
		RawContentID: record.RawContentID,
		CreatedAt:    record.CreatedAt,
		Fields:       record.Fields,
	})
	if len(items) == 0 {
		summary.Empty++
		i.metrics.IngestItem("empty")
		i.logger.Debug("record has no extractable fields", logging.String("raw_content_id", record.RawContentID))
		return nil
	}

	for _, item := range items {
		res, err := i.store.InsertItem(ctx, wf.Definition().Kind, item, force)
		switch {
		case errors.Is(err, store.ErrDuplicateItem):
			summary.Duplicates++
			i.metrics.IngestItem("duplicate")
		case err != nil:
			return err
		case res.Replaced:
			summary.Replaced++
			i.metrics.IngestItem("replaced")
		default:
			summary.Inserted++
			i.metrics.IngestItem("inserted")
		}
	}
	return nil
}
