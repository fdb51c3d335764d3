package store

import (
	"time"

	"contentflow/internal/statemachine"
)

// Item is a normalized unit of content together with its workflow state.
type Item struct {
	ID           int64
	WorkspaceID  string
	SourceID     string
	RawContentID string
	SourceField  string
	Content      string
	RawContent   string
	RawCreatedAt time.Time
	ClusterID    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	State        ItemState
}

// Clustered reports whether the item belongs to a cluster.
func (i *Item) Clustered() bool {
	return i != nil && i.ClusterID != 0
}

// ItemState is the persisted state row of one item.
type ItemState struct {
	ID     int64
	ItemID int64
	statemachine.Model
}

// NewItem describes an item to insert.
type NewItem struct {
	WorkspaceID  string
	SourceID     string
	RawContentID string
	SourceField  string
	Content      string
	RawContent   string
	RawCreatedAt time.Time
}

// InsertResult reports the outcome of InsertItem.
type InsertResult struct {
	Item     *Item
	Replaced bool
}

// Cluster groups items that share similar content.
type Cluster struct {
	ID             int64
	WorkspaceID    string
	NumItems       int
	NumItemsAdded  int
	NumItemsUnique int
	ExemplarItemID int64
	StressScore    float64
	PriorityScore  float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Keyword is a ranked keyword annotation on an item.
type Keyword struct {
	Term  string
	Score float64
}

// RunStatus is the lifecycle of a processor run record.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the audit record of one processor invocation.
type Run struct {
	ID             string
	WorkspaceID    string
	Workflow       string
	Status         RunStatus
	StartedAt      time.Time
	FinishedAt     time.Time
	Iterations     int
	Processed      int
	Errors         int
	Skipped        int
	ForceFailed    int
	ItemsPerSecond float64
	ErrorMessage   string
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	WorkspaceID string
	Kind        string
	States      []string
	ClusterID   int64
	Limit       int
}
