package store_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"contentflow/internal/services"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
	"contentflow/internal/testsupport"
)

const workspace = "ws-test"

func TestOpenReusesExistingSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.MustInsertItem(t, st, workspace, "raw-1", "hello", time.Now())
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	items, err := reopened.ListItems(context.Background(), store.ItemFilter{WorkspaceID: workspace})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after reopen, got %d", len(items))
	}
	if err := reopened.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestInsertItemStartsReady(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.MustInsertItem(t, st, workspace, "raw-1", "hello world", time.Now())

	if item.ID == 0 || item.State.ID == 0 {
		t.Fatalf("expected ids to be assigned, got %+v", item)
	}
	if item.State.CurrentState != statemachine.StateReady {
		t.Fatalf("CurrentState = %s, want ready", item.State.CurrentState)
	}
	if item.State.TransitionNum != 1 {
		t.Fatalf("TransitionNum = %d, want 1", item.State.TransitionNum)
	}
	if item.State.Kind != testsupport.PipelineKind {
		t.Fatalf("Kind = %s", item.State.Kind)
	}
	if item.Clustered() {
		t.Fatal("new item should not be clustered")
	}
}

func TestInsertItemValidatesIdentity(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := st.InsertItem(context.Background(), testsupport.PipelineKind, store.NewItem{WorkspaceID: workspace}, false)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = st.InsertItem(context.Background(), "unknown", store.NewItem{WorkspaceID: workspace, RawContentID: "r", SourceField: "f"}, false)
	if !errors.Is(err, statemachine.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestInsertItemIsIdempotentUntilFailed(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	first := testsupport.MustInsertItem(t, st, workspace, "raw-1", "original", time.Now())

	dup := store.NewItem{WorkspaceID: workspace, RawContentID: "raw-1", SourceField: "text", Content: "changed", RawContent: "changed"}
	res, err := st.InsertItem(ctx, testsupport.PipelineKind, dup, false)
	if !errors.Is(err, store.ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}
	if res.Item == nil || res.Item.ID != first.ID || res.Item.Content != "original" {
		t.Fatalf("expected existing item returned unchanged, got %+v", res.Item)
	}

	if _, err := st.TransitionItemState(ctx, first.ID, statemachine.StateFailed); err != nil {
		t.Fatalf("TransitionItemState(failed): %v", err)
	}
	res, err = st.InsertItem(ctx, testsupport.PipelineKind, dup, false)
	if err != nil {
		t.Fatalf("InsertItem after failure: %v", err)
	}
	if !res.Replaced || res.Item.ID == first.ID || res.Item.Content != "changed" {
		t.Fatalf("expected replacement, got %+v (replaced=%v)", res.Item, res.Replaced)
	}
	if old, err := st.GetItem(ctx, first.ID); err != nil || old != nil {
		t.Fatalf("expected old item deleted, got %+v err=%v", old, err)
	}

	forced, err := st.InsertItem(ctx, testsupport.PipelineKind, dup, true)
	if err != nil {
		t.Fatalf("forced InsertItem: %v", err)
	}
	if !forced.Replaced {
		t.Fatal("expected forced insert to replace")
	}
	items, err := st.ListItems(ctx, store.ItemFilter{WorkspaceID: workspace})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one item, got %d", len(items))
	}
}

func TestTransitionCountsRejectedAttempts(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.MustInsertItem(t, st, workspace, "raw-1", "hello", time.Now())

	if err := st.ValidateTransition(ctx, item.ID, "clustered"); !errors.Is(err, statemachine.ErrTransitionNotAllowed) {
		t.Fatalf("ValidateTransition: expected ErrTransitionNotAllowed, got %v", err)
	}
	if _, err := st.TransitionItemState(ctx, item.ID, "clustered"); !errors.Is(err, statemachine.ErrTransitionNotAllowed) {
		t.Fatalf("expected ErrTransitionNotAllowed, got %v", err)
	}
	if _, err := st.TransitionItemState(ctx, item.ID, "bogus"); !errors.Is(err, statemachine.ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}
	state, err := st.GetItemState(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItemState: %v", err)
	}
	if state.CurrentState != statemachine.StateReady || state.TransitionNum != 3 {
		t.Fatalf("unexpected state after rejected attempts: %+v", state.Model)
	}

	updated, err := st.TransitionItemState(ctx, item.ID, "vectorized")
	if err != nil {
		t.Fatalf("TransitionItemState(vectorized): %v", err)
	}
	if updated.State.CurrentState != "vectorized" || updated.State.TransitionNum != 4 {
		t.Fatalf("unexpected state: %+v", updated.State.Model)
	}
	if _, err := st.TransitionItemState(ctx, 9999, "vectorized"); !errors.Is(err, store.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestStartTransitionMarksInFlight(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return clock })
	item := testsupport.MustInsertItem(t, st, workspace, "raw-1", "hello", clock)

	clock = clock.Add(time.Second)
	started, err := st.StartTransitionToState(ctx, item.ID, "vectorized")
	if err != nil {
		t.Fatalf("StartTransitionToState: %v", err)
	}
	if !started.State.InTransition() {
		t.Fatalf("expected in-flight state, got %+v", started.State.Model)
	}
	if started.State.CurrentState != statemachine.StateReady {
		t.Fatalf("state should not move until completion, got %s", started.State.CurrentState)
	}

	clock = clock.Add(time.Second)
	done, err := st.TransitionItemState(ctx, item.ID, "vectorized")
	if err != nil {
		t.Fatalf("TransitionItemState: %v", err)
	}
	if done.State.InTransition() {
		t.Fatal("expected transition to be finished")
	}
	if done.State.TransitionNum != 2 {
		t.Fatalf("TransitionNum = %d, want 2", done.State.TransitionNum)
	}
}

func TestGetItemsInBatchStateFilters(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	items := testsupport.MustInsertItems(t, st, workspace, 6)
	testsupport.MustInsertItem(t, st, "other", "raw-x", "elsewhere", time.Now())
	for _, item := range items[:2] {
		if _, err := st.TransitionItemState(ctx, item.ID, "vectorized"); err != nil {
			t.Fatalf("TransitionItemState: %v", err)
		}
	}

	ready, err := st.GetItemsInBatchState(ctx, workspace, testsupport.PipelineKind, statemachine.StateReady, 10)
	if err != nil {
		t.Fatalf("GetItemsInBatchState: %v", err)
	}
	if len(ready) != 4 {
		t.Fatalf("expected 4 ready items, got %d", len(ready))
	}
	limited, err := st.GetItemsInBatchState(ctx, workspace, testsupport.PipelineKind, statemachine.StateReady, 3)
	if err != nil {
		t.Fatalf("GetItemsInBatchState: %v", err)
	}
	if len(limited) != 3 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	counts, err := st.StateCounts(ctx, workspace, "")
	if err != nil {
		t.Fatalf("StateCounts: %v", err)
	}
	if counts[statemachine.StateReady] != 4 || counts["vectorized"] != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestClusterItemsBookkeeping(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	items := testsupport.MustInsertItems(t, st, workspace, 3)

	single, err := st.ClusterItems(ctx, items[0].ID, 0)
	if err != nil {
		t.Fatalf("ClusterItems(single): %v", err)
	}
	if single.NumItems != 1 || single.ExemplarItemID != items[0].ID || single.NumItemsAdded != 1 {
		t.Fatalf("unexpected singleton %+v", single)
	}
	again, err := st.ClusterItems(ctx, items[0].ID, 0)
	if err != nil {
		t.Fatalf("ClusterItems(single again): %v", err)
	}
	if again.ID != single.ID || again.NumItemsAdded != 1 {
		t.Fatalf("expected no-op for clustered item, got %+v", again)
	}

	pair, err := st.ClusterItems(ctx, items[1].ID, items[2].ID)
	if err != nil {
		t.Fatalf("ClusterItems(pair): %v", err)
	}
	if pair.NumItems != 2 || pair.ExemplarItemID != items[2].ID {
		t.Fatalf("expected new cluster with second as exemplar, got %+v", pair)
	}

	same, err := st.ClusterItems(ctx, items[1].ID, items[2].ID)
	if err != nil {
		t.Fatalf("ClusterItems(same): %v", err)
	}
	if same.ID != pair.ID || same.NumItems != 2 || same.NumItemsAdded != 2 {
		t.Fatalf("expected same-cluster no-op, got %+v", same)
	}

	moved, err := st.ClusterItems(ctx, items[0].ID, items[1].ID)
	if err != nil {
		t.Fatalf("ClusterItems(move): %v", err)
	}
	if moved.ID != pair.ID || moved.NumItems != 3 || moved.NumItemsAdded != 3 {
		t.Fatalf("unexpected cluster after move %+v", moved)
	}
	if gone, err := st.GetCluster(ctx, single.ID); err != nil || gone != nil {
		t.Fatalf("expected emptied singleton deleted, got %+v err=%v", gone, err)
	}
	size, err := st.ClusterSizeForItem(ctx, items[0].ID)
	if err != nil || size != 3 {
		t.Fatalf("ClusterSizeForItem = %d err=%v", size, err)
	}
}

func TestClusterItemsRejectsCrossWorkspace(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	a := testsupport.MustInsertItem(t, st, "a", "raw-1", "x", time.Now())
	b := testsupport.MustInsertItem(t, st, "b", "raw-1", "x", time.Now())
	if _, err := st.ClusterItems(ctx, a.ID, b.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := st.ClusterItems(ctx, a.ID, 12345); !errors.Is(err, store.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestUniqueContentCounting(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	now := time.Now()
	a := testsupport.MustInsertItem(t, st, workspace, "raw-a", "same text", now)
	b := testsupport.MustInsertItem(t, st, workspace, "raw-b", "same text", now.Add(time.Second))

	cluster, err := st.ClusterItems(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}
	if cluster.NumItems != 2 || cluster.NumItemsUnique != 1 {
		t.Fatalf("expected num_items=2 unique=1, got %+v", cluster)
	}

	c := testsupport.MustInsertItem(t, st, workspace, "raw-c", "different text", now.Add(2*time.Second))
	cluster, err = st.ClusterItems(ctx, c.ID, a.ID)
	if err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}
	if cluster.NumItems != 3 || cluster.NumItemsUnique != 2 {
		t.Fatalf("expected num_items=3 unique=2, got %+v", cluster)
	}
}

func TestExemplarReelectedOnDelete(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	oldest := testsupport.MustInsertItem(t, st, workspace, "raw-old", "one", base)
	middle := testsupport.MustInsertItem(t, st, workspace, "raw-mid", "two", base.Add(time.Hour))
	newest := testsupport.MustInsertItem(t, st, workspace, "raw-new", "three", base.Add(2*time.Hour))

	if _, err := st.ClusterItems(ctx, middle.ID, newest.ID); err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}
	cluster, err := st.ClusterItems(ctx, oldest.ID, newest.ID)
	if err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}
	if cluster.ExemplarItemID != newest.ID {
		t.Fatalf("expected newest as exemplar, got %d", cluster.ExemplarItemID)
	}
	if err := st.ReplaceKeywords(ctx, newest.ID, []store.Keyword{{Term: "three", Score: 1}}); err != nil {
		t.Fatalf("ReplaceKeywords: %v", err)
	}

	if err := st.DeleteItem(ctx, newest.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	cluster, err = st.GetCluster(ctx, cluster.ID)
	if err != nil || cluster == nil {
		t.Fatalf("GetCluster: %+v err=%v", cluster, err)
	}
	if cluster.ExemplarItemID != oldest.ID {
		t.Fatalf("expected oldest remaining member as exemplar, got %d", cluster.ExemplarItemID)
	}
	if cluster.NumItems != 2 || cluster.NumItemsAdded != 3 {
		t.Fatalf("unexpected bookkeeping %+v", cluster)
	}
	if kws, err := st.ItemKeywords(ctx, newest.ID); err != nil || len(kws) != 0 {
		t.Fatalf("expected keywords deleted, got %v err=%v", kws, err)
	}

	for _, item := range []*store.Item{oldest, middle} {
		if err := st.DeleteItem(ctx, item.ID); err != nil {
			t.Fatalf("DeleteItem: %v", err)
		}
	}
	if gone, err := st.GetCluster(ctx, cluster.ID); err != nil || gone != nil {
		t.Fatalf("expected cluster deleted with last member, got %+v err=%v", gone, err)
	}
	if err := st.DeleteItem(ctx, oldest.ID); !errors.Is(err, store.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestClusterSizeInvariantHoldsUnderRandomMutations(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	items := testsupport.MustInsertItems(t, st, workspace, 12)
	alive := make(map[int64]bool, len(items))
	for _, item := range items {
		alive[item.ID] = true
	}

	rng := rand.New(rand.NewSource(7))
	pick := func() int64 {
		for {
			id := items[rng.Intn(len(items))].ID
			if alive[id] {
				return id
			}
		}
	}
	for step := 0; step < 60; step++ {
		switch op := rng.Intn(10); {
		case op == 0 && len(alive) > 3:
			id := pick()
			if err := st.DeleteItem(ctx, id); err != nil {
				t.Fatalf("step %d DeleteItem: %v", step, err)
			}
			delete(alive, id)
		case op < 3:
			if _, err := st.ClusterItems(ctx, pick(), 0); err != nil {
				t.Fatalf("step %d ClusterItems(single): %v", step, err)
			}
		default:
			if _, err := st.ClusterItems(ctx, pick(), pick()); err != nil {
				t.Fatalf("step %d ClusterItems: %v", step, err)
			}
		}
		assertClusterInvariants(t, st)
	}
}

func TestMergeClusters(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	items := testsupport.MustInsertItems(t, st, workspace, 5)

	big, err := st.ClusterItems(ctx, items[0].ID, items[1].ID)
	if err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}
	if big, err = st.ClusterItems(ctx, items[2].ID, items[1].ID); err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}
	small, err := st.ClusterItems(ctx, items[3].ID, items[4].ID)
	if err != nil {
		t.Fatalf("ClusterItems: %v", err)
	}

	merged, err := st.MergeClusters(ctx, small.ID, big.ID)
	if err != nil {
		t.Fatalf("MergeClusters: %v", err)
	}
	if merged.ID != big.ID || merged.NumItems != 5 || merged.NumItemsAdded != 5 {
		t.Fatalf("unexpected merged cluster %+v", merged)
	}
	if gone, err := st.GetCluster(ctx, small.ID); err != nil || gone != nil {
		t.Fatalf("expected source cluster deleted, got %+v err=%v", gone, err)
	}
	assertClusterInvariants(t, st)

	if _, err := st.MergeClusters(ctx, 4242, big.ID); !errors.Is(err, store.ErrClusterNotFound) {
		t.Fatalf("expected ErrClusterNotFound, got %v", err)
	}
}

func TestPriorityClustersAndScores(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	items := testsupport.MustInsertItems(t, st, workspace, 3)

	var clusters []*store.Cluster
	for _, item := range items {
		cluster, err := st.ClusterItems(ctx, item.ID, 0)
		if err != nil {
			t.Fatalf("ClusterItems: %v", err)
		}
		clusters = append(clusters, cluster)
	}
	if _, err := st.AdjustClusterScores(ctx, clusters[0].ID, 0, 1); err != nil {
		t.Fatalf("AdjustClusterScores: %v", err)
	}
	adjusted, err := st.AdjustClusterScores(ctx, clusters[2].ID, 0.5, 3)
	if err != nil {
		t.Fatalf("AdjustClusterScores: %v", err)
	}
	if adjusted.StressScore != 0.5 || adjusted.PriorityScore != 3 {
		t.Fatalf("unexpected scores %+v", adjusted)
	}

	priority, err := st.GetPriorityClusters(ctx, workspace, 10)
	if err != nil {
		t.Fatalf("GetPriorityClusters: %v", err)
	}
	if len(priority) != 2 || priority[0].ID != clusters[2].ID || priority[1].ID != clusters[0].ID {
		t.Fatalf("unexpected priority order %+v", priority)
	}

	adjusted.PriorityScore = 0
	if err := st.UpdateCluster(ctx, adjusted); err != nil {
		t.Fatalf("UpdateCluster: %v", err)
	}
	priority, err = st.GetPriorityClusters(ctx, workspace, 10)
	if err != nil {
		t.Fatalf("GetPriorityClusters: %v", err)
	}
	if len(priority) != 1 {
		t.Fatalf("expected zero-priority cluster excluded, got %d", len(priority))
	}
}

func TestUpdateItemKeepsRawContent(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.MustInsertItem(t, st, workspace, "raw-1", "Raw Text", time.Now())

	item.Content = "raw text"
	if err := st.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	fetched, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if fetched.Content != "raw text" || fetched.RawContent != "Raw Text" {
		t.Fatalf("unexpected item %+v", fetched)
	}
	if err := st.UpdateItem(ctx, &store.Item{ID: 777}); !errors.Is(err, store.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestVectorsAndKeywords(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.MustInsertItem(t, st, workspace, "raw-1", "hello", time.Now())

	if err := st.SaveVector(ctx, item.ID, workspace, map[string]float64{"hello": 1}); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}
	if err := st.SaveVector(ctx, item.ID, workspace, map[string]float64{"hello": 0.5, "world": 0.5}); err != nil {
		t.Fatalf("SaveVector overwrite: %v", err)
	}
	vectors, err := st.WorkspaceVectors(ctx, workspace)
	if err != nil {
		t.Fatalf("WorkspaceVectors: %v", err)
	}
	if len(vectors) != 1 || vectors[item.ID]["world"] != 0.5 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if missing, err := st.GetVector(ctx, 999); err != nil || missing != nil {
		t.Fatalf("expected nil vector, got %v err=%v", missing, err)
	}

	if err := st.ReplaceKeywords(ctx, item.ID, []store.Keyword{{Term: "b", Score: 1}, {Term: "a", Score: 2}}); err != nil {
		t.Fatalf("ReplaceKeywords: %v", err)
	}
	keywords, err := st.ItemKeywords(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemKeywords: %v", err)
	}
	if len(keywords) != 2 || keywords[0].Term != "a" {
		t.Fatalf("unexpected keywords %v", keywords)
	}
}

func TestRunRecords(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	started := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	run := store.Run{ID: "run-1", WorkspaceID: workspace, Workflow: "cluster", Status: store.RunStarted, StartedAt: started}
	if err := st.RecordRunState(ctx, run); err != nil {
		t.Fatalf("RecordRunState(started): %v", err)
	}
	run.Status = store.RunFailed
	run.FinishedAt = started.Add(time.Minute)
	run.Processed = 10
	run.ErrorMessage = "error budget exceeded"
	if err := st.RecordRunState(ctx, run); err != nil {
		t.Fatalf("RecordRunState(failed): %v", err)
	}

	fetched, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if fetched.Status != store.RunFailed || fetched.Processed != 10 || !fetched.StartedAt.Equal(started) {
		t.Fatalf("unexpected run %+v", fetched)
	}
	runs, err := st.ListRuns(ctx, workspace, 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns = %v err=%v", runs, err)
	}
	if missing, err := st.GetRun(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil run, got %+v err=%v", missing, err)
	}
}

func assertClusterInvariants(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()

	clusters, err := st.ListClusters(ctx, workspace, 0)
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	for _, cluster := range clusters {
		members, err := st.GetClusterItems(ctx, cluster.ID)
		if err != nil {
			t.Fatalf("GetClusterItems: %v", err)
		}
		if cluster.NumItems <= 0 || cluster.NumItems != len(members) {
			t.Fatalf("cluster %d num_items=%d but %d members", cluster.ID, cluster.NumItems, len(members))
		}
		exemplarFound := false
		unique := map[string]struct{}{}
		for _, member := range members {
			if member.ID == cluster.ExemplarItemID {
				exemplarFound = true
			}
			unique[member.Content] = struct{}{}
		}
		if !exemplarFound {
			t.Fatalf("cluster %d exemplar %d is not a member", cluster.ID, cluster.ExemplarItemID)
		}
		if cluster.NumItemsUnique != len(unique) {
			t.Fatalf("cluster %d num_items_unique=%d want %d", cluster.ID, cluster.NumItemsUnique, len(unique))
		}
		if cluster.NumItemsAdded < cluster.NumItems {
			t.Fatalf("cluster %d added=%d below size %d", cluster.ID, cluster.NumItemsAdded, cluster.NumItems)
		}
	}
}
