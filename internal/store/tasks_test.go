package store

import (
	"context"
	"testing"
	"time"

	"github.com/tryon-ai/tryon/pkg/types"
)

func TestTaskList_UpsertGet(t *testing.T) {
	ctx := context.Background()
	tl := NewTaskList(openTestStore(t))

	rec := &types.TaskRecord{ID: "t1", Kind: types.KindAccessory, State: types.TaskSubmitted, Message: "queued"}
	if err := tl.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := tl.Get(ctx, "t1")
	if err != nil || got == nil {
		t.Fatalf("Expected task t1, got %v err=%v", got, err)
	}
	if got.Kind != types.KindAccessory || got.State != types.TaskSubmitted || got.Message != "queued" {
		t.Errorf("Unexpected task: %+v", got)
	}

	missing, err := tl.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for unknown task, got %v err=%v", missing, err)
	}
}

func TestTaskList_UpsertKeepsCreationTime(t *testing.T) {
	ctx := context.Background()
	tl := NewTaskList(openTestStore(t))

	created := time.UnixMilli(time.Now().Add(-time.Hour).UnixMilli())
	tl.Upsert(ctx, &types.TaskRecord{ID: "t1", Kind: types.KindClothing, State: types.TaskFailed, CreatedAt: created})
	tl.Upsert(ctx, &types.TaskRecord{ID: "t1", Kind: types.KindClothing, State: types.TaskSubmitted})

	got, _ := tl.Get(ctx, "t1")
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected creation time %v to survive resubmission, got %v", created, got.CreatedAt)
	}
	if got.State != types.TaskSubmitted {
		t.Errorf("Expected state reset to submitted, got %s", got.State)
	}
}

func TestTaskList_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	tl := NewTaskList(openTestStore(t))
	tl.Upsert(ctx, &types.TaskRecord{ID: "t1", Kind: types.KindAccessory, State: types.TaskSubmitted})

	progress := 100
	url := "/api/tasks/t1/result.png"
	err := tl.UpdateStatus(ctx, "t1", &types.TaskStatusUpdate{
		State:          types.TaskSucceeded,
		RemoteStatus:   types.RemoteCompleted,
		Progress:       &progress,
		ResultImageURL: &url,
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, _ := tl.Get(ctx, "t1")
	if got.State != types.TaskSucceeded || got.Progress != 100 || got.ResultImageURL != url {
		t.Errorf("Unexpected task after update: %+v", got)
	}

	if err := tl.UpdateStatus(ctx, "ghost", &types.TaskStatusUpdate{State: types.TaskFailed}); err == nil {
		t.Errorf("Expected error updating an unknown task")
	}
}

func TestTaskList_ListFilterAndIDs(t *testing.T) {
	ctx := context.Background()
	tl := NewTaskList(openTestStore(t))

	tl.Upsert(ctx, &types.TaskRecord{ID: "a", Kind: types.KindAccessory, State: types.TaskPolling})
	tl.Upsert(ctx, &types.TaskRecord{ID: "b", Kind: types.KindClothing, State: types.TaskSucceeded})
	tl.Upsert(ctx, &types.TaskRecord{ID: "c", Kind: types.KindAccessory, State: types.TaskSucceeded})

	pending, err := tl.List(ctx, &types.TaskFilter{States: []types.TaskState{types.TaskSubmitted, types.TaskPolling}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a" {
		t.Errorf("Expected only a pending, got %+v", pending)
	}

	accessory, _ := tl.List(ctx, &types.TaskFilter{Kind: types.KindAccessory})
	if len(accessory) != 2 {
		t.Errorf("Expected 2 accessory tasks, got %d", len(accessory))
	}

	if err := tl.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ids, err := tl.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("Expected [a c], got %v", ids)
	}
}
