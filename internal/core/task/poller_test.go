package task

import (
	"context"
	"testing"
	"time"

	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/pkg/types"
)

func TestPoller_PollRecordsResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done, _ := f.client.Submit(ctx, types.KindAccessory, &Request{Images: accessoryImages()})
	failed, _ := f.client.Submit(ctx, types.KindAccessory, &Request{Images: accessoryImages()})
	running, _ := f.client.Submit(ctx, types.KindAccessory, &Request{Images: accessoryImages()})
	f.remote.status[done.TaskID] = types.RemoteCompleted
	f.remote.status[failed.TaskID] = types.RemoteFailed
	f.remote.status[running.TaskID] = types.RemoteProcessing

	NewPoller(f.client, time.Second, logger.Discard()).Poll(ctx)

	rec, _ := f.tasks.Get(ctx, done.TaskID)
	if rec.State != types.TaskSucceeded || rec.ResultImageURL != "/api/results/"+done.TaskID+".png" || rec.Progress != 100 {
		t.Errorf("Unexpected completed task: %+v", rec)
	}

	rec, _ = f.tasks.Get(ctx, failed.TaskID)
	if rec.State != types.TaskFailed || rec.ErrorMessage != "generation failed" {
		t.Errorf("Unexpected failed task: %+v", rec)
	}

	rec, _ = f.tasks.Get(ctx, running.TaskID)
	if rec.State != types.TaskPolling {
		t.Errorf("Expected running task polling, got %s", rec.State)
	}
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		NewPoller(f.client, 10*time.Millisecond, logger.Discard()).Run(ctx)
		close(stopped)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected poller to stop after cancel")
	}
}
