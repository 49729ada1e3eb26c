package task

import (
	"context"
	"errors"
	"time"

	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/internal/remote"
	"github.com/tryon-ai/tryon/pkg/types"
)

// Poller periodically refreshes unfinished tasks in the background.
type Poller struct {
	client   *Client
	interval time.Duration
	log      logger.Logger
}

// NewPoller creates a Poller. A non-positive interval defaults to 3s.
func NewPoller(client *Client, interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		client:   client,
		interval: interval,
		log:      log,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Poll checks each submitted or polling task once. Tasks that reach a final
// state get their result fetched.
func (p *Poller) Poll(ctx context.Context) {
	pending, err := p.client.ListTasks(ctx, &types.TaskFilter{
		States: []types.TaskState{types.TaskSubmitted, types.TaskPolling},
	})
	if err != nil {
		p.log.Warnf("failed to list pending tasks: %v", err)
		return
	}

	for _, t := range pending {
		if ctx.Err() != nil {
			return
		}

		status, err := p.client.Status(ctx, t.Kind, t.ID)
		if err != nil {
			if !errors.Is(err, remote.ErrTaskNotFound) {
				p.log.Debugf("poll of task %s failed: %v", t.ID, err)
			}
			continue
		}

		if status.Status.State().IsFinal() {
			if _, err := p.client.Result(ctx, t.Kind, t.ID); err != nil {
				p.log.Warnf("failed to fetch result of task %s: %v", t.ID, err)
			}
		}
	}
}
