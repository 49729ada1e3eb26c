// Package task drives try-on tasks against the remote service and keeps the
// local task list and image cache consistent with it.
package task

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/internal/remote"
	"github.com/tryon-ai/tryon/internal/store"
	"github.com/tryon-ai/tryon/pkg/types"
)

// Remote is the generation service as seen by the Client.
type Remote interface {
	Submit(ctx context.Context, prefix string, sub *remote.Submission) (*types.SubmitResponse, error)
	Resubmit(ctx context.Context, prefix, taskID string, sub *remote.Submission) (*types.SubmitResponse, error)
	Status(ctx context.Context, prefix, taskID string) (*types.StatusResponse, error)
	Result(ctx context.Context, prefix, taskID string) (*types.ResultResponse, error)
	Delete(ctx context.Context, prefix, taskID string) (*types.DeleteResponse, error)
}

// Credentials returns decrypted credentials by name, or "" when unset.
type Credentials interface {
	Load(ctx context.Context, name string) string
}

// Preferences returns stored preferences with a fallback.
type Preferences interface {
	GetOr(ctx context.Context, name, fallback string) string
}

// Request carries the inputs of a submit or resubmit.
type Request struct {
	Images types.ImageSet
	Params map[string]string // Extra form fields such as accessory_type
}

// Client handles task lifecycle operations.
type Client struct {
	remote    Remote
	creds     Credentials
	prefs     Preferences
	assets    *store.AssetStore
	tasks     *store.TaskList
	endpoints map[types.TaskKind]Endpoint
	log       logger.Logger

	watchersMu sync.RWMutex
	watchers   map[string]chan *types.TaskEvent
}

// NewClient creates a new task Client serving the given endpoints.
func NewClient(
	rc Remote,
	creds Credentials,
	prefs Preferences,
	assets *store.AssetStore,
	tasks *store.TaskList,
	endpoints []Endpoint,
	log logger.Logger,
) *Client {
	c := &Client{
		remote:    rc,
		creds:     creds,
		prefs:     prefs,
		assets:    assets,
		tasks:     tasks,
		endpoints: make(map[types.TaskKind]Endpoint, len(endpoints)),
		log:       log,
		watchers:  make(map[string]chan *types.TaskEvent),
	}
	for _, ep := range endpoints {
		c.endpoints[ep.Kind] = ep
	}
	return c
}

// Endpoint returns the endpoint registered for kind.
func (c *Client) Endpoint(kind types.TaskKind) (Endpoint, error) {
	ep, ok := c.endpoints[kind]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return ep, nil
}

// Start reconciles the image cache with the task list.
func (c *Client) Start(ctx context.Context) error {
	result, err := c.Reconcile(ctx)
	if err != nil {
		return err
	}
	c.log.Infof("Image cache reconciled: %d scanned, %d removed", result.Scanned, len(result.Removed))
	return nil
}

// Submit sends a new task and caches its images under the returned id.
func (c *Client) Submit(ctx context.Context, kind types.TaskKind, req *Request) (*types.SubmitResponse, error) {
	ep, err := c.Endpoint(kind)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &Request{}
	}
	if err := ep.validate(req.Images); err != nil {
		return nil, err
	}

	resp, err := c.remote.Submit(ctx, ep.Prefix, c.submission(ctx, ep, req))
	if err != nil {
		return nil, fmt.Errorf("failed to submit task: %w", err)
	}

	c.record(ctx, ep, resp, req, "submitted")
	return resp, nil
}

// Resubmit restarts an existing task with new inputs. The task keeps its id
// and its cache entry is replaced by the new images.
func (c *Client) Resubmit(ctx context.Context, kind types.TaskKind, taskID string, req *Request) (*types.SubmitResponse, error) {
	ep, err := c.Endpoint(kind)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &Request{}
	}
	if err := ep.validate(req.Images); err != nil {
		return nil, err
	}

	resp, err := c.remote.Resubmit(ctx, ep.Prefix, taskID, c.submission(ctx, ep, req))
	if err != nil {
		if errors.Is(err, remote.ErrTaskNotFound) {
			c.forget(ctx, kind, taskID, "deleted")
		}
		return nil, fmt.Errorf("failed to resubmit task: %w", err)
	}
	if resp.TaskID == "" {
		resp.TaskID = taskID
	}

	c.record(ctx, ep, resp, req, "resubmitted")
	return resp, nil
}

// record stores the task and its images after the service accepted them.
// Local failures are logged and never fail the submission.
func (c *Client) record(ctx context.Context, ep Endpoint, resp *types.SubmitResponse, req *Request, eventType string) {
	var old types.TaskState
	if existing, err := c.tasks.Get(ctx, resp.TaskID); err == nil && existing != nil {
		old = existing.State
	}

	rec := &types.TaskRecord{
		ID:      resp.TaskID,
		Kind:    ep.Kind,
		State:   types.TaskSubmitted,
		Message: resp.Message,
	}
	if err := c.tasks.Upsert(ctx, rec); err != nil {
		c.log.Warnf("failed to record task %s: %v", resp.TaskID, err)
	}

	if !c.assets.Save(ctx, resp.TaskID, ep.cacheSet(req.Images)) {
		c.log.Warnf("images for task %s were not cached", resp.TaskID)
	}

	if resp.DeletedTaskID != nil && *resp.DeletedTaskID != "" && *resp.DeletedTaskID != resp.TaskID {
		c.log.Infof("Service evicted task %s", *resp.DeletedTaskID)
		c.forget(ctx, "", *resp.DeletedTaskID, "evicted")
	}

	c.broadcast(&types.TaskEvent{
		TaskID:    resp.TaskID,
		Kind:      ep.Kind,
		EventType: eventType,
		OldState:  old,
		NewState:  types.TaskSubmitted,
		Message:   resp.Message,
		Timestamp: time.Now(),
	})
}

// Status polls the service and applies the result to the task list.
// A task the service no longer knows is removed locally.
func (c *Client) Status(ctx context.Context, kind types.TaskKind, taskID string) (*types.StatusResponse, error) {
	ep, err := c.Endpoint(kind)
	if err != nil {
		return nil, err
	}

	resp, err := c.remote.Status(ctx, ep.Prefix, taskID)
	if err != nil {
		if errors.Is(err, remote.ErrTaskNotFound) {
			c.forget(ctx, kind, taskID, "deleted")
		}
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	c.apply(ctx, kind, taskID, &types.TaskStatusUpdate{
		State:        resp.Status.State(),
		RemoteStatus: resp.Status,
		Message:      resp.Message,
		Progress:     resp.Progress,
	})
	return resp, nil
}

// Result fetches the outcome of a task and records its result URL or error.
func (c *Client) Result(ctx context.Context, kind types.TaskKind, taskID string) (*types.ResultResponse, error) {
	ep, err := c.Endpoint(kind)
	if err != nil {
		return nil, err
	}

	resp, err := c.remote.Result(ctx, ep.Prefix, taskID)
	if err != nil {
		if errors.Is(err, remote.ErrTaskNotFound) {
			c.forget(ctx, kind, taskID, "deleted")
		}
		return nil, fmt.Errorf("failed to get task result: %w", err)
	}

	update := &types.TaskStatusUpdate{
		State:          resp.Status.State(),
		RemoteStatus:   resp.Status,
		ResultImageURL: resp.ResultImageURL,
		ErrorMessage:   resp.ErrorMessage,
	}
	if update.State == types.TaskSucceeded {
		done := 100
		update.Progress = &done
	}
	c.apply(ctx, kind, taskID, update)
	return resp, nil
}

// apply writes a status update and notifies watchers when something changed.
// Tasks missing from the local list are adopted.
func (c *Client) apply(ctx context.Context, kind types.TaskKind, taskID string, update *types.TaskStatusUpdate) {
	existing, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		c.log.Warnf("failed to read task %s: %v", taskID, err)
		return
	}

	event := &types.TaskEvent{
		TaskID:    taskID,
		Kind:      kind,
		EventType: "status_change",
		NewState:  update.State,
		Timestamp: time.Now(),
	}
	if update.Progress != nil {
		event.Progress = *update.Progress
	}
	if update.Message != nil {
		event.Message = *update.Message
	}

	if existing == nil {
		rec := &types.TaskRecord{ID: taskID, Kind: kind, State: update.State, RemoteStatus: update.RemoteStatus}
		if err := c.tasks.Upsert(ctx, rec); err != nil {
			c.log.Warnf("failed to record task %s: %v", taskID, err)
			return
		}
	} else {
		event.OldState = existing.State
		if existing.State == update.State && (update.Progress == nil || *update.Progress == existing.Progress) {
			event = nil
		}
	}

	if err := c.tasks.UpdateStatus(ctx, taskID, update); err != nil {
		c.log.Warnf("failed to update task %s: %v", taskID, err)
		return
	}
	if event != nil {
		c.broadcast(event)
	}
}

// Delete removes a task from the service, then from the task list and the
// image cache. A task the service no longer knows counts as deleted.
func (c *Client) Delete(ctx context.Context, kind types.TaskKind, taskID string) (*types.DeleteResponse, error) {
	ep, err := c.Endpoint(kind)
	if err != nil {
		return nil, err
	}

	resp, err := c.remote.Delete(ctx, ep.Prefix, taskID)
	switch {
	case errors.Is(err, remote.ErrTaskNotFound):
		resp = &types.DeleteResponse{TaskID: taskID, Success: true, Message: "task already removed"}
	case err != nil:
		return nil, fmt.Errorf("failed to delete task: %w", err)
	case !resp.Success:
		return resp, nil
	}

	c.forget(ctx, kind, taskID, "deleted")
	return resp, nil
}

// forget drops a task from the task list and the image cache.
func (c *Client) forget(ctx context.Context, kind types.TaskKind, taskID, eventType string) {
	var old types.TaskState
	if existing, err := c.tasks.Get(ctx, taskID); err == nil && existing != nil {
		old = existing.State
		if kind == "" {
			kind = existing.Kind
		}
	}

	if err := c.tasks.Delete(ctx, taskID); err != nil {
		c.log.Warnf("failed to remove task %s: %v", taskID, err)
	}
	c.assets.Delete(ctx, taskID)

	c.broadcast(&types.TaskEvent{
		TaskID:    taskID,
		Kind:      kind,
		EventType: eventType,
		OldState:  old,
		Timestamp: time.Now(),
	})
}

// Refresh polls every unfinished task, drops the ones the service no longer
// knows, then sweeps the image cache.
func (c *Client) Refresh(ctx context.Context) (types.SweepResult, error) {
	pending, err := c.tasks.List(ctx, &types.TaskFilter{
		States: []types.TaskState{types.TaskSubmitted, types.TaskPolling},
	})
	if err != nil {
		return types.SweepResult{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	for _, t := range pending {
		if ctx.Err() != nil {
			return types.SweepResult{}, ctx.Err()
		}
		if _, err := c.Status(ctx, t.Kind, t.ID); err != nil && !errors.Is(err, remote.ErrTaskNotFound) {
			c.log.Warnf("failed to refresh task %s: %v", t.ID, err)
		}
	}

	return c.Reconcile(ctx)
}

// Reconcile sweeps the image cache down to the ids in the task list.
// Nothing is swept when the task list cannot be read.
func (c *Client) Reconcile(ctx context.Context) (types.SweepResult, error) {
	ids, err := c.tasks.IDs(ctx)
	if err != nil {
		return types.SweepResult{}, fmt.Errorf("failed to list task ids: %w", err)
	}
	result := c.assets.Sweep(ctx, ids)
	if len(result.Removed) > 0 {
		c.log.Debugf("swept %d orphaned cache entries", len(result.Removed))
	}
	return result, nil
}

// Restore returns the cached images of a task for repopulating its inputs.
func (c *Client) Restore(ctx context.Context, taskID string) (*types.CachedImages, bool) {
	return c.assets.Load(ctx, taskID)
}

// GetTask retrieves a task from the local list.
func (c *Client) GetTask(ctx context.Context, taskID string) (*types.TaskRecord, error) {
	return c.tasks.Get(ctx, taskID)
}

// ListTasks retrieves local tasks matching the filter.
func (c *Client) ListTasks(ctx context.Context, filter *types.TaskFilter) ([]*types.TaskRecord, error) {
	return c.tasks.List(ctx, filter)
}

// submission builds the multipart request for an endpoint.
func (c *Client) submission(ctx context.Context, ep Endpoint, req *Request) *remote.Submission {
	sub := &remote.Submission{
		Params:  url.Values{},
		Headers: c.headers(ctx),
	}

	for _, s := range ep.Slots {
		img := req.Images[s.Name]
		if img == nil {
			continue
		}
		sub.Files = append(sub.Files, remote.FilePart{
			Field:    s.Field,
			FileName: img.FileName,
			MimeType: img.MimeType,
			Data:     img.Data,
		})
	}

	for k, v := range req.Params {
		sub.Params.Set(k, v)
	}
	sub.Params.Set("vl_model", c.prefs.GetOr(ctx, types.PrefVLModel, types.DefaultVLModel))
	sub.Params.Set("img_gen_model", c.prefs.GetOr(ctx, types.PrefImgGenModel, types.DefaultImgGenModel))

	return sub
}

// headers returns credential headers in manual mode, and none otherwise.
func (c *Client) headers(ctx context.Context) http.Header {
	h := http.Header{}
	if types.ConfigMethod(c.prefs.GetOr(ctx, types.PrefConfigMethod, "")) != types.ConfigManual {
		return h
	}
	if key := c.creds.Load(ctx, types.CredentialVLAPIKey); key != "" {
		h.Set(remote.HeaderVLAPIKey, key)
	}
	if key := c.creds.Load(ctx, types.CredentialImageAPIKey); key != "" {
		h.Set(remote.HeaderImageAPIKey, key)
	}
	return h
}

// Subscribe registers a watcher for task events. The returned cancel
// function unregisters it and closes the channel.
func (c *Client) Subscribe() (string, <-chan *types.TaskEvent, func()) {
	c.watchersMu.Lock()
	defer c.watchersMu.Unlock()

	id := uuid.NewString()
	ch := make(chan *types.TaskEvent, 64)
	c.watchers[id] = ch

	cancel := func() {
		c.watchersMu.Lock()
		defer c.watchersMu.Unlock()

		if ch, ok := c.watchers[id]; ok {
			close(ch)
			delete(c.watchers, id)
		}
	}
	return id, ch, cancel
}

func (c *Client) broadcast(event *types.TaskEvent) {
	c.watchersMu.RLock()
	defer c.watchersMu.RUnlock()

	for _, ch := range c.watchers {
		select {
		case ch <- event:
		default:
			// Watcher is behind, drop
		}
	}
}
