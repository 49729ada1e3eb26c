// Package handlers provides HTTP request handlers.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/tryon-ai/tryon/internal/core/task"
	"github.com/tryon-ai/tryon/internal/remote"
	"github.com/tryon-ai/tryon/pkg/types"
)

// maxUploadMemory bounds the multipart form held in memory; larger files spill to disk.
const maxUploadMemory = 32 << 20

// TaskHandler handles task-related requests.
type TaskHandler struct {
	client *task.Client
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(client *task.Client) *TaskHandler {
	return &TaskHandler{client: client}
}

// Submit sends a new task for kind. Image slots are multipart files named
// after the slot; every other form value is forwarded as a parameter.
func (h *TaskHandler) Submit(kind types.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.parseRequest(c, kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := h.client.Submit(c.Request.Context(), kind, req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// Resubmit restarts a task of kind with new inputs.
func (h *TaskHandler) Resubmit(kind types.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.parseRequest(c, kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := h.client.Resubmit(c.Request.Context(), kind, c.Param("id"), req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// Status returns the remote status of a task.
func (h *TaskHandler) Status(kind types.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.client.Status(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Result returns the outcome of a task.
func (h *TaskHandler) Result(kind types.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.client.Result(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Delete removes a task remotely and locally.
func (h *TaskHandler) Delete(kind types.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.client.Delete(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// List returns local tasks matching the filter.
func (h *TaskHandler) List(c *gin.Context) {
	filter := &types.TaskFilter{}

	// Parse query params
	if states := c.QueryArray("state"); len(states) > 0 {
		for _, s := range states {
			filter.States = append(filter.States, types.TaskState(s))
		}
	}
	if kind := c.Query("kind"); kind != "" {
		filter.Kind = types.TaskKind(kind)
	}

	tasks, err := h.client.ListTasks(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*types.TaskRecord{}
	}

	c.JSON(http.StatusOK, tasks)
}

// Refresh polls unfinished tasks and sweeps the image cache.
func (h *TaskHandler) Refresh(c *gin.Context) {
	result, err := h.client.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Sweep reconciles the image cache with the task list without polling.
func (h *TaskHandler) Sweep(c *gin.Context) {
	result, err := h.client.Reconcile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Images lists the cached image slots of a task.
func (h *TaskHandler) Images(c *gin.Context) {
	id := c.Param("id")

	cached, ok := h.client.Restore(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached images"})
		return
	}

	slots := make([]types.SlotInfo, 0, len(cached.Images))
	for name, img := range cached.Images {
		info := types.SlotInfo{Slot: name, Present: img != nil}
		if img != nil {
			info.FileName = img.FileName
			info.MimeType = img.MimeType
			info.Size = int64(len(img.Data))
		}
		slots = append(slots, info)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })

	c.JSON(http.StatusOK, types.CacheEntry{
		TaskID:  cached.TaskID,
		SavedAt: cached.SavedAt,
		Slots:   slots,
	})
}

// Image returns the raw bytes of one cached slot.
func (h *TaskHandler) Image(c *gin.Context) {
	id := c.Param("id")
	slot := c.Param("slot")

	cached, ok := h.client.Restore(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached images"})
		return
	}
	img := cached.Images[slot]
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", img.FileName))
	c.Data(http.StatusOK, img.MimeType, img.Data)
}

func (h *TaskHandler) parseRequest(c *gin.Context, kind types.TaskKind) (*task.Request, error) {
	ep, err := h.client.Endpoint(kind)
	if err != nil {
		return nil, err
	}
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	form := c.Request.MultipartForm

	req := &task.Request{
		Images: make(types.ImageSet),
		Params: make(map[string]string),
	}
	for _, s := range ep.Slots {
		files := form.File[s.Name]
		if len(files) == 0 {
			continue
		}
		img, err := readImage(files[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", s.Name, err)
		}
		req.Images[s.Name] = img
	}
	for name, values := range form.Value {
		if len(values) > 0 {
			req.Params[name] = values[0]
		}
	}
	return req, nil
}

func readImage(fh *multipart.FileHeader) (*types.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &types.Image{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// writeError maps task errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var statusErr *remote.StatusError
	switch {
	case errors.Is(err, task.ErrUnknownKind), errors.Is(err, remote.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrMissingImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &statusErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "remote_status": statusErr.StatusCode})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
