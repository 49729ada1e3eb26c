// Package api provides the local REST API for the tryon UI.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tryon-ai/tryon/internal/api/handlers"
	"github.com/tryon-ai/tryon/internal/core/task"
	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/pkg/types"
)

// Router holds all API dependencies and routes.
type Router struct {
	engine     *gin.Engine
	taskClient *task.Client
	kinds      []types.TaskKind
	log        logger.Logger

	tasks       *handlers.TaskHandler
	credentials *handlers.CredentialHandler
	preferences *handlers.PreferenceHandler

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// WebSocket clients, each with its own write lock
	wsClientsMu sync.RWMutex
	wsClients   map[*websocket.Conn]*sync.Mutex

	unsubscribe func()
}

// NewRouter creates a new API router serving the given task kinds.
func NewRouter(
	taskClient *task.Client,
	kinds []types.TaskKind,
	vault handlers.Vault,
	prefs handlers.PreferenceStore,
	log logger.Logger,
) *Router {
	r := &Router{
		engine:      gin.Default(),
		taskClient:  taskClient,
		kinds:       kinds,
		log:         log,
		tasks:       handlers.NewTaskHandler(taskClient),
		credentials: handlers.NewCredentialHandler(vault),
		preferences: handlers.NewPreferenceHandler(prefs),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Loopback only; the UI may be served from a dev server
			},
		},
		wsClients: make(map[*websocket.Conn]*sync.Mutex),
	}

	r.setupRoutes()

	_, events, cancel := taskClient.Subscribe()
	r.unsubscribe = cancel
	go r.broadcastTaskEvents(events)

	return r
}

// setupRoutes configures all API routes.
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := r.engine.Group("/api/v1")
	{
		// One group per pipeline, mirroring the service's layout
		for _, kind := range r.kinds {
			g := v1.Group("/" + string(kind))
			g.POST("/submit", r.tasks.Submit(kind))
			g.PUT("/resubmit/:id", r.tasks.Resubmit(kind))
			g.GET("/status/:id", r.tasks.Status(kind))
			g.GET("/result/:id", r.tasks.Result(kind))
			g.DELETE("/task/:id", r.tasks.Delete(kind))
		}

		// Local task list and image cache
		tasks := v1.Group("/tasks")
		{
			tasks.GET("", r.tasks.List)
			tasks.POST("/refresh", r.tasks.Refresh)
			tasks.GET("/:id/images", r.tasks.Images)
			tasks.GET("/:id/images/:slot", r.tasks.Image)
		}
		v1.POST("/cache/sweep", r.tasks.Sweep)

		// Credentials
		creds := v1.Group("/credentials")
		{
			creds.GET("/:name", r.credentials.Get)
			creds.PUT("/:name", r.credentials.Put)
			creds.DELETE("/:name", r.credentials.Delete)
		}

		// Preferences
		prefs := v1.Group("/preferences")
		{
			prefs.GET("", r.preferences.List)
			prefs.GET("/:key", r.preferences.Get)
			prefs.PUT("/:key", r.preferences.Put)
		}
	}

	// WebSocket for real-time updates
	r.engine.GET("/ws", r.handleWebSocket)
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Close stops the event broadcaster.
func (r *Router) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// WebSocket handler

func (r *Router) handleWebSocket(c *gin.Context) {
	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	// Register client
	writeMu := &sync.Mutex{}
	r.wsClientsMu.Lock()
	r.wsClients[conn] = writeMu
	r.wsClientsMu.Unlock()

	defer func() {
		r.wsClientsMu.Lock()
		delete(r.wsClients, conn)
		r.wsClientsMu.Unlock()
		conn.Close()
	}()

	// Send the current task list
	tasks, err := r.taskClient.ListTasks(c.Request.Context(), &types.TaskFilter{})
	if err == nil {
		if tasks == nil {
			tasks = []*types.TaskRecord{}
		}
		r.send(conn, writeMu, types.WebSocketMessage{Type: "initial_tasks", Payload: tasks})
	}

	// Handle incoming messages (e.g., request a single task)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req struct {
			Action string `json:"action"`
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		switch req.Action {
		case "get_task":
			rec, err := r.taskClient.GetTask(c.Request.Context(), req.TaskID)
			if err != nil || rec == nil {
				continue
			}
			r.send(conn, writeMu, types.WebSocketMessage{Type: "task", Payload: rec})
		}
	}
}

// broadcastTaskEvents forwards task events to all WebSocket clients.
func (r *Router) broadcastTaskEvents(events <-chan *types.TaskEvent) {
	for event := range events {
		r.BroadcastMessage("task_event", event)
	}
}

// BroadcastMessage sends a message to all WebSocket clients.
func (r *Router) BroadcastMessage(msgType string, payload interface{}) {
	msg := types.WebSocketMessage{
		Type:    msgType,
		Payload: payload,
	}

	r.wsClientsMu.RLock()
	defer r.wsClientsMu.RUnlock()

	for conn, mu := range r.wsClients {
		// Client will be removed when its read fails
		r.send(conn, mu, msg)
	}
}

func (r *Router) send(conn *websocket.Conn, mu *sync.Mutex, msg types.WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Warnf("failed to encode %s message: %v", msg.Type, err)
		return
	}

	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		r.log.Debugf("websocket write failed: %v", err)
	}
}
