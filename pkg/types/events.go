package types

import "time"

// WebSocketMessage represents a message sent over WebSocket for real-time updates.
type WebSocketMessage struct {
	Type    string      `json:"type"`    // "initial_tasks", "task_event"
	Payload interface{} `json:"payload"` // The actual data
}

// TaskEvent is emitted whenever a task's local record changes.
type TaskEvent struct {
	TaskID    string    `json:"task_id"`
	Kind      TaskKind  `json:"kind"`
	EventType string    `json:"event_type"` // "submitted", "resubmitted", "status_change", "deleted", "evicted"
	OldState  TaskState `json:"old_state,omitempty"`
	NewState  TaskState `json:"new_state,omitempty"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
