// Package types provides shared type definitions for the tryon companion.
package types

import (
	"time"
)

// TaskKind identifies which generation pipeline a task belongs to.
type TaskKind string

const (
	KindAccessory TaskKind = "accessory"
	KindClothing  TaskKind = "clothing"
)

// TaskState is the client-side lifecycle of a task.
// Deletion removes the record rather than setting a state.
type TaskState string

const (
	TaskSubmitted TaskState = "submitted" // Accepted by the remote service
	TaskPolling   TaskState = "polling"   // Remote reports pending/processing
	TaskSucceeded TaskState = "succeeded" // Remote reports completed
	TaskFailed    TaskState = "failed"    // Remote reports failed
)

// IsFinal reports whether the remote service will not change the task any further.
func (s TaskState) IsFinal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// RemoteStatus is the status vocabulary of the remote service.
type RemoteStatus string

const (
	RemotePending    RemoteStatus = "pending"
	RemoteProcessing RemoteStatus = "processing"
	RemoteCompleted  RemoteStatus = "completed"
	RemoteFailed     RemoteStatus = "failed"
)

// State maps a remote status onto the client lifecycle.
func (s RemoteStatus) State() TaskState {
	switch s {
	case RemoteCompleted:
		return TaskSucceeded
	case RemoteFailed:
		return TaskFailed
	case RemotePending, RemoteProcessing:
		return TaskPolling
	default:
		return TaskSubmitted
	}
}

// TaskRecord is one entry of the local task list.
// The ID is assigned by the remote service and is reused across resubmission.
type TaskRecord struct {
	ID             string       `json:"id"`
	Kind           TaskKind     `json:"kind"`
	State          TaskState    `json:"state"`
	RemoteStatus   RemoteStatus `json:"remote_status,omitempty"`
	Message        string       `json:"message,omitempty"`
	Progress       int          `json:"progress"` // 0-100
	ResultImageURL string       `json:"result_image_url,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TaskFilter defines criteria for listing local tasks.
type TaskFilter struct {
	Kind   TaskKind    `json:"kind,omitempty"`
	States []TaskState `json:"states,omitempty"`
	Limit  int         `json:"limit,omitempty"`
}

// TaskStatusUpdate carries the fields refreshed by a status poll.
type TaskStatusUpdate struct {
	State          TaskState
	RemoteStatus   RemoteStatus
	Message        *string
	Progress       *int
	ResultImageURL *string
	ErrorMessage   *string
}

// SubmitResponse is returned by the remote submit and resubmit endpoints.
type SubmitResponse struct {
	TaskID        string   `json:"task_id"`
	TaskType      TaskKind `json:"task_type"`
	Message       string   `json:"message"`
	DeletedTaskID *string  `json:"deleted_task_id,omitempty"` // Evicted by the server's task cap
}

// StatusResponse is returned by the remote status endpoint.
type StatusResponse struct {
	TaskID   string       `json:"task_id"`
	TaskType TaskKind     `json:"task_type"`
	Status   RemoteStatus `json:"status"`
	Message  *string      `json:"message,omitempty"`
	Progress *int         `json:"progress,omitempty"`
}

// ResultResponse is returned by the remote result endpoint.
type ResultResponse struct {
	TaskID            string       `json:"task_id"`
	TaskType          TaskKind     `json:"task_type"`
	Status            RemoteStatus `json:"status"`
	ResultImageURL    *string      `json:"result_image_url,omitempty"`
	AccessoryImageURL *string      `json:"accessory_image_url,omitempty"`
	AccessoryType     *string      `json:"accessory_type,omitempty"`
	ClothingImageURL  *string      `json:"clothing_image_url,omitempty"`
	ClothingType      *string      `json:"clothing_type,omitempty"`
	PersonImageURL    *string      `json:"person_image_url,omitempty"`
	PersonPosition    *string      `json:"person_position,omitempty"`
	ErrorMessage      *string      `json:"error_message,omitempty"`
}

// DeleteResponse is returned by the remote delete endpoint.
type DeleteResponse struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
