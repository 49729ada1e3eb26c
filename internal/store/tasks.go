package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tryon-ai/tryon/pkg/types"
)

// TaskList is the local, authoritative list of tasks the client still tracks.
// Its ids are the valid set for orphan sweeps of the asset cache.
type TaskList struct {
	store *Store
}

// NewTaskList creates a new TaskList.
func NewTaskList(store *Store) *TaskList {
	return &TaskList{store: store}
}

const taskColumns = `
	id, kind, state, remote_status, message, progress,
	result_image_url, error_message, ctime, mtime
`

// Upsert inserts a task or resets an existing one, keeping its creation time.
func (tl *TaskList) Upsert(ctx context.Context, task *types.TaskRecord) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	return tl.store.write(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				kind = excluded.kind,
				state = excluded.state,
				remote_status = excluded.remote_status,
				message = excluded.message,
				progress = excluded.progress,
				result_image_url = excluded.result_image_url,
				error_message = excluded.error_message,
				mtime = excluded.mtime
		`,
			task.ID,
			string(task.Kind),
			string(task.State),
			string(task.RemoteStatus),
			task.Message,
			task.Progress,
			task.ResultImageURL,
			task.ErrorMessage,
			task.CreatedAt.UnixMilli(),
			task.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert task: %w", err)
		}
		return nil
	})
}

// Get retrieves a task by ID. A missing task yields nil without error.
func (tl *TaskList) Get(ctx context.Context, id string) (*types.TaskRecord, error) {
	var task *types.TaskRecord
	err := tl.store.read(ctx, func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
		t, err := scanTask(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, err
}

// UpdateStatus applies a status poll result to an existing task.
func (tl *TaskList) UpdateStatus(ctx context.Context, id string, update *types.TaskStatusUpdate) error {
	setClauses := []string{"state = ?"}
	args := []interface{}{string(update.State)}

	if update.RemoteStatus != "" {
		setClauses = append(setClauses, "remote_status = ?")
		args = append(args, string(update.RemoteStatus))
	}
	if update.Message != nil {
		setClauses = append(setClauses, "message = ?")
		args = append(args, *update.Message)
	}
	if update.Progress != nil {
		setClauses = append(setClauses, "progress = ?")
		args = append(args, *update.Progress)
	}
	if update.ResultImageURL != nil {
		setClauses = append(setClauses, "result_image_url = ?")
		args = append(args, *update.ResultImageURL)
	}
	if update.ErrorMessage != nil {
		setClauses = append(setClauses, "error_message = ?")
		args = append(args, *update.ErrorMessage)
	}

	// Always update mtime
	setClauses = append(setClauses, "mtime = ?")
	args = append(args, time.Now().UnixMilli())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(setClauses, ", "))

	return tl.store.write(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("task not found: %s", id)
		}
		return nil
	})
}

// Delete removes a task. Deleting an unknown task is not an error.
func (tl *TaskList) Delete(ctx context.Context, id string) error {
	return tl.store.write(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
}

// List retrieves tasks matching the filter, newest first.
func (tl *TaskList) List(ctx context.Context, filter *types.TaskFilter) ([]*types.TaskRecord, error) {
	var whereClauses []string
	var args []interface{}

	if filter != nil {
		if len(filter.States) > 0 {
			placeholders := make([]string, len(filter.States))
			for i, s := range filter.States {
				placeholders[i] = "?"
				args = append(args, string(s))
			}
			whereClauses = append(whereClauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
		}

		if filter.Kind != "" {
			whereClauses = append(whereClauses, "kind = ?")
			args = append(args, string(filter.Kind))
		}
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY ctime DESC, id"

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	tasks := []*types.TaskRecord{}
	err := tl.store.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query tasks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// IDs returns the id of every tracked task.
func (tl *TaskList) IDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := tl.store.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT id FROM tasks ORDER BY id")
		if err != nil {
			return fmt.Errorf("failed to query task ids: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan task id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTask scans a single task from a row.
func scanTask(row rowScanner) (*types.TaskRecord, error) {
	var task types.TaskRecord
	var kind, state string
	var remoteStatus, message, resultURL, errorMsg sql.NullString
	var ctime, mtime int64

	err := row.Scan(
		&task.ID,
		&kind,
		&state,
		&remoteStatus,
		&message,
		&task.Progress,
		&resultURL,
		&errorMsg,
		&ctime,
		&mtime,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	task.Kind = types.TaskKind(kind)
	task.State = types.TaskState(state)
	task.RemoteStatus = types.RemoteStatus(remoteStatus.String)
	task.Message = message.String
	task.ResultImageURL = resultURL.String
	task.ErrorMessage = errorMsg.String
	task.CreatedAt = time.UnixMilli(ctime)
	task.UpdatedAt = time.UnixMilli(mtime)

	return &task, nil
}
