package store

import (
	"context"
	"database/sql"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/pkg/types"
)

// AssetStore caches the images submitted with each task so a restarted UI can
// repopulate its form. It is an acceleration layer: every storage failure is
// logged and reported as "nothing saved" or "not found", never as an error.
type AssetStore struct {
	store *Store
	log   logger.Logger
	now   func() time.Time
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(store *Store) *AssetStore {
	return &AssetStore{
		store: store,
		log:   store.log,
		now:   time.Now,
	}
}

type slotRow struct {
	slot     string
	present  bool
	content  []byte
	fileName string
	mimeType string
}

// Save replaces the entry for taskID with images. Nil images are kept as absent
// slots. It reports whether the entry was persisted; an empty taskID is a no-op.
func (as *AssetStore) Save(ctx context.Context, taskID string, images types.ImageSet) bool {
	if taskID == "" {
		as.log.Debugf("asset save skipped: empty task id")
		return false
	}

	rows := make([]slotRow, 0, len(images))
	for slot, img := range images {
		if img == nil {
			rows = append(rows, slotRow{slot: slot})
			continue
		}
		mimeType := resolveMimeType(img)
		rows = append(rows, slotRow{
			slot:     slot,
			present:  true,
			content:  img.Data,
			fileName: resolveFileName(slot, img.FileName, mimeType),
			mimeType: mimeType,
		})
	}
	savedAt := as.now().UnixMilli()

	err := as.store.write(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec("DELETE FROM task_image_slots WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("failed to clear slots: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO task_images (task_id, saved_at) VALUES (?, ?)
			ON CONFLICT(task_id) DO UPDATE SET saved_at = excluded.saved_at
		`, taskID, savedAt); err != nil {
			return fmt.Errorf("failed to store entry: %w", err)
		}

		for _, r := range rows {
			var content []byte
			if r.present {
				content = r.content
				if content == nil {
					content = []byte{}
				}
			}
			if _, err := tx.Exec(`
				INSERT INTO task_image_slots (task_id, slot, present, content, file_name, mimetype, size)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, taskID, r.slot, r.present, content, r.fileName, r.mimeType, len(r.content)); err != nil {
				return fmt.Errorf("failed to store slot %s: %w", r.slot, err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		as.log.Warnf("failed to cache images for task %s: %v", taskID, err)
		return false
	}

	as.log.Debugf("cached %d slot(s) for task %s", len(rows), taskID)
	return true
}

// Load returns the images cached for taskID. The boolean is false when nothing
// was ever saved, after Delete, and when the store cannot be read.
func (as *AssetStore) Load(ctx context.Context, taskID string) (*types.CachedImages, bool) {
	if taskID == "" {
		return nil, false
	}

	var cached *types.CachedImages
	err := as.store.read(ctx, func(db *sql.DB) error {
		var savedAt int64
		err := db.QueryRowContext(ctx,
			"SELECT saved_at FROM task_images WHERE task_id = ?", taskID,
		).Scan(&savedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}

		rows, err := db.QueryContext(ctx, `
			SELECT slot, present, content, file_name, mimetype
			FROM task_image_slots WHERE task_id = ?
		`, taskID)
		if err != nil {
			return fmt.Errorf("failed to get slots: %w", err)
		}
		defer rows.Close()

		images := make(types.ImageSet)
		for rows.Next() {
			var (
				slot     string
				present  bool
				content  []byte
				fileName sql.NullString
				mimeType sql.NullString
			)
			if err := rows.Scan(&slot, &present, &content, &fileName, &mimeType); err != nil {
				return fmt.Errorf("failed to scan slot: %w", err)
			}
			if !present {
				images[slot] = nil
				continue
			}
			if content == nil {
				content = []byte{}
			}
			images[slot] = &types.Image{
				FileName: fileName.String,
				MimeType: mimeType.String,
				Data:     content,
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read slots: %w", err)
		}

		cached = &types.CachedImages{
			TaskID:  taskID,
			SavedAt: time.UnixMilli(savedAt),
			Images:  images,
		}
		return nil
	})
	if err != nil {
		as.log.Warnf("failed to load cached images for task %s: %v", taskID, err)
		return nil, false
	}

	return cached, cached != nil
}

// Delete removes the entry for taskID. Deleting an absent entry is a no-op.
func (as *AssetStore) Delete(ctx context.Context, taskID string) bool {
	if taskID == "" {
		return false
	}

	err := as.store.write(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := deleteEntry(tx, taskID); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		as.log.Warnf("failed to delete cached images for task %s: %v", taskID, err)
		return false
	}
	return true
}

// Sweep removes every entry whose task id is not in validIDs. It scans all
// stored keys once, inside a single queued job, so it cannot interleave with a
// save or delete.
func (as *AssetStore) Sweep(ctx context.Context, validIDs []string) types.SweepResult {
	valid := make(map[string]struct{}, len(validIDs))
	for _, id := range validIDs {
		valid[id] = struct{}{}
	}

	result := types.SweepResult{Removed: []string{}}
	err := as.store.write(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		keys, err := scanKeys(tx)
		if err != nil {
			return err
		}

		var removed []string
		for _, key := range keys {
			if _, ok := valid[key]; ok {
				continue
			}
			if err := deleteEntry(tx, key); err != nil {
				return err
			}
			removed = append(removed, key)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit sweep: %w", err)
		}

		result.Scanned = len(keys)
		if removed != nil {
			result.Removed = removed
		}
		return nil
	})
	if err != nil {
		as.log.Warnf("orphan sweep failed: %v", err)
		return types.SweepResult{Removed: []string{}}
	}

	if len(result.Removed) > 0 {
		as.log.Infof("swept %d orphaned cache entr(ies) of %d", len(result.Removed), result.Scanned)
	}
	return result
}

// List returns a payload-free summary of every cached entry.
func (as *AssetStore) List(ctx context.Context) ([]types.CacheEntry, error) {
	entries := []types.CacheEntry{}
	err := as.store.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT i.task_id, i.saved_at, s.slot, s.present, s.file_name, s.mimetype, s.size
			FROM task_images i
			LEFT JOIN task_image_slots s ON s.task_id = i.task_id
			ORDER BY i.saved_at DESC, i.task_id, s.slot
		`)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		defer rows.Close()

		index := make(map[string]int)
		for rows.Next() {
			var (
				taskID   string
				savedAt  int64
				slot     sql.NullString
				present  sql.NullBool
				fileName sql.NullString
				mimeType sql.NullString
				size     sql.NullInt64
			)
			if err := rows.Scan(&taskID, &savedAt, &slot, &present, &fileName, &mimeType, &size); err != nil {
				return fmt.Errorf("failed to scan entry: %w", err)
			}

			i, ok := index[taskID]
			if !ok {
				i = len(entries)
				index[taskID] = i
				entries = append(entries, types.CacheEntry{
					TaskID:  taskID,
					SavedAt: time.UnixMilli(savedAt),
					Slots:   []types.SlotInfo{},
				})
			}
			if slot.Valid {
				entries[i].Slots = append(entries[i].Slots, types.SlotInfo{
					Slot:     slot.String,
					Present:  present.Bool,
					FileName: fileName.String,
					MimeType: mimeType.String,
					Size:     size.Int64,
				})
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Keys returns every stored task id in ascending order.
func (as *AssetStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := as.store.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT task_id FROM task_images")
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return fmt.Errorf("failed to scan key: %w", err)
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	sort.Strings(keys)
	return keys, err
}

func scanKeys(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query("SELECT task_id FROM task_images ORDER BY task_id")
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func deleteEntry(tx *sql.Tx, taskID string) error {
	if _, err := tx.Exec("DELETE FROM task_image_slots WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete slots of %s: %w", taskID, err)
	}
	if _, err := tx.Exec("DELETE FROM task_images WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", taskID, err)
	}
	return nil
}

// resolveMimeType prefers the caller's type, then the file extension, then the content.
func resolveMimeType(img *types.Image) string {
	if img.MimeType != "" {
		return img.MimeType
	}
	if ext := filepath.Ext(img.FileName); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	if len(img.Data) > 0 {
		return mimetype.Detect(img.Data).String()
	}
	return "application/octet-stream"
}

// resolveFileName keeps the caller's name or builds one from the slot, e.g. "person.png".
func resolveFileName(slot, fileName, mimeType string) string {
	if fileName != "" {
		return fileName
	}
	base := strings.TrimSuffix(slot, "Image")
	if base == "" {
		base = "image"
	}
	ext := ".bin"
	if m := mimetype.Lookup(stripParams(mimeType)); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return base + ext
}

func stripParams(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}
