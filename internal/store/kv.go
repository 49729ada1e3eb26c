package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Settings namespaces.
const (
	NamespaceCredential = "credential"
	NamespacePreference = "pref"
)

// SettingsStore is a namespaced string key/value table. Credentials are kept
// here in encrypted form next to plain user preferences.
type SettingsStore struct {
	store *Store
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(store *Store) *SettingsStore {
	return &SettingsStore{store: store}
}

// Get returns the value stored under namespace/name.
func (ss *SettingsStore) Get(ctx context.Context, namespace, name string) (string, bool, error) {
	var content string
	found := false
	err := ss.store.read(ctx, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx,
			"SELECT content FROM settings WHERE namespace = ? AND name = ?",
			namespace, name,
		).Scan(&content)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get setting: %w", err)
		}
		found = true
		return nil
	})
	return content, found, err
}

// Set stores value under namespace/name, replacing any earlier value.
func (ss *SettingsStore) Set(ctx context.Context, namespace, name, value string) error {
	now := time.Now().Unix()
	return ss.store.write(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO settings (namespace, name, content, mtime)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(namespace, name) DO UPDATE SET
				content = excluded.content,
				mtime = excluded.mtime
		`, namespace, name, value, now)
		if err != nil {
			return fmt.Errorf("failed to store setting: %w", err)
		}
		return nil
	})
}

// Delete removes namespace/name. Deleting an absent key is not an error.
func (ss *SettingsStore) Delete(ctx context.Context, namespace, name string) error {
	return ss.store.write(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx,
			"DELETE FROM settings WHERE namespace = ? AND name = ?",
			namespace, name,
		); err != nil {
			return fmt.Errorf("failed to delete setting: %w", err)
		}
		return nil
	})
}

// List returns every name/value pair of a namespace.
func (ss *SettingsStore) List(ctx context.Context, namespace string) (map[string]string, error) {
	values := make(map[string]string)
	err := ss.store.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT name, content FROM settings WHERE namespace = ?", namespace,
		)
		if err != nil {
			return fmt.Errorf("failed to list settings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name, content string
			if err := rows.Scan(&name, &content); err != nil {
				return fmt.Errorf("failed to scan setting: %w", err)
			}
			values[name] = content
		}
		return rows.Err()
	})
	return values, err
}

// Namespace returns a view of one namespace. It satisfies crypto.CredentialBackend.
func (ss *SettingsStore) Namespace(namespace string) *Namespace {
	return &Namespace{settings: ss, namespace: namespace}
}

// Namespace is a SettingsStore bound to one namespace.
type Namespace struct {
	settings  *SettingsStore
	namespace string
}

func (n *Namespace) Get(ctx context.Context, name string) (string, bool, error) {
	return n.settings.Get(ctx, n.namespace, name)
}

func (n *Namespace) Set(ctx context.Context, name, value string) error {
	return n.settings.Set(ctx, n.namespace, name, value)
}

func (n *Namespace) Delete(ctx context.Context, name string) error {
	return n.settings.Delete(ctx, n.namespace, name)
}

// GetOr returns the stored value or fallback when it is absent or unreadable.
func (n *Namespace) GetOr(ctx context.Context, name, fallback string) string {
	v, ok, err := n.Get(ctx, name)
	if err != nil || !ok || v == "" {
		return fallback
	}
	return v
}

// List returns every entry of the namespace.
func (n *Namespace) List(ctx context.Context) (map[string]string, error) {
	return n.settings.List(ctx, n.namespace)
}
