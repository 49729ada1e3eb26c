package store

import (
	"context"
	"testing"
)

func TestSettingsStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	ss := NewSettingsStore(openTestStore(t))

	if _, ok, err := ss.Get(ctx, NamespacePreference, "theme"); err != nil || ok {
		t.Fatalf("Expected absent theme, got ok=%v err=%v", ok, err)
	}

	if err := ss.Set(ctx, NamespacePreference, "theme", "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := ss.Set(ctx, NamespacePreference, "theme", "light"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	v, ok, err := ss.Get(ctx, NamespacePreference, "theme")
	if err != nil || !ok || v != "light" {
		t.Errorf("Expected light, got %q ok=%v err=%v", v, ok, err)
	}

	if err := ss.Delete(ctx, NamespacePreference, "theme"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := ss.Delete(ctx, NamespacePreference, "theme"); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestSettingsStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	ss := NewSettingsStore(openTestStore(t))

	creds := ss.Namespace(NamespaceCredential)
	prefs := ss.Namespace(NamespacePreference)

	if err := creds.Set(ctx, "vlApiKey", "ciphertext"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := prefs.Get(ctx, "vlApiKey"); ok {
		t.Errorf("Expected credential to be invisible in preferences")
	}

	all, err := ss.List(ctx, NamespaceCredential)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if all["vlApiKey"] != "ciphertext" || len(all) != 1 {
		t.Errorf("Unexpected credential listing: %v", all)
	}
}

func TestNamespace_GetOr(t *testing.T) {
	ctx := context.Background()
	prefs := NewSettingsStore(openTestStore(t)).Namespace(NamespacePreference)

	if got := prefs.GetOr(ctx, "vlModel", "qwen3-vl-plus"); got != "qwen3-vl-plus" {
		t.Errorf("Expected fallback, got %q", got)
	}
	prefs.Set(ctx, "vlModel", "qwen-vl-max")
	if got := prefs.GetOr(ctx, "vlModel", "qwen3-vl-plus"); got != "qwen-vl-max" {
		t.Errorf("Expected stored value, got %q", got)
	}
}
