package crypto

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tryon-ai/tryon/internal/logger"
)

// memBackend is an in-memory CredentialBackend.
type memBackend struct {
	values map[string]string
	failOn string
}

func newMemBackend() *memBackend {
	return &memBackend{values: make(map[string]string)}
}

func (m *memBackend) Get(_ context.Context, name string) (string, bool, error) {
	if m.failOn == "get" {
		return "", false, errors.New("backend unavailable")
	}
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *memBackend) Set(_ context.Context, name, value string) error {
	if m.failOn == "set" {
		return errors.New("quota exceeded")
	}
	m.values[name] = value
	return nil
}

func (m *memBackend) Delete(_ context.Context, name string) error {
	delete(m.values, name)
	return nil
}

// testWorkFactor keeps scrypt cheap in tests.
const testWorkFactor = 4

func newTestVault(userAgent string, backend CredentialBackend) *Vault {
	kd := NewKeyDeriver(StaticSignals(testSignals(userAgent)))
	return NewVault(kd, backend, testWorkFactor, logger.Discard())
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault("A", newMemBackend())

	for _, p := range []string{"sk-123", "a", "密钥-with-unicode", strings.Repeat("x", 4096)} {
		enc := v.Encrypt(p)
		if enc == "" {
			t.Fatalf("Expected ciphertext for %q", p)
		}
		if enc == p {
			t.Errorf("Expected ciphertext to differ from plaintext")
		}
		if got := v.Decrypt(enc); got != p {
			t.Errorf("Round trip mismatch: got %q, want %q", got, p)
		}
	}
}

func TestVault_EmptyInputs(t *testing.T) {
	v := newTestVault("A", newMemBackend())

	if got := v.Encrypt(""); got != "" {
		t.Errorf("Expected empty ciphertext, got %q", got)
	}
	if got := v.Decrypt(""); got != "" {
		t.Errorf("Expected empty plaintext, got %q", got)
	}
}

func TestVault_DecryptGarbage(t *testing.T) {
	v := newTestVault("A", newMemBackend())

	for _, bad := range []string{"not base64!!", "aGVsbG8=", "eyJ2IjoyfQ=="} {
		if got := v.Decrypt(bad); got != "" {
			t.Errorf("Expected empty plaintext for %q, got %q", bad, got)
		}
	}
}

func TestVault_SaveEmptyRemoves(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	v := newTestVault("A", backend)

	if err := v.Save(ctx, "vlApiKey", "sk-123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := v.Save(ctx, "vlApiKey", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := v.Load(ctx, "vlApiKey"); got != "" {
		t.Errorf("Expected empty after empty save, got %q", got)
	}
	if _, ok := backend.values["vlApiKey"]; ok {
		t.Errorf("Expected entry to be removed from the backend")
	}
}

func TestVault_StoresCiphertextOnly(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	v := newTestVault("A", backend)

	if err := v.Save(ctx, "imageApiKey", "sk-secret"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if strings.Contains(backend.values["imageApiKey"], "sk-secret") {
		t.Errorf("Expected plaintext not to reach the backend")
	}
}

func TestVault_ReloadSameEnvironment(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()

	if err := newTestVault("A", backend).Save(ctx, "vlApiKey", "sk-123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A fresh deriver and vault stand in for a new process.
	reloaded := newTestVault("A", backend)
	if got := reloaded.Load(ctx, "vlApiKey"); got != "sk-123" {
		t.Errorf("Expected sk-123 after reload, got %q", got)
	}
}

func TestVault_OtherEnvironmentReadsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()

	if err := newTestVault("A", backend).Save(ctx, "vlApiKey", "sk-123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	moved := newTestVault("B", backend)
	if got := moved.Load(ctx, "vlApiKey"); got != "" {
		t.Errorf("Expected empty credential in another environment, got %q", got)
	}
	if moved.Configured(ctx, "vlApiKey") {
		t.Errorf("Expected credential to read as unconfigured")
	}
}

func TestVault_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	v := newTestVault("A", newMemBackend())

	if err := v.Remove(ctx, "missing"); err != nil {
		t.Errorf("Expected no error removing an absent entry, got %v", err)
	}
	if err := v.Remove(ctx, "missing"); err != nil {
		t.Errorf("Expected no error on second remove, got %v", err)
	}
}

func TestVault_BackendFailures(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	v := newTestVault("A", backend)

	backend.failOn = "set"
	if err := v.Save(ctx, "vlApiKey", "sk-123"); err == nil {
		t.Errorf("Expected save error to be reported")
	}

	backend.failOn = "get"
	if got := v.Load(ctx, "vlApiKey"); got != "" {
		t.Errorf("Expected empty credential on read failure, got %q", got)
	}
}
