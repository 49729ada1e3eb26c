package crypto

import (
	"context"
	"fmt"

	"github.com/tryon-ai/tryon/internal/logger"
)

// CredentialBackend persists encoded credentials by logical name.
type CredentialBackend interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name string, value string) error
	Delete(ctx context.Context, name string) error
}

// Vault encrypts, stores and recovers small secret strings such as API keys.
// It is the only reader of decrypted values. A value that fails to decrypt is
// reported as empty, exactly like a value that was never stored.
type Vault struct {
	deriver    *KeyDeriver
	backend    CredentialBackend
	workFactor int
	log        logger.Logger
}

// NewVault creates a Vault keyed by deriver's secret.
func NewVault(deriver *KeyDeriver, backend CredentialBackend, workFactor int, log logger.Logger) *Vault {
	return &Vault{
		deriver:    deriver,
		backend:    backend,
		workFactor: ClampWorkFactor(workFactor),
		log:        log,
	}
}

// Encrypt returns the encoded envelope for plaintext, or "" for empty input
// and on any internal failure.
func (v *Vault) Encrypt(plaintext string) (encoded string) {
	if plaintext == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			v.log.Errorf("credential encryption panicked: %v", r)
			encoded = ""
		}
	}()

	encoded, err := SealCredential([]byte(plaintext), v.deriver.Secret(), v.workFactor)
	if err != nil {
		v.log.Errorf("credential encryption failed: %v", err)
		return ""
	}
	return encoded
}

// Decrypt returns the plaintext for an encoded envelope, or "" for empty input,
// corrupted data, or data sealed in a different environment.
func (v *Vault) Decrypt(encoded string) (plaintext string) {
	if encoded == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			v.log.Errorf("credential decryption panicked: %v", r)
			plaintext = ""
		}
	}()

	data, err := OpenCredential(encoded, v.deriver.Secret())
	if err != nil {
		v.log.Warnf("credential decryption failed: %v", err)
		return ""
	}
	return string(data)
}

// Save stores plaintext under name, replacing any earlier value.
// An empty plaintext removes the entry.
func (v *Vault) Save(ctx context.Context, name string, plaintext string) error {
	if plaintext == "" {
		return v.Remove(ctx, name)
	}

	encoded := v.Encrypt(plaintext)
	if encoded == "" {
		// Nothing usable to store; leave the credential unconfigured.
		return v.Remove(ctx, name)
	}

	if err := v.backend.Set(ctx, name, encoded); err != nil {
		return fmt.Errorf("failed to store credential %s: %w", name, err)
	}
	v.log.Debugf("credential %s saved (secret %s)", name, v.deriver.Secret().Hint())
	return nil
}

// Load returns the decrypted value stored under name, or "" if there is none.
func (v *Vault) Load(ctx context.Context, name string) string {
	encoded, ok, err := v.backend.Get(ctx, name)
	if err != nil {
		v.log.Warnf("failed to read credential %s: %v", name, err)
		return ""
	}
	if !ok {
		return ""
	}
	return v.Decrypt(encoded)
}

// Remove deletes the entry for name. Removing an absent entry is not an error.
func (v *Vault) Remove(ctx context.Context, name string) error {
	if err := v.backend.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to remove credential %s: %w", name, err)
	}
	return nil
}

// Configured reports whether name holds a credential that decrypts here.
func (v *Vault) Configured(ctx context.Context, name string) bool {
	return v.Load(ctx, name) != ""
}
