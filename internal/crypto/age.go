package crypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Work factor bounds accepted for scrypt recipients.
const (
	MinWorkFactor     = 1
	MaxWorkFactor     = 22
	DefaultWorkFactor = 12
)

// Encryptor handles age encryption operations.
type Encryptor struct {
	recipients []age.Recipient
}

// NewEncryptor creates an Encryptor for the given recipients.
func NewEncryptor(recipients ...age.Recipient) *Encryptor {
	return &Encryptor{
		recipients: recipients,
	}
}

// Encrypt encrypts data to all configured recipients.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(e.recipients) == 0 {
		return nil, fmt.Errorf("no recipients configured")
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.recipients...)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("failed to write plaintext: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close encryptor: %w", err)
	}

	return buf.Bytes(), nil
}

// Decryptor handles age decryption operations.
type Decryptor struct {
	identities []age.Identity
}

// NewDecryptor creates a Decryptor with the given identities.
func NewDecryptor(identities ...age.Identity) *Decryptor {
	return &Decryptor{
		identities: identities,
	}
}

// Decrypt decrypts data using configured identities.
func (d *Decryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(d.identities) == 0 {
		return nil, fmt.Errorf("no identities configured")
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), d.identities...)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted data: %w", err)
	}

	return plaintext, nil
}

// EncryptWithPassphrase encrypts data to an scrypt recipient for passphrase.
func EncryptWithPassphrase(plaintext []byte, passphrase string, workFactor int) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	recipient.SetWorkFactor(ClampWorkFactor(workFactor))

	return NewEncryptor(recipient).Encrypt(plaintext)
}

// DecryptWithPassphrase decrypts data produced by EncryptWithPassphrase.
func DecryptWithPassphrase(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	identity.SetMaxWorkFactor(MaxWorkFactor)

	return NewDecryptor(identity).Decrypt(ciphertext)
}

// ClampWorkFactor maps out-of-range values onto the accepted bounds.
func ClampWorkFactor(workFactor int) int {
	switch {
	case workFactor <= 0:
		return DefaultWorkFactor
	case workFactor > MaxWorkFactor:
		return MaxWorkFactor
	default:
		return workFactor
	}
}
