package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tryon-ai/tryon/pkg/types"
)

// PayloadVersion is the current credential envelope format version.
const PayloadVersion = 1

// AlgorithmAgeScrypt tags envelopes encrypted to an age scrypt recipient.
const AlgorithmAgeScrypt = "age-scrypt"

// SealCredential encrypts plaintext under secret and returns the encoded envelope.
func SealCredential(plaintext []byte, secret Secret, workFactor int) (string, error) {
	ciphertext, err := EncryptWithPassphrase(plaintext, string(secret), workFactor)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}

	envelope := types.EncryptedCredential{
		Version:    PayloadVersion,
		Algorithm:  AlgorithmAgeScrypt,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// OpenCredential decodes an envelope and decrypts it under secret.
func OpenCredential(encoded string, secret Secret) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	var envelope types.EncryptedCredential
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if envelope.Version != PayloadVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	if envelope.Algorithm != AlgorithmAgeScrypt {
		return nil, fmt.Errorf("unsupported algorithm %q", envelope.Algorithm)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	return DecryptWithPassphrase(ciphertext, string(secret))
}
