// Package crypto provides credential obfuscation for the tryon companion.
//
// The secret used here is derived from environment signals that any local
// process can read. It keeps credentials out of casual view (screen sharing,
// log scraping, copying the database around) and nothing more.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"

	"github.com/tryon-ai/tryon/pkg/types"
)

// AppSalt is the constant last signal of every derivation.
const AppSalt = "try-on-anything-salt-2025"

const signalSeparator = "|"

// Secret is a hex-encoded SHA-256 digest of environment signals.
type Secret string

// Hint returns a shortened version of the secret for diagnostics.
func (s Secret) Hint() string {
	if len(s) > 8 {
		return string(s[:8]) + "..."
	}
	return string(s)
}

// SignalSource supplies the environment signals a secret is derived from.
type SignalSource interface {
	Signals() types.EnvironmentSignals
}

// StaticSignals is a SignalSource that always reports the same signals.
type StaticSignals types.EnvironmentSignals

// Signals implements SignalSource.
func (s StaticSignals) Signals() types.EnvironmentSignals {
	return types.EnvironmentSignals(s)
}

// KeyDeriver derives the environment secret once and keeps it for its lifetime.
// Secrets from different environments differ, so ciphertext produced under one
// environment does not decrypt under another.
type KeyDeriver struct {
	source SignalSource

	once   sync.Once
	secret Secret
}

// NewKeyDeriver creates a KeyDeriver reading from source.
func NewKeyDeriver(source SignalSource) *KeyDeriver {
	return &KeyDeriver{source: source}
}

// Secret returns the memoized environment secret.
func (kd *KeyDeriver) Secret() Secret {
	kd.once.Do(func() {
		kd.secret = DeriveSecret(kd.source.Signals())
	})
	return kd.secret
}

// DeriveSecret hashes the signals in their fixed order, followed by AppSalt.
func DeriveSecret(signals types.EnvironmentSignals) Secret {
	seeds := []string{
		signals.UserAgent,
		signals.Language,
		strconv.Itoa(signals.DisplayWidth),
		strconv.Itoa(signals.DisplayHeight),
		strconv.Itoa(signals.TimezoneOffset),
		AppSalt,
	}
	sum := sha256.Sum256([]byte(strings.Join(seeds, signalSeparator)))
	return Secret(hex.EncodeToString(sum[:]))
}
