package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// LLMSettings is the resolved, decrypted model configuration used to build
// LLM clients and memory store adapters for one user.
type LLMSettings struct {
	Provider  string
	ModelName string
	APIKey    string
	BaseURL   string
}

// DefaultFingerprint is the adapter-cache key used when no settings are
// supplied.
const DefaultFingerprint = "default"

// Fingerprint returns a deterministic hash of the settings tuple. Two
// settings with the same provider, model, base URL and key share one
// memory store adapter.
func (s *LLMSettings) Fingerprint() string {
	if s == nil {
		return DefaultFingerprint
	}
	h := sha256.Sum256([]byte(strings.Join([]string{s.Provider, s.ModelName, s.BaseURL, s.APIKey}, "|")))
	return hex.EncodeToString(h[:])
}
