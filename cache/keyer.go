package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jonwraymond/toolgate/envelope"
)

// Keyer generates deterministic cache keys from a tool name and the
// identifying portion of its parameters.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map
//   iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(tool string, input any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: resp:<tool>:<hash>
// where hash is the first 16 characters of SHA-256(canonical JSON(input)).
func (k *DefaultKeyer) Key(tool string, input any) (string, error) {
	canonical, err := envelope.CanonicalJSON(input)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return fmt.Sprintf("resp:%s:%s", tool, hex.EncodeToString(hash[:8])), nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
