package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ETag computes a content-version token for v: a SHA-256 digest over the
// canonical JSON representation, quoted like an HTTP entity tag. Equal
// content always yields equal tags; any content change changes the tag.
func ETag(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("envelope: failed to canonicalize content: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return `"` + hex.EncodeToString(hash[:16]) + `"`, nil
}

// ETagMatch reports whether two entity tags identify the same content.
// Surrounding quotes are ignored so callers may pass raw header values.
func ETagMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Trim(a, `"`) == strings.Trim(b, `"`)
}
