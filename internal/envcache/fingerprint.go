package envcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
)

// Fingerprint derives the content fingerprint of a dependency spec. The
// spec is canonicalized as JSON so that the same list always hashes the
// same way; order is deliberately significant, matching how the spec was
// declared.
func Fingerprint(deps []string) string {
	if deps == nil {
		deps = []string{}
	}
	raw, err := json.Marshal(deps)
	if err != nil {
		// A []string cannot fail to marshal.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeIdentity turns a node key into a file-system-safe directory
// name. When sanitizing loses information, a short hash of the original
// identity keeps distinct keys from colliding on disk.
func sanitizeIdentity(identity string) string {
	safe := unsafeChars.ReplaceAllString(identity, "-")
	if safe == identity {
		return safe
	}
	sum := sha256.Sum256([]byte(identity))
	return safe + "-" + hex.EncodeToString(sum[:4])
}
