package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/paperhold/docvault/internal/entity"
)

// Key derives the content-addressed cache key for an expensive call. Identical
// inputs always collapse to the same 64-hex-char digest; any single differing
// argument produces an unrelated key.
func Key(op entity.OperationKind, provider, payload, prompt string) string {
	h := sha256.New()
	h.Write([]byte(string(op)))
	h.Write([]byte(":"))
	h.Write([]byte(provider))
	h.Write([]byte(":"))
	h.Write([]byte(payload))
	h.Write([]byte(":"))
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
