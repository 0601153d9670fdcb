// Package tournament holds the pure pairwise-tournament core: cache keys,
// verdict resolution, matrix aggregation, ranking, referee error and
// outlier flags. Nothing in this package performs I/O.
package tournament

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/ahrav/go-tourney/internal/domain"
)

// Fingerprint returns the hex SHA-256 digest of text, a NUL separator and
// context. The separator is always written so ("ab", "") and ("a", "b")
// never collide. Inputs that themselves contain NUL bytes are not
// length-prefixed and may share a fingerprint.
func Fingerprint(text, context string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(context))
	return hex.EncodeToString(h.Sum(nil))
}

// CacheKey identifies one memoized model invocation.
type CacheKey struct {
	Fingerprint string
	Competitor  string
}

// NewCacheKey builds the key for asking c about (text, context).
func NewCacheKey(text, context string, c domain.Competitor) CacheKey {
	return CacheKey{Fingerprint: Fingerprint(text, context), Competitor: c.FullName()}
}

// String renders the key as "<fingerprint>:<competitor>".
func (k CacheKey) String() string { return k.Fingerprint + ":" + k.Competitor }

// TextID derives a deterministic identifier for text. The namespace is
// itself derived from secret so identifiers cannot be recomputed without
// it.
func TextID(text, secret string) string {
	namespace := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(secret))
	return uuid.NewSHA1(namespace, []byte(text)).String()
}
