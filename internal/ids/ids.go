package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// BlobRef builds a storage key for an uploaded file, keeping a sanitised extension.
func BlobRef(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || len(ext) > 10 || strings.ContainsAny(ext, `/\. `) {
		return New()
	}
	return New() + "." + ext
}

// ValidBlobRef reports whether ref has the shape produced by BlobRef.
func ValidBlobRef(ref string) bool {
	base, ext, _ := strings.Cut(ref, ".")
	if _, err := ulid.ParseStrict(base); err != nil {
		return false
	}
	return !strings.ContainsAny(ext, `/\.`)
}
