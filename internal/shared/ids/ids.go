// Package ids generates the opaque, prefix-tagged identifiers used
// throughout the runtime: "prefix-<epochMillis>-<9 alphanumeric>".
package ids

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a fresh opaque id of the form "prefix-<epochMillis>-<9 alphanumeric>".
// The runtime must accept any string-shaped id on input; New is merely the
// generator used for ids this process mints itself. The random component
// is derived from a uuid rather than hand-rolled entropy handling.
func New(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, nowMillis(), suffix(9))
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// suffix returns the first n hex characters of a fresh uuid's compact form,
// reusing uuid as the entropy source for an alphanumeric id suffix.
func suffix(n int) string {
	compact := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > len(compact) {
		n = len(compact)
	}
	return compact[:n]
}

// HasPrefix reports whether id looks like it was minted with the given
// prefix. Useful in tests and diagnostics; never required for correctness
// since the runtime treats all ids as opaque strings.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-")
}
