package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Identifier prefixes used across the analysis. Identifiers are opaque
// strings shaped PREFIX-INT and are the cross-reference currency between
// agents.
const (
	PrefixLoss          = "L"
	PrefixHazard        = "H"
	PrefixConstraint    = "SC"
	PrefixController    = "CTRL"
	PrefixProcess       = "PROC"
	PrefixDualRole      = "DUAL"
	PrefixControlAction = "CA"
	PrefixFeedback      = "FB"
	PrefixTrustBoundary = "TB"
)

// MaxIdentifierLen bounds identifier length; longer ids are rejected.
const MaxIdentifierLen = 32

var identifierShape = regexp.MustCompile(`^[A-Z]+-[0-9]+$`)

// ValidIdentifier reports whether id has the PREFIX-INT shape and fits the
// length bound.
func ValidIdentifier(id string) bool {
	return len(id) > 0 && len(id) <= MaxIdentifierLen && identifierShape.MatchString(id)
}

// IdentifierPrefix returns the prefix portion of a PREFIX-INT identifier,
// or "" when the id is malformed.
func IdentifierPrefix(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 {
		return ""
	}
	return id[:idx]
}

// IdentifierNumber returns the integer portion of a PREFIX-INT identifier.
func IdentifierNumber(id string) (int, bool) {
	idx := strings.LastIndex(id, "-")
	if idx < 0 || idx == len(id)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IDAllocator hands out PREFIX-INT identifiers with a monotonic counter per
// prefix. Safe for concurrent use; parallel style runs within one agent
// share an allocator.
type IDAllocator struct {
	mu   sync.Mutex
	next map[string]int
}

// NewIDAllocator creates an empty allocator.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: make(map[string]int)}
}

// Next returns the next identifier for the prefix, starting at PREFIX-1.
func (a *IDAllocator) Next(prefix string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next[prefix]++
	return fmt.Sprintf("%s-%d", prefix, a.next[prefix])
}

// Observe advances the counter past an externally assigned identifier so
// later allocations never collide with it.
func (a *IDAllocator) Observe(id string) {
	n, ok := IdentifierNumber(id)
	if !ok {
		return
	}
	prefix := IdentifierPrefix(id)
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.next[prefix] {
		a.next[prefix] = n
	}
}
