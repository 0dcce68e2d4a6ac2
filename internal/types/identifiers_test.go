package types

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{"L-1", "H-42", "SC-3", "CTRL-10", "CA-1", "TB-7"}
	for _, id := range valid {
		assert.True(t, ValidIdentifier(id), id)
	}

	invalid := []string{"", "L1", "l-1", "L-", "-1", "L-1a", "L_1",
		"VERYLONGPREFIXTHATGOESON-1234567890"}
	for _, id := range invalid {
		assert.False(t, ValidIdentifier(id), id)
	}
}

func TestIdentifierParts(t *testing.T) {
	assert.Equal(t, "SC", IdentifierPrefix("SC-12"))
	assert.Equal(t, "", IdentifierPrefix("nope"))

	n, ok := IdentifierNumber("CTRL-7")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = IdentifierNumber("CTRL-")
	assert.False(t, ok)
}

func TestIDAllocatorSequence(t *testing.T) {
	alloc := NewIDAllocator()
	assert.Equal(t, "L-1", alloc.Next(PrefixLoss))
	assert.Equal(t, "L-2", alloc.Next(PrefixLoss))
	assert.Equal(t, "H-1", alloc.Next(PrefixHazard))
	assert.Equal(t, "L-3", alloc.Next(PrefixLoss))
}

func TestIDAllocatorObserve(t *testing.T) {
	alloc := NewIDAllocator()
	alloc.Observe("L-9")
	assert.Equal(t, "L-10", alloc.Next(PrefixLoss))

	// Observing a lower number never rewinds the counter.
	alloc.Observe("L-2")
	assert.Equal(t, "L-11", alloc.Next(PrefixLoss))

	// Malformed ids are ignored.
	alloc.Observe("garbage")
	assert.Equal(t, "L-12", alloc.Next(PrefixLoss))
}

func TestIDAllocatorConcurrent(t *testing.T) {
	alloc := NewIDAllocator()
	const n = 100

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- alloc.Next(PrefixControlAction)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.True(t, ValidIdentifier(id), id)
		assert.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, fmt.Sprintf("%s-%d", PrefixControlAction, n+1), alloc.Next(PrefixControlAction))
}
