package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/types"
)

func component(id string, kind types.ComponentKind) types.Component {
	return types.Component{Identifier: id, Kind: kind, Name: "component " + id}
}

func TestRegisterFirstWins(t *testing.T) {
	r := New()
	first := component("CTRL-1", types.KindController)
	first.Name = "original"
	require.NoError(t, r.Register(first))

	dup := component("CTRL-1", types.KindController)
	dup.Name = "impostor"
	err := r.Register(dup)
	require.Error(t, err)

	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "duplicate", v.Kind)
	assert.Equal(t, "CTRL-1", v.ID)

	got, ok := r.Get("CTRL-1")
	require.True(t, ok)
	assert.Equal(t, "original", got.Name)
}

func TestRegisterRejectsMalformedIdentifier(t *testing.T) {
	r := New()
	err := r.Register(component("not-an-id", types.KindController))
	require.Error(t, err)
	assert.False(t, r.Validate("not-an-id"))
	assert.NotEmpty(t, r.Report().Errors)
}

func TestAddReference(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(component("CTRL-1", types.KindController)))
	require.NoError(t, r.Register(component("PROC-1", types.KindControlledProcess)))

	require.NoError(t, r.AddReference("CTRL-1", "PROC-1"))

	err := r.AddReference("CTRL-1", "PROC-99")
	require.Error(t, err)
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "undefined_target", v.Kind)

	rep := r.Report()
	assert.Equal(t, []string{"PROC-99"}, rep.UndefinedReferences)
}

func TestReportOrphans(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(component("CTRL-1", types.KindController)))
	require.NoError(t, r.Register(component("CTRL-2", types.KindController)))
	require.NoError(t, r.Register(component("PROC-1", types.KindControlledProcess)))
	require.NoError(t, r.AddReference("CTRL-1", "PROC-1"))

	rep := r.Report()
	// CTRL-2 has no edges; PROC-1 is a process and never an orphan.
	assert.Equal(t, []string{"CTRL-2"}, rep.OrphanComponents)
	assert.Equal(t, 2, rep.Counts[types.KindController])
	assert.Equal(t, 1, rep.Counts[types.KindControlledProcess])
}

func TestPromptContextListsComponents(t *testing.T) {
	r := New()
	assert.Empty(t, r.PromptContext())

	require.NoError(t, r.Register(component("CTRL-1", types.KindController)))
	require.NoError(t, r.Register(component("PROC-1", types.KindControlledProcess)))

	ctx := r.PromptContext()
	assert.Contains(t, ctx, "CTRL-1")
	assert.Contains(t, ctx, "PROC-1")
	assert.Contains(t, ctx, "controller")
}

func TestConcurrentRegisterDistinctIDs(t *testing.T) {
	r := New()
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("CTRL-%d", i+1)
			assert.NoError(t, r.Register(component(id, types.KindController)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.All(), n)
	assert.Empty(t, r.Report().Errors)
}

func TestConcurrentRegisterSameID(t *testing.T) {
	r := New()
	const n = 32

	var wg sync.WaitGroup
	violations := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Register(component("DUAL-1", types.KindDualRole)); err != nil {
				violations <- err
			}
		}()
	}
	wg.Wait()
	close(violations)

	count := 0
	for err := range violations {
		var v *Violation
		require.True(t, errors.As(err, &v))
		count++
	}
	assert.Equal(t, n-1, count)
	assert.Len(t, r.All(), 1)
}

func TestByKindPreservesRegistrationOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(component("CTRL-2", types.KindController)))
	require.NoError(t, r.Register(component("PROC-1", types.KindControlledProcess)))
	require.NoError(t, r.Register(component("CTRL-1", types.KindController)))

	controllers := r.ByKind(types.KindController)
	require.Len(t, controllers, 2)
	assert.Equal(t, "CTRL-2", controllers[0].Identifier)
	assert.Equal(t, "CTRL-1", controllers[1].Identifier)
}
