package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/types"
)

func TestBuildBridge(t *testing.T) {
	a := &step1Artifacts{
		losses: []types.Loss{{Identifier: "L-1"}, {Identifier: "L-2"}},
		hazards: []types.Hazard{
			{Identifier: "H-2", Category: types.HazardIntegrity},
			{Identifier: "H-1", Category: types.HazardIntegrity},
			{Identifier: "H-3", Category: types.HazardAvailability},
		},
		constraints: []types.SecurityConstraint{
			{Identifier: "SC-1", Type: types.ConstraintPreventive},
			{Identifier: "SC-2", Type: types.ConstraintDetective},
			{Identifier: "SC-3", Type: types.ConstraintPreventive},
		},
		boundaries: []types.SystemBoundary{
			{Name: "Settlement core", Type: types.BoundarySystemScope},
		},
	}

	b := buildBridge(a)
	require.NotNil(t, b)

	integrity, ok := b.ControlNeeds["integrity"]
	require.True(t, ok)
	assert.Equal(t, []string{"H-1", "H-2"}, integrity.HazardIDs, "hazard ids sorted")
	assert.NotEmpty(t, integrity.Need)

	assert.Equal(t, []string{"SC-1", "SC-3"}, b.ConstraintBuckets.Preventive)
	assert.Equal(t, []string{"SC-2"}, b.ConstraintBuckets.Detective)

	require.Len(t, b.ImpliedBoundaries, 1)
	assert.Equal(t, "system_scope", b.ImpliedBoundaries[0].Type)
	assert.NotEmpty(t, b.ImpliedBoundaries[0].ControlRequirement)

	// Guidance covers the census, both populated buckets, and the
	// availability follow-up.
	require.Len(t, b.TransitionGuidance, 4)
	assert.Contains(t, b.TransitionGuidance[0], "2 losses, 3 hazards, and 3 constraints")
}
