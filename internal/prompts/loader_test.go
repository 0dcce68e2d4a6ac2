package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsCoverEveryAgentType(t *testing.T) {
	for _, at := range []string{
		MissionAnalyst, LossIdentification, HazardIdentification,
		StakeholderAnalyst, SecurityConstraints, SystemBoundaries,
		ControlStructure, ControlActionMapping, StateContextAnalysis,
		FeedbackMechanism, TrustBoundaryAnalysis, ProcessModelAnalyst,
	} {
		assert.NotEmpty(t, Default(at), "no default template for %s", at)
	}
	assert.Empty(t, Default("unknown_agent"))
}

func TestLoaderServesDefaultsWithoutOverrideDir(t *testing.T) {
	l, err := NewLoader("")
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, Default(MissionAnalyst), l.Template(MissionAnalyst))
}

func TestLoaderOverrideReplacesDefault(t *testing.T) {
	dir := t.TempDir()
	override := "You are a terse mission analyst. Return JSON only."
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, MissionAnalyst+".md"), []byte(override), 0o644))
	// Files that match no agent type are ignored.
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "not_an_agent.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	l, err := NewLoader(dir)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, override, l.Template(MissionAnalyst))
	// Unoverridden types still serve the built-in template.
	assert.Equal(t, Default(LossIdentification), l.Template(LossIdentification))
}

func TestLoaderMissingDirFails(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
