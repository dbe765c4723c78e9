package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_missingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultOwner, cfg.Owner)
	assert.Equal(t, DefaultFallback, cfg.Fallback)
	assert.Empty(t, cfg.Rules)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	home := t.TempDir()
	in := &Config{
		Owner:    "commander",
		Fallback: "atlas",
		Rules: []AssignmentRule{
			{Role: "qa", Patterns: []string{"test", "bug"}},
			{Role: "engineer", Patterns: []string{"fix"}},
		},
		Seed: []SeedAgent{
			{Name: "Nova Sterling", Role: "engineer", Level: "senior"},
		},
		TriggerURL: "http://localhost:9000/hook",
	}
	require.NoError(t, Save(home, in))

	out, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, in.Owner, out.Owner)
	assert.Equal(t, in.Rules, out.Rules, "rule order survives the roundtrip")
	assert.Equal(t, in.Seed, out.Seed)
	assert.Equal(t, in.TriggerURL, out.TriggerURL)
}

func TestLoad_envOverridesWebhookURLs(t *testing.T) {
	t.Setenv("MISSIONCTL_TRIGGER_URL", "http://runner.internal/hook")
	t.Setenv("SLACK_WEBHOOK_URL", "http://slack.internal/hook")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://runner.internal/hook", cfg.TriggerURL)
	assert.Equal(t, "http://slack.internal/hook", cfg.SlackWebhookURL)
}

func TestLoad_malformedYAML(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(Path(home), []byte("owner: [unclosed"), 0o644))
	_, err := Load(home)
	require.Error(t, err)
}

func TestResolveHome(t *testing.T) {
	got, err := ResolveHome("/tmp/custom")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", got)

	t.Setenv("MISSIONCTL_HOME", "/tmp/from-env")
	got, err = ResolveHome("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", got)

	t.Setenv("MISSIONCTL_HOME", "")
	got, err = ResolveHome("")
	require.NoError(t, err)
	assert.Equal(t, ".missionctl", filepath.Base(got))
}

func TestHomeContext(t *testing.T) {
	ctx := WithHome(context.Background(), "/tmp/home")
	got, ok := HomeFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/home", got)
	assert.Equal(t, "/tmp/home", MustHomeFrom(ctx))

	_, ok = HomeFrom(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { MustHomeFrom(context.Background()) })
}
