package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Planet.Radius)
	assert.Equal(t, 5, cfg.Spawn.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.Interval)
	assert.Equal(t, 2.0, cfg.Editor.LoopCloseDistance)
	assert.Equal(t, "auto", cfg.Logging.Format)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PLANET_RADIUS", "12.5")
	t.Setenv("PLACEMENT_STACKING", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("ENGINE_TICK_MS", "100")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 12.5, cfg.Planet.Radius)
	assert.True(t, cfg.Spawn.Stacking)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 100*time.Millisecond, cfg.Engine.Interval)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	cases := map[string][2]string{
		"zero radius":   {"PLANET_RADIUS", "0"},
		"no attempts":   {"SPAWN_MAX_ATTEMPTS", "0"},
		"bad format":    {"LOG_FORMAT", "xml"},
		"port too high": {"SERVER_PORT", "70000"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("nonsense"))
}

func TestLoadSpawnFile(t *testing.T) {
	data := `{"specs": [
		{"class": "ordinary", "template": "tree", "min_count": 2, "max_count": 4, "min_distance_from_others": 1, "blocks_others": true},
		{"class": "container", "template": "box", "attachment_template": "cat", "attachment_offset": [0, 0.2, 0], "style": "hiding", "count": 1, "surface_offset": 0.1},
		{"class": "collectible", "template": "cat", "count": 3, "min_distance_from_same_class": 0.5,
		 "motion": {"speed": 1.5, "walk_radius": 2, "circular": true}}
	]}`
	path := filepath.Join(t.TempDir(), "spawn.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	specs, err := LoadSpawnFile(path, 0.05)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	tree := specs[0]
	assert.Equal(t, placement.ClassOrdinary, tree.Class)
	assert.Equal(t, 4, tree.MaxCount)
	assert.Equal(t, 0.05, tree.SurfaceOffset)

	box := specs[1]
	assert.Equal(t, placement.ClassContainer, box.Class)
	assert.Equal(t, registry.StyleHiding, box.Style)
	assert.Equal(t, 0.1, box.SurfaceOffset)
	assert.Equal(t, 0.2, box.AttachmentOffset.Y())

	m := specs[2].Motion
	require.NotNil(t, m)
	assert.True(t, m.Circular)
	assert.Equal(t, 1.5, m.Speed)
}

func TestParseSpawnSpecsRejects(t *testing.T) {
	cases := map[string]string{
		"unknown class":     `{"specs": [{"class": "dragon", "template": "x"}]}`,
		"attachment":        `{"specs": [{"class": "attachment", "template": "x"}]}`,
		"no template":       `{"specs": [{"class": "ordinary"}]}`,
		"bare container":    `{"specs": [{"class": "container", "template": "box"}]}`,
		"inverted range":    `{"specs": [{"template": "x", "min_count": 3, "max_count": 1}]}`,
		"negative distance": `{"specs": [{"template": "x", "min_distance_from_others": -1}]}`,
		"bad style":         `{"specs": [{"class": "container", "template": "b", "attachment_template": "c", "style": "loud"}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSpawnSpecs([]byte(data), 0)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := ParseSpawnSpecs([]byte(`{not json`), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestDefaultSpecs(t *testing.T) {
	var containers, mobile int
	for _, s := range DefaultSpecs(0) {
		if s.Class == placement.ClassContainer {
			containers++
			assert.NotEmpty(t, s.AttachmentTemplate, "container %s has no attachment", s.Template)
		}
		if s.Motion != nil {
			mobile++
		}
	}
	assert.NotZero(t, containers)
	assert.NotZero(t, mobile)
}

func TestSpawnSchema(t *testing.T) {
	data, err := json.Marshal(SpawnSchema())
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "Cat Planet spawn file")
	assert.Contains(t, out, "min_distance_from_same_class")
	assert.Contains(t, out, "hiding")
	assert.Contains(t, out, "walk_radius")
}
