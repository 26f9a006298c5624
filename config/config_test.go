package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWatchConfig_DefaultsWhenUnset(t *testing.T) {
	cfg := LoadWatchConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, 30*time.Second, cfg.Debounce)
}

func TestLoadWatchConfig_DisabledAndCustomInterval(t *testing.T) {
	t.Setenv("WATCH_ENABLED", "false")
	t.Setenv("WATCH_INTERVAL", "45")

	cfg := LoadWatchConfig()
	require.False(t, cfg.Enabled)
	require.Equal(t, 45*time.Second, cfg.Debounce)
}

func TestLoadWatchConfig_IgnoresInvalidInterval(t *testing.T) {
	t.Setenv("WATCH_INTERVAL", "not-a-number")

	cfg := LoadWatchConfig()
	require.Equal(t, 30*time.Second, cfg.Debounce)
}

func TestLoadCaptionConfig_EmptyURLDisablesStages(t *testing.T) {
	cfg := LoadCaptionConfig()
	require.False(t, cfg.Enabled())
}

func TestLoadCaptionConfig_TrimsURLAndAppliesCustomRate(t *testing.T) {
	t.Setenv("OLLAMA_URL", "  http://localhost:11434  ")
	t.Setenv("OLLAMA_RATE_LIMIT", "5")

	cfg := LoadCaptionConfig()
	require.True(t, cfg.Enabled())
	require.Equal(t, "http://localhost:11434", cfg.BaseURL)
	require.Equal(t, 5.0, cfg.RequestsPerSecond)
}

func TestLoadCaptionConfig_IgnoresNonPositiveRate(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://host")
	t.Setenv("OLLAMA_RATE_LIMIT", "-1")

	cfg := LoadCaptionConfig()
	require.Equal(t, 2.0, cfg.RequestsPerSecond)
}

func TestLoadDBConfig_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "indexer")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "photos")
	t.Setenv("DB_SSL", "require")

	cfg := LoadDBConfig()
	require.Equal(t, DatabaseConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "indexer",
		Password: "secret",
		DBName:   "photos",
		SSL:      "require",
	}, cfg)
}

func TestLoadDBConfig_Defaults(t *testing.T) {
	cfg := LoadDBConfig()
	require.Equal(t, "localhost", cfg.Host)
	require.Equal(t, "5432", cfg.Port)
	require.Equal(t, "disable", cfg.SSL)
}

func TestEnvInt_FallsBackOnMissingOrInvalid(t *testing.T) {
	require.Equal(t, 7, envInt("PHOTOINDEX_TEST_UNSET_INT", 7))

	t.Setenv("PHOTOINDEX_TEST_INT", "not-a-number")
	require.Equal(t, 7, envInt("PHOTOINDEX_TEST_INT", 7))

	t.Setenv("PHOTOINDEX_TEST_INT", "42")
	require.Equal(t, 42, envInt("PHOTOINDEX_TEST_INT", 7))
}

func TestGetEnv_FallsBackOnEmpty(t *testing.T) {
	require.Equal(t, "fallback", getEnv("PHOTOINDEX_TEST_UNSET_STR", "fallback"))

	t.Setenv("PHOTOINDEX_TEST_STR", "value")
	require.Equal(t, "value", getEnv("PHOTOINDEX_TEST_STR", "fallback"))
}

func TestLoadPipelineConfig_AppliesCostProfileDefaults(t *testing.T) {
	cfg := LoadPipelineConfig()

	require.Equal(t, 1, cfg.Discovery.Concurrency)
	require.Equal(t, 8, cfg.Exif.Concurrency)
	require.Equal(t, 2, cfg.Captioning.Concurrency)
	require.Equal(t, cfg.Captioning.Concurrency, cfg.Tagging.Concurrency)
	require.Equal(t, 6, cfg.DuplicateHammingThreshold)
	require.Equal(t, 200, cfg.PersonReclusterEvery)
	require.Equal(t, 250*time.Millisecond, cfg.ProgressCoalesce)
}

func TestPathConfig_DerivedDirsAreUnderDataDir(t *testing.T) {
	p := PathConfig{PhotosRoot: "/photos", DataDir: "/data"}
	require.Equal(t, "/data/db", p.CatalogDir())
	require.Equal(t, "/data/thumbs", p.ThumbsDir())
	require.Equal(t, "/data/faces", p.FacesDir())
	require.Equal(t, "/data/motion_videos", p.MotionVideosDir())
	require.Equal(t, "/data/models", p.ModelsDir())
}
