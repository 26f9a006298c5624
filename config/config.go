// Package config loads runtime configuration for the indexer from the
// environment, following the mount-point and env-var contract in §6.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PathConfig locates the two mount points: the read-only photo root and
// the read/write data directory holding the catalog database, artifact
// stores and model blobs.
type PathConfig struct {
	PhotosRoot string
	DataDir    string
}

// CatalogDir is where the Catalog Store's database file lives.
func (p PathConfig) CatalogDir() string { return p.DataDir + "/db" }

// ThumbsDir is the Artifact Store shard root for thumbnails.
func (p PathConfig) ThumbsDir() string { return p.DataDir + "/thumbs" }

// FacesDir is the Artifact Store shard root for face crops.
func (p PathConfig) FacesDir() string { return p.DataDir + "/faces" }

// MotionVideosDir is the Artifact Store shard root for extracted motion clips.
func (p PathConfig) MotionVideosDir() string { return p.DataDir + "/motion_videos" }

// ModelsDir holds downloaded model blobs (face/caption/tag models).
func (p PathConfig) ModelsDir() string { return p.DataDir + "/models" }

// DatabaseConfig holds the Catalog Store's Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSL      string
}

// WatchConfig controls the filesystem change notifier (§4.3).
type WatchConfig struct {
	Enabled bool
	// Debounce is the coalescence window before a changed path is
	// forwarded to the Discovery queue.
	Debounce time.Duration
}

// CaptionConfig configures the optional external vision-model endpoint
// used by the Captioning and Tagging stages (§4.2 stages 8-9).
type CaptionConfig struct {
	// BaseURL is OLLAMA_URL. Empty disables both stages (ExternalDisabled, §7).
	BaseURL string
	// RequestsPerSecond bounds the shared rate limiter in front of the
	// external-service stages (§5).
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Enabled reports whether the external captioning/tagging endpoint is configured.
func (c CaptionConfig) Enabled() bool { return strings.TrimSpace(c.BaseURL) != "" }

// StageConfig tunes one stage's worker pool and retry policy (§5, §7).
type StageConfig struct {
	Concurrency   int
	QueueCapacity int
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
}

// PipelineConfig aggregates the per-stage settings the Supervisor uses
// to build queues and worker pools (§4.4, §5).
type PipelineConfig struct {
	Discovery    StageConfig
	Exif         StageConfig
	Geocoding    StageConfig
	Thumbnails   StageConfig
	MotionPhotos StageConfig
	Phash        StageConfig
	Faces        StageConfig
	Captioning   StageConfig
	Tagging      StageConfig

	// DuplicateHammingThreshold is T in §4.2 stage 6.
	DuplicateHammingThreshold int
	// PersonClusterEpsilon is ε in §4.2 stage 7.
	PersonClusterEpsilon float64
	// PersonReclusterEvery bounds the full re-clustering cadence.
	PersonReclusterEvery int
	// EventGapThreshold and EventJumpKM are T_gap/D_jump in §4.2 stage 10.
	EventGapThreshold time.Duration
	EventJumpKM       float64

	// ProgressCoalesce is the Progress Broadcaster's tick ceiling (§4.5).
	ProgressCoalesce time.Duration
}

// AppConfig is the fully resolved configuration for the indexer process.
type AppConfig struct {
	Paths    PathConfig
	Database DatabaseConfig
	Watch    WatchConfig
	Caption  CaptionConfig
	Pipeline PipelineConfig
	LogLevel string
	Port     string
}

// IsDevelopmentMode checks if the application is running in development mode.
func IsDevelopmentMode() bool {
	return strings.ToLower(os.Getenv("SERVER_ENV")) == "development"
}

// LoadEnvironment loads environment variables from an optional .env file.
// Call it once at the start of main, before loading any config.
func LoadEnvironment() {
	isDev := IsDevelopmentMode()

	envFile := ".env"
	if isDev {
		if _, err := os.Stat(".env.development"); err == nil {
			envFile = ".env.development"
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("running without %s file, using environment variables", envFile)
	} else {
		log.Printf("environment variables loaded from %s file", envFile)
	}
}

// LoadAppConfig loads the complete application configuration.
func LoadAppConfig() AppConfig {
	return AppConfig{
		Paths:    LoadPathConfig(),
		Database: LoadDBConfig(),
		Watch:    LoadWatchConfig(),
		Caption:  LoadCaptionConfig(),
		Pipeline: LoadPipelineConfig(),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8080"),
	}
}

// LoadPathConfig loads PHOTOS_PATH and DATA_DIR.
func LoadPathConfig() PathConfig {
	return PathConfig{
		PhotosRoot: getEnv("PHOTOS_PATH", "/photos"),
		DataDir:    getEnv("DATA_DIR", "/data"),
	}
}

// LoadDBConfig loads the Catalog Store's database settings.
func LoadDBConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "postgres",
		DBName:   "photoindex",
		SSL:      "disable",
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		cfg.Port = port
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if ssl := os.Getenv("DB_SSL"); ssl != "" {
		cfg.SSL = ssl
	}

	return cfg
}

// LoadWatchConfig loads the WATCH_INTERVAL debounce window (§6).
func LoadWatchConfig() WatchConfig {
	cfg := WatchConfig{
		Enabled:  true,
		Debounce: 30 * time.Second,
	}

	if enabled := strings.ToLower(strings.TrimSpace(os.Getenv("WATCH_ENABLED"))); enabled == "false" {
		cfg.Enabled = false
	}

	if raw := strings.TrimSpace(os.Getenv("WATCH_INTERVAL")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			cfg.Debounce = time.Duration(seconds) * time.Second
		}
	}

	return cfg
}

// LoadCaptionConfig loads OLLAMA_URL and related tuning for the
// external-service stages. An empty URL disables Captioning and Tagging.
func LoadCaptionConfig() CaptionConfig {
	cfg := CaptionConfig{
		BaseURL:           strings.TrimSpace(os.Getenv("OLLAMA_URL")),
		RequestsPerSecond: 2,
		Timeout:           30 * time.Second,
	}

	if raw := strings.TrimSpace(os.Getenv("OLLAMA_RATE_LIMIT")); raw != "" {
		if rps, err := strconv.ParseFloat(raw, 64); err == nil && rps > 0 {
			cfg.RequestsPerSecond = rps
		}
	}

	return cfg
}

// LoadPipelineConfig loads the per-stage worker pool sizes, queue
// capacities and retry policy (§4.2, §5).
//
// Defaults follow §5's cost-profile guidance: I/O-bound stages get more
// workers, pure-CPU stages fewer, external-service stages at most two
// sharing a token bucket.
func LoadPipelineConfig() PipelineConfig {
	cores := envInt("PIPELINE_CORES", defaultCores())

	ioStage := StageConfig{Concurrency: 8, QueueCapacity: 2048, MaxAttempts: 5, InitialDelay: 2 * time.Second, MaxDelay: 5 * time.Minute}
	cpuStage := StageConfig{Concurrency: max(1, cores), QueueCapacity: 1024, MaxAttempts: 5, InitialDelay: 2 * time.Second, MaxDelay: 5 * time.Minute}
	svcStage := StageConfig{Concurrency: 2, QueueCapacity: 512, MaxAttempts: 3, InitialDelay: 5 * time.Second, MaxDelay: 30 * time.Minute}

	return PipelineConfig{
		Discovery:                 StageConfig{Concurrency: 1, QueueCapacity: 4096, MaxAttempts: 1},
		Exif:                      ioStage,
		Geocoding:                 ioStage,
		Thumbnails:                cpuStage,
		MotionPhotos:              ioStage,
		Phash:                     cpuStage,
		Faces:                     cpuStage,
		Captioning:                svcStage,
		Tagging:                   svcStage,
		DuplicateHammingThreshold: 6,
		PersonClusterEpsilon:      0.35,
		PersonReclusterEvery:      200,
		EventGapThreshold:         6 * time.Hour,
		EventJumpKM:               50,
		ProgressCoalesce:          250 * time.Millisecond,
	}
}

func defaultCores() int {
	if n := os.Getenv("GOMAXPROCS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			return v
		}
	}
	return 4
}

func envInt(key string, fallback int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
