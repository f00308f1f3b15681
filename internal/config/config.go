package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port string

	// Secrets
	InternalSharedSecret string

	// Limits
	MaxJSONBodyBytes int64
	MaxPathLen       int

	// Concurrency
	MaxConcurrentRequests  int64
	MaxConcurrentProcesses int64
	BatchWorkers           int // 1 = strictly sequential batches

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	RequestTimeout time.Duration
	BatchTimeout   time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int

	// Classification program
	ProgramPath      string
	ScriptPath       string
	ProcessTimeout   time.Duration
	WorkDir          string // service startup directory, used as the child's cwd
	MaxOutputBytes   int64
	DebugMode        bool
	SupportedFormats []string // lower-case, without the leading dot
	MaxFileSizeMB    int
	DefaultOutputDir string

	// Logging
	LogLevel  string
	LogFormat string

	// Result cache (disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

func Load() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return Config{
		Port: envStr("PORT", "8080"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		MaxJSONBodyBytes: int64(envInt("MAX_JSON_BODY_BYTES", 64<<10)),
		MaxPathLen:       envInt("MAX_PATH_LEN", 4096),

		MaxConcurrentRequests:  int64(envInt("MAX_CONCURRENT_REQUESTS", 8)),
		MaxConcurrentProcesses: int64(envInt("MAX_CONCURRENT_PROCESSES", 2)),
		BatchWorkers:           envInt("BATCH_WORKERS", 1),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 65*time.Minute),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		RequestTimeout: envDur("REQUEST_TIMEOUT", 6*time.Minute),
		BatchTimeout:   envDur("BATCH_TIMEOUT", time.Hour),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),

		ProgramPath:      envStr("PROGRAM_PATH", "python"),
		ScriptPath:       envStr("SCRIPT_PATH", "scripts/ocr_classifier.py"),
		ProcessTimeout:   envDur("PROCESS_TIMEOUT", 300*time.Second),
		WorkDir:          wd,
		MaxOutputBytes:   int64(envInt("MAX_OUTPUT_BYTES", 8<<20)),
		DebugMode:        envBool("DEBUG_MODE", false),
		SupportedFormats: envList("SUPPORTED_FORMATS", []string{"jpg", "jpeg", "png", "bmp", "tiff", "webp"}),
		MaxFileSizeMB:    envInt("MAX_FILE_SIZE_MB", 10),
		DefaultOutputDir: envStr("DEFAULT_OUTPUT_DIR", "output"),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envIntAllowZero("REDIS_DB", 0),
		CacheTTL:      envDur("CACHE_TTL", 24*time.Hour),
	}
}

func (c Config) Validate() error {
	if s := strings.TrimSpace(c.InternalSharedSecret); s != "" && len(s) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(c.ProgramPath) == "" {
		return fmt.Errorf("PROGRAM_PATH must not be empty")
	}
	if strings.TrimSpace(c.ScriptPath) == "" {
		return fmt.Errorf("SCRIPT_PATH must not be empty")
	}
	if len(c.SupportedFormats) == 0 {
		return fmt.Errorf("SUPPORTED_FORMATS must list at least one extension")
	}
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("PROCESS_TIMEOUT must be positive")
	}
	return nil
}

// LoggerLevel is LogLevel, forced to "debug" when DebugMode is on so the
// command and output traces are emitted.
func (c Config) LoggerLevel() string {
	if c.DebugMode {
		return "debug"
	}
	return c.LogLevel
}

// MaxFileBytes is the per-image size limit in bytes.
func (c Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envIntAllowZero(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList reads a comma separated list; entries are lower-cased and a
// leading dot is dropped so ".JPG" and "jpg" are equivalent.
func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
