package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "HEALTH_CONFIG"

type Config struct {
	APIPort            string        `yaml:"apiPort"`
	LogLevel           string        `yaml:"logLevel"`
	LogFormat          string        `yaml:"logFormat"`
	APIKey             string        `yaml:"apiKey"`
	APIRateLimitRPS    float64       `yaml:"apiRateLimitRps"`
	APIRateLimitBurst  int           `yaml:"apiRateLimitBurst"`
	APIMaxInFlight     int           `yaml:"apiMaxInFlight"`
	APIMaxConnections  int           `yaml:"apiMaxConnections"`
	APIShutdownTimeout time.Duration `yaml:"apiShutdownTimeout"`
	MaxUploadBytes     int64         `yaml:"maxUploadBytes"`

	ExtractionStep     int           `yaml:"extractionStep"`
	ExtractionInterval time.Duration `yaml:"extractionInterval"`
	AnalysisStep       int           `yaml:"analysisStep"`
	AnalysisInterval   time.Duration `yaml:"analysisInterval"`
	StageTimeout       time.Duration `yaml:"stageTimeout"`
	EditPolicy         string        `yaml:"editPolicy"`

	MaxSessions          int           `yaml:"maxSessions"`
	SessionIdleTimeout   time.Duration `yaml:"sessionIdleTimeout"`
	SessionSweepInterval time.Duration `yaml:"sessionSweepInterval"`
	EventBufferSize      int           `yaml:"eventBufferSize"`
	ToastHistory         int           `yaml:"toastHistory"`

	NATSURL        string `yaml:"natsUrl"`
	NATSSubject    string `yaml:"natsSubject"`
	NATSQueueGroup string `yaml:"natsQueueGroup"`

	RetryMaxAttempts    int           `yaml:"retryMaxAttempts"`
	RetryInitialBackoff time.Duration `yaml:"retryInitialBackoff"`
	RetryMaxBackoff     time.Duration `yaml:"retryMaxBackoff"`
	BreakerEnabled      bool          `yaml:"breakerEnabled"`

	RelayMetricsPort string `yaml:"relayMetricsPort"`
}

func Default() Config {
	return Config{
		APIPort:            "8080",
		LogLevel:           "info",
		LogFormat:          "json",
		APIRateLimitRPS:    20,
		APIRateLimitBurst:  40,
		APIMaxInFlight:     64,
		APIMaxConnections:  256,
		APIShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:     10 << 20,

		ExtractionStep:     10,
		ExtractionInterval: 200 * time.Millisecond,
		AnalysisStep:       12,
		AnalysisInterval:   150 * time.Millisecond,
		StageTimeout:       30 * time.Second,
		EditPolicy:         "clamp",

		MaxSessions:          1000,
		SessionIdleTimeout:   30 * time.Minute,
		SessionSweepInterval: time.Minute,
		EventBufferSize:      256,
		ToastHistory:         10,

		NATSSubject:    "health.workflow",
		NATSQueueGroup: "observers",

		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		BreakerEnabled:      true,

		RelayMetricsPort: "9090",
	}
}

// Load starts from defaults, applies the YAML file named by HEALTH_CONFIG
// when set, then environment overrides.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := applyYAML(&cfg, raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// applyYAML overlays only the keys present in raw.
func applyYAML(cfg *Config, raw []byte) error {
	overlay := *cfg
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return err
	}
	*cfg = overlay
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.APIPort = mustEnv("API_PORT", c.APIPort)
	c.LogLevel = mustEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = mustEnv("LOG_FORMAT", c.LogFormat)
	c.APIKey = mustEnv("API_KEY", c.APIKey)
	c.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", c.APIRateLimitRPS)
	c.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", c.APIRateLimitBurst)
	c.APIMaxInFlight = mustEnvInt("API_MAX_IN_FLIGHT", c.APIMaxInFlight)
	c.APIMaxConnections = mustEnvInt("API_MAX_CONNECTIONS", c.APIMaxConnections)
	c.APIShutdownTimeout = mustEnvDuration("API_SHUTDOWN_TIMEOUT", c.APIShutdownTimeout)
	c.MaxUploadBytes = int64(mustEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))

	c.ExtractionStep = mustEnvInt("EXTRACTION_STEP", c.ExtractionStep)
	c.ExtractionInterval = mustEnvDuration("EXTRACTION_INTERVAL", c.ExtractionInterval)
	c.AnalysisStep = mustEnvInt("ANALYSIS_STEP", c.AnalysisStep)
	c.AnalysisInterval = mustEnvDuration("ANALYSIS_INTERVAL", c.AnalysisInterval)
	c.StageTimeout = mustEnvDuration("STAGE_TIMEOUT", c.StageTimeout)
	c.EditPolicy = mustEnv("EDIT_POLICY", c.EditPolicy)

	c.MaxSessions = mustEnvInt("MAX_SESSIONS", c.MaxSessions)
	c.SessionIdleTimeout = mustEnvDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout)
	c.SessionSweepInterval = mustEnvDuration("SESSION_SWEEP_INTERVAL", c.SessionSweepInterval)
	c.EventBufferSize = mustEnvInt("EVENT_BUFFER_SIZE", c.EventBufferSize)
	c.ToastHistory = mustEnvInt("TOAST_HISTORY", c.ToastHistory)

	c.NATSURL = mustEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = mustEnv("NATS_SUBJECT", c.NATSSubject)
	c.NATSQueueGroup = mustEnv("NATS_QUEUE_GROUP", c.NATSQueueGroup)

	c.RetryMaxAttempts = mustEnvInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryInitialBackoff = mustEnvDuration("RETRY_INITIAL_BACKOFF", c.RetryInitialBackoff)
	c.RetryMaxBackoff = mustEnvDuration("RETRY_MAX_BACKOFF", c.RetryMaxBackoff)
	c.BreakerEnabled = mustEnvBool("BREAKER_ENABLED", c.BreakerEnabled)

	c.RelayMetricsPort = mustEnv("RELAY_METRICS_PORT", c.RelayMetricsPort)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
