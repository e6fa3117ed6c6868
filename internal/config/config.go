// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, rate limiting, Slack app credentials, completion service
// settings, deferred job tuning and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-slack-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SlackConfig holds the credentials of the installed Slack app.
//
// ClientID and ClientSecret double as the stable seeds of the per-user
// credential passphrase, so rotating either makes stored API keys unreadable.
type SlackConfig struct {
	VerificationToken string // SLACK_VERIFICATION_TOKEN
	SigningSecret     string // SLACK_SIGNING_SECRET (optional)
	BotToken          string // SLACK_BOT_TOKEN (xoxb-...)
	ClientID          string // SLACK_CLIENT_ID
	ClientSecret      string // SLACK_CLIENT_SECRET
	AppID             string // SLACK_APP_ID of this installation
	APIURL            string // SLACK_API_URL, empty for the public API
	StartReaction     string // START_REACTION emoji name
}

// CompletionConfig holds settings for the OpenAI-compatible completion service.
type CompletionConfig struct {
	APIURL    string        // COMPLETION_API_URL
	Model     string        // COMPLETION_MODEL for /completions
	ChatModel string        // COMPLETION_CHAT_MODEL for /chat/completions
	Timeout   time.Duration // COMPLETION_TIMEOUT
	MaxTokens int           // COMPLETION_MAX_TOKENS
	Persona   string        // COMPLETION_PERSONA system message
	Fallback  string        // COMPLETION_FALLBACK for empty answers
	Apology   string        // COMPLETION_APOLOGY posted when the service fails
}

// JobsConfig tunes the deferred job queue.
type JobsConfig struct {
	PollInterval time.Duration // JOB_POLL_INTERVAL, 0 disables the in-process poller
	MaxAttempts  int           // JOBS_MAX_ATTEMPTS before a job is parked as dead
	Lease        time.Duration // JOBS_LEASE claim duration
	BatchSize    int           // JOBS_BATCH_SIZE upper bound per drain
	TriggerToken string        // JOBS_TRIGGER_TOKEN bearer token for the drain endpoint
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for webhook and job routes

	// Storage
	DBPath string // SQLite path

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Event dedup
	DedupTTL time.Duration // how long a Slack event id suppresses redelivery

	Slack      SlackConfig
	Completion CompletionConfig
	Jobs       JobsConfig

	// Observability
	OTEL OTELConfig
}

const defaultPersona = "You are a helpful assistant inside a Slack workspace. " +
	"Answer concisely and format replies with Slack mrkdwn: *bold*, _italic_, `code` and ```code blocks```."

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/")),

		// Storage
		DBPath: getenv("DB_PATH", "app.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Slack retries a delivery three times within roughly five minutes.
		DedupTTL: getdur("DEDUP_TTL", time.Hour),

		Slack: SlackConfig{
			VerificationToken: getenv("SLACK_VERIFICATION_TOKEN", ""),
			SigningSecret:     getenv("SLACK_SIGNING_SECRET", ""),
			BotToken:          getenv("SLACK_BOT_TOKEN", ""),
			ClientID:          getenv("SLACK_CLIENT_ID", ""),
			ClientSecret:      getenv("SLACK_CLIENT_SECRET", ""),
			AppID:             getenv("SLACK_APP_ID", ""),
			APIURL:            getenv("SLACK_API_URL", ""),
			StartReaction:     strings.Trim(getenv("START_REACTION", "robot_face"), ": "),
		},

		Completion: CompletionConfig{
			APIURL:    strings.TrimRight(getenv("COMPLETION_API_URL", "https://api.openai.com/v1"), "/"),
			Model:     getenv("COMPLETION_MODEL", "gpt-3.5-turbo-instruct"),
			ChatModel: getenv("COMPLETION_CHAT_MODEL", "gpt-4o-mini"),
			Timeout:   getdur("COMPLETION_TIMEOUT", 60*time.Second),
			MaxTokens: getint("COMPLETION_MAX_TOKENS", 1000),
			Persona:   getenv("COMPLETION_PERSONA", defaultPersona),
			Fallback:  getenv("COMPLETION_FALLBACK", "I'm sorry, I couldn't understand that."),
			Apology:   getenv("COMPLETION_APOLOGY", "Sorry, something went wrong while generating a reply. Please try again later."),
		},

		Jobs: JobsConfig{
			PollInterval: getdur("JOB_POLL_INTERVAL", 5*time.Second),
			MaxAttempts:  getint("JOBS_MAX_ATTEMPTS", 5),
			Lease:        getdur("JOBS_LEASE", 2*time.Minute),
			BatchSize:    getint("JOBS_BATCH_SIZE", 50),
			TriggerToken: getenv("JOBS_TRIGGER_TOKEN", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-slack-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Slack.StartReaction == "" {
		cfg.Slack.StartReaction = "robot_face"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.Completion.Timeout <= 0 {
		return cfg, errors.New("COMPLETION_TIMEOUT must be > 0")
	}
	if cfg.Completion.MaxTokens <= 0 {
		return cfg, errors.New("COMPLETION_MAX_TOKENS must be > 0")
	}
	if !strings.HasPrefix(cfg.Completion.APIURL, "http://") && !strings.HasPrefix(cfg.Completion.APIURL, "https://") {
		return cfg, errors.New("COMPLETION_API_URL must be an http(s) URL")
	}
	if cfg.Jobs.PollInterval < 0 {
		return cfg, errors.New("JOB_POLL_INTERVAL must be >= 0")
	}
	if cfg.Jobs.MaxAttempts < 1 {
		return cfg, errors.New("JOBS_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Jobs.Lease <= 0 {
		return cfg, errors.New("JOBS_LEASE must be > 0")
	}
	if cfg.Jobs.BatchSize < 1 {
		return cfg, errors.New("JOBS_BATCH_SIZE must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Validate checks the settings required to talk to Slack. It is separate from
// Load so tooling and tests can load a partial configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Slack.VerificationToken) == "" {
		return errors.New("SLACK_VERIFICATION_TOKEN must not be empty")
	}
	if strings.TrimSpace(c.Slack.BotToken) == "" {
		return errors.New("SLACK_BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(c.Slack.ClientID) == "" || strings.TrimSpace(c.Slack.ClientSecret) == "" {
		return errors.New("SLACK_CLIENT_ID and SLACK_CLIENT_SECRET must not be empty")
	}
	if strings.TrimSpace(c.Slack.AppID) == "" {
		return errors.New("SLACK_APP_ID must not be empty")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
