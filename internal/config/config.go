package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/craftauth/yggdrasil/internal/security"
)

// Config is the process-wide configuration, loaded from the environment
// once at startup and passed into component constructors. There is no
// ambient global lookup.
type Config struct {
	ListenAddr string

	DBDriver string // "sqlite" or "postgres"
	DBDSN    string

	RedisAddr   string // empty disables the Redis join-session store
	RedisPrefix string

	PasswordStrategy string

	TokenValid   time.Duration // strict horizon: join refuses tokens past it
	TokenInvalid time.Duration // loose horizon: validate deletes tokens past it

	JoinSessionTTL time.Duration

	ProfileMissTTL time.Duration // non-positive disables the miss cache

	RegistrationEnabled        bool
	RegistrationDefaultProfile bool // create a profile named after the nickname
	PasswordPattern            *regexp.Regexp
	NicknamePattern            *regexp.Regexp

	VerifyCodeEnabled bool
	VerifyCodeTimeout time.Duration
	VerifyCodeLength  int

	RateLimitInterval  time.Duration
	RateLimitThreshold int

	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	TextureKeyPath string
	TextureBaseURL string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	EnableOTelHTTP            bool
}

const (
	defaultPasswordPattern = `^[!-~]{6,32}$`
	defaultNicknamePattern = `^[a-zA-Z0-9_]{3,16}$`
)

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:                 envString("LISTEN_ADDR", ":8080"),
		DBDriver:                   envString("DB_DRIVER", "sqlite"),
		DBDSN:                      envString("DB_DSN", "yggdrasil.db"),
		RedisAddr:                  envString("REDIS_ADDR", ""),
		RedisPrefix:                envString("REDIS_PREFIX", "yggdrasil"),
		PasswordStrategy:           envString("PASSWORD_STRATEGY", security.StrategySaltedSha256),
		TokenValid:                 envDuration("TOKEN_VALID", 72*time.Hour),
		TokenInvalid:               envDuration("TOKEN_INVALID", 168*time.Hour),
		JoinSessionTTL:             envDuration("JOIN_SESSION_TTL", 30*time.Second),
		ProfileMissTTL:             envDuration("PROFILE_MISS_TTL", 30*time.Second),
		RegistrationEnabled:        envBool("REGISTRATION_ENABLED", true),
		RegistrationDefaultProfile: envBool("REGISTRATION_DEFAULT_PROFILE", true),
		VerifyCodeEnabled:          envBool("VERIFY_CODE_ENABLED", false),
		VerifyCodeTimeout:          envDuration("VERIFY_CODE_TIMEOUT", 300*time.Second),
		VerifyCodeLength:           envInt("VERIFY_CODE_LENGTH", security.HexLength),
		RateLimitInterval:          envDuration("RATE_LIMIT_INTERVAL", time.Minute),
		RateLimitThreshold:         envInt("RATE_LIMIT_THRESHOLD", 30),
		SMTPAddr:                   envString("SMTP_ADDR", ""),
		SMTPFrom:                   envString("SMTP_FROM", ""),
		SMTPUsername:               envString("SMTP_USERNAME", ""),
		SMTPPassword:               envString("SMTP_PASSWORD", ""),
		TextureKeyPath:             envString("TEXTURE_KEY_PATH", ""),
		TextureBaseURL:             envString("TEXTURE_BASE_URL", "http://localhost:8080/textures"),
		OTELServiceName:            envString("OTEL_SERVICE_NAME", "yggdrasil"),
		OTELEnvironment:            envString("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:   envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:   envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:         envBool("OTEL_METRICS_ENABLED", false),
		OTELLogsEnabled:            envBool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval:  envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
		EnableOTelHTTP:             envBool("OTEL_HTTP_ENABLED", false),
	}

	var err error
	if cfg.PasswordPattern, err = regexp.Compile(envString("PASSWORD_PATTERN", defaultPasswordPattern)); err != nil {
		return nil, fmt.Errorf("parse PASSWORD_PATTERN: %w", err)
	}
	if cfg.NicknamePattern, err = regexp.Compile(envString("NICKNAME_PATTERN", defaultNicknamePattern)); err != nil {
		return nil, fmt.Errorf("parse NICKNAME_PATTERN: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with. An unknown
// password strategy is fatal here, never a per-request error.
func (c *Config) Validate() error {
	if _, err := security.NewEncryption(c.PasswordStrategy); err != nil {
		return err
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", c.DBDriver)
	}
	if c.TokenValid <= 0 || c.TokenInvalid <= 0 {
		return fmt.Errorf("token horizons must be positive")
	}
	if c.TokenValid > c.TokenInvalid {
		return fmt.Errorf("TOKEN_VALID (%s) must not exceed TOKEN_INVALID (%s)", c.TokenValid, c.TokenInvalid)
	}
	if c.JoinSessionTTL <= 0 {
		return fmt.Errorf("JOIN_SESSION_TTL must be positive")
	}
	if c.VerifyCodeTimeout <= 0 {
		return fmt.Errorf("VERIFY_CODE_TIMEOUT must be positive")
	}
	if c.VerifyCodeLength <= 0 {
		return fmt.Errorf("VERIFY_CODE_LENGTH must be positive")
	}
	if c.RateLimitThreshold <= 0 || c.RateLimitInterval <= 0 {
		return fmt.Errorf("rate limit interval and threshold must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
