package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Identity  IdentitySettings  `mapstructure:"identity"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Tokens    TokenSettings     `mapstructure:"tokens"`
	Password  PasswordSettings  `mapstructure:"password"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AdminToken guards the administrative surface; empty disables it.
	AdminToken string `mapstructure:"admin_token"`
	// ProtocolToken authenticates the protocol front end calling the authentication
	// routes; empty leaves them unrouted.
	ProtocolToken   string        `mapstructure:"protocol_token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Replay guard backends.
const (
	GuardMemory = "memory"
	GuardRedis  = "redis"
)

// IdentitySettings tunes the authentication and management engines.
type IdentitySettings struct {
	Store                    string `mapstructure:"store"`
	ReplayGuard              string `mapstructure:"replay_guard"`
	DisplayNameClaimType     string `mapstructure:"display_name_claim_type"`
	EnableSecurityStamp      bool   `mapstructure:"enable_security_stamp"`
	RequireUniqueEmail       bool   `mapstructure:"require_unique_email"`
	IncludeAccountProperties bool   `mapstructure:"include_account_properties"`
	RoleClaimType            string `mapstructure:"role_claim_type"`
	EnableRoles              bool   `mapstructure:"enable_roles"`
}

// LockoutSettings configures failed-access accounting.
type LockoutSettings struct {
	EnabledByDefault  bool          `mapstructure:"enabled_by_default"`
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	Duration          time.Duration `mapstructure:"duration"`
}

// TokenSettings configures single-use purpose tokens.
type TokenSettings struct {
	SigningSecret        string        `mapstructure:"signing_secret"`
	Issuer               string        `mapstructure:"issuer"`
	EmailConfirmationTTL time.Duration `mapstructure:"email_confirmation_ttl"`
	PhoneChangeTTL       time.Duration `mapstructure:"phone_change_ttl"`
	PasswordResetTTL     time.Duration `mapstructure:"password_reset_ttl"`
	ReplayCacheSize      int           `mapstructure:"replay_cache_size"`
}

// PasswordSettings configures the password policy.
type PasswordSettings struct {
	MinLength           int `mapstructure:"min_length"`
	MinCharacterClasses int `mapstructure:"min_character_classes"`
	MinStrengthScore    int `mapstructure:"min_strength_score"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DB             int    `mapstructure:"db"`
	Password       string `mapstructure:"password"`
	TLSEnabled     bool   `mapstructure:"tls_enabled"`
	RedeemedPrefix string `mapstructure:"redeemed_prefix"`
}

// KafkaSettings configures the event producer. No brokers means events are only logged.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.admin_token",
		"app.protocol_token",
		"app.shutdown_timeout",
		"identity.store",
		"identity.replay_guard",
		"identity.display_name_claim_type",
		"identity.enable_security_stamp",
		"identity.require_unique_email",
		"identity.include_account_properties",
		"identity.role_claim_type",
		"identity.enable_roles",
		"lockout.enabled_by_default",
		"lockout.max_failed_attempts",
		"lockout.duration",
		"tokens.signing_secret",
		"tokens.issuer",
		"tokens.email_confirmation_ttl",
		"tokens.phone_change_ttl",
		"tokens.password_reset_ttl",
		"tokens.replay_cache_size",
		"password.min_length",
		"password.min_character_classes",
		"password.min_strength_score",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.redeemed_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the composition root cannot build.
func (c *AppConfig) Validate() error {
	switch c.Identity.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("identity.store must be %q or %q, got %q", StoreMemory, StorePostgres, c.Identity.Store)
	}
	switch c.Identity.ReplayGuard {
	case GuardMemory, GuardRedis:
	default:
		return fmt.Errorf("identity.replay_guard must be %q or %q, got %q", GuardMemory, GuardRedis, c.Identity.ReplayGuard)
	}
	if len(c.Tokens.SigningSecret) < 16 {
		return fmt.Errorf("tokens.signing_secret must be at least 16 characters")
	}
	if c.Lockout.MaxFailedAttempts < 0 {
		return fmt.Errorf("lockout.max_failed_attempts must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "identity-adapter")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.admin_token", "")
	v.SetDefault("app.protocol_token", "")
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("identity.store", StoreMemory)
	v.SetDefault("identity.replay_guard", GuardMemory)
	v.SetDefault("identity.display_name_claim_type", "")
	v.SetDefault("identity.enable_security_stamp", true)
	v.SetDefault("identity.require_unique_email", true)
	v.SetDefault("identity.include_account_properties", false)
	v.SetDefault("identity.role_claim_type", "role")
	v.SetDefault("identity.enable_roles", true)

	v.SetDefault("lockout.enabled_by_default", true)
	v.SetDefault("lockout.max_failed_attempts", 5)
	v.SetDefault("lockout.duration", "15m")

	v.SetDefault("tokens.signing_secret", "")
	v.SetDefault("tokens.issuer", "identity-adapter")
	v.SetDefault("tokens.email_confirmation_ttl", "24h")
	v.SetDefault("tokens.phone_change_ttl", "15m")
	v.SetDefault("tokens.password_reset_ttl", "1h")
	v.SetDefault("tokens.replay_cache_size", 100000)

	v.SetDefault("password.min_length", 10)
	v.SetDefault("password.min_character_classes", 3)
	v.SetDefault("password.min_strength_score", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "iam")
	v.SetDefault("postgres.password", "iam_password")
	v.SetDefault("postgres.database", "iam")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.redeemed_prefix", "iam:redeemed")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "iam")
	v.SetDefault("kafka.async", true)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "identity-adapter")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
