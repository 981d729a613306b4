package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketExports string
	UseSSL        bool
	Region        string
}

// SecurityConfig is the login/session/password policy. It is built once at
// startup and handed to constructors; business logic never reads the
// environment directly.
type SecurityConfig struct {
	JWTSecret             string
	SessionInactivity     time.Duration
	MaxLoginAttempts      int
	LockoutDuration       time.Duration
	PasswordMaxAgeDays    int
	PasswordMaxAgeMinutes int
	PasswordHistoryDepth  int
	SingleSessionPerUser  bool
	SessionRetention      time.Duration
}

// ProcessConfig governs the collection workflow: which waste types share the
// globally managed cost, and how long a compute token stays valid.
type ProcessConfig struct {
	TokenSecret        string
	TokenTTL           time.Duration
	GovernedWasteTypes []int
}

type ExportConfig struct {
	SnapshotTTL time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Process          ProcessConfig
	Export           ExportConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("WASTEMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwtsecret is required")
	}
	if c.Process.TokenSecret == "" {
		// No dedicated process secret configured: share the session secret.
		c.Process.TokenSecret = c.Security.JWTSecret
	}
	if len(c.Process.GovernedWasteTypes) < 2 {
		return fmt.Errorf("process.governedwastetypes needs at least two members, got %d",
			len(c.Process.GovernedWasteTypes))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketexports", "wastemon-exports")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.sessioninactivity", "30m")
	v.SetDefault("security.maxloginattempts", 3)
	v.SetDefault("security.lockoutduration", "1m")
	v.SetDefault("security.passwordmaxagedays", 30)
	v.SetDefault("security.passwordmaxageminutes", 0)
	v.SetDefault("security.passwordhistorydepth", 5)
	v.SetDefault("security.singlesessionperuser", false)
	v.SetDefault("security.sessionretention", "720h") // 30 days of tombstones

	v.SetDefault("process.tokenttl", "15m")
	v.SetDefault("process.governedwastetypes", []int{1, 2})

	v.SetDefault("export.snapshotttl", "30m")
}
