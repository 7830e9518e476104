package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Realtime RealtimeConfig
	Messages MessagesConfig
	Storage  StorageConfig

	JWTSecret          string
	AllowedOrigins     []string
	PlatformRateLimit  int
	StoreRetryAttempts int
}

type ServerConfig struct {
	AppName        string
	Port           string
	BodyLimit      int
	RequestTimeout time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

type DatabaseConfig struct {
	Host         string
	User         string
	Password     string
	Name         string
	Port         string
	SSLMode      string
	MaxOpenConns int
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RealtimeConfig struct {
	Transports   []string
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
}

// StorageConfig points at the S3-compatible bucket holding attachments.
// Attachment existence checks are skipped when Endpoint is empty.
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

func (s StorageConfig) Enabled() bool { return s.Endpoint != "" }

type MessagesConfig struct {
	DefaultCountryCode string
	MaxLength          int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "GekyChat Messaging Core")
	v.SetDefault("PORT", "8080")
	v.SetDefault("BODY_LIMIT_MB", 8)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REALTIME_TRANSPORTS", "hub")
	v.SetDefault("KAFKA_TOPIC", "gekychat.events")
	v.SetDefault("DEFAULT_COUNTRY_CODE", "233")
	v.SetDefault("MAX_MESSAGE_LENGTH", 4000)
	v.SetDefault("PLATFORM_RATE_LIMIT", 120)
	v.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_PREFIX", "attachments")
	return v
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			AppName:        v.GetString("APP_NAME"),
			Port:           v.GetString("PORT"),
			BodyLimit:      v.GetInt("BODY_LIMIT_MB") * 1024 * 1024,
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		Log: LogConfig{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			Port:         v.GetString("DB_PORT"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Realtime: RealtimeConfig{
			Transports:   splitCSV(v.GetString("REALTIME_TRANSPORTS")),
			KafkaBrokers: splitCSV(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_TOPIC"),
			NATSURL:      v.GetString("NATS_URL"),
		},
		Messages: MessagesConfig{
			DefaultCountryCode: strings.TrimPrefix(strings.TrimSpace(v.GetString("DEFAULT_COUNTRY_CODE")), "+"),
			MaxLength:          v.GetInt("MAX_MESSAGE_LENGTH"),
		},
		Storage: StorageConfig{
			Endpoint:  strings.TrimSpace(v.GetString("S3_ENDPOINT")),
			Region:    strings.TrimSpace(v.GetString("S3_REGION")),
			Bucket:    strings.TrimSpace(v.GetString("S3_BUCKET")),
			AccessKey: strings.TrimSpace(v.GetString("S3_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(v.GetString("S3_SECRET_KEY")),
			UseSSL:    v.GetBool("S3_USE_SSL"),
			Prefix:    strings.Trim(v.GetString("S3_PREFIX"), "/"),
		},
		JWTSecret:          v.GetString("JWT_SECRET"),
		AllowedOrigins:     splitCSV(v.GetString("ALLOWED_ORIGINS")),
		PlatformRateLimit:  v.GetInt("PLATFORM_RATE_LIMIT"),
		StoreRetryAttempts: v.GetInt("STORE_RETRY_ATTEMPTS"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	cc := c.Messages.DefaultCountryCode
	if cc == "" || len(cc) > 3 || strings.Trim(cc, "0123456789") != "" {
		return fmt.Errorf("invalid DEFAULT_COUNTRY_CODE %q", cc)
	}
	if c.Messages.MaxLength < 1 {
		c.Messages.MaxLength = 4000
	}
	if c.StoreRetryAttempts < 1 {
		c.StoreRetryAttempts = 1
	}
	if c.PlatformRateLimit < 1 {
		c.PlatformRateLimit = 120
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Storage.Enabled() && (c.Storage.Bucket == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return errors.New("S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}
	for _, t := range c.Realtime.Transports {
		switch t {
		case "hub", "redis":
		case "kafka":
			if len(c.Realtime.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required for the kafka transport")
			}
		case "nats":
			if c.Realtime.NATSURL == "" {
				return errors.New("NATS_URL is required for the nats transport")
			}
		default:
			return fmt.Errorf("unknown realtime transport %q", t)
		}
	}
	return nil
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
