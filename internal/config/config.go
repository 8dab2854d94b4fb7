package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
	BackendRedis    Backend = "redis"
	BackendMongo    Backend = "mongo"
)

type Config struct {
	Service  string `env:"SERVICE_NAME" envDefault:"inventory"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Backend Backend `env:"STORE_BACKEND" envDefault:"file"`
	// LenientDecode resets a malformed persisted document to an empty
	// inventory instead of failing every request.
	LenientDecode bool   `env:"INVENTORY_LENIENT_DECODE" envDefault:"true"`
	FilePath      string `env:"INVENTORY_FILE" envDefault:"inventario.json"`

	PostgresDSN string `env:"POSTGRES_DSN"`
	MySQLDSN    string `env:"MYSQL_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisKey      string `env:"REDIS_KEY" envDefault:"inventory:document"`

	MongoURI        string `env:"MONGO_URI"`
	MongoDB         string `env:"MONGO_DB" envDefault:"inventory"`
	MongoCollection string `env:"MONGO_COLLECTION" envDefault:"inventory_documents"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"inventory.changes"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsToken   string `env:"METRICS_TOKEN"`

	RateLimit         int `env:"RATE_LIMIT" envDefault:"120"`
	RateWindowSeconds int `env:"RATE_WINDOW_SECONDS" envDefault:"60"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Backend = Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend))))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.FilePath == "" {
			return errors.New("INVENTORY_FILE is required for the file backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MYSQL_DSN is required for the mysql backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDB == "" {
			return errors.New("MONGO_URI and MONGO_DB are required for the mongo backend")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (memory/file/postgres/mysql/redis/mongo)", c.Backend)
	}

	if c.RateLimit > 0 && c.RateWindowSeconds <= 0 {
		return errors.New("RATE_WINDOW_SECONDS must be positive when RATE_LIMIT is set")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c Config) Addr() string { return ":" + c.Port }

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	c.PostgresDSN = redactURL(c.PostgresDSN)
	c.MongoURI = redactURL(c.MongoURI)
	if c.MySQLDSN != "" {
		c.MySQLDSN = redactMySQL(c.MySQLDSN)
	}
	if c.RedisPassword != "" {
		c.RedisPassword = "***"
	}
	if c.MetricsToken != "" {
		c.MetricsToken = "***"
	}
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// redactMySQL masks the password in user:pass@tcp(host)/db.
func redactMySQL(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	creds := dsn[:at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return creds[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
