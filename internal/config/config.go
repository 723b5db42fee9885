package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort string

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	// LockTimeout bounds row-lock waits inside a mutation transaction.
	LockTimeout time.Duration

	// CollectorURL is the external order data-collection endpoint. Empty
	// means the worker only logs events.
	CollectorURL string

	MenuPriceTTL   time.Duration
	PopularMenuTTL time.Duration
}

// New loads and validates configuration from environment variables. NATS is
// optional: with no CAFEPOINT_NATS_HOST the bus and collector worker simply
// don't start.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:  os.Getenv("CAFEPOINT_POSTGRES_USER"),
		DBPass:  os.Getenv("CAFEPOINT_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("CAFEPOINT_POSTGRES_HOST"),
		DBPort:  getEnv("CAFEPOINT_POSTGRES_PORT", "5432"),
		DBName:  os.Getenv("CAFEPOINT_POSTGRES_DB"),
		SSLMode: getEnv("CAFEPOINT_POSTGRES_SSLMODE", "disable"),

		RedisHost: os.Getenv("CAFEPOINT_REDIS_HOST"),
		RedisPort: getEnv("CAFEPOINT_REDIS_PORT", "6379"),

		NatsHost: os.Getenv("CAFEPOINT_NATS_HOST"),
		NatsPort: getEnv("CAFEPOINT_NATS_PORT", "4222"),

		ApiPort: getEnv("CAFEPOINT_API_PORT", "8080"),

		JWTSecret:  os.Getenv("CAFEPOINT_JWT_SECRET"),
		TokenTTL:   getEnvDuration("CAFEPOINT_TOKEN_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("CAFEPOINT_BCRYPT_COST", 0),

		LockTimeout: getEnvDuration("CAFEPOINT_LOCK_TIMEOUT", 5*time.Second),

		CollectorURL: os.Getenv("CAFEPOINT_COLLECTOR_URL"),

		MenuPriceTTL:   getEnvDuration("CAFEPOINT_MENU_PRICE_TTL", 10*time.Minute),
		PopularMenuTTL: getEnvDuration("CAFEPOINT_POPULAR_MENU_TTL", time.Minute),
	}

	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("missing required env for database: CAFEPOINT_POSTGRES_USER/HOST/DB")
	}
	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("missing required env: CAFEPOINT_REDIS_HOST")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env: CAFEPOINT_JWT_SECRET")
	}
	if cfg.LockTimeout < 0 {
		return nil, fmt.Errorf("CAFEPOINT_LOCK_TIMEOUT must not be negative")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// NatsAddr returns the NATS URL, or "" when NATS is not configured.
func (c *Config) NatsAddr() string {
	if c.NatsHost == "" {
		return ""
	}
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

func (c *Config) ApiAddr() string {
	return ":" + c.ApiPort
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
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
