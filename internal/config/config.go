package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	Env  string
	Port int

	// JWT signing secret; tokens cannot be issued without it
	SecretKey string

	StoreDriver   string
	DBURL         string
	SQLitePath    string
	DBAutoMigrate bool
	DBMaxConns    int

	CORSOrigins  []string
	MaxBodyBytes int64
	// requests per minute per client on register/login; 0 disables
	AuthRateLimit int
	// proxies whose X-Forwarded-For is believed; empty means the peer address
	TrustedProxies []string

	WeatherAPIKey   string
	WeatherAPIURL   string
	ClothesAPIURL   string
	UpstreamTimeout time.Duration
	ProxyCacheTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	SeedUsername string
	SeedEmail    string
	SeedPassword string
}

// Load reads the process environment. A .env file in the working directory
// is applied first when present; real environment variables win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 3001),

		SecretKey: os.Getenv("SECRET_KEY"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DBURL:         getEnv("DATABASE_URL", buildDBURL()),
		SQLitePath:    getEnv("SQLITE_PATH", "dashboard.db"),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 5),

		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"https://tp-front-4bfb.onrender.com"}),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 0),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),

		WeatherAPIKey:   os.Getenv("WEATHER_API_KEY"),
		WeatherAPIURL:   getEnv("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5/weather"),
		ClothesAPIURL:   getEnv("CLOTHES_API_URL", "https://tboxapps.therapy-box.co.uk/hackathon/clothing-api.php?username=swapnil"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		ProxyCacheTTL:   getEnvDuration("PROXY_CACHE_TTL", 30*time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		SeedUsername: os.Getenv("SEED_USERNAME"),
		SeedEmail:    os.Getenv("SEED_EMAIL"),
		SeedPassword: os.Getenv("SEED_PASSWORD"),
	}
}

var (
	ErrMissingSecret  = errors.New("SECRET_KEY is required")
	ErrUnknownStore   = errors.New("STORE_DRIVER must be one of postgres, sqlite, memory")
	ErrInvalidPort    = errors.New("PORT must be between 1 and 65535")
	ErrSeedIncomplete = errors.New("SEED_USERNAME, SEED_EMAIL and SEED_PASSWORD must be set together")
)

func (c Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, ErrMissingSecret)
	}

	switch c.StoreDriver {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, ErrUnknownStore)
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}

	seed := []string{c.SeedUsername, c.SeedEmail, c.SeedPassword}
	set := 0
	for _, v := range seed {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(seed) {
		errs = append(errs, ErrSeedIncomplete)
	}

	return errors.Join(errs...)
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "dashboard")
	pass := getEnv("DB_PASSWORD", "dashboard")
	name := getEnv("DB_NAME", "dashboard")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
			return fallback
		}

		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
			return fallback
		}

		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
