package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	envcfg "github.com/Skotchmaster/bookstore/pkg/config"
)

type Config struct {
	ListenAddr     string
	BackendURL     string
	BackendTimeout time.Duration
	LogLevel       string

	TokenStore      string
	TokenFile       string
	TokenSQLitePath string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisKey        string

	PersistAfterExchange bool

	KafkaBrokers       []string
	SessionEventsTopic string
	CartEventsTopic    string
	AdminEventsTopic   string

	QueryCacheTTL   time.Duration
	CatalogPageSize int
	AdminPageSize   int

	CSRFEnabled bool
	CSRFSecure  bool
}

func LoadConfig() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return &Config{
		ListenAddr:     envcfg.EnvDefault("STOREFRONT_ADDR", ":3000"),
		BackendURL:     envcfg.EnvDefault("BACKEND_URL", ""),
		BackendTimeout: envcfg.EnvDurationDefault("BACKEND_TIMEOUT", 10*time.Second),
		LogLevel:       envcfg.EnvDefault("LOG_LEVEL", "info"),

		TokenStore:      envcfg.EnvDefault("TOKEN_STORE", "file"),
		TokenFile:       envcfg.EnvDefault("TOKEN_FILE", ".bookstore_session"),
		TokenSQLitePath: envcfg.EnvDefault("TOKEN_SQLITE_PATH", "bookstore_session.db"),
		DatabaseURL:     envcfg.EnvDefault("DATABASE_URL", ""),
		RedisAddr:       envcfg.EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   envcfg.EnvDefault("REDIS_PASSWORD", ""),
		RedisKey:        envcfg.EnvDefault("REDIS_KEY", "bookstore:session:token"),

		PersistAfterExchange: envcfg.EnvBoolDefault("PERSIST_AFTER_EXCHANGE", false),

		KafkaBrokers:       envcfg.CSV(envcfg.EnvDefault("KAFKA_BROKERS", "")),
		SessionEventsTopic: envcfg.EnvDefault("SESSION_EVENTS_TOPIC", "session_events"),
		CartEventsTopic:    envcfg.EnvDefault("CART_EVENTS_TOPIC", "cart_events"),
		AdminEventsTopic:   envcfg.EnvDefault("ADMIN_EVENTS_TOPIC", "admin_events"),

		QueryCacheTTL:   envcfg.EnvDurationDefault("QUERY_CACHE_TTL", 30*time.Second),
		CatalogPageSize: envcfg.EnvIntDefault("CATALOG_PAGE_SIZE", 24),
		AdminPageSize:   envcfg.EnvIntDefault("ADMIN_PAGE_SIZE", 10),

		CSRFEnabled: envcfg.EnvBoolDefault("CSRF_ENABLED", true),
		CSRFSecure:  envcfg.EnvBoolDefault("CSRF_SECURE", false),
	}
}
