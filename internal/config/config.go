package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Catalog
	OMDbAPIKey      string        // required
	OMDbBaseURL     string        // ex: https://www.omdbapi.com/
	CatalogTimeout  time.Duration // per request timeout against the catalog
	DetailCacheSize int           // max cached detail lookups
	DetailCacheTTL  time.Duration // lifetime of a cached detail lookup
	SearchCacheTTL  time.Duration // lifetime of a cached search page in redis (0 = disabled)
	DefaultQuery    string        // query primed on startup (empty = none)
	PosterFallback  string        // rendered for titles without a poster

	// Identity & bookmarks
	LocalCacheFile string        // path of the persisted local record
	JWTSecret      string        // required, signs session tokens
	SessionTTL     time.Duration // session token lifetime
	FlushInterval  time.Duration // retry interval for failed durable writes
	PersistRetries uint          // attempts per durable write

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Access restrictions
	AllowedHosts   []string // optional, restrict access to specific Host headers
	AllowedCIDRS   []string // optional, restrict health endpoints to specific IPs
	AllowedOrigins []string // CORS origins of the UI
	TrustProxy     bool     // true => trust X-Forwarded-For headers

	// Pagination rate limit (per client IP)
	PageBurst        int
	PageRefillPerMin int
}

func Load() *Config {
	cfg := &Config{
		ListenPort:      getenv("WATCHLIST_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("WATCHLIST_SHUTDOWN_TIMEOUT", 5*time.Second),

		LogLevel:  getenv("WATCHLIST_LOG_LEVEL", "info"),
		PrettyLog: mustBool("WATCHLIST_PRETTY_LOG", true),

		OMDbAPIKey:      requireEnv("WATCHLIST_OMDB_API_KEY"),
		OMDbBaseURL:     getenv("WATCHLIST_OMDB_BASE_URL", "https://www.omdbapi.com/"),
		CatalogTimeout:  mustDuration("WATCHLIST_CATALOG_TIMEOUT", 10*time.Second),
		DetailCacheSize: getenvInt("WATCHLIST_DETAIL_CACHE_SIZE", 512),
		DetailCacheTTL:  mustDuration("WATCHLIST_DETAIL_CACHE_TTL", time.Hour),
		SearchCacheTTL:  mustDuration("WATCHLIST_SEARCH_CACHE_TTL", 10*time.Minute),
		DefaultQuery:    getenv("WATCHLIST_DEFAULT_QUERY", "insidious"),
		PosterFallback:  getenv("WATCHLIST_POSTER_FALLBACK", "https://via.placeholder.com/200x300"),

		LocalCacheFile: getenv("WATCHLIST_LOCAL_CACHE_FILE", "/app/data/local.yaml"),
		JWTSecret:      requireEnv("WATCHLIST_JWT_SECRET"),
		SessionTTL:     mustDuration("WATCHLIST_SESSION_TTL", 7*24*time.Hour),
		FlushInterval:  mustDuration("WATCHLIST_FLUSH_INTERVAL", 30*time.Second),
		PersistRetries: getenvAttempts("WATCHLIST_PERSIST_RETRIES", 3),

		RedisAddr:             requireEnv("WATCHLIST_REDIS_ADDR"),
		RedisUser:             getenv("WATCHLIST_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("WATCHLIST_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("WATCHLIST_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("WATCHLIST_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		AllowedHosts:   splitAndTrim(getenv("WATCHLIST_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   splitAndTrim(getenv("WATCHLIST_ALLOWED_CIDRS", "")),
		AllowedOrigins: splitAndTrim(getenv("WATCHLIST_ALLOWED_ORIGINS", "*")),
		TrustProxy:     mustBool("WATCHLIST_TRUST_PROXY", false),

		PageBurst:        getenvInt("WATCHLIST_PAGE_BURST", 10),
		PageRefillPerMin: getenvInt("WATCHLIST_PAGE_REFILL_PER_MIN", 60),
	}

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: WATCHLIST_REDIS_PASSWORD is required when WATCHLIST_REDIS_PASSWORD_REQUIRED=true")
	}
	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.OMDbAPIKey = "***REDACTED***"
		cfgCopy.JWTSecret = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getenvAttempts reads an attempt count. Anything below one means one.
func getenvAttempts(key string, def int) uint {
	n := getenvInt(key, def)
	if n < 1 {
		return 1
	}
	return uint(n)
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
