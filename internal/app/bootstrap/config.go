// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/aimap/internal/app/features/rooms"
	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for aimap.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, room_ttl, etc.
//   - Environment variables: AIMAP_MONGO_URI, AIMAP_ROOM_TTL, etc.
//   - Command-line flags: --mongo_uri, --room_ttl, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "aimap", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},

	// Redis (optional)
	{Name: "redis_addr", Default: "", Desc: "Redis address host:port (blank disables Redis)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "ratelimit_backend", Default: BackendMongo, Desc: "Rate limit counter store: 'mongo', 'redis' or 'memory'"},

	// Identity tokens
	{Name: "token_secret", Default: "", Desc: "HS256 secret for identity tokens (required in production)"},
	{Name: "token_issuer", Default: "aimap", Desc: "Issuer claim required on identity tokens"},
	{Name: "token_ttl", Default: "24h", Desc: "Lifetime of anonymous identity tokens"},

	{Name: "public_base_url", Default: "http://localhost:3000", Desc: "Base URL of shareable room links"},
	{Name: "cors_origins", Default: "http://localhost:3000", Desc: "Comma-separated allowed browser origins"},
	{Name: "trusted_proxies", Default: "", Desc: "Comma-separated proxy IPs/CIDRs whose X-Forwarded-For is believed (blank trusts none)"},

	// Rooms and access log
	{Name: "room_ttl", Default: "3h", Desc: "Room lifetime from creation"},
	{Name: "access_log_retention", Default: "720h", Desc: "How long access log entries are kept"},
	{Name: "access_log_queue", Default: 1024, Desc: "Access log write queue size"},

	// Rate limits
	{Name: "create_limit", Default: 5, Desc: "Room creations allowed per client per create_window"},
	{Name: "create_window", Default: "30m", Desc: "Room creation rate limit window"},
	{Name: "check_limit", Default: 10, Desc: "Room checks allowed per client per check_window"},
	{Name: "check_window", Default: "1m", Desc: "Room check rate limit window"},
	{Name: "auth_limit", Default: 10, Desc: "Anonymous sign-ins allowed per client per minute"},
	{Name: "join_max_failures", Default: 5, Desc: "Consecutive failed joins before a client is locked out"},
	{Name: "join_cooldown", Default: "1h", Desc: "Join lockout duration after the last failure"},

	// Sweeper
	{Name: "sweep_interval", Default: "10m", Desc: "How often expired rooms are swept (0 disables)"},
	{Name: "sweep_grace", Default: "10m", Desc: "How long past expiry a room is kept before sweeping"},

	{Name: "live_enabled", Default: true, Desc: "Serve the websocket live location stream"},

	// Timeouts
	{Name: "timeout_short", Default: "", Desc: "Short operation timeout (default 5s)"},
	{Name: "timeout_medium", Default: "", Desc: "Medium operation timeout (default 10s)"},
	{Name: "timeout_long", Default: "", Desc: "Long operation timeout (default 30s)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, AIMAP_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "AIMAP", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),

		RedisAddr:        appValues.String("redis_addr"),
		RedisPassword:    appValues.String("redis_password"),
		RedisDB:          appValues.Int("redis_db"),
		RateLimitBackend: strings.ToLower(strings.TrimSpace(appValues.String("ratelimit_backend"))),

		TokenSecret: appValues.String("token_secret"),
		TokenIssuer: appValues.String("token_issuer"),
		TokenTTL:    appValues.Duration("token_ttl", 24*time.Hour),

		PublicBaseURL: strings.TrimRight(appValues.String("public_base_url"), "/"),
		CORSOrigins:   splitList(appValues.String("cors_origins")),

		TrustedProxies: splitList(appValues.String("trusted_proxies")),

		RoomTTL:            appValues.Duration("room_ttl", rooms.DefaultRoomTTL),
		AccessLogRetention: appValues.Duration("access_log_retention", accesslog.DefaultRetention),
		AccessLogQueue:     appValues.Int("access_log_queue"),

		CreateLimit:     appValues.Int("create_limit"),
		CreateWindow:    appValues.Duration("create_window", 30*time.Minute),
		CheckLimit:      appValues.Int("check_limit"),
		CheckWindow:     appValues.Duration("check_window", time.Minute),
		AuthLimit:       appValues.Int("auth_limit"),
		AuthWindow:      time.Minute,
		JoinMaxFailures: appValues.Int("join_max_failures"),
		JoinCooldown:    appValues.Duration("join_cooldown", time.Hour),

		SweepInterval: appValues.Duration("sweep_interval", 10*time.Minute),
		SweepGrace:    appValues.Duration("sweep_grace", workers.DefaultSweepGrace),

		LiveEnabled: appValues.Bool("live_enabled"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	return coreCfg, appCfg, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if strings.TrimSpace(appCfg.TokenSecret) == "" {
		if coreCfg != nil && coreCfg.Env == "prod" {
			return fmt.Errorf("token_secret is required in production")
		}
		logger.Warn("token_secret is empty; identity tokens are insecure outside development")
	}

	switch appCfg.RateLimitBackend {
	case BackendMongo, BackendMemory:
	case BackendRedis:
		if appCfg.RedisAddr == "" {
			return fmt.Errorf("ratelimit_backend=redis requires redis_addr to be set")
		}
	default:
		return fmt.Errorf("ratelimit_backend must be 'mongo', 'redis' or 'memory', got %q", appCfg.RateLimitBackend)
	}

	if len(appCfg.CORSOrigins) == 0 {
		return fmt.Errorf("cors_origins must list at least one origin")
	}

	if _, err := ratelimit.ParseProxies(appCfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}

	for name, n := range map[string]int{
		"create_limit":      appCfg.CreateLimit,
		"check_limit":       appCfg.CheckLimit,
		"auth_limit":        appCfg.AuthLimit,
		"join_max_failures": appCfg.JoinMaxFailures,
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, n)
		}
	}

	if appCfg.RoomTTL <= 0 {
		return fmt.Errorf("room_ttl must be positive")
	}

	return nil
}
