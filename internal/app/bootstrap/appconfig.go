// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Rate limit counter backends.
const (
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers the framework-level settings (ports, TLS,
// logging, request limits). Everything aimap needs to run rooms lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64

	// Redis is optional. When RedisAddr is set it backs live fan-out across
	// instances and, with RateLimitBackend=redis, the rate limit counters.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitBackend string // mongo, redis or memory

	// Identity tokens
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	PublicBaseURL string   // prefix of shareable room links
	CORSOrigins   []string // allowed browser origins

	// TrustedProxies lists the IPs and CIDR ranges whose forwarding
	// headers are believed when resolving the client address.
	TrustedProxies []string

	RoomTTL            time.Duration
	AccessLogRetention time.Duration
	AccessLogQueue     int

	// Rate limits
	CreateLimit     int
	CreateWindow    time.Duration
	CheckLimit      int
	CheckWindow     time.Duration
	AuthLimit       int
	AuthWindow      time.Duration
	JoinMaxFailures int
	JoinCooldown    time.Duration

	// Sweeper
	SweepInterval time.Duration
	SweepGrace    time.Duration

	LiveEnabled bool

	// Timeouts; zero keeps the built-in default.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
