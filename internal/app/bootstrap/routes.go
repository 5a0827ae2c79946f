// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"
	"time"

	authanonfeature "github.com/dalemusser/aimap/internal/app/features/authanon"
	healthfeature "github.com/dalemusser/aimap/internal/app/features/health"
	locationsfeature "github.com/dalemusser/aimap/internal/app/features/locations"
	roomsfeature "github.com/dalemusser/aimap/internal/app/features/rooms"
	accesslogstore "github.com/dalemusser/aimap/internal/app/store/accesslogs"
	ratelimitstore "github.com/dalemusser/aimap/internal/app/store/ratelimits"
	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/idtoken"
	"github.com/dalemusser/aimap/internal/app/system/livefeed"
	"github.com/dalemusser/aimap/internal/app/system/metrics"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Besides the router it starts the
// background pieces (access log writer, live hub relay, sweeper); they are
// recorded on deps.Background and stopped by Shutdown.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	bg := deps.Background
	if bg == nil {
		bg = &background{}
	}
	db := deps.MongoDatabase

	m := metrics.New()

	// Access log: mirrored to zap, persisted asynchronously.
	access := accesslog.New(accesslogstore.New(db), logger, m, accesslog.Config{
		QueueSize: appCfg.AccessLogQueue,
		Retention: appCfg.AccessLogRetention,
	})
	access.Start()
	bg.access = access

	counters := counterStore(appCfg, deps, bg, logger)

	// Identity tokens.
	secret := appCfg.TokenSecret
	if secret == "" {
		// Development only; ValidateConfig refuses this in prod.
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("using an ephemeral token secret; tokens will not survive a restart")
	}
	tokens := idtoken.NewHMAC(secret, appCfg.TokenIssuer, appCfg.TokenTTL)

	// Live updates. A nil hub leaves the rooms service without a notifier.
	var hub *livefeed.Hub
	var notify roomsfeature.Notifier
	if appCfg.LiveEnabled {
		hub = livefeed.NewHub(livefeed.Options{Redis: deps.Redis, Gauge: m}, logger)
		ctx, cancel := context.WithCancel(context.Background())
		bg.stopHub = cancel
		go hub.Run(ctx)
		notify = hub
	}

	roomsSvc := roomsfeature.NewService(db, roomsfeature.Options{
		RoomTTL:       appCfg.RoomTTL,
		RoomURLBase:   appCfg.PublicBaseURL,
		CreateLimiter: ratelimit.NewWindow(counters, appCfg.CreateLimit, appCfg.CreateWindow),
		CheckLimiter:  ratelimit.NewWindow(counters, appCfg.CheckLimit, appCfg.CheckWindow),
		JoinLimiter:   ratelimit.NewFailure(counters, appCfg.JoinMaxFailures, appCfg.JoinCooldown),
		Access:        access,
		Metrics:       m,
		Notify:        notify,
	}, logger)
	roomsHandler := roomsfeature.NewHandler(roomsSvc, logger)

	locSvc := locationsfeature.NewService(db, notify, m, logger)
	locHandler := locationsfeature.NewHandler(locSvc, hub, appCfg.CORSOrigins, logger)

	anonHandler := authanonfeature.NewHandler(tokens,
		ratelimit.NewWindow(counters, appCfg.AuthLimit, appCfg.AuthWindow),
		access, m, logger)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)

	if appCfg.SweepInterval > 0 {
		sweeper := workers.NewRoomSweeper(db, logger, workers.SweepConfig{
			Interval:     appCfg.SweepInterval,
			Grace:        appCfg.SweepGrace,
			SkipCounters: appCfg.RateLimitBackend != BackendMongo,
		})
		sweeper.Start()
		bg.sweeper = sweeper
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     appCfg.CORSOrigins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     []string{"Authorization", "Content-Type"},
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(preflightNoContent)
	r.Use(idtoken.Load(tokens))

	r.Handle("/metrics", m.Handler())
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Mount("/auth", authanonfeature.Routes(anonHandler))
	r.Mount("/rooms", locationsfeature.Routes(locHandler))
	r.Mount("/", roomsfeature.Routes(roomsHandler))

	logger.Info("routes mounted",
		zap.Bool("live", hub != nil),
		zap.Bool("redis", deps.Redis != nil),
		zap.String("ratelimit_backend", appCfg.RateLimitBackend),
		zap.Strings("cors_origins", appCfg.CORSOrigins))

	return r, nil
}

// preflightNoContent answers every OPTIONS request with 204 after the CORS
// middleware has set its headers.
func preflightNoContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// counterStore picks the rate limit counter backend.
func counterStore(appCfg AppConfig, deps DBDeps, bg *background, logger *zap.Logger) ratelimit.CounterStore {
	switch appCfg.RateLimitBackend {
	case BackendRedis:
		return ratelimitstore.NewRedis(deps.Redis, "")
	case BackendMemory:
		logger.Warn("rate limit counters are in memory; limits are per instance and reset on restart")
		mem := ratelimit.NewMemoryStore(time.Minute)
		bg.memory = mem
		return mem
	default:
		return ratelimitstore.NewMongo(deps.MongoDatabase)
	}
}
