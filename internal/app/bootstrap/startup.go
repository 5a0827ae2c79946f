// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	cur := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium),
		zap.Duration("long", cur.Long))

	if err := ratelimit.SetTrustedProxies(appCfg.TrustedProxies); err != nil {
		return err
	}
	if len(appCfg.TrustedProxies) == 0 {
		logger.Info("no trusted proxies; client address is the socket peer")
	} else {
		logger.Info("trusted proxies configured", zap.Strings("proxies", appCfg.TrustedProxies))
	}
	return nil
}
