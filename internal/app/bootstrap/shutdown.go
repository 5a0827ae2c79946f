// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// background tracks long-running pieces started by BuildHandler.
type background struct {
	access  *accesslog.Logger
	sweeper *workers.RoomSweeper
	memory  *ratelimit.MemoryStore
	stopHub context.CancelFunc
}

// stop halts the workers and drains the access log within ctx.
func (b *background) stop(ctx context.Context, logger *zap.Logger) {
	if b == nil {
		return
	}
	if b.sweeper != nil {
		b.sweeper.Stop()
	}
	if b.stopHub != nil {
		b.stopHub()
	}
	if b.memory != nil {
		b.memory.Close()
	}
	if err := b.access.Stop(ctx); err != nil {
		logger.Warn("access log drain incomplete", zap.Error(err))
	}
}

// Shutdown cleanly tears down background workers and DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	deps.Background.stop(ctx, logger)

	var errs []error
	if deps.Redis != nil {
		logger.Info("closing Redis client")
		if err := deps.Redis.Close(); err != nil {
			logger.Error("Redis close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
