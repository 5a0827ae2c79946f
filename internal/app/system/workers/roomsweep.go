// internal/app/system/workers/roomsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	accesslogstore "github.com/dalemusser/aimap/internal/app/store/accesslogs"
	ratelimitstore "github.com/dalemusser/aimap/internal/app/store/ratelimits"
	locationstore "github.com/dalemusser/aimap/internal/app/store/roomlocations"
	memberstore "github.com/dalemusser/aimap/internal/app/store/roommembers"
	roomstore "github.com/dalemusser/aimap/internal/app/store/rooms"
	"github.com/dalemusser/aimap/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultSweepGrace keeps expired rooms around briefly so late check calls
// still see ROOM_EXPIRED instead of ROOM_NOT_FOUND.
const DefaultSweepGrace = 10 * time.Minute

const defaultSweepBatch = 200

// RoomSweeper is a background worker that deletes expired rooms together
// with their members and locations, and drops access log entries and rate
// limit counters past their expires_at.
type RoomSweeper struct {
	rooms     *roomstore.Store
	members   *memberstore.Store
	locations *locationstore.Store
	accessLog *accesslogstore.Store
	counters  *ratelimitstore.MongoStore // nil when counters live in Redis

	log      *zap.Logger
	interval time.Duration
	grace    time.Duration
	batch    int64
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// SweepConfig holds sweeper settings. Zero values take defaults.
type SweepConfig struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int64
	// SkipCounters leaves rate_limits alone (the Redis backend expires its own keys).
	SkipCounters bool
}

// NewRoomSweeper creates a sweeper over the collections in db.
func NewRoomSweeper(db *mongo.Database, logger *zap.Logger, cfg SweepConfig) *RoomSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultSweepBatch
	}
	w := &RoomSweeper{
		rooms:     roomstore.New(db),
		members:   memberstore.New(db),
		locations: locationstore.New(db),
		accessLog: accesslogstore.New(db),
		log:       logger,
		interval:  cfg.Interval,
		grace:     cfg.Grace,
		batch:     cfg.Batch,
		now:       func() time.Time { return time.Now().UTC() },
		stopCh:    make(chan struct{}),
	}
	if !cfg.SkipCounters {
		w.counters = ratelimitstore.NewMongo(db)
	}
	return w
}

// Start begins the background sweep loop.
func (w *RoomSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("room sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("grace", w.grace))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *RoomSweeper) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("room sweeper stopped")
}

func (w *RoomSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
			w.Sweep(ctx)
			cancel()
		}
	}
}

// SweepResult counts what one pass removed.
type SweepResult struct {
	Rooms      int64
	Members    int64
	Locations  int64
	AccessLogs int64
	Counters   int64
}

// Sweep performs one pass. Errors are logged; a failing step does not stop
// the remaining steps.
func (w *RoomSweeper) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	now := w.now()
	cutoff := now.Add(-w.grace)

	for {
		ids, err := w.rooms.ListExpiredIDs(ctx, cutoff, w.batch)
		if err != nil {
			w.log.Error("failed to list expired rooms", zap.Error(err))
			break
		}
		if len(ids) == 0 {
			break
		}

		// Children first: a failure part-way leaves the room listed for the next pass.
		n, err := w.locations.DeleteByRooms(ctx, ids)
		if err != nil {
			w.log.Error("failed to delete locations of expired rooms", zap.Error(err))
			break
		}
		res.Locations += n

		n, err = w.members.DeleteByRooms(ctx, ids)
		if err != nil {
			w.log.Error("failed to delete members of expired rooms", zap.Error(err))
			break
		}
		res.Members += n

		n, err = w.rooms.DeleteMany(ctx, ids)
		if err != nil {
			w.log.Error("failed to delete expired rooms", zap.Error(err))
			break
		}
		res.Rooms += n

		if int64(len(ids)) < w.batch {
			break
		}
	}

	if n, err := w.accessLog.DeleteExpired(ctx, now); err != nil {
		w.log.Error("failed to delete expired access log entries", zap.Error(err))
	} else {
		res.AccessLogs = n
	}

	if w.counters != nil {
		if n, err := w.counters.DeleteExpired(ctx, now); err != nil {
			w.log.Error("failed to delete expired rate limit counters", zap.Error(err))
		} else {
			res.Counters = n
		}
	}

	if res != (SweepResult{}) {
		w.log.Info("sweep completed",
			zap.Int64("rooms", res.Rooms),
			zap.Int64("members", res.Members),
			zap.Int64("locations", res.Locations),
			zap.Int64("access_logs", res.AccessLogs),
			zap.Int64("counters", res.Counters))
	}
	return res
}
