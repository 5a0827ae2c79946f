// internal/app/system/accesslog/logger.go
package accesslog

// Terminology: Identities
//   - UID / uid: the opaque subject id from a verified identity token, empty when unknown
//   - IP: the client address as resolved by ratelimit.ClientIP

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"go.uber.org/zap"
)

// Endpoint names recorded in entries.
const (
	EndpointCreateRoom = "createRoom"
	EndpointJoinRoom   = "joinRoom"
	EndpointCheckRoom  = "checkRoom"
	EndpointExitRoom   = "exitRoom"
	EndpointAnonymous  = "authAnonymous"
)

// DefaultRetention is how long an entry is kept before the sweeper may drop it.
const DefaultRetention = 30 * 24 * time.Hour

// Sink persists entries.
type Sink interface {
	Insert(ctx context.Context, e models.AccessLogEntry) error
}

// DropCounter is notified for every entry that could not be queued.
type DropCounter interface {
	AccessLogDropped()
}

// Config holds access log settings. Zero values take defaults.
type Config struct {
	QueueSize    int
	Retention    time.Duration
	WriteTimeout time.Duration
}

// Logger records access log entries without ever blocking or failing the
// caller. Entries are mirrored to zap immediately and written to the sink by a
// single background goroutine through a bounded queue; when the queue is full
// the entry is dropped and counted.
//
// A nil *Logger is valid and records nothing, so tests may omit it.
type Logger struct {
	sink      Sink
	zapLog    *zap.Logger
	drops     DropCounter
	retention time.Duration
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.AccessLogEntry
	done   chan struct{}
}

// New creates a Logger. Call Start to begin writing to the sink.
func New(sink Sink, zapLog *zap.Logger, drops DropCounter, cfg Config) *Logger {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		sink:      sink,
		zapLog:    zapLog,
		drops:     drops,
		retention: cfg.Retention,
		timeout:   cfg.WriteTimeout,
		queue:     make(chan models.AccessLogEntry, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (l *Logger) Start() {
	go l.run()
	l.zapLog.Info("access log writer started", zap.Int("queue_size", cap(l.queue)))
}

// Stop closes the queue and waits for queued entries to be written or for
// ctx to end, whichever comes first.
func (l *Logger) Stop(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		l.zapLog.Info("access log writer stopped")
		return nil
	case <-ctx.Done():
		l.zapLog.Warn("access log writer did not drain before shutdown", zap.Int("pending", len(l.queue)))
		return ctx.Err()
	}
}

// Record stamps expires_at from the entry timestamp and enqueues it.
func (l *Logger) Record(e models.AccessLogEntry) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.ExpiresAt = e.Timestamp.Add(l.retention)

	l.logToZap(e)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped(e, "closed")
		return
	}
	select {
	case l.queue <- e:
	default:
		l.dropped(e, "queue full")
	}
}

func (l *Logger) dropped(e models.AccessLogEntry, reason string) {
	if l.drops != nil {
		l.drops.AccessLogDropped()
	}
	l.zapLog.Warn("access log entry dropped",
		zap.String("reason", reason),
		zap.String("endpoint", e.Endpoint),
	)
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		l.write(e)
	}
}

func (l *Logger) write(e models.AccessLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.sink.Insert(ctx, e); err != nil {
		l.zapLog.Error("failed to store access log entry",
			zap.Error(err),
			zap.String("endpoint", e.Endpoint),
			zap.String("error_code", e.ErrorCode),
		)
	}
}

// logToZap logs the entry to zap with consistent structure.
func (l *Logger) logToZap(e models.AccessLogEntry) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("endpoint", e.Endpoint),
		zap.Bool("success", e.Success),
		zap.String("ip", e.IP),
	}
	if e.UID != "" {
		fields = append(fields, zap.String("uid", e.UID))
	}
	if e.RoomID != "" {
		fields = append(fields, zap.String("room_id", e.RoomID))
	}
	if e.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", e.ErrorCode))
	}
	if e.Note != "" {
		fields = append(fields, zap.String("note", e.Note))
	}

	if e.Success {
		l.zapLog.Info("access", fields...)
	} else {
		l.zapLog.Warn("access", fields...)
	}
}
