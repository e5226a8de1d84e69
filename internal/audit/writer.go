package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// DefaultBufferSize kích thước hàng đợi mặc định
const DefaultBufferSize = 1024

// LogStore persists validation log entries and assigns their monotonic id.
type LogStore interface {
	AppendLog(ctx context.Context, entry *models.ValidationLogEntry) error
}

// Publisher forwards persisted entries to downstream consumers.
type Publisher interface {
	PublishValidation(ctx context.Context, entry models.ValidationLogEntry) error
}

// WriterStats thống kê của Writer
type WriterStats struct {
	Written   int64 `json:"written"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
	Published int64 `json:"published"`
}

// Writer is a fire-and-forget validation log writer. Enqueue never blocks;
// sink failures are logged and counted, never returned to the caller.
type Writer struct {
	store        LogStore
	publisher    Publisher
	logger       *zap.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.ValidationLogEntry
	done   chan struct{}

	written   atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	published atomic.Int64
}

// NewWriter tạo mới Writer và khởi động worker. publisher may be nil.
func NewWriter(store LogStore, publisher Publisher, bufferSize int, logger *zap.Logger) *Writer {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	w := &Writer{
		store:        store,
		publisher:    publisher,
		logger:       logger,
		writeTimeout: 5 * time.Second,
		queue:        make(chan models.ValidationLogEntry, bufferSize),
		done:         make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue hands an entry to the worker. It returns false when the entry was
// dropped because the queue is full or the writer is closed.
func (w *Writer) Enqueue(entry models.ValidationLogEntry) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.drop(entry, "closed")
		return false
	}
	select {
	case w.queue <- entry:
		return true
	default:
		w.drop(entry, "queue_full")
		return false
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("Audit writer đóng trước khi xử lý hết hàng đợi", zap.Int("pending", len(w.queue)))
		return ctx.Err()
	}
}

// Stats trả về thống kê hiện tại
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written:   w.written.Load(),
		Dropped:   w.dropped.Load(),
		Failed:    w.failed.Load(),
		Published: w.published.Load(),
	}
}

func (w *Writer) drop(entry models.ValidationLogEntry, reason string) {
	w.dropped.Add(1)
	metrics.AuditWritesTotal.WithLabelValues("queue", reason).Inc()
	w.logger.Warn("Bỏ qua validation log",
		zap.String("reason", reason),
		zap.String("run_id", entry.RunID),
		zap.String("source_name", entry.SourceName))
}

func (w *Writer) run() {
	defer close(w.done)
	for entry := range w.queue {
		w.write(entry)
	}
}

func (w *Writer) write(entry models.ValidationLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	// 1. Ghi vào store
	if err := w.store.AppendLog(ctx, &entry); err != nil {
		w.failed.Add(1)
		metrics.AuditWritesTotal.WithLabelValues("store", "error").Inc()
		w.logger.Error("Lỗi ghi validation log",
			zap.Error(err),
			zap.String("run_id", entry.RunID),
			zap.String("source_name", entry.SourceName))
		return
	}
	w.written.Add(1)
	metrics.AuditWritesTotal.WithLabelValues("store", "ok").Inc()

	// 2. Publish (optional)
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishValidation(ctx, entry); err != nil {
		metrics.AuditWritesTotal.WithLabelValues("publisher", "error").Inc()
		w.logger.Warn("Lỗi publish validation log", zap.Error(err), zap.Int64("log_id", entry.ID))
		return
	}
	w.published.Add(1)
	metrics.AuditWritesTotal.WithLabelValues("publisher", "ok").Inc()
}
