package audit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reid/internal/observability"
)

// DefaultMaxPending bounds the buffer while uploads keep failing.
const DefaultMaxPending = 50000

// ObjectPutter stores a blob under key.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Sink buffers records and uploads them as JSONL objects under
// audit/<date>/. A batch is uploaded when it reaches batchSize or on the
// periodic flush, whichever comes first.
type Sink struct {
	store      ObjectPutter
	batchSize  int
	interval   time.Duration
	maxPending int

	mu  sync.Mutex
	buf []Record

	flushed func(n int)
}

// NewSink creates a sink. batchSize <= 0 uploads only on the timer and
// on Close.
func NewSink(store ObjectPutter, batchSize int, interval time.Duration) *Sink {
	return &Sink{store: store, batchSize: batchSize, interval: interval, maxPending: DefaultMaxPending}
}

// SetMaxPending caps the number of buffered records. When the cap is
// exceeded the oldest records are dropped. n <= 0 keeps the default.
func (s *Sink) SetMaxPending(n int) {
	if n <= 0 {
		n = DefaultMaxPending
	}
	s.mu.Lock()
	s.maxPending = n
	s.mu.Unlock()
}

// OnFlush registers a callback invoked with the size of every uploaded batch.
func (s *Sink) OnFlush(fn func(n int)) {
	s.flushed = fn
}

// Append buffers recs and uploads the buffer if it is full.
func (s *Sink) Append(ctx context.Context, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	s.mu.Lock()
	s.buf = append(s.buf, recs...)
	s.trimLocked()
	full := s.batchSize > 0 && len(s.buf) >= s.batchSize
	s.mu.Unlock()
	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered records.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Flush uploads buffered records. On failure the batch is put back at the
// front of the buffer.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	var data bytes.Buffer
	if err := WriteJSONL(&data, batch); err != nil {
		s.requeue(batch)
		return err
	}
	key := ObjectKey(batch[0].Timestamp, uuid.New())
	if err := s.store.PutObject(ctx, key, data.Bytes(), "application/x-ndjson"); err != nil {
		s.requeue(batch)
		return fmt.Errorf("upload %s: %w", key, err)
	}
	slog.Debug("audit batch uploaded", "key", key, "records", len(batch))
	if s.flushed != nil {
		s.flushed(len(batch))
	}
	return nil
}

func (s *Sink) requeue(batch []Record) {
	s.mu.Lock()
	s.buf = append(batch, s.buf...)
	s.trimLocked()
	s.mu.Unlock()
}

// trimLocked drops the oldest records beyond maxPending.
func (s *Sink) trimLocked() {
	over := len(s.buf) - s.maxPending
	if s.maxPending <= 0 || over <= 0 {
		return
	}
	s.buf = append([]Record(nil), s.buf[over:]...)
	observability.AuditRecordsDropped.Add(float64(over))
	slog.Warn("audit buffer full, dropping oldest records", "dropped", over, "pending", len(s.buf))
}

// Run flushes on every interval tick until ctx is done, then makes a final
// flush with a short grace context.
func (s *Sink) Run(ctx context.Context) {
	if s.interval <= 0 {
		<-ctx.Done()
		s.closeFlush()
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeFlush()
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				slog.Warn("audit flush failed", "error", err)
			}
		}
	}
}

func (s *Sink) closeFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		slog.Error("final audit flush", "error", err)
	}
}

// ObjectKey names an audit object: audit/<yyyy-mm-dd>/<hhmmss>_<id>.jsonl.
func ObjectKey(ts time.Time, id uuid.UUID) string {
	ts = ts.UTC()
	return fmt.Sprintf("audit/%s/%s_%s.jsonl", ts.Format("2006-01-02"), ts.Format("150405"), id)
}

// DatePrefix is the object prefix holding all audit batches of a day.
func DatePrefix(day time.Time) string {
	return "audit/" + day.UTC().Format("2006-01-02") + "/"
}
