package snp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/cursor"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
	"github.com/USCbiostats/annoq-api-v2/internal/metrics"
)

// Stream batch bounds and defaults.
const (
	MinBatchSize          = 1000
	MaxBatchSize          = 10_000
	DefaultMaxRecords     = 1_000_000
	DefaultKeepAlive      = 5 * time.Minute
	DefaultBatchKeepAlive = time.Minute
	defaultReleaseTimeout = 10 * time.Second
)

// StreamConfig holds snapshot streaming parameters.
type StreamConfig struct {
	Index string
	// BatchSize is clamped into [MinBatchSize, MaxBatchSize].
	BatchSize int
	// MaxRecords caps every stream; a smaller caller cap wins.
	MaxRecords int
	// KeepAlive bounds the snapshot when it is opened; BatchKeepAlive extends it per fetch.
	KeepAlive      time.Duration
	BatchKeepAlive time.Duration
	ReleaseTimeout time.Duration
}

// ClampBatchSize forces n into [MinBatchSize, MaxBatchSize].
func ClampBatchSize(n int) int {
	return min(max(n, MinBatchSize), MaxBatchSize)
}

// Streamer opens snapshot-backed streams over an index.
type Streamer struct {
	engine db.Snapshotter
	conv   *Converter
	cfg    StreamConfig
	logger *zap.Logger
}

// NewStreamer creates a Streamer. Zero config values take the defaults.
func NewStreamer(engine db.Snapshotter, conv *Converter, cfg StreamConfig, logger *zap.Logger) *Streamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BatchSize = ClampBatchSize(cfg.BatchSize)
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.BatchKeepAlive <= 0 {
		cfg.BatchKeepAlive = DefaultBatchKeepAlive
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaultReleaseTimeout
	}
	return &Streamer{engine: engine, conv: conv, cfg: cfg, logger: logger}
}

// Open acquires a snapshot and returns a stream positioned before the first record.
// limit <= 0 means the configured maximum. A failed open is not retried.
func (s *Streamer) Open(ctx context.Context, expr filter.Expression, storageFields []string, limit int) (*Stream, error) {
	if limit <= 0 || limit > s.cfg.MaxRecords {
		limit = s.cfg.MaxRecords
	}

	start := time.Now()
	handle, err := s.engine.OpenSnapshot(ctx, s.cfg.Index, s.cfg.KeepAlive)
	metrics.ObserveBackend(db.OpOpenSnapshot, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", domain.ErrSnapshot, err)
	}
	metrics.SnapshotsTotal.WithLabelValues("opened").Inc()

	st := &Stream{s: s, expr: expr, fields: storageFields, state: cursor.Opening, handle: handle}
	cur, err := cursor.New(handle, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshot, err)
	}
	st.cur = cur
	st.move(cursor.Fetching)
	return st, nil
}

// Stream runs one snapshot export to completion and hands every record to yield.
// The snapshot is released on every exit path, including cancellation. A failure after
// records were yielded is reported as *domain.PartialDeliveryError.
func (s *Streamer) Stream(
	ctx context.Context, expr filter.Expression, storageFields []string, limit int,
	yield func(domsnp.Record) error,
) (int, error) {
	st, err := s.Open(ctx, expr, storageFields, limit)
	if err != nil {
		return 0, err
	}
	defer func() { _ = st.Close(ctx) }()

	for {
		batch, err := st.Next(ctx)
		if errors.Is(err, io.EOF) {
			return st.Emitted(), nil
		}
		if err != nil {
			return st.Emitted(), partial(st.Emitted(), err)
		}
		for i, rec := range batch {
			if err := yield(rec); err != nil {
				delivered := st.Emitted() - len(batch) + i
				return delivered, partial(delivered, err)
			}
		}
	}
}

func partial(delivered int, err error) error {
	if delivered == 0 {
		return err
	}
	return &domain.PartialDeliveryError{Delivered: delivered, Err: err}
}

// Stream is one open snapshot scan. It is not safe for concurrent use.
type Stream struct {
	s      *Streamer
	expr   filter.Expression
	fields []string

	state  cursor.State
	cur    cursor.Cursor
	handle string
	// drained is set when the backend returned a short batch.
	drained bool
}

// State returns the lifecycle state.
func (st *Stream) State() cursor.State { return st.state }

// Cursor returns the current position.
func (st *Stream) Cursor() cursor.Cursor { return st.cur }

// Emitted returns the number of records handed out.
func (st *Stream) Emitted() int { return st.cur.Emitted() }

// Next fetches the next batch. It returns io.EOF once the match set or the cap is
// exhausted, after releasing the snapshot. A fetch error releases the snapshot too.
func (st *Stream) Next(ctx context.Context) ([]domsnp.Record, error) {
	if st.state == cursor.Closing || st.state == cursor.Closed {
		return nil, io.EOF
	}
	if st.cur.Exhausted() || st.drained {
		return nil, st.finish(ctx)
	}
	if err := ctx.Err(); err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("stream cancelled: %w", err)
	}
	if st.state == cursor.Continuing {
		st.move(cursor.Fetching)
	}

	size := min(st.s.cfg.BatchSize, st.cur.Remaining())
	start := time.Now()
	page, err := st.s.engine.SearchSnapshot(ctx, &db.SnapshotQuery{
		Snapshot:  st.cur.Snapshot(),
		Filter:    st.expr,
		Fields:    st.fields,
		Size:      size,
		KeepAlive: st.s.cfg.BatchKeepAlive,
		After:     st.cur.SortKey(),
	})
	metrics.ObserveBackend(db.OpSearchAfter, time.Since(start).Seconds(), err)
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("%w: fetch after %d records: %w", domain.ErrBackend, st.cur.Emitted(), err)
	}
	if page.Snapshot != "" {
		st.handle = page.Snapshot
	}

	hits := page.Hits
	if len(hits) == 0 {
		return nil, st.finish(ctx)
	}
	if len(hits) < size {
		st.drained = true
	}
	if len(hits) > st.cur.Remaining() {
		hits = hits[:st.cur.Remaining()]
	}

	records := st.s.conv.ToRecords(hits)
	st.cur = st.cur.Advance(page.Snapshot, hits[len(hits)-1].Sort, len(records))
	metrics.StreamedRecordsTotal.Add(float64(len(records)))
	st.move(cursor.Continuing)
	return records, nil
}

func (st *Stream) finish(ctx context.Context) error {
	_ = st.Close(ctx)
	return io.EOF
}

// Close releases the snapshot. It runs at most once, ignores ctx cancellation and is bounded
// by the release timeout. A release failure is logged and returned but never undoes
// records already delivered.
func (st *Stream) Close(ctx context.Context) error {
	if st.state == cursor.Closing || st.state == cursor.Closed {
		return nil
	}
	st.move(cursor.Closing)
	err := st.release(ctx, st.handle)
	st.move(cursor.Closed)
	return err
}

func (st *Stream) release(ctx context.Context, handle string) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), st.s.cfg.ReleaseTimeout)
	defer cancel()

	start := time.Now()
	err := st.s.engine.CloseSnapshot(rctx, handle)
	metrics.ObserveBackend(db.OpCloseSnapshot, time.Since(start).Seconds(), err)
	if err != nil {
		metrics.SnapshotsTotal.WithLabelValues("release_failed").Inc()
		st.s.logger.Warn("Failed to release snapshot",
			zap.String("snapshot", handle),
			zap.Int("emitted", st.cur.Emitted()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: release: %w", domain.ErrSnapshot, err)
	}
	metrics.SnapshotsTotal.WithLabelValues("released").Inc()
	return nil
}

func (st *Stream) move(to cursor.State) {
	if !cursor.CanMove(st.state, to) {
		st.s.logger.DPanic("Illegal stream transition",
			zap.String("from", string(st.state)), zap.String("to", string(to)))
	}
	st.state = to
}
