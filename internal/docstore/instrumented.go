package docstore

import (
	"context"
	"errors"
	"time"

	"agora/internal/observability"
)

// instrumented decorates a Store with a per-call timeout, latency metrics and spans.
type instrumented struct {
	next    Store
	backend string
	timeout time.Duration
	metrics *observability.StoreMetrics
}

// Instrument wraps next so that every call is bounded by timeout, timed under the
// backend label and traced. A zero timeout leaves the caller's deadline untouched.
func Instrument(next Store, backend string, timeout time.Duration) Store {
	return &instrumented{
		next:    next,
		backend: backend,
		timeout: timeout,
		metrics: observability.NewStoreMetrics(backend),
	}
}

func (s *instrumented) begin(ctx context.Context, operation, collection string) (context.Context, func(error)) {
	done := s.metrics.TrackOperation(operation, collection)
	ctx, span := observability.GetTraceLayer().TraceStoreOperation(ctx, s.backend, operation, collection)
	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func(err error) {
		cancel()
		done()
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrVersionConflict) {
			s.metrics.RecordError(operation)
			observability.EndSpan(span, err)
			return
		}
		span.End()
	}
}

func (s *instrumented) Create(ctx context.Context, collection string, data map[string]any) (id string, err error) {
	ctx, end := s.begin(ctx, "create", collection)
	defer func() { end(err) }()
	return s.next.Create(ctx, collection, data)
}

func (s *instrumented) Get(ctx context.Context, collection, id string) (doc *Document, err error) {
	ctx, end := s.begin(ctx, "get", collection)
	defer func() { end(err) }()
	return s.next.Get(ctx, collection, id)
}

func (s *instrumented) Update(ctx context.Context, collection, id string, patch *Patch, opts ...UpdateOption) (err error) {
	ctx, end := s.begin(ctx, "update", collection)
	defer func() { end(err) }()
	return s.next.Update(ctx, collection, id, patch, opts...)
}

func (s *instrumented) Delete(ctx context.Context, collection, id string) (err error) {
	ctx, end := s.begin(ctx, "delete", collection)
	defer func() { end(err) }()
	return s.next.Delete(ctx, collection, id)
}

func (s *instrumented) List(ctx context.Context, collection string) (docs []*Document, err error) {
	ctx, end := s.begin(ctx, "list", collection)
	defer func() { end(err) }()
	return s.next.List(ctx, collection)
}

func (s *instrumented) FindEqual(ctx context.Context, collection, field, value string) (docs []*Document, err error) {
	ctx, end := s.begin(ctx, "find_equal", collection)
	defer func() { end(err) }()
	return s.next.FindEqual(ctx, collection, field, value)
}

func (s *instrumented) FindIn(ctx context.Context, collection string, ids []string) (docs []*Document, err error) {
	ctx, end := s.begin(ctx, "find_in", collection)
	defer func() { end(err) }()
	return s.next.FindIn(ctx, collection, ids)
}

func (s *instrumented) Ping(ctx context.Context) (err error) {
	ctx, end := s.begin(ctx, "ping", "")
	defer func() { end(err) }()
	return s.next.Ping(ctx)
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
