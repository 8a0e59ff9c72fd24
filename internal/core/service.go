// Package core exposes the medconnect service facade. Every mutation runs
// inside a single store transaction and is evaluated by the rules engine
// before it becomes visible.
package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"medconnect/internal/blob"
	"medconnect/internal/config"
	"medconnect/internal/infra/persistence/memory"
	"medconnect/internal/matching"
	"medconnect/internal/notify"
	"medconnect/pkg/domain"
)

// Service coordinates domain operations against a persistent store.
type Service struct {
	store            domain.PersistentStore
	blobs            blob.Store
	notifier         notify.Notifier
	matcher          matching.Engine
	maxDocumentBytes int64
	logger           *zap.Logger
	metrics          MetricsRecorder
	tracer           Tracer
	clock            Clock
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger routes operation logs to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder records per-operation outcomes.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer wraps every operation in a span.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the clock used for activity and response timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBlobStore selects where document contents are written.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.blobs = store
		}
	}
}

// WithNotifier selects how contact workflow events are delivered.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithMaxDocumentBytes overrides the upload size limit. Non-positive values are ignored.
func WithMaxDocumentBytes(limit int64) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxDocumentBytes = limit
		}
	}
}

// WithMatcher overrides the matching engine and its eligibility threshold.
func WithMatcher(engine matching.Engine) Option {
	return func(s *Service) {
		s.matcher = engine
	}
}

// NewService constructs a service backed by the provided store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:            store,
		blobs:            blob.NewMemory(),
		notifier:         notify.Nop{},
		matcher:          matching.NewEngine(matching.DefaultThreshold),
		maxDocumentBytes: config.DefaultMaxDocumentBytes,
		logger:           zap.NewNop(),
		metrics:          noopMetricsRecorder{},
		tracer:           noopTracer{},
		clock:            systemClock{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewInMemoryService constructs a service backed by the in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store exposes the underlying persistent store.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// MaxDocumentBytes reports the active upload size limit.
func (s *Service) MaxDocumentBytes() int64 {
	return s.maxDocumentBytes
}

// instrument starts tracing and timing for operation. The returned function
// must be called once with the operation error.
func (s *Service) instrument(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	return ctx, func(err error) {
		elapsed := time.Since(start)
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, elapsed)
		if err != nil {
			s.logger.Warn("operation failed",
				zap.String("operation", operation),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("operation completed",
			zap.String("operation", operation),
			zap.Duration("duration", elapsed),
		)
	}
}

func (s *Service) run(ctx context.Context, operation string, fn func(domain.Transaction) error) (domain.Result, error) {
	ctx, done := s.instrument(ctx, operation)
	res, err := s.store.RunInTransaction(ctx, fn)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule violation",
				zap.String("operation", operation),
				zap.String("rule", v.Rule),
				zap.String("entity_id", v.EntityID),
				zap.String("message", v.Message),
			)
		}
	}
	done(err)
	return res, err
}

func (s *Service) view(ctx context.Context, operation string, fn func(domain.TransactionView) error) error {
	ctx, done := s.instrument(ctx, operation)
	err := s.store.View(ctx, fn)
	done(err)
	return err
}

// publish delivers an event after commit. Delivery failures never undo the
// committed state change and are only logged.
func (s *Service) publish(ctx context.Context, event notify.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("event", string(event.Type)),
			zap.String("audience", event.Audience),
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
	}
}
