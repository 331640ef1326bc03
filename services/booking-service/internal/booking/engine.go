// Package booking is the entry point for availability queries, reservations and schedule
// management. Reservations for one (provider, date) are serialized through the store lock.
package booking

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/recommend"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

const (
	ModeSmart  = "smart"
	ModeSimple = "simple"
)

var tracer = otel.Tracer("booking-service/booking")

type Engine struct {
	schedules    storage.ScheduleStore
	appointments storage.AppointmentStore
	cache        slotcache.Cache
	scorer       recommend.Scorer
	events       events.Publisher
	outbox       bool
	logger       *slog.Logger
	metrics      *metrics.Metrics
	historyWeeks int
	now          func() time.Time
	newID        func() string
}

type Option func(*Engine)

func WithCache(c slotcache.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithScorer sets the scorer used in smart mode. Without one every query is simple.
func WithScorer(s recommend.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithOutbox writes reservation events to the outbox inside the reservation transaction
// instead of handing them to the publisher after commit.
func WithOutbox() Option {
	return func(e *Engine) { e.outbox = true }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHistoryWeeks sets how many past same-weekday dates feed the scorer. Default 8.
func WithHistoryWeeks(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyWeeks = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(schedules storage.ScheduleStore, appointments storage.AppointmentStore, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		schedules:    schedules,
		appointments: appointments,
		cache:        slotcache.Noop{},
		logger:       logger,
		historyWeeks: 8,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
