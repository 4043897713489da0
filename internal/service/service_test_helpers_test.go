package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/events"
	"github.com/phrazzld/storefront-api/internal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d.UTC()
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedGame(t *testing.T, db *mocks.MemoryDB, name, base string) *domain.Game {
	t.Helper()
	g, err := domain.NewGame(domain.GameDetails{Name: name, Price: price(base)})
	require.NoError(t, err)
	db.SeedGame(g)
	return g
}

func seedPromotion(t *testing.T, db *mocks.MemoryDB, g *domain.Game, p, start, end string) *domain.Promotion {
	t.Helper()
	promo, err := domain.NewPromotion(g.ID, price(p), day(t, start), day(t, end))
	require.NoError(t, err)
	db.SeedPromotion(promo)
	return promo
}

func newTestEngine(t *testing.T, db *mocks.MemoryDB) *PricingEngine {
	t.Helper()
	e, err := NewPricingEngine(db.Games(), db.Promotions(), testLogger())
	require.NoError(t, err)
	return e
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func newEventRecorder() (*events.InMemoryEventEmitter, *eventRecorder) {
	rec := &eventRecorder{}
	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, e *events.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, e)
		return nil
	}))
	return emitter, rec
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) last() *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}
