package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
	"go.uber.org/zap"
)

// Guarded validates requests against the catalog before they reach the
// provider, bounds every attempt with a timeout and folds every provider
// failure into a SessionError.
type Guarded struct {
	next     Requester
	catalog  *pricing.Catalog
	attempts int
	timeout  time.Duration
	recorder Recorder
	logger   *zap.Logger
}

func NewGuarded(next Requester, catalog *pricing.Catalog, attempts int, timeout time.Duration, recorder Recorder, logger *zap.Logger) *Guarded {
	if attempts < 1 {
		attempts = 1
	}
	return &Guarded{
		next:     next,
		catalog:  catalog,
		attempts: attempts,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
	}
}

func (g *Guarded) CreateCheckout(ctx context.Context, req models.BookingRequest) (*Checkout, error) {
	if err := g.catalog.Validate(req); err != nil {
		g.observe("room", "invalid")
		return nil, err
	}
	return g.run(ctx, "room", req.Identity, func(ctx context.Context) (*Checkout, error) {
		return g.next.CreateCheckout(ctx, req)
	})
}

func (g *Guarded) CreateAddonCheckout(ctx context.Context, identity string, addons []string) (*Checkout, error) {
	if _, _, err := g.catalog.PriceAddons(addons); err != nil {
		g.observe("addon", "invalid")
		return nil, err
	}
	return g.run(ctx, "addon", identity, func(ctx context.Context) (*Checkout, error) {
		return g.next.CreateAddonCheckout(ctx, identity, addons)
	})
}

func (g *Guarded) run(ctx context.Context, kind, identity string, call func(context.Context) (*Checkout, error)) (*Checkout, error) {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		checkout, err := g.attempt(ctx, call)
		if err == nil {
			g.observe(kind, "success")
			return checkout, nil
		}
		lastErr = err
		g.logger.Warn("payment session attempt failed",
			zap.String("kind", kind),
			zap.String("identity", identity),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	g.observe(kind, "failure")
	var sessErr *SessionError
	if errors.As(lastErr, &sessErr) {
		return nil, sessErr
	}
	return nil, &SessionError{Reason: "request failed", Err: lastErr}
}

func (g *Guarded) attempt(ctx context.Context, call func(context.Context) (*Checkout, error)) (*Checkout, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	checkout, err := call(ctx)
	if err != nil {
		return nil, err
	}
	if checkout == nil || checkout.URL == "" {
		return nil, &SessionError{Reason: "empty checkout URL"}
	}
	return checkout, nil
}

func (g *Guarded) observe(kind, outcome string) {
	if g.recorder != nil {
		g.recorder.ObservePayment(kind, outcome)
	}
}
