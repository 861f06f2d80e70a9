package businessflow

import (
	"context"
	"log"
	"sync"

	"github.com/tmcarr/heimdall/app/metrics"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
)

// BodyFunc renders the per-recipient body variant for one member
type BodyFunc func(m *models.Member) string

// DispatchContext carries the broadcast-level inputs shared by every
// per-recipient send
type DispatchContext struct {
	Type  models.MessageType
	Key   int64
	Media []string
}

// Dispatcher fans a broadcast out to its recipients through a bounded worker
// pool. Per-recipient failures are isolated: an unresolvable identity or a
// provider error is logged and metered, never returned, so one bad recipient
// cannot fail its siblings or the event.
type Dispatcher struct {
	provider services.MessagingProvider
	selector *IdentitySelector
	poolSize int
	logger   *log.Logger
}

func NewDispatcher(provider services.MessagingProvider, selector *IdentitySelector, poolSize int, logger *log.Logger) *Dispatcher {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &Dispatcher{
		provider: provider,
		selector: selector,
		poolSize: poolSize,
		logger:   logger,
	}
}

// Dispatch sends body(m) to every recipient. It returns once all sends have
// been attempted; it never returns an error for individual recipients.
func (d *Dispatcher) Dispatch(ctx context.Context, dc DispatchContext, recipients []*models.Member, body BodyFunc) {
	if len(recipients) == 0 {
		return
	}

	sem := make(chan struct{}, d.poolSize)
	var wg sync.WaitGroup
	for _, m := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(m *models.Member) {
			defer wg.Done()
			defer func() { <-sem }()
			d.sendOne(ctx, dc, m, body(m))
		}(m)
	}
	wg.Wait()
}

func (d *Dispatcher) sendOne(ctx context.Context, dc DispatchContext, m *models.Member, body string) {
	identity, err := d.selector.Select(ctx, m)
	if err == nil && identity == nil {
		err = ErrIdentityNotFound
	}
	if err != nil {
		// Expected steady state for retired or misconfigured numbers:
		// drop this recipient, keep the batch going.
		d.logger.Printf("dispatch: no sending identity for %s (message %d): %v", m.Phone, dc.Key, err)
		metrics.SendAttempts.WithLabelValues(metrics.ResultInvalidDestination).Inc()
		return
	}

	err = d.provider.Send(ctx, identity, services.SendRequest{
		To:          m.Phone,
		Body:        body,
		MediaURLs:   dc.Media,
		CallbackKey: dc.Key,
	})
	if err != nil {
		d.logger.Printf("dispatch: send to %s failed (message %d): %v", m.Phone, dc.Key, err)
		metrics.SendAttempts.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}
	metrics.SendAttempts.WithLabelValues(metrics.ResultSent).Inc()
}
