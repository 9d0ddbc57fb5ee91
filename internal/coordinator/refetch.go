package coordinator

import (
	"context"

	"github.com/ltnguyen/shipcoord/internal/events"
)

// OnOrderChanged enqueues a reconciliation fetch for the order. The
// queue holds at most one pending entry per order, so notification
// bursts collapse into a single refetch instead of a storm.
func (c *Coordinator) OnOrderChanged(orderID string) {
	if orderID == "" {
		return
	}

	c.mu.Lock()
	if _, queued := c.pending[orderID]; queued {
		c.mu.Unlock()
		return
	}
	c.pending[orderID] = struct{}{}
	c.mu.Unlock()

	select {
	case c.refetch <- orderID:
	default:
		// Dropping is safe: the cache entry is invalidated so the
		// next read goes back to the store.
		c.mu.Lock()
		delete(c.pending, orderID)
		c.mu.Unlock()
		c.cache.Invalidate(orderID)
		c.logger.WithField("order_id", orderID).Warn("Refetch queue full, invalidated order instead")
	}
}

// HandleOrderChanged lets the coordinator act as the Kafka
// order-changed consumer handler.
func (c *Coordinator) HandleOrderChanged(event events.OrderChangedEvent) error {
	c.OnOrderChanged(event.OrderID)
	return nil
}

// Run drains the refetch queue until the context is cancelled. There
// is no background polling; every entry traces back to a local action
// or an inbound notification.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Refetch worker stopped")
			return
		case orderID := <-c.refetch:
			c.mu.Lock()
			delete(c.pending, orderID)
			c.mu.Unlock()

			if _, _, err := c.Reconcile(ctx, orderID); err != nil {
				c.logger.WithError(err).WithField("order_id", orderID).Warn("Refetch failed, cache invalidated")
			}
		}
	}
}
