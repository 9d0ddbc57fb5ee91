package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ltnguyen/shipcoord/internal/cache"
	"github.com/ltnguyen/shipcoord/internal/events"
	"github.com/ltnguyen/shipcoord/internal/shipment"
	"github.com/ltnguyen/shipcoord/pkg/models"
	"github.com/sirupsen/logrus"
)

const defaultCarrier = "GHN Express"

// Store is the slice of the Order/Shipment Store API the coordinator
// needs. *store.Client implements it; tests inject a fake.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetShipment(ctx context.Context, orderID string) (*models.ShipmentRecord, error)
	SaveShipment(ctx context.Context, rec *models.ShipmentRecord) error
	PutItemStatus(ctx context.Context, item models.ItemStatus) error
}

// ProfileSource supplies the acting seller's registered origin
// address, used only as ETA input.
type ProfileSource interface {
	OriginAddress(ctx context.Context, sellerID string) (string, error)
}

type EventPublisher interface {
	PublishShipmentStatusChanged(event events.ShipmentStatusChangedEvent) error
}

// Result is the post-reconciliation view surfaced to the caller.
type Result struct {
	Shipment *models.ShipmentRecord `json:"shipment"`
	Item     models.ItemStatus      `json:"item_status"`
}

// Coordinator orchestrates a status change: optimistic local update,
// remote mutation with schema-uncertainty retries, then an
// unconditional authoritative refetch that replaces the optimistic
// state. State is partitioned by order id; there is no locking or
// versioning, consistency is last-fetch-wins.
type Coordinator struct {
	store     Store
	profiles  ProfileSource
	publisher EventPublisher
	cache     *cache.Cache
	machine   *shipment.Machine
	carrier   string
	logger    *logrus.Logger

	refetch chan string
	mu      sync.Mutex
	pending map[string]struct{}
}

func New(store Store, profiles ProfileSource, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		profiles: profiles,
		cache:    cache.New(),
		machine:  shipment.NewMachine(),
		carrier:  defaultCarrier,
		logger:   logger,
		refetch:  make(chan string, 256),
		pending:  make(map[string]struct{}),
	}
}

// SetEventPublisher enables domain event publishing; without one,
// successful transitions are still fully applied, just not announced.
func (c *Coordinator) SetEventPublisher(publisher EventPublisher) {
	c.publisher = publisher
}

func (c *Coordinator) SetCarrier(carrier string) {
	if carrier != "" {
		c.carrier = carrier
	}
}

// SetMachine swaps the state machine, mainly for tests that need a
// fixed clock.
func (c *Coordinator) SetMachine(m *shipment.Machine) {
	c.machine = m
}

// Cache exposes the optimistic store for read paths and tests.
func (c *Coordinator) Cache() *cache.Cache {
	return c.cache
}

// ChangeStatus runs the full protocol for one seller action. Local
// validation failures (ErrTargetNotFound, ErrInvalidTransition) are
// returned before any network write; remote failures are surfaced
// only after the reconciliation fetch has run, so the local view is
// never left diverged from the store.
func (c *Coordinator) ChangeStatus(ctx context.Context, orderID, sellerID string, next models.ShipmentStatus) (*Result, error) {
	order, err := c.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	item, err := shipment.ResolveTargetItem(order, sellerID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	// The legacy first-item fallback must never let a seller touch
	// another seller's item.
	if item.SellerID != "" && item.SellerID != sellerID {
		return nil, fmt.Errorf("seller %s does not own product %s: %w", sellerID, item.ProductID, shipment.ErrTargetNotFound)
	}

	rec, err := c.currentShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	prev := rec.Status

	if !shipment.Allowed(prev, next) {
		return nil, fmt.Errorf("%w: %q -> %q", shipment.ErrInvalidTransition, prev, next)
	}

	origin := c.originAddress(ctx, sellerID)

	work := rec.Clone()
	if err := c.machine.Apply(work, next, origin, order.ShippingAddress); err != nil {
		return nil, err
	}

	itemStatus := models.ItemStatus{
		OrderID:   orderID,
		ProductID: item.ProductID,
		SellerID:  sellerID,
		Status:    next,
		UpdatedAt: work.UpdatedAt,
	}

	// Optimistic local update; overwritten by the refetch below.
	c.cache.SetShipment(work)
	c.cache.SetItemStatus(itemStatus)

	c.logger.WithFields(logrus.Fields{
		"order_id":    orderID,
		"seller_id":   sellerID,
		"product_id":  item.ProductID,
		"from_status": prev,
		"to_status":   next,
	}).Info("Applying shipment status change")

	shipErr := c.store.SaveShipment(ctx, work)
	itemErr := c.store.PutItemStatus(ctx, itemStatus)

	// Reconcile regardless of the mutation outcome; the store, not
	// our memory of which call succeeded, decides the visible state.
	_, freshRec, reconErr := c.Reconcile(ctx, orderID)

	if shipErr != nil {
		return nil, fmt.Errorf("shipment mutation failed: %w", shipErr)
	}
	if itemErr != nil {
		return nil, fmt.Errorf("item status mutation failed: %w", itemErr)
	}

	result := &Result{Shipment: work, Item: itemStatus}
	if reconErr == nil {
		if freshRec != nil {
			result.Shipment = freshRec
		}
		if fetched, ok := c.cache.GetItemStatus(orderID, item.ProductID); ok {
			result.Item = fetched
		}
	} else {
		c.logger.WithError(reconErr).WithField("order_id", orderID).Warn("Reconciliation fetch failed after successful mutation")
	}

	c.publishStatusChanged(orderID, item.ProductID, sellerID, prev, next)

	return result, nil
}

// Reconcile refetches the authoritative order and shipment state and
// replaces every local optimistic value with it. On fetch failure the
// cached state is invalidated instead, so nothing stale survives.
func (c *Coordinator) Reconcile(ctx context.Context, orderID string) (*models.Order, *models.ShipmentRecord, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		c.cache.Invalidate(orderID)
		return nil, nil, err
	}

	rec, err := c.store.GetShipment(ctx, orderID)
	if err != nil {
		c.cache.Invalidate(orderID)
		return nil, nil, err
	}

	if cached, ok := c.cache.GetShipment(orderID); ok && rec != nil && cached.Status != rec.Status {
		c.logger.WithFields(logrus.Fields{
			"order_id":          orderID,
			"optimistic_status": cached.Status,
			"store_status":      rec.Status,
		}).Warn("Optimistic shipment state diverged from store, replacing with fetched truth")
	}

	c.cache.ReplaceOrderState(order, rec)
	return order, rec, nil
}

// Shipment returns the current record for an order, serving from the
// optimistic cache and falling back to the store.
func (c *Coordinator) Shipment(ctx context.Context, orderID string) (*models.ShipmentRecord, error) {
	if rec, ok := c.cache.GetShipment(orderID); ok {
		return rec, nil
	}
	rec, err := c.store.GetShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		c.cache.SetShipment(rec)
	}
	return rec, nil
}

func (c *Coordinator) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if order, ok := c.cache.GetOrder(orderID); ok {
		return order, nil
	}
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c.cache.SetOrder(order)
	return order, nil
}

// currentShipment loads the order's record or lazily creates one on
// the first status-changing action.
func (c *Coordinator) currentShipment(ctx context.Context, orderID string) (*models.ShipmentRecord, error) {
	if rec, ok := c.cache.GetShipment(orderID); ok {
		return rec, nil
	}
	rec, err := c.store.GetShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &models.ShipmentRecord{
			OrderID:        orderID,
			Carrier:        c.carrier,
			TrackingNumber: newTrackingNumber(),
		}
		c.logger.WithFields(logrus.Fields{
			"order_id":        orderID,
			"tracking_number": rec.TrackingNumber,
		}).Info("Created shipment record for order")
	}
	return rec, nil
}

func (c *Coordinator) originAddress(ctx context.Context, sellerID string) string {
	if c.profiles == nil {
		return ""
	}
	origin, err := c.profiles.OriginAddress(ctx, sellerID)
	if err != nil {
		// Unknown origin degrades the ETA to its default rather than
		// blocking the transition.
		c.logger.WithError(err).WithField("seller_id", sellerID).Warn("Failed to resolve seller origin address")
		return ""
	}
	return origin
}

func (c *Coordinator) publishStatusChanged(orderID, productID, sellerID string, from, to models.ShipmentStatus) {
	if c.publisher == nil {
		return
	}
	event := events.ShipmentStatusChangedEvent{
		EventID:    uuid.New().String(),
		OrderID:    orderID,
		ProductID:  productID,
		SellerID:   sellerID,
		FromStatus: string(from),
		ToStatus:   string(to),
	}
	if err := c.publisher.PublishShipmentStatusChanged(event); err != nil {
		// Event delivery is best effort; the transition stands.
		c.logger.WithError(err).WithField("order_id", orderID).Error("Failed to publish status changed event")
	}
}

func newTrackingNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "VN" + raw[:10]
}
