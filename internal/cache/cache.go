package cache

import (
	"sync"

	"github.com/ltnguyen/shipcoord/pkg/models"
)

type itemKey struct {
	orderID   string
	productID string
}

// Cache holds the coordinator's optimistic view of orders, shipment
// records and item statuses, keyed by order id. It is a plain
// process-local store: every write here is provisional until the next
// authoritative refetch replaces or invalidates it.
type Cache struct {
	mu        sync.RWMutex
	orders    map[string]*models.Order
	shipments map[string]*models.ShipmentRecord
	items     map[itemKey]models.ItemStatus
}

func New() *Cache {
	return &Cache{
		orders:    make(map[string]*models.Order),
		shipments: make(map[string]*models.ShipmentRecord),
		items:     make(map[itemKey]models.ItemStatus),
	}
}

func (c *Cache) GetOrder(orderID string) (*models.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	order, ok := c.orders[orderID]
	if !ok {
		return nil, false
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, true
}

func (c *Cache) SetOrder(order *models.Order) {
	if order == nil {
		return
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	c.mu.Lock()
	c.orders[order.ID] = &copied
	c.mu.Unlock()
}

func (c *Cache) GetShipment(orderID string) (*models.ShipmentRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.shipments[orderID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (c *Cache) SetShipment(rec *models.ShipmentRecord) {
	if rec == nil {
		return
	}
	c.mu.Lock()
	c.shipments[rec.OrderID] = rec.Clone()
	c.mu.Unlock()
}

func (c *Cache) GetItemStatus(orderID, productID string) (models.ItemStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.items[itemKey{orderID, productID}]
	return status, ok
}

func (c *Cache) SetItemStatus(status models.ItemStatus) {
	c.mu.Lock()
	c.items[itemKey{status.OrderID, status.ProductID}] = status
	c.mu.Unlock()
}

// Invalidate drops everything cached for the order so the next read
// is forced back to the authoritative store.
func (c *Cache) Invalidate(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, orderID)
	delete(c.shipments, orderID)
	for key := range c.items {
		if key.orderID == orderID {
			delete(c.items, key)
		}
	}
}

// ReplaceOrderState swaps in a full authoritative snapshot for the
// order: the order itself, its shipment record (nil clears it) and
// the item statuses derived from the order's items.
func (c *Cache) ReplaceOrderState(order *models.Order, rec *models.ShipmentRecord) {
	if order == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	c.orders[order.ID] = &copied

	if rec != nil {
		c.shipments[order.ID] = rec.Clone()
	} else {
		delete(c.shipments, order.ID)
	}

	for key := range c.items {
		if key.orderID == order.ID {
			delete(c.items, key)
		}
	}
	for _, item := range order.Items {
		if item.FulfillmentStatus == "" {
			continue
		}
		c.items[itemKey{order.ID, item.ProductID}] = models.ItemStatus{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Status:    models.ShipmentStatus(item.FulfillmentStatus),
		}
	}
}
