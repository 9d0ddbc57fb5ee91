package models

import (
	"time"
)

type ShipmentStatus string

const (
	StatusPending    ShipmentStatus = "pending"
	StatusProcessing ShipmentStatus = "processing"
	StatusShipped    ShipmentStatus = "shipped"
	StatusDelivered  ShipmentStatus = "delivered"
	StatusReceived   ShipmentStatus = "received"
	StatusCancelled  ShipmentStatus = "cancelled"
)

// Terminal reports whether no further forward transition exists.
func (s ShipmentStatus) Terminal() bool {
	return s == StatusReceived || s == StatusCancelled
}

// ShipmentRecord is the per-order tracking entity. ShippedAt is
// set-once; DeliveredAt holds an estimate while the shipment is in
// flight and is frozen to the actual time on delivery.
type ShipmentRecord struct {
	OrderID        string         `json:"order_id"`
	Carrier        string         `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
	Status         ShipmentStatus `json:"shipment_status"`
	ShippedAt      *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so optimistic cache entries never alias
// caller-held records.
func (r *ShipmentRecord) Clone() *ShipmentRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.ShippedAt != nil {
		t := *r.ShippedAt
		out.ShippedAt = &t
	}
	if r.DeliveredAt != nil {
		t := *r.DeliveredAt
		out.DeliveredAt = &t
	}
	return &out
}

// ItemStatus is the per-product fulfillment status within an order,
// keyed by (order_id, product_id) and owned by the item's seller.
type ItemStatus struct {
	OrderID   string         `json:"order_id"`
	ProductID string         `json:"product_id"`
	SellerID  string         `json:"seller_id"`
	Status    ShipmentStatus `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type ShipmentResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Shipment *ShipmentRecord `json:"shipment,omitempty"`
}
