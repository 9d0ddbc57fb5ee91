package store

import (
	"encoding/json"

	"github.com/ltnguyen/shipcoord/pkg/models"
)

// PayloadVariant encodes a shipment mutation with one candidate key
// name for the status field. The remote schema's exact key is not
// confirmed, so SaveShipment walks an ordered list of variants until
// one is accepted. Trim the list once the real contract is known.
type PayloadVariant struct {
	StatusKey string
}

func (v PayloadVariant) Encode(rec *models.ShipmentRecord) ([]byte, error) {
	payload := map[string]interface{}{
		"order_id":        rec.OrderID,
		"carrier":         rec.Carrier,
		"tracking_number": rec.TrackingNumber,
		"updated_at":      rec.UpdatedAt,
		v.StatusKey:       string(rec.Status),
	}
	if rec.ShippedAt != nil {
		payload["shipped_at"] = rec.ShippedAt
	}
	if rec.DeliveredAt != nil {
		payload["delivered_at"] = rec.DeliveredAt
	}
	return json.Marshal(payload)
}

// DefaultVariants is the observed spread of status key spellings,
// most likely first.
var DefaultVariants = []PayloadVariant{
	{StatusKey: "shipment_status"},
	{StatusKey: "status"},
	{StatusKey: "shipping_status"},
}
