package models

import (
	"strings"
	"time"
)

type Order struct {
	ID              string      `json:"id"`
	BuyerID         string      `json:"buyer_id"`
	ShippingAddress string      `json:"shipping_address"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

type OrderItem struct {
	ProductID         string  `json:"product_id"`
	SellerID          string  `json:"seller_id"`
	Quantity          int     `json:"quantity"`
	UnitPrice         float64 `json:"unit_price"`
	FulfillmentStatus string  `json:"fulfillment_status,omitempty"`
}

type OrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order,omitempty"`
}

// SplitDeliveryNote separates an optional delivery note embedded as a
// trailing parenthetical from a free-text shipping address, e.g.
// "12 Hàng Bài, Hà Nội (gọi trước khi giao)".
func SplitDeliveryNote(address string) (addr, note string) {
	trimmed := strings.TrimSpace(address)
	if !strings.HasSuffix(trimmed, ")") {
		return trimmed, ""
	}
	open := strings.LastIndex(trimmed, "(")
	if open <= 0 {
		return trimmed, ""
	}
	note = strings.TrimSpace(trimmed[open+1 : len(trimmed)-1])
	addr = strings.TrimSpace(trimmed[:open])
	return addr, note
}
