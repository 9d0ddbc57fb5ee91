package shipment

import (
	"github.com/ltnguyen/shipcoord/pkg/models"
)

// ResolveTargetItem picks the order item a seller's shipment action
// applies to: the first item owned by sellerID, else the order's
// first item overall. The fallback exists for legacy single-seller
// orders whose items carry no seller id; callers must still reject a
// fallback item owned by a different seller.
func ResolveTargetItem(order *models.Order, sellerID string) (*models.OrderItem, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, ErrTargetNotFound
	}
	for i := range order.Items {
		if order.Items[i].SellerID == sellerID {
			return &order.Items[i], nil
		}
	}
	return &order.Items[0], nil
}
