package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ltnguyen/shipcoord/internal/coordinator"
	"github.com/ltnguyen/shipcoord/internal/shipment"
	"github.com/ltnguyen/shipcoord/internal/store"
	"github.com/ltnguyen/shipcoord/pkg/models"
	"github.com/sirupsen/logrus"
)

// SellerOrders is the read-side collaborator for listing a seller's
// orders; *store.Client implements it.
type SellerOrders interface {
	GetOrdersBySeller(ctx context.Context, sellerID string) ([]models.Order, error)
}

type Handler struct {
	coordinator *coordinator.Coordinator
	sellerReads SellerOrders
	logger      *logrus.Logger
}

func NewHandler(coord *coordinator.Coordinator, sellerReads SellerOrders, logger *logrus.Logger) *Handler {
	return &Handler{
		coordinator: coord,
		sellerReads: sellerReads,
		logger:      logger,
	}
}

type changeStatusRequest struct {
	SellerID string `json:"seller_id"`
	Status   string `json:"status"`
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode status change request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SellerID == "" || req.Status == "" {
		h.respondWithError(w, http.StatusBadRequest, "seller_id and status are required")
		return
	}

	result, err := h.coordinator.ChangeStatus(r.Context(), orderID, req.SellerID, models.ShipmentStatus(req.Status))
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"order_id":  orderID,
			"seller_id": req.SellerID,
			"status":    req.Status,
		}).Error("Status change failed")
		h.respondWithError(w, statusCodeFor(err), err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"shipment":    result.Shipment,
		"item_status": result.Item,
	})
}

func (h *Handler) GetShipment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]

	rec, err := h.coordinator.Shipment(r.Context(), orderID)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", orderID).Error("Failed to get shipment")
		h.respondWithError(w, statusCodeFor(err), err.Error())
		return
	}
	if rec == nil {
		h.respondWithError(w, http.StatusNotFound, "No shipment record for order")
		return
	}

	h.respondWithJSON(w, http.StatusOK, rec)
}

func (h *Handler) GetSellerOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sellerID := vars["id"]

	orders, err := h.sellerReads.GetOrdersBySeller(r.Context(), sellerID)
	if err != nil {
		h.logger.WithError(err).WithField("seller_id", sellerID).Error("Failed to list seller orders")
		h.respondWithError(w, statusCodeFor(err), err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "shipment-coordinator",
	})
}

func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, shipment.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, shipment.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrRemoteRejected):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
