package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ltnguyen/shipcoord/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testRecord() *models.ShipmentRecord {
	return &models.ShipmentRecord{
		OrderID:        "o1",
		Carrier:        "GHN Express",
		TrackingNumber: "VN0123456789",
		Status:         models.StatusProcessing,
		UpdatedAt:      time.Now(),
	}
}

func TestSaveShipmentVariantFallthrough(t *testing.T) {
	var attempts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		// The store only understands "status"; the client's first
		// variant uses "shipment_status" and must fall through.
		if _, ok := payload["status"]; ok {
			attempts = append(attempts, "status")
			w.WriteHeader(http.StatusOK)
			return
		}
		attempts = append(attempts, "other")
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	err := client.SaveShipment(context.Background(), testRecord())

	require.NoError(t, err)
	assert.Equal(t, []string{"other", "status"}, attempts, "second variant accepted, no further attempts")
}

func TestSaveShipmentServerErrorAbortsVariants(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	err := client.SaveShipment(context.Background(), testRecord())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	assert.Equal(t, 1, requests, "a 5xx must not be retried with the remaining variants")
}

func TestSaveShipmentAllVariantsRejected(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	err := client.SaveShipment(context.Background(), testRecord())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteRejected))
	assert.Equal(t, len(DefaultVariants), requests)
}

func TestSaveShipmentNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, testLogger())
	err := client.SaveShipment(context.Background(), testRecord())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestGetShipmentNoRecordYet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	rec, err := client.GetShipment(context.Background(), "o1")

	require.NoError(t, err)
	assert.Nil(t, rec, "404 means no shipment record yet, not an error")
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/o1", r.URL.Path)
		json.NewEncoder(w).Encode(models.Order{
			ID:              "o1",
			BuyerID:         "b1",
			ShippingAddress: "36 Hàng Bài, Hà Nội",
			Items:           []models.OrderItem{{ProductID: "p1", SellerID: "s1", Quantity: 2}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	order, err := client.GetOrder(context.Background(), "o1")

	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "s1", order.Items[0].SellerID)
}

func TestGetOrderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	_, err := client.GetOrder(context.Background(), "missing")

	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBreakerOpensAfterRepeatedServerErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	// The client breaker allows 5 consecutive failures before opening.
	for i := 0; i < 5; i++ {
		err := client.SaveShipment(context.Background(), testRecord())
		assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	}
	seen := requests

	err := client.SaveShipment(context.Background(), testRecord())
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	assert.Equal(t, seen, requests, "open breaker must reject without reaching the store")
}
