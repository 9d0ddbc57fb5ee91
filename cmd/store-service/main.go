package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ltnguyen/shipcoord/internal/events"
	"github.com/ltnguyen/shipcoord/internal/notify"
	"github.com/ltnguyen/shipcoord/pkg/models"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// StoreService is the development implementation of the external
// Order/Shipment Store contract: Postgres-backed, broadcasting an
// order_changed notice after every mutation. It accepts exactly one
// status key on shipment writes (statusKey), which is what makes the
// coordinator's payload variant retry exercisable end to end.
type StoreService struct {
	db        *sql.DB
	logger    *logrus.Logger
	hub       *notify.Hub
	producer  *events.KafkaProducer
	statusKey string
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "shipstore")
	dbPassword := getEnv("DB_PASSWORD", "shipstore")
	dbName := getEnv("DB_NAME", "shipstore")

	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	statusKey := getEnv("ACCEPTED_STATUS_KEY", "shipment_status")
	port := getEnv("STORE_SERVICE_PORT", "8081")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	if err := createTables(db); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	hub := notify.NewHub(logger)
	go hub.Run()

	var producer *events.KafkaProducer
	if kafkaBrokers != "" {
		producer, err = events.NewKafkaProducer(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
	} else {
		logger.Info("Kafka brokers not configured - order.changed events disabled")
	}

	service := &StoreService{
		db:        db,
		logger:    logger,
		hub:       hub,
		producer:  producer,
		statusKey: statusKey,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", service.HealthCheck).Methods("GET")
	router.HandleFunc("/orders", service.CreateOrder).Methods("POST")
	router.HandleFunc("/orders/{id}", service.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id}/shipment", service.GetShipment).Methods("GET")
	router.HandleFunc("/orders/{id}/shipment", service.PutShipment).Methods("PUT", "POST")
	router.HandleFunc("/orders/{id}/items/{productId}/status", service.PutItemStatus).Methods("PUT")
	router.HandleFunc("/sellers/{id}/orders", service.GetSellerOrders).Methods("GET")
	router.HandleFunc("/sellers/{id}", service.GetSeller).Methods("GET")
	router.HandleFunc("/sellers/{id}", service.PutSeller).Methods("PUT")
	router.HandleFunc("/ws", hub.HandleWebSocket)

	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":       port,
			"status_key": statusKey,
		}).Info("Starting order/shipment store service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func (s *StoreService) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.logger.WithError(err).Error("Failed to decode order request")
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Status == "" {
		order.Status = "pending"
	}

	if err := s.saveOrder(&order); err != nil {
		s.logger.WithError(err).Error("Failed to save order")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to save order")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"buyer_id":    order.BuyerID,
		"items_count": len(order.Items),
	}).Info("Order created")

	s.respondWithJSON(w, http.StatusCreated, models.OrderResponse{
		Success: true,
		Message: "Order created",
		Order:   &order,
	})
}

func (s *StoreService) GetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]

	order, err := s.getOrderByID(orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.WithError(err).Error("Failed to get order")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}

	s.respondWithJSON(w, http.StatusOK, order)
}

func (s *StoreService) GetSellerOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sellerID := vars["id"]

	orders, err := s.getOrdersBySeller(sellerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get seller orders")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get seller orders")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

func (s *StoreService) GetShipment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]

	rec, err := s.getShipmentByOrder(orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.respondWithError(w, http.StatusNotFound, "No shipment record for order")
			return
		}
		s.logger.WithError(err).Error("Failed to get shipment")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get shipment")
		return
	}

	s.respondWithJSON(w, http.StatusOK, rec)
}

// PutShipment accepts the shipment payload only when it carries the
// configured status key; any other spelling is a 400, which is the
// client's cue to try its next payload variant.
func (s *StoreService) PutShipment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rawStatus, ok := payload[s.statusKey]
	if !ok {
		s.logger.WithField("order_id", orderID).Warn("Shipment payload missing accepted status key")
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("missing required field %q", s.statusKey))
		return
	}

	rec := models.ShipmentRecord{OrderID: orderID, UpdatedAt: time.Now()}
	if err := json.Unmarshal(rawStatus, &rec.Status); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid status value")
		return
	}
	unmarshalField(payload, "carrier", &rec.Carrier)
	unmarshalField(payload, "tracking_number", &rec.TrackingNumber)
	unmarshalField(payload, "shipped_at", &rec.ShippedAt)
	unmarshalField(payload, "delivered_at", &rec.DeliveredAt)
	unmarshalField(payload, "updated_at", &rec.UpdatedAt)

	if err := s.saveShipment(&rec); err != nil {
		s.logger.WithError(err).Error("Failed to save shipment")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to save shipment")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   rec.Status,
	}).Info("Shipment saved")

	s.orderChanged(orderID)

	s.respondWithJSON(w, http.StatusOK, models.ShipmentResponse{
		Success:  true,
		Message:  "Shipment saved",
		Shipment: &rec,
	})
}

func (s *StoreService) PutItemStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]
	productID := vars["productId"]

	var item models.ItemStatus
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.db.Exec(
		`UPDATE order_items SET fulfillment_status = $1 WHERE order_id = $2 AND product_id = $3`,
		string(item.Status), orderID, productID,
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to update item status")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update item status")
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		s.respondWithError(w, http.StatusNotFound, "Order item not found")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   orderID,
		"product_id": productID,
		"status":     item.Status,
	}).Info("Item status saved")

	s.orderChanged(orderID)

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Item status saved",
	})
}

func (s *StoreService) GetSeller(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sellerID := vars["id"]

	var pickupAddress string
	err := s.db.QueryRow(`SELECT pickup_address FROM sellers WHERE id = $1`, sellerID).Scan(&pickupAddress)
	if err != nil {
		if err == sql.ErrNoRows {
			s.respondWithError(w, http.StatusNotFound, "Seller not found")
			return
		}
		s.logger.WithError(err).Error("Failed to get seller")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get seller")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]string{
		"seller_id":      sellerID,
		"pickup_address": pickupAddress,
	})
}

func (s *StoreService) PutSeller(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sellerID := vars["id"]

	var body struct {
		PickupAddress string `json:"pickup_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := s.db.Exec(
		`INSERT INTO sellers (id, pickup_address) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET pickup_address = EXCLUDED.pickup_address`,
		sellerID, body.PickupAddress,
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to save seller")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to save seller")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Seller saved",
	})
}

func (s *StoreService) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": "store-service",
			"error":   "database connection failed",
		})
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "store-service",
	})
}

// orderChanged fans the mutation out to both notification channels.
func (s *StoreService) orderChanged(orderID string) {
	s.hub.BroadcastOrderChanged(orderID)

	if s.producer != nil {
		event := events.OrderChangedEvent{Kind: "order_changed", OrderID: orderID}
		if err := s.producer.PublishOrderChanged(event); err != nil {
			s.logger.WithError(err).Error("Failed to publish order changed event")
		}
	}
}

func (s *StoreService) saveOrder(order *models.Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO orders (id, buyer_id, shipping_address, total_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.BuyerID, order.ShippingAddress, order.TotalAmount, order.Status, order.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.Exec(
			`INSERT INTO order_items (order_id, product_id, seller_id, quantity, unit_price, fulfillment_status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, item.ProductID, item.SellerID, item.Quantity, item.UnitPrice, item.FulfillmentStatus,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *StoreService) getOrderByID(orderID string) (*models.Order, error) {
	order := &models.Order{}

	err := s.db.QueryRow(
		`SELECT id, buyer_id, shipping_address, total_amount, status, created_at
		 FROM orders WHERE id = $1`, orderID,
	).Scan(&order.ID, &order.BuyerID, &order.ShippingAddress, &order.TotalAmount, &order.Status, &order.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT product_id, seller_id, quantity, unit_price, fulfillment_status
		 FROM order_items WHERE order_id = $1`, orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.SellerID, &item.Quantity, &item.UnitPrice, &item.FulfillmentStatus); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	return order, rows.Err()
}

func (s *StoreService) getOrdersBySeller(sellerID string) ([]*models.Order, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT o.id FROM orders o
		 JOIN order_items i ON i.order_id = o.id
		 WHERE i.seller_id = $1
		 ORDER BY o.id`, sellerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.getOrderByID(id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *StoreService) getShipmentByOrder(orderID string) (*models.ShipmentRecord, error) {
	rec := &models.ShipmentRecord{}
	err := s.db.QueryRow(
		`SELECT order_id, carrier, tracking_number, shipment_status, shipped_at, delivered_at, updated_at
		 FROM shipments WHERE order_id = $1`, orderID,
	).Scan(&rec.OrderID, &rec.Carrier, &rec.TrackingNumber, &rec.Status, &rec.ShippedAt, &rec.DeliveredAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *StoreService) saveShipment(rec *models.ShipmentRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO shipments (order_id, carrier, tracking_number, shipment_status, shipped_at, delivered_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (order_id) DO UPDATE SET
		   carrier = EXCLUDED.carrier,
		   tracking_number = EXCLUDED.tracking_number,
		   shipment_status = EXCLUDED.shipment_status,
		   shipped_at = EXCLUDED.shipped_at,
		   delivered_at = EXCLUDED.delivered_at,
		   updated_at = EXCLUDED.updated_at`,
		rec.OrderID, rec.Carrier, rec.TrackingNumber, string(rec.Status), rec.ShippedAt, rec.DeliveredAt, rec.UpdatedAt,
	)
	return err
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(255) PRIMARY KEY,
			buyer_id VARCHAR(255) NOT NULL,
			shipping_address TEXT NOT NULL,
			total_amount DECIMAL(12,2) NOT NULL,
			status VARCHAR(50) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL REFERENCES orders(id),
			product_id VARCHAR(255) NOT NULL,
			seller_id VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price DECIMAL(12,2) NOT NULL,
			fulfillment_status VARCHAR(50) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS shipments (
			order_id VARCHAR(255) PRIMARY KEY REFERENCES orders(id),
			carrier VARCHAR(255) NOT NULL,
			tracking_number VARCHAR(255) NOT NULL,
			shipment_status VARCHAR(50) NOT NULL,
			shipped_at TIMESTAMP,
			delivered_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sellers (
			id VARCHAR(255) PRIMARY KEY,
			pickup_address TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_seller_id ON order_items(seller_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func unmarshalField(payload map[string]json.RawMessage, key string, out interface{}) {
	if raw, ok := payload[key]; ok {
		json.Unmarshal(raw, out)
	}
}

func (s *StoreService) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *StoreService) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Info("Request received")

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
