package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ltnguyen/shipcoord/internal/events"
	"github.com/ltnguyen/shipcoord/internal/shipment"
	"github.com/ltnguyen/shipcoord/internal/store"
	"github.com/ltnguyen/shipcoord/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory echo of the Order/Shipment Store: writes
// land in maps, reads reflect them, and every call is logged so tests
// can assert protocol order.
type fakeStore struct {
	mu          sync.Mutex
	orders      map[string]*models.Order
	shipments   map[string]*models.ShipmentRecord
	calls       []string
	saveErr     error
	putItemErr  error
	getOrderErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    make(map[string]*models.Order),
		shipments: make(map[string]*models.ShipmentRecord),
	}
}

func (f *fakeStore) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	f.record("GetOrder")
	if f.getOrderErr != nil {
		return nil, f.getOrderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (f *fakeStore) GetShipment(ctx context.Context, orderID string) (*models.ShipmentRecord, error) {
	f.record("GetShipment")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shipments[orderID].Clone(), nil
}

func (f *fakeStore) SaveShipment(ctx context.Context, rec *models.ShipmentRecord) error {
	f.record("SaveShipment")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	f.shipments[rec.OrderID] = rec.Clone()
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) PutItemStatus(ctx context.Context, item models.ItemStatus) error {
	f.record("PutItemStatus")
	if f.putItemErr != nil {
		return f.putItemErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[item.OrderID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range order.Items {
		if order.Items[i].ProductID == item.ProductID {
			order.Items[i].FulfillmentStatus = string(item.Status)
		}
	}
	return nil
}

type fakeProfiles struct {
	addresses map[string]string
}

func (f *fakeProfiles) OriginAddress(ctx context.Context, sellerID string) (string, error) {
	addr, ok := f.addresses[sellerID]
	if !ok {
		return "", errors.New("seller profile not found")
	}
	return addr, nil
}

type fakePublisher struct {
	events []events.ShipmentStatusChangedEvent
}

func (f *fakePublisher) PublishShipmentStatusChanged(event events.ShipmentStatusChangedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func hanoiOrder() *models.Order {
	return &models.Order{
		ID:              "o1",
		BuyerID:         "b1",
		ShippingAddress: "Cầu Giấy, Hà Nội",
		Items: []models.OrderItem{
			{ProductID: "p1", SellerID: "s1", Quantity: 1, UnitPrice: 250000},
		},
	}
}

func newTestCoordinator(fs *fakeStore, at time.Time) *Coordinator {
	profiles := &fakeProfiles{addresses: map[string]string{
		"s1": "Ba Đình, Hà Nội",
		"s2": "Hải Châu, Đà Nẵng",
	}}
	c := New(fs, profiles, testLogger())
	c.SetMachine(shipment.NewMachineAt(func() time.Time { return at }))
	return c
}

func TestChangeStatusHappyPath(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()

	c := newTestCoordinator(fs, t0)
	pub := &fakePublisher{}
	c.SetEventPublisher(pub)

	result, err := c.ChangeStatus(context.Background(), "o1", "s1", models.StatusProcessing)
	require.NoError(t, err)

	// Seller and destination are both Hanoi-area: the delivery
	// estimate is one day out.
	require.NotNil(t, result.Shipment.DeliveredAt)
	assert.Equal(t, t0.AddDate(0, 0, 1), *result.Shipment.DeliveredAt)
	require.NotNil(t, result.Shipment.ShippedAt)
	assert.Equal(t, t0, *result.Shipment.ShippedAt)
	assert.Equal(t, models.StatusProcessing, result.Shipment.Status)
	assert.Equal(t, models.StatusProcessing, result.Item.Status)

	// Optimistic write, both mutations, then the unconditional
	// authoritative refetch.
	assert.Equal(t, []string{
		"GetOrder", "GetShipment", "SaveShipment", "PutItemStatus", "GetOrder", "GetShipment",
	}, fs.callLog())

	// Local state matches the store after reconciliation.
	cached, ok := c.Cache().GetShipment("o1")
	require.True(t, ok)
	assert.Equal(t, fs.shipments["o1"].Status, cached.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "processing", pub.events[0].ToStatus)
	assert.Equal(t, "o1", pub.events[0].OrderID)
	assert.Equal(t, "p1", pub.events[0].ProductID)
}

func TestChangeStatusCrossRegionEstimate(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	fs := newFakeStore()
	order := hanoiOrder()
	order.ShippingAddress = "Quận 1, TP.HCM"
	order.Items[0].SellerID = "s2"
	fs.orders["o1"] = order

	c := newTestCoordinator(fs, t0)

	// Da Nang seller shipping to Ho Chi Minh City crosses regions.
	result, err := c.ChangeStatus(context.Background(), "o1", "s2", models.StatusShipped)
	require.NoError(t, err)
	require.NotNil(t, result.Shipment.DeliveredAt)
	assert.Equal(t, t0.AddDate(0, 0, 5), *result.Shipment.DeliveredAt)
}

func TestChangeStatusInvalidTransitionBeforeAnyNetworkCall(t *testing.T) {
	t0 := time.Now()
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()

	c := newTestCoordinator(fs, t0)
	c.Cache().SetOrder(fs.orders["o1"])
	c.Cache().SetShipment(&models.ShipmentRecord{OrderID: "o1", Status: models.StatusReceived})

	_, err := c.ChangeStatus(context.Background(), "o1", "s1", models.StatusProcessing)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shipment.ErrInvalidTransition))
	assert.Empty(t, fs.callLog(), "validation failures must not reach the store")
}

func TestChangeStatusRejectsForeignSeller(t *testing.T) {
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()

	c := newTestCoordinator(fs, time.Now())

	_, err := c.ChangeStatus(context.Background(), "o1", "s2", models.StatusProcessing)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shipment.ErrTargetNotFound))
	for _, call := range fs.callLog() {
		assert.NotEqual(t, "SaveShipment", call)
		assert.NotEqual(t, "PutItemStatus", call)
	}
}

func TestChangeStatusRemoteFailureStillReconciles(t *testing.T) {
	t0 := time.Now()
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()
	fs.shipments["o1"] = &models.ShipmentRecord{OrderID: "o1", Status: models.StatusPending}
	fs.saveErr = store.ErrRemoteUnavailable

	c := newTestCoordinator(fs, t0)

	_, err := c.ChangeStatus(context.Background(), "o1", "s1", models.StatusProcessing)

	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrRemoteUnavailable))

	// The reconciliation fetch ran despite the failed mutation.
	log := fs.callLog()
	assert.Equal(t, "GetShipment", log[len(log)-1])
	assert.Equal(t, "GetOrder", log[len(log)-2])

	// And the optimistic value was rolled back to store truth.
	cached, ok := c.Cache().GetShipment("o1")
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, cached.Status)
}

func TestChangeStatusPartialFailureSurfacedAfterReconcile(t *testing.T) {
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()
	fs.putItemErr = store.ErrRemoteRejected

	c := newTestCoordinator(fs, time.Now())

	_, err := c.ChangeStatus(context.Background(), "o1", "s1", models.StatusProcessing)

	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrRemoteRejected))

	log := fs.callLog()
	assert.Equal(t, "GetShipment", log[len(log)-1], "refetch must run even on partial failure")
}

func TestChangeStatusLazyShipmentCreation(t *testing.T) {
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()

	c := newTestCoordinator(fs, time.Now())

	result, err := c.ChangeStatus(context.Background(), "o1", "s1", models.StatusProcessing)
	require.NoError(t, err)

	assert.Equal(t, "GHN Express", result.Shipment.Carrier)
	assert.True(t, strings.HasPrefix(result.Shipment.TrackingNumber, "VN"))
	assert.Len(t, result.Shipment.TrackingNumber, 12)
}

func TestOnOrderChangedCoalescesBursts(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs, time.Now())

	for i := 0; i < 10; i++ {
		c.OnOrderChanged("o1")
	}
	c.HandleOrderChanged(events.OrderChangedEvent{OrderID: "o2"})
	c.HandleOrderChanged(events.OrderChangedEvent{OrderID: "o2"})

	assert.Equal(t, 2, len(c.refetch), "one pending refetch per order, bursts collapse")
}

func TestRunDrainsRefetchQueue(t *testing.T) {
	fs := newFakeStore()
	fs.orders["o1"] = hanoiOrder()
	fs.shipments["o1"] = &models.ShipmentRecord{OrderID: "o1", Status: models.StatusShipped}

	c := newTestCoordinator(fs, time.Now())
	c.OnOrderChanged("o1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec, ok := c.Cache().GetShipment("o1")
		return ok && rec.Status == models.StatusShipped
	}, time.Second, 10*time.Millisecond, "refetch worker should populate the cache from the store")

	cancel()
	<-done
}
