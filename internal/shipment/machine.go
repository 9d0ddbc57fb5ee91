package shipment

import (
	"errors"
	"fmt"
	"time"

	"github.com/ltnguyen/shipcoord/internal/eta"
	"github.com/ltnguyen/shipcoord/pkg/models"
)

var (
	// ErrInvalidTransition is returned when the requested status is
	// not in the allowed set for the record's current status.
	ErrInvalidTransition = errors.New("invalid shipment status transition")

	// ErrTargetNotFound is returned when no order item can be
	// resolved for the acting seller.
	ErrTargetNotFound = errors.New("no matching order item for seller")
)

// canonicalSequence is the forward order of shipment statuses.
// cancelled sits outside the sequence and is reachable from any
// position.
var canonicalSequence = []models.ShipmentStatus{
	models.StatusPending,
	models.StatusProcessing,
	models.StatusShipped,
	models.StatusDelivered,
	models.StatusReceived,
}

func sequenceIndex(s models.ShipmentStatus) int {
	for i, status := range canonicalSequence {
		if status == s {
			return i
		}
	}
	return -1
}

// NextAllowed returns the legal target statuses from current: the
// strict suffix of the canonical sequence, with cancelled always
// appended. An unset current means tracking has not started and every
// forward status is open. Note that cancelled stays in the set even
// at received; whether callers should still offer it there is an
// upstream concern, the transition table itself does not forbid it.
func NextAllowed(current models.ShipmentStatus) []models.ShipmentStatus {
	var out []models.ShipmentStatus
	if current == "" {
		out = append(out, canonicalSequence...)
		return append(out, models.StatusCancelled)
	}
	if idx := sequenceIndex(current); idx >= 0 {
		out = append(out, canonicalSequence[idx+1:]...)
	}
	return append(out, models.StatusCancelled)
}

// Allowed reports whether next is a legal transition from current.
func Allowed(current, next models.ShipmentStatus) bool {
	for _, s := range NextAllowed(current) {
		if s == next {
			return true
		}
	}
	return false
}

// Machine applies validated transitions and the timestamp rules tied
// to them. The clock is injectable for tests.
type Machine struct {
	now func() time.Time
}

func NewMachine() *Machine {
	return &Machine{now: time.Now}
}

// NewMachineAt builds a machine with a fixed clock.
func NewMachineAt(now func() time.Time) *Machine {
	return &Machine{now: now}
}

// Apply moves rec to next and mutates timestamps in place:
//   - shipped_at is set the first time status enters
//     processing/shipped/delivered/received and never touched again
//   - delivered_at receives an ETA estimate on processing/shipped
//     while unset, and the actual time on the first transition into
//     delivered/received; the actual time is frozen from then on
func (m *Machine) Apply(rec *models.ShipmentRecord, next models.ShipmentStatus, originAddr, destAddr string) error {
	if !Allowed(rec.Status, next) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, rec.Status, next)
	}

	now := m.now()

	needShip := next == models.StatusProcessing || next == models.StatusShipped ||
		next == models.StatusDelivered || next == models.StatusReceived
	if rec.ShippedAt == nil && needShip {
		t := now
		rec.ShippedAt = &t
	}

	delivered := rec.Status == models.StatusDelivered || rec.Status == models.StatusReceived
	switch next {
	case models.StatusDelivered, models.StatusReceived:
		// Overwrites a pending estimate, never an actual time.
		if !delivered {
			t := now
			rec.DeliveredAt = &t
		}
	case models.StatusProcessing, models.StatusShipped:
		if rec.DeliveredAt == nil {
			t := eta.EstimatedDelivery(now, originAddr, destAddr)
			rec.DeliveredAt = &t
		}
	}

	rec.Status = next
	rec.UpdatedAt = now
	return nil
}
