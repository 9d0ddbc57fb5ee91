package eta

import (
	"time"

	"github.com/ltnguyen/shipcoord/internal/geo"
)

// DefaultTransitDays is used whenever either address is missing or
// cannot be classified.
const DefaultTransitDays = 3

const (
	sameProvinceDays = 1
	sameRegionDays   = 3
	crossRegionDays  = 5
)

// EstimateDays returns the coarse transit estimate between two
// free-text addresses. This is a fixed table, not a distance
// function: same province 1 day, same region 3, different region 5,
// unknown 3.
func EstimateDays(origin, destination string) int {
	if origin == "" || destination == "" {
		return DefaultTransitDays
	}

	originProvince, ok := geo.ClassifyProvince(origin)
	if !ok {
		return DefaultTransitDays
	}
	destProvince, ok := geo.ClassifyProvince(destination)
	if !ok {
		return DefaultTransitDays
	}

	if originProvince == destProvince {
		return sameProvinceDays
	}
	if geo.RegionOfAddress(origin) == geo.RegionOfAddress(destination) {
		return sameRegionDays
	}
	return crossRegionDays
}

// EstimatedDelivery returns now plus the transit estimate.
func EstimatedDelivery(now time.Time, origin, destination string) time.Time {
	return now.AddDate(0, 0, EstimateDays(origin, destination))
}
