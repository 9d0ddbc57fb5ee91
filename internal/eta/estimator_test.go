package eta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateDays(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		destination string
		want        int
	}{
		{"same province", "Quận 1, TP.HCM", "Thủ Đức, Hồ Chí Minh", 1},
		{"same province alias spellings", "Ba Đình, Hà Nội", "Hanoi Old Quarter", 1},
		{"same region different province", "Ba Đình, Hà Nội", "Lê Chân, Hải Phòng", 3},
		{"cross region north to south", "Ba Đình, Hà Nội", "Quận 7, TP.HCM", 5},
		{"cross region central to south", "Hải Châu, Đà Nẵng", "Hồ Chí Minh", 5},
		{"origin missing", "", "Hà Nội", 3},
		{"destination missing", "Hà Nội", "", 3},
		{"origin unclassifiable", "some warehouse", "Hà Nội", 3},
		{"destination unclassifiable", "Hà Nội", "somewhere remote", 3},
		{"both unclassifiable", "nowhere", "elsewhere", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateDays(tt.origin, tt.destination))
		})
	}
}

func TestEstimatedDelivery(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	got := EstimatedDelivery(now, "Hà Nội", "TP.HCM")
	assert.Equal(t, now.AddDate(0, 0, 5), got)

	got = EstimatedDelivery(now, "", "")
	assert.Equal(t, now.AddDate(0, 0, DefaultTransitDays), got)
}
