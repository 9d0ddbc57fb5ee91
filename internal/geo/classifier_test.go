package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionPartitionIsTotal(t *testing.T) {
	valid := map[Region]bool{RegionNorth: true, RegionCentral: true, RegionSouth: true}

	for _, province := range Provinces() {
		region := RegionOf(province)
		assert.True(t, valid[region], "province %q mapped to invalid region %v", province, region)
	}
}

func TestClassifyProvinceAliases(t *testing.T) {
	tests := []struct {
		address string
		want    Province
	}{
		{"Quận 1, TP.HCM", ProvinceHoChiMinh},
		{"123 Nguyễn Huệ, Hồ Chí Minh", ProvinceHoChiMinh},
		{"Ho Chi Minh City", ProvinceHoChiMinh},
		{"văn phòng sài gòn", ProvinceHoChiMinh},
		{"36 Hàng Bài, Hà Nội", ProvinceHanoi},
		{"Hanoi, Vietnam", ProvinceHanoi},
		{"Hải Châu, Đà Nẵng", ProvinceDaNang},
		{"da nang beach", ProvinceDaNang},
		{"Nha Trang", "khánh hòa"},
		{"TP Vinh", "nghệ an"},
	}

	for _, tt := range tests {
		got, ok := ClassifyProvince(tt.address)
		require.True(t, ok, "address %q should classify", tt.address)
		assert.Equal(t, tt.want, got, "address %q", tt.address)
	}
}

func TestClassifyProvinceUnknown(t *testing.T) {
	got, ok := ClassifyProvince("42 Wallaby Way, Sydney")
	assert.False(t, ok)
	assert.Equal(t, Unknown, got)
}

// Gazetteer order decides ties: the Hà Nội entry precedes Đà Nẵng, so
// an address mentioning both classifies as Hà Nội regardless of text
// order.
func TestClassifyProvinceFirstMatchWins(t *testing.T) {
	got, ok := ClassifyProvince("chuyển từ đà nẵng ra hà nội")
	require.True(t, ok)
	assert.Equal(t, ProvinceHanoi, got)
}

func TestRegionOf(t *testing.T) {
	assert.Equal(t, RegionNorth, RegionOf(ProvinceHanoi))
	assert.Equal(t, RegionCentral, RegionOf(ProvinceDaNang))
	assert.Equal(t, RegionSouth, RegionOf(ProvinceHoChiMinh))

	// Provinces outside the partition default to Central.
	assert.Equal(t, RegionCentral, RegionOf(Province("atlantis")))
}

func TestRegionOfAddress(t *testing.T) {
	assert.Equal(t, RegionNorth, RegionOfAddress("Cầu Giấy, Hà Nội"))
	assert.Equal(t, RegionSouth, RegionOfAddress("Thủ Đức, TP.HCM"))
	assert.Equal(t, RegionCentral, RegionOfAddress("Hội An, Quảng Nam"))

	// Unclassifiable text falls back to Central unless a hub is
	// mentioned.
	assert.Equal(t, RegionCentral, RegionOfAddress("somewhere remote"))
	assert.Equal(t, RegionNorth, RegionOfAddress("kho trung chuyển hanoi khu B"))
	assert.Equal(t, RegionSouth, RegionOfAddress("kho hcm khu C"))
}
