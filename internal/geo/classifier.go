package geo

import (
	"strings"
)

// Province is the canonical identifier of a gazetteer province.
type Province string

const Unknown Province = ""

type Region int

const (
	RegionNorth Region = iota
	RegionCentral
	RegionSouth
)

func (r Region) String() string {
	switch r {
	case RegionNorth:
		return "north"
	case RegionCentral:
		return "central"
	case RegionSouth:
		return "south"
	default:
		return "unknown"
	}
}

const (
	ProvinceHanoi     Province = "hà nội"
	ProvinceHoChiMinh Province = "hồ chí minh"
	ProvinceDaNang    Province = "đà nẵng"
)

type gazetteerEntry struct {
	alias    string
	province Province
}

// gazetteer is scanned in order against the lowercased address text;
// the first alias contained in the text wins, so longer and accented
// spellings come before the short ones they contain. The two common
// spellings of the southern hub plus "hcm"/"sài gòn" all collapse to
// ProvinceHoChiMinh.
var gazetteer = []gazetteerEntry{
	{"hồ chí minh", ProvinceHoChiMinh},
	{"ho chi minh", ProvinceHoChiMinh},
	{"tp.hcm", ProvinceHoChiMinh},
	{"tp hcm", ProvinceHoChiMinh},
	{"hcm", ProvinceHoChiMinh},
	{"sài gòn", ProvinceHoChiMinh},
	{"sai gon", ProvinceHoChiMinh},
	{"hà nội", ProvinceHanoi},
	{"ha noi", ProvinceHanoi},
	{"hanoi", ProvinceHanoi},
	{"đà nẵng", ProvinceDaNang},
	{"da nang", ProvinceDaNang},
	{"danang", ProvinceDaNang},
	{"hải phòng", "hải phòng"},
	{"hai phong", "hải phòng"},
	{"quảng ninh", "quảng ninh"},
	{"bắc ninh", "bắc ninh"},
	{"hải dương", "hải dương"},
	{"hưng yên", "hưng yên"},
	{"thái nguyên", "thái nguyên"},
	{"vĩnh phúc", "vĩnh phúc"},
	{"nam định", "nam định"},
	{"thái bình", "thái bình"},
	{"ninh bình", "ninh bình"},
	{"lào cai", "lào cai"},
	{"phú thọ", "phú thọ"},
	{"thanh hóa", "thanh hóa"},
	{"nghệ an", "nghệ an"},
	{"vinh", "nghệ an"},
	{"hà tĩnh", "hà tĩnh"},
	{"quảng bình", "quảng bình"},
	{"quảng trị", "quảng trị"},
	{"thừa thiên huế", "thừa thiên huế"},
	{"huế", "thừa thiên huế"},
	{"hue", "thừa thiên huế"},
	{"quảng nam", "quảng nam"},
	{"hội an", "quảng nam"},
	{"quảng ngãi", "quảng ngãi"},
	{"bình định", "bình định"},
	{"quy nhơn", "bình định"},
	{"phú yên", "phú yên"},
	{"khánh hòa", "khánh hòa"},
	{"nha trang", "khánh hòa"},
	{"đắk lắk", "đắk lắk"},
	{"buôn ma thuột", "đắk lắk"},
	{"lâm đồng", "lâm đồng"},
	{"đà lạt", "lâm đồng"},
	{"bình dương", "bình dương"},
	{"thủ dầu một", "bình dương"},
	{"đồng nai", "đồng nai"},
	{"biên hòa", "đồng nai"},
	{"vũng tàu", "bà rịa vũng tàu"},
	{"bà rịa", "bà rịa vũng tàu"},
	{"long an", "long an"},
	{"tiền giang", "tiền giang"},
	{"cần thơ", "cần thơ"},
	{"can tho", "cần thơ"},
	{"an giang", "an giang"},
	{"kiên giang", "kiên giang"},
	{"cà mau", "cà mau"},
}

var regions = map[Province]Region{
	ProvinceHanoi:    RegionNorth,
	"hải phòng":      RegionNorth,
	"quảng ninh":     RegionNorth,
	"bắc ninh":       RegionNorth,
	"hải dương":      RegionNorth,
	"hưng yên":       RegionNorth,
	"thái nguyên":    RegionNorth,
	"vĩnh phúc":      RegionNorth,
	"nam định":       RegionNorth,
	"thái bình":      RegionNorth,
	"ninh bình":      RegionNorth,
	"lào cai":        RegionNorth,
	"phú thọ":        RegionNorth,
	"thanh hóa":      RegionCentral,
	"nghệ an":        RegionCentral,
	"hà tĩnh":        RegionCentral,
	"quảng bình":     RegionCentral,
	"quảng trị":      RegionCentral,
	"thừa thiên huế": RegionCentral,
	ProvinceDaNang:   RegionCentral,
	"quảng nam":      RegionCentral,
	"quảng ngãi":     RegionCentral,
	"bình định":      RegionCentral,
	"phú yên":        RegionCentral,
	"khánh hòa":      RegionCentral,
	"đắk lắk":        RegionCentral,
	"lâm đồng":       RegionCentral,
	ProvinceHoChiMinh: RegionSouth,
	"bình dương":      RegionSouth,
	"đồng nai":        RegionSouth,
	"bà rịa vũng tàu": RegionSouth,
	"long an":         RegionSouth,
	"tiền giang":      RegionSouth,
	"cần thơ":         RegionSouth,
	"an giang":        RegionSouth,
	"kiên giang":      RegionSouth,
	"cà mau":          RegionSouth,
}

// northernHubAliases and southernHubAliases override the Central
// fallback for raw text that clearly mentions one of the two big
// metropolitan hubs even when province classification failed.
var (
	northernHubAliases = []string{"hà nội", "ha noi", "hanoi"}
	southernHubAliases = []string{"hồ chí minh", "ho chi minh", "hcm", "sài gòn", "sai gon"}
)

// ClassifyProvince scans the lowercased address for a gazetteer alias.
// First match wins; gazetteer order is significant for ties. Returns
// (Unknown, false) when nothing matches.
func ClassifyProvince(address string) (Province, bool) {
	text := strings.ToLower(address)
	for _, entry := range gazetteer {
		if strings.Contains(text, entry.alias) {
			return entry.province, true
		}
	}
	return Unknown, false
}

// RegionOf maps a province to its region. Provinces outside the
// static partition fall back to Central.
func RegionOf(p Province) Region {
	if r, ok := regions[p]; ok {
		return r
	}
	return RegionCentral
}

// RegionOfAddress classifies the address and maps it to a region. If
// the province is unknown or unmapped, text mentioning a
// northern/southern hub overrides the Central fallback.
func RegionOfAddress(address string) Region {
	if p, ok := ClassifyProvince(address); ok {
		if r, mapped := regions[p]; mapped {
			return r
		}
	}
	text := strings.ToLower(address)
	for _, alias := range northernHubAliases {
		if strings.Contains(text, alias) {
			return RegionNorth
		}
	}
	for _, alias := range southernHubAliases {
		if strings.Contains(text, alias) {
			return RegionSouth
		}
	}
	return RegionCentral
}

// Provinces returns every province in the gazetteer, deduplicated.
func Provinces() []Province {
	seen := make(map[Province]bool)
	var out []Province
	for _, entry := range gazetteer {
		if !seen[entry.province] {
			seen[entry.province] = true
			out = append(out, entry.province)
		}
	}
	return out
}
