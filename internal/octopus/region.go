package octopus

import (
	"strings"

	"github.com/agilewatch/agilewatch/internal/apperr"
)

// Region is a UK electricity distribution region (DNO area) used in tariff
// codes. There is no region "I".
type Region string

const (
	RegionA Region = "A" // Eastern England
	RegionB Region = "B" // East Midlands
	RegionC Region = "C" // London
	RegionD Region = "D" // Merseyside and North Wales
	RegionE Region = "E" // West Midlands
	RegionF Region = "F" // North Eastern England
	RegionG Region = "G" // North Western England
	RegionH Region = "H" // Southern England
	RegionJ Region = "J" // South Eastern England
	RegionK Region = "K" // Southern Wales
	RegionL Region = "L" // South Western England
	RegionM Region = "M" // Yorkshire
	RegionN Region = "N" // Southern Scotland
	RegionP Region = "P" // Northern Scotland
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = RegionC

var regionDescriptions = map[Region]string{
	RegionA: "Eastern England",
	RegionB: "East Midlands",
	RegionC: "London",
	RegionD: "Merseyside and North Wales",
	RegionE: "West Midlands",
	RegionF: "North Eastern England",
	RegionG: "North Western England",
	RegionH: "Southern England",
	RegionJ: "South Eastern England",
	RegionK: "Southern Wales",
	RegionL: "South Western England",
	RegionM: "Yorkshire",
	RegionN: "Southern Scotland",
	RegionP: "Northern Scotland",
}

// AllRegions lists the 14 valid regions in code order.
func AllRegions() []Region {
	return []Region{
		RegionA, RegionB, RegionC, RegionD, RegionE, RegionF, RegionG,
		RegionH, RegionJ, RegionK, RegionL, RegionM, RegionN, RegionP,
	}
}

// ParseRegion parses a single-letter region code case-insensitively.
// Unrecognized codes are a configuration error.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := regionDescriptions[r]; !ok {
		return "", apperr.Config("invalid region code: %q", s)
	}
	return r, nil
}

// Code returns the single-character code used in tariff URLs.
func (r Region) Code() string {
	return string(r)
}

// Description returns the human-readable DNO area name.
func (r Region) Description() string {
	return regionDescriptions[r]
}

func (r Region) String() string {
	return r.Code() + " (" + r.Description() + ")"
}
