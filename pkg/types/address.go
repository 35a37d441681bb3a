package types

import (
	"fmt"
	"strings"
)

// Address is the shipping address snapshot stored on a sale as JSON.
type Address struct {
	Name    string   `json:"name"`
	Line1   string   `json:"line1"`
	Line2   string   `json:"line2,omitempty"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	Pincode string   `json:"pincode"`
	Country string   `json:"country,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Validate checks the fields the courier and allocator depend on.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("address: missing state")
	}
	if !IsPincode(a.Pincode) {
		return fmt.Errorf("address: pincode must be 6 digits")
	}
	if (a.Lat == nil) != (a.Lng == nil) {
		return fmt.Errorf("address: lat and lng must be provided together")
	}
	if a.Lat != nil && (*a.Lat < -90 || *a.Lat > 90 || *a.Lng < -180 || *a.Lng > 180) {
		return fmt.Errorf("address: coordinates out of range")
	}
	return nil
}

// Coordinates returns the address position when both parts are present.
func (a Address) Coordinates() (LatLng, bool) {
	if a.Lat == nil || a.Lng == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *a.Lat, Lng: *a.Lng}, true
}

// CountryOrDefault falls back to India, the only market the courier serves.
func (a Address) CountryOrDefault() string {
	if c := strings.TrimSpace(a.Country); c != "" {
		return c
	}
	return "India"
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsPincode reports whether value is a six digit postal code.
func IsPincode(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) != 6 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
