package domain

import (
	"time"
)

// Location is a restaurant whose menu is polled. Its ID is either canonical
// (all digits, issued by the gateway) or a provisional local code.
type Location struct {
	ID          string    `json:"location_id"`
	Name        string    `json:"name,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	Region      string    `json:"region,omitempty"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
	Distance    *float64  `json:"distance,omitempty"` // computed field
}

// Canonical reports whether the location already carries a gateway ID.
func (l Location) Canonical() bool {
	return IsCanonicalID(l.ID)
}

// IsCanonicalID reports whether id consists solely of ASCII digits.
func IsCanonicalID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// Item is a menu product.
type Item struct {
	ID     string `json:"item_id"`
	NameEN string `json:"name_en,omitempty"`
	NameFR string `json:"name_fr,omitempty"`
	Family string `json:"family,omitempty"`
}

// Observation is one availability/price check of an item at a location.
type Observation struct {
	ID         int64     `json:"id,omitempty"`
	LocationID string    `json:"location_id"`
	ItemID     string    `json:"item_id"`
	Available  bool      `json:"is_available"`
	PriceCents *int      `json:"price_cents,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// MenuEntry is one row of a location's menu as reported by the gateway.
type MenuEntry struct {
	ItemID     string `json:"item_id"`
	Available  bool   `json:"is_available"`
	PriceCents *int   `json:"price_cents,omitempty"`
}

// LatestAvailability is the most recent observation per item at a location.
type LatestAvailability struct {
	LocationID string    `json:"location_id"`
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name,omitempty"`
	Available  bool      `json:"is_available"`
	PriceCents *int      `json:"price_cents,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// BatchSummary reports one collector pass over all locations.
type BatchSummary struct {
	Locations  int       `json:"locations"`
	Failed     int       `json:"failed"`
	Items      int       `json:"items"`
	Available  int       `json:"available"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
