package domain

// GeoPoint is a GeoJSON-style point with coordinates ordered
// [longitude, latitude]. The zero coordinates (0,0) are the sentinel for
// "no valid geometry resolved"; geometry is never represented as null.
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a Point from a longitude/latitude pair.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// SentinelPoint returns the (0,0) "no valid location" point.
func SentinelPoint() GeoPoint {
	return NewGeoPoint(0, 0)
}

// IsSentinel reports whether the point carries no usable geometry.
func (p GeoPoint) IsSentinel() bool {
	return p.Coordinates[0] == 0 && p.Coordinates[1] == 0
}

// Lng returns the longitude component.
func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude component.
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

// Location is the mutable working record threaded through the correction
// pipeline, and also its final output shape.
type Location struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"` // 2-letter
	ZipCode       string `json:"zipCode,omitempty"`
	County        string `json:"county,omitempty"` // never contains the word "County"

	// FormattedAddress is the human-readable form; UnformattedAddress is a
	// frozen snapshot of the raw input, computed once and never recomputed;
	// NormalizedAddress is the lowercase canonical comparison key.
	FormattedAddress   string `json:"formattedAddress,omitempty"`
	UnformattedAddress string `json:"unformattedAddress,omitempty"`
	NormalizedAddress  string `json:"normalizedAddress,omitempty"`

	Geo    GeoPoint `json:"geo"`
	Status bool     `json:"status"`
	Error  string   `json:"error,omitempty"`
}

// AddressInput carries the postal fields accepted by address standardization.
type AddressInput struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	ZipCode       string `json:"zipCode,omitempty"`
}

// AddressResult is the outcome of postal standardization. Location carries
// only the fields the upstream returned (empty fields stripped).
type AddressResult struct {
	Location Location `json:"location"`
	Status   bool     `json:"status"`
	Error    string   `json:"error,omitempty"`
}

// GeoInput is the request shape for geocode validation: either an explicit
// point, a raw lat/lng pair, or a formatted address to forward-geocode.
type GeoInput struct {
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	Geo              GeoPoint `json:"geo,omitempty"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
}

// GeoResult is the outcome of geocode validation/enrichment.
type GeoResult struct {
	Geo              GeoPoint `json:"geo"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	StreetAddress    string   `json:"streetAddress,omitempty"`
	StreetName       string   `json:"streetName,omitempty"`
	City             string   `json:"city,omitempty"`
	County           string   `json:"county,omitempty"`
	State            string   `json:"state,omitempty"`
	ZipCode          string   `json:"zipCode,omitempty"`
	Status           bool     `json:"status"`
	Error            string   `json:"error,omitempty"`
}
