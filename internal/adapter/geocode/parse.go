package geocode

import (
	"strings"

	"github.com/couchcryptid/address-correction-service/internal/domain"
)

// Wire types for the geocoding API.

type apiResponse struct {
	Status  string      `json:"status"`
	Results []apiResult `json:"results"`
}

type apiResult struct {
	FormattedAddress  string         `json:"formatted_address"`
	Geometry          apiGeometry    `json:"geometry"`
	AddressComponents []apiComponent `json:"address_components"`
}

type apiGeometry struct {
	Location apiLatLng `json:"location"`
}

type apiLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type apiComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Components are the administrative parts extracted from a provider result.
type Components struct {
	StreetNumber  string
	Route         string
	StreetAddress string // space-join of number and route
	StreetName    string // route alone
	City          string
	County        string // trailing "County" stripped
	State         string // short form
	ZipCode       string
}

// Result is one parsed geocoding result.
type Result struct {
	Geo              domain.GeoPoint
	FormattedAddress string
	Components       Components
}

// statusOK is the provider's success sentinel.
const statusOK = "OK"

// city-source preference, highest wins: locality/postal_town over
// administrative_area_level_3 over sublocality.
const (
	cityFromNone = iota
	cityFromSublocality
	cityFromAdminLevel3
	cityFromLocality
)

// ParseAddressComponents walks a provider component list once and extracts
// the administrative parts the pipeline consumes.
func ParseAddressComponents(components []apiComponent) Components {
	var out Components
	cityRank := cityFromNone

	for _, comp := range components {
		for _, t := range comp.Types {
			switch t {
			case "street_number":
				out.StreetNumber = comp.LongName
			case "route":
				out.Route = comp.LongName
			case "locality", "postal_town":
				if cityRank < cityFromLocality {
					out.City = comp.LongName
					cityRank = cityFromLocality
				}
			case "administrative_area_level_3":
				if cityRank < cityFromAdminLevel3 {
					out.City = comp.LongName
					cityRank = cityFromAdminLevel3
				}
			case "sublocality":
				if cityRank < cityFromSublocality {
					out.City = comp.LongName
					cityRank = cityFromSublocality
				}
			case "administrative_area_level_2":
				out.County = domain.StripCountySuffix(comp.LongName)
			case "administrative_area_level_1":
				out.State = comp.ShortName
			case "postal_code":
				out.ZipCode = comp.LongName
			}
		}
	}

	out.StreetAddress = domain.JoinNonEmpty(" ", out.StreetNumber, out.Route)
	out.StreetName = out.Route
	return out
}

// parseFirstResult extracts the first result of a provider response, or
// reports absent when the response status is not OK or carries no results.
// No ranking or disambiguation is attempted beyond taking the first entry.
func parseFirstResult(resp apiResponse) (*Result, bool) {
	if resp.Status != statusOK || len(resp.Results) == 0 {
		return nil, false
	}

	first := resp.Results[0]
	formatted := strings.TrimSuffix(first.FormattedAddress, ", USA")

	return &Result{
		// GeoJSON ordering: longitude first.
		Geo:              domain.NewGeoPoint(first.Geometry.Location.Lng, first.Geometry.Location.Lat),
		FormattedAddress: formatted,
		Components:       ParseAddressComponents(first.AddressComponents),
	}, true
}
