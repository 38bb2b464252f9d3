package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddressComponents(t *testing.T) {
	components := []apiComponent{
		{LongName: "6470", Types: []string{"street_number"}},
		{LongName: "South Stony Road", ShortName: "S Stony Rd", Types: []string{"route"}},
		{LongName: "Mount Pleasant", Types: []string{"locality", "political"}},
		{LongName: "Isabella County", Types: []string{"administrative_area_level_2", "political"}},
		{LongName: "Michigan", ShortName: "MI", Types: []string{"administrative_area_level_1", "political"}},
		{LongName: "48858", Types: []string{"postal_code"}},
	}

	out := ParseAddressComponents(components)

	assert.Equal(t, "6470 South Stony Road", out.StreetAddress)
	assert.Equal(t, "South Stony Road", out.StreetName)
	assert.Equal(t, "Mount Pleasant", out.City)
	assert.Equal(t, "Isabella", out.County, "trailing County must be stripped")
	assert.Equal(t, "MI", out.State)
	assert.Equal(t, "48858", out.ZipCode)
}

func TestParseAddressComponentsCityPreference(t *testing.T) {
	// Locality outranks admin level 3 outranks sublocality, in any order.
	components := []apiComponent{
		{LongName: "Union Charter Township", Types: []string{"administrative_area_level_3"}},
		{LongName: "Downtown", Types: []string{"sublocality"}},
		{LongName: "Mount Pleasant", Types: []string{"locality"}},
	}
	assert.Equal(t, "Mount Pleasant", ParseAddressComponents(components).City)

	// Without a locality, admin level 3 wins over sublocality.
	components = []apiComponent{
		{LongName: "Downtown", Types: []string{"sublocality"}},
		{LongName: "Union Charter Township", Types: []string{"administrative_area_level_3"}},
	}
	assert.Equal(t, "Union Charter Township", ParseAddressComponents(components).City)
}

func TestParseFirstResult(t *testing.T) {
	resp := apiResponse{
		Status: "OK",
		Results: []apiResult{{
			FormattedAddress: "6470 S Stony Rd, Mount Pleasant, MI 48858, USA",
			Geometry:         apiGeometry{Location: apiLatLng{Lat: 43.597, Lng: -84.767}},
		}},
	}

	r, ok := parseFirstResult(resp)
	require.True(t, ok)
	assert.Equal(t, "6470 S Stony Rd, Mount Pleasant, MI 48858", r.FormattedAddress, "country suffix trimmed")
	assert.Equal(t, -84.767, r.Geo.Lng())
	assert.Equal(t, 43.597, r.Geo.Lat())
}

func TestParseFirstResultAbsent(t *testing.T) {
	_, ok := parseFirstResult(apiResponse{Status: "ZERO_RESULTS"})
	assert.False(t, ok)

	_, ok = parseFirstResult(apiResponse{Status: "OK", Results: nil})
	assert.False(t, ok)
}
