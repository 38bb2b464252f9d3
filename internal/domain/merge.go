package domain

import (
	"regexp"
	"strings"
)

// MergePostal overlays a postal-standardization result onto base. Postal
// output is authoritative for postal fields: every non-empty field in the
// result overwrites the corresponding base field. Status and Error are not
// merged here; they are aggregated by the pipeline.
func MergePostal(base Location, postal Location) Location {
	if postal.StreetAddress != "" {
		base.StreetAddress = postal.StreetAddress
	}
	if postal.City != "" {
		base.City = postal.City
	}
	if postal.State != "" {
		base.State = postal.State
	}
	if postal.ZipCode != "" {
		base.ZipCode = postal.ZipCode
	}
	if postal.County != "" {
		base.County = postal.County
	}
	if postal.FormattedAddress != "" {
		base.FormattedAddress = postal.FormattedAddress
	}
	if postal.UnformattedAddress != "" && base.UnformattedAddress == "" {
		base.UnformattedAddress = postal.UnformattedAddress
	}
	return base
}

// MergeGeocode overlays a geocoding result onto base. Geometry and the
// formatted address are always overwritten because geocoding is the sole
// authority for them; the remaining fields only fill gaps left after postal
// standardization.
func MergeGeocode(base Location, geo GeoResult) Location {
	base.Geo = geo.Geo
	if geo.FormattedAddress != "" {
		base.FormattedAddress = geo.FormattedAddress
	}
	if base.StreetAddress == "" {
		base.StreetAddress = geo.StreetAddress
	}
	if base.City == "" {
		base.City = geo.City
	}
	if base.State == "" {
		base.State = geo.State
	}
	if base.ZipCode == "" {
		base.ZipCode = geo.ZipCode
	}
	if base.County == "" {
		base.County = geo.County
	}
	return base
}

var countySuffixRe = regexp.MustCompile(`(?i)\s*\bcounty\b\s*$`)

// StripCountySuffix removes a trailing "County" (any casing) and surrounding
// whitespace: "Isabella County" → "Isabella".
func StripCountySuffix(county string) string {
	return strings.TrimSpace(countySuffixRe.ReplaceAllString(county, ""))
}

// JoinNonEmpty joins the non-empty parts with the separator.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, sep)
}
