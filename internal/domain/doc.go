// Package domain models US location records and the rules for correcting
// them.
//
// # Address Conventions
//
// A location record carries up to three address renditions:
//
//	UnformattedAddress: a frozen snapshot of the raw input, joined as
//	  "street, city, state, zip" before any correction runs. Computed once
//	  and never recomputed, so the original input survives every merge.
//	FormattedAddress: the human-readable corrected form, owned by whichever
//	  upstream produced it last (postal standardization, then geocoding).
//	NormalizedAddress: a lowercase canonical comparison key produced by
//	  [NormalizeAddress]. Never shown to users; both sides of any equality
//	  check must be normalized with the same tables.
//
// Normalization expands directionals (NW → northwest), street types
// (Ave → avenue), unit types (Apt → apartment), small ordinals
// (3rd → third), and 2-letter state codes near the end of the string
// (MI → michigan). ZIP+4 codes collapse to the base five digits. The token
// "St" is ambiguous: it becomes "saint" before a recognized given name
// (St Paul, St Louis) and "street" everywhere else.
//
// # Geometry
//
// Points are GeoJSON-style, coordinates ordered [longitude, latitude].
// There is no null geometry: the (0,0) point (a spot in the Gulf of Guinea
// no US address resolves to) is the sentinel for "nothing resolved". See
// [GeoPoint.IsSentinel].
//
// # Data Quality Tables
//
// The [Corrections] tables encode known-bad city names and ZIP→city
// mappings accumulated from production data: some feeds label rural
// addresses with a nearby unincorporated community (e.g. "McBride, MI")
// that postal validation rejects. Such names are flagged [CityInvalid] and
// re-derived from the ZIP code. Entries can be added at runtime to ship
// fixes without redeployment.
//
// # Merge Precedence
//
// Postal standardization is authoritative for postal fields: every
// non-empty field it returns overwrites the working record
// ([MergePostal]). Geocoding is authoritative for geometry and the
// formatted address, and only fills gaps elsewhere ([MergeGeocode]).
// County names are stored without the "County" suffix.
package domain
