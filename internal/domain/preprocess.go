package domain

import (
	"strings"
	"sync"
)

// CityInvalid marks a correction-table entry whose city name is known bad and
// must be re-derived from the ZIP code instead of corrected in place.
const CityInvalid = "__invalid__"

// periodAbbreviations lists the tokens that upstream postal validation
// expects with a trailing period: compass directionals plus common
// street-type abbreviations.
var periodAbbreviations = map[string]struct{}{
	"n": {}, "s": {}, "e": {}, "w": {},
	"ne": {}, "nw": {}, "se": {}, "sw": {},
	"dr": {}, "st": {}, "ave": {}, "rd": {}, "blvd": {}, "ln": {}, "ct": {},
	"pl": {}, "cir": {}, "pkwy": {}, "hwy": {}, "ter": {}, "way": {},
}

// PreprocessStreetAddress inserts a period after single/two-letter compass
// directionals and known street-type abbreviations when one is not already
// present, then collapses runs of whitespace. Idempotent.
func PreprocessStreetAddress(s string) string {
	fields := strings.Fields(s)
	for i, tok := range fields {
		if strings.HasSuffix(tok, ".") {
			continue
		}
		if _, ok := periodAbbreviations[strings.ToLower(tok)]; ok {
			fields[i] = tok + "."
		}
	}
	return strings.Join(fields, " ")
}

// ShouldRetryWithoutCity decides whether a rejected postal lookup is worth
// retrying with the city omitted: only for 400-class rejections where both a
// city and a ZIP were supplied, since ZIP alone is sufficient for postal
// lookup and a mismatched city name should not block standardization.
func ShouldRetryWithoutCity(err error, hasCity, hasZip bool) bool {
	return IsClientRejection(err) && hasCity && hasZip
}

// Corrections holds the runtime-mutable data-quality tables: ZIP→city
// mappings and per-state city-name corrections. Entries can be added at
// runtime to ship incremental fixes without redeployment.
type Corrections struct {
	mu          sync.RWMutex
	zipToCity   map[string]string
	cityByState map[string]map[string]string
}

// NewCorrections returns tables seeded with the known-bad city names and ZIP
// mappings accumulated from production data.
func NewCorrections() *Corrections {
	return &Corrections{
		zipToCity: map[string]string{
			"48852": "Mount Pleasant",
			"48858": "Mount Pleasant",
			"49770": "Petoskey",
		},
		cityByState: map[string]map[string]string{
			"MI": {
				"McBride":  CityInvalid,
				"Mt Plst":  "Mount Pleasant",
				"Mt. Plst": "Mount Pleasant",
			},
			"NY": {
				"NYC": "New York",
			},
		},
	}
}

// AddZIPCity registers or replaces a ZIP→city mapping.
func (c *Corrections) AddZIPCity(zip, city string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zipToCity[zip] = city
}

// AddCityCorrection registers a per-state city correction. Use CityInvalid as
// the corrected value to force ZIP-based re-derivation.
func (c *Corrections) AddCityCorrection(state, city, corrected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state = strings.ToUpper(state)
	if c.cityByState[state] == nil {
		c.cityByState[state] = make(map[string]string)
	}
	c.cityByState[state][city] = corrected
}

// ValidateCity resolves a usable city name from the supplied city, state and
// ZIP. The second return reports whether any city could be resolved.
func (c *Corrections) ValidateCity(city, state, zipCode string) (string, bool) {
	resolved, _, ok := c.resolveCity(city, state, zipCode)
	return resolved, ok
}

// resolveCity additionally reports whether the city was synthesized from the
// ZIP table rather than supplied or corrected from input.
func (c *Corrections) resolveCity(city, state, zipCode string) (resolved string, fromZip, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if city == "" {
		mapped, found := c.zipToCity[zipCode]
		return mapped, found, found
	}

	corrections := c.cityByState[strings.ToUpper(state)]
	corrected, found := corrections[city]
	if !found {
		return city, false, true
	}
	if corrected != CityInvalid {
		return corrected, false, true
	}
	if zipCode != "" {
		if mapped, zok := c.zipToCity[zipCode]; zok {
			return mapped, true, true
		}
	}
	return "", false, false
}

// PreprocessAddress normalizes the postal input fields: street-address
// punctuation, city correction, uppercased state. The returned flag reports
// whether the city value was synthesized from a ZIP mapping.
func (c *Corrections) PreprocessAddress(in AddressInput) (AddressInput, bool) {
	out := AddressInput{
		StreetAddress: PreprocessStreetAddress(in.StreetAddress),
		State:         strings.ToUpper(in.State),
		ZipCode:       strings.TrimSpace(in.ZipCode),
	}
	city, fromZip, ok := c.resolveCity(strings.TrimSpace(in.City), out.State, out.ZipCode)
	if ok {
		out.City = city
	}
	return out, fromZip
}
