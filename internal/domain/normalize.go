package domain

import (
	"regexp"
	"strings"
)

// NormalizeAddress maps an address string to a canonical lowercase form used
// as an equality-comparison key. It is deterministic and idempotent, and must
// never be shown to users as the canonical formatted address; both sides of
// any comparison must be normalized with the same tables.
func NormalizeAddress(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// ZIP+4 → base 5-digit ZIP.
	s = zipPlus4Re.ReplaceAllString(s, "$1")

	// Compound directionals are expanded before punctuation is stripped so
	// "n.w." is still recognizable as one unit.
	s = compoundDirectionalRe.ReplaceAllStringFunc(s, func(m string) string {
		return directionalWords[strings.ReplaceAll(m, ".", "")]
	})

	s = strings.ReplaceAll(s, "&", " and ")
	s = punctuationRe.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	for i, tok := range tokens {
		tokens[i] = normalizeToken(tok, i, tokens)
	}
	return strings.Join(tokens, " ")
}

func normalizeToken(tok string, i int, tokens []string) string {
	// State abbreviations expand only near the end of the token sequence to
	// avoid colliding with 2-letter words elsewhere ("in", "or", "ne"...).
	if i >= len(tokens)-3 {
		if full, ok := stateWords[tok]; ok {
			return full
		}
	}

	// "st" is "saint" before a recognized given name, "street" otherwise.
	if tok == "st" {
		if i+1 < len(tokens) {
			if _, ok := saintNames[tokens[i+1]]; ok {
				return "saint"
			}
		}
		return "street"
	}

	if full, ok := directionalWords[tok]; ok {
		return full
	}
	if full, ok := streetTypeWords[tok]; ok {
		return full
	}
	if full, ok := unitTypeWords[tok]; ok {
		return full
	}
	if full, ok := ordinalWords[tok]; ok {
		return full
	}
	return tok
}

var (
	zipPlus4Re            = regexp.MustCompile(`\b(\d{5})-\d{4}\b`)
	compoundDirectionalRe = regexp.MustCompile(`\b[ns]\.[ew]\b\.?`)
	punctuationRe         = regexp.MustCompile(`[.,#'/\-]+`)
)

var directionalWords = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west",
	"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
}

var streetTypeWords = map[string]string{
	"ave": "avenue", "av": "avenue", "blvd": "boulevard", "cir": "circle",
	"ct": "court", "dr": "drive", "expy": "expressway", "hwy": "highway",
	"ln": "lane", "pkwy": "parkway", "pl": "place", "rd": "road",
	"sq": "square", "ter": "terrace", "trl": "trail",
}

var unitTypeWords = map[string]string{
	"apt": "apartment", "bldg": "building", "dept": "department",
	"fl": "floor", "rm": "room", "ste": "suite",
}

var ordinalWords = map[string]string{
	"1st": "first", "2nd": "second", "3rd": "third", "4th": "fourth",
	"5th": "fifth", "6th": "sixth", "7th": "seventh", "8th": "eighth",
	"9th": "ninth", "10th": "tenth", "11th": "eleventh", "12th": "twelfth",
}

// saintNames lists given names that, after the token "st", mean "saint"
// rather than "street" (St Louis, St Paul, ...).
var saintNames = map[string]struct{}{
	"agnes": {}, "albans": {}, "augustine": {}, "charles": {}, "clair": {},
	"cloud": {}, "croix": {}, "francis": {}, "george": {}, "helena": {},
	"james": {}, "johns": {}, "joseph": {}, "louis": {}, "lucie": {},
	"marys": {}, "paul": {}, "peters": {}, "petersburg": {},
}

var stateWords = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut",
	"de": "delaware", "dc": "district of columbia", "fl": "florida",
	"ga": "georgia", "hi": "hawaii", "id": "idaho", "il": "illinois",
	"in": "indiana", "ia": "iowa", "ks": "kansas", "ky": "kentucky",
	"la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota",
	"ms": "mississippi", "mo": "missouri", "mt": "montana",
	"nv": "nevada", "nh": "new hampshire", "nj": "new jersey",
	"nm": "new mexico", "ny": "new york", "nc": "north carolina",
	"nd": "north dakota", "oh": "ohio", "ok": "oklahoma", "or": "oregon",
	"pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington",
	"wv": "west virginia", "wi": "wisconsin", "wy": "wyoming",
	"ne": "nebraska",
}
