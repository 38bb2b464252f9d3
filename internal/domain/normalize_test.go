package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "full address with compound directional and state",
			input: "1600 Pennsylvania Ave NW, Washington, DC 20500",
			want:  "1600 pennsylvania avenue northwest washington district of columbia 20500",
		},
		{
			name:  "zip plus four collapses",
			input: "100 Main St, Springfield, IL 62704-1234",
			want:  "100 main street springfield illinois 62704",
		},
		{
			name:  "dotted compound directional",
			input: "55 N.W. 3rd Ave",
			want:  "55 northwest third avenue",
		},
		{
			name:  "ampersand",
			input: "5th & Main",
			want:  "fifth and main",
		},
		{
			name:  "saint before given name",
			input: "10 St Paul Blvd",
			want:  "10 saint paul boulevard",
		},
		{
			name:  "street when no saint name follows",
			input: "10 St Andrews Way",
			want:  "10 street andrews way",
		},
		{
			name:  "unit types",
			input: "200 Oak Dr Apt 4, Austin, TX",
			want:  "200 oak drive apartment 4 austin texas",
		},
		{
			name:  "two letter state words untouched mid address",
			input: "12 In Or Ne Rd, Omaha, NE 68102",
			want:  "12 in or northeast road omaha nebraska 68102",
		},
		{
			name:  "punctuation stripped",
			input: "1-2-3 O'Malley Rd.",
			want:  "1 2 3 o malley road",
		},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAddress(tt.input))
		})
	}
}

func TestNormalizeAddressIdempotent(t *testing.T) {
	inputs := []string{
		"1600 Pennsylvania Ave NW, Washington, DC 20500",
		"100 Main St, Springfield, IL 62704-1234",
		"10 St Paul Blvd",
	}
	for _, in := range inputs {
		once := NormalizeAddress(in)
		assert.Equal(t, once, NormalizeAddress(once), "input %q", in)
	}
}

func TestNormalizeAddressEquivalentFormsMatch(t *testing.T) {
	a := NormalizeAddress("1600 Pennsylvania Avenue Northwest, Washington, District of Columbia 20500")
	b := NormalizeAddress("1600 Pennsylvania Ave NW, Washington, DC 20500")
	assert.Equal(t, a, b)
}
