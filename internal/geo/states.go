// Package geo provides state name normalization, state centroid lookup and
// great-circle distance math for the migration pipeline.
package geo

import (
	"strings"
	"unicode"
)

// Other is the sentinel category for state labels that cannot be normalized
// to the canonical vocabulary. Downstream aggregation drops Other rows.
const Other = "Other"

// NationalCentroid is the fallback display coordinate when a state has no
// entry in the centroid table (geographic center of India).
var NationalCentroid = Coordinate{Lat: 20.5937, Lon: 78.9629}

// Coordinate is a decimal-degree lat/lon pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// stateAliases maps title-cased variants seen in source data to canonical
// state/UT names. Merged union territories collapse into their current
// combined entity.
var stateAliases = map[string]string{
	"Andaman & Nicobar Islands":                    "Andaman and Nicobar Islands",
	"Dadra & Nagar Haveli":                         "Dadra and Nagar Haveli and Daman and Diu",
	"Dadra and Nagar Haveli":                       "Dadra and Nagar Haveli and Daman and Diu",
	"Daman & Diu":                                  "Dadra and Nagar Haveli and Daman and Diu",
	"Daman and Diu":                                "Dadra and Nagar Haveli and Daman and Diu",
	"The Dadra and Nagar Haveli and Daman and Diu": "Dadra and Nagar Haveli and Daman and Diu",
	"Jammu & Kashmir":                              "Jammu and Kashmir",
	"Tamilnadu":                                    "Tamil Nadu",
	"Odisa":                                        "Odisha",
	"Orissa":                                       "Odisha",
	"Chhatisgarh":                                  "Chhattisgarh",
	"West Bangal":                                  "West Bengal",
	"West Bengli":                                  "West Bengal",
	"Westbengal":                                   "West Bengal",
	"Uttaranchal":                                  "Uttarakhand",
	"Pondicherry":                                  "Puducherry",
}

// invalidStateTokens are non-state values observed in real exports: city
// names, colony names and numeric placeholders.
var invalidStateTokens = map[string]struct{}{
	"100000":              {},
	"Balanagar":           {},
	"Idpl Colony":         {},
	"Darbhanga":           {},
	"Jaipur":              {},
	"Nagpur":              {},
	"Puttenahalli":        {},
	"Madanapalle":         {},
	"Raja Annamalai Puram": {},
}

// NormalizeState maps an arbitrary free-text state label to one of the
// canonical state/UT names, or Other when the value is empty, numeric or a
// known non-state token. The function is idempotent: canonical names pass
// through unchanged.
func NormalizeState(state string) string {
	s := strings.Join(strings.Fields(state), " ")
	if s == "" {
		return Other
	}
	s = titleCase(s)

	if canonical, ok := stateAliases[s]; ok {
		s = canonical
	}
	if _, bad := invalidStateTokens[s]; bad || isDigits(s) {
		return Other
	}
	return s
}

// titleCase upper-cases the first letter of every space-separated word and
// lower-cases the rest, preserving the lowercase "and" used in canonical
// names only via the alias table.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		// Canonical names keep a lowercase "and" ("Jammu and Kashmir").
		if w == "and" || w == "And" {
			if i > 0 {
				words[i] = "and"
				continue
			}
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// StateCentroids holds the fixed display centroid per canonical state/UT.
var StateCentroids = map[string]Coordinate{
	"Andhra Pradesh":            {15.9129, 79.7400},
	"Arunachal Pradesh":         {28.2180, 94.7278},
	"Assam":                     {26.2006, 92.9376},
	"Bihar":                     {25.0961, 85.3131},
	"Chhattisgarh":              {21.2787, 81.8661},
	"Goa":                       {15.2993, 74.1240},
	"Gujarat":                   {22.2587, 71.1924},
	"Haryana":                   {29.0588, 76.0856},
	"Himachal Pradesh":          {31.1048, 77.1734},
	"Jharkhand":                 {23.6102, 85.2799},
	"Karnataka":                 {15.3173, 75.7139},
	"Kerala":                    {10.8505, 76.2711},
	"Madhya Pradesh":            {22.9734, 78.6569},
	"Maharashtra":               {19.7515, 75.7139},
	"Manipur":                   {24.6637, 93.9063},
	"Meghalaya":                 {25.4670, 91.3659},
	"Mizoram":                   {23.1645, 92.9376},
	"Nagaland":                  {26.1584, 94.5624},
	"Odisha":                    {20.9517, 85.0985},
	"Punjab":                    {31.1471, 75.3412},
	"Rajasthan":                 {27.0238, 74.2179},
	"Sikkim":                    {27.5330, 88.5122},
	"Tamil Nadu":                {11.1271, 78.6569},
	"Telangana":                 {18.1124, 79.0193},
	"Tripura":                   {23.9408, 91.9882},
	"Uttar Pradesh":             {26.8467, 80.9462},
	"Uttarakhand":               {30.0668, 79.0193},
	"West Bengal":               {22.9868, 87.8550},
	"Delhi":                     {28.6139, 77.2090},
	"Jammu and Kashmir":         {33.7782, 76.5762},
	"Ladakh":                    {34.1526, 77.5771},
	"Puducherry":                {11.9416, 79.8083},
	"Andaman and Nicobar Islands": {11.7401, 92.6586},
	"Chandigarh":                {30.7333, 76.7794},
	"Dadra and Nagar Haveli and Daman and Diu": {20.1809, 73.0169},
	"Lakshadweep":               {10.5667, 72.6417},
}

// StateCentroid returns the display centroid for a canonical state name,
// falling back to the national centroid for unknown states.
func StateCentroid(state string) Coordinate {
	if c, ok := StateCentroids[state]; ok {
		return c
	}
	return NationalCentroid
}
