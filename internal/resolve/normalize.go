// Package resolve turns raw company and location strings into canonical
// Company, Location, and MetroArea identities.
package resolve

import (
	"regexp"
	"strings"
)

// legalSuffixes lists common legal entity suffixes to strip during name
// normalization.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PC", " P.C.", " P.C",
	" PA", " P.A.", " P.A",
	" CO", " CO.",
	" PLC", " P.L.C.",
	" NA", " N.A.", " N.A",
	" DBA", " D/B/A",
	" PLLC",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeCompany standardizes an employer name for matching by:
//  1. Trimming whitespace
//  2. Converting to uppercase
//  3. Removing common legal suffixes (LLC, Inc, Corp, etc.)
//  4. Stripping punctuation (commas, periods, dashes, ampersands)
//  5. Collapsing multiple spaces into single spaces
func NormalizeCompany(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	// Strip legal suffixes (check longest first is fine since they're all distinct).
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	// Remove common punctuation.
	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	return name
}

// stateNames maps spelled-out state names to USPS codes. Payroll exports
// in particular tend to spell states out.
var stateNames = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR",
	"CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE",
	"FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID",
	"ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS",
	"KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS",
	"MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY",
	"NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK",
	"OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT",
	"VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV",
	"WISCONSIN": "WI", "WYOMING": "WY", "DISTRICT OF COLUMBIA": "DC",
}

var stateCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateNames))
	for _, code := range stateNames {
		m[code] = true
	}
	return m
}()

// NormalizeLocation splits a raw location string into a title-cased city
// and a two-letter state code. Accepts "San Francisco, CA",
// "AUSTIN, TEXAS", "Seattle WA". Returns empty strings when the input
// cannot be split into a recognizable city/state pair.
func NormalizeLocation(raw string) (city, state string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	var cityPart, statePart string
	if i := strings.LastIndex(raw, ","); i >= 0 {
		cityPart = raw[:i]
		statePart = raw[i+1:]
	} else {
		// No comma: try the last token as a state code.
		fields := strings.Fields(raw)
		if len(fields) < 2 {
			return "", ""
		}
		cityPart = strings.Join(fields[:len(fields)-1], " ")
		statePart = fields[len(fields)-1]
	}

	statePart = strings.ToUpper(strings.TrimSpace(statePart))
	// Drop trailing zip codes like "CA 94105".
	if fields := strings.Fields(statePart); len(fields) > 1 {
		statePart = fields[0]
	}

	switch {
	case stateCodes[statePart]:
		state = statePart
	case stateNames[statePart] != "":
		state = stateNames[statePart]
	default:
		return "", ""
	}

	city = titleCase(strings.TrimSpace(cityPart))
	if city == "" {
		return "", ""
	}
	return city, state
}

// titleCase uppercases the first rune of each word and lowercases the rest.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
