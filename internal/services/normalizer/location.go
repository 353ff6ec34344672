package normalizer

import (
	"strings"

	"github.com/ternarybob/hunt/internal/models"
)

// gazetteer is the curated city/country vocabulary. Keys are lowered token
// forms; values are the normalized display strings.
var gazetteer = map[string]string{
	"london":        "London",
	"manchester":    "Manchester",
	"dublin":        "Dublin",
	"paris":         "Paris",
	"berlin":        "Berlin",
	"munich":        "Munich",
	"amsterdam":     "Amsterdam",
	"stockholm":     "Stockholm",
	"copenhagen":    "Copenhagen",
	"zurich":        "Zurich",
	"madrid":        "Madrid",
	"barcelona":     "Barcelona",
	"lisbon":        "Lisbon",
	"new york":      "New York",
	"nyc":           "New York",
	"san francisco": "San Francisco",
	"sf":            "San Francisco",
	"seattle":       "Seattle",
	"austin":        "Austin",
	"boston":        "Boston",
	"chicago":       "Chicago",
	"denver":        "Denver",
	"los angeles":   "Los Angeles",
	"toronto":       "Toronto",
	"vancouver":     "Vancouver",
	"sydney":        "Sydney",
	"melbourne":     "Melbourne",
	"brisbane":      "Brisbane",
	"auckland":      "Auckland",
	"singapore":     "Singapore",
	"tokyo":         "Tokyo",
	"bangalore":     "Bangalore",
	"bengaluru":     "Bangalore",
	"tel aviv":      "Tel Aviv",
	"sao paulo":     "São Paulo",
	"mexico city":   "Mexico City",
	"uk":            "United Kingdom",
	"united kingdom": "United Kingdom",
	"usa":            "United States",
	"united states":  "United States",
	"us":             "United States",
	"germany":        "Germany",
	"france":         "France",
	"spain":          "Spain",
	"portugal":       "Portugal",
	"netherlands":    "Netherlands",
	"ireland":        "Ireland",
	"canada":         "Canada",
	"australia":      "Australia",
	"india":          "India",
	"japan":          "Japan",
	"brazil":         "Brazil",
	"poland":         "Poland",
	"romania":        "Romania",
}

// locationSeparators split multi-location strings
var locationSeparators = []string{";", "/", "|", ",", "·", "•", " or ", " and "}

// NormalizeLocations tokenizes a raw location string and filters tokens
// through the gazetteer. Tokens that do not normalize are discarded; the
// result is de-duplicated in first-seen order.
func NormalizeLocations(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	tokens := []string{raw}
	for _, sep := range locationSeparators {
		var next []string
		for _, token := range tokens {
			next = append(next, strings.Split(token, sep)...)
		}
		tokens = next
	}

	seen := map[string]bool{}
	var locations []string
	for _, token := range tokens {
		key := strings.TrimSpace(lower(token))
		key = strings.Trim(key, "().-")
		key = strings.TrimSpace(key)
		// "remote" qualifiers are location-type signals, not places
		key = strings.TrimPrefix(key, "remote ")
		normalized, ok := gazetteer[key]
		if !ok {
			continue
		}
		if !seen[normalized] {
			seen[normalized] = true
			locations = append(locations, normalized)
		}
	}
	return locations
}

// ClassifyLocationType maps raw location and description text to a location
// type: remote keywords first, then hybrid, then an explicit place means
// onsite, otherwise absent.
func ClassifyLocationType(locationRaw, descriptionRaw string) models.LocationType {
	location := lower(locationRaw)
	description := lower(descriptionRaw)

	for _, keyword := range []string{"remote", "anywhere", "work from home", "wfh", "distributed"} {
		if strings.Contains(location, keyword) {
			return models.LocationRemote
		}
	}
	if strings.Contains(location, "hybrid") {
		return models.LocationHybrid
	}
	// Description-level signals only decide when the location field is silent
	if location == "" {
		if strings.Contains(description, "fully remote") || strings.Contains(description, "remote-first") {
			return models.LocationRemote
		}
		if strings.Contains(description, "hybrid") {
			return models.LocationHybrid
		}
		return models.LocationAbsent
	}
	if len(NormalizeLocations(locationRaw)) > 0 {
		return models.LocationOnsite
	}
	return models.LocationAbsent
}
