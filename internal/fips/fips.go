// Package fips maps New York county names to Census FIPS county codes and
// to the county codes used in the statewide voter file.
package fips

import (
	"fmt"
	"strings"
)

// StateNY is the FIPS state code for New York.
const StateNY = 36

// Counties lists the 62 New York counties in alphabetical order. Both the
// Census county FIPS code (2i+1) and the voter file county code (i+1) follow
// this order.
var Counties = []string{
	"Albany", "Allegany", "Bronx", "Broome", "Cattaraugus", "Cayuga",
	"Chautauqua", "Chemung", "Chenango", "Clinton", "Columbia", "Cortland",
	"Delaware", "Dutchess", "Erie", "Essex", "Franklin", "Fulton",
	"Genesee", "Greene", "Hamilton", "Herkimer", "Jefferson", "Kings",
	"Lewis", "Livingston", "Madison", "Monroe", "Montgomery", "Nassau",
	"New York", "Niagara", "Oneida", "Onondaga", "Ontario", "Orange",
	"Orleans", "Oswego", "Otsego", "Putnam", "Queens", "Rensselaer",
	"Richmond", "Rockland", "St. Lawrence", "Saratoga", "Schenectady", "Schoharie",
	"Schuyler", "Seneca", "Steuben", "Suffolk", "Sullivan", "Tioga",
	"Tompkins", "Ulster", "Warren", "Washington", "Wayne", "Westchester",
	"Wyoming", "Yates",
}

var byName = func() map[string]int {
	m := make(map[string]int, len(Counties))
	for i, c := range Counties {
		m[normalize(c)] = i
	}
	return m
}()

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, " county")
	n = strings.ReplaceAll(n, ".", "")
	if strings.HasPrefix(n, "saint ") {
		n = "st " + strings.TrimPrefix(n, "saint ")
	}
	return n
}

// Canonical returns the canonical spelling of a county name, accepting any
// case, a trailing " County" and St/St./Saint variants.
func Canonical(name string) (string, bool) {
	i, ok := byName[normalize(name)]
	if !ok {
		return "", false
	}
	return Counties[i], true
}

// CountyCode returns the Census FIPS county code for name.
func CountyCode(name string) (int, error) {
	i, ok := byName[normalize(name)]
	if !ok {
		return 0, fmt.Errorf("unknown county %q", name)
	}
	return 2*i + 1, nil
}

// CountyName returns the county for a Census FIPS county code.
func CountyName(code int) (string, error) {
	if code < 1 || code%2 == 0 || code > 2*len(Counties)-1 {
		return "", fmt.Errorf("unknown county FIPS code %d", code)
	}
	return Counties[(code-1)/2], nil
}

// VoterFileCounty returns the county for a voter file COUNTYCODE.
func VoterFileCounty(code int) (string, error) {
	if code < 1 || code > len(Counties) {
		return "", fmt.Errorf("unknown voter file county code %d", code)
	}
	return Counties[code-1], nil
}
