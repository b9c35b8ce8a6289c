// Package precinct canonicalizes county Board of Elections precinct codes.
//
// Each county formats its election district codes differently. Both the
// voter file side and the Census geography side build codes through
// CanonicalCode so that the two can be joined on the result.
package precinct

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/EmpoweredVote/precinct-data/internal/fips"
)

// NotImplemented is returned for counties that have no rule yet.
const NotImplemented = "Not yet implemented"

// Rule identifies a county code format.
type Rule int

const (
	Unimplemented Rule = iota
	NYC
	Nassau
	Suffolk
	Albany
	Westchester
)

func (r Rule) String() string {
	switch r {
	case NYC:
		return "nyc"
	case Nassau:
		return "nassau"
	case Suffolk:
		return "suffolk"
	case Albany:
		return "albany"
	case Westchester:
		return "westchester"
	default:
		return "unimplemented"
	}
}

var rules = map[string]Rule{
	"Bronx":       NYC,
	"Kings":       NYC,
	"New York":    NYC,
	"Queens":      NYC,
	"Richmond":    NYC,
	"Nassau":      Nassau,
	"Suffolk":     Suffolk,
	"Albany":      Albany,
	"Westchester": Westchester,
}

func init() {
	for name := range rules {
		if c, ok := fips.Canonical(name); !ok || c != name {
			panic(fmt.Sprintf("precinct: rule for unknown county %q", name))
		}
	}
}

// RuleFor returns the rule for county, or Unimplemented.
func RuleFor(county string) Rule {
	name, ok := fips.Canonical(county)
	if !ok {
		return Unimplemented
	}
	return rules[name]
}

// Unit is the raw identity of an election district.
type Unit struct {
	Town string
	Ward string
	AD   int
	ED   int
}

// Nassau codes its towns and cities with two letters.
var nassauTowns = map[string]string{
	"GLEN COVE":       "GC",
	"HEMPSTEAD":       "HE",
	"LONG BEACH":      "LB",
	"NORTH HEMPSTEAD": "NH",
	"OYSTER BAY":      "OB",
}

// CanonicalCode returns the precinct code for u in county. Counties without
// a rule return NotImplemented. The result depends only on the arguments.
func CanonicalCode(county string, u Unit) string {
	switch RuleFor(county) {
	case NYC:
		// e.g. "001/67"
		return fmt.Sprintf("%03d/%02d", u.ED, u.AD)
	case Nassau:
		// e.g. "OB  09  016"
		return fmt.Sprintf("%s  %02d  %03d", nassauTown(u.Town), u.AD, u.ED)
	case Suffolk:
		// e.g. "Babylon #:  01"
		return fmt.Sprintf("%s #: %3s", titleCase(u.Town), fmt.Sprintf("%02d", u.ED))
	case Albany:
		// e.g. "ALBANY W1 ED9"
		return fmt.Sprintf("%s W%s ED%d", strings.ToUpper(TownName(u.Town)), ward(u.Ward), u.ED)
	case Westchester:
		// e.g. "Yonkers 012"
		return fmt.Sprintf("%s %03d", titleCase(u.Town), u.ED)
	default:
		return NotImplemented
	}
}

// Implemented reports whether code came from a county rule.
func Implemented(code string) bool {
	return code != "" && code != NotImplemented
}

// TownName strips the Census legal description from a county subdivision
// name, e.g. "Babylon town" becomes "Babylon".
func TownName(name string) string {
	n := strings.TrimSpace(name)
	for _, suffix := range []string{" town", " city", " village", " CDP", " reservation"} {
		if len(n) > len(suffix) && strings.EqualFold(n[len(n)-len(suffix):], suffix) {
			return strings.TrimSpace(n[:len(n)-len(suffix)])
		}
	}
	return n
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(TownName(s)))
}

func nassauTown(town string) string {
	t := strings.ToUpper(TownName(town))
	if code, ok := nassauTowns[t]; ok {
		return code
	}
	return t
}

func ward(w string) string {
	w = strings.TrimSpace(w)
	if n, err := strconv.Atoi(w); err == nil {
		return strconv.Itoa(n)
	}
	return w
}
