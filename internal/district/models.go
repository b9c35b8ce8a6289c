package district

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

const TagElectionDistrict keystore.Tag = "ed"

// ElectionDistrict is one county precinct aggregated from the voter file.
type ElectionDistrict struct {
	County   string `json:"county"`
	ED       int    `json:"ed"`
	LD       int    `json:"ld"`
	CD       int    `json:"cd"`
	SD       int    `json:"sd"`
	AD       int    `json:"ad"`
	TownCity string `json:"towncity"`
	Ward     string `json:"ward"`
	Code     string `json:"code"`

	// Registration counts registrants by enrollment code.
	Registration map[string]int `json:"registration"`
	// Participation counts registrants by election they voted in.
	Participation map[string]int `json:"participation"`
}

// Chamber selects which legislative district number a query keys on.
type Chamber string

const (
	Assembly Chamber = "assembly"
	Senate   Chamber = "senate"
	Congress Chamber = "congress"
)

// ParseChamber accepts the short and long names of a district type, e.g.
// "ad", "assembly" or "State Assembly".
func ParseChamber(s string) (Chamber, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ad", "assembly", "state assembly":
		return Assembly, nil
	case "sd", "senate", "state senate":
		return Senate, nil
	case "cd", "congress", "congressional":
		return Congress, nil
	default:
		return "", fmt.Errorf("unknown district type %q", s)
	}
}

var (
	ByCountyCode = keystore.NewView("ed_by_county_edcode", TagElectionDistrict, func(e ElectionDistrict) []keystore.Key {
		return []keystore.Key{keystore.K(e.County, e.Code)}
	})
	ByCounty = keystore.NewView("ed_by_county", TagElectionDistrict, func(e ElectionDistrict) []keystore.Key {
		return []keystore.Key{keystore.K(e.County)}
	})
	ByAD = keystore.NewView("ed_by_ad", TagElectionDistrict, func(e ElectionDistrict) []keystore.Key {
		return []keystore.Key{keystore.K(e.AD)}
	})
	BySD = keystore.NewView("ed_by_sd", TagElectionDistrict, func(e ElectionDistrict) []keystore.Key {
		return []keystore.Key{keystore.K(e.SD)}
	})
	ByCD = keystore.NewView("ed_by_cd", TagElectionDistrict, func(e ElectionDistrict) []keystore.Key {
		return []keystore.Key{keystore.K(e.CD)}
	})
)

func Views() []keystore.View {
	return []keystore.View{ByCountyCode, ByCounty, ByAD, BySD, ByCD}
}

func (c Chamber) view() keystore.View {
	switch c {
	case Senate:
		return BySD
	case Congress:
		return ByCD
	default:
		return ByAD
	}
}
