package result

import (
	"fmt"
	"strings"
	"time"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

const TagElectionResult keystore.Tag = "er"

const dateLayout = "2006-01-02"

// ElectionResult is one candidate's tally in one precinct contest.
type ElectionResult struct {
	Date      time.Time `json:"date"`
	State     string    `json:"state"`
	Election  string    `json:"election"`
	County    string    `json:"county"`
	Precinct  string    `json:"precinct"`
	Office    string    `json:"office"`
	District  string    `json:"district"`
	Party     string    `json:"party"`
	Candidate string    `json:"candidate"`

	Votes                    int `json:"votes"`
	PublicCounterVotes       int `json:"public_counter_votes"`
	EmergencyVotes           int `json:"emergency_votes"`
	AbsenteeMilitaryVotes    int `json:"absentee_military_votes"`
	FederalVotes             int `json:"federal_votes"`
	AffidavitVotes           int `json:"affidavit_votes"`
	ManuallyCountedEmergency int `json:"manually_counted_emergency"`
	SpecialPresidential      int `json:"special_presidential"`
}

// DateKey is the election date as YYYY-MM-DD.
func (e ElectionResult) DateKey() string { return e.Date.Format(dateLayout) }

// Key is the composite identity of a result row.
func (e ElectionResult) Key() keystore.Key {
	return keystore.K(e.DateKey(), e.State, e.Election, e.County, e.Precinct,
		e.Office, e.District, e.Party, e.Candidate)
}

// VoteKey names the summary column a result contributes to.
func (e ElectionResult) VoteKey() string {
	return strings.Join([]string{e.DateKey(), e.Office, e.District, e.Candidate}, "|")
}

// Primary reports whether the result belongs to a primary election.
func (e ElectionResult) Primary() bool {
	return strings.Contains(strings.ToLower(e.Election), "primary")
}

// Subtotal is the sum of the named sub-tallies.
func (e ElectionResult) Subtotal() int {
	return e.PublicCounterVotes + e.EmergencyVotes + e.AbsenteeMilitaryVotes +
		e.FederalVotes + e.AffidavitVotes + e.ManuallyCountedEmergency + e.SpecialPresidential
}

// SubtallyMismatch reports a general-election row whose sub-tallies are
// present but do not add up to Votes.
func (e ElectionResult) SubtallyMismatch() bool {
	if e.Primary() {
		return false
	}
	sub := e.Subtotal()
	return sub != 0 && sub != e.Votes
}

// ValidationError reports a result file whose rows disagree with the
// county in its name.
type ValidationError struct {
	File     string
	Row      int
	Expected string
	Got      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s row %d: county %q does not match file county %q", e.File, e.Row, e.Got, e.Expected)
}

var (
	ByCountyPrecinct = keystore.NewView("er_by_county_precinct", TagElectionResult, func(e ElectionResult) []keystore.Key {
		return []keystore.Key{keystore.K(e.County, e.Precinct)}
	})
	ByDateOfficeDistrict = keystore.NewView("er_by_date_office_district", TagElectionResult, func(e ElectionResult) []keystore.Key {
		return []keystore.Key{keystore.K(e.DateKey(), e.Office, e.District)}
	})
	ByIdentity = keystore.NewView("er_by_date_state_election_county_precinct_office_district_party_candidate", TagElectionResult, func(e ElectionResult) []keystore.Key {
		return []keystore.Key{e.Key()}
	})
)

func Views() []keystore.View {
	return []keystore.View{ByCountyPrecinct, ByDateOfficeDistrict, ByIdentity}
}
