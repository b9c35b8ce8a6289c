// Package result owns precinct-level election results in the
// OpenElections CSV format.
package result

import (
	"context"
	"time"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

type Repository struct {
	store *keystore.Store
}

func NewRepository(s *keystore.Store) *Repository {
	return &Repository{store: s}
}

// ByCountyPrecinct returns every result recorded for a precinct. A precinct
// with no results is an empty slice.
func (r *Repository) ByCountyPrecinct(ctx context.Context, county, precinct string) ([]keystore.Doc[ElectionResult], error) {
	return keystore.Find[ElectionResult](ctx, r.store, ByCountyPrecinct, keystore.K(county, precinct))
}

// ByContest returns every precinct result of one contest.
func (r *Repository) ByContest(ctx context.Context, date time.Time, office, district string) ([]keystore.Doc[ElectionResult], error) {
	return keystore.Find[ElectionResult](ctx, r.store, ByDateOfficeDistrict, keystore.K(date.Format(dateLayout), office, district))
}
