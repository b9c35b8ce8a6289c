// Package district owns Election Districts aggregated from the statewide
// voter file.
package district

import (
	"context"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

const component = "district"

type Repository struct {
	store *keystore.Store
}

func NewRepository(s *keystore.Store) *Repository {
	return &Repository{store: s}
}

// Find returns the districts stored for a county and precinct code.
func (r *Repository) Find(ctx context.Context, county, code string) ([]keystore.Doc[ElectionDistrict], error) {
	return keystore.Find[ElectionDistrict](ctx, r.store, ByCountyCode, keystore.K(county, code))
}

// ByCounty returns every district in county.
func (r *Repository) ByCounty(ctx context.Context, county string) ([]keystore.Doc[ElectionDistrict], error) {
	return keystore.Find[ElectionDistrict](ctx, r.store, ByCounty, keystore.K(county))
}

// ByDistrict returns every district inside legislative district n.
func (r *Repository) ByDistrict(ctx context.Context, c Chamber, n int) ([]keystore.Doc[ElectionDistrict], error) {
	return keystore.Find[ElectionDistrict](ctx, r.store, c.view(), keystore.K(n))
}

func (r *Repository) upsert(ctx context.Context, ed ElectionDistrict, overwrite bool, stats *batch.Stats) error {
	existing, err := r.Find(ctx, ed.County, ed.Code)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if _, err := r.store.Put(ctx, TagElectionDistrict, ed); err != nil {
			return err
		}
		stats.Inserted++
		return nil
	}
	if !overwrite {
		stats.Unchanged += len(existing)
		return nil
	}
	for _, doc := range existing {
		if err := r.store.Update(ctx, doc.ID, ed); err != nil {
			return err
		}
		stats.Updated++
	}
	return nil
}
