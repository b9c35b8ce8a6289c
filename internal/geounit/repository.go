// Package geounit owns Census Voting Tabulation Districts, their county
// subdivisions and their mapping to Board of Elections precinct codes.
package geounit

import (
	"context"
	"fmt"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

const component = "geounit"

type Repository struct {
	store *keystore.Store
}

func NewRepository(s *keystore.Store) *Repository {
	return &Repository{store: s}
}

// ByCountyCode returns every GeoUnit in a Census county, in load order.
func (r *Repository) ByCountyCode(ctx context.Context, county int) ([]keystore.Doc[GeoUnit], error) {
	return keystore.Find[GeoUnit](ctx, r.store, ByCounty, keystore.K(county))
}

// ByLogRecNo returns the GeoUnits with the given record sequence number.
func (r *Repository) ByLogRecNo(ctx context.Context, logrecno int) ([]keystore.Doc[GeoUnit], error) {
	return keystore.Find[GeoUnit](ctx, r.store, ByLogRecNo, keystore.K(logrecno))
}

// Lookup returns the GeoUnits for a (county, cousub, VTD) triple. More than
// one match is a *LookupAmbiguityError alongside the matches.
func (r *Repository) Lookup(ctx context.Context, county, cousub, vtd int) ([]keystore.Doc[GeoUnit], error) {
	key := keystore.K(county, cousub, vtd)
	docs, err := keystore.Find[GeoUnit](ctx, r.store, ByCountyCousubVTD, key)
	if err != nil {
		return nil, err
	}
	if len(docs) > 1 {
		return docs, &LookupAmbiguityError{View: ByCountyCousubVTD.Name(), Key: key, Matches: len(docs)}
	}
	return docs, nil
}

// CousubName returns the Census name of a county subdivision, or "" when it
// was never loaded.
func (r *Repository) CousubName(ctx context.Context, county, cousub int) (string, error) {
	key := keystore.K(county, cousub)
	docs, err := keystore.Find[Cousub](ctx, r.store, CousubByCountyCousub, key)
	if err != nil {
		return "", err
	}
	switch len(docs) {
	case 0:
		return "", nil
	case 1:
		return docs[0].Value.Name, nil
	default:
		return "", &LookupAmbiguityError{View: CousubByCountyCousub.Name(), Key: key, Matches: len(docs)}
	}
}

// All returns every GeoUnit in the store.
func (r *Repository) All(ctx context.Context) ([]keystore.Doc[GeoUnit], error) {
	docs, err := keystore.FindByTag[GeoUnit](ctx, r.store, TagGeoUnit)
	if err != nil {
		return nil, fmt.Errorf("list geounits: %w", err)
	}
	return docs, nil
}
