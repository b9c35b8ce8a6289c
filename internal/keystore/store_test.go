package keystore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
	"github.com/EmpoweredVote/precinct-data/internal/testutil"
)

type precinct struct {
	County string   `json:"county"`
	Code   string   `json:"code"`
	Wards  []string `json:"wards"`
}

const tagPrecinct keystore.Tag = "precinct"

var (
	byCounty = keystore.NewView("precinct_by_county", tagPrecinct, func(p precinct) []keystore.Key {
		return []keystore.Key{keystore.K(p.County)}
	})
	byCountyCode = keystore.NewView("precinct_by_county_code", tagPrecinct, func(p precinct) []keystore.Key {
		return []keystore.Key{keystore.K(p.County, p.Code)}
	})
	byWard = keystore.NewView("precinct_by_ward", tagPrecinct, func(p precinct) []keystore.Key {
		keys := make([]keystore.Key, 0, len(p.Wards))
		for _, w := range p.Wards {
			keys = append(keys, keystore.K(w))
		}
		return keys
	})
)

func newStore(t *testing.T) *keystore.Store {
	t.Helper()
	return testutil.NewStore(t, byCounty, byCountyCode, byWard)
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.Put(ctx, tagPrecinct, precinct{County: "Albany", Code: "ALBANY W1 ED1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := keystore.Load[precinct](ctx, s, id)
	require.NoError(t, err)
	assert.Equal(t, "ALBANY W1 ED1", got.Code)
}

func TestGetMissing(t *testing.T) {
	var out precinct
	err := newStore(t).Get(context.Background(), "nope", &out)
	require.ErrorIs(t, err, keystore.ErrNotFound)
}

func TestQueryOrderAndEmpty(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var ids []string
	for _, code := range []string{"001/65", "002/65", "003/65"} {
		id, err := s.Put(ctx, tagPrecinct, precinct{County: "New York", Code: code})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := s.Put(ctx, tagPrecinct, precinct{County: "Kings", Code: "001/41"})
	require.NoError(t, err)

	got, err := s.Query(ctx, byCounty, keystore.K("New York"))
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	got, err = s.Query(ctx, byCountyCode, keystore.K("New York", "002/65"))
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, got)

	none, err := s.Query(ctx, byCountyCode, keystore.K("New York", "999/99"))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestQueryUnknownView(t *testing.T) {
	stray := keystore.NewView("stray", tagPrecinct, func(precinct) []keystore.Key { return nil })
	_, err := newStore(t).Query(context.Background(), stray, keystore.K("x"))
	require.ErrorIs(t, err, keystore.ErrUnknownView)
}

func TestNewRejectsDuplicateView(t *testing.T) {
	_, err := keystore.New(testutil.NewDB(t), byCounty, byCounty)
	require.ErrorIs(t, err, keystore.ErrDuplicateView)
}

func TestMultiKeyView(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.Put(ctx, tagPrecinct, precinct{County: "Albany", Wards: []string{"W1", "W2"}})
	require.NoError(t, err)

	for _, w := range []string{"W1", "W2"} {
		got, err := s.Query(ctx, byWard, keystore.K(w))
		require.NoError(t, err)
		assert.Equal(t, []string{id}, got)
	}
}

func TestUpdateReindexes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.Put(ctx, tagPrecinct, precinct{County: "Albany", Code: "A"})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, id, precinct{County: "Albany", Code: "B"}))

	old, err := s.Query(ctx, byCountyCode, keystore.K("Albany", "A"))
	require.NoError(t, err)
	assert.Empty(t, old)

	docs, err := keystore.Find[precinct](ctx, s, byCountyCode, keystore.K("Albany", "B"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)

	err = s.Update(ctx, "missing", precinct{})
	require.ErrorIs(t, err, keystore.ErrNotFound)
}

func TestDeleteByTag(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.Put(ctx, tagPrecinct, precinct{County: "Albany"})
		require.NoError(t, err)
	}
	_, err := s.Put(ctx, "other", precinct{County: "Albany"})
	require.NoError(t, err)

	n, err := s.DeleteByTag(ctx, tagPrecinct)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	ids, err := s.Query(ctx, byCounty, keystore.K("Albany"))
	require.NoError(t, err)
	assert.Empty(t, ids)

	rest, err := s.IDsByTag(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestReindexAddsNewView(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)

	before, err := keystore.New(db, byCounty)
	require.NoError(t, err)
	require.NoError(t, before.AutoMigrate())
	id, err := before.Put(ctx, tagPrecinct, precinct{County: "Albany", Code: "A"})
	require.NoError(t, err)

	after, err := keystore.New(db, byCounty, byCountyCode)
	require.NoError(t, err)
	empty, err := after.Query(ctx, byCountyCode, keystore.K("Albany", "A"))
	require.NoError(t, err)
	assert.Empty(t, empty)

	written, err := after.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	got, err := after.Query(ctx, byCountyCode, keystore.K("Albany", "A"))
	require.NoError(t, err)
	assert.Equal(t, []string{id}, got)
}

func TestFindByTag(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, c := range []string{"Albany", "Bronx"} {
		_, err := s.Put(ctx, tagPrecinct, precinct{County: c})
		require.NoError(t, err)
	}
	docs, err := keystore.FindByTag[precinct](ctx, s, tagPrecinct)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Albany", docs[0].Value.County)
	assert.Equal(t, "Bronx", docs[1].Value.County)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	keep, err := s.Put(ctx, tagPrecinct, precinct{County: "Kings", Code: "001/41"})
	require.NoError(t, err)
	gone, err := s.Put(ctx, tagPrecinct, precinct{County: "Kings", Code: "002/41"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, gone))

	ids, err := s.Query(ctx, byCounty, keystore.K("Kings"))
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, ids)

	var out precinct
	require.ErrorIs(t, s.Get(ctx, gone, &out), keystore.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, gone), keystore.ErrNotFound)
}
