package geounit

import "github.com/EmpoweredVote/precinct-data/internal/keystore"

var (
	ByLogRecNo = keystore.NewView("vtd_by_census_logrecno", TagGeoUnit, func(g GeoUnit) []keystore.Key {
		return []keystore.Key{keystore.K(g.LogRecNo)}
	})
	ByCounty = keystore.NewView("vtd_by_census_county", TagGeoUnit, func(g GeoUnit) []keystore.Key {
		return []keystore.Key{keystore.K(g.County)}
	})
	ByCountyCousubVTD = keystore.NewView("vtd_by_census_county_cousub_vtd", TagGeoUnit, func(g GeoUnit) []keystore.Key {
		return []keystore.Key{keystore.K(g.County, g.Cousub, g.VTD)}
	})
	CousubByLogRecNo = keystore.NewView("cousub_by_census_logrecno", TagCousub, func(c Cousub) []keystore.Key {
		return []keystore.Key{keystore.K(c.LogRecNo)}
	})
	CousubByCountyCousub = keystore.NewView("cousub_by_county_cousub", TagCousub, func(c Cousub) []keystore.Key {
		return []keystore.Key{keystore.K(c.County, c.Cousub)}
	})
)

// Views returns every view the repository queries.
func Views() []keystore.View {
	return []keystore.View{ByLogRecNo, ByCounty, ByCountyCousubVTD, CousubByLogRecNo, CousubByCountyCousub}
}
