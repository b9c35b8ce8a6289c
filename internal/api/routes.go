// Package api serves summaries and stored records over HTTP. Every route is
// read-only.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
)

func SetupRoutes(p *pipeline.Pipeline) http.Handler {
	h := &Handler{p: p}
	r := chi.NewRouter()

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	r.Get("/summary/county/{county}", h.CountySummary)
	r.Get("/summary/district/{type}/{number}", h.DistrictSummary)
	r.Get("/geounits/{county}", h.GeoUnits)
	r.Get("/results/{county}/{precinct}", h.Results)

	return r
}
