package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/precinct-data/internal/district"
	"github.com/EmpoweredVote/precinct-data/internal/fips"
	"github.com/EmpoweredVote/precinct-data/internal/geounit"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
	"github.com/EmpoweredVote/precinct-data/internal/result"
	"github.com/EmpoweredVote/precinct-data/internal/summary"
)

type Handler struct {
	p *pipeline.Pipeline
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func addServerTiming(w http.ResponseWriter, name string, d time.Duration) {
	w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.1f", name, float64(d.Microseconds())/1000))
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) CountySummary(w http.ResponseWriter, r *http.Request) {
	county, ok := fips.Canonical(chi.URLParam(r, "county"))
	if !ok {
		http.Error(w, "Unknown county", http.StatusNotFound)
		return
	}
	h.serveSummary(w, r, summary.ForCounty(county), county)
}

func (h *Handler) DistrictSummary(w http.ResponseWriter, r *http.Request) {
	chamber, err := district.ParseChamber(chi.URLParam(r, "type"))
	if err != nil {
		http.Error(w, "Invalid district type", http.StatusBadRequest)
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n <= 0 {
		http.Error(w, "Invalid district number", http.StatusBadRequest)
		return
	}
	h.serveSummary(w, r, summary.ForDistrict(chamber, n), fmt.Sprintf("%s_%d", chamber, n))
}

func (h *Handler) serveSummary(w http.ResponseWriter, r *http.Request, sel summary.Selector, filename string) {
	format, err := summary.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, "Invalid format", http.StatusBadRequest)
		return
	}

	start := time.Now()
	report, err := h.p.Summary.Generate(r.Context(), sel)
	if err != nil {
		log.Printf("[api] summary %s: %v", sel, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	addServerTiming(w, "summary", time.Since(start))

	w.Header().Set("Content-Type", format.ContentType())
	if format != summary.FormatJSON {
		name := strings.ReplaceAll(strings.ToLower(filename), " ", "_")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_summary.%s"`, name, format))
	}
	if err := summary.Write(w, report, format); err != nil {
		log.Printf("[api] write summary %s: %v", sel, err)
	}
}

func (h *Handler) GeoUnits(w http.ResponseWriter, r *http.Request) {
	code, err := fips.CountyCode(chi.URLParam(r, "county"))
	if err != nil {
		http.Error(w, "Unknown county", http.StatusNotFound)
		return
	}
	docs, err := h.p.GeoUnits.ByCountyCode(r.Context(), code)
	if err != nil {
		log.Printf("[api] geounits %d: %v", code, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	out := make([]geounit.GeoUnit, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Value)
	}
	writeJSON(w, out)
}

// Results lists the stored results for one precinct. Precinct codes may
// contain "/" and "#", so clients path-escape them. An escaped "/" makes
// the router match on the raw path, leaving both params still escaped.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "county"))
	if err != nil {
		http.Error(w, "Invalid county", http.StatusBadRequest)
		return
	}
	county, ok := fips.Canonical(name)
	if !ok {
		http.Error(w, "Unknown county", http.StatusNotFound)
		return
	}
	code, err := url.PathUnescape(chi.URLParam(r, "precinct"))
	if err != nil {
		http.Error(w, "Invalid precinct", http.StatusBadRequest)
		return
	}
	docs, err := h.p.Results.ByCountyPrecinct(r.Context(), county, code)
	if err != nil {
		log.Printf("[api] results %s %q: %v", county, code, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	out := make([]result.ElectionResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Value)
	}
	writeJSON(w, out)
}
