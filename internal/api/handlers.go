package api

import (
	"fmt"
	"net/http"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"skyradar/internal/airspace"
	"skyradar/internal/geo"
	"skyradar/internal/history"
	"skyradar/internal/metar"
)

func (s *Server) handleAircraftJSON(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		writeError(w, http.StatusServiceUnavailable, "aircraft feed not running")
		return
	}
	snapshot := s.poller.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"now":      time.Now().Unix(),
		"count":    len(snapshot),
		"aircraft": snapshot,
	})
}

func (s *Server) handleAirspace(w http.ResponseWriter, r *http.Request) {
	if s.airspace == nil {
		writeError(w, http.StatusServiceUnavailable, "airspace corpus not loaded")
		return
	}
	lat := queryFloat(r, "lat", 55.5)
	lon := queryFloat(r, "lon", -4.6)
	rng := queryFloat(r, "range", 50)
	writeJSON(w, http.StatusOK, s.airspace.ExportView(lat, lon, rng))
}

func (s *Server) handleAirspaceIdentify(w http.ResponseWriter, r *http.Request) {
	if s.airspace == nil {
		writeError(w, http.StatusServiceUnavailable, "airspace corpus not loaded")
		return
	}
	latStr, lonStr := r.URL.Query().Get("lat"), r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	lat := queryFloat(r, "lat", 0)
	lon := queryFloat(r, "lon", 0)

	zones := s.airspace.Classify(lat, lon)
	names := make([]string, 0, len(zones))
	types := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
		types = append(types, string(z.Type))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lat":         lat,
		"lon":         lon,
		"zones":       names,
		"types":       types,
		"description": airspace.Describe(zones),
	})
}

func (s *Server) handleNotams(w http.ResponseWriter, r *http.Request) {
	if s.notams == nil {
		writeError(w, http.StatusServiceUnavailable, "notam ingester not running")
		return
	}
	lat := queryFloat(r, "lat", 55.5)
	lon := queryFloat(r, "lon", -4.6)
	rng := queryFloat(r, "range", 50)
	category := r.URL.Query().Get("category")
	priority := r.URL.Query().Get("priority")

	notams, err := s.notams.Query(r.Context(), lat, lon, rng, category, priority)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(notams),
		"notams": notams,
	})
}

func (s *Server) handleMetar(w http.ResponseWriter, r *http.Request) {
	if s.metars == nil {
		writeError(w, http.StatusServiceUnavailable, "metar fetcher not running")
		return
	}
	icao := chi.URLParam(r, "icao")
	m, err := s.metars.Get(r.Context(), icao)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metar":   m,
		"summary": metar.Format(m),
	})
}

// weatherCell is one aerodrome observation positioned for map display.
type weatherCell struct {
	ICAO       string       `json:"icao"`
	Name       string       `json:"name"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	DistanceNM float64      `json:"distance_nm"`
	Metar      *metar.Metar `json:"metar,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.metars == nil {
		writeError(w, http.StatusServiceUnavailable, "metar fetcher not running")
		return
	}
	lat := queryFloat(r, "lat", 55.5)
	lon := queryFloat(r, "lon", -4.6)
	rng := queryFloat(r, "range", 100)

	var cells []weatherCell
	for _, ap := range airportsWithin(lat, lon, rng) {
		cell := weatherCell{
			ICAO:       ap.ICAO,
			Name:       ap.Name,
			Lat:        ap.Lat,
			Lon:        ap.Lon,
			DistanceNM: geo.DistanceNM(lat, lon, ap.Lat, ap.Lon),
		}
		m, err := s.metars.Get(r.Context(), ap.ICAO)
		if err != nil {
			// Partial data beats total failure: keep the cell, note the
			// gap.
			cell.Error = err.Error()
		} else {
			cell.Metar = m
			cell.Summary = metar.Format(m)
		}
		cells = append(cells, cell)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(cells),
		"cells": cells,
	})
}

func (s *Server) handleAircraftHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not open")
		return
	}
	hex := strings.ToUpper(chi.URLParam(r, "hex"))
	hours := queryInt(r, "hours", 24)
	contacts, err := s.store.History(hex, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hex":      strings.ToUpper(hex),
		"hours":    hours,
		"count":    len(contacts),
		"contacts": contacts,
	})
}

func (s *Server) handleAircraftSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not open")
		return
	}
	hex := strings.ToUpper(chi.URLParam(r, "hex"))
	summary, err := s.store.Summary(hex)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "no history for aircraft")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAircraftActive(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not open")
		return
	}
	minutes := queryInt(r, "minutes", 10)
	active, err := s.store.Active(minutes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"minutes":  minutes,
		"count":    len(active),
		"aircraft": active,
	})
}

func (s *Server) handleAircraftLookup(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "registry not open")
		return
	}
	hex := chi.URLParam(r, "hex")
	ac, err := s.registry.Lookup(hex)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ac == nil {
		writeError(w, http.StatusNotFound, "aircraft not in registry")
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

func (s *Server) handleSearchRegistration(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "registry not open")
		return
	}
	reg := chi.URLParam(r, "reg")
	matches, err := s.registry.SearchRegistration(reg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   reg,
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *Server) handleSearchType(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "registry not open")
		return
	}
	typ := chi.URLParam(r, "type")
	matches, err := s.registry.SearchType(typ)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   typ,
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not open")
		return
	}
	hex := strings.ToUpper(r.URL.Query().Get("hex"))
	kind := strings.ToUpper(r.URL.Query().Get("kind"))
	hours := queryInt(r, "hours", 24)
	events, err := s.store.Events(hex, kind, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hours":  hours,
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not open")
		return
	}
	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVessels(w http.ResponseWriter, r *http.Request) {
	if s.ais == nil {
		writeError(w, http.StatusServiceUnavailable, "ais consumer not running")
		return
	}
	lat := queryFloat(r, "lat", 55.5)
	lon := queryFloat(r, "lon", -4.6)
	rng := queryFloat(r, "range", 30)
	vessels := s.ais.InRange(lat, lon, rng)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(vessels),
		"vessels": vessels,
	})
}

func (s *Server) handleAISStatus(w http.ResponseWriter, r *http.Request) {
	if s.ais == nil {
		writeError(w, http.StatusServiceUnavailable, "ais consumer not running")
		return
	}
	writeJSON(w, http.StatusOK, s.ais.Status())
}

func (s *Server) handleAISConnect(w http.ResponseWriter, r *http.Request) {
	if s.ais == nil {
		writeError(w, http.StatusServiceUnavailable, "ais consumer not running")
		return
	}
	if err := s.ais.Start(s.baseCtx); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ais": "connecting"})
}

func (s *Server) handleAISDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.ais == nil {
		writeError(w, http.StatusServiceUnavailable, "ais consumer not running")
		return
	}
	s.ais.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"ais": "disconnected"})
}

func (s *Server) handleSSRCodes(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "ssr catalog not loaded")
		return
	}
	if code := r.URL.Query().Get("code"); code != "" {
		rec := s.catalog.Lookup(code)
		if rec == nil {
			writeError(w, http.StatusNotFound, "unknown squawk code")
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}
	category := r.URL.Query().Get("category")
	codes := s.catalog.Codes(category)
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"count":    len(codes),
		"codes":    codes,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "semantic index not running")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	threshold := queryFloat(r, "threshold", 0.3)
	k := queryInt(r, "max_results", 5)

	answer, err := s.index.Ask(r.Context(), q, k, threshold)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, answer.Summary)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// chatMessage is one entry in the prompt assembled for a downstream
// language model.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// historyKeywords mark chat questions about past activity rather than the
// live picture; they trigger a database lookup alongside the index search.
var historyKeywords = []string{
	"history", "historical", "past", "yesterday", "last week", "last night",
	"previously", "seen before", "earlier", "stats", "statistics", "summary",
	"how many times", "ever seen",
}

var hexTokenRe = regexp.MustCompile(`\b[0-9A-Fa-f]{6}\b`)

func wantsHistory(q string) bool {
	low := strings.ToLower(q)
	for _, kw := range historyKeywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}

// historicalData pulls database stats, plus the per-aircraft summary when
// the question names a Mode S hex, for history-flavored chat questions.
func (s *Server) historicalData(q string) map[string]any {
	if s.store == nil || !wantsHistory(q) {
		return nil
	}
	out := make(map[string]any)
	if stats, err := s.store.Stats(); err == nil {
		out["database"] = stats
	}
	if hex := hexTokenRe.FindString(q); hex != "" {
		if sum, err := s.store.Summary(strings.ToUpper(hex)); err == nil && sum != nil {
			out["aircraft"] = sum
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "semantic index not running")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	threshold := queryFloat(r, "threshold", 0.3)
	maxContext := queryInt(r, "max_context", 5)
	showContext := r.URL.Query().Get("show_context") == "true"

	answer, err := s.index.Ask(r.Context(), q, maxContext, threshold)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	contextLines := make([]string, 0, len(answer.Matches))
	for _, m := range answer.Matches {
		contextLines = append(contextLines, m.Entry.Text)
	}

	historical := s.historicalData(q)
	if stats, ok := historical["database"].(*history.Stats); ok {
		contextLines = append(contextLines, fmt.Sprintf(
			"Database: %d contacts from %d aircraft, %d flight events on record.",
			stats.AircraftContacts, stats.AircraftTracked, stats.FlightEvents))
	}

	messages := []chatMessage{
		{
			Role: "system",
			Content: "You are an aviation situational-awareness assistant. " +
				"Answer using only the live observations below.\n\n" +
				strings.Join(contextLines, "\n"),
		},
		{Role: "user", Content: q},
	}

	resp := map[string]any{
		"query":    q,
		"intent":   answer.Intent,
		"messages": messages,
	}
	if historical != nil {
		resp["historical_data"] = historical
	}
	if showContext {
		resp["context"] = contextLines
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuild == nil {
		writeError(w, http.StatusServiceUnavailable, "rebuild not wired")
		return
	}
	if err := s.rebuild(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	size := 0
	if s.index != nil {
		size = s.index.Size()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rebuilt": true,
		"entries": size,
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	debug := map[string]any{
		"uptime_s":     int64(time.Since(s.started).Seconds()),
		"goroutines":   runtime.NumGoroutine(),
		"heap_alloc_b": mem.HeapAlloc,
	}
	if s.poller != nil {
		debug["adsb"] = s.poller.Status()
	}
	if s.ais != nil {
		debug["ais"] = s.ais.Status()
	}
	if s.airspace != nil {
		debug["airspace_zones"] = len(s.airspace.Zones())
	}
	if s.catalog != nil {
		debug["ssr"] = s.catalog.Statistics()
	}
	if s.index != nil {
		debug["index"] = map[string]any{
			"entries":  s.index.Size(),
			"rebuilds": s.index.Rebuilds(),
			"built_at": s.index.BuiltAt(),
		}
		if err := s.index.LastError(); err != nil {
			debug["index_error"] = err.Error()
		}
	}
	if s.store != nil {
		if stats, err := s.store.Stats(); err == nil {
			debug["database"] = stats
		}
	}
	if s.registry != nil {
		if n, err := s.registry.Stats(); err == nil {
			debug["registry_aircraft"] = n
		}
	}
	writeJSON(w, http.StatusOK, debug)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"service":  "skyradar",
		"uptime_s": int64(time.Since(s.started).Seconds()),
	}
	if s.poller != nil {
		st := s.poller.Status()
		status["aircraft_tracked"] = st.AircraftCount
		status["last_poll"] = st.LastPoll
		if st.LastError != "" {
			status["adsb_error"] = st.LastError
		}
	}
	if s.ais != nil {
		st := s.ais.Status()
		status["ais_connected"] = st.Connected
		status["vessels_tracked"] = st.VesselCount
		if st.Halted {
			status["ais_halted"] = true
		}
	}
	if s.index != nil {
		status["index_entries"] = s.index.Size()
	}
	writeJSON(w, http.StatusOK, status)
}
