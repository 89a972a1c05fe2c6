// Package api exposes the tracker's state over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"skyradar/internal/adsb"
	"skyradar/internal/airspace"
	"skyradar/internal/ais"
	"skyradar/internal/basestation"
	"skyradar/internal/config"
	"skyradar/internal/history"
	"skyradar/internal/metar"
	"skyradar/internal/notam"
	"skyradar/internal/semindex"
	"skyradar/internal/ssr"
)

// Server serves the query API. Any dependency may be nil; the affected
// endpoints answer 503.
type Server struct {
	cfg      *config.Config
	poller   *adsb.Poller
	airspace *airspace.Index
	catalog  *ssr.Catalog
	registry *basestation.Registry
	store    *history.Store
	index    *semindex.Index
	notams   *notam.Ingester
	metars   *metar.Fetcher
	ais      *ais.Consumer

	// rebuild forces one semantic index cycle; wired by the composition
	// root since it owns the snapshot provider.
	rebuild func(context.Context) error

	// baseCtx bounds the AIS consumer restarted via /api/ais/connect.
	baseCtx context.Context

	started time.Time
}

// Deps collects the server's collaborators.
type Deps struct {
	Config   *config.Config
	Poller   *adsb.Poller
	Airspace *airspace.Index
	Catalog  *ssr.Catalog
	Registry *basestation.Registry
	Store    *history.Store
	Index    *semindex.Index
	Notams   *notam.Ingester
	Metars   *metar.Fetcher
	AIS      *ais.Consumer
	Rebuild  func(context.Context) error
	BaseCtx  context.Context
}

// New creates a server over the given dependencies.
func New(d Deps) *Server {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.BaseCtx == nil {
		d.BaseCtx = context.Background()
	}
	return &Server{
		cfg:      d.Config,
		poller:   d.Poller,
		airspace: d.Airspace,
		catalog:  d.Catalog,
		registry: d.Registry,
		store:    d.Store,
		index:    d.Index,
		notams:   d.Notams,
		metars:   d.Metars,
		ais:      d.AIS,
		rebuild:  d.Rebuild,
		baseCtx:  d.BaseCtx,
		started:  time.Now(),
	}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/tmp/aircraft.json", s.handleAircraftJSON)

	r.Route("/api", func(r chi.Router) {
		r.Get("/coastline", s.handleCoastline)
		r.Get("/airspace", s.handleAirspace)
		r.Get("/airspace/identify", s.handleAirspaceIdentify)
		r.Get("/notams", s.handleNotams)
		r.Get("/metar/{icao}", s.handleMetar)
		r.Get("/weather", s.handleWeather)

		r.Get("/aircraft/history/{hex}", s.handleAircraftHistory)
		r.Get("/aircraft/summary/{hex}", s.handleAircraftSummary)
		r.Get("/aircraft/active", s.handleAircraftActive)
		r.Get("/aircraft/lookup/{hex}", s.handleAircraftLookup)
		r.Get("/aircraft/search/registration/{reg}", s.handleSearchRegistration)
		r.Get("/aircraft/search/type/{type}", s.handleSearchType)

		r.Get("/events", s.handleEvents)
		r.Get("/database/stats", s.handleDatabaseStats)

		r.Get("/ais/vessels", s.handleVessels)
		r.Get("/ais/status", s.handleAISStatus)
		r.Post("/ais/connect", s.handleAISConnect)
		r.Post("/ais/disconnect", s.handleAISDisconnect)

		r.Get("/ssr-codes", s.handleSSRCodes)
	})

	r.Get("/ask", s.handleAsk)
	r.Get("/chat", s.handleChat)
	r.Post("/rebuild", s.handleRebuild)
	r.Get("/rebuild", s.handleRebuild)
	r.Get("/debug", s.handleDebug)
	r.Get("/status", s.handleStatus)

	return r
}

// Run starts the HTTP server and blocks until the context ends.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening at http://localhost%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// envelope is the uniform response shape.
type envelope struct {
	Status    string `json:"status"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Status:    "ok",
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Status:    "error",
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Query parameter helpers.

func queryFloat(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
