package adsb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"skyradar/internal/airspace"
	"skyradar/internal/history"
	"skyradar/internal/ssr"
)

const testFeed = `{
	"now": 1756040000.0,
	"messages": 123456,
	"aircraft": [
		{
			"hex": "4ca123", "flight": "RYR42  ", "alt_baro": 37000, "alt_geom": 37200,
			"gs": 450.0, "track": 180.0, "baro_rate": 0, "squawk": "7700",
			"category": "A3", "lat": 55.5, "lon": -4.6, "seen": 0.2, "rssi": -12.3,
			"messages": 4021
		},
		{
			"hex": "406b12", "flight": "EZY123", "alt_baro": "ground",
			"gs": 8.0, "squawk": "7010", "lat": 51.47, "lon": -0.45, "seen": 0.1
		},
		{
			"flight": "NOHEX", "alt_baro": 10000
		}
	]
}`

func ctrZone(name string, lat, lon float64) *airspace.Zone {
	d := 0.5
	return &airspace.Zone{
		Name: name,
		Type: airspace.TypeCTR,
		Polygon: []airspace.Point{
			{Lon: lon - d, Lat: lat - d},
			{Lon: lon + d, Lat: lat - d},
			{Lon: lon + d, Lat: lat + d},
			{Lon: lon - d, Lat: lat + d},
		},
	}
}

func testPoller(t *testing.T, url, file string) (*Poller, *history.Store) {
	t.Helper()

	store, err := history.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	p := New(Config{
		URL:      url,
		File:     file,
		Airspace: airspace.NewIndex([]*airspace.Zone{ctrZone("LONDON/HEATHROW CTR", 51.47, -0.45)}),
		Catalog:  ssr.NewCatalog(),
		Store:    store,
	})
	return p, store
}

func TestPollEnrichesAndStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	p, store := testPoller(t, srv.URL, "")

	var alerts []*Aircraft
	p.OnAlert(func(ac *Aircraft, code *ssr.Code) { alerts = append(alerts, ac) })

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error: %v", err)
	}

	// The record without a hex is dropped.
	got := p.Snapshot()
	if len(got) != 2 {
		t.Fatalf("Snapshot() = %d aircraft, want 2", len(got))
	}

	ryr := p.Aircraft("4CA123")
	if ryr == nil {
		t.Fatal("4CA123 not tracked")
	}
	if ryr.Flight != "RYR42" {
		t.Errorf("Flight = %q, callsign padding not stripped", ryr.Flight)
	}
	if ryr.Phase != "HIGH_CRUISE" {
		t.Errorf("Phase = %q, want HIGH_CRUISE", ryr.Phase)
	}
	if ryr.SquawkInfo == nil || ryr.SquawkInfo.Priority != ssr.PriorityCritical {
		t.Errorf("SquawkInfo = %+v, want critical 7700", ryr.SquawkInfo)
	}
	if ryr.ATCSector != "EMERGENCY" {
		t.Errorf("ATCSector = %q", ryr.ATCSector)
	}
	if len(alerts) != 1 || alerts[0].Hex != "4CA123" {
		t.Errorf("alerts = %v, want one for 4CA123", alerts)
	}

	// Ground record inside the Heathrow CTR.
	ezy := p.Aircraft("406B12")
	if ezy == nil {
		t.Fatal("406B12 not tracked")
	}
	if !ezy.OnGround {
		t.Error("alt_baro \"ground\" not recognized")
	}
	if ezy.Phase != "TAXIING" {
		t.Errorf("Phase = %q, want TAXIING at 8 kt on ground", ezy.Phase)
	}
	if len(ezy.Airspace) != 1 || ezy.Airspace[0] != "LONDON/HEATHROW CTR" {
		t.Errorf("Airspace = %v", ezy.Airspace)
	}

	// Contacts landed in the history store, and the emergency squawk
	// produced an event.
	contacts, err := store.History("4CA123", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].Squawk != "7700" {
		t.Fatalf("history = %+v", contacts)
	}
	events, err := store.Events("4CA123", "EMERGENCY_SQUAWK", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}

	st := p.Status()
	if st.AircraftCount != 2 || st.Polls != 1 || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}
}

func TestPollFileFallback(t *testing.T) {
	// Upstream down, local aircraft.json present.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "aircraft.json")
	if err := os.WriteFile(file, []byte(testFeed), 0o644); err != nil {
		t.Fatal(err)
	}

	p, _ := testPoller(t, srv.URL, file)
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() with file fallback: %v", err)
	}
	if len(p.Snapshot()) != 2 {
		t.Error("fallback feed not loaded")
	}
}

func TestPollNoSource(t *testing.T) {
	p, _ := testPoller(t, "", "")
	if err := p.Poll(context.Background()); err == nil {
		t.Error("Poll() with no sources = nil error")
	}
	if st := p.Status(); st.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestRepairReclassifiesStuckPhase(t *testing.T) {
	feed := `{"aircraft": [{"hex": "abc001", "alt_baro": 15000, "gs": 320, "lat": 54.0, "lon": -2.0, "baro_rate": 0}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, Repair: true})
	if err := p.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	ac := p.Aircraft("ABC001")
	if ac == nil {
		t.Fatal("aircraft not tracked")
	}
	if ac.Phase != "MEDIUM_LEVEL" {
		t.Errorf("Phase = %q, want MEDIUM_LEVEL", ac.Phase)
	}
}

func TestSummarize(t *testing.T) {
	alt, gs := 37000.0, 450.0
	lat, lon := 55.5, -4.6
	ac := &Aircraft{
		Hex: "4CA123", Flight: "RYR42",
		AltBaro: &alt, GS: &gs, Lat: &lat, Lon: &lon,
		Phase: "HIGH_CRUISE",
	}
	want := "ADS-B: RYR42 (4CA123) at 37000 ft, speed 450 knots, position 55.5000, -4.6000, phase HIGH_CRUISE"
	if got := Summarize(ac); got != want {
		t.Errorf("Summarize() = %q, want %q", got, want)
	}
}
