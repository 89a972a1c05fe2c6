package api

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skyradar/internal/airspace"
	"skyradar/internal/config"
	"skyradar/internal/history"
	"skyradar/internal/semindex"
	"skyradar/internal/ssr"
)

type hashEmbedder struct{ dim int }

func (e *hashEmbedder) Dimension() int { return e.dim }

func (e *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dim)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[int(h.Sum32())%e.dim]++
		}
		out[i] = v
	}
	return out, nil
}

func testServer(t *testing.T) (*Server, *history.Store) {
	t.Helper()

	store, err := history.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	zone := &airspace.Zone{
		Name: "SCOTTISH FIR",
		Type: airspace.TypeFIR,
		Polygon: []airspace.Point{
			{Lon: -8, Lat: 54}, {Lon: 0, Lat: 54}, {Lon: 0, Lat: 61}, {Lon: -8, Lat: 61},
		},
	}

	idx := semindex.New(&hashEmbedder{dim: 128}, "")
	if err := idx.Rebuild(context.Background(), []semindex.Entry{
		{Kind: semindex.KindAircraft, Key: "4CA123", Text: "ADS-B: RYR42 (4CA123) at 37000 ft, phase HIGH_CRUISE"},
		{Kind: semindex.KindWeather, Key: "EGPK", Text: "METAR EGPK: Temp 12°C, Wind 250° at 10kt, weather showers"},
	}); err != nil {
		t.Fatal(err)
	}

	s := New(Deps{
		Config:   config.Default(),
		Airspace: airspace.NewIndex([]*airspace.Zone{zone}),
		Catalog:  ssr.NewCatalog(),
		Store:    store,
		Index:    idx,
		Rebuild:  func(context.Context) error { return nil },
	})
	return s, store
}

// get performs a request and decodes the envelope.
func get(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("GET %s: bad JSON %q: %v", path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestEnvelopeShape(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/status")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if env["status"] != "ok" {
		t.Errorf("envelope status = %v", env["status"])
	}
	if env["timestamp"] == nil {
		t.Error("envelope missing timestamp")
	}

	code, env = get(t, s, "/api/metar/EGPK")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("metar without fetcher = %d, want 503", code)
	}
	if env["status"] != "error" || env["error"] == nil {
		t.Errorf("error envelope = %v", env)
	}
}

func TestAirspaceIdentify(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/api/airspace/identify?lat=55.5&lon=-4.6")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)
	zones := data["zones"].([]any)
	if len(zones) != 1 || zones[0] != "SCOTTISH FIR" {
		t.Errorf("zones = %v", zones)
	}
	if desc, _ := data["description"].(string); !strings.Contains(desc, "SCOTTISH FIR") {
		t.Errorf("description = %q", desc)
	}

	// Missing coordinates are rejected.
	code, _ = get(t, s, "/api/airspace/identify")
	if code != http.StatusBadRequest {
		t.Errorf("identify without coords = %d, want 400", code)
	}
}

func TestEventsAndHistoryEndpoints(t *testing.T) {
	s, store := testServer(t)

	lat, lon, alt, gs := 55.5, -4.5, 3000.0, 200.0
	if err := store.StoreContact(&history.Contact{
		Hex: "ABC123", T: 1000, Callsign: "TEST1",
		Lat: &lat, Lon: &lon, AltBaro: &alt, GroundSpeed: &gs,
		Squawk: "7700",
	}); err != nil {
		t.Fatal(err)
	}

	code, env := get(t, s, "/api/events?hex=ABC123&hours=876000")
	if code != http.StatusOK {
		t.Fatalf("events status = %d", code)
	}
	data := env["data"].(map[string]any)
	if data["count"].(float64) != 1 {
		t.Fatalf("events = %v", data)
	}
	ev := data["events"].([]any)[0].(map[string]any)
	if ev["kind"] != "EMERGENCY_SQUAWK" {
		t.Errorf("event kind = %v", ev["kind"])
	}

	code, env = get(t, s, "/api/aircraft/history/abc123?hours=876000")
	if code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	data = env["data"].(map[string]any)
	if data["count"].(float64) != 1 {
		t.Errorf("history = %v", data)
	}

	code, env = get(t, s, "/api/aircraft/summary/ABC123")
	if code != http.StatusOK {
		t.Fatalf("summary status = %d", code)
	}

	code, _ = get(t, s, "/api/aircraft/summary/NOPE99")
	if code != http.StatusNotFound {
		t.Errorf("summary for unknown hex = %d, want 404", code)
	}
}

func TestSSRCodesEndpoint(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/api/ssr-codes?code=7700")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)
	if data["priority"] != "CRITICAL" {
		t.Errorf("7700 = %v", data)
	}

	code, _ = get(t, s, "/api/ssr-codes?code=1234")
	if code != http.StatusNotFound {
		t.Errorf("unknown code = %d, want 404", code)
	}
}

func TestAskEndpoint(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/ask?q=what+is+the+weather+at+EGPK&threshold=0.01")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)
	if data["intent"] != "weather" {
		t.Errorf("intent = %v", data["intent"])
	}
	if summary, _ := data["summary"].(string); !strings.Contains(summary, "METAR EGPK") {
		t.Errorf("summary = %q", summary)
	}

	code, _ = get(t, s, "/ask")
	if code != http.StatusBadRequest {
		t.Errorf("ask without q = %d, want 400", code)
	}

	// Plain-text rendering.
	req := httptest.NewRequest(http.MethodGet, "/ask?q=weather&threshold=0.01&format=text", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("format=text content type = %q", ct)
	}
}

func TestChatEndpoint(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/chat?q=weather+at+EGPK&threshold=0.01&show_context=true")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)
	messages := data["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", messages)
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "METAR EGPK") {
		t.Errorf("system message = %v", system)
	}
	if data["context"] == nil {
		t.Error("show_context=true returned no context")
	}
	if _, ok := data["historical_data"]; ok {
		t.Error("live question should not carry historical_data")
	}
}

func TestChatHistoricalData(t *testing.T) {
	s, store := testServer(t)

	lat, lon, alt := 55.5, -4.5, 12000.0
	if err := store.StoreContact(&history.Contact{
		Hex: "ABC123", T: 1000, Callsign: "TEST1",
		Lat: &lat, Lon: &lon, AltBaro: &alt,
	}); err != nil {
		t.Fatal(err)
	}

	code, env := get(t, s, "/chat?q=show+me+the+history+for+abc123&threshold=0.01")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)

	historical, ok := data["historical_data"].(map[string]any)
	if !ok {
		t.Fatalf("historical_data missing: %v", data)
	}
	db, ok := historical["database"].(map[string]any)
	if !ok || db["aircraft_contacts"].(float64) != 1 {
		t.Errorf("database stats = %v", historical["database"])
	}
	ac, ok := historical["aircraft"].(map[string]any)
	if !ok || ac["hex"] != "ABC123" {
		t.Errorf("aircraft summary = %v", historical["aircraft"])
	}

	// The database line is part of the prompt context too.
	system := data["messages"].([]any)[0].(map[string]any)
	if !strings.Contains(system["content"].(string), "Database: 1 contacts") {
		t.Errorf("system message = %v", system["content"])
	}
}

func TestRebuildEndpoint(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/rebuild", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild = %d", rec.Code)
	}
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	data := env["data"].(map[string]any)
	if data["rebuilt"] != true {
		t.Errorf("rebuild = %v", data)
	}
}

func TestCoastlineEndpoint(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/api/coastline?lat=55.47&lon=-4.63&range=15")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)
	features := data["features"].([]any)
	if len(features) == 0 {
		t.Fatal("no features near Ayr")
	}
	first := features[0].(map[string]any)
	if first["name"] != "Ayr Harbour" {
		t.Errorf("nearest feature = %v, want Ayr Harbour", first["name"])
	}

	// Region filter excludes everything outside it.
	code, env = get(t, s, "/api/coastline?lat=55.47&lon=-4.63&range=500&region=kent")
	if code != http.StatusOK {
		t.Fatal(code)
	}
	data = env["data"].(map[string]any)
	for _, f := range data["features"].([]any) {
		if f.(map[string]any)["region"] != "kent" {
			t.Errorf("region filter leaked %v", f)
		}
	}
}

func TestDebugEndpoint(t *testing.T) {
	s, _ := testServer(t)

	code, env := get(t, s, "/debug")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	data := env["data"].(map[string]any)
	for _, key := range []string{"uptime_s", "goroutines", "airspace_zones", "ssr", "index", "database"} {
		if _, ok := data[key]; !ok {
			t.Errorf("debug missing %q", key)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("preflight = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestNotamEndpointUnavailable(t *testing.T) {
	s, _ := testServer(t)
	code, _ := get(t, s, "/api/notams")
	if code != http.StatusServiceUnavailable {
		t.Errorf("notams without ingester = %d, want 503", code)
	}
}

func TestStatusEndpointFields(t *testing.T) {
	s, _ := testServer(t)
	_, env := get(t, s, "/status")
	data := env["data"].(map[string]any)
	if data["service"] != "skyradar" {
		t.Errorf("service = %v", data["service"])
	}
	if fmt.Sprintf("%v", data["index_entries"]) != "2" {
		t.Errorf("index_entries = %v", data["index_entries"])
	}
}
