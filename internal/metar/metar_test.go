package metar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseFull(t *testing.T) {
	raw := "EGLL 251350Z 23012G20KT 9000 -RA BKN025 OVC040 15/12 Q1013"
	m := Parse(raw)

	if m.ICAO != "EGLL" {
		t.Errorf("ICAO = %q", m.ICAO)
	}
	if m.WindDir == nil || *m.WindDir != 230 {
		t.Errorf("WindDir = %v, want 230", m.WindDir)
	}
	if m.WindSpeed == nil || *m.WindSpeed != 12 {
		t.Errorf("WindSpeed = %v, want 12", m.WindSpeed)
	}
	if m.WindGust == nil || *m.WindGust != 20 {
		t.Errorf("WindGust = %v, want 20", m.WindGust)
	}
	if m.WindUnit != "KT" {
		t.Errorf("WindUnit = %q", m.WindUnit)
	}
	if m.VisibilityM == nil || *m.VisibilityM != 9000 {
		t.Errorf("VisibilityM = %v, want 9000", m.VisibilityM)
	}
	if m.TempC == nil || *m.TempC != 15 || m.DewpointC == nil || *m.DewpointC != 12 {
		t.Errorf("temp/dew = %v/%v", m.TempC, m.DewpointC)
	}
	if m.QNH == nil || *m.QNH != 1013 {
		t.Errorf("QNH = %v, want 1013", m.QNH)
	}
	wantClouds := []Cloud{{Type: "BKN", HeightFt: 2500}, {Type: "OVC", HeightFt: 4000}}
	if !reflect.DeepEqual(m.Clouds, wantClouds) {
		t.Errorf("Clouds = %v, want %v", m.Clouds, wantClouds)
	}
	if len(m.Weather) != 1 || m.Weather[0] != "-RA" {
		t.Errorf("Weather = %v, want [-RA]", m.Weather)
	}
}

func TestParseNegativeTemps(t *testing.T) {
	m := Parse("EGPH 251350Z 36005KT 9999 M02/M05 Q1030")
	if m.TempC == nil || *m.TempC != -2 {
		t.Errorf("TempC = %v, want -2", m.TempC)
	}
	if m.DewpointC == nil || *m.DewpointC != -5 {
		t.Errorf("DewpointC = %v, want -5", m.DewpointC)
	}
	if m.VisibilityM == nil || *m.VisibilityM != 9999 {
		t.Errorf("VisibilityM = %v, want 9999", m.VisibilityM)
	}
}

func TestParseCAVOKAndVariableWind(t *testing.T) {
	m := Parse("METAR EGPF 251350Z VRB03KT CAVOK 18/10 Q1020")
	if m.ICAO != "EGPF" {
		t.Errorf("ICAO = %q (METAR prefix not stripped)", m.ICAO)
	}
	if !m.WindVariable {
		t.Error("WindVariable = false")
	}
	if m.WindDir != nil {
		t.Errorf("WindDir = %v, want nil for VRB", m.WindDir)
	}
	if !m.CAVOK {
		t.Error("CAVOK = false")
	}
}

func TestParseGarbage(t *testing.T) {
	m := Parse("not a metar")
	if m.Raw != "not a metar" {
		t.Errorf("Raw = %q", m.Raw)
	}
	if m.TempC != nil || m.WindSpeed != nil {
		t.Error("garbage input produced fields")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	// Every field extracted from the raw report must survive a
	// format-then-reparse of the rendered values.
	m := Parse("EGLL 251350Z 23012G20KT 9000 -RA BKN025 15/12 Q1013")
	s := Format(m)

	for _, want := range []string{
		"METAR EGLL:", "Temp 15°C", "Dewpoint 12°C",
		"Wind 230° at 12kt gusting 20kt", "Visibility 9000m",
		"QNH 1013 hPa", "Clouds BKN at 2500 ft", "Weather -RA",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Format() = %q, missing %q", s, want)
		}
	}
}

func TestFetcherSourceOrderAndCache(t *testing.T) {
	var firstCalls, secondCalls int32

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&firstCalls, 1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondCalls, 1)
		w.Write([]byte("2026/08/24 13:50\nEGLL 241350Z 23012KT 9999 15/12 Q1013\n"))
	}))
	defer good.Close()

	f := NewFetcher(time.Minute)
	f.SetSources([]string{bad.URL + "/%s.TXT", good.URL + "/%s.TXT"})

	m, err := f.Get(context.Background(), "egll")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if m.ICAO != "EGLL" || m.QNH == nil || *m.QNH != 1013 {
		t.Errorf("metar = %+v", m)
	}
	if atomic.LoadInt32(&firstCalls) != 1 || atomic.LoadInt32(&secondCalls) != 1 {
		t.Errorf("calls = %d/%d, want 1/1", firstCalls, secondCalls)
	}

	// Second request inside the TTL is served from cache.
	if _, err := f.Get(context.Background(), "EGLL"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&secondCalls) != 1 {
		t.Errorf("cache miss: source called %d times", secondCalls)
	}
}

func TestFetcherDefaultSources(t *testing.T) {
	// Three fallbacks, each a template with one ICAO slot; a report from the
	// last source in the chain still succeeds.
	if len(defaultSources) != 3 {
		t.Fatalf("default chain has %d sources, want 3", len(defaultSources))
	}
	for _, tmpl := range defaultSources {
		if strings.Count(tmpl, "%s") != 1 {
			t.Errorf("source %q does not take one ICAO", tmpl)
		}
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer down.Close()
	last := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("EGPK 241350Z 25010KT 9999 12/08 Q1009\n"))
	}))
	defer last.Close()

	f := NewFetcher(time.Minute)
	f.SetSources([]string{down.URL + "/%s", down.URL + "/again/%s", last.URL + "/metar.php?id=%s"})

	m, err := f.Get(context.Background(), "EGPK")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if m.ICAO != "EGPK" || m.QNH == nil || *m.QNH != 1009 {
		t.Errorf("metar = %+v", m)
	}
}

func TestFetcherInvalidICAO(t *testing.T) {
	f := NewFetcher(time.Minute)
	if _, err := f.Get(context.Background(), "XX"); err == nil {
		t.Error("Get(XX) = nil error")
	}
}
