package ais

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func position(mmsi string, lat, lon, sog float64) string {
	return fmt.Sprintf(`{
		"MessageType": "PositionReport",
		"MetaData": {"MMSI": %s, "ShipName": "TEST VESSEL@@ ", "latitude": %s, "longitude": %s},
		"Message": {"PositionReport": {"Sog": %s, "Cog": 180.5, "TrueHeading": 181, "NavigationalStatus": 0}}
	}`, mmsi, floatStr(lat), floatStr(lon), floatStr(sog))
}

func TestPartialMerge(t *testing.T) {
	c := New(Config{})

	if err := c.Merge([]byte(position("235012345", 55.9, -4.9, 12.5))); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	v := c.Vessel("235012345")
	if v == nil {
		t.Fatal("vessel not tracked after position report")
	}
	if v.Name != "TEST VESSEL" {
		t.Errorf("Name = %q, want padding stripped", v.Name)
	}
	if v.Lat == nil || *v.Lat != 55.9 || v.SOG == nil || *v.SOG != 12.5 {
		t.Errorf("vessel = %+v", v)
	}
	if v.NavStatus != "Under way using engine" {
		t.Errorf("NavStatus = %q", v.NavStatus)
	}

	// Static data arrives later and fills in voyage fields without
	// clearing the position.
	static := `{
		"MessageType": "StaticAndVoyageData",
		"MetaData": {"MMSI": 235012345},
		"Message": {"StaticAndVoyageData": {
			"Name": "CALEDONIAN ISLES", "CallSign": "GBCD", "Destination": "ARDROSSAN",
			"Type": 60, "Dimension": {"A": 60, "B": 25, "C": 8, "D": 8}
		}}
	}`
	if err := c.Merge([]byte(static)); err != nil {
		t.Fatal(err)
	}

	v = c.Vessel("235012345")
	if v.Name != "CALEDONIAN ISLES" || v.Callsign != "GBCD" || v.Destination != "ARDROSSAN" {
		t.Errorf("static merge = %+v", v)
	}
	if v.TypeName != "Passenger" {
		t.Errorf("TypeName = %q, want Passenger", v.TypeName)
	}
	if v.Length == nil || *v.Length != 85 || v.Width == nil || *v.Width != 16 {
		t.Errorf("dimensions = %v x %v", v.Length, v.Width)
	}
	// Position survives the static merge.
	if v.Lat == nil || *v.Lat != 55.9 {
		t.Errorf("Lat lost on static merge: %v", v.Lat)
	}
}

func TestMergeRejectsMissingMMSI(t *testing.T) {
	c := New(Config{})
	if err := c.Merge([]byte(`{"MessageType": "PositionReport", "MetaData": {"MMSI": 0}}`)); err != nil {
		t.Fatal(err)
	}
	if n := len(c.Vessels()); n != 0 {
		t.Errorf("tracked %d vessels for MMSI 0, want 0", n)
	}
}

func TestMergeDecodeError(t *testing.T) {
	c := New(Config{})
	if err := c.Merge([]byte(`not json`)); err == nil {
		t.Error("Merge(garbage) = nil error")
	}
}

func TestInRangeSorted(t *testing.T) {
	c := New(Config{})

	// Three vessels north of the query point at increasing distance, one far
	// away, inserted out of order.
	_ = c.Merge([]byte(position("111", 55.20, -4.5, 5)))
	_ = c.Merge([]byte(position("222", 55.05, -4.5, 5)))
	_ = c.Merge([]byte(position("333", 55.10, -4.5, 5)))
	_ = c.Merge([]byte(position("999", 59.00, -4.5, 5)))

	got := c.InRange(55.0, -4.5, 30)
	if len(got) != 3 {
		t.Fatalf("InRange() = %d vessels, want 3", len(got))
	}
	order := []string{got[0].MMSI, got[1].MMSI, got[2].MMSI}
	want := []string{"222", "333", "111"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if got[0].DistanceNM >= got[1].DistanceNM || got[1].DistanceNM >= got[2].DistanceNM {
		t.Error("distances not ascending")
	}
	// All three are due north.
	if got[0].BearingDeg > 1 && got[0].BearingDeg < 359 {
		t.Errorf("bearing = %.1f, want ~0", got[0].BearingDeg)
	}
}

func TestEvictStale(t *testing.T) {
	c := New(Config{VesselTTL: 600 * time.Second})

	_ = c.Merge([]byte(position("111", 55.2, -4.5, 5)))
	_ = c.Merge([]byte(position("222", 55.3, -4.5, 5)))

	// Age the first vessel past the TTL.
	c.mu.Lock()
	c.vessels["111"].LastUpdate = time.Now().Add(-601 * time.Second)
	c.mu.Unlock()

	if n := c.EvictStale(); n != 1 {
		t.Errorf("EvictStale() = %d, want 1", n)
	}
	if v := c.Vessel("111"); v != nil {
		t.Error("stale vessel still tracked")
	}
	if len(c.InRange(55.0, -4.5, 100)) != 1 {
		t.Error("InRange still returns evicted vessel")
	}
}

func TestOnShipContact(t *testing.T) {
	c := New(Config{})

	var got []*Vessel
	c.OnShipContact(func(v *Vessel) { got = append(got, v) })

	_ = c.Merge([]byte(position("111", 55.2, -4.5, 5)))
	if len(got) != 1 || got[0].MMSI != "111" {
		t.Fatalf("callback vessels = %v", got)
	}

	// No position, no contact callback.
	_ = c.Merge([]byte(`{"MessageType": "StaticDataReport", "MetaData": {"MMSI": 444}, "Message": {"StaticDataReport": {"Name": "NOPOS"}}}`))
	if len(got) != 1 {
		t.Errorf("callback fired for positionless message")
	}
}

func TestConsumerAgainstMockStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Expect the subscription first.
		var sub subscription
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscription: %v", err)
			return
		}
		if sub.APIKey != "k" || len(sub.BoundingBoxes) != 1 {
			t.Errorf("subscription = %+v", sub)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(position("235099999", 55.5, -4.5, 8))); err != nil {
			return
		}
		close(received)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: url, APIKey: "k"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop()

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("server never delivered the message")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v := c.Vessel("235099999"); v != nil {
			st := c.Status()
			if !st.Connected || st.VesselCount != 1 || st.MessageCount == 0 {
				t.Errorf("status = %+v", st)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("vessel never appeared")
}
