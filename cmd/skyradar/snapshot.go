package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skyradar/internal/adsb"
	"skyradar/internal/ais"
	"skyradar/internal/history"
	"skyradar/internal/metar"
	"skyradar/internal/notam"
	"skyradar/internal/semindex"
)

// snapshotter assembles the entry set for each semantic index rebuild:
// live aircraft, aerodrome weather, active NOTAMs, nearby vessels, and
// recent flight events.
type snapshotter struct {
	poller   *adsb.Poller
	metars   *metar.Fetcher
	notams   *notam.Ingester
	consumer *ais.Consumer
	store    *history.Store
	airports []string
}

const (
	maxNotamEntries = 25
	maxEventEntries = 20
)

func (s *snapshotter) entries(ctx context.Context) []semindex.Entry {
	var out []semindex.Entry

	if s.poller != nil {
		for _, ac := range s.poller.Snapshot() {
			out = append(out, semindex.Entry{
				Kind: semindex.KindAircraft,
				Key:  ac.Hex,
				Text: adsb.Summarize(ac),
			})
		}
	}

	if s.metars != nil {
		for _, icao := range s.airports {
			m, err := s.metars.Get(ctx, icao)
			if err != nil {
				// Per-item failure; the rest of the snapshot stands.
				continue
			}
			out = append(out, semindex.Entry{
				Kind: semindex.KindWeather,
				Key:  icao,
				Text: metar.Format(m),
			})
		}
	}

	if s.notams != nil {
		for _, n := range s.notams.Top(ctx, maxNotamEntries) {
			key := n.ID
			if key == "" {
				key = n.Type
			}
			out = append(out, semindex.Entry{
				Kind: semindex.KindNotam,
				Key:  key,
				Text: notam.Format(n),
			})
		}
	}

	if s.consumer != nil {
		for _, v := range s.consumer.Vessels() {
			out = append(out, semindex.Entry{
				Kind: semindex.KindVessel,
				Key:  v.MMSI,
				Text: summarizeVessel(v),
			})
		}
	}

	if s.store != nil {
		if events, err := s.store.Events("", "", 1); err == nil {
			if len(events) > maxEventEntries {
				events = events[:maxEventEntries]
			}
			for _, e := range events {
				out = append(out, semindex.Entry{
					Kind: semindex.KindEvent,
					Key:  fmt.Sprintf("%s-%d-%s", e.Hex, e.T, e.Kind),
					Text: summarizeEvent(e),
				})
			}
		}
	}

	return out
}

func summarizeVessel(v *ais.Vessel) string {
	name := v.Name
	if name == "" {
		name = "unnamed vessel"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ship %s (MMSI %s)", name, v.MMSI)
	if v.TypeName != "" {
		fmt.Fprintf(&b, " %s", strings.ToLower(v.TypeName))
	}
	if v.NavStatus != "" {
		fmt.Fprintf(&b, ", %s", strings.ToLower(v.NavStatus))
	}
	if v.SOG != nil {
		fmt.Fprintf(&b, " at %.1f knots", *v.SOG)
	}
	if v.Lat != nil && v.Lon != nil {
		fmt.Fprintf(&b, ", position %.4f, %.4f", *v.Lat, *v.Lon)
	}
	if v.Destination != "" {
		fmt.Fprintf(&b, ", bound for %s", v.Destination)
	}
	return b.String()
}

func summarizeEvent(e *history.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: aircraft %s %s at %s", e.Hex,
		strings.ToLower(strings.ReplaceAll(e.Kind, "_", " ")),
		time.Unix(e.T, 0).UTC().Format("15:04 MST"))
	if e.Alt != nil {
		fmt.Fprintf(&b, ", altitude %.0f ft", *e.Alt)
	}
	if e.Squawk != "" {
		fmt.Fprintf(&b, ", squawk %s", e.Squawk)
	}
	return b.String()
}
