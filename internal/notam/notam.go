// Package notam fetches, parses, and classifies notices to airmen, with a
// TTL cache and radius filtering.
package notam

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"skyradar/internal/geo"
)

// Priority levels. CRITICAL notices bypass the radius filter.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Notam is one parsed notice.
type Notam struct {
	ID          string    `json:"id"`
	Raw         string    `json:"raw"`
	Description string    `json:"description"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	RadiusNM    *float64  `json:"radius_nm,omitempty"`
	Type        string    `json:"type,omitempty"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	ValidFrom   time.Time `json:"valid_from,omitempty"`
	ValidTo     time.Time `json:"valid_to,omitempty"`

	// DistanceNM is filled in per-query.
	DistanceNM float64 `json:"distance_nm,omitempty"`
}

var (
	idRe = regexp.MustCompile(`\b([A-Z]\d{4}/\d{2})\b`)
	// DDMMN DDDMMW and DDMMSSN DDDMMSSW coordinate forms, with an optional
	// 3-digit radius suffix as used in Q-lines.
	coordShortRe = regexp.MustCompile(`\b(\d{2})(\d{2})([NS])\s*(\d{3})(\d{2})([EW])(?:(\d{3}))?\b`)
	coordLongRe  = regexp.MustCompile(`\b(\d{2})(\d{2})(\d{2})([NS])\s*(\d{3})(\d{2})(\d{2})([EW])\b`)
	timeFromRe   = regexp.MustCompile(`\bB\)\s*(\d{10})\b`)
	timeToRe     = regexp.MustCompile(`\bC\)\s*(\d{10})\b`)
)

// ParseTime parses the YYMMDDHHMM form used in NOTAM B) and C) fields.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("0601021504", s)
}

// Parse extracts id, position, validity, and classification from one raw
// notice. Never fails; missing fields stay zero.
func Parse(raw string) *Notam {
	raw = strings.TrimSpace(raw)
	n := &Notam{Raw: raw, Description: raw}

	if g := idRe.FindStringSubmatch(raw); g != nil {
		n.ID = g[1]
	}

	if g := coordLongRe.FindStringSubmatch(raw); g != nil {
		lat := dmsToDeg(g[1], g[2], g[3], g[4] == "S")
		lon := dmsToDeg(g[5], g[6], g[7], g[8] == "W")
		n.Lat, n.Lon = &lat, &lon
	} else if g := coordShortRe.FindStringSubmatch(raw); g != nil {
		lat := dmsToDeg(g[1], g[2], "", g[3] == "S")
		lon := dmsToDeg(g[4], g[5], "", g[6] == "W")
		n.Lat, n.Lon = &lat, &lon
		if g[7] != "" {
			r, _ := strconv.ParseFloat(g[7], 64)
			n.RadiusNM = &r
		}
	}

	if g := timeFromRe.FindStringSubmatch(raw); g != nil {
		if t, err := ParseTime(g[1]); err == nil {
			n.ValidFrom = t
		}
	}
	if g := timeToRe.FindStringSubmatch(raw); g != nil {
		if t, err := ParseTime(g[1]); err == nil {
			n.ValidTo = t
		}
	}

	n.Type, n.Category, n.Priority = classify(raw)
	return n
}

func dmsToDeg(deg, min, sec string, negative bool) float64 {
	d, _ := strconv.ParseFloat(deg, 64)
	m, _ := strconv.ParseFloat(min, 64)
	v := d + m/60
	if sec != "" {
		s, _ := strconv.ParseFloat(sec, 64)
		v += s / 3600
	}
	if negative {
		return -v
	}
	return v
}

// classify derives type, category, and priority from the notice text by
// keyword matching, the same mechanism the squawk catalog uses.
func classify(raw string) (typ, category, priority string) {
	text := strings.ToUpper(raw)
	has := func(keywords ...string) bool {
		for _, k := range keywords {
			if strings.Contains(text, k) {
				return true
			}
		}
		return false
	}

	switch {
	case has("RWY") && has("CLSD", "CLOSED"):
		return "RUNWAY_CLOSURE", "AERODROME", PriorityCritical
	case has("AD CLSD", "AERODROME CLOSED", "AIRPORT CLOSED"):
		return "AERODROME_CLOSURE", "AERODROME", PriorityCritical
	case has("DANGER AREA", "PROHIBITED", "RESTRICTED AREA", "TEMPO RESTRICTED", "TRA "):
		return "AIRSPACE_RESTRICTION", "AIRSPACE", PriorityHigh
	case has("UAS", "DRONE", "UNMANNED"):
		return "UAS_ACTIVITY", "HAZARD", PriorityHigh
	case has("FIREWORK", "LASER", "PYROTECHNIC"):
		return "VISUAL_HAZARD", "HAZARD", PriorityHigh
	case has("AIR DISPLAY", "AEROBATIC", "EXERCISE"):
		return "AIR_DISPLAY", "HAZARD", PriorityMedium
	case has("ILS", "VOR", "DME", "NDB", "GLIDEPATH", "LOCALIZER", "LOCALISER"):
		return "NAVAID", "NAVAID", PriorityMedium
	case has("OBST", "CRANE", "MAST", "WIND TURBINE"):
		return "OBSTACLE", "OBSTACLE", PriorityMedium
	case has("TWY") && has("CLSD", "CLOSED"):
		return "TAXIWAY_CLOSURE", "AERODROME", PriorityMedium
	default:
		return "GENERAL", "GENERAL", PriorityLow
	}
}

func priorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Source supplies raw notice texts.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// HTTPSource fetches a plain-text feed and splits it into notices on blank
// lines.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch retrieves and splits the feed.
func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch notams: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notam feed status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, block := range strings.Split(string(body), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out, nil
}

// Ingester caches parsed notices with a TTL and serves filtered queries.
type Ingester struct {
	source Source
	ttl    time.Duration

	mu        sync.Mutex
	notams    []*Notam
	fetchedAt time.Time
}

// NewIngester wraps a source with a TTL cache.
func NewIngester(source Source, ttl time.Duration) *Ingester {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Ingester{source: source, ttl: ttl}
}

// refresh re-fetches when the cache is stale. A failed refresh keeps the
// previous cycle's data.
func (i *Ingester) refresh(ctx context.Context) error {
	i.mu.Lock()
	fresh := time.Since(i.fetchedAt) < i.ttl && i.notams != nil
	i.mu.Unlock()
	if fresh {
		return nil
	}

	raws, err := i.source.Fetch(ctx)
	if err != nil {
		i.mu.Lock()
		stale := i.notams != nil
		i.mu.Unlock()
		if stale {
			log.Printf("notam: refresh failed, serving stale data: %v", err)
			return nil
		}
		return err
	}

	parsed := make([]*Notam, 0, len(raws))
	for _, raw := range raws {
		parsed = append(parsed, Parse(raw))
	}

	i.mu.Lock()
	i.notams = parsed
	i.fetchedAt = time.Now()
	i.mu.Unlock()
	return nil
}

// Query returns notices within radiusNM of the center, plus CRITICAL
// notices regardless of location, optionally filtered by category and
// priority, sorted by (priority, distance).
func (i *Ingester) Query(ctx context.Context, lat, lon, radiusNM float64, category, priority string) ([]*Notam, error) {
	if err := i.refresh(ctx); err != nil {
		return nil, err
	}

	i.mu.Lock()
	cached := i.notams
	i.mu.Unlock()

	var out []*Notam
	for _, n := range cached {
		cp := *n
		if cp.Lat != nil && cp.Lon != nil {
			cp.DistanceNM = geo.DistanceNM(lat, lon, *cp.Lat, *cp.Lon)
		}

		inRange := cp.Lat != nil && cp.Lon != nil && cp.DistanceNM <= radiusNM
		if !inRange && cp.Priority != PriorityCritical {
			continue
		}
		if category != "" && !strings.EqualFold(cp.Category, category) {
			continue
		}
		if priority != "" && !strings.EqualFold(cp.Priority, priority) {
			continue
		}
		out = append(out, &cp)
	}

	sort.Slice(out, func(a, b int) bool {
		ra, rb := priorityRank(out[a].Priority), priorityRank(out[b].Priority)
		if ra != rb {
			return ra < rb
		}
		return out[a].DistanceNM < out[b].DistanceNM
	})
	return out, nil
}

// Top returns the first n notices sorted by priority, for the semantic
// index snapshot.
func (i *Ingester) Top(ctx context.Context, n int) []*Notam {
	all, err := i.Query(ctx, 0, 0, 0, "", "")
	if err != nil {
		return nil
	}
	// Query with radius 0 only returned CRITICAL; widen to everything.
	i.mu.Lock()
	cached := i.notams
	i.mu.Unlock()
	if len(cached) > len(all) {
		all = append([]*Notam{}, cached...)
		sort.Slice(all, func(a, b int) bool {
			return priorityRank(all[a].Priority) < priorityRank(all[b].Priority)
		})
	}
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Format renders the natural-language summary used by the semantic index.
func Format(n *Notam) string {
	id := n.ID
	if id == "" {
		id = "unnumbered"
	}
	desc := n.Description
	if len(desc) > 200 {
		desc = desc[:200]
	}
	return fmt.Sprintf("NOTAM %s (%s priority): %s", id, n.Priority, desc)
}
