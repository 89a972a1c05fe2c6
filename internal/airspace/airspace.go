// Package airspace loads a polygonal airspace corpus and answers
// point-in-zone and zones-within-radius queries.
//
// The corpus is a directory of Tim Newport-Peace format (.out) files. Each
// file sets a zone type with $TYPE=<n>, names the zone with a {Name} line,
// and lists one coordinate per line as "lat+lon" in decimal degrees. A ring
// is terminated by a line containing -1. Comment and directive lines are
// ignored.
package airspace

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ZoneType identifies the class of an airspace volume.
type ZoneType string

// Airspace volume classes in decreasing classification priority.
const (
	TypeCTR        ZoneType = "CTR"
	TypeCTATMA     ZoneType = "CTA/TMA"
	TypeTMA        ZoneType = "TMA"
	TypeATZ        ZoneType = "ATZ"
	TypeMATZ       ZoneType = "MATZ"
	TypeDangerArea ZoneType = "Danger Area"
	TypeFIR        ZoneType = "FIR"
	TypeLARS       ZoneType = "LARS"
	TypeAARA       ZoneType = "AARA"
	TypeAIAA       ZoneType = "AIAA"
	TypeMTA        ZoneType = "MTA"
	TypeATA        ZoneType = "ATA"
	TypeATSDA      ZoneType = "ATSDA"
	TypeAirway     ZoneType = "Airway"
	TypeOther      ZoneType = "Other"
)

// typeCodes maps the numeric $TYPE code to a zone type.
var typeCodes = map[int]ZoneType{
	8:  TypeATZ,
	9:  TypeCTATMA,
	10: TypeCTR,
	11: TypeDangerArea,
	12: TypeFIR,
	17: TypeLARS,
	18: TypeMATZ,
	20: TypeAARA,
	21: TypeAIAA,
	22: TypeMTA,
	23: TypeATA,
	24: TypeATSDA,
}

// Point is a polygon vertex stored as (lon, lat).
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Zone is one immutable airspace volume.
type Zone struct {
	Name        string   `json:"name"`
	Type        ZoneType `json:"type"`
	Polygon     []Point  `json:"polygon"`
	AltitudeMin int      `json:"altitude_min"`
	AltitudeMax int      `json:"altitude_max"`
	Description string   `json:"description,omitempty"`
	SourceFile  string   `json:"-"`
}

var (
	coordLine = regexp.MustCompile(`^(-?\d+\.\d+)\+(-?\d+\.\d+)$`)
	typeLine  = regexp.MustCompile(`\$TYPE=(\d+)`)
	nameLine  = regexp.MustCompile(`\{([^}]+)\}`)
)

// Index answers spatial queries over a loaded airspace corpus. Immutable
// after Load; safe for concurrent readers.
type Index struct {
	zones []*Zone
}

// Load reads every .out file in dir into a new Index. Malformed files and
// invalid rings are logged and skipped; Load fails only if the directory
// itself is unreadable.
func Load(dir string) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read airspace dir: %w", err)
	}

	idx := &Index{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".out") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		zones, err := ParseFile(path)
		if err != nil {
			log.Printf("airspace: skipping %s: %v", e.Name(), err)
			continue
		}
		idx.zones = append(idx.zones, zones...)
	}

	log.Printf("airspace: loaded %d zones from %s", len(idx.zones), dir)
	return idx, nil
}

// ParseFile parses a single .out file into zero or more zones.
func ParseFile(path string) ([]*Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var (
		zones    []*Zone
		ring     []Point
		zoneType = TypeOther
		zoneName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	)

	flush := func() {
		if len(ring) == 0 {
			return
		}
		if len(ring) < 3 {
			log.Printf("airspace: %s: ring with %d points skipped", filepath.Base(path), len(ring))
			ring = nil
			return
		}
		if degenerate(ring) {
			log.Printf("airspace: %s: degenerate ring skipped (%q)", filepath.Base(path), zoneName)
			ring = nil
			return
		}
		zones = append(zones, &Zone{
			Name:       zoneName,
			Type:       zoneType,
			Polygon:    ring,
			SourceFile: filepath.Base(path),
		})
		ring = nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if m := typeLine.FindStringSubmatch(line); m != nil {
			flush()
			code, _ := strconv.Atoi(m[1])
			if t, ok := typeCodes[code]; ok {
				zoneType = t
			} else {
				zoneType = TypeOther
			}
			continue
		}
		if m := nameLine.FindStringSubmatch(line); m != nil {
			flush()
			zoneName = strings.TrimSpace(m[1])
			continue
		}
		if strings.HasPrefix(line, "$") || strings.HasPrefix(line, "{") {
			continue
		}

		if line == "-1" {
			flush()
			continue
		}

		if m := coordLine.FindStringSubmatch(line); m != nil {
			lat, err1 := strconv.ParseFloat(m[1], 64)
			lon, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			ring = append(ring, Point{Lon: lon, Lat: lat})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	flush()

	return zones, nil
}

// degenerate reports whether every vertex of the ring is colinear, which
// makes the polygon zero-area.
func degenerate(ring []Point) bool {
	if len(ring) < 3 {
		return true
	}
	a, b := ring[0], ring[1]
	for _, c := range ring[2:] {
		cross := (b.Lon-a.Lon)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lon-a.Lon)
		if cross > 1e-12 || cross < -1e-12 {
			return false
		}
	}
	return true
}

// NewIndex builds an Index directly from zones. Used by tests and by callers
// that assemble a corpus programmatically.
func NewIndex(zones []*Zone) *Index {
	return &Index{zones: zones}
}

// Zones returns the full loaded corpus.
func (x *Index) Zones() []*Zone {
	return x.zones
}

// Contains reports whether the zone's polygon contains (lat, lon), by ray
// casting.
func (z *Zone) Contains(lat, lon float64) bool {
	n := len(z.Polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := z.Polygon[i], z.Polygon[j]
		if (pi.Lat > lat) != (pj.Lat > lat) &&
			lon < (pj.Lon-pi.Lon)*(lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}

// classPriority orders zone types for Classify. Lower sorts first.
func classPriority(t ZoneType) int {
	switch t {
	case TypeCTR:
		return 0
	case TypeCTATMA:
		return 1
	case TypeTMA:
		return 2
	default:
		return 3
	}
}

// Classify returns the zones containing (lat, lon), priority-first: if any
// CTR, CTA/TMA, or TMA contains the point only those are returned, ordered
// CTR first. Lower-priority zone classes are searched only as a fallback.
func (x *Index) Classify(lat, lon float64) []*Zone {
	var high, low []*Zone
	for _, z := range x.zones {
		if !z.Contains(lat, lon) {
			continue
		}
		if classPriority(z.Type) < 3 {
			high = append(high, z)
		} else {
			low = append(low, z)
		}
	}
	if len(high) > 0 {
		sort.SliceStable(high, func(i, j int) bool {
			return classPriority(high[i].Type) < classPriority(high[j].Type)
		})
		return high
	}
	return low
}

// ZonesWithin returns zones intersecting the circular region: any zone with
// a vertex inside the radius, plus any zone containing the center point, so a
// large area whose vertices all lie far away still shows up when the query
// point is inside it. Distance is approximated as 1 degree = 60 nm, which is
// coarse but adequate for a visualization filter.
func (x *Index) ZonesWithin(lat, lon, radiusNM float64) []*Zone {
	radiusDeg := radiusNM / 60.0
	var out []*Zone
	for _, z := range x.zones {
		if z.Contains(lat, lon) {
			out = append(out, z)
			continue
		}
		for _, p := range z.Polygon {
			dLat := p.Lat - lat
			dLon := p.Lon - lon
			if dLat*dLat+dLon*dLon <= radiusDeg*radiusDeg {
				out = append(out, z)
				break
			}
		}
	}
	return out
}

// View is the visualization payload for a circular region.
type View struct {
	Zones         []*Zone          `json:"zones"`
	SummaryByType map[ZoneType]int `json:"summary_by_type"`
}

// ExportView returns the zones within the region plus a per-type count.
func (x *Index) ExportView(lat, lon, radiusNM float64) *View {
	zones := x.ZonesWithin(lat, lon, radiusNM)
	summary := make(map[ZoneType]int)
	for _, z := range zones {
		summary[z.Type]++
	}
	return &View{Zones: zones, SummaryByType: summary}
}

// Describe returns a short human-readable description of the zones containing
// a point, for the identify endpoint.
func Describe(zones []*Zone) string {
	if len(zones) == 0 {
		return "Uncontrolled airspace (Class G)"
	}
	parts := make([]string, 0, len(zones))
	for _, z := range zones {
		parts = append(parts, fmt.Sprintf("%s (%s)", z.Name, z.Type))
	}
	return strings.Join(parts, "; ")
}
