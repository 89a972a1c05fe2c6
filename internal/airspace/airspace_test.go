package airspace

import (
	"os"
	"path/filepath"
	"testing"
)

func squareZone(name string, t ZoneType) *Zone {
	// A square over the Scottish lowlands: lon -5..-4, lat 55..56.
	return &Zone{
		Name: name,
		Type: t,
		Polygon: []Point{
			{Lon: -5, Lat: 55},
			{Lon: -4, Lat: 55},
			{Lon: -4, Lat: 56},
			{Lon: -5, Lat: 56},
		},
	}
}

func TestClassify(t *testing.T) {
	idx := NewIndex([]*Zone{squareZone("GLASGOW CTR", TypeCTR)})

	zones := idx.Classify(55.5, -4.5)
	if len(zones) != 1 || zones[0].Name != "GLASGOW CTR" {
		t.Fatalf("Classify(55.5, -4.5) = %v, want GLASGOW CTR", zones)
	}

	if zones := idx.Classify(60, 0); len(zones) != 0 {
		t.Fatalf("Classify(60, 0) = %v, want empty", zones)
	}
}

func TestClassifyPriority(t *testing.T) {
	// A CTR, a TMA and a danger area all covering the same square. Only the
	// controlled zones come back, CTR first.
	idx := NewIndex([]*Zone{
		squareZone("LOWLANDS DANGER", TypeDangerArea),
		squareZone("SCOTTISH TMA", TypeCTATMA),
		squareZone("GLASGOW CTR", TypeCTR),
	})

	zones := idx.Classify(55.5, -4.5)
	if len(zones) != 2 {
		t.Fatalf("got %d zones, want 2 (danger area excluded)", len(zones))
	}
	if zones[0].Type != TypeCTR {
		t.Errorf("first zone = %s, want CTR", zones[0].Type)
	}
	if zones[1].Type != TypeCTATMA {
		t.Errorf("second zone = %s, want CTA/TMA", zones[1].Type)
	}
}

func TestClassifyFallback(t *testing.T) {
	// With no controlled zone at the point, lower-priority zones are returned.
	idx := NewIndex([]*Zone{squareZone("LOWLANDS DANGER", TypeDangerArea)})

	zones := idx.Classify(55.5, -4.5)
	if len(zones) != 1 || zones[0].Type != TypeDangerArea {
		t.Fatalf("Classify fallback = %v, want the danger area", zones)
	}
}

func TestZonesWithin(t *testing.T) {
	idx := NewIndex([]*Zone{squareZone("GLASGOW CTR", TypeCTR)})

	// Nearest vertex is (lat 55, lon -4); from (54.9, -4.1) that is about
	// 0.14 deg = 8.5 nm, and the point lies outside the square.
	if got := idx.ZonesWithin(54.9, -4.1, 10); len(got) != 1 {
		t.Errorf("ZonesWithin radius 10 = %d zones, want 1", len(got))
	}
	if got := idx.ZonesWithin(54.9, -4.1, 3); len(got) != 0 {
		t.Errorf("ZonesWithin radius 3 = %d zones, want 0", len(got))
	}
}

func TestZonesWithinContainingZone(t *testing.T) {
	// A wide CTA whose vertices are all hundreds of miles from the query
	// point still covers it; containment must count as intersection.
	cta := &Zone{
		Name: "WIDE CTA",
		Type: TypeCTATMA,
		Polygon: []Point{
			{Lon: -10, Lat: 50},
			{Lon: 2, Lat: 50},
			{Lon: 2, Lat: 60},
			{Lon: -10, Lat: 60},
		},
	}
	idx := NewIndex([]*Zone{cta})

	got := idx.ZonesWithin(55, -4, 30)
	if len(got) != 1 || got[0].Name != "WIDE CTA" {
		t.Fatalf("ZonesWithin inside wide zone = %v, want WIDE CTA", got)
	}

	// Outside the zone and beyond every vertex: nothing.
	if got := idx.ZonesWithin(45, -20, 30); len(got) != 0 {
		t.Errorf("ZonesWithin far outside = %d zones, want 0", len(got))
	}
}

func TestExportView(t *testing.T) {
	idx := NewIndex([]*Zone{
		squareZone("GLASGOW CTR", TypeCTR),
		squareZone("SCOTTISH TMA", TypeCTATMA),
	})

	view := idx.ExportView(55.5, -4.5, 120)
	if len(view.Zones) != 2 {
		t.Fatalf("view has %d zones, want 2", len(view.Zones))
	}
	if view.SummaryByType[TypeCTR] != 1 || view.SummaryByType[TypeCTATMA] != 1 {
		t.Errorf("summary = %v", view.SummaryByType)
	}
}

func TestParseFile(t *testing.T) {
	content := `; Glasgow control zone
$TYPE=10
{GLASGOW CTR}
55.000000+-5.000000
55.000000+-4.000000
56.000000+-4.000000
56.000000+-5.000000
-1
`
	path := filepath.Join(t.TempDir(), "glasgow.out")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	zones, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if len(zones) != 1 {
		t.Fatalf("got %d zones, want 1", len(zones))
	}

	z := zones[0]
	if z.Name != "GLASGOW CTR" {
		t.Errorf("Name = %q", z.Name)
	}
	if z.Type != TypeCTR {
		t.Errorf("Type = %s, want CTR", z.Type)
	}
	if len(z.Polygon) != 4 {
		t.Fatalf("polygon has %d points, want 4", len(z.Polygon))
	}
	// Vertices are stored (lon, lat).
	if z.Polygon[0].Lon != -5 || z.Polygon[0].Lat != 55 {
		t.Errorf("first vertex = %+v, want lon=-5 lat=55", z.Polygon[0])
	}
	if !z.Contains(55.5, -4.5) {
		t.Error("parsed zone should contain (55.5, -4.5)")
	}
}

func TestParseFileSkipsBadRings(t *testing.T) {
	content := `$TYPE=8
{SHORT RING}
55.000000+-5.000000
55.000000+-4.000000
-1
{COLINEAR RING}
55.000000+-5.000000
55.000000+-4.000000
55.000000+-3.000000
-1
{GOOD RING}
55.000000+-5.000000
55.000000+-4.000000
56.000000+-4.500000
-1
`
	path := filepath.Join(t.TempDir(), "mixed.out")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	zones, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if len(zones) != 1 {
		t.Fatalf("got %d zones, want 1 (short and colinear rings skipped)", len(zones))
	}
	if zones[0].Name != "GOOD RING" {
		t.Errorf("kept zone = %q, want GOOD RING", zones[0].Name)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(nil); got != "Uncontrolled airspace (Class G)" {
		t.Errorf("Describe(nil) = %q", got)
	}
	got := Describe([]*Zone{squareZone("GLASGOW CTR", TypeCTR)})
	if got != "GLASGOW CTR (CTR)" {
		t.Errorf("Describe = %q", got)
	}
}
