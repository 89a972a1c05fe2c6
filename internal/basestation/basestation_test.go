package basestation

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "BaseStation.sqb")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE Aircraft (
		ModeS TEXT PRIMARY KEY,
		Registration TEXT,
		ICAOTypeCode TEXT,
		OperatorFlagCode TEXT,
		Manufacturer TEXT,
		Type TEXT,
		RegisteredOwners TEXT
	)`)
	if err != nil {
		t.Fatal(err)
	}

	rows := [][]any{
		{"400F01", "G-EZBY", "A319", "EZY", "Airbus", "A319-111", "easyJet Airline Co Ltd"},
		{"'4CA123'", "EI-DVE", "A319", "EIN", "Airbus", "A319-111", "Aer Lingus"},
		{"43C6F4", "ZK308", "HAWK", nil, "BAE Systems", "Hawk T2", "Royal Air Force"},
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO Aircraft VALUES (?, ?, ?, ?, ?, ?, ?)`, r...); err != nil {
			t.Fatal(err)
		}
	}

	reg, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestLookup(t *testing.T) {
	reg := newTestRegistry(t)

	a, err := reg.Lookup("400F01")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if a == nil {
		t.Fatal("Lookup(400F01) = nil, want record")
	}
	if a.Registration != "G-EZBY" || a.ICAOTypeCode != "A319" || a.Owner != "easyJet Airline Co Ltd" {
		t.Errorf("record = %+v", a)
	}
}

func TestLookupQuotedModeS(t *testing.T) {
	reg := newTestRegistry(t)

	a, err := reg.Lookup("4CA123")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if a == nil {
		t.Fatal("Lookup(4CA123) = nil, want quoted-key record")
	}
	if a.Registration != "EI-DVE" {
		t.Errorf("Registration = %q", a.Registration)
	}
}

func TestLookupNotFound(t *testing.T) {
	reg := newTestRegistry(t)

	a, err := reg.Lookup("ABCDEF")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if a != nil {
		t.Errorf("Lookup(unknown) = %+v, want nil", a)
	}
}

func TestLookupNullColumns(t *testing.T) {
	reg := newTestRegistry(t)

	a, err := reg.Lookup("43C6F4")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if a == nil {
		t.Fatal("Lookup(43C6F4) = nil")
	}
	if a.OperatorFlag != "" {
		t.Errorf("OperatorFlag = %q, want empty for NULL", a.OperatorFlag)
	}
}

func TestSearchRegistration(t *testing.T) {
	reg := newTestRegistry(t)

	matches, err := reg.SearchRegistration("G-EZ")
	if err != nil {
		t.Fatalf("SearchRegistration() error: %v", err)
	}
	if len(matches) != 1 || matches[0].ModeS != "400F01" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestSearchType(t *testing.T) {
	reg := newTestRegistry(t)

	matches, err := reg.SearchType("A319")
	if err != nil {
		t.Fatalf("SearchType() error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("SearchType(A319) = %d matches, want 2", len(matches))
	}

	matches, err = reg.SearchType("Hawk")
	if err != nil {
		t.Fatalf("SearchType() error: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("SearchType(Hawk) = %d matches, want 1", len(matches))
	}
}

func TestStats(t *testing.T) {
	reg := newTestRegistry(t)

	n, err := reg.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Stats() = %d, want 3", n)
	}
}
