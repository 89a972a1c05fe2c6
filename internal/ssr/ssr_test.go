package ssr

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ssr_codes.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return c
}

const sampleCatalog = `UK SSR Code Assignment Plan

0020. Air Ambulance Helicopter Emergency Medivac
0023. Aircraft engaged in actual SAR Operations
0032. Aircraft engaged in police air support operations
0033. Aircraft Paradropping
0100-0102. Transit (ORCAM) - London
7000. General Conspicuity code
7004. Conspicuity Aerobatics and Display
7500. Special Purpose Code - Hi-Jacking of Aircraft
7600. Special Purpose Code - Radio Failure
7700. Special Purpose Code - Emergency
`

func TestRangeExpansion(t *testing.T) {
	c := writeCatalog(t, sampleCatalog)

	rec := c.Lookup("0101")
	if rec == nil {
		t.Fatal("Lookup(0101) = nil, want expanded range code")
	}
	if rec.Description != "Transit (ORCAM) - London" {
		t.Errorf("Description = %q", rec.Description)
	}
	if len(rec.Categories) != 1 || rec.Categories[0] != CatTransit {
		t.Errorf("Categories = %v, want [TRANSIT]", rec.Categories)
	}
	if rec.Priority != PriorityLow {
		t.Errorf("Priority = %s, want LOW", rec.Priority)
	}
}

func TestCategorization(t *testing.T) {
	c := writeCatalog(t, sampleCatalog)

	tests := []struct {
		code     string
		category string
		priority string
		alert    bool
	}{
		// "Emergency Medivac" matches the emergency keywords before SAR.
		{"0020", CatEmergency, PriorityCritical, true},
		{"0023", CatSAR, PriorityHigh, true},
		{"0032", CatPolice, PriorityHigh, true},
		{"0033", CatSpecialOps, PriorityMedium, true},
		{"7000", CatConspicuity, PriorityLow, false},
		{"7500", CatEmergency, PriorityCritical, true},
		{"7600", CatEmergency, PriorityCritical, true},
		{"7700", CatEmergency, PriorityCritical, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := c.Lookup(tt.code)
			if rec == nil {
				t.Fatalf("Lookup(%s) = nil", tt.code)
			}
			if len(rec.Categories) == 0 || rec.Categories[0] != tt.category {
				t.Errorf("Categories = %v, want [%s]", rec.Categories, tt.category)
			}
			if rec.Priority != tt.priority {
				t.Errorf("Priority = %s, want %s", rec.Priority, tt.priority)
			}
			if rec.Alert != tt.alert {
				t.Errorf("Alert = %v, want %v", rec.Alert, tt.alert)
			}
		})
	}
}

func TestEmergencyTriadWithoutCatalog(t *testing.T) {
	// 7700 must classify CRITICAL even when the catalog never mentioned it.
	c := NewCatalog()

	for _, code := range []string{"7500", "7600", "7700"} {
		rec := c.Lookup(code)
		if rec == nil {
			t.Fatalf("Lookup(%s) = nil on empty catalog", code)
		}
		if rec.Priority != PriorityCritical || !rec.Alert {
			t.Errorf("Lookup(%s) = priority %s alert %v, want CRITICAL true", code, rec.Priority, rec.Alert)
		}
	}
}

func TestLookupNormalization(t *testing.T) {
	c := writeCatalog(t, sampleCatalog)

	if rec := c.Lookup("20"); rec == nil || rec.Code != "0020" {
		t.Errorf("Lookup(\"20\") = %v, want zero-padded 0020", rec)
	}
	if rec := c.Lookup("00 20"); rec == nil || rec.Code != "0020" {
		t.Errorf("Lookup with spaces = %v, want 0020", rec)
	}
	if rec := c.Lookup(""); rec != nil {
		t.Errorf("Lookup(\"\") = %v, want nil", rec)
	}
	if rec := c.Lookup("1234"); rec != nil {
		t.Errorf("Lookup(unknown) = %v, want nil", rec)
	}
}

func TestCodesByCategory(t *testing.T) {
	c := writeCatalog(t, sampleCatalog)

	sar := c.Codes("sar")
	if len(sar) != 1 {
		t.Errorf("Codes(sar) = %d codes, want 1", len(sar))
	}
	all := c.Codes("")
	if len(all) != 10 {
		t.Errorf("Codes(\"\") = %d codes, want 10", len(all))
	}
}

func TestStatistics(t *testing.T) {
	c := writeCatalog(t, sampleCatalog)

	s := c.Statistics()
	if s.TotalCodes != 10 {
		t.Errorf("TotalCodes = %d, want 10", s.TotalCodes)
	}
	if s.AlertCodes == 0 {
		t.Error("AlertCodes = 0, want > 0")
	}
	if s.Categories[CatTransit] != 3 {
		t.Errorf("Categories[TRANSIT] = %d, want 3", s.Categories[CatTransit])
	}
}

func TestAlertMessage(t *testing.T) {
	c := writeCatalog(t, sampleCatalog)

	rec := c.Lookup("7700")
	msg := AlertMessage(rec, "BAW123")
	if msg != "EMERGENCY: BAW123 squawking 7700 (General Emergency)" {
		t.Errorf("AlertMessage = %q", msg)
	}

	rec = c.Lookup("0023")
	msg = AlertMessage(rec, "")
	if msg != "SAR OPERATION: Unknown aircraft - Aircraft engaged in actual SAR Operations" {
		t.Errorf("AlertMessage = %q", msg)
	}
}
