package ais

import "fmt"

// navStatusNames maps AIS navigational status codes to descriptions.
var navStatusNames = map[int]string{
	0:  "Under way using engine",
	1:  "At anchor",
	2:  "Not under command",
	3:  "Restricted manoeuvrability",
	4:  "Constrained by draught",
	5:  "Moored",
	6:  "Aground",
	7:  "Engaged in fishing",
	8:  "Under way sailing",
	9:  "Reserved (HSC)",
	10: "Reserved (WIG)",
	11: "Power-driven vessel towing astern",
	12: "Power-driven vessel pushing ahead",
	13: "Reserved",
	14: "AIS-SART active",
	15: "Undefined",
}

// NavStatusName returns the description for an AIS navigational status code.
func NavStatusName(code int) string {
	if name, ok := navStatusNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", code)
}

// ShipTypeName returns the description for an AIS ship type code.
func ShipTypeName(code int) string {
	switch {
	case code == 30:
		return "Fishing"
	case code == 31 || code == 32:
		return "Towing"
	case code == 33:
		return "Dredging"
	case code == 34:
		return "Diving operations"
	case code == 35:
		return "Military operations"
	case code == 36:
		return "Sailing"
	case code == 37:
		return "Pleasure craft"
	case code >= 40 && code <= 49:
		return "High-speed craft"
	case code == 50:
		return "Pilot vessel"
	case code == 51:
		return "Search and rescue"
	case code == 52:
		return "Tug"
	case code == 53:
		return "Port tender"
	case code == 54:
		return "Anti-pollution equipment"
	case code == 55:
		return "Law enforcement"
	case code == 58:
		return "Medical transport"
	case code >= 60 && code <= 69:
		return "Passenger"
	case code >= 70 && code <= 79:
		return "Cargo"
	case code >= 80 && code <= 89:
		return "Tanker"
	case code >= 90 && code <= 99:
		return "Other"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}
