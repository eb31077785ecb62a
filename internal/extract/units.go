package extract

import "strings"

// Millimeter multipliers for recognized units.
const (
	mmPerMM   = 1.0
	mmPerCM   = 10.0
	mmPerInch = 25.4
)

// UnitMultiplier returns the millimeter multiplier for unit and whether
// the unit was recognized.
func UnitMultiplier(unit string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mm", "millimeter", "millimeters", "millimetre", "millimetres":
		return mmPerMM, true
	case "cm", "centimeter", "centimeters", "centimetre", "centimetres":
		return mmPerCM, true
	case "in", "inch", "inches", `"`:
		return mmPerInch, true
	default:
		return 0, false
	}
}

// ToMillimeters converts value from unit to millimeters. Unrecognized
// unit strings use the centimeter multiplier; callers that care should
// check the unit with UnitMultiplier first and attach a warning.
func ToMillimeters(value float64, unit string) float64 {
	if mult, ok := UnitMultiplier(unit); ok {
		return value * mult
	}
	return value * mmPerCM
}
