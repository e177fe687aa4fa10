package core

import "math"

// RateModifier returns the product of the temperature, moisture, pH and
// salinity modifiers together with the moisture modifier alone. Water
// contents are in mm.
func RateModifier(cfg RateModifierConfig, tair, pH, fieldCap, wiltPoint, wc float64) (rate, moisture float64) {
	temp := temperatureModifier(tair)
	moisture = moistureModifier(fieldCap, wiltPoint, wc)
	ph := 0.56 + math.Atan(3.14*0.45*(pH-5.0))/3.14
	salinity := math.Exp(-0.09 * cfg.Salinity)
	return temp * moisture * ph * salinity, moisture
}

// The logistic curve has a pole at -18.27 C; below it decomposition stops.
func temperatureModifier(tair float64) float64 {
	shifted := tair + 18.27
	if shifted <= 0 {
		return 0
	}
	return 47.91 / (1 + math.Exp(106.06/shifted))
}

func moistureModifier(fieldCap, wiltPoint, wc float64) float64 {
	span := fieldCap - wiltPoint
	if span <= 0 {
		return 1
	}
	m := 1 - 0.8*(fieldCap-wc)/span
	return math.Max(0, math.Min(1, m))
}
