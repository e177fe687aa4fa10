package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

// DecayConstants are the first-order decomposition rates of the four active
// carbon pools, per month.
type DecayConstants struct {
	DPM float64
	RPM float64
	BIO float64
	HUM float64
}

// DefaultDecayConstants returns the RothC rates.
func DefaultDecayConstants() DecayConstants {
	return DecayConstants{
		DPM: 10.0 / 12,
		RPM: 0.3 / 12,
		BIO: 0.66 / 12,
		HUM: 0.02 / 12,
	}
}

// Partition splits carbon lost by decomposition between BIO, HUM and CO2.
// The three proportions sum to one.
type Partition struct {
	BIO float64
	HUM float64
	CO2 float64
}

// PartitionFromClay derives the loss partition from soil clay content (%).
func PartitionFromClay(clay float64) Partition {
	x := 1.67 * (1.85 + 1.6*math.Exp(-0.0786*clay))
	active := 1 / (1 + x)
	hum := active / 1.85
	bio := active - hum
	return Partition{BIO: bio, HUM: hum, CO2: 1 - bio - hum}
}

// RateModifierConfig holds environmental constants that are not live inputs.
type RateModifierConfig struct {
	Salinity float64
}

// DefaultRateModifierConfig returns the fixed salinity of 0.01.
func DefaultRateModifierConfig() RateModifierConfig {
	return RateModifierConfig{Salinity: 0.01}
}

// ConvergenceConfig bounds the steady-state controller.
type ConvergenceConfig struct {
	MaxIterations    int
	Tolerance        float64 // t C ha-1
	ProgressInterval time.Duration
}

// DefaultConvergenceConfig returns a 1000 iteration cap with a 1e-7 t/ha
// tolerance and progress logged every five seconds.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		MaxIterations:    1000,
		Tolerance:        1e-7,
		ProgressInterval: 5 * time.Second,
	}
}

// NitrogenConfig holds the nitrogen constants plus optional overrides for
// values that are otherwise derived from soil or waste properties.
type NitrogenConfig struct {
	Params model.NitrogenParameters

	// CNRatioHUM seeds the HUM pool C:N. Zero means Params.CNRatioSOM.
	CNRatioHUM float64
	// Partition replaces the clay-derived loss partition when set.
	Partition *Partition
	// WasteCNRatio replaces the organic-waste C:N when positive.
	WasteCNRatio float64

	// DenitWFPSThreshold is the relative water content below which no
	// denitrification occurs (Grundmann and Rolston).
	DenitWFPSThreshold float64
	// N2WaterFactor scales the proportion of denitrified N released as N2
	// by relative water content.
	N2WaterFactor float64
	// N2NitrateScale is the nitrate content (kg N ha-1 cm-1) at which half of
	// denitrified N is released as N2 through the nitrate term.
	N2NitrateScale float64
	// NitrifInhibition multiplies the nitrification rate.
	NitrifInhibition float64
	// BioActivityScale converts CO2 release (t C ha-1) into the biological
	// activity modifier of denitrification.
	BioActivityScale float64
}

// DefaultNitrogenConfig returns the default nitrogen constants.
func DefaultNitrogenConfig() NitrogenConfig {
	return NitrogenConfig{
		Params:             model.DefaultNitrogenParameters(),
		DenitWFPSThreshold: 0.62,
		N2WaterFactor:      0.5,
		N2NitrateScale:     40,
		NitrifInhibition:   1,
		BioActivityScale:   0.1,
	}
}

func (c NitrogenConfig) hum() float64 {
	if c.CNRatioHUM > 0 {
		return c.CNRatioHUM
	}
	return c.Params.CNRatioSOM
}
