package model

// SoilParameters describes the measured properties of a management unit's soil.
type SoilParameters struct {
	Depth         float64 `json:"depth" yaml:"depth"`                   // cm
	BulkDensity   float64 `json:"bulk_density" yaml:"bulk_density"`     // g cm-3
	PH            float64 `json:"ph" yaml:"ph"`                         // pH in water
	ClayPercent   float64 `json:"clay_percent" yaml:"clay_percent"`     // %
	SiltPercent   float64 `json:"silt_percent" yaml:"silt_percent"`     // %
	SandPercent   float64 `json:"sand_percent" yaml:"sand_percent"`     // %
	CarbonPercent float64 `json:"carbon_percent" yaml:"carbon_percent"` // %, optional when MeasuredSOC is set
	MeasuredSOC   float64 `json:"measured_soc" yaml:"measured_soc"`     // tonnes C ha-1
}

// SOCFromCarbonPercent converts a percent carbon reading for a soil layer of
// the given depth (cm) and bulk density into tonnes of carbon per hectare.
func SOCFromCarbonPercent(depth, bulkDensity, carbonPercent float64) float64 {
	return 1e4 * (depth / 100) * bulkDensity * (carbonPercent / 100)
}

// CarbonFraction returns the percent carbon implied by MeasuredSOC.
func (s SoilParameters) CarbonFraction() float64 {
	denom := s.Depth * s.BulkDensity
	if denom <= 0 {
		return 0
	}
	return s.MeasuredSOC / denom
}
