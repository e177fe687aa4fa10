package model

// CropParameters holds the per-crop constants used by the carbon and nitrogen
// engines. PlantInputs lists tonnes of plant carbon for each month of the
// growing season, starting at the sowing month.
type CropParameters struct {
	Name string `json:"name" yaml:"name"`

	PlantInputs   []float64 `json:"plant_inputs" yaml:"plant_inputs"`     // t C ha-1 per growing month
	NPPLandCover  string    `json:"npp_land_cover" yaml:"npp_land_cover"` // ara, gra, for, nat, mis, src
	Perennial     bool      `json:"perennial" yaml:"perennial"`
	MaxRootDepth  float64   `json:"max_root_depth" yaml:"max_root_depth"` // cm
	DPMRPMRatio   float64   `json:"dpm_rpm_ratio" yaml:"dpm_rpm_ratio"`
	SowMonth      int       `json:"sow_month" yaml:"sow_month"`         // 1..12
	HarvestMonth  int       `json:"harvest_month" yaml:"harvest_month"` // 1..12
	CNRatio       float64   `json:"cn_ratio" yaml:"cn_ratio"`           // C:N of plant inputs
	NSupplyMin    float64   `json:"n_supply_min" yaml:"n_supply_min"`   // kg N ha-1
	NSupplyOpt    float64   `json:"n_supply_opt" yaml:"n_supply_opt"`   // kg N ha-1
	NResponseCoef float64   `json:"n_response_coef" yaml:"n_response_coef"`
	FertUseEff    float64   `json:"fert_use_efficiency" yaml:"fert_use_efficiency"`
}

// PlantInputProportions returns PlantInputs normalised to sum to one.
func (c CropParameters) PlantInputProportions() []float64 {
	total := 0.0
	for _, v := range c.PlantInputs {
		total += v
	}
	props := make([]float64, len(c.PlantInputs))
	if total <= 0 {
		return props
	}
	for i, v := range c.PlantInputs {
		props[i] = v / total
	}
	return props
}

// GrowingMonths is the length of the growing season in months.
func (c CropParameters) GrowingMonths() int {
	n := c.HarvestMonth - c.SowMonth + 1
	if n <= 0 {
		n += 12
	}
	return n
}
