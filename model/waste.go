package model

// OrganicWasteParameters describes an organic waste (manure, compost, residue)
// that can be applied to a management unit.
type OrganicWasteParameters struct {
	Name           string  `json:"name" yaml:"name"`
	CNRatio        float64 `json:"cn_ratio" yaml:"cn_ratio"`
	PropNH4        float64 `json:"prop_nh4" yaml:"prop_nh4"` // fraction of waste N that is ammonium
	DPMHUMRatio    float64 `json:"dpm_hum_ratio" yaml:"dpm_hum_ratio"`
	PropIOM        float64 `json:"prop_iom" yaml:"prop_iom"`               // inert fraction of waste carbon
	CarbonFraction float64 `json:"carbon_fraction" yaml:"carbon_fraction"` // t C per t waste
}

// FertiliserParameters describes an inorganic nitrogen fertiliser.
type FertiliserParameters struct {
	Name    string  `json:"name" yaml:"name"`
	PropNO3 float64 `json:"prop_no3" yaml:"prop_no3"` // urea decomposes to ammonium, so 0
}
