package model

// NitrogenParameters are the site-wide nitrogen constants.
type NitrogenParameters struct {
	AtmosNDeposition float64 `json:"atmos_n_deposition" yaml:"atmos_n_deposition"` // kg N ha-1 yr-1
	PropAtmosDepNO3  float64 `json:"prop_atmos_dep_no3" yaml:"prop_atmos_dep_no3"`
	MinNO3NH4        float64 `json:"no3_min" yaml:"no3_min"`         // kg N ha-1
	KNitrif          float64 `json:"k_nitrif" yaml:"k_nitrif"`       // per month
	NDenitMax        float64 `json:"n_denit_max" yaml:"n_denit_max"` // kg N ha-1 cm-1 day-1
	ND50             float64 `json:"n_d50" yaml:"n_d50"`             // kg N ha-1 cm-1
	CNRatioSOM       float64 `json:"cn_ratio_som" yaml:"cn_ratio_som"`
	PrecipCritical   float64 `json:"precip_critical" yaml:"precip_critical"` // mm
	PropVolat        float64 `json:"prop_volat" yaml:"prop_volat"`
}

// DefaultNitrogenParameters returns the constants used when a study does not
// supply its own.
func DefaultNitrogenParameters() NitrogenParameters {
	return NitrogenParameters{
		AtmosNDeposition: 10,
		PropAtmosDepNO3:  0.5,
		MinNO3NH4:        5,
		KNitrif:          0.6,
		NDenitMax:        0.05,
		ND50:             1,
		CNRatioSOM:       8.5,
		PrecipCritical:   21,
		PropVolat:        0.15,
	}
}
