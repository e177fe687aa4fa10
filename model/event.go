package model

// CropEvent is one crop window in a management rotation. Months are counted
// from 1 at the first month of the run, so month 14 is February of year two.
type CropEvent struct {
	Crop         string `json:"crop" yaml:"crop"`
	SowMonth     int    `json:"sow_month" yaml:"sow_month"`
	HarvestMonth int    `json:"harvest_month" yaml:"harvest_month"`

	FertType  string  `json:"fert_type,omitempty" yaml:"fert_type,omitempty"`
	FertN     float64 `json:"fert_n,omitempty" yaml:"fert_n,omitempty"` // kg N ha-1
	FertMonth int     `json:"fert_month,omitempty" yaml:"fert_month,omitempty"`

	WasteType   string  `json:"waste_type,omitempty" yaml:"waste_type,omitempty"`
	WasteMonth  int     `json:"waste_month,omitempty" yaml:"waste_month,omitempty"`
	WasteAmount float64 `json:"waste_amount,omitempty" yaml:"waste_amount,omitempty"` // t ha-1

	// Irrigation maps run month to mm applied.
	Irrigation map[int]float64 `json:"irrigation,omitempty" yaml:"irrigation,omitempty"`
}
