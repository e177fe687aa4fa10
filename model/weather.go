package model

// Weather is a monthly climate series aligned to run timesteps.
type Weather struct {
	Precip []float64 `json:"precip" yaml:"precip"` // mm month-1
	Tair   []float64 `json:"tair" yaml:"tair"`     // deg C
	PET    []float64 `json:"pet" yaml:"pet"`       // mm month-1
}

// Len is the number of complete timesteps available in the series.
func (w Weather) Len() int {
	n := len(w.Precip)
	if len(w.Tair) < n {
		n = len(w.Tair)
	}
	if len(w.PET) < n {
		n = len(w.PET)
	}
	return n
}
