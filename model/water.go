package model

// WaterStep is the soil water state recorded for one timestep.
type WaterStep struct {
	WiltingPoint  float64 // mm
	FieldCapacity float64 // mm
	WaterContent  float64 // mm
	AET           float64 // mm
	Irrigation    float64 // mm
	Drainage      float64 // mm
}
