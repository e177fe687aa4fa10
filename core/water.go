package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

// PedotransferMethod selects the equations used to derive soil water
// constants from texture and carbon content.
type PedotransferMethod string

const (
	PedotransferHalaba PedotransferMethod = "halaba"
	PedotransferHollis PedotransferMethod = "hollis"
)

// maxMonthlyAET caps actual evapotranspiration at 5 mm/day over 28 days.
const maxMonthlyAET = 5 * 28

// SoilWaterConstants returns the field capacity and permanent wilting point
// (mm) of the soil layer.
func SoilWaterConstants(soil model.SoilParameters, method PedotransferMethod) (fieldCap, wiltPoint float64, err error) {
	if soil.Depth <= 0 || soil.BulkDensity <= 0 {
		return 0, 0, fmt.Errorf("%w: depth %g and bulk density %g must be positive",
			ErrInvalidSoil, soil.Depth, soil.BulkDensity)
	}
	c := soil.CarbonFraction()
	clay, silt, sand := soil.ClayPercent, soil.SiltPercent, soil.SandPercent

	var thetaFC, thetaPWP float64
	switch method {
	case PedotransferHalaba, "":
		thetaFC = 4.442*c - 0.061*sand + 0.34*clay + 22.821
		thetaPWP = 1.963*c - 0.029*sand + 0.166*clay + 11.746
	case PedotransferHollis:
		inv := 1 / (1 + c)
		thetaFC = 24.49 - 18.87*inv + 0.4527*clay + 0.1535*silt + 0.1442*silt*inv -
			0.00511*silt*clay + 0.08676*clay*inv
		thetaPWP = 9.878 + 0.2127*clay - 0.08366*silt - 7.67*inv + 0.003853*silt*clay +
			0.233*clay*inv + 0.09498*silt*inv
	default:
		return 0, 0, fmt.Errorf("%w: unknown pedotransfer method %q", ErrInvalidSoil, method)
	}

	fieldCap = thetaFC * soil.Depth / 10
	wiltPoint = thetaPWP * soil.Depth / 10
	if wiltPoint < 0 || fieldCap <= wiltPoint {
		return 0, 0, fmt.Errorf("%w: field capacity %.2f mm not above wilting point %.2f mm",
			ErrInvalidSoil, fieldCap, wiltPoint)
	}
	return fieldCap, wiltPoint, nil
}

// SoilWaterEngine tracks root-zone water content and drainage across
// timesteps. Steps must be taken in order; drainage depends on its own
// previous value.
type SoilWaterEngine struct {
	FieldCapacity float64 // mm
	WiltingPoint  float64 // mm
	Depth         float64 // cm

	prev      model.WaterStep
	started   bool
	seedDrain float64
}

// NewSoilWaterEngine constructs an engine for a soil layer of depth cm.
func NewSoilWaterEngine(fieldCap, wiltPoint, depth float64) *SoilWaterEngine {
	return &SoilWaterEngine{FieldCapacity: fieldCap, WiltingPoint: wiltPoint, Depth: depth}
}

// Reset forgets previous steps so the next call to Step starts a new series.
func (e *SoilWaterEngine) Reset() {
	e.prev = model.WaterStep{}
	e.started = false
	e.seedDrain = 0
}

// CarryDrainage sets the drainage (mm) that the first step of a new series
// continues from. Water content still restarts at the midpoint.
func (e *SoilWaterEngine) CarryDrainage(mm float64) {
	e.seedDrain = math.Max(mm, 0)
}

// Step advances the water balance by one month. Index 0 initialises water
// content to the midpoint of field capacity and wilting point and drainage
// to the carried value (zero unless CarryDrainage was called); later steps
// add precipitation and irrigation and remove PET, clamped to
// [wilting point, field capacity]. rootDepth is the current crop's maximum
// rooting depth (cm).
func (e *SoilWaterEngine) Step(index int, precip, pet, irrig, rootDepth float64) model.WaterStep {
	var wc float64
	if index == 0 || !e.started {
		e.prev = model.WaterStep{Drainage: e.seedDrain}
		wc = (e.FieldCapacity + e.WiltingPoint) / 2
	} else {
		wc = e.prev.WaterContent + precip - pet + irrig
		wc = math.Max(e.WiltingPoint, math.Min(wc, e.FieldCapacity))
	}

	aet := math.Min(pet, math.Min(wc-e.WiltingPoint, maxMonthlyAET))

	ratio := 1.0
	if rootDepth > 0 {
		ratio = e.Depth / rootDepth
	}
	drain := e.prev.Drainage + precip + e.WiltingPoint - pet - e.FieldCapacity*ratio
	drain = math.Max(drain, 0)

	step := model.WaterStep{
		WiltingPoint:  e.WiltingPoint,
		FieldCapacity: e.FieldCapacity,
		WaterContent:  wc,
		AET:           aet,
		Irrigation:    irrig,
		Drainage:      drain,
	}
	e.prev = step
	e.started = true
	return step
}
