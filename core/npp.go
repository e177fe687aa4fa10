package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

// bradburyShape controls how sharply annual-crop inputs concentrate towards
// harvest.
const bradburyShape = 0.6

type landCover struct {
	rescale  float64 // multiplier on Miami NPP
	soilFrac float64 // fraction of NPP returned to the soil
}

var landCovers = map[string]landCover{
	"ara": {rescale: 0.44, soilFrac: 0.53},
	"gra": {rescale: 0.44, soilFrac: 0.71},
	"for": {rescale: 0.8, soilFrac: 0.8},
	"nat": {rescale: 0.44, soilFrac: 0.8},
	"mis": {rescale: 1.6, soilFrac: 0.3},
	"src": {rescale: 0.88, soilFrac: 0.23},
}

// MiamiDyce estimates the annual plant carbon input to the soil (t C ha-1)
// for a land cover class from mean annual temperature (deg C) and total
// annual precipitation (mm).
func MiamiDyce(cover string, meanTair, annualPrecip float64) (float64, error) {
	lc, ok := landCovers[cover]
	if !ok {
		return 0, fmt.Errorf("unknown land cover class %q", cover)
	}
	nppT := 3000 / (1 + math.Exp(1.315-0.119*meanTair))
	nppP := 3000 * (1 - math.Exp(-0.000664*annualPrecip))
	// g m-2 dry matter to kg C ha-1
	npp := 0.5 * 10 * lc.rescale * math.Min(nppT, nppP)
	return lc.soilFrac * npp / 1000, nil
}

// DistributePlantInputs spreads an annual plant input over the months of a
// growing season. Annual crops follow Bradbury et al. (1993), weighting
// month t by exp(-0.6*(harvest-t)); perennials receive a twelfth each month.
func DistributePlantInputs(annual float64, growingMonths int, perennial bool) []float64 {
	if growingMonths <= 0 {
		return nil
	}
	out := make([]float64, growingMonths)
	if perennial {
		for i := range out {
			out[i] = annual / 12
		}
		return out
	}
	total := 0.0
	for i := range out {
		out[i] = math.Exp(-bradburyShape * float64(growingMonths-1-i))
		total += out[i]
	}
	for i := range out {
		out[i] = annual * out[i] / total
	}
	return out
}

// FillPlantInputsFromNPP sets the monthly plant inputs of a crop that names an
// NPP land cover class but lists no inputs, using the long-term average
// climate avg. Crops that already carry inputs are returned unchanged.
func FillPlantInputsFromNPP(crop model.CropParameters, avg model.Weather) (model.CropParameters, error) {
	if len(crop.PlantInputs) > 0 || crop.NPPLandCover == "" {
		return crop, nil
	}
	if len(avg.Tair) == 0 {
		return crop, fmt.Errorf("crop %q: %w: no climate for NPP estimate", crop.Name, ErrInvalidWeather)
	}
	meanT, precip := 0.0, 0.0
	for i := range avg.Tair {
		meanT += avg.Tair[i]
	}
	meanT /= float64(len(avg.Tair))
	for _, p := range avg.Precip {
		precip += p
	}

	annual, err := MiamiDyce(crop.NPPLandCover, meanT, precip)
	if err != nil {
		return crop, fmt.Errorf("crop %q: %w", crop.Name, err)
	}
	crop.PlantInputs = DistributePlantInputs(annual, crop.GrowingMonths(), crop.Perennial)
	return crop, nil
}
