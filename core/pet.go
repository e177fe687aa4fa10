package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/soilcn-simulator/internal/logging"
	"github.com/signalsfoundry/soilcn-simulator/model"
)

// averageWeatherYear is a non-leap year used when deriving PET for a
// long-term average climate.
const averageWeatherYear = 2001

// Thornthwaite returns monthly potential evapotranspiration (mm) for twelve
// mean monthly air temperatures (deg C) at latitude lat (decimal degrees).
// year only affects the length of February. Months below zero count as
// zero; a year with no month above zero yields zero PET throughout.
func Thornthwaite(temps []float64, lat float64, year int) ([]float64, error) {
	if len(temps) != 12 {
		return nil, fmt.Errorf("%w: thornthwaite needs 12 monthly temperatures, got %d", ErrInvalidWeather, len(temps))
	}

	clamped := make([]float64, 12)
	heat := 0.0
	for i, t := range temps {
		if t > 0 {
			clamped[i] = t
			heat += math.Pow(t/5, 1.514)
		}
	}
	pet := make([]float64, 12)
	if heat == 0 {
		return pet, nil
	}

	a := 6.75e-7*heat*heat*heat - 7.71e-5*heat*heat + 1.792e-2*heat + 0.49239
	daylight := MonthlyDaylightHours(lat, year)
	for i, t := range clamped {
		days := float64(daysIn(year, time.Month(i+1)))
		pet[i] = 1.6 * (daylight[i] / 12) * (days / 30) * math.Pow(10*t/heat, a) * 10
	}
	return pet, nil
}

// MonthlyDaylightHours returns the mean day length (hours) of each month of
// year at latitude lat (decimal degrees).
func MonthlyDaylightHours(lat float64, year int) [12]float64 {
	var out [12]float64
	doy := 1
	for m := 0; m < 12; m++ {
		days := daysIn(year, time.Month(m+1))
		total := 0.0
		for d := 0; d < days; d++ {
			total += DaylightHours(lat, doy)
			doy++
		}
		out[m] = total / float64(days)
	}
	return out
}

// DaylightHours returns the day length (hours) on day-of-year doy at
// latitude lat (decimal degrees).
func DaylightHours(lat float64, doy int) float64 {
	decl := 0.409 * math.Sin(2*math.Pi/365*float64(doy)-1.39)
	latRad := lat * math.Pi / 180
	// Polar day and night saturate the arccos argument.
	x := -math.Tan(latRad) * math.Tan(decl)
	x = math.Max(-1, math.Min(1, x))
	return 24 / math.Pi * math.Acos(x)
}

// WeatherFromClimate derives a weather series with Thornthwaite PET from
// monthly precipitation and temperature starting in January of startYear.
// Both series must cover whole years.
func WeatherFromClimate(ctx context.Context, precip, tair []float64, lat float64, startYear int, log logging.Logger) (model.Weather, error) {
	if log == nil {
		log = logging.Noop()
	}
	if len(precip) != len(tair) {
		return model.Weather{}, fmt.Errorf("%w: %d precipitation values but %d temperatures",
			ErrInvalidWeather, len(precip), len(tair))
	}
	if len(tair) == 0 || len(tair)%12 != 0 {
		return model.Weather{}, fmt.Errorf("%w: %d months is not a whole number of years",
			ErrInvalidWeather, len(tair))
	}

	w := model.Weather{
		Precip: append([]float64(nil), precip...),
		Tair:   append([]float64(nil), tair...),
		PET:    make([]float64, 0, len(tair)),
	}
	for i := 0; i < len(tair); i += 12 {
		year := startYear + i/12
		pet, err := Thornthwaite(tair[i:i+12], lat, year)
		if err != nil {
			return model.Weather{}, err
		}
		if allAtOrBelowZero(tair[i : i+12]) {
			log.Warn(ctx, "monthly temperatures all at or below zero; PET set to zero",
				logging.Int("year", year), logging.Float64("latitude", lat))
		}
		w.PET = append(w.PET, pet...)
	}
	return w, nil
}

// AverageWeather returns the twelve-month long-term average precipitation and
// temperature of a whole-year series together with its Thornthwaite PET.
func AverageWeather(precip, tair []float64, lat float64) (model.Weather, error) {
	if len(precip) != len(tair) || len(tair) == 0 || len(tair)%12 != 0 {
		return model.Weather{}, fmt.Errorf("%w: average weather needs matching whole-year series", ErrInvalidWeather)
	}
	years := float64(len(tair) / 12)
	avg := model.Weather{Precip: make([]float64, 12), Tair: make([]float64, 12)}
	for i := range tair {
		avg.Precip[i%12] += precip[i] / years
		avg.Tair[i%12] += tair[i] / years
	}
	pet, err := Thornthwaite(avg.Tair, lat, averageWeatherYear)
	if err != nil {
		return model.Weather{}, err
	}
	avg.PET = pet
	return avg, nil
}

func allAtOrBelowZero(temps []float64) bool {
	for _, t := range temps {
		if t > 0 {
			return false
		}
	}
	return true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
