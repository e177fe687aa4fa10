package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/soilcn-simulator/internal/logging"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDaylightHours(t *testing.T) {
	if got := DaylightHours(0, 100); !approxEqual(got, 12, 1e-9) {
		t.Fatalf("equator day length = %v, want 12", got)
	}
	if got := DaylightHours(89, 172); !approxEqual(got, 24, 1e-9) {
		t.Fatalf("polar summer day length = %v, want 24", got)
	}
	if got := DaylightHours(89, 355); got != 0 {
		t.Fatalf("polar winter day length = %v, want 0", got)
	}
	north := DaylightHours(52, 172)
	south := DaylightHours(-52, 172)
	if north <= 12 || south >= 12 {
		t.Fatalf("June day length at 52N = %v and 52S = %v, want long and short", north, south)
	}
}

func TestThornthwaiteEquator(t *testing.T) {
	pet, err := Thornthwaite(constant(12, 20), 0, 2001)
	if err != nil {
		t.Fatalf("Thornthwaite error: %v", err)
	}
	if !approxEqual(pet[0], 76.33057200421551, 1e-6) {
		t.Fatalf("January PET = %v, want 76.33", pet[0])
	}
	if !approxEqual(pet[1], 68.94374245542046, 1e-6) {
		t.Fatalf("February PET = %v, want 68.94", pet[1])
	}

	leap, err := Thornthwaite(constant(12, 20), 0, 2004)
	if err != nil {
		t.Fatalf("Thornthwaite error: %v", err)
	}
	if !approxEqual(leap[1], 71.40601897168548, 1e-6) {
		t.Fatalf("leap February PET = %v, want 71.41", leap[1])
	}
}

func TestThornthwaiteFrozenYear(t *testing.T) {
	temps := constant(12, -3)
	temps[6] = 0
	pet, err := Thornthwaite(temps, 60, 2001)
	if err != nil {
		t.Fatalf("Thornthwaite error: %v", err)
	}
	for i, v := range pet {
		if v != 0 {
			t.Fatalf("PET[%d] = %v, want 0", i, v)
		}
	}
}

func TestThornthwaiteNeedsTwelveMonths(t *testing.T) {
	if _, err := Thornthwaite(constant(11, 10), 50, 2001); !errors.Is(err, ErrInvalidWeather) {
		t.Fatalf("error = %v, want ErrInvalidWeather", err)
	}
}

func TestWeatherFromClimate(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "warn", Format: "text", Output: &buf})

	tair := append(constant(12, 12), constant(12, -5)...)
	precip := constant(24, 70)
	w, err := WeatherFromClimate(context.Background(), precip, tair, 52, 2000, log)
	if err != nil {
		t.Fatalf("WeatherFromClimate error: %v", err)
	}
	if w.Len() != 24 {
		t.Fatalf("weather length = %d, want 24", w.Len())
	}
	for i := 0; i < 12; i++ {
		if w.PET[i] <= 0 {
			t.Fatalf("PET[%d] = %v, want positive", i, w.PET[i])
		}
		if w.PET[12+i] != 0 {
			t.Fatalf("PET[%d] = %v, want 0 for a frozen year", 12+i, w.PET[12+i])
		}
	}
	if !strings.Contains(buf.String(), "year=2001") {
		t.Fatalf("frozen year warning missing: %q", buf.String())
	}

	// The input slices are copied.
	precip[0] = 999
	if w.Precip[0] != 70 {
		t.Fatalf("weather shares caller slice: precip[0] = %v", w.Precip[0])
	}
}

func TestWeatherFromClimateRejectsPartialYears(t *testing.T) {
	ctx := context.Background()
	if _, err := WeatherFromClimate(ctx, constant(13, 50), constant(13, 10), 50, 2000, nil); !errors.Is(err, ErrInvalidWeather) {
		t.Fatalf("13 month error = %v, want ErrInvalidWeather", err)
	}
	if _, err := WeatherFromClimate(ctx, constant(12, 50), constant(24, 10), 50, 2000, nil); !errors.Is(err, ErrInvalidWeather) {
		t.Fatalf("mismatched lengths error = %v, want ErrInvalidWeather", err)
	}
}

func TestAverageWeather(t *testing.T) {
	precip := append(constant(12, 40), constant(12, 80)...)
	tair := append(constant(12, 8), constant(12, 12)...)
	avg, err := AverageWeather(precip, tair, 52)
	if err != nil {
		t.Fatalf("AverageWeather error: %v", err)
	}
	if avg.Len() != 12 {
		t.Fatalf("average length = %d, want 12", avg.Len())
	}
	for i := 0; i < 12; i++ {
		if !approxEqual(avg.Precip[i], 60, 1e-12) || !approxEqual(avg.Tair[i], 10, 1e-12) {
			t.Fatalf("month %d average = (%v, %v), want (60, 10)", i+1, avg.Precip[i], avg.Tair[i])
		}
	}
	want, _ := Thornthwaite(avg.Tair, 52, 2001)
	if !approxEqual(avg.PET[1], want[1], 1e-12) {
		t.Fatalf("February PET = %v, want %v", avg.PET[1], want[1])
	}
}
