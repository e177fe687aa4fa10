package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

func testSoil() model.SoilParameters {
	return model.SoilParameters{
		Depth:       30,
		BulkDensity: 1.3,
		PH:          7,
		ClayPercent: 20,
		SiltPercent: 40,
		SandPercent: 40,
		MeasuredSOC: 50,
	}
}

func TestSoilWaterConstantsHalaba(t *testing.T) {
	fc, pwp, err := SoilWaterConstants(testSoil(), PedotransferHalaba)
	if err != nil {
		t.Fatalf("SoilWaterConstants error: %v", err)
	}
	if !approxEqual(fc, 98.6276153846154, 1e-9) {
		t.Fatalf("field capacity = %v, want 98.63", fc)
	}
	if !approxEqual(pwp, 49.268, 1e-9) {
		t.Fatalf("wilting point = %v, want 49.27", pwp)
	}

	// An empty method selects Halaba.
	fc2, pwp2, err := SoilWaterConstants(testSoil(), "")
	if err != nil || fc2 != fc || pwp2 != pwp {
		t.Fatalf("default method = (%v, %v, %v), want (%v, %v, nil)", fc2, pwp2, err, fc, pwp)
	}
}

func TestSoilWaterConstantsHollis(t *testing.T) {
	fc, pwp, err := SoilWaterConstants(testSoil(), PedotransferHollis)
	if err != nil {
		t.Fatalf("SoilWaterConstants error: %v", err)
	}
	if fc <= pwp || pwp <= 0 {
		t.Fatalf("hollis constants fc=%v pwp=%v, want 0 < pwp < fc", fc, pwp)
	}
}

func TestSoilWaterConstantsRejectsBadSoil(t *testing.T) {
	bad := testSoil()
	bad.Depth = 0
	if _, _, err := SoilWaterConstants(bad, PedotransferHalaba); !errors.Is(err, ErrInvalidSoil) {
		t.Fatalf("zero depth error = %v, want ErrInvalidSoil", err)
	}
	if _, _, err := SoilWaterConstants(testSoil(), "brooks-corey"); !errors.Is(err, ErrInvalidSoil) {
		t.Fatalf("unknown method error = %v, want ErrInvalidSoil", err)
	}
}

func TestSoilWaterEngineSteps(t *testing.T) {
	e := NewSoilWaterEngine(100, 50, 30)

	tests := []struct {
		name                string
		precip, pet, irrig  float64
		wantWC, wantAET, dr float64
	}{
		{"start at midpoint", 80, 40, 0, 75, 25, 0},
		{"clamped to field capacity", 80, 40, 0, 100, 40, 0},
		{"clamped to wilting point", 10, 100, 0, 50, 0, 0},
		{"wet month drains", 200, 10, 5, 100, 10, 140},
		{"drainage carries over", 0, 0, 0, 100, 0, 90},
	}
	for i, tt := range tests {
		got := e.Step(i, tt.precip, tt.pet, tt.irrig, 0)
		if !approxEqual(got.WaterContent, tt.wantWC, 1e-12) {
			t.Fatalf("%s: water content = %v, want %v", tt.name, got.WaterContent, tt.wantWC)
		}
		if !approxEqual(got.AET, tt.wantAET, 1e-12) {
			t.Fatalf("%s: AET = %v, want %v", tt.name, got.AET, tt.wantAET)
		}
		if !approxEqual(got.Drainage, tt.dr, 1e-12) {
			t.Fatalf("%s: drainage = %v, want %v", tt.name, got.Drainage, tt.dr)
		}
		if got.Irrigation != tt.irrig || got.FieldCapacity != 100 || got.WiltingPoint != 50 {
			t.Fatalf("%s: step = %+v", tt.name, got)
		}
	}
}

func TestSoilWaterEngineRootDepthScalesDrainage(t *testing.T) {
	e := NewSoilWaterEngine(100, 50, 30)
	got := e.Step(0, 80, 40, 0, 60)
	if !approxEqual(got.Drainage, 40, 1e-12) {
		t.Fatalf("drainage = %v, want 40", got.Drainage)
	}
}

func TestSoilWaterEngineReset(t *testing.T) {
	e := NewSoilWaterEngine(100, 50, 30)
	e.Step(0, 80, 40, 0, 0)
	e.Step(1, 80, 40, 0, 0)
	e.Reset()
	if got := e.Step(1, 80, 40, 0, 0); got.WaterContent != 75 {
		t.Fatalf("water content after reset = %v, want midpoint 75", got.WaterContent)
	}
}

func TestSoilWaterEngineCarriedDrainage(t *testing.T) {
	e := NewSoilWaterEngine(100, 50, 30)
	e.CarryDrainage(90)

	got := e.Step(0, 0, 0, 0, 0)
	if got.WaterContent != 75 {
		t.Fatalf("water content = %v, want midpoint 75", got.WaterContent)
	}
	if !approxEqual(got.Drainage, 40, 1e-12) {
		t.Fatalf("drainage = %v, want 40 continued from 90", got.Drainage)
	}

	e.Reset()
	if got := e.Step(0, 0, 0, 0, 0); got.Drainage != 0 {
		t.Fatalf("drainage after reset = %v, want 0", got.Drainage)
	}
}
