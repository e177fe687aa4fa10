package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

func TestRunStudyRecordsPerUnitOutcomes(t *testing.T) {
	metrics := &recordingMetrics{}
	sim := newTestSimulator(t, WithMetricsRecorder(metrics))

	broken := grassUnit()
	broken.Name = "field-b"
	broken.SteadyState = []model.CropEvent{{Crop: "Rice", SowMonth: 1, HarvestMonth: 12}}
	other := grassUnit()
	other.Name = "field-c"

	units := []Unit{grassUnit(), broken, other}
	out, err := RunStudy(context.Background(), sim, units, 2)
	if err != nil {
		t.Fatalf("RunStudy error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(out))
	}
	for i, u := range units {
		if out[i].Unit != u.Name {
			t.Fatalf("outcome %d unit = %q, want %q", i, out[i].Unit, u.Name)
		}
	}
	if out[0].Err != nil || out[0].Result.Forward == nil {
		t.Fatalf("field-a outcome = %+v", out[0])
	}
	var lookup *LookupError
	if !errors.As(out[1].Err, &lookup) || lookup.Name != "Rice" {
		t.Fatalf("field-b error = %v, want crop lookup error", out[1].Err)
	}
	if out[2].Err != nil || out[2].Result.Forward == nil {
		t.Fatalf("field-c outcome = %+v", out[2])
	}
	if out[0].Result.RunID == out[2].Result.RunID {
		t.Fatalf("units share run id %q", out[0].Result.RunID)
	}
	if metrics.started != 3 || len(metrics.outcomes) != 3 {
		t.Fatalf("metrics started %d outcomes %v", metrics.started, metrics.outcomes)
	}
}

func TestRunStudyNonConvergenceIsNotFatal(t *testing.T) {
	sim := newTestSimulator(t, WithConvergence(ConvergenceConfig{MaxIterations: 2, Tolerance: 1e-7, ProgressInterval: time.Hour}))
	out, err := RunStudy(context.Background(), sim, []Unit{grassUnit()}, 0)
	if err != nil {
		t.Fatalf("RunStudy error: %v", err)
	}
	if !errors.Is(out[0].Err, ErrNotConverged) || out[0].Result.Forward != nil {
		t.Fatalf("outcome = %+v, want not converged without forward run", out[0])
	}
}

func TestRunStudyCancelled(t *testing.T) {
	sim := newTestSimulator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunStudy(ctx, sim, []Unit{grassUnit(), grassUnit()}, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestUnitOutcomeStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "converged"},
		{&ConvergenceError{Unit: "a", Iterations: 3}, "not_converged"},
		{ErrInvalidSoil, "failed"},
	}
	for _, tt := range tests {
		if got := (UnitOutcome{Err: tt.err}).Status(); got != tt.want {
			t.Fatalf("Status(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
