package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTablesCoverBothPhases(t *testing.T) {
	sim := newTestSimulator(t)
	res, err := sim.RunUnit(context.Background(), grassUnit())
	if err != nil {
		t.Fatalf("RunUnit error: %v", err)
	}

	for _, tbl := range []Table{CarbonTable(res), NitrogenTable(res), WaterTable(res)} {
		if len(tbl.Rows) != 24 {
			t.Fatalf("%s rows = %d, want 24", tbl.Name, len(tbl.Rows))
		}
		var periods []Phase
		var months, tsteps []int
		for _, r := range tbl.Rows {
			if len(r.Values) != len(tbl.Columns) {
				t.Fatalf("%s row %d has %d values for %d columns", tbl.Name, r.Timestep, len(r.Values), len(tbl.Columns))
			}
			periods = append(periods, r.Period)
			months = append(months, r.Month)
			tsteps = append(tsteps, r.Timestep)
		}
		if periods[11] != PhaseSteadyState || periods[12] != PhaseForward {
			t.Fatalf("%s periods = %v", tbl.Name, periods)
		}
		if diff := cmp.Diff([]int{1, 2, 3}, months[12:15]); diff != "" {
			t.Fatalf("%s months mismatch (-want +got):\n%s", tbl.Name, diff)
		}
		if tsteps[0] != 1 || tsteps[23] != 24 {
			t.Fatalf("%s timesteps = %v", tbl.Name, tsteps)
		}
	}

	carbon := CarbonTable(res)
	last := carbon.Rows[11]
	if got := last.Values[columnIndex(t, carbon, "total")]; got != res.SteadyState.FinalCarbon.Total() {
		t.Fatalf("steady-state final total = %v, want %v", got, res.SteadyState.FinalCarbon.Total())
	}
	if got := carbon.Rows[0].Values[columnIndex(t, carbon, "pi")]; got != res.SteadyState.PlantInputs[0] {
		t.Fatalf("first plant input = %v, want %v", got, res.SteadyState.PlantInputs[0])
	}
	nitrogen := NitrogenTable(res)
	if got := nitrogen.Rows[23].Values[columnIndex(t, nitrogen, "no3_end")]; got != res.Forward.FinalNitrogen.NO3 {
		t.Fatalf("final nitrate = %v, want %v", got, res.Forward.FinalNitrogen.NO3)
	}
}

func TestSummaryTable(t *testing.T) {
	sim := newTestSimulator(t)
	res, err := sim.RunUnit(context.Background(), grassUnit())
	if err != nil {
		t.Fatalf("RunUnit error: %v", err)
	}
	rows := SummaryTable(res)
	if len(rows) != 2 || rows[0].Label != "Starting conditions" || rows[1].Label != "Ending conditions" {
		t.Fatalf("summary = %+v", rows)
	}
	if got := rows[1].Values(); len(got) != len(SummaryColumns) || got[6] != rows[1].Total {
		t.Fatalf("summary values = %v", got)
	}
	if SummaryTable(&UnitResult{Unit: "x"}) != nil {
		t.Fatalf("expected nil summary without a steady state")
	}
}

func TestTablesOfEmptyResult(t *testing.T) {
	tbl := CarbonTable(nil)
	if tbl.Name != TableCarbon || len(tbl.Rows) != 0 || len(tbl.Columns) == 0 {
		t.Fatalf("empty table = %+v", tbl)
	}
}

func columnIndex(t *testing.T, tbl Table, name string) int {
	t.Helper()
	for i, c := range tbl.Columns {
		if c == name {
			return i
		}
	}
	t.Fatalf("%s has no column %q", tbl.Name, name)
	return -1
}
