package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/soilcn-simulator/internal/report"
)

const testStudy = `{
  "name": "cli",
  "location": {"latitude": 0},
  "crops": [
    {"name": "Grass", "plant_inputs": [2,2,2,2,2,2,2,2,2,2,2,2], "dpm_rpm_ratio": 1.44,
     "sow_month": 1, "harvest_month": 12, "cn_ratio": 20}
  ],
  "weather": {
    "steady_state": {
      "precip": [80,80,80,80,80,80,80,80,80,80,80,80],
      "tair": [15,15,15,15,15,15,15,15,15,15,15,15],
      "pet": [40,40,40,40,40,40,40,40,40,40,40,40]
    },
    "forward": {
      "precip": [80,80,80,80,80,80,80,80,80,80,80,80],
      "tair": [15,15,15,15,15,15,15,15,15,15,15,15],
      "pet": [40,40,40,40,40,40,40,40,40,40,40,40]
    }
  },
  "units": [
    {"name": "plot1",
     "soil": {"depth": 30, "bulk_density": 1.3, "ph": 7, "clay_percent": 20, "silt_percent": 40, "sand_percent": 40, "measured_soc": 50},
     "steady_state": [{"crop": "Grass", "sow_month": 1, "harvest_month": 12}]}%s
  ]
}`

const unknownCropUnit = `,
    {"name": "plot2",
     "soil": {"depth": 30, "bulk_density": 1.3, "ph": 7, "clay_percent": 20, "silt_percent": 40, "sand_percent": 40, "measured_soc": 50},
     "steady_state": [{"crop": "Teff", "sow_month": 1, "harvest_month": 12}]}`

func writeStudy(t *testing.T, extraUnits string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.json")
	body := strings.Replace(testStudy, "%s", extraUnits, 1)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write study: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunWritesTablesAndRunLog(t *testing.T) {
	study := writeStudy(t, "")
	outDir := filepath.Join(t.TempDir(), "out")
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	stdout, stderr, err := execute(t, "run", study, "--output", outDir, "--sqlite", dbPath, "--workers", "2")
	if err != nil {
		t.Fatalf("run error: %v\nlogs:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "plot1") || !strings.Contains(stdout, "converged") {
		t.Fatalf("stdout = %q, want plot1 converged", stdout)
	}
	if !strings.Contains(stderr, "study finished") {
		t.Fatalf("logs missing completion line:\n%s", stderr)
	}

	for _, name := range []string{"carbon", "nitrogen", "water", "summary"} {
		path := filepath.Join(outDir, "cli_plot1_"+name+".csv")
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s table: %v", name, err)
		}
	}

	db, err := report.NewSQLiteSink(dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	runs, err := db.Runs(context.Background())
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}
	if len(runs) != 1 || runs[0].Unit != "plot1" || runs[0].Status != "converged" {
		t.Fatalf("runs = %+v, want one converged plot1 run", runs)
	}
}

func TestRunReportsFailedUnits(t *testing.T) {
	study := writeStudy(t, unknownCropUnit)
	outDir := t.TempDir()

	stdout, _, err := execute(t, "run", study, "--output", outDir)
	if !errors.Is(err, errUnitsFailed) {
		t.Fatalf("run error = %v, want errUnitsFailed", err)
	}
	if !strings.Contains(stdout, "plot2") || !strings.Contains(stdout, "failed") {
		t.Fatalf("stdout = %q, want plot2 failed", stdout)
	}
	if _, err := os.Stat(filepath.Join(outDir, "cli_plot1_carbon.csv")); err != nil {
		t.Fatalf("converged unit not written: %v", err)
	}
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	study := writeStudy(t, "")
	if _, _, err := execute(t, "run", study, "--pedotransfer", "saxton"); err == nil {
		t.Fatal("expected error for unknown pedotransfer method")
	}
	if _, _, err := execute(t, "run"); err == nil {
		t.Fatal("expected error without a study argument")
	}
	if _, _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing study file")
	}
}

func TestPETCommand(t *testing.T) {
	stdout, _, err := execute(t, "pet", "--lat", "0", "--temps", "20,20,20,20,20,20,20,20,20,20,20,20")
	if err != nil {
		t.Fatalf("pet error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 13 {
		t.Fatalf("pet printed %d lines, want header plus 12 months:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[1], "January") || !strings.HasSuffix(lines[1], "76.33") {
		t.Fatalf("January line = %q, want 76.33 mm", lines[1])
	}
	if !strings.HasSuffix(lines[2], "68.94") {
		t.Fatalf("February line = %q, want 68.94 mm", lines[2])
	}
}

func TestPETCommandRequiresTwelveTemperatures(t *testing.T) {
	if _, _, err := execute(t, "pet", "--temps", "1,2,3"); err == nil {
		t.Fatal("expected error for three temperatures")
	}
	if _, _, err := execute(t, "pet"); err == nil {
		t.Fatal("expected error without --temps")
	}
}
