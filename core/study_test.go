package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/soilcn-simulator/kb"
)

const studyJSON = `{
  "name": "demo",
  "location": {"latitude": 52.2, "longitude": -1.5},
  "steady_state_start_year": 1981,
  "forward_start_year": 2011,
  "crops": [
    {"name": "Grass", "plant_inputs": [2,2,2,2,2,2,2,2,2,2,2,2], "dpm_rpm_ratio": 1.44,
     "sow_month": 1, "harvest_month": 12, "cn_ratio": 20, "n_supply_opt": 100, "n_response_coef": 1},
    {"name": "Pasture", "npp_land_cover": "gra", "perennial": true, "dpm_rpm_ratio": 1.44,
     "sow_month": 1, "harvest_month": 12, "cn_ratio": 20}
  ],
  "organic_wastes": [{"name": "FYM", "cn_ratio": 15, "prop_nh4": 0.1, "dpm_hum_ratio": 0.49, "prop_iom": 0.05, "carbon_fraction": 0.3}],
  "fertilisers": [{"name": "Urea", "prop_no3": 0}],
  "weather": {
    "steady_state": {
      "precip": [80,80,80,80,80,80,80,80,80,80,80,80],
      "tair": [15,15,15,15,15,15,15,15,15,15,15,15],
      "pet": [40,40,40,40,40,40,40,40,40,40,40,40]
    },
    "forward": {
      "precip": [70,60,60,50,50,40,40,50,60,70,80,80],
      "tair": [3,4,6,9,12,15,17,16,14,10,6,4]
    }
  },
  "units": [
    {"name": "field-a",
     "soil": {"depth": 30, "bulk_density": 1.3, "ph": 7, "clay_percent": 20, "silt_percent": 40, "sand_percent": 40, "measured_soc": 50},
     "steady_state": [{"crop": "Grass", "sow_month": 1, "harvest_month": 12}],
     "forward": [{"crop": "Pasture", "sow_month": 1, "harvest_month": 12, "fert_type": "Urea", "fert_n": 50, "fert_month": 4,
                  "irrigation": {"6": 20}}]}
  ]
}`

const studyYAML = `
name: demo-yaml
location:
  latitude: 52.2
crops:
  - name: Grass
    plant_inputs: [2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2]
    dpm_rpm_ratio: 1.44
    sow_month: 1
    harvest_month: 12
    cn_ratio: 20
weather:
  steady_state:
    precip: [80, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80]
    tair: [15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15]
    pet: [40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40]
  forward:
    precip: [80, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80]
    tair: [15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15]
    pet: [40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40]
units:
  - name: field-y
    soil:
      depth: 30
      bulk_density: 1.3
      ph: 7
      clay_percent: 20
      silt_percent: 40
      sand_percent: 40
      measured_soc: 50
    steady_state:
      - crop: Grass
        sow_month: 1
        harvest_month: 12
        irrigation:
          3: 10
`

func TestDecodeStudyJSON(t *testing.T) {
	st, err := DecodeStudy(context.Background(), strings.NewReader(studyJSON), FormatJSON, nil)
	if err != nil {
		t.Fatalf("DecodeStudy error: %v", err)
	}
	if st.Name != "demo" || st.Latitude != 52.2 || st.Calendar.SteadyStartYear != 1981 || st.Calendar.ForwardStartYear != 2011 {
		t.Fatalf("study header = %+v", st)
	}
	if st.Nitrogen.PrecipCritical != 21 {
		t.Fatalf("nitrogen defaults not applied: %+v", st.Nitrogen)
	}
	if st.Forward.Len() != 12 || st.Forward.PET[6] <= st.Forward.PET[0] {
		t.Fatalf("forward PET not derived: %v", st.Forward.PET)
	}

	pasture, err := st.Params.GetCrop("Pasture")
	if err != nil {
		t.Fatalf("GetCrop error: %v", err)
	}
	want, _ := MiamiDyce("gra", 15, 960)
	if len(pasture.PlantInputs) != 12 || !approxEqual(sum(pasture.PlantInputs), want, 1e-9) {
		t.Fatalf("pasture inputs = %v, want 12 months summing to %v", pasture.PlantInputs, want)
	}
	if _, err := st.Params.GetFertiliser("Urea"); err != nil {
		t.Fatalf("GetFertiliser error: %v", err)
	}

	u := st.Units[0]
	if u.Soil.MeasuredSOC != 50 || len(u.Forward) != 1 || u.Forward[0].Irrigation[6] != 20 {
		t.Fatalf("unit = %+v", u)
	}
}

func TestDecodeStudyYAMLRuns(t *testing.T) {
	st, err := DecodeStudy(context.Background(), strings.NewReader(studyYAML), FormatYAML, nil)
	if err != nil {
		t.Fatalf("DecodeStudy error: %v", err)
	}
	if st.Units[0].SteadyState[0].Irrigation[3] != 10 {
		t.Fatalf("irrigation = %v", st.Units[0].SteadyState[0].Irrigation)
	}
	if st.Calendar.SteadyStartYear != 2000 {
		t.Fatalf("default start year = %d, want 2000", st.Calendar.SteadyStartYear)
	}

	out, err := RunStudy(context.Background(), st.NewSimulator(nil), st.Units, 1)
	if err != nil {
		t.Fatalf("RunStudy error: %v", err)
	}
	if out[0].Err != nil || out[0].Result.Forward == nil {
		t.Fatalf("outcome = %+v", out[0])
	}
}

func TestDecodeStudyErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		doc    string
		format StudyFormat
	}{
		{"malformed json", `{"name": `, FormatJSON},
		{"unknown field", `{"nmae": "x", "units": [{"name": "a"}]}`, FormatJSON},
		{"no units", `{"name": "x"}`, FormatJSON},
		{"partial year weather", `{"units": [{"name": "a"}], "weather": {"steady_state": {"precip": [1], "tair": [1]}}}`, FormatJSON},
		{"unknown format", `{}`, StudyFormat("toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeStudy(ctx, strings.NewReader(tt.doc), tt.format, nil); !errors.Is(err, ErrInvalidStudy) {
				t.Fatalf("error = %v, want ErrInvalidStudy", err)
			}
		})
	}
}

func TestDecodeStudyDuplicateCrop(t *testing.T) {
	doc := strings.Replace(studyJSON, `"name": "Pasture"`, `"name": "Grass"`, 1)
	_, err := DecodeStudy(context.Background(), strings.NewReader(doc), FormatJSON, nil)
	if !errors.Is(err, ErrInvalidStudy) || !strings.Contains(err.Error(), kb.ErrExists.Error()) {
		t.Fatalf("error = %v, want duplicate crop rejected", err)
	}
}

func TestLoadStudyPicksFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.yml")
	if err := os.WriteFile(path, []byte(studyYAML), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	st, err := LoadStudy(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("LoadStudy error: %v", err)
	}
	if st.Name != "demo-yaml" {
		t.Fatalf("name = %q, want demo-yaml", st.Name)
	}
	if _, err := LoadStudy(context.Background(), filepath.Join(dir, "missing.json"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if got := FormatFromPath("a/b.JSON"); got != FormatJSON {
		t.Fatalf("FormatFromPath = %q, want json", got)
	}
}
