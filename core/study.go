package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/soilcn-simulator/internal/logging"
	"github.com/signalsfoundry/soilcn-simulator/kb"
	"github.com/signalsfoundry/soilcn-simulator/model"
)

// StudyFormat selects the decoder for a study document.
type StudyFormat string

const (
	FormatJSON StudyFormat = "json"
	FormatYAML StudyFormat = "yaml"
)

// FormatFromPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatFromPath(path string) StudyFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Study is a decoded study: the shared parameter tables and weather plus the
// management units to run against them.
type Study struct {
	Name      string
	Latitude  float64
	Longitude float64
	Calendar  Calendar
	Nitrogen  model.NitrogenParameters

	Params      *kb.KnowledgeBase
	SteadyState model.Weather
	Forward     model.Weather
	Units       []Unit
}

type studyDoc struct {
	Name     string `json:"name" yaml:"name"`
	Location struct {
		Latitude  float64 `json:"latitude" yaml:"latitude"`
		Longitude float64 `json:"longitude" yaml:"longitude"`
	} `json:"location" yaml:"location"`
	SteadyStateStartYear int                       `json:"steady_state_start_year" yaml:"steady_state_start_year"`
	ForwardStartYear     int                       `json:"forward_start_year" yaml:"forward_start_year"`
	Nitrogen             *model.NitrogenParameters `json:"nitrogen,omitempty" yaml:"nitrogen,omitempty"`

	Crops       []model.CropParameters         `json:"crops" yaml:"crops"`
	Wastes      []model.OrganicWasteParameters `json:"organic_wastes" yaml:"organic_wastes"`
	Fertilisers []model.FertiliserParameters   `json:"fertilisers" yaml:"fertilisers"`

	Weather struct {
		SteadyState weatherDoc `json:"steady_state" yaml:"steady_state"`
		Forward     weatherDoc `json:"forward" yaml:"forward"`
	} `json:"weather" yaml:"weather"`

	Units []Unit `json:"units" yaml:"units"`
}

// weatherDoc leaves PET optional; a missing series is derived with
// Thornthwaite.
type weatherDoc struct {
	Precip []float64 `json:"precip" yaml:"precip"`
	Tair   []float64 `json:"tair" yaml:"tair"`
	PET    []float64 `json:"pet,omitempty" yaml:"pet,omitempty"`
}

// LoadStudy reads and decodes the study file at path.
func LoadStudy(ctx context.Context, path string, log logging.Logger) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study: %w", err)
	}
	return DecodeStudy(ctx, bytes.NewReader(data), FormatFromPath(path), log)
}

// DecodeStudy decodes a study document from r, registers its parameter
// tables in a new knowledge base, derives missing PET and fills NPP-based
// plant inputs.
func DecodeStudy(ctx context.Context, r io.Reader, format StudyFormat, log logging.Logger) (*Study, error) {
	if log == nil {
		log = logging.Noop()
	}

	var doc studyDoc
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidStudy, err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidStudy, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidStudy, format)
	}
	if len(doc.Units) == 0 {
		return nil, fmt.Errorf("%w: no management units", ErrInvalidStudy)
	}

	st := &Study{
		Name:      doc.Name,
		Latitude:  doc.Location.Latitude,
		Longitude: doc.Location.Longitude,
		Calendar: Calendar{
			SteadyStartYear:   orDefault(doc.SteadyStateStartYear, 2000),
			SteadyStartMonth:  time.January,
			ForwardStartYear:  orDefault(doc.ForwardStartYear, 2000),
			ForwardStartMonth: time.January,
		},
		Nitrogen: model.DefaultNitrogenParameters(),
		Params:   kb.NewKnowledgeBase(),
		Units:    doc.Units,
	}
	if doc.Nitrogen != nil {
		st.Nitrogen = *doc.Nitrogen
	}
	unsubscribe := st.Params.Subscribe(func(ev kb.Event) {
		log.Debug(ctx, "parameter set registered",
			logging.String("kind", ev.Type.String()), logging.String("name", ev.Name))
	})
	defer unsubscribe()

	var err error
	st.SteadyState, err = weatherFromDoc(ctx, "steady_state", doc.Weather.SteadyState, st.Latitude, st.Calendar.SteadyStartYear, log)
	if err != nil {
		return nil, err
	}
	st.Forward, err = weatherFromDoc(ctx, "forward", doc.Weather.Forward, st.Latitude, st.Calendar.ForwardStartYear, log)
	if err != nil {
		return nil, err
	}

	var avg model.Weather
	for _, c := range doc.Crops {
		if len(c.PlantInputs) == 0 && c.NPPLandCover != "" {
			if avg.Len() == 0 {
				avg, err = AverageWeather(st.SteadyState.Precip, st.SteadyState.Tair, st.Latitude)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidStudy, err)
				}
			}
			c, err = FillPlantInputsFromNPP(c, avg)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidStudy, err)
			}
			log.Debug(ctx, "plant inputs estimated from NPP",
				logging.String("crop", c.Name), logging.String("land_cover", c.NPPLandCover))
		}
		if err := st.Params.AddCrop(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStudy, err)
		}
	}
	for _, w := range doc.Wastes {
		if err := st.Params.AddWaste(w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStudy, err)
		}
	}
	for _, f := range doc.Fertilisers {
		if err := st.Params.AddFertiliser(f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStudy, err)
		}
	}

	log.Info(ctx, "study loaded",
		logging.String("study", st.Name),
		logging.Int("units", len(st.Units)),
		logging.Int("crops", len(doc.Crops)),
		logging.Int("steady_state_months", st.SteadyState.Len()),
		logging.Int("forward_months", st.Forward.Len()),
	)
	return st, nil
}

// NewSimulator builds a simulator over the study's parameters, weather,
// calendar and nitrogen constants. opts are applied after those.
func (st *Study) NewSimulator(log logging.Logger, opts ...SimulatorOption) *Simulator {
	ncfg := DefaultNitrogenConfig()
	ncfg.Params = st.Nitrogen
	base := []SimulatorOption{WithCalendar(st.Calendar), WithNitrogenConfig(ncfg)}
	return NewSimulator(st.Params, st.SteadyState, st.Forward, log, append(base, opts...)...)
}

func weatherFromDoc(ctx context.Context, name string, w weatherDoc, lat float64, startYear int, log logging.Logger) (model.Weather, error) {
	if len(w.PET) == 0 {
		out, err := WeatherFromClimate(ctx, w.Precip, w.Tair, lat, startYear, log.With(logging.String("weather", name)))
		if err != nil {
			return model.Weather{}, fmt.Errorf("%w: %s weather: %v", ErrInvalidStudy, name, err)
		}
		return out, nil
	}
	if len(w.PET) != len(w.Tair) || len(w.Precip) != len(w.Tair) {
		return model.Weather{}, fmt.Errorf("%w: %s weather: series lengths differ (precip %d, tair %d, pet %d)",
			ErrInvalidStudy, name, len(w.Precip), len(w.Tair), len(w.PET))
	}
	return model.Weather{Precip: w.Precip, Tair: w.Tair, PET: w.PET}, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
