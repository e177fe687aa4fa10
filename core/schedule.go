package core

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

// ParameterSource resolves crop, organic waste and fertiliser parameter sets
// by name. *kb.KnowledgeBase satisfies it.
type ParameterSource interface {
	GetCrop(name string) (model.CropParameters, error)
	GetWaste(name string) (model.OrganicWasteParameters, error)
	GetFertiliser(name string) (model.FertiliserParameters, error)
}

// MonthPlan is the management of one month of a schedule.
type MonthPlan struct {
	Crop model.CropParameters
	// InSeason is true between sowing and harvest of the current crop.
	InSeason      bool
	GrowingMonths int

	PlantInput float64 // t C ha-1
	Irrigation float64 // mm

	// Waste is the organic waste type carried by the month. Months without an
	// application carry the type with a zero amount.
	Waste       model.OrganicWasteParameters
	HasWaste    bool
	WasteAmount float64 // t ha-1

	FertNO3 float64 // kg N ha-1
	FertNH4 float64 // kg N ha-1
}

// WasteCarbon is the organic-waste carbon applied this month (t C ha-1).
func (m MonthPlan) WasteCarbon() float64 {
	if !m.HasWaste {
		return 0
	}
	return m.WasteAmount * m.Waste.CarbonFraction
}

// WasteAmmonium is the ammonium-N applied with organic waste (kg N ha-1).
func (m MonthPlan) WasteAmmonium() float64 {
	if !m.HasWaste || m.Waste.CNRatio <= 0 {
		return 0
	}
	return m.WasteCarbon() / m.Waste.CNRatio * 1000 * m.Waste.PropNH4
}

// Schedule is a month-by-month management plan covering whole years.
type Schedule struct {
	Months []MonthPlan
}

// Len is the number of monthly timesteps.
func (s *Schedule) Len() int { return len(s.Months) }

// PlantInputs returns a copy of the monthly plant inputs.
func (s *Schedule) PlantInputs() []float64 {
	out := make([]float64, len(s.Months))
	for i, m := range s.Months {
		out[i] = m.PlantInput
	}
	return out
}

// WithPlantInputs returns a copy of the schedule carrying the given monthly
// plant inputs. pi must have one value per month.
func (s *Schedule) WithPlantInputs(pi []float64) *Schedule {
	out := &Schedule{Months: append([]MonthPlan(nil), s.Months...)}
	for i := range out.Months {
		if i < len(pi) {
			out.Months[i].PlantInput = pi[i]
		}
	}
	return out
}

// Scaled returns a copy of the schedule with every plant input multiplied by f.
func (s *Schedule) Scaled(f float64) *Schedule {
	pi := s.PlantInputs()
	for i := range pi {
		pi[i] *= f
	}
	return s.WithPlantInputs(pi)
}

// BuildSchedule expands crop events into a monthly schedule of
// 12*ceil(lastHarvest/12) months. Each month gets exactly one current crop:
// crops carry forward from their sowing month to the next sowing, and the
// first crop fills the months before it. Unknown crop, waste and fertiliser
// names and management events outside the schedule fail with a *LookupError.
func BuildSchedule(unit string, events []model.CropEvent, params ParameterSource) (*Schedule, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("unit %q: %w", unit, ErrEmptySchedule)
	}
	evs := append([]model.CropEvent(nil), events...)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].SowMonth < evs[j].SowMonth })

	lastHarvest := 0
	for i, ev := range evs {
		if ev.SowMonth < 1 || ev.HarvestMonth < ev.SowMonth {
			return nil, fmt.Errorf("unit %q: %w: %s sown in month %d, harvested in month %d",
				unit, ErrInconsistentSeason, ev.Crop, ev.SowMonth, ev.HarvestMonth)
		}
		if i > 0 && ev.SowMonth <= evs[i-1].HarvestMonth {
			return nil, fmt.Errorf("unit %q: %w: %s sown in month %d before %s harvested in month %d",
				unit, ErrInconsistentSeason, ev.Crop, ev.SowMonth, evs[i-1].Crop, evs[i-1].HarvestMonth)
		}
		if ev.HarvestMonth > lastHarvest {
			lastHarvest = ev.HarvestMonth
		}
	}
	n := 12 * ((lastHarvest + 11) / 12)

	crops := make([]model.CropParameters, len(evs))
	for i, ev := range evs {
		crop, err := params.GetCrop(ev.Crop)
		if err != nil {
			return nil, &LookupError{Unit: unit, Field: "crop", Name: ev.Crop, Err: err}
		}
		crops[i] = crop
	}

	months := make([]MonthPlan, n)
	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}

	for i, ev := range evs {
		crop := crops[i]
		window := ev.HarvestMonth - ev.SowMonth + 1
		if len(crop.PlantInputs) < window {
			return nil, fmt.Errorf("unit %q: %w: %s window of %d months but %d plant inputs",
				unit, ErrInconsistentSeason, crop.Name, window, len(crop.PlantInputs))
		}
		for k := 0; k < window; k++ {
			m := ev.SowMonth - 1 + k
			owner[m] = i
			months[m].InSeason = true
			months[m].GrowingMonths = window
			months[m].PlantInput = crop.PlantInputs[k]
		}
	}

	// Fill forward from each crop window, then backward before the first.
	for m := 1; m < n; m++ {
		if owner[m] < 0 {
			owner[m] = owner[m-1]
		}
	}
	for m := n - 2; m >= 0; m-- {
		if owner[m] < 0 {
			owner[m] = owner[m+1]
		}
	}
	for m := range months {
		if owner[m] < 0 {
			return nil, fmt.Errorf("unit %q: %w: month %d", unit, ErrScheduleGap, m+1)
		}
		months[m].Crop = crops[owner[m]]
		if !months[m].InSeason {
			months[m].GrowingMonths = evs[owner[m]].HarvestMonth - evs[owner[m]].SowMonth + 1
		}
	}

	if err := applyEvents(unit, evs, months, params); err != nil {
		return nil, err
	}
	return &Schedule{Months: months}, nil
}

func applyEvents(unit string, evs []model.CropEvent, months []MonthPlan, params ParameterSource) error {
	n := len(months)
	inRange := func(m int) bool { return m >= 1 && m <= n }
	invalid := func(field string, month int) error {
		return &LookupError{Unit: unit, Field: field, Name: strconv.Itoa(month),
			Err: fmt.Errorf("%w: month outside 1..%d", ErrInvalidEvent, n)}
	}

	applied := make([]bool, n)
	for _, ev := range evs {
		for m, mm := range ev.Irrigation {
			if !inRange(m) {
				return invalid("irrigation", m)
			}
			if mm < 0 {
				return &LookupError{Unit: unit, Field: "irrigation", Name: strconv.Itoa(m),
					Err: fmt.Errorf("%w: negative amount %g mm", ErrInvalidEvent, mm)}
			}
			months[m-1].Irrigation = mm
		}

		switch {
		case ev.FertN < 0:
			return &LookupError{Unit: unit, Field: "fert_n", Name: ev.Crop,
				Err: fmt.Errorf("%w: negative amount %g kg N", ErrInvalidEvent, ev.FertN)}
		case ev.FertN > 0 && !inRange(ev.FertMonth):
			return invalid("fert_month", ev.FertMonth)
		case ev.FertN > 0:
			propNO3 := 0.0
			if ev.FertType != "" {
				fert, err := params.GetFertiliser(ev.FertType)
				if err != nil {
					return &LookupError{Unit: unit, Field: "fert_type", Name: ev.FertType, Err: err}
				}
				propNO3 = fert.PropNO3
			}
			months[ev.FertMonth-1].FertNO3 += ev.FertN * propNO3
			months[ev.FertMonth-1].FertNH4 += ev.FertN * (1 - propNO3)
		}

		switch {
		case ev.WasteAmount < 0:
			return &LookupError{Unit: unit, Field: "waste_amount", Name: ev.Crop,
				Err: fmt.Errorf("%w: negative amount %g t", ErrInvalidEvent, ev.WasteAmount)}
		case ev.WasteType == "" && ev.WasteAmount > 0:
			return &LookupError{Unit: unit, Field: "waste_type", Name: ev.Crop,
				Err: fmt.Errorf("%w: waste amount without a waste type", ErrInvalidEvent)}
		case ev.WasteType != "" && !inRange(ev.WasteMonth):
			return invalid("waste_month", ev.WasteMonth)
		case ev.WasteType != "":
			waste, err := params.GetWaste(ev.WasteType)
			if err != nil {
				return &LookupError{Unit: unit, Field: "waste_type", Name: ev.WasteType, Err: err}
			}
			months[ev.WasteMonth-1].Waste = waste
			months[ev.WasteMonth-1].HasWaste = true
			months[ev.WasteMonth-1].WasteAmount += ev.WasteAmount
			applied[ev.WasteMonth-1] = true
		}
	}

	// Months after an application carry its waste type with zero amount;
	// months before the first application carry the first type.
	first := -1
	for m := range months {
		if applied[m] {
			if first < 0 {
				first = m
			}
			continue
		}
		if m > 0 && months[m-1].HasWaste {
			months[m].Waste = months[m-1].Waste
			months[m].HasWaste = true
		}
	}
	for m := 0; m < first; m++ {
		months[m].Waste = months[first].Waste
		months[m].HasWaste = true
	}
	return nil
}
