package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/soilcn-simulator/internal/logging"
	"github.com/signalsfoundry/soilcn-simulator/internal/observability"
	"github.com/signalsfoundry/soilcn-simulator/model"
	"github.com/signalsfoundry/soilcn-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/soilcn-simulator/core"

// Phase tags the run phase a timestep belongs to.
type Phase string

const (
	PhaseSteadyState Phase = "steady state"
	PhaseForward     Phase = "forward run"
)

func (p Phase) metricLabel() string {
	if p == PhaseForward {
		return "forward_run"
	}
	return "steady_state"
}

// Unit is one management unit: a soil and its steady-state and forward
// crop rotations.
type Unit struct {
	Name        string               `json:"name" yaml:"name"`
	Soil        model.SoilParameters `json:"soil" yaml:"soil"`
	SteadyState []model.CropEvent    `json:"steady_state" yaml:"steady_state"`
	// Forward defaults to the steady-state rotation when empty.
	Forward []model.CropEvent `json:"forward,omitempty" yaml:"forward,omitempty"`
}

// TimestepResult is the combined water, carbon and nitrogen state of one
// month.
type TimestepResult struct {
	Phase Phase
	Step  timectrl.Step
	Crop  string

	Tair   float64
	Precip float64
	PET    float64

	Water        model.WaterStep
	RateModifier float64
	Moisture     float64
	Carbon       CarbonStep
	Nitrogen     NitrogenStep
}

// PhaseResult is the series produced by one run phase and the state used to
// seed the next.
type PhaseResult struct {
	Phase         Phase
	Steps         []TimestepResult
	FinalCarbon   CarbonState
	FinalNitrogen NitrogenState
}

// SummaryRow is one line of the starting/ending conditions table.
type SummaryRow struct {
	Label       string
	PlantInputs float64 // t C ha-1 over the cycle
	DPM         float64
	RPM         float64
	BIO         float64
	HUM         float64
	IOM         float64
	Total       float64
}

// SteadyStateResult is the converged steady-state run.
type SteadyStateResult struct {
	PhaseResult

	Iterations int
	Measured   float64
	Simulated  float64
	// StartCarbon is the pool state at the start of the converged iteration.
	StartCarbon CarbonState
	// PlantInputs is the converged monthly plant-input schedule.
	PlantInputs []float64
	// CalibrationFactor is converged over initial total plant input.
	CalibrationFactor float64

	Start SummaryRow
	End   SummaryRow
}

// UnitResult bundles both phases of a unit run.
type UnitResult struct {
	Unit        string
	RunID       string
	SteadyState *SteadyStateResult
	Forward     *PhaseResult
}

// MetricsRecorder receives simulation metrics. *observability.SimCollector
// satisfies it.
type MetricsRecorder interface {
	UnitStarted()
	UnitFinished(outcome string)
	ObservePhase(phase string, d time.Duration)
	ObserveIterations(n int)
	AddTimesteps(phase string, n int)
}

type noopMetrics struct{}

func (noopMetrics) UnitStarted()                       {}
func (noopMetrics) UnitFinished(string)                {}
func (noopMetrics) ObservePhase(string, time.Duration) {}
func (noopMetrics) ObserveIterations(int)              {}
func (noopMetrics) AddTimesteps(string, int)           {}

// Calendar fixes the first month of each run phase.
type Calendar struct {
	SteadyStartYear   int
	SteadyStartMonth  time.Month
	ForwardStartYear  int
	ForwardStartMonth time.Month
}

// Simulator runs the coupled water, carbon and nitrogen model for management
// units sharing one parameter source and one pair of weather series. It
// holds no per-unit state and may run units concurrently.
type Simulator struct {
	params  ParameterSource
	steady  model.Weather
	forward model.Weather

	decay       DecayConstants
	rateCfg     RateModifierConfig
	nitrogen    NitrogenConfig
	convergence ConvergenceConfig
	method      PedotransferMethod
	calendar    Calendar

	log     logging.Logger
	metrics MetricsRecorder
}

// SimulatorOption customises Simulator construction.
type SimulatorOption func(*Simulator)

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) SimulatorOption {
	return func(s *Simulator) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithConvergence overrides the steady-state iteration cap and tolerance.
func WithConvergence(c ConvergenceConfig) SimulatorOption {
	return func(s *Simulator) { s.convergence = c }
}

// WithNitrogenConfig overrides the nitrogen constants.
func WithNitrogenConfig(c NitrogenConfig) SimulatorOption {
	return func(s *Simulator) { s.nitrogen = c }
}

// WithRateModifierConfig overrides the rate modifier constants.
func WithRateModifierConfig(c RateModifierConfig) SimulatorOption {
	return func(s *Simulator) { s.rateCfg = c }
}

// WithDecayConstants overrides the pool decay rates.
func WithDecayConstants(d DecayConstants) SimulatorOption {
	return func(s *Simulator) { s.decay = d }
}

// WithPedotransfer selects the soil water constant equations.
func WithPedotransfer(m PedotransferMethod) SimulatorOption {
	return func(s *Simulator) { s.method = m }
}

// WithCalendar sets the first month of each phase.
func WithCalendar(c Calendar) SimulatorOption {
	return func(s *Simulator) { s.calendar = c }
}

// NewSimulator constructs a simulator. Phases start in January 2000 unless
// WithCalendar is given.
func NewSimulator(params ParameterSource, steady, forward model.Weather, log logging.Logger, opts ...SimulatorOption) *Simulator {
	if log == nil {
		log = logging.Noop()
	}
	s := &Simulator{
		params:      params,
		steady:      steady,
		forward:     forward,
		decay:       DefaultDecayConstants(),
		rateCfg:     DefaultRateModifierConfig(),
		nitrogen:    DefaultNitrogenConfig(),
		convergence: DefaultConvergenceConfig(),
		method:      PedotransferHalaba,
		calendar: Calendar{
			SteadyStartYear:   2000,
			SteadyStartMonth:  time.January,
			ForwardStartYear:  2000,
			ForwardStartMonth: time.January,
		},
		log:     log,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Simulator) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

func (s *Simulator) tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// RunUnit runs the steady state and, when it converges, the forward run of
// one unit. The returned result is never nil; on error it carries whatever
// phases completed.
func (s *Simulator) RunUnit(ctx context.Context, unit Unit) (*UnitResult, error) {
	ctx, log := logging.WithRunLogger(ctx, s.log.With(logging.String("unit", unit.Name)))
	ctx = logging.ContextWithLogger(ctx, log)
	ctx, span := s.tracer().Start(ctx, "unit", trace.WithAttributes(
		attribute.String("unit", unit.Name),
		attribute.String("run_id", logging.RunIDFromContext(ctx)),
	))
	defer span.End()

	s.metrics.UnitStarted()
	outcome := observability.OutcomeFailed
	defer func() { s.metrics.UnitFinished(outcome) }()

	res := &UnitResult{Unit: unit.Name, RunID: logging.RunIDFromContext(ctx)}

	ss, err := s.SteadyState(ctx, unit)
	if err != nil {
		if errors.Is(err, ErrNotConverged) {
			outcome = observability.OutcomeNotConverged
			log.Warn(ctx, "skipping forward run", logging.Err(err))
		} else {
			log.Error(ctx, "unit setup failed", logging.Err(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.SteadyState = ss

	fwd, err := s.ForwardRun(ctx, unit, ss)
	if err != nil {
		log.Error(ctx, "forward run failed", logging.Err(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.Forward = fwd
	outcome = observability.OutcomeConverged
	return res, nil
}

// SteadyState runs the convergence controller from the initial pool seed and
// the unit's own plant inputs. A unit that fails to converge yields a nil
// result and a *ConvergenceError.
func (s *Simulator) SteadyState(ctx context.Context, unit Unit) (*SteadyStateResult, error) {
	return s.steadyState(ctx, unit, nil, nil)
}

// SteadyStateFrom runs the convergence controller from the given pool state
// and monthly plant inputs instead of the defaults.
func (s *Simulator) SteadyStateFrom(ctx context.Context, unit Unit, seed CarbonState, plantInputs []float64) (*SteadyStateResult, error) {
	return s.steadyState(ctx, unit, &seed, plantInputs)
}

func (s *Simulator) steadyState(ctx context.Context, unit Unit, seed *CarbonState, plantInputs []float64) (*SteadyStateResult, error) {
	ctx, span := s.tracer().Start(ctx, "steady_state", trace.WithAttributes(attribute.String("unit", unit.Name)))
	defer span.End()
	log := s.logger(ctx)
	began := time.Now()
	defer func() { s.metrics.ObservePhase(PhaseSteadyState.metricLabel(), time.Since(began)) }()

	setup, err := s.prepare(unit, unit.SteadyState, s.steady)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	measured := setup.soil.MeasuredSOC
	cfg := s.convergence

	state := InitialCarbonState(measured)
	if seed != nil {
		state = *seed
	}
	initial := setup.schedule
	schedule := initial
	if plantInputs != nil {
		if len(plantInputs) != initial.Len() {
			return nil, fmt.Errorf("unit %q: %d plant inputs for %d months", unit.Name, len(plantInputs), initial.Len())
		}
		schedule = initial.WithPlantInputs(plantInputs)
	}
	startRow := summaryRow("Starting conditions", state, schedule.PlantInputs())

	lastProgress := time.Now()
	simulated := state.Total()
	iterations := 0
	for iterations < cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations++

		iterStart := state
		steps, end := s.runCarbon(PhaseSteadyState, setup, schedule, s.steady, state, 0)
		state = end
		simulated = end.Total()

		if math.Abs(measured-simulated) < cfg.Tolerance {
			nitrogen := s.runNitrogen(setup, schedule, steps, s.steady,
				NewNitrogenState(s.nitrogen, schedule.Months[0].Crop.CNRatio))
			pi := schedule.PlantInputs()
			res := &SteadyStateResult{
				PhaseResult: PhaseResult{
					Phase:         PhaseSteadyState,
					Steps:         steps,
					FinalCarbon:   end,
					FinalNitrogen: nitrogen,
				},
				Iterations:        iterations,
				Measured:          measured,
				Simulated:         simulated,
				StartCarbon:       iterStart,
				PlantInputs:       pi,
				CalibrationFactor: calibrationFactor(initial.PlantInputs(), pi),
				Start:             startRow,
				End:               summaryRow("Ending conditions", end, pi),
			}
			s.metrics.ObserveIterations(iterations)
			span.SetAttributes(attribute.Int("iterations", iterations))
			log.Info(ctx, "steady state converged",
				logging.Int("iterations", iterations),
				logging.Float64("measured_soc", measured),
				logging.Float64("simulated_soc", simulated),
				logging.Float64("plant_inputs", res.End.PlantInputs),
			)
			return res, nil
		}

		if time.Since(lastProgress) >= cfg.ProgressInterval {
			lastProgress = time.Now()
			log.Info(ctx, "steady state progress",
				logging.Int("iterations", iterations),
				logging.Float64("measured_soc", measured),
				logging.Float64("simulated_soc", simulated),
				logging.Float64("dpm", end.DPM),
				logging.Float64("rpm", end.RPM),
				logging.Float64("bio", end.BIO),
				logging.Float64("hum", end.HUM),
				logging.Float64("iom", end.IOM),
			)
		}

		if simulated <= 0 || math.IsNaN(simulated) || math.IsInf(simulated, 0) {
			break
		}
		schedule = schedule.Scaled(measured / simulated)
	}

	err = &ConvergenceError{
		Unit:       unit.Name,
		Iterations: iterations,
		Measured:   measured,
		Simulated:  simulated,
	}
	s.metrics.ObserveIterations(iterations)
	span.RecordError(err)
	log.Warn(ctx, "steady state failed to converge",
		logging.Int("iterations", iterations),
		logging.Float64("measured_soc", measured),
		logging.Float64("simulated_soc", simulated),
	)
	return nil, err
}

// ForwardRun runs the forward rotation once, seeded from the converged
// steady-state pools, lagged losses and mineral nitrogen. Plant inputs are
// scaled by the steady-state calibration factor.
func (s *Simulator) ForwardRun(ctx context.Context, unit Unit, ss *SteadyStateResult) (*PhaseResult, error) {
	if ss == nil {
		return nil, fmt.Errorf("unit %q: forward run needs a converged steady state: %w", unit.Name, ErrNotConverged)
	}
	ctx, span := s.tracer().Start(ctx, "forward_run", trace.WithAttributes(attribute.String("unit", unit.Name)))
	defer span.End()
	log := s.logger(ctx)
	began := time.Now()
	defer func() { s.metrics.ObservePhase(PhaseForward.metricLabel(), time.Since(began)) }()

	events := unit.Forward
	if len(events) == 0 {
		events = unit.SteadyState
	}
	setup, err := s.prepare(unit, events, s.forward)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	schedule := setup.schedule.Scaled(ss.CalibrationFactor)

	var drainage float64
	if n := len(ss.Steps); n > 0 {
		drainage = ss.Steps[n-1].Water.Drainage
	}
	steps, end := s.runCarbon(PhaseForward, setup, schedule, s.forward, ss.FinalCarbon, drainage)
	nitrogen := s.runNitrogen(setup, schedule, steps, s.forward, ss.FinalNitrogen)

	log.Info(ctx, "forward run complete",
		logging.Int("timesteps", len(steps)),
		logging.Float64("final_soc", end.Total()),
		logging.Float64("final_no3", nitrogen.NO3),
		logging.Float64("final_nh4", nitrogen.NH4),
	)
	return &PhaseResult{
		Phase:         PhaseForward,
		Steps:         steps,
		FinalCarbon:   end,
		FinalNitrogen: nitrogen,
	}, nil
}

type unitSetup struct {
	soil      model.SoilParameters
	fieldCap  float64
	wiltPoint float64
	partition Partition
	schedule  *Schedule
}

func (s *Simulator) prepare(unit Unit, events []model.CropEvent, weather model.Weather) (*unitSetup, error) {
	soil := unit.Soil
	if soil.MeasuredSOC <= 0 && soil.CarbonPercent > 0 {
		soil.MeasuredSOC = model.SOCFromCarbonPercent(soil.Depth, soil.BulkDensity, soil.CarbonPercent)
	}
	if soil.MeasuredSOC <= 0 {
		return nil, fmt.Errorf("unit %q: %w: measured SOC must be positive", unit.Name, ErrInvalidSoil)
	}
	fc, pwp, err := SoilWaterConstants(soil, s.method)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
	}
	schedule, err := BuildSchedule(unit.Name, events, s.params)
	if err != nil {
		return nil, err
	}
	if weather.Len() < schedule.Len() {
		return nil, fmt.Errorf("unit %q: %w: %d months of weather for %d months of management",
			unit.Name, ErrWeatherTooShort, weather.Len(), schedule.Len())
	}
	return &unitSetup{
		soil:      soil,
		fieldCap:  fc,
		wiltPoint: pwp,
		partition: PartitionFromClay(soil.ClayPercent),
		schedule:  schedule,
	}, nil
}

func (s *Simulator) startOf(phase Phase) (int, time.Month) {
	if phase == PhaseForward {
		return s.calendar.ForwardStartYear, s.calendar.ForwardStartMonth
	}
	return s.calendar.SteadyStartYear, s.calendar.SteadyStartMonth
}

// runCarbon runs the water and carbon engines over one pass of the schedule.
// Drainage continues from drainage mm; water content starts at the midpoint.
func (s *Simulator) runCarbon(phase Phase, setup *unitSetup, schedule *Schedule, weather model.Weather, seed CarbonState, drainage float64) ([]TimestepResult, CarbonState) {
	year, month := s.startOf(phase)
	clock := timectrl.NewTimeController(year, month)
	label := phase.metricLabel()
	clock.AddListener(func(timectrl.Step) { s.metrics.AddTimesteps(label, 1) })
	water := NewSoilWaterEngine(setup.fieldCap, setup.wiltPoint, setup.soil.Depth)
	water.CarryDrainage(drainage)
	carbon := NewCarbonEngine(s.decay, setup.partition)

	steps := make([]TimestepResult, 0, schedule.Len())
	state := seed
	_ = clock.Run(schedule.Len(), func(step timectrl.Step) error {
		i := step.Index
		plan := schedule.Months[i]
		ws := water.Step(i, weather.Precip[i], weather.PET[i], plan.Irrigation, plan.Crop.MaxRootDepth)
		rate, moisture := RateModifier(s.rateCfg, weather.Tair[i], setup.soil.PH, setup.fieldCap, setup.wiltPoint, ws.WaterContent)

		var cs CarbonStep
		state, cs = carbon.Step(state, CarbonInputs{
			RateModifier: rate,
			PlantInput:   plan.PlantInput,
			DPMRPMRatio:  plan.Crop.DPMRPMRatio,
			WasteCarbon:  plan.WasteCarbon(),
			DPMHUMRatio:  plan.Waste.DPMHUMRatio,
			PropIOM:      plan.Waste.PropIOM,
		})
		steps = append(steps, TimestepResult{
			Phase:        phase,
			Step:         step,
			Crop:         plan.Crop.Name,
			Tair:         weather.Tair[i],
			Precip:       weather.Precip[i],
			PET:          weather.PET[i],
			Water:        ws,
			RateModifier: rate,
			Moisture:     moisture,
			Carbon:       cs,
		})
		return nil
	})
	return steps, state
}

// runNitrogen fills in the nitrogen balance of a completed carbon and water
// series and returns the final nitrogen state.
func (s *Simulator) runNitrogen(setup *unitSetup, schedule *Schedule, steps []TimestepResult, weather model.Weather, seed NitrogenState) NitrogenState {
	engine := NewNitrogenEngine(s.nitrogen, setup.partition)
	state := seed
	for i := range steps {
		plan := schedule.Months[i]
		var ns NitrogenStep
		state, ns = engine.Step(state, NitrogenInputs{
			Carbon:        steps[i].Carbon,
			Water:         steps[i].Water,
			Precip:        weather.Precip[i],
			PET:           weather.PET[i],
			DaysInMonth:   steps[i].Step.DaysInMonth(),
			Depth:         setup.soil.Depth,
			Crop:          plan.Crop,
			InSeason:      plan.InSeason,
			GrowingMonths: plan.GrowingMonths,
			WasteCN:       plan.Waste.CNRatio,
			WasteNH4:      plan.WasteAmmonium(),
			FertNO3:       plan.FertNO3,
			FertNH4:       plan.FertNH4,
		})
		steps[i].Nitrogen = ns
	}
	return state
}

func summaryRow(label string, c CarbonState, plantInputs []float64) SummaryRow {
	total := 0.0
	for _, v := range plantInputs {
		total += v
	}
	return SummaryRow{
		Label:       label,
		PlantInputs: total,
		DPM:         c.DPM,
		RPM:         c.RPM,
		BIO:         c.BIO,
		HUM:         c.HUM,
		IOM:         c.IOM,
		Total:       c.Total(),
	}
}

func calibrationFactor(initial, converged []float64) float64 {
	var a, b float64
	for _, v := range initial {
		a += v
	}
	for _, v := range converged {
		b += v
	}
	if a <= 0 {
		return 1
	}
	return b / a
}
