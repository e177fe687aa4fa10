package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySchedule indicates a unit has no crop events.
	ErrEmptySchedule = errors.New("management schedule is empty")
	// ErrInconsistentSeason indicates a crop window that is out of order,
	// overlapping, or longer than the crop's plant-input series.
	ErrInconsistentSeason = errors.New("inconsistent crop season")
	// ErrScheduleGap indicates a month was left without a current crop.
	ErrScheduleGap = errors.New("management schedule has a month without a crop")
	// ErrInvalidEvent indicates a fertiliser, waste or irrigation event that
	// falls outside the schedule or lacks a required field.
	ErrInvalidEvent = errors.New("invalid management event")
	// ErrWeatherTooShort indicates the weather series does not cover the schedule.
	ErrWeatherTooShort = errors.New("weather series shorter than management schedule")
	// ErrInvalidWeather indicates mismatched or partial-year climate series.
	ErrInvalidWeather = errors.New("invalid weather series")
	// ErrInvalidSoil indicates soil parameters the model cannot run with.
	ErrInvalidSoil = errors.New("invalid soil parameters")
	// ErrInvalidStudy indicates a study document that cannot be used.
	ErrInvalidStudy = errors.New("invalid study")
	// ErrNotConverged is wrapped by ConvergenceError.
	ErrNotConverged = errors.New("steady state did not converge")
)

// LookupError reports a management field of a unit that could not be
// resolved: an unknown parameter set name or an invalid event.
type LookupError struct {
	Unit  string
	Field string
	Name  string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unit %q: %s %q: %v", e.Unit, e.Field, e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ConvergenceError is returned by the steady-state controller when the
// iteration cap is reached before simulated SOC matched the measured value.
type ConvergenceError struct {
	Unit       string
	Iterations int
	Measured   float64
	Simulated  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("unit %q: %v after %d iterations (measured %.4f, simulated %.4f)",
		e.Unit, ErrNotConverged, e.Iterations, e.Measured, e.Simulated)
}

func (e *ConvergenceError) Unwrap() error { return ErrNotConverged }
