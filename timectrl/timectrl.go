package timectrl

import (
	"sync"
	"time"
)

// Step identifies one monthly timestep of a run.
type Step struct {
	// Index is the zero-based timestep within the run.
	Index int
	Year  int
	Month time.Month
}

// DaysInMonth returns the calendar length of the step's month, honouring leap
// years.
func (s Step) DaysInMonth() int {
	return time.Date(s.Year, s.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// TimeController drives simulation time one calendar month at a time and
// notifies registered listeners after each step.
type TimeController struct {
	mu         sync.RWMutex
	StartYear  int
	StartMonth time.Month

	current Step

	listeners []func(Step)
}

// NewTimeController constructs a controller positioned at the first step.
func NewTimeController(startYear int, startMonth time.Month) *TimeController {
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.January
	}
	return &TimeController{
		StartYear:  startYear,
		StartMonth: startMonth,
		current:    Step{Index: 0, Year: startYear, Month: startMonth},
	}
}

// Now returns the current timestep.
func (tc *TimeController) Now() Step {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// AddListener registers a callback invoked after every step.
func (tc *TimeController) AddListener(fn func(Step)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Reset rewinds the controller to the first step.
func (tc *TimeController) Reset() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.current = Step{Index: 0, Year: tc.StartYear, Month: tc.StartMonth}
}

// Run advances through steps timesteps in order, calling fn for each one
// before notifying listeners. It stops at the first error returned by fn.
// Steps are strictly sequential: fn for step i completes before step i+1.
func (tc *TimeController) Run(steps int, fn func(Step) error) error {
	tc.Reset()
	for i := 0; i < steps; i++ {
		tc.mu.Lock()
		tc.current = stepAt(tc.StartYear, tc.StartMonth, i)
		step := tc.current
		listeners := append([]func(Step){}, tc.listeners...)
		tc.mu.Unlock()

		if fn != nil {
			if err := fn(step); err != nil {
				return err
			}
		}
		for _, l := range listeners {
			l(step)
		}
	}
	return nil
}

func stepAt(startYear int, startMonth time.Month, index int) Step {
	offset := int(startMonth-time.January) + index
	return Step{
		Index: index,
		Year:  startYear + offset/12,
		Month: time.January + time.Month(offset%12),
	}
}
