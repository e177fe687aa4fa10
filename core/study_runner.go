package core

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/soilcn-simulator/internal/observability"
)

// UnitOutcome is the result of one unit in a study run. Err is non-nil for
// units that failed setup or did not converge; Result still carries any
// completed phases.
type UnitOutcome struct {
	Unit   string
	Result *UnitResult
	Err    error
}

// Status classifies the outcome as converged, not converged or failed.
func (o UnitOutcome) Status() string {
	switch {
	case o.Err == nil:
		return observability.OutcomeConverged
	case errors.Is(o.Err, ErrNotConverged):
		return observability.OutcomeNotConverged
	default:
		return observability.OutcomeFailed
	}
}

// RunStudy runs every unit with at most workers in flight. Per-unit failures
// are recorded in the outcomes and do not stop other units; only context
// cancellation aborts the run. Outcomes are returned in unit order.
func RunStudy(ctx context.Context, sim *Simulator, units []Unit, workers int) ([]UnitOutcome, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]UnitOutcome, len(units))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, u := range units {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res, err := sim.RunUnit(egCtx, u)
			out[i] = UnitOutcome{Unit: u.Name, Result: res, Err: err}
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
