// Package report writes unit results to CSV files and SQLite.
package report

import (
	"context"
	"errors"

	"github.com/signalsfoundry/soilcn-simulator/core"
)

// Sink receives finished unit outcomes.
type Sink interface {
	Write(ctx context.Context, study string, outcome core.UnitOutcome) error
	Close() error
}

// MultiSink fans each outcome out to every sink.
type MultiSink []Sink

// Write calls every sink and joins their errors.
func (m MultiSink) Write(ctx context.Context, study string, outcome core.UnitOutcome) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, study, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func unitTables(res *core.UnitResult) []core.Table {
	return []core.Table{core.CarbonTable(res), core.NitrogenTable(res), core.WaterTable(res)}
}
