package timectrl

import (
	"errors"
	"testing"
	"time"
)

func TestTimeControllerRunAdvancesMonths(t *testing.T) {
	tc := NewTimeController(2001, time.November)

	var seen []Step
	tc.AddListener(func(s Step) { seen = append(seen, s) })

	if err := tc.Run(4, nil); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("listener calls = %d, want 4", len(seen))
	}
	want := []Step{
		{Index: 0, Year: 2001, Month: time.November},
		{Index: 1, Year: 2001, Month: time.December},
		{Index: 2, Year: 2002, Month: time.January},
		{Index: 3, Year: 2002, Month: time.February},
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("step %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
	if got := tc.Now(); got != want[3] {
		t.Fatalf("Now() = %+v, want %+v", got, want[3])
	}
}

func TestTimeControllerRunStopsOnError(t *testing.T) {
	tc := NewTimeController(2000, time.January)
	boom := errors.New("boom")

	calls := 0
	err := tc.Run(12, func(s Step) error {
		calls++
		if s.Index == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want boom", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestTimeControllerResetAndInvalidMonth(t *testing.T) {
	tc := NewTimeController(2000, 0)
	if tc.StartMonth != time.January {
		t.Fatalf("StartMonth = %v, want January", tc.StartMonth)
	}
	_ = tc.Run(5, nil)
	tc.Reset()
	if got := tc.Now(); got.Index != 0 || got.Month != time.January {
		t.Fatalf("Now() after Reset = %+v", got)
	}
}

func TestStepDaysInMonth(t *testing.T) {
	cases := []struct {
		step Step
		want int
	}{
		{Step{Year: 2001, Month: time.February}, 28},
		{Step{Year: 2004, Month: time.February}, 29},
		{Step{Year: 2001, Month: time.April}, 30},
		{Step{Year: 2001, Month: time.December}, 31},
	}
	for _, tc := range cases {
		if got := tc.step.DaysInMonth(); got != tc.want {
			t.Fatalf("DaysInMonth(%v %d) = %d, want %d", tc.step.Month, tc.step.Year, got, tc.want)
		}
	}
}
