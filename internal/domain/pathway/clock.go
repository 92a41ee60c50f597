package pathway

import "time"

const day = 24 * time.Hour

var targetDays = map[PathwayKind]int{
	Routine18Week: 126,
	TwoWeekWait:   14,
	ThirtyOneDay:  31,
	SixtyTwoDay:   62,
}

// TargetDays returns the regulatory target for a pathway kind. Unknown kinds
// fall back to the 18-week target and report ok=false so callers can log it.
func TargetDays(kind PathwayKind) (days int, ok bool) {
	if d, found := targetDays[kind]; found {
		return d, true
	}
	return targetDays[Routine18Week], false
}

// DaysWaiting is the whole number of days between the clock start and asOf,
// floored at zero when the start lies in the future.
func DaysWaiting(e *TrackedEntity, asOf time.Time) int {
	return daysBetween(e.ClockStartDate, asOf)
}

func daysBetween(start, asOf time.Time) int {
	d := asOf.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

// CheckClock reports recoverable clock problems. The engine still assesses the
// entity using the fallbacks; the error exists to be logged.
func CheckClock(e *TrackedEntity, asOf time.Time, tolerance time.Duration) error {
	var issues []string
	if _, ok := TargetDays(e.PathwayKind); !ok {
		issues = append(issues, "unrecognized pathway kind "+string(e.PathwayKind))
	}
	if e.ClockStartDate.After(asOf.Add(tolerance)) {
		issues = append(issues, "clock start "+e.ClockStartDate.Format(time.RFC3339)+" is after evaluation time")
	}
	if len(issues) == 0 {
		return nil
	}
	return &InvalidClockStateError{EntityID: e.ID, Issues: issues}
}
