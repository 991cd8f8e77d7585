package timeengine

import (
	"fmt"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

const (
	millisecondsPerSecond = int64(1000)
	millisecondsPerMinute = 60 * millisecondsPerSecond
	millisecondsPerHour   = 60 * millisecondsPerMinute
	millisecondsPerDay    = 24 * millisecondsPerHour

	twoDigitFormat = "%02d"
)

// Remaining is the floor decomposition of a non-negative millisecond difference.
type Remaining struct {
	Days    int64 `json:"days" msgpack:"days"`
	Hours   int64 `json:"hours" msgpack:"hours"`
	Minutes int64 `json:"minutes" msgpack:"minutes"`
	Seconds int64 `json:"seconds" msgpack:"seconds"`
}

// Decompose splits milliseconds into days, hours, minutes and seconds.
// Non-positive input yields all zeros.
func Decompose(milliseconds int64) Remaining {
	return DecomposeFrom(milliseconds, model.TimeUnitDays)
}

// DecomposeFrom decomposes with topUnit as the broadest unit. Time that would
// belong to broader units is folded into topUnit, so the total is preserved.
func DecomposeFrom(milliseconds int64, topUnit model.TimeUnit) Remaining {
	if milliseconds <= 0 {
		return Remaining{}
	}
	remaining := Remaining{
		Days:    milliseconds / millisecondsPerDay,
		Hours:   (milliseconds / millisecondsPerHour) % 24,
		Minutes: (milliseconds / millisecondsPerMinute) % 60,
		Seconds: (milliseconds / millisecondsPerSecond) % 60,
	}
	switch topUnit {
	case model.TimeUnitHours:
		remaining.Days = 0
		remaining.Hours = milliseconds / millisecondsPerHour
	case model.TimeUnitMinutes:
		remaining.Days = 0
		remaining.Hours = 0
		remaining.Minutes = milliseconds / millisecondsPerMinute
	case model.TimeUnitSeconds:
		remaining.Days = 0
		remaining.Hours = 0
		remaining.Minutes = 0
		remaining.Seconds = milliseconds / millisecondsPerSecond
	}
	return remaining
}

// TotalSeconds recombines the decomposition.
func (remaining Remaining) TotalSeconds() int64 {
	return remaining.Days*86400 + remaining.Hours*3600 + remaining.Minutes*60 + remaining.Seconds
}

// IsZero reports whether every unit is zero.
func (remaining Remaining) IsZero() bool {
	return remaining == Remaining{}
}

// Value returns the amount for one unit.
func (remaining Remaining) Value(unit model.TimeUnit) int64 {
	switch unit {
	case model.TimeUnitDays:
		return remaining.Days
	case model.TimeUnitHours:
		return remaining.Hours
	case model.TimeUnitMinutes:
		return remaining.Minutes
	case model.TimeUnitSeconds:
		return remaining.Seconds
	}
	return 0
}

// PaddedValue renders the unit zero-padded to at least two digits.
func (remaining Remaining) PaddedValue(unit model.TimeUnit) string {
	return fmt.Sprintf(twoDigitFormat, remaining.Value(unit))
}
