// Package timeengine computes remaining time and counter progress for the three timer modes.
package timeengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

var (
	ErrInvalidTargetDate   = errors.New("timeengine: invalid target date")
	ErrUnknownTimezone     = errors.New("timeengine: unknown timezone")
	ErrMissingVisitor      = errors.New("timeengine: missing visitor id")
	ErrMissingAnchorStore  = errors.New("timeengine: missing anchor store")
	ErrUnsupportedTimeMode = errors.New("timeengine: unsupported timer type")
)

// targetDatePattern is the one grammar accepted for target dates: a calendar
// date, an optional time of day, and an optional Z or numeric offset after the time.
var targetDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?(Z|[+-]\d{2}:?\d{2})?)?$`)

const (
	maximumOffsetHours   = 23
	maximumOffsetMinutes = 59
	fractionDigits       = 9
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (clockFunc ClockFunc) Now() time.Time {
	return clockFunc()
}

// Snapshot is the result of one evaluation.
type Snapshot struct {
	Mode         model.TimerType `json:"mode" msgpack:"mode"`
	EvaluatedAt  time.Time       `json:"evaluatedAt" msgpack:"evaluatedAt"`
	Remaining    Remaining       `json:"remaining" msgpack:"remaining"`
	CounterValue int64           `json:"counterValue" msgpack:"counterValue"`
	Finished     bool            `json:"finished" msgpack:"finished"`
	Problem      string          `json:"problem,omitempty" msgpack:"problem,omitempty"`
}

// Engine evaluates timer configurations against a clock and a first-visit store.
type Engine struct {
	clock       Clock
	anchorStore AnchorStore
}

// NewEngine constructs an Engine. A nil clock uses the system clock.
func NewEngine(clock Clock, anchorStore AnchorStore) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{clock: clock, anchorStore: anchorStore}
}

// Now returns the engine clock's current instant.
func (engine *Engine) Now() time.Time {
	return engine.clock.Now()
}

// Evaluate computes the snapshot for config at the current instant.
// counterStartedAt is the instant the number counter began animating.
// Invalid countdown input yields a zero snapshot alongside the error.
func (engine *Engine) Evaluate(ctx context.Context, config model.TimerConfig, visitorID string, counterStartedAt time.Time) (Snapshot, error) {
	now := engine.clock.Now()
	snapshot := Snapshot{Mode: config.TimerType, EvaluatedAt: now}

	switch config.TimerType {
	case model.TimerTypeCountdown:
		target, targetErr := ResolveTarget(config.TargetDate, config.Timezone)
		if targetErr != nil {
			snapshot.Problem = targetErr.Error()
			return snapshot, targetErr
		}
		difference := target.Sub(now).Milliseconds()
		snapshot.Remaining = Decompose(difference)
		snapshot.Finished = difference <= 0
		return snapshot, nil

	case model.TimerTypeVisitorCountdown:
		end, endErr := engine.VisitorEnd(ctx, config, visitorID, now)
		if endErr != nil {
			snapshot.Problem = endErr.Error()
			return snapshot, endErr
		}
		difference := end.Sub(now).Milliseconds()
		snapshot.Remaining = DecomposeFrom(difference, config.VisitorCountdownUnit)
		snapshot.Finished = difference <= 0
		return snapshot, nil

	case model.TimerTypeNumberCounter:
		if counterStartedAt.IsZero() {
			counterStartedAt = now
		}
		value, finished := CounterValue(config.StartNumber, config.EndNumber, config.CounterDuration, now.Sub(counterStartedAt))
		snapshot.CounterValue = value
		snapshot.Finished = finished
		return snapshot, nil
	}

	unsupportedErr := fmt.Errorf("%w: %q", ErrUnsupportedTimeMode, string(config.TimerType))
	snapshot.Problem = unsupportedErr.Error()
	return snapshot, unsupportedErr
}

// VisitorEnd returns first visit plus the configured visitor duration.
func (engine *Engine) VisitorEnd(ctx context.Context, config model.TimerConfig, visitorID string, now time.Time) (time.Time, error) {
	if engine.anchorStore == nil {
		return time.Time{}, ErrMissingAnchorStore
	}
	if strings.TrimSpace(visitorID) == "" {
		return time.Time{}, ErrMissingVisitor
	}
	unitMilliseconds, unitErr := config.VisitorCountdownUnit.Milliseconds()
	if unitErr != nil {
		return time.Time{}, unitErr
	}
	durationMilliseconds := config.VisitorCountdownDuration * float64(unitMilliseconds)
	if durationMilliseconds > float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Time{}, model.ErrInvalidDuration
	}
	firstVisit, anchorErr := engine.anchorStore.FirstVisit(ctx, visitorID, config.VisitorAnchorKey(), now)
	if anchorErr != nil {
		return time.Time{}, fmt.Errorf("load first visit: %w", anchorErr)
	}
	return firstVisit.Add(time.Duration(int64(durationMilliseconds)) * time.Millisecond), nil
}

// ResolveTarget parses targetDate. Dates carrying an offset are absolute
// instants; dates without one are wall-clock times in timezone.
func ResolveTarget(targetDate string, timezone string) (time.Time, error) {
	location, locationErr := LoadLocation(timezone)
	if locationErr != nil {
		return time.Time{}, locationErr
	}
	trimmedTarget := strings.TrimSpace(targetDate)
	if trimmedTarget == "" {
		return time.Time{}, ErrInvalidTargetDate
	}
	parsed, parseErr := parseTargetDate(trimmedTarget, location)
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTargetDate, trimmedTarget)
	}
	return parsed, nil
}

func parseTargetDate(text string, location *time.Location) (time.Time, error) {
	match := targetDatePattern.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, ErrInvalidTargetDate
	}
	fields := make([]int, 6)
	for index := range fields {
		if match[index+1] == "" {
			continue
		}
		value, convertErr := strconv.Atoi(match[index+1])
		if convertErr != nil {
			return time.Time{}, ErrInvalidTargetDate
		}
		fields[index] = value
	}
	year, month, day, hour, minute, second := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, ErrInvalidTargetDate
	}
	nanoseconds := 0
	if match[7] != "" {
		nanoseconds, _ = strconv.Atoi(match[7] + strings.Repeat("0", fractionDigits-len(match[7])))
	}

	zoneText := match[8]
	if zoneText == "" {
		return time.Date(year, time.Month(month), day, hour, minute, second, nanoseconds, location), nil
	}
	offsetSeconds := 0
	if zoneText != "Z" {
		digits := strings.ReplaceAll(zoneText[1:], ":", "")
		offsetHours, _ := strconv.Atoi(digits[:2])
		offsetMinutes, _ := strconv.Atoi(digits[2:])
		if offsetHours > maximumOffsetHours || offsetMinutes > maximumOffsetMinutes {
			return time.Time{}, ErrInvalidTargetDate
		}
		offsetSeconds = offsetHours*3600 + offsetMinutes*60
		if zoneText[0] == '-' {
			offsetSeconds = -offsetSeconds
		}
	}
	wallClock := time.Date(year, time.Month(month), day, hour, minute, second, nanoseconds, time.UTC)
	return wallClock.Add(-time.Duration(offsetSeconds) * time.Second), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LoadLocation resolves an IANA zone name; an empty name means UTC.
func LoadLocation(timezone string) (*time.Location, error) {
	trimmedZone := strings.TrimSpace(timezone)
	if trimmedZone == "" || trimmedZone == "UTC" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(trimmedZone)
	if err != nil || strings.EqualFold(trimmedZone, "Local") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, trimmedZone)
	}
	return location, nil
}
