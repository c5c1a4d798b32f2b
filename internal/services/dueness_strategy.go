// Package services provides business logic and orchestration services.
//
// This file implements the dueness check for scheduled transactions.
// Weekly schedules step by days; every other frequency steps by a fixed
// number of calendar months from the last run.

package services

import (
	"fmt"
	"time"

	"cuentas/internal/core"
)

// DuenessChecker is the strategy interface for checking if a scheduled
// transaction is due. Each implementation encapsulates the algorithm
// for a specific frequency.
type DuenessChecker interface {
	// IsDue returns true if the schedule should run, given the last run
	// time and the current time.
	IsDue(lastRun, now time.Time, startDate core.Date) bool
}

// WeeklyChecker implements DuenessChecker for weekly schedules.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since the last run.
func (WeeklyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	daysSince := now.Sub(lastRun).Hours() / 24
	return daysSince >= 7
}

// MonthIntervalChecker implements DuenessChecker for the month-stepped
// frequencies (monthly through annual).
type MonthIntervalChecker struct {
	Months int
}

// IsDue returns true once a full interval has passed and the target day
// of the start date has been reached. A schedule that fell more than one
// interval behind is due regardless of the day.
func (c MonthIntervalChecker) IsDue(lastRun, now time.Time, startDate core.Date) bool {
	if lastRun.IsZero() {
		return true
	}

	elapsed := (now.Year()-lastRun.Year())*12 + int(now.Month()) - int(lastRun.Month())
	if elapsed < c.Months {
		return false
	}
	if elapsed > c.Months {
		return true
	}

	// Exactly one interval later: wait for the start date's day, clamped
	// to months that are too short (e.g. the 31st in February).
	targetDay := startDate.Day()
	if last := core.DaysInMonth(now.Year(), int(now.Month())); targetDay > last {
		targetDay = last
	}
	return now.Day() >= targetDay
}

// duenessStrategies maps frequencies to their corresponding checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Weekly:     WeeklyChecker{},
	core.Monthly:    MonthIntervalChecker{Months: 1},
	core.Bimonthly:  MonthIntervalChecker{Months: 2},
	core.Quarterly:  MonthIntervalChecker{Months: 3},
	core.Semiannual: MonthIntervalChecker{Months: 6},
	core.Annual:     MonthIntervalChecker{Months: 12},
}

// GetDuenessChecker returns the dueness checker for a frequency.
// Returns an error if the frequency is not supported.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a custom checker for a new frequency,
// allowing extension without touching the built-in set.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
