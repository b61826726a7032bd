// Package slotclock decides whether a delivery slot currently accepts
// orders. All decisions are taken on minutes since local midnight so
// the same slot definition behaves identically on every day, including
// windows that wrap past midnight.
package slotclock

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerDay = 24 * 60

	// closingSoonWindow is the number of remaining minutes at or below
	// which an open slot is flagged as closing soon.
	closingSoonWindow = 60
)

// Status classifies a slot verdict.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosingSoon Status = "closing_soon"
	StatusClosed      Status = "closed"
)

// Remaining is a duration broken into whole hours and leftover minutes
// for display. It is only present on open verdicts.
type Remaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Verdict is the outcome of evaluating a slot at a point in time.
// Open and Status always agree: Remaining is non-nil exactly when
// Open is true.
type Verdict struct {
	Open      bool       `json:"is_open"`
	Remaining *Remaining `json:"time_remaining"`
	Status    Status     `json:"status_label"`
}

// Slot is an order-taking window with an optional pre-start cutoff.
// Start and end are minutes since midnight. A slot whose end is at or
// before its start wraps past midnight.
type Slot struct {
	StartMinutes      int
	EndMinutes        int
	CutoffHoursBefore float64
}

// ParseClock converts a wall-clock string in "HH:MM" or "HH:MM:SS"
// form into minutes since midnight. Seconds are validated but ignored.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("slotclock: malformed clock value %q", s)
	}
	h, err := parseClockPart(parts[0], 23)
	if err != nil {
		return 0, fmt.Errorf("slotclock: bad hour in %q", s)
	}
	m, err := parseClockPart(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("slotclock: bad minute in %q", s)
	}
	if len(parts) == 3 {
		if _, err := parseClockPart(parts[2], 59); err != nil {
			return 0, fmt.Errorf("slotclock: bad second in %q", s)
		}
	}
	return h*60 + m, nil
}

func parseClockPart(s string, max int) (int, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("want two digits, got %q", s)
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > max {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return v, nil
}

// SlotFromStrings builds a Slot from wall-clock boundary strings.
func SlotFromStrings(start, end string, cutoffHours float64) (Slot, error) {
	if cutoffHours < 0 {
		return Slot{}, fmt.Errorf("slotclock: negative cutoff %v", cutoffHours)
	}
	startM, err := ParseClock(start)
	if err != nil {
		return Slot{}, err
	}
	endM, err := ParseClock(end)
	if err != nil {
		return Slot{}, err
	}
	return Slot{StartMinutes: startM, EndMinutes: endM, CutoffHoursBefore: cutoffHours}, nil
}

// Evaluate decides the slot verdict at nowMinutes, a value in
// [0, 1440). The function is pure: callers inject the clock reading,
// which keeps every branch deterministic under test.
//
// Inside the window the remaining time runs to the window end. Outside
// the window, orders are still accepted while the current time is
// strictly before the cutoff point (start minus the cutoff), with the
// remaining time running to that cutoff. A cutoff that would land
// before midnight of the current day cannot be anchored to a single
// day, so the slot reports closed rather than guessing.
func Evaluate(slot Slot, nowMinutes int) Verdict {
	now := nowMinutes
	startM := slot.StartMinutes
	endM := slot.EndMinutes

	var inside bool
	if endM > startM {
		inside = now >= startM && now < endM
	} else {
		// Overnight window, e.g. 22:00 to 06:00.
		inside = now >= startM || now < endM
	}

	if inside {
		rem := endM - now
		if rem < 0 {
			rem += minutesPerDay
		}
		return openVerdict(rem)
	}

	cutoffM := startM - int(math.Round(slot.CutoffHoursBefore*60))
	if cutoffM < 0 {
		// The cutoff wraps into the previous day.
		return Verdict{Status: StatusClosed}
	}
	if now >= cutoffM {
		return Verdict{Status: StatusClosed}
	}
	return openVerdict(cutoffM - now)
}

// EvaluateAt evaluates the slot against the wall clock of t.
func EvaluateAt(slot Slot, t time.Time) Verdict {
	return Evaluate(slot, t.Hour()*60+t.Minute())
}

func openVerdict(rem int) Verdict {
	status := StatusOpen
	if rem <= closingSoonWindow {
		status = StatusClosingSoon
	}
	return Verdict{
		Open:      true,
		Remaining: &Remaining{Hours: rem / 60, Minutes: rem % 60},
		Status:    status,
	}
}
