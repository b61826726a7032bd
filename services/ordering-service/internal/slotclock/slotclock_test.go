package slotclock

import (
	"testing"
	"time"
)

func mins(h, m int) int { return h*60 + m }

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"18:00:00", 1080, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"9:30", 0, false},
		{"12", 0, false},
		{"ab:cd", 0, false},
		{"12:30:61", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseClock(%q): unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseClock(%q): want error, got %d", tc.in, got)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSlotFromStringsRejectsNegativeCutoff(t *testing.T) {
	if _, err := SlotFromStrings("10:00", "14:00", -1); err == nil {
		t.Fatal("want error for negative cutoff")
	}
}

func TestEvaluateInsideNormalWindow(t *testing.T) {
	slot := Slot{StartMinutes: mins(10, 0), EndMinutes: mins(14, 0)}

	v := Evaluate(slot, mins(11, 0))
	if !v.Open || v.Status != StatusOpen {
		t.Fatalf("11:00 in 10:00-14:00: got %+v", v)
	}
	if v.Remaining == nil || v.Remaining.Hours != 3 || v.Remaining.Minutes != 0 {
		t.Fatalf("remaining = %+v, want 3h0m", v.Remaining)
	}

	// Start boundary is inclusive, end boundary exclusive.
	if v := Evaluate(slot, mins(10, 0)); !v.Open {
		t.Fatalf("at start: got %+v", v)
	}
	if v := Evaluate(slot, mins(14, 0)); v.Open {
		t.Fatalf("at end: got %+v", v)
	}
}

func TestEvaluateOvernightWindow(t *testing.T) {
	slot := Slot{StartMinutes: mins(22, 0), EndMinutes: mins(6, 0)}

	v := Evaluate(slot, mins(23, 30))
	if !v.Open {
		t.Fatalf("23:30 in 22:00-06:00: got %+v", v)
	}
	if v.Remaining.Hours != 6 || v.Remaining.Minutes != 30 {
		t.Fatalf("remaining = %+v, want 6h30m", v.Remaining)
	}

	v = Evaluate(slot, mins(3, 30))
	if !v.Open || v.Remaining.Hours != 2 || v.Remaining.Minutes != 30 {
		t.Fatalf("03:30: got %+v", v)
	}

	// With no cutoff the slot stays open right up to the 22:00 start, so
	// noon is open with the remaining time counting down to the start.
	v = Evaluate(slot, mins(12, 0))
	if !v.Open || v.Status != StatusOpen {
		t.Fatalf("noon before 22:00-06:00 with zero cutoff: got %+v", v)
	}
	if v.Remaining.Hours != 10 || v.Remaining.Minutes != 0 {
		t.Fatalf("noon remaining = %+v, want 10h0m", v.Remaining)
	}

	// A 12 hour cutoff lands at 10:00, so noon is past it and closed.
	withCutoff := Slot{StartMinutes: mins(22, 0), EndMinutes: mins(6, 0), CutoffHoursBefore: 12}
	if v := Evaluate(withCutoff, mins(12, 0)); v.Open || v.Status != StatusClosed {
		t.Fatalf("noon past 10:00 cutoff: got %+v", v)
	}
	if v := Evaluate(withCutoff, mins(9, 0)); !v.Open {
		t.Fatalf("09:00 before 10:00 cutoff: got %+v", v)
	}
}

func TestEvaluateClosingSoonBoundary(t *testing.T) {
	slot := Slot{StartMinutes: mins(10, 0), EndMinutes: mins(14, 0)}

	if v := Evaluate(slot, mins(12, 59)); v.Status != StatusOpen {
		t.Fatalf("61 minutes left: got %v", v.Status)
	}
	if v := Evaluate(slot, mins(13, 0)); v.Status != StatusClosingSoon {
		t.Fatalf("60 minutes left: got %v", v.Status)
	}
	if v := Evaluate(slot, mins(13, 59)); v.Status != StatusClosingSoon || !v.Open {
		t.Fatalf("1 minute left: got %+v", v)
	}
}

func TestEvaluateCutoffBeforeStart(t *testing.T) {
	slot := Slot{StartMinutes: mins(10, 0), EndMinutes: mins(14, 0), CutoffHoursBefore: 2}

	// Before the 08:00 cutoff the slot is open with remaining time to
	// the cutoff, not to the window end.
	v := Evaluate(slot, mins(7, 30))
	if !v.Open || v.Remaining.Hours != 0 || v.Remaining.Minutes != 30 {
		t.Fatalf("07:30: got %+v", v)
	}
	if v.Status != StatusClosingSoon {
		t.Fatalf("07:30 status = %v, want closing_soon", v.Status)
	}

	// The cutoff itself is closed: the comparison is strict.
	if v := Evaluate(slot, mins(8, 0)); v.Open || v.Status != StatusClosed {
		t.Fatalf("08:00 exactly at cutoff: got %+v", v)
	}
	if v := Evaluate(slot, mins(9, 0)); v.Open {
		t.Fatalf("09:00 past cutoff, before start: got %+v", v)
	}
}

func TestEvaluateWrappedCutoffIsClosed(t *testing.T) {
	// 01:00 start with a 3 hour cutoff lands at 22:00 the previous
	// day. Outside the window the verdict must be closed at any time.
	slot := Slot{StartMinutes: mins(1, 0), EndMinutes: mins(5, 0), CutoffHoursBefore: 3}

	for _, now := range []int{mins(0, 0), mins(0, 30), mins(12, 0), mins(23, 0)} {
		v := Evaluate(slot, now)
		if now >= mins(1, 0) && now < mins(5, 0) {
			continue
		}
		if v.Open || v.Status != StatusClosed {
			t.Fatalf("now=%d: got %+v, want closed", now, v)
		}
	}

	// Inside the window the wrap rule does not apply.
	if v := Evaluate(slot, mins(2, 0)); !v.Open {
		t.Fatalf("02:00 inside window: got %+v", v)
	}
}

func TestEvaluateZeroCutoff(t *testing.T) {
	slot := Slot{StartMinutes: mins(10, 0), EndMinutes: mins(14, 0)}

	// With no cutoff the slot stays open right up to the start and
	// through the window.
	v := Evaluate(slot, mins(9, 59))
	if !v.Open || v.Remaining.Hours != 0 || v.Remaining.Minutes != 1 {
		t.Fatalf("09:59: got %+v", v)
	}
	if v := Evaluate(slot, mins(15, 0)); v.Open {
		t.Fatalf("after end with zero cutoff: got %+v", v)
	}
}

func TestEvaluateElapsedWindowIsClosed(t *testing.T) {
	slot := Slot{StartMinutes: mins(10, 0), EndMinutes: mins(14, 0), CutoffHoursBefore: 1}
	if v := Evaluate(slot, mins(18, 0)); v.Open {
		t.Fatalf("18:00 after window: got %+v", v)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	slot := Slot{StartMinutes: mins(22, 0), EndMinutes: mins(6, 0), CutoffHoursBefore: 1.5}
	for now := 0; now < minutesPerDay; now++ {
		a := Evaluate(slot, now)
		b := Evaluate(slot, now)
		if a.Open != b.Open || a.Status != b.Status {
			t.Fatalf("verdict changed between calls at %d", now)
		}
		if a.Open != (a.Remaining != nil) {
			t.Fatalf("inconsistent verdict at %d: %+v", now, a)
		}
		if a.Open && (a.Status != StatusOpen && a.Status != StatusClosingSoon) {
			t.Fatalf("open verdict with status %v at %d", a.Status, now)
		}
	}
}

func TestEvaluateAtMatchesEvaluate(t *testing.T) {
	slot := Slot{StartMinutes: mins(10, 0), EndMinutes: mins(14, 0)}
	ts := time.Date(2026, 3, 14, 11, 15, 42, 0, time.UTC)
	got := EvaluateAt(slot, ts)
	want := Evaluate(slot, mins(11, 15))
	if got.Open != want.Open || got.Status != want.Status {
		t.Fatalf("EvaluateAt = %+v, want %+v", got, want)
	}
}
