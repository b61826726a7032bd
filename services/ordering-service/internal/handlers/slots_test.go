package handlers

import (
	"testing"
	"time"

	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
	"github.com/khanakart/khanakart/services/ordering-service/internal/slotclock"
)

func TestBuildSlotBoard(t *testing.T) {
	snaps := []model.SlotSnapshot{
		{SlotID: "lunch", Name: "Lunch", StartClock: "11:00", EndClock: "14:00"},
		{SlotID: "dinner", Name: "Dinner", StartClock: "19:00", EndClock: "22:00", CutoffHours: 2},
		{SlotID: "broken", Name: "Broken", StartClock: "2500", EndClock: "14:00"},
	}
	now := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	items := buildSlotBoard(snaps, now, nil)
	if len(items) != 2 {
		t.Fatalf("want 2 items (malformed skipped), got %d", len(items))
	}

	if items[0].SlotID != "lunch" || items[0].Verdict.Status != slotclock.StatusOpen {
		t.Fatalf("lunch at 12:30: %+v", items[0].Verdict)
	}
	if items[0].Verdict.Remaining.Hours != 1 || items[0].Verdict.Remaining.Minutes != 30 {
		t.Fatalf("lunch remaining = %+v", items[0].Verdict.Remaining)
	}

	// Dinner cutoff is 17:00; at 12:30 it is open toward the cutoff.
	if !items[1].Verdict.Open || items[1].Verdict.Status != slotclock.StatusOpen {
		t.Fatalf("dinner at 12:30: %+v", items[1].Verdict)
	}
	if items[1].Verdict.Remaining.Hours != 4 || items[1].Verdict.Remaining.Minutes != 30 {
		t.Fatalf("dinner remaining = %+v", items[1].Verdict.Remaining)
	}
}

func TestParseStatuses(t *testing.T) {
	got := parseStatuses(" pending, confirmed ,,ready ")
	want := []string{"pending", "confirmed", "ready"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if parseStatuses("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
