package handlers

import "testing"

func TestValidClock(t *testing.T) {
	good := []string{"00:00", "09:30", "23:59"}
	for _, s := range good {
		if !validClock(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	bad := []string{"", "9:30", "24:00", "12:60", "12:30:00", "ab:cd", "1230"}
	for _, s := range bad {
		if validClock(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestSlotRequestValidate(t *testing.T) {
	req := slotRequest{KitchenID: " k1 ", Name: " Lunch ", StartTime: "11:00", EndTime: "14:00"}
	if msg := req.validate(); msg != "" {
		t.Fatalf("unexpected validation error: %s", msg)
	}
	if req.KitchenID != "k1" || req.Name != "Lunch" {
		t.Fatalf("fields not trimmed: %+v", req)
	}
	if req.SlotType != "delivery" {
		t.Fatalf("slot_type should default to delivery, got %q", req.SlotType)
	}

	cases := []slotRequest{
		{Name: "Lunch", StartTime: "11:00", EndTime: "14:00"},
		{KitchenID: "k1", StartTime: "11:00", EndTime: "14:00"},
		{KitchenID: "k1", Name: "Lunch", StartTime: "11am", EndTime: "14:00"},
		{KitchenID: "k1", Name: "Lunch", StartTime: "11:00", EndTime: "25:00"},
		{KitchenID: "k1", Name: "Lunch", StartTime: "11:00", EndTime: "14:00", CutoffHours: -2},
		{KitchenID: "k1", Name: "Lunch", StartTime: "11:00", EndTime: "14:00", DisplayOrder: -1},
	}
	for i, c := range cases {
		if msg := c.validate(); msg == "" {
			t.Fatalf("case %d should fail validation", i)
		}
	}
}
