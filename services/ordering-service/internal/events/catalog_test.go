package events

import "testing"

func TestDecodeSlotUpdated(t *testing.T) {
	snap, err := DecodeSlotUpdated([]byte(`{
		"slot_id": "s1",
		"kitchen_id": "k1",
		"name": "Dinner",
		"start_time": "19:00",
		"end_time": "22:00",
		"cutoff_hours": 2,
		"active": true
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.SlotID != "s1" || snap.KitchenID != "k1" || !snap.Active {
		t.Fatalf("got %+v", snap)
	}
	if snap.StartClock != "19:00" || snap.CutoffHours != 2 {
		t.Fatalf("got %+v", snap)
	}
}

func TestDecodeSlotUpdatedRejectsBadPayloads(t *testing.T) {
	cases := []string{
		`not json`,
		`{"slot_id": "", "kitchen_id": "k1", "start_time": "10:00", "end_time": "12:00"}`,
		`{"slot_id": "s1", "kitchen_id": "k1", "start_time": "25:00", "end_time": "12:00"}`,
		`{"slot_id": "s1", "kitchen_id": "k1", "start_time": "10:00", "end_time": "12:00", "cutoff_hours": -1}`,
	}
	for _, c := range cases {
		if _, err := DecodeSlotUpdated([]byte(c)); err == nil {
			t.Fatalf("want error for %s", c)
		}
	}
}
