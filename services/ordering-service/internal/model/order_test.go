package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusPreparing},
		{StatusConfirmed, StatusCancelled},
		{StatusPreparing, StatusReady},
		{StatusReady, StatusOutForDelivery},
		{StatusOutForDelivery, StatusDelivered},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]string{
		{StatusPending, StatusPreparing},
		{StatusPreparing, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusCancelled, StatusConfirmed},
		{StatusOutForDelivery, StatusReady},
		{StatusConfirmed, StatusConfirmed},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be denied", tr[0], tr[1])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusDelivered) || !IsTerminal(StatusCancelled) {
		t.Fatal("delivered and cancelled are terminal")
	}
	if IsTerminal(StatusPending) {
		t.Fatal("pending is not terminal")
	}
}
