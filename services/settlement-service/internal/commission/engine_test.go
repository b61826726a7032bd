package commission

import "testing"

func TestComputeBasicPercent(t *testing.T) {
	rule := Rule{CommissionPercent: 10, Active: true}
	res := Compute(rule, 50000)
	if !res.Applied || res.Commission != 5000 || res.NetAmount != 45000 {
		t.Fatalf("got %+v", res)
	}
}

func TestComputeRounding(t *testing.T) {
	rule := Rule{CommissionPercent: 12.5, Active: true}
	// 12.5% of 999 = 124.875, rounds to 125.
	res := Compute(rule, 999)
	if res.Commission != 125 {
		t.Fatalf("commission = %d, want 125", res.Commission)
	}
}

func TestComputeMinOrderAmount(t *testing.T) {
	rule := Rule{CommissionPercent: 10, MinOrderAmount: 10000, Active: true}
	if res := Compute(rule, 9999); res.Applied || res.Commission != 0 || res.NetAmount != 9999 {
		t.Fatalf("below minimum: got %+v", res)
	}
	if res := Compute(rule, 10000); !res.Applied || res.Commission != 1000 {
		t.Fatalf("at minimum: got %+v", res)
	}
}

func TestComputeMaxCommissionCap(t *testing.T) {
	rule := Rule{CommissionPercent: 20, MaxCommissionAmount: 3000, Active: true}
	res := Compute(rule, 100000)
	if res.Commission != 3000 || res.NetAmount != 97000 {
		t.Fatalf("got %+v", res)
	}

	uncapped := Rule{CommissionPercent: 20, Active: true}
	if res := Compute(uncapped, 100000); res.Commission != 20000 {
		t.Fatalf("zero cap should mean no cap: got %+v", res)
	}
}

func TestComputeInactiveRule(t *testing.T) {
	rule := Rule{CommissionPercent: 10}
	if res := Compute(rule, 50000); res.Applied || res.Commission != 0 {
		t.Fatalf("got %+v", res)
	}
}

func TestComputeNonPositiveAmount(t *testing.T) {
	rule := Rule{CommissionPercent: 10, Active: true}
	if res := Compute(rule, 0); res.Applied {
		t.Fatalf("got %+v", res)
	}
	if res := Compute(rule, -500); res.Applied {
		t.Fatalf("got %+v", res)
	}
}
