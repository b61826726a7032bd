package events

import "testing"

func TestDecodeRuleUpdated(t *testing.T) {
	rule, err := DecodeRuleUpdated([]byte(`{
		"rule_id": "r1",
		"service_type": "delivery",
		"commission_percent": 15,
		"min_order_amount": 5000,
		"max_commission_amount": 20000,
		"active": true
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.ID != "r1" || rule.ServiceType != "delivery" || rule.CommissionPercent != 15 || !rule.Active {
		t.Fatalf("got %+v", rule)
	}
}

func TestDecodeRuleUpdatedRejectsBadPayloads(t *testing.T) {
	cases := []string{
		`not json`,
		`{"service_type": "delivery", "commission_percent": 10}`,
		`{"rule_id": "r1", "commission_percent": 10}`,
		`{"rule_id": "r1", "service_type": "delivery", "commission_percent": 120}`,
		`{"rule_id": "r1", "service_type": "delivery", "commission_percent": 10, "min_order_amount": -5}`,
	}
	for _, c := range cases {
		if _, err := DecodeRuleUpdated([]byte(c)); err == nil {
			t.Fatalf("want error for %s", c)
		}
	}
}
