// Package commission computes platform commission for delivered
// orders from configured rules.
package commission

import "math"

// Rule is a commission rule as cached from the catalog. Amounts are in
// the currency's smallest unit.
type Rule struct {
	ID                  string
	ServiceType         string
	CommissionPercent   float64
	MinOrderAmount      int64
	MaxCommissionAmount int64
	Active              bool
}

// Result is the outcome of applying a rule to an order amount.
type Result struct {
	Applied    bool
	Commission int64
	NetAmount  int64
}

// Compute applies rule to orderAmount. Orders below the rule's minimum
// and inactive rules yield no commission. The commission is rounded to
// the nearest unit and never exceeds MaxCommissionAmount when that cap
// is set.
func Compute(rule Rule, orderAmount int64) Result {
	if !rule.Active || orderAmount <= 0 {
		return Result{NetAmount: orderAmount}
	}
	if orderAmount < rule.MinOrderAmount {
		return Result{NetAmount: orderAmount}
	}

	c := int64(math.Round(float64(orderAmount) * rule.CommissionPercent / 100))
	if rule.MaxCommissionAmount > 0 && c > rule.MaxCommissionAmount {
		c = rule.MaxCommissionAmount
	}
	if c > orderAmount {
		c = orderAmount
	}
	return Result{
		Applied:    true,
		Commission: c,
		NetAmount:  orderAmount - c,
	}
}
