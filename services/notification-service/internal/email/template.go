package email

import "fmt"

// Confirmation renders the order-confirmation email for a placed order.
// Amounts arrive in minor units and are printed with two decimals.
type Confirmation struct {
	OrderID     string
	TotalAmount int64
}

func (c Confirmation) Subject() string {
	return "Order confirmation"
}

func (c Confirmation) Body() string {
	return fmt.Sprintf(
		"Your order %s has been placed. Total: %s. We will notify you when the kitchen confirms.",
		c.OrderID,
		FormatAmount(c.TotalAmount),
	)
}

// FormatAmount renders a minor-unit amount as a decimal string.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
