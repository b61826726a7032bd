package sms

import "fmt"

// ConfirmationBody is the short-form order confirmation pushed over SMS.
// SMS bodies stay under one segment, so no totals or kitchen details.
func ConfirmationBody(orderID string) string {
	return fmt.Sprintf("Order %s placed. Track it in the app.", orderID)
}
