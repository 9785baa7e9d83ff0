package utils

import (
	"fmt"
	"time"
)

// GenerateInvoiceNumber builds a merchant invoice number for gateway calls.
// Providers require these to be unique per payment attempt, so the order id
// alone is not enough.
func GenerateInvoiceNumber(orderID int64) string {
	return fmt.Sprintf("INV-%d-%d", orderID, time.Now().Unix())
}