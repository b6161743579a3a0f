package pdf

import (
	"fmt"
	"regexp"
	"time"

	payment "confreg/internal/payment/models"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safe(s string) string {
	s = unsafeName.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// AttachmentName is the filename of the receipt attached to the email.
func AttachmentName(transactionID string) string {
	return fmt.Sprintf("Payment_Receipt_%s.pdf", safe(transactionID))
}

// AssetName is the filename of the receipt copy stored in the CMS.
func AssetName(registrationID string, method payment.Method, transactionID string, at time.Time) string {
	return fmt.Sprintf("receipt_%s_%s_%s_%d.pdf", safe(registrationID), safe(method.String()), safe(transactionID), at.UnixMilli())
}
