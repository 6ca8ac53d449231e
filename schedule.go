package main

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// nextPaymentDate returns the payment date following current for the given
// frequency as a YYYY-MM-DD string. Monthly rollover uses AddDate's
// normalization, so a day-of-month missing from the target month rolls
// forward (2024-01-31 monthly -> 2024-03-02). That mirrors the behavior the
// schedule data was written against and must not be clamped.
func nextPaymentDate(current string, frequency string) (string, error) {
	t, err := time.Parse(dateLayout, current)
	if err != nil {
		return "", fmt.Errorf("invalid payment date %q: %w", current, err)
	}

	var next time.Time
	switch frequency {
	case "daily":
		next = t.AddDate(0, 0, 1)
	case "weekly":
		next = t.AddDate(0, 0, 7)
	case "monthly":
		next = t.AddDate(0, 1, 0)
	case "yearly":
		next = t.AddDate(1, 0, 0)
	default:
		return "", fmt.Errorf("Unsupported frequency: %s", frequency)
	}
	return next.Format(dateLayout), nil
}
