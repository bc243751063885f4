package helper

import (
	"time"
)

// AfterNow returns now + duration truncated to seconds; x509 encodes validity in seconds
func AfterNow(years int, months int, days int) time.Time {
	return time.Now().UTC().Truncate(time.Second).AddDate(years, months, days)
}
