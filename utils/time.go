// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCNowMillis returns the current UTC time as Unix millisecond timestamp
func UTCNowMillis() int64 {
	return UTCNow().UnixMilli()
}

// MillisToTime converts a Unix millisecond timestamp back to UTC time
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
