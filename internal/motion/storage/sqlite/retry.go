package sqlite

import (
	"strings"
	"time"
)

const (
	busyRetries   = 5
	busyBaseDelay = 10 * time.Millisecond
)

// retryOnBusy runs fn, retrying with exponential backoff while SQLite
// reports the database as busy or locked.
func retryOnBusy(fn func() error) error {
	var err error
	delay := busyBaseDelay
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
