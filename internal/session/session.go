// Package session gates trading on the permitted daily window: a fixed
// open/close time in one reference timezone, Monday through Friday. Trades
// outside the window are rejected but still audited by the caller.
package session

import (
	"fmt"
	"time"

	"github.com/quantfold/papertrade/internal/config"
)

// Clock supplies the current time. Swappable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Window is the trading session window.
type Window struct {
	location  *time.Location
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
}

// NewWindow builds a Window from configuration.
func NewWindow(cfg config.SessionConfig) (*Window, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load session timezone %q: %w", cfg.Timezone, err)
	}

	return &Window{
		location:  loc,
		openHour:  cfg.OpenHour,
		openMin:   cfg.OpenMin,
		closeHour: cfg.CloseHour,
		closeMin:  cfg.CloseMin,
	}, nil
}

// Allowed reports whether t falls inside the trading session. When it does
// not, reason holds a human-readable explanation.
func (w *Window) Allowed(t time.Time) (bool, string) {
	local := t.In(w.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false, fmt.Sprintf("market closed: %s is not a trading day", local.Weekday())
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), w.openHour, w.openMin, 0, 0, w.location)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), w.closeHour, w.closeMin, 0, 0, w.location)

	if local.Before(open) {
		return false, fmt.Sprintf("market closed: session opens at %02d:%02d %s",
			w.openHour, w.openMin, w.location)
	}

	if !local.Before(closeAt) {
		return false, fmt.Sprintf("market closed: session closed at %02d:%02d %s",
			w.closeHour, w.closeMin, w.location)
	}

	return true, ""
}

// ApproachingClose reports whether t is within buffer of session close on a
// trading day. Used to flatten positions before the bell.
func (w *Window) ApproachingClose(t time.Time, buffer time.Duration) bool {
	allowed, _ := w.Allowed(t)
	if !allowed {
		return false
	}

	local := t.In(w.location)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), w.closeHour, w.closeMin, 0, 0, w.location)

	return closeAt.Sub(local) <= buffer
}

// CloseTime returns the session close for the day containing t.
func (w *Window) CloseTime(t time.Time) time.Time {
	local := t.In(w.location)

	return time.Date(local.Year(), local.Month(), local.Day(), w.closeHour, w.closeMin, 0, 0, w.location)
}
