// Package button classifies raw GPIO edges into button gestures.
//
// The classifier runs inside the GPIO edge handler: it never blocks, never
// allocates and never logs. Classified events are handed to the main loop
// through an events.Queue with overwrite enabled.
package button

import (
	"errors"
	"time"
)

// MaxDuration is the saturation value of State.Duration.
const MaxDuration = 0xFFFF

// Default timing thresholds in milliseconds.
const (
	DefaultDebounceMs    = 20
	DefaultDoubleClickMs = 500
	DefaultLongClickMs   = 2000
)

var (
	ErrInvalidPin = errors.New("button: invalid pin")
	ErrDuplicate  = errors.New("button: pin already in use")
	ErrIndex      = errors.New("button: index out of range")
	ErrFull       = errors.New("button: group is full")
	ErrStarted    = errors.New("button: group already started")
	ErrNotStarted = errors.New("button: group not started")
	ErrNotPaused  = errors.New("button: not paused")
)

// Thresholds holds the gesture timing windows in milliseconds.
type Thresholds struct {
	// Debounce is the minimum hold time for a click. Shorter presses are
	// reported as a plain release.
	Debounce uint16
	// DoubleClick is the longest release-to-press gap after a click for
	// the next click to count as a double click.
	DoubleClick uint16
	// LongClick is the minimum hold time for a long click.
	LongClick uint16
}

// DefaultThresholds returns the stock 20/500/2000 ms windows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Debounce:    DefaultDebounceMs,
		DoubleClick: DefaultDoubleClickMs,
		LongClick:   DefaultLongClickMs,
	}
}

// ThresholdsFromDurations converts durations to millisecond thresholds,
// clamping each to the range the duration counter can represent.
func ThresholdsFromDurations(debounce, doubleClick, longClick time.Duration) Thresholds {
	return Thresholds{
		Debounce:    clampMs(debounce),
		DoubleClick: clampMs(doubleClick),
		LongClick:   clampMs(longClick),
	}
}

func clampMs(d time.Duration) uint16 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > MaxDuration-1 {
		return MaxDuration - 1
	}
	return uint16(ms)
}

// Validate checks that the windows are ordered sensibly.
func (t Thresholds) Validate() error {
	if t.Debounce == 0 {
		return errors.New("button: debounce window must be positive")
	}
	if t.LongClick <= t.Debounce {
		return errors.New("button: long click window must exceed debounce window")
	}
	return nil
}
