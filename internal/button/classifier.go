package button

import "github.com/sweeney/barscanner/internal/events"

// State is the per-button classifier state.
//
// Duration is the timer: 0 means stopped, otherwise it holds the elapsed
// milliseconds since the last press or click plus one, saturating at
// MaxDuration. Pressed implies Duration >= 1.
type State struct {
	Pressed             bool
	DoubleClickEligible bool
	Duration            uint16
}

// elapsed returns the milliseconds measured by a running timer.
func (s *State) elapsed() uint16 {
	if s.Duration == 0 {
		return 0
	}
	return s.Duration - 1
}

// advance adds ms to a running timer, saturating at MaxDuration.
func (s *State) advance(ms uint32) {
	if s.Duration == 0 {
		return
	}
	sum := uint64(s.Duration) + uint64(ms)
	if sum >= MaxDuration {
		s.Duration = MaxDuration
		return
	}
	s.Duration = uint16(sum)
}

// Step feeds one edge into the state machine. active reports whether the
// input is now at its pressed level and elapsed is the time since the
// previous edge. It returns the classified event, if any.
func (s *State) Step(active bool, elapsed uint32, th Thresholds) (events.Kind, bool) {
	s.advance(elapsed)

	if active {
		if s.Pressed {
			// Repeat edge at the same level: bounce that never crossed back.
			return 0, false
		}
		s.DoubleClickEligible = s.Duration > 0 && s.elapsed() <= th.DoubleClick
		s.Pressed = true
		s.Duration = 1
		return events.Pressed, true
	}

	if !s.Pressed {
		return 0, false
	}

	held := s.elapsed()
	var kind events.Kind
	switch {
	case held >= th.LongClick:
		kind = events.LongClick
	case held >= th.Debounce:
		if s.DoubleClickEligible {
			kind = events.DoubleClick
		} else {
			kind = events.Click
		}
	default:
		kind = events.Released
	}

	s.Pressed = false
	if held >= th.Debounce && held < th.LongClick {
		// Keep timing so a quick re-press can become a double click.
		s.Duration = 1
	} else {
		s.Duration = 0
	}
	return kind, true
}

// Reset returns the state to its power-on values.
func (s *State) Reset() {
	*s = State{}
}
