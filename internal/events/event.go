// Package events defines the button event vocabulary and the bounded queue
// that hands events from the GPIO edge handler to the main loop.
package events

// Kind identifies a classified button event.
type Kind uint8

const (
	Released Kind = iota
	Pressed
	Click
	LongClick
	DoubleClick
)

func (k Kind) String() string {
	switch k {
	case Released:
		return "RELEASED"
	case Pressed:
		return "PRESSED"
	case Click:
		return "CLICK"
	case LongClick:
		return "LONG_CLICK"
	case DoubleClick:
		return "DOUBLE_CLICK"
	}
	return "UNKNOWN"
}

// IsGesture reports whether k is a completed gesture (click, long click or
// double click) rather than a raw press/release edge.
func (k Kind) IsGesture() bool {
	return k == Click || k == LongClick || k == DoubleClick
}

// Event is a classified button event. Data identifies the button (its index
// in the group); it is 0 in a single-button deployment.
type Event struct {
	Kind Kind
	Data uint8
}
