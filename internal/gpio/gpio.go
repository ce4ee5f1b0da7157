// Package gpio delivers GPIO edge events to a button handler.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// MaxLine is the highest line offset that fits in a Handler level mask.
const MaxLine = 31

// DefaultChip is the GPIO chip holding the Raspberry Pi header pins.
const DefaultChip = "gpiochip0"

// Line describes one watched input line.
type Line struct {
	Offset int
	PullUp bool // enable the internal pull-up (used for active-low buttons)
}

// Handler is invoked for every edge on an attached line.
// levels holds the current level of every watched line (bit n = line n).
// now is a monotonic millisecond timestamp of the edge; it wraps at 2^32.
//
// Handlers run on the watcher's event goroutine and must not block.
type Handler func(levels uint32, now uint32)

// Watcher configures input lines and reports their edges.
//
// All lines of one Watch call share a single event goroutine, so the
// handler is never invoked concurrently with itself.
type Watcher interface {
	// Watch configures the lines as inputs with edge detection on both
	// edges and starts delivering events to h. All lines start attached.
	Watch(lines []Line, h Handler) error

	// Attach resumes event delivery for a line.
	Attach(offset int)

	// Detach stops event delivery for a line. It returns only once no
	// handler invocation is in flight.
	Detach(offset int)

	// Close releases GPIO resources.
	Close() error
}
