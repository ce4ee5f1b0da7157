//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// consumer is the label shown for our lines in gpioinfo.
const consumer = "barscanner"

// RealWatcher watches button lines using the Linux GPIO character device.
// All lines share one request, so the kernel delivers their edges in order
// on a single event goroutine.
type RealWatcher struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines

	handler  Handler
	levels   lineLevels
	attached atomic.Uint32 // lines whose edges reach the handler
	inflight atomic.Int32
}

// NewRealWatcher opens the named GPIO chip (e.g. "gpiochip0").
func NewRealWatcher(chip string) (*RealWatcher, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealWatcher{chip: c}, nil
}

// Watch requests the lines as inputs with both-edge detection.
func (w *RealWatcher) Watch(lines []Line, h Handler) error {
	if w.lines != nil {
		return errors.New("gpio: already watching")
	}
	if h == nil {
		return errors.New("gpio: nil handler")
	}

	offsets := make([]int, 0, len(lines))
	var pullUp []int
	var mask uint32
	for _, l := range lines {
		if l.Offset < 0 || l.Offset > MaxLine {
			return fmt.Errorf("gpio: line %d out of range", l.Offset)
		}
		offsets = append(offsets, l.Offset)
		if l.PullUp {
			pullUp = append(pullUp, l.Offset)
		}
		mask |= 1 << l.Offset
	}

	w.handler = h
	w.attached.Store(mask)

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(w.onEvent),
	}
	if len(pullUp) > 0 {
		opts = append(opts, gpiocdev.WithLines(pullUp, gpiocdev.WithPullUp))
	}

	req, err := w.chip.RequestLines(offsets, opts...)
	if err != nil {
		return fmt.Errorf("request lines %v: %w", offsets, err)
	}
	w.lines = req

	values := make([]int, len(offsets))
	if err := req.Values(values); err != nil {
		req.Close()
		w.lines = nil
		return fmt.Errorf("read initial levels: %w", err)
	}
	var levels uint32
	for i, v := range values {
		if v != 0 {
			levels |= 1 << offsets[i]
		}
	}
	// Edges may already have been delivered since RequestLines.
	w.levels.seed(levels)
	return nil
}

// onEvent runs on the gpiocdev event goroutine for every edge.
func (w *RealWatcher) onEvent(evt gpiocdev.LineEvent) {
	w.inflight.Add(1)
	defer w.inflight.Add(-1)

	bit := uint32(1) << evt.Offset
	levels := w.levels.edge(bit, evt.Type == gpiocdev.LineEventRisingEdge)

	if w.attached.Load()&bit == 0 {
		return
	}
	w.handler(levels, uint32(evt.Timestamp.Milliseconds()))
}

// Attach resumes delivery for offset.
func (w *RealWatcher) Attach(offset int) {
	w.attached.Or(1 << offset)
}

// Detach stops delivery for offset and waits out any running handler.
func (w *RealWatcher) Detach(offset int) {
	w.attached.And(^(uint32(1) << offset))
	for w.inflight.Load() > 0 {
		runtime.Gosched()
	}
}

// Levels returns the current level of every watched line, read from hardware.
func (w *RealWatcher) Levels() (uint32, error) {
	if w.lines == nil {
		return 0, errors.New("gpio: not watching")
	}
	offsets := w.lines.Offsets()
	values := make([]int, len(offsets))
	if err := w.lines.Values(values); err != nil {
		return 0, fmt.Errorf("read lines: %w", err)
	}
	var levels uint32
	for i, v := range values {
		if v != 0 {
			levels |= 1 << offsets[i]
		}
	}
	return levels, nil
}

// Close releases the lines and the chip.
func (w *RealWatcher) Close() error {
	var errs []error

	w.attached.Store(0)
	if w.lines != nil {
		if err := w.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
		w.lines = nil
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
