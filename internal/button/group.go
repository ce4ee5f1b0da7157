package button

import (
	"fmt"
	"sync/atomic"

	"github.com/sweeney/barscanner/internal/events"
	"github.com/sweeney/barscanner/internal/gpio"
)

// MaxButtons is the number of buttons a Group can hold.
const MaxButtons = 10

// MaxPin is the highest accepted pin number. The pin range and the alias
// table below come from the ESP8266 board the button protocol was first
// built for; they are narrower than what gpio.MaxLine allows on a Pi, so
// Pi lines 6 and 17 to 27 cannot carry a button.
const MaxPin = 16

// pinAliases renumbers pins whose number collides with hardware limits on
// the ESP8266: GPIO16 is kept under the unused GPIO6 slot. The aliased slot
// itself cannot be used as a button pin.
var pinAliases = [...]struct{ pin, alias uint8 }{
	{pin: 16, alias: 6},
}

func storedPin(pin uint8) uint8 {
	for _, a := range pinAliases {
		if a.pin == pin {
			return a.alias
		}
	}
	return pin
}

func physicalPin(stored uint8) uint8 {
	for _, a := range pinAliases {
		if a.alias == stored {
			return a.pin
		}
	}
	return stored
}

func isAliasSlot(pin uint8) bool {
	for _, a := range pinAliases {
		if a.alias == pin {
			return true
		}
	}
	return false
}

type button struct {
	pin        uint8 // stored (aliased) pin number
	activeHigh bool
	paused     atomic.Bool
	state      State
}

func (b *button) line() int {
	return int(physicalPin(b.pin))
}

// Group is a fixed set of buttons sharing one edge handler. Buttons are
// identified by the index returned from Add; that index is carried as the
// Data byte of every event the button produces.
//
// After Start, button state is owned by the edge handler. Only Pause,
// Resume and the paused-only accessors may touch it from other goroutines.
type Group struct {
	queue   *events.Queue
	th      Thresholds
	buttons []*button
	watcher gpio.Watcher

	lastEdge uint32 // handler clock at the previous edge
}

// NewGroup creates an empty group. Events go to q; a nil q discards them.
func NewGroup(q *events.Queue, th Thresholds) *Group {
	return &Group{
		queue:   q,
		th:      th,
		buttons: make([]*button, 0, MaxButtons),
	}
}

// NewSingle creates a started group with one button at index 0.
func NewSingle(pin int, activeHigh bool, q *events.Queue, th Thresholds, w gpio.Watcher) (*Group, error) {
	g := NewGroup(q, th)
	if _, err := g.Add(pin, activeHigh); err != nil {
		return nil, err
	}
	if err := g.Start(w); err != nil {
		return nil, err
	}
	return g, nil
}

// Add registers a button on pin. activeHigh selects which level means
// pressed; active-low buttons get the internal pull-up. Add must be called
// before Start.
func (g *Group) Add(pin int, activeHigh bool) (int, error) {
	if g.watcher != nil {
		return -1, ErrStarted
	}
	if pin < 0 || pin > MaxPin || isAliasSlot(uint8(pin)) {
		return -1, fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	if len(g.buttons) == MaxButtons {
		return -1, ErrFull
	}
	stored := storedPin(uint8(pin))
	for _, b := range g.buttons {
		if b.pin == stored {
			return -1, fmt.Errorf("%w: %d", ErrDuplicate, pin)
		}
	}
	g.buttons = append(g.buttons, &button{pin: stored, activeHigh: activeHigh})
	return len(g.buttons) - 1, nil
}

// Len returns the number of buttons.
func (g *Group) Len() int {
	return len(g.buttons)
}

// Pin returns the physical pin of button i.
func (g *Group) Pin(i int) (int, error) {
	if i < 0 || i >= len(g.buttons) {
		return -1, ErrIndex
	}
	return g.buttons[i].line(), nil
}

// Start configures the button pins on w and begins classifying edges.
func (g *Group) Start(w gpio.Watcher) error {
	if g.watcher != nil {
		return ErrStarted
	}
	lines := make([]gpio.Line, len(g.buttons))
	for i, b := range g.buttons {
		lines[i] = gpio.Line{Offset: b.line(), PullUp: !b.activeHigh}
	}
	if err := w.Watch(lines, g.handle); err != nil {
		return fmt.Errorf("watch buttons: %w", err)
	}
	g.watcher = w
	return nil
}

// handle is the edge handler. It runs on the watcher's event goroutine.
func (g *Group) handle(levels, now uint32) {
	elapsed := now - g.lastEdge
	for i, b := range g.buttons {
		if b.paused.Load() {
			continue
		}
		high := (levels>>b.line())&1 == 1
		if kind, ok := b.state.Step(high == b.activeHigh, elapsed, g.th); ok && g.queue != nil {
			g.queue.Put(events.Event{Kind: kind, Data: uint8(i)}, true)
		}
	}
	g.lastEdge = now
}

// Pause silences button i. Its state is frozen, not reset. No event for
// the button is produced once Pause returns.
func (g *Group) Pause(i int) error {
	if i < 0 || i >= len(g.buttons) {
		return ErrIndex
	}
	b := g.buttons[i]
	b.paused.Store(true)
	if g.watcher != nil {
		g.watcher.Detach(b.line())
	}
	return nil
}

// Resume restarts button i from its power-on state.
func (g *Group) Resume(i int) error {
	if i < 0 || i >= len(g.buttons) {
		return ErrIndex
	}
	if g.watcher == nil {
		return ErrNotStarted
	}
	b := g.buttons[i]
	if !b.paused.Load() {
		// Quiesce the handler before touching state.
		g.Pause(i)
	}
	b.state.Reset()
	b.paused.Store(false)
	g.watcher.Attach(b.line())
	return nil
}

// PauseAll pauses every button.
func (g *Group) PauseAll() {
	for i := range g.buttons {
		g.Pause(i)
	}
}

// ResumeAll resumes every button.
func (g *Group) ResumeAll() error {
	for i := range g.buttons {
		if err := g.Resume(i); err != nil {
			return err
		}
	}
	return nil
}

// Paused reports whether button i is paused.
func (g *Group) Paused(i int) bool {
	if i < 0 || i >= len(g.buttons) {
		return false
	}
	return g.buttons[i].paused.Load()
}

// State returns a copy of the classifier state of a paused button.
func (g *Group) State(i int) (State, error) {
	if i < 0 || i >= len(g.buttons) {
		return State{}, ErrIndex
	}
	b := g.buttons[i]
	if g.watcher != nil && !b.paused.Load() {
		return State{}, ErrNotPaused
	}
	return b.state, nil
}

// Thresholds returns the timing windows in use.
func (g *Group) Thresholds() Thresholds {
	return g.th
}

// SetThresholds replaces the timing windows. Every button must be paused so
// the handler cannot observe a half-written value.
func (g *Group) SetThresholds(th Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	for _, b := range g.buttons {
		if g.watcher != nil && !b.paused.Load() {
			return ErrNotPaused
		}
	}
	g.th = th
	return nil
}
