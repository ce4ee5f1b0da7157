package gpio

import "errors"

// FakeWatcher is a test double that delivers scripted edges synchronously.
type FakeWatcher struct {
	// Lines records the configuration passed to Watch.
	Lines []Line

	// Closed tracks if Close was called.
	Closed bool

	// WatchError, if set, will be returned by Watch.
	WatchError error

	handler  Handler
	levels   uint32
	attached uint32
}

// NewFakeWatcher creates a FakeWatcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{}
}

// Watch records the lines and handler. Lines with a pull-up start high.
func (f *FakeWatcher) Watch(lines []Line, h Handler) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	if h == nil {
		return errors.New("gpio: nil handler")
	}
	f.Lines = append([]Line(nil), lines...)
	f.handler = h
	f.levels = 0
	f.attached = 0
	for _, l := range lines {
		if l.PullUp {
			f.levels |= 1 << l.Offset
		}
		f.attached |= 1 << l.Offset
	}
	return nil
}

// Attach resumes delivery for offset.
func (f *FakeWatcher) Attach(offset int) {
	f.attached |= 1 << offset
}

// Detach stops delivery for offset.
func (f *FakeWatcher) Detach(offset int) {
	f.attached &^= 1 << offset
}

// Attached reports whether offset currently delivers events.
func (f *FakeWatcher) Attached(offset int) bool {
	return f.attached&(1<<offset) != 0
}

// Edge sets the level of offset and, if the line is attached, calls the
// handler with timestamp now. It reports whether the handler ran.
func (f *FakeWatcher) Edge(offset int, high bool, now uint32) bool {
	if high {
		f.levels |= 1 << offset
	} else {
		f.levels &^= 1 << offset
	}
	if f.handler == nil || !f.Attached(offset) {
		return false
	}
	f.handler(f.levels, now)
	return true
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.Closed = true
	return nil
}
