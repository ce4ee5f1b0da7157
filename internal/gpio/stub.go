//go:build !linux

package gpio

import "errors"

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chip string) (*RealWatcher, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (w *RealWatcher) Watch(lines []Line, h Handler) error {
	return errors.New("gpio: not supported")
}

// Attach is a no-op on non-Linux platforms.
func (w *RealWatcher) Attach(offset int) {}

// Detach is a no-op on non-Linux platforms.
func (w *RealWatcher) Detach(offset int) {}

// Levels is not implemented on non-Linux platforms.
func (w *RealWatcher) Levels() (uint32, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}
