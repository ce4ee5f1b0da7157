// Package scanner reads barcodes from a serial barcode scanner.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// MaxLength is the longest barcode kept; longer input is split.
const MaxLength = 127

// DefaultTerminator ends a barcode on most scanners in serial mode.
const DefaultTerminator = '\r'

// readTimeout bounds each serial read so Run can notice cancellation.
const readTimeout = 200 * time.Millisecond

// Framer splits a byte stream into barcodes.
type Framer struct {
	buf  [MaxLength]byte
	n    int
	term byte
}

// NewFramer creates a Framer that ends codes at term.
func NewFramer(term byte) *Framer {
	return &Framer{term: term}
}

// Feed adds one byte. It returns a completed code when b is the terminator
// or when the code reaches MaxLength; truncated is set in the latter case.
// Empty codes (a bare terminator) are not reported.
func (f *Framer) Feed(b byte) (code string, truncated, ok bool) {
	if b == f.term {
		if f.n == 0 {
			return "", false, false
		}
		code = string(f.buf[:f.n])
		f.n = 0
		return code, false, true
	}
	f.buf[f.n] = b
	f.n++
	if f.n == MaxLength {
		code = string(f.buf[:f.n])
		f.n = 0
		return code, true, true
	}
	return "", false, false
}

// Pending returns the number of buffered bytes of an incomplete code.
func (f *Framer) Pending() int {
	return f.n
}

// Scanner turns serial input into barcodes.
type Scanner struct {
	r      io.Reader
	framer *Framer
	logger *zap.SugaredLogger
}

// New creates a Scanner reading from r.
func New(r io.Reader, term byte, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{
		r:      r,
		framer: NewFramer(term),
		logger: logger.Named("scanner"),
	}
}

// Run reads until ctx is cancelled or the reader reports EOF, sending each
// barcode to out. A read error other than EOF is returned unless ctx has
// already been cancelled, as happens when the port is closed on shutdown.
func (s *Scanner) Run(ctx context.Context, out chan<- string) error {
	buf := make([]byte, 64)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.r.Read(buf)
		for _, b := range buf[:n] {
			code, truncated, ok := s.framer.Feed(b)
			if !ok {
				continue
			}
			if truncated {
				s.logger.Warnw("Barcode truncated", "barcode", code, "max", MaxLength)
			} else {
				s.logger.Debugw("Barcode read", "barcode", code)
			}
			select {
			case out <- code:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read scanner: %w", err)
		}
	}
}

// OpenPort opens the scanner's serial port at baud with 8N1 framing.
func OpenPort(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}
