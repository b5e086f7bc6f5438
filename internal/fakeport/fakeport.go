// Package fakeport provides a scripted in-memory serial port for driver tests.
//
// A Port splits everything written to it into commands at the configured
// terminator and hands each command to a Responder, whose reply is queued as
// input for subsequent reads. Tests can also inject bytes asynchronously with
// Feed, simulate I/O failures and close the port under the driver.
package fakeport

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/link"
	"go.bug.st/serial"
)

// Responder returns the bytes the simulated device sends back after receiving
// cmd (the command without its terminator). A nil result sends nothing.
type Responder func(cmd string) []byte

// Port implements link.Port in memory.
type Port struct {
	mu sync.Mutex

	respond    Responder
	terminator []byte
	emptyDelay time.Duration

	input   bytes.Buffer // device -> host, not yet read
	partial bytes.Buffer // host -> device, not yet terminated
	cmds    []string

	closed      bool
	readTimeout time.Duration

	// One-shot injected errors.
	readErr  error
	writeErr error
	resetErr error
	openErr  error

	opens  int
	resets int
	mode   *serial.Mode
}

var _ link.Port = (*Port)(nil)

// Option configures a Port.
type Option func(*Port)

// WithTerminator sets the byte sequence that ends a command. Default "\r".
func WithTerminator(term string) Option {
	return func(p *Port) { p.terminator = []byte(term) }
}

// WithEmptyReadDelay sets how long Read blocks when no input is pending. Default 1ms.
func WithEmptyReadDelay(d time.Duration) Option {
	return func(p *Port) { p.emptyDelay = d }
}

// New creates a Port that answers commands with respond. respond may be nil.
func New(respond Responder, opts ...Option) *Port {
	p := &Port{
		respond:    respond,
		terminator: []byte("\r"),
		emptyDelay: time.Millisecond,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetResponder replaces the responder.
func (p *Port) SetResponder(respond Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.respond = respond
}

// Opener returns a link.Opener that hands out this port and marks it open.
func (p *Port) Opener() link.Opener {
	return func(_ string, mode *serial.Mode) (link.Port, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.openErr != nil {
			err := p.openErr
			p.openErr = nil

			return nil, err
		}

		p.closed = false
		p.opens++
		p.mode = mode

		return p, nil
	}
}

// Read implements io.Reader. It returns (0, nil) after a short wait when no
// input is pending, like a serial port whose read timeout expired.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}

	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		p.mu.Unlock()

		return 0, err
	}

	if p.input.Len() == 0 {
		delay := p.emptyDelay
		if p.readTimeout > 0 && p.readTimeout < delay {
			delay = p.readTimeout
		}
		p.mu.Unlock()
		time.Sleep(delay)

		return 0, nil
	}

	n, _ := p.input.Read(b)
	p.mu.Unlock()

	return n, nil
}

// Write implements io.Writer. The responder runs without the port lock held,
// so it may call back into the port.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}

	if p.writeErr != nil {
		err := p.writeErr
		p.writeErr = nil
		p.mu.Unlock()

		return 0, err
	}

	p.partial.Write(b)

	var cmds []string
	for {
		data := p.partial.Bytes()
		idx := bytes.Index(data, p.terminator)
		if idx < 0 {
			break
		}

		cmds = append(cmds, string(data[:idx]))
		p.partial.Next(idx + len(p.terminator))
	}

	p.cmds = append(p.cmds, cmds...)
	respond := p.respond
	p.mu.Unlock()

	if respond != nil {
		for _, cmd := range cmds {
			if reply := respond(cmd); len(reply) > 0 {
				p.Feed(reply)
			}
		}
	}

	return len(b), nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

// ResetInputBuffer discards pending input.
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resetErr != nil {
		err := p.resetErr
		p.resetErr = nil

		return err
	}

	p.input.Reset()
	p.resets++

	return nil
}

// ResetOutputBuffer discards a pending unterminated command.
func (p *Port) ResetOutputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.partial.Reset()

	return nil
}

// SetReadTimeout records the read timeout.
func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readTimeout = t

	return nil
}

// Feed queues bytes as if the device had sent them unprompted.
func (p *Port) Feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.input.Write(b)
}

// FeedAfter queues bytes after d elapses.
func (p *Port) FeedAfter(d time.Duration, b []byte) {
	time.AfterFunc(d, func() { p.Feed(b) })
}

// Commands returns the commands received so far, in order.
func (p *Port) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.cmds))
	copy(out, p.cmds)

	return out
}

// CountCommand returns how many times cmd was received.
func (p *Port) CountCommand(cmd string) int {
	n := 0
	for _, c := range p.Commands() {
		if c == cmd {
			n++
		}
	}

	return n
}

// Opens returns how many times the port was opened.
func (p *Port) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.opens
}

// Resets returns how many times the input buffer was reset.
func (p *Port) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.resets
}

// Mode returns the mode passed on the last open.
func (p *Port) Mode() *serial.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mode
}

// IsClosed reports whether Close was called since the last open.
func (p *Port) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// FailNextRead makes the next Read return err.
func (p *Port) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readErr = err
}

// FailNextWrite makes the next Write return err.
func (p *Port) FailNextWrite(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeErr = err
}

// FailNextReset makes the next ResetInputBuffer return err.
func (p *Port) FailNextReset(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetErr = err
}

// FailNextOpen makes the next open through Opener return err.
func (p *Port) FailNextOpen(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.openErr = err
}

// SimulateUnplug closes the port behind the driver's back.
func (p *Port) SimulateUnplug() {
	_ = p.Close()
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("fakeport: injected failure")
