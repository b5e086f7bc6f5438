package txn

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/link"
	"github.com/google/uuid"
)

// maxAwaitBuffer bounds the text accumulated while awaiting a marker.
const maxAwaitBuffer = 16 * MaxReadSize

// Session is a sequence of transactions issued while holding the link.
// It is only valid inside the function passed to Engine.Session.
type Session struct {
	engine *Engine
	port   link.Port
}

// Engine returns the engine that opened the session.
func (s *Session) Engine() *Engine { return s.engine }

// Execute runs one transaction inside the session. See Engine.Execute.
func (s *Session) Execute(cmd string, g Grammar) (*Response, error) {
	resp := &Response{ID: uuid.NewString(), Command: cmd}
	start := time.Now()

	err := s.exchange(resp, g)

	resp.Outcome = device.Classify(err)
	resp.Elapsed = time.Since(start)
	s.record(resp, g, err)

	return resp, err
}

func (s *Session) exchange(resp *Response, g Grammar) error {
	if err := s.Flush(); err != nil {
		return err
	}

	if err := s.Write(resp.Command); err != nil {
		return err
	}

	data, err := s.engine.cfg.settle.await(s)
	if err != nil {
		return err
	}

	resp.Raw = Decode(data)
	resp.Tokens = strings.Fields(resp.Raw)

	if resp.Raw == "" {
		if g.AllowsEmpty() {
			return nil
		}

		return fmt.Errorf("%w: %q", ErrNoResponse, resp.Command)
	}

	if err := g.Validate(resp.Raw, resp.Tokens); err != nil {
		return fmt.Errorf("%q -> %q: %w", resp.Command, resp.Raw, err)
	}

	return nil
}

func (s *Session) record(resp *Response, g Grammar, err error) {
	s.engine.link.GetMetrics().RecordOutcome(resp.Outcome)

	if err != nil {
		s.engine.logger.Warn("transaction failed",
			"id", resp.ID, "cmd", resp.Command, "response", resp.Raw,
			"grammar", g.String(), "outcome", resp.Outcome.String(),
			"elapsed", resp.Elapsed, "error", err,
		)

		return
	}

	s.engine.logger.Info("transaction",
		"id", resp.ID, "cmd", resp.Command, "response", resp.Raw,
		"outcome", resp.Outcome.String(), "elapsed", resp.Elapsed,
	)
}

// Flush discards pending input and output and waits the link's flush settle.
func (s *Session) Flush() error {
	return s.engine.link.Flush(s.port)
}

// Write writes cmd followed by the line terminator, without flushing or reading.
func (s *Session) Write(cmd string) error {
	if _, err := s.port.Write([]byte(cmd + s.engine.cfg.terminator)); err != nil {
		return s.engine.link.Fail(fmt.Errorf("write %q: %w", cmd, err))
	}

	return nil
}

// ReadAvailable reads the bytes the device has sent, up to the configured
// read bound, and returns them decoded. An empty string means nothing arrived
// within the link's read timeout.
func (s *Session) ReadAvailable() (string, error) {
	data, err := s.readAvailable()
	if err != nil {
		return "", err
	}

	return Decode(data), nil
}

// Await accumulates input until it contains one of markers, waiting interval
// before each read, for at most timeout. It returns the accumulated text and
// the index of the marker found.
//
// If no marker arrives in time the error wraps ErrMarkerTimeout and the text
// received so far is returned.
func (s *Session) Await(timeout time.Duration, interval time.Duration, markers ...string) (string, int, error) {
	id := uuid.NewString()
	start := time.Now()
	deadline := start.Add(timeout)

	var text strings.Builder
	for {
		if interval > 0 {
			time.Sleep(interval)
		}

		chunk, err := s.ReadAvailable()
		if err != nil {
			s.engine.link.GetMetrics().RecordOutcome(device.TransportFailure)
			return text.String(), -1, err
		}

		if chunk != "" {
			if text.Len()+len(chunk) > maxAwaitBuffer {
				tail := text.String()
				tail = tail[len(tail)/2:]
				text.Reset()
				text.WriteString(tail)
			}
			text.WriteString(chunk)

			got := text.String()
			for i, m := range markers {
				if strings.Contains(got, m) {
					s.engine.link.GetMetrics().RecordOutcome(device.Success)
					s.engine.logger.Info("await",
						"id", id, "markers", markers, "response", got,
						"outcome", device.Success.String(), "elapsed", time.Since(start),
					)

					return got, i, nil
				}
			}
		}

		if !time.Now().Before(deadline) {
			got := text.String()
			s.engine.link.GetMetrics().RecordOutcome(device.Timeout)
			s.engine.logger.Warn("await timed out",
				"id", id, "markers", markers, "response", got,
				"outcome", device.Timeout.String(), "elapsed", time.Since(start),
			)

			return got, -1, fmt.Errorf("%w: %q within %v", ErrMarkerTimeout, markers, timeout)
		}
	}
}

// readAvailable performs one read bounded by the link's read timeout; once
// bytes arrive it keeps reading until the line stays silent for the
// inter-byte timeout or the read bound is reached.
func (s *Session) readAvailable() ([]byte, error) {
	maxRead := s.engine.cfg.maxRead
	chunk := make([]byte, maxRead)

	n, err := s.port.Read(chunk)
	if err != nil {
		return nil, s.engine.link.Fail(fmt.Errorf("read: %w", err))
	}

	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, 0, maxRead)
	buf = append(buf, chunk[:n]...)

	if len(buf) >= maxRead {
		return buf, nil
	}

	if err := s.port.SetReadTimeout(s.engine.cfg.interByteTimeout); err != nil {
		return nil, s.engine.link.Fail(fmt.Errorf("set read timeout: %w", err))
	}
	defer s.restoreReadTimeout()

	for len(buf) < maxRead {
		n, err := s.port.Read(chunk[:maxRead-len(buf)])
		if err != nil {
			return nil, s.engine.link.Fail(fmt.Errorf("read: %w", err))
		}

		if n == 0 {
			break
		}

		buf = append(buf, chunk[:n]...)
	}

	return buf, nil
}

// readUntil reads until terminator is seen, the read bound is reached or
// timeout elapses.
func (s *Session) readUntil(terminator string, timeout time.Duration) ([]byte, error) {
	maxRead := s.engine.cfg.maxRead
	linkTimeout := s.engine.link.Config().ReadTimeout()
	term := []byte(terminator)
	deadline := time.Now().Add(timeout)

	defer s.restoreReadTimeout()

	buf := make([]byte, 0, maxRead)
	chunk := make([]byte, maxRead)

	for len(buf) < maxRead {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		if err := s.port.SetReadTimeout(min(remaining, linkTimeout)); err != nil {
			return nil, s.engine.link.Fail(fmt.Errorf("set read timeout: %w", err))
		}

		n, err := s.port.Read(chunk[:maxRead-len(buf)])
		if err != nil {
			return nil, s.engine.link.Fail(fmt.Errorf("read: %w", err))
		}

		buf = append(buf, chunk[:n]...)
		if bytes.Contains(buf, term) {
			break
		}
	}

	return buf, nil
}

func (s *Session) restoreReadTimeout() {
	if err := s.port.SetReadTimeout(s.engine.link.Config().ReadTimeout()); err != nil {
		s.engine.logger.Debug("failed to restore read timeout", "error", err)
	}
}

// Decode converts raw device bytes to text, dropping invalid UTF-8 sequences
// and NUL bytes.
func Decode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	return strings.ReplaceAll(strings.ToValidUTF8(string(data), ""), "\x00", "")
}
