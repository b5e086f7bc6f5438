package telemetry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/internal/pool"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
)

// maxPending bounds the unframed input kept between reads.
const maxPending = 4096

// Reader decodes frames from one telemetry board. Input received after a
// frame is kept for the next ReadEvent.
type Reader struct {
	name   string
	link   *link.Link
	engine *txn.Engine
	logger logger.Logger
	opts   *options

	mu      sync.Mutex
	pending string
	last    Frame
	lastAt  time.Time
}

var _ device.Device = (*Reader)(nil)

// New creates the reader called name for the board attached to l.
func New(name string, l *link.Link, opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	cfg, err := txn.NewConfig(
		txn.WithDeviceTag(name),
		txn.WithMaxRead(1024),
		txn.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	eng := txn.New(l, cfg)

	return &Reader{
		name:   name,
		link:   l,
		engine: eng,
		logger: eng.GetLogger(),
		opts:   o,
	}, nil
}

// Name returns the logical name of the reader.
func (r *Reader) Name() string { return r.name }

// Kind returns device.KindTelemetry.
func (r *Reader) Kind() device.Kind { return device.KindTelemetry }

// Port returns the path of the board's serial link.
func (r *Reader) Port() string { return r.link.Path() }

// Last returns the most recently decoded frame and when it was decoded.
func (r *Reader) Last() (Frame, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.last, r.lastAt, !r.lastAt.IsZero()
}

// MaxWait returns how long ReadEvent can take before giving up on a silent
// board: one link read timeout per attempt plus the retry delays between them.
func (r *Reader) MaxWait() time.Duration {
	n := time.Duration(r.opts.attempts)

	return n*r.link.Config().ReadTimeout() + (n-1)*r.opts.retryDelay
}

// ReadEvent returns the next complete frame. It reads whatever the board has
// sent, up to the configured number of attempts, waiting the retry delay
// between them.
//
// On failure the zero Frame is returned together with ErrNoFrame or
// ErrMalformedFrame; a malformed frame is consumed.
func (r *Reader) ReadEvent(ctx context.Context) (Frame, error) {
	var frame Frame

	err := r.engine.Session(ctx, func(s *txn.Session) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		for attempt := range r.opts.attempts {
			if attempt > 0 {
				if err := pool.Sleep(ctx, r.opts.retryDelay); err != nil {
					return err
				}
			}

			chunk, err := s.ReadAvailable()
			if err != nil {
				return err
			}
			r.append(chunk)

			payload, ok := r.nextPayload()
			if !ok {
				continue
			}

			f, err := ParseFrame(payload)
			if err != nil {
				r.link.GetMetrics().RecordOutcome(device.Mismatch)
				r.logger.Warn("malformed frame", "payload", payload, "error", err)

				return err
			}

			r.link.GetMetrics().RecordOutcome(device.Success)
			r.logger.Debug("frame decoded", "frame", f, "attempts", attempt+1)
			frame = f
			r.last = f
			r.lastAt = time.Now()

			return nil
		}

		r.link.GetMetrics().RecordOutcome(device.Timeout)
		r.logger.Warn("no frame received", "attempts", r.opts.attempts, "pending", len(r.pending))

		return ErrNoFrame
	})
	if err != nil {
		return Frame{}, err
	}

	return frame, nil
}

func (r *Reader) append(chunk string) {
	r.pending += chunk
	if len(r.pending) > maxPending {
		r.pending = r.pending[len(r.pending)-maxPending:]
	}
}

// nextPayload cuts the first complete frame out of the pending input and
// returns its payload.
func (r *Reader) nextPayload() (string, bool) {
	header, footer := r.opts.header, r.opts.footer

	start := strings.Index(r.pending, header)
	if start < 0 {
		// keep a possibly split header
		if keep := len(header) - 1; len(r.pending) > keep {
			r.pending = r.pending[len(r.pending)-keep:]
		}

		return "", false
	}
	r.pending = r.pending[start:]

	end := strings.Index(r.pending[len(header):], footer)
	if end < 0 {
		return "", false
	}
	end += len(header)

	// a truncated frame leaves its header behind
	if start := frameStart(r.pending[:end], header); start > 0 {
		r.pending = r.pending[start:]
		end -= start
	}

	payload := r.pending[len(header):end]
	r.pending = r.pending[end+len(footer):]

	return payload, true
}

// frameStart returns the header in s closest to its end that still leaves a
// full set of fields before the end. A field may itself read like the header,
// so shorter candidates fall back to an earlier header; if none qualifies the
// last header wins.
func frameStart(s, header string) int {
	last := strings.LastIndex(s, header)
	for i := last; i >= 0; i = strings.LastIndex(s[:i], header) {
		payload := strings.TrimSpace(s[i+len(header):])
		if strings.Count(payload, "\r")+1 >= FrameFields {
			return i
		}
	}

	return last
}
