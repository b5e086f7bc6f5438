package txn

import (
	"context"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
)

// Response is the result of one transaction.
type Response struct {
	// ID identifies the transaction in audit records.
	ID string
	// Command is the command as written, without terminator.
	Command string
	// Raw is the decoded response text.
	Raw string
	// Tokens is Raw split on whitespace.
	Tokens []string
	// Outcome is the classification of the transaction.
	Outcome device.Outcome
	// Elapsed is the time from flush to classification.
	Elapsed time.Duration
}

// Token returns the i-th token, or an empty string if there are fewer tokens.
func (r *Response) Token(i int) string {
	if r == nil || i < 0 || i >= len(r.Tokens) {
		return ""
	}

	return r.Tokens[i]
}

// Line returns the response without surrounding CR and LF characters.
func (r *Response) Line() string {
	if r == nil {
		return ""
	}

	return TrimLine(r.Raw)
}

// Engine runs transactions for one device over its link.
//
// Several engines may share a link, for instance the axes of one motion
// controller; the link guarantees that their transactions never interleave.
type Engine struct {
	link   *link.Link
	cfg    *Config
	logger logger.Logger
}

// New creates an Engine that talks over l with the parameters in cfg.
func New(l *link.Link, cfg *Config) *Engine {
	return &Engine{
		link:   l,
		cfg:    cfg,
		logger: cfg.logger.With("device", cfg.tag, "port", l.Path()),
	}
}

// Link returns the link the engine talks over.
func (e *Engine) Link() *link.Link { return e.link }

// Config returns the transaction configuration.
func (e *Engine) Config() *Config { return e.cfg }

// GetLogger returns the engine's logger, tagged with the device and port.
func (e *Engine) GetLogger() logger.Logger { return e.logger }

// Execute runs a single transaction: flush, write cmd, settle, read, validate.
//
// The returned Response is never nil; on failure it carries whatever was
// received so callers can report it. ctx only bounds the wait for the link.
func (e *Engine) Execute(ctx context.Context, cmd string, g Grammar) (*Response, error) {
	var resp *Response

	err := e.Session(ctx, func(s *Session) error {
		var err error
		resp, err = s.Execute(cmd, g)

		return err
	})

	if resp == nil {
		resp = &Response{Command: cmd, Outcome: device.Classify(err)}
	}

	return resp, err
}

// Session runs fn while holding the link, so that the transactions issued
// through the Session form one uninterrupted sequence on the line.
//
// ctx bounds the wait for the link; once fn runs it is never interrupted.
func (e *Engine) Session(ctx context.Context, fn func(s *Session) error) error {
	return e.link.Exclusive(ctx, func(p link.Port) error {
		return fn(&Session{engine: e, port: p})
	})
}
