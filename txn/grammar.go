package txn

import (
	"fmt"
	"strings"
)

// Grammar validates a decoded response.
type Grammar interface {
	// Validate returns nil if raw, split into whitespace separated tokens,
	// is an acceptable answer.
	Validate(raw string, tokens []string) error
	// AllowsEmpty reports whether an empty response is acceptable.
	AllowsEmpty() bool
	String() string
}

type pairGrammar struct {
	name  string
	value string
}

// Pair expects exactly two tokens: name followed by value.
// It is the echo of a set/verify command.
func Pair(name string, value string) Grammar {
	return pairGrammar{name: name, value: value}
}

func (g pairGrammar) Validate(_ string, tokens []string) error {
	if len(tokens) != 2 || tokens[0] != g.name || tokens[1] != g.value {
		return fmt.Errorf("%w: want %q", ErrMismatch, g.name+" "+g.value)
	}

	return nil
}

func (pairGrammar) AllowsEmpty() bool { return false }

func (g pairGrammar) String() string { return "pair(" + g.name + " " + g.value + ")" }

type queryGrammar struct {
	name string
}

// Query expects exactly two tokens where the first is name.
func Query(name string) Grammar {
	return queryGrammar{name: name}
}

func (g queryGrammar) Validate(_ string, tokens []string) error {
	if len(tokens) != 2 || tokens[0] != g.name {
		return fmt.Errorf("%w: want %q followed by a value", ErrMismatch, g.name)
	}

	return nil
}

func (queryGrammar) AllowsEmpty() bool { return false }

func (g queryGrammar) String() string { return "query(" + g.name + ")" }

type fieldsGrammar struct {
	keyword string
	n       int
}

// Fields expects exactly n tokens where the first is keyword.
func Fields(keyword string, n int) Grammar {
	return fieldsGrammar{keyword: keyword, n: n}
}

func (g fieldsGrammar) Validate(_ string, tokens []string) error {
	if len(tokens) != g.n {
		return fmt.Errorf("%w: want %d tokens, got %d", ErrMismatch, g.n, len(tokens))
	}

	if tokens[0] != g.keyword {
		return fmt.Errorf("%w: want keyword %q, got %q", ErrMismatch, g.keyword, tokens[0])
	}

	return nil
}

func (fieldsGrammar) AllowsEmpty() bool { return false }

func (g fieldsGrammar) String() string { return fmt.Sprintf("fields(%s/%d)", g.keyword, g.n) }

type exactGrammar struct {
	text string
}

// Exact expects the response, without surrounding line terminators, to be
// byte-identical to text. It is used for echo verification and ready tokens.
func Exact(text string) Grammar {
	return exactGrammar{text: text}
}

func (g exactGrammar) Validate(raw string, _ []string) error {
	if TrimLine(raw) != g.text {
		return fmt.Errorf("%w: want exactly %q", ErrMismatch, g.text)
	}

	return nil
}

func (exactGrammar) AllowsEmpty() bool { return false }

func (g exactGrammar) String() string { return fmt.Sprintf("exact(%q)", g.text) }

type anyGrammar struct{ optional bool }

// Any accepts every non-empty response.
func Any() Grammar { return anyGrammar{} }

// Optional accepts every response, including none at all.
func Optional() Grammar { return anyGrammar{optional: true} }

func (g anyGrammar) Validate(raw string, _ []string) error {
	if !g.optional && strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: want a non-blank response", ErrMismatch)
	}

	return nil
}

func (g anyGrammar) AllowsEmpty() bool { return g.optional }

func (g anyGrammar) String() string {
	if g.optional {
		return "optional"
	}

	return "any"
}

// TrimLine removes leading and trailing CR and LF characters.
func TrimLine(s string) string {
	return strings.Trim(s, "\r\n")
}

type prefixGrammar struct {
	prefix string
}

// Prefix expects the response, without leading line terminators, to start with prefix.
func Prefix(prefix string) Grammar {
	return prefixGrammar{prefix: prefix}
}

func (g prefixGrammar) Validate(raw string, _ []string) error {
	if !strings.HasPrefix(strings.TrimLeft(raw, "\r\n"), g.prefix) {
		return fmt.Errorf("%w: want prefix %q", ErrMismatch, g.prefix)
	}

	return nil
}

func (prefixGrammar) AllowsEmpty() bool { return false }

func (g prefixGrammar) String() string { return fmt.Sprintf("prefix(%q)", g.prefix) }
