// Package buildererr defines the builder's distinct error kinds. Every
// error that crosses a component boundary wraps one of these so the CLI
// frame can both print a causal chain and let callers branch on kind.
package buildererr

import "github.com/pkg/errors"

// Kind identifies one of the builder's error categories.
type Kind int

const (
	ConfigNotFound Kind = iota
	ConfigParse
	ElfLoad
	ElfInvalid
	MappingUnresolved
	SymbolMissing
	VirtualExhausted
	PhysicalExhausted
	PageTableOverflow
	TerminalOutput
	IO
)

func (k Kind) String() string {
	switch k {
	case ConfigNotFound:
		return "ConfigNotFound"
	case ConfigParse:
		return "ConfigParse"
	case ElfLoad:
		return "ElfLoad"
	case ElfInvalid:
		return "ElfInvalid"
	case MappingUnresolved:
		return "MappingUnresolved"
	case SymbolMissing:
		return "SymbolMissing"
	case VirtualExhausted:
		return "VirtualExhausted"
	case PhysicalExhausted:
		return "PhysicalExhausted"
	case PageTableOverflow:
		return "PageTableOverflow"
	case TerminalOutput:
		return "TerminalOutput"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Error is a thin Kind side-channel over a github.com/pkg/errors chain: the
// chain itself (message, formatting, and Cause unwinding) is built entirely
// by errors.New/Errorf/WithMessage, not reimplemented here.
type Error struct {
	Kind  Kind
	chain error
}

func (e *Error) Error() string {
	return e.chain.Error()
}

// Cause returns the underlying pkg/errors chain, implementing the causer
// interface both github.com/pkg/errors and this package's KindOf walk.
func (e *Error) Cause() error {
	return e.chain
}

// New creates a bare Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, chain: errors.New(msg)}
}

// Newf creates a bare Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, chain: errors.Errorf(format, args...)}
}

// Wrap attaches kind to err's causal chain, delegating to errors.WithMessage
// so Cause() unwinds through err the same way any pkg/errors chain does.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, chain: errors.WithMessage(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, chain: errors.WithMessage(err, errors.Errorf(format, args...).Error())}
}

// causer is the interface pkg/errors wraps errors with.
type causer interface {
	Cause() error
}

// KindOf walks err's causal chain looking for a *Error and returns its
// Kind, or false if none is found.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if be, ok := err.(*Error); ok {
			return be.Kind, true
		}
		c, ok := err.(causer)
		if !ok {
			return 0, false
		}
		err = c.Cause()
	}
	return 0, false
}
