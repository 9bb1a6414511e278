package pool

import (
	"errors"
	"fmt"
)

// Kind classifies operator errors. The HTTP edge maps kinds to status codes;
// background loops use kinds to decide between retry, drop and crash.
type Kind int

const (
	// KindInternal is a bug or inconsistency; surfaced as 500, never a crash.
	KindInternal Kind = iota
	// KindConfigMissing is an absent or unparsable startup setting; fatal.
	KindConfigMissing
	// KindAuthFailure is a signature, token or nonce-partition mismatch; 401.
	KindAuthFailure
	// KindMalformedInput is undecodable input: bad JSON, pubkey, digest; 400.
	KindMalformedInput
	// KindProtocolViolation is well-formed input breaking pool rules; 400.
	KindProtocolViolation
	// KindNotFound is a member unknown to the local DB and the chain; 404.
	KindNotFound
	// KindChainTransient is a retryable RPC failure; logged, never surfaced.
	KindChainTransient
	// KindChainPermanent is unusable chain data (bad return data); dropped.
	KindChainPermanent
)

// Error is a classified operator error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pool: %s: %v", e.Msg, e.Err)
	}
	return "pool: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind extracts the kind of an error, defaulting to KindInternal.
func ErrKind(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func errAuth(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthFailure, Msg: fmt.Sprintf(format, args...)}
}

func errMalformed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformedInput, Msg: fmt.Sprintf(format, args...)}
}

func errProtocol(format string, args ...interface{}) *Error {
	return &Error{Kind: KindProtocolViolation, Msg: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func errTransient(msg string, err error) *Error {
	return &Error{Kind: KindChainTransient, Msg: msg, Err: err}
}

func errPermanent(msg string, err error) *Error {
	return &Error{Kind: KindChainPermanent, Msg: msg, Err: err}
}

func errInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}
