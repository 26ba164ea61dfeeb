package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingMember reports a member the resolved parent does not have.
	ErrMissingMember = errors.New("missing member")
	// ErrNotCallable reports a call on a member that is not a function.
	ErrNotCallable = errors.New("not callable")
	// ErrBadArguments reports arguments that do not fit the member's signature.
	ErrBadArguments = errors.New("bad arguments")
	// ErrFactory wraps a failure of the chain's root factory.
	ErrFactory = errors.New("chain: factory failed")
)

// MemberError describes a failed member access or call. Kind is the parent's concrete type.
type MemberError struct {
	Member string
	Kind   string
	Err    error
	// Detail is optional extra context, such as an argument mismatch.
	Detail string
}

func (e *MemberError) Error() string {
	msg := fmt.Sprintf("chain: %s %q on %s", e.Err, e.Member, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *MemberError) Unwrap() error { return e.Err }

func memberError(sentinel error, member string, parent any, detail string) *MemberError {
	return &MemberError{Member: member, Kind: kindOf(parent), Err: sentinel, Detail: detail}
}

func kindOf(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
