package clusterview

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is one of the three error categories this core ever surfaces.
type ErrorKind int

const (
	// NoEstablishedView covers: non-final descriptor, empty active set,
	// an unresolvable (non-suppressible) member, or a missing local
	// instance.
	NoEstablishedView ErrorKind = iota + 1

	// IsolatedFromTopology is returned when the computed view does not
	// include the local member.
	IsolatedFromTopology

	// RepositoryException covers any repository read/write failure,
	// parse failure, or inability to persist a cluster id after bounded
	// retries.
	RepositoryException
)

func (k ErrorKind) String() string {
	switch k {
	case NoEstablishedView:
		return "NO_ESTABLISHED_VIEW"
	case IsolatedFromTopology:
		return "ISOLATED_FROM_TOPOLOGY"
	case RepositoryException:
		return "REPOSITORY_EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

// ViewError is the tagged-sum error surface of this core. Callers should
// switch on Kind rather than matching error strings.
type ViewError struct {
	Kind   ErrorKind
	Reason string
	cause  error
}

func (e *ViewError) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Reason)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *ViewError) Unwrap() error {
	return e.cause
}

// Is allows errors.Is(err, &ViewError{Kind: NoEstablishedView}) style
// checks by comparing Kind when the target is itself a *ViewError.
func (e *ViewError) Is(target error) bool {
	t, ok := target.(*ViewError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newNoEstablishedView(reason string) *ViewError {
	return &ViewError{Kind: NoEstablishedView, Reason: reason}
}

func newIsolatedFromTopology(reason string) *ViewError {
	return &ViewError{Kind: IsolatedFromTopology, Reason: reason}
}

func newRepositoryException(reason string, cause error) *ViewError {
	return &ViewError{
		Kind:   RepositoryException,
		Reason: reason,
		cause:  errors.WithMessage(cause, reason),
	}
}

// KindOf is a convenience that extracts the ErrorKind from err, returning
// 0 if err is not a *ViewError.
func KindOf(err error) ErrorKind {
	ve, ok := err.(*ViewError)
	if !ok {
		return 0
	}
	return ve.Kind
}
