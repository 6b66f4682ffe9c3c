package service

import "errors"

// Stable error kinds returned by the services. Callers wrap them with
// fmt.Errorf("%w: ...") to attach context; handlers map them to HTTP
// statuses with errors.Is.
var (
	// ErrUnauthenticated: no usable identity was presented.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden: the caller resolved to an identity but lacks the
	// required role, ownership or grant.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: a referenced room/story/round/invite/participant
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest: well-formed but semantically invalid (closed
	// room, wrong round status, exhausted invite, ...).
	ErrBadRequest = errors.New("bad request")
	// ErrConflict: a concurrent invariant violation, e.g. starting a
	// round while one is active.
	ErrConflict = errors.New("conflict")
	// ErrInternalServer: unexpected failure.
	ErrInternalServer = errors.New("internal server error")
)

// isServiceError reports whether err already carries one of the kinds
// above, so transaction closures can bubble it up without re-wrapping
// into ErrInternalServer.
func isServiceError(err error) bool {
	for _, kind := range []error{
		ErrUnauthenticated, ErrForbidden, ErrNotFound,
		ErrBadRequest, ErrConflict, ErrInternalServer,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
