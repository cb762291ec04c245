// Package apperr defines the error taxonomy shared by the engine, provider,
// session, and session-manager packages.
package apperr

import "errors"

// ErrOutOfRange is returned by measurement constructors when a value falls
// outside its valid domain (e.g. a latitude outside [-90, 90]).
var ErrOutOfRange = errors.New("value out of range")

// ErrInvalidState is returned when a provider lifecycle method is called
// from a state that does not permit it (e.g. Activate on a disabled provider).
var ErrInvalidState = errors.New("invalid provider state transition")

// ErrInsufficientPermissions is returned by the session manager when the
// permission manager rejects a session request.
var ErrInsufficientPermissions = errors.New("insufficient permissions")

// ErrDuplicateSession is returned when a session already exists at the
// object path resolved for the caller's confinement profile.
var ErrDuplicateSession = errors.New("duplicate session")

// ErrAgentUnavailable is returned internally by the permission manager when
// the external trust agent cannot be reached or times out. It never
// escapes the permission package: callers only observe Rejected.
var ErrAgentUnavailable = errors.New("trust agent unavailable")

// ErrTransport represents an IPC boundary I/O failure, local to the
// transport/boundary layer.
var ErrTransport = errors.New("transport error")

// ErrProviderTransient represents a recoverable fault reported by a
// provider backend. It is logged at the engine boundary and never
// propagated to a client.
var ErrProviderTransient = errors.New("transient provider fault")

// ServiceError is a generic, client-safe error surfaced by the session
// manager for any session-creation failure that is not one of the named
// sentinels above. It avoids leaking internal details to untrusted callers.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// ErrCreatingSession is the generic collapse target for session-creation
// failures other than permission/duplicate errors.
func ErrCreatingSession(detail string) *ServiceError {
	return &ServiceError{Code: "CREATING_SESSION", Message: detail}
}
