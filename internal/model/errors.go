// This file defines the error types shared by the repository, registry
// client and orchestrator layers.  Handlers inspect them with errors.As to
// pick the HTTP status: validation errors map to 400, missing entities to
// 404, rejected transitions to 409, rejected credentials to 401 and
// unreachable registries to 502.  Errors always abort the operation; no
// layer swallows them or returns a partial result.
package model

import "fmt"

// NotFoundError reports that an entity does not exist.  It is returned for
// the local reservation as well as for remote spots and vehicles, with
// Entity naming which one.
type NotFoundError struct {
	Entity string
	ID     uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ValidationError reports malformed caller input.  It is raised before any
// remote call is attempted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// InvalidTransitionError reports an attempt to complete or cancel a
// reservation that is already in a terminal state.
type InvalidTransitionError struct {
	ID   uint64
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reservation %d is %s and cannot become %s", e.ID, e.From, e.To)
}

// SpotUnavailableError reports that a parking spot cannot be reserved
// because it is not FREE at the moment of the check.
type SpotUnavailableError struct {
	ID     uint64
	Status string
}

func (e *SpotUnavailableError) Error() string {
	return fmt.Sprintf("parking spot %d is %s and cannot be reserved", e.ID, e.Status)
}

// UnauthorizedError reports that a registry rejected the forwarded
// credential (or its absence).
type UnauthorizedError struct {
	Service string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s rejected the caller credential", e.Service)
}

// RemoteUnavailableError reports a transport failure or timeout talking to
// a registry.  Cause carries the underlying error.
type RemoteUnavailableError struct {
	Service string
	Cause   error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Cause)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Cause }
