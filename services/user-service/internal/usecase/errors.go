package usecase

import (
	"errors"
	"fmt"
)

// Kind classifies a usecase error so the transport layer can translate it
// without string matching.
type Kind string

const (
	KindAuthentication     Kind = "authentication"
	KindAuthorization      Kind = "authorization"
	KindAuthorizationInfra Kind = "authorization_infra"
	KindProvisioning       Kind = "provisioning"
)

// Step names a stage of the provisioning saga.
type Step string

const (
	StepIdentity Step = "identity"
	StepProfile  Step = "profile"
	StepRole     Step = "role"
)

// ErrNoIdentityReturned is reported when the identity store accepted the
// creation call but returned no user record.
var ErrNoIdentityReturned = errors.New("identity store returned no user record")

// ErrAccessDenied is reported when the caller is authenticated but does not
// hold the admin role.
var ErrAccessDenied = errors.New("access denied")

// Error is the structured error returned by the usecase layer. It carries a
// kind, the saga step that failed (for provisioning errors), the underlying
// cause, and any compensation failure. Messages shown to callers are
// composed at the handler boundary only.
type Error struct {
	Kind Kind
	Step Step
	Err  error

	// RollbackErr is set when a compensating delete itself failed, leaving
	// the stores in an inconsistent state that needs manual cleanup. It is
	// logged and surfaced to operators, never to the caller.
	RollbackErr error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a usecase *Error from err, if it is one.
func AsError(err error) (*Error, bool) {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr, true
	}
	return nil, false
}
