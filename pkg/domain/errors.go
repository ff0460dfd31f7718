package domain

import "errors"

// ErrUnknownForm is returned when a form id is not registered.
var ErrUnknownForm = errors.New("unknown form")

// ErrNoActiveSession is returned when an answer arrives for a user without an in_progress session.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionAlreadyActive is returned when a user tries to start a second form concurrently.
var ErrSessionAlreadyActive = errors.New("session already active")

// ErrGenerationUnavailable wraps every text-generation failure (transport, status, timeout, empty reply).
var ErrGenerationUnavailable = errors.New("generation service unavailable")

// ErrPersistence marks a failed read or write of the user record.
var ErrPersistence = errors.New("persistence failure")

// ErrUserNotFound is returned when a record does not exist in the store.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when registering an id that already holds a credential.
var ErrUserExists = errors.New("user already registered")

// ErrRegistrationRequired is returned when starting a form without a credential while registration is enforced.
var ErrRegistrationRequired = errors.New("registration required")

// ErrInvalidForm is returned for malformed form definitions.
var ErrInvalidForm = errors.New("invalid form definition")

// ErrFormExists is returned when adding a form whose id is already registered.
var ErrFormExists = errors.New("form already exists")

// ErrFormsReadOnly is returned when the form source does not accept new forms.
var ErrFormsReadOnly = errors.New("form source is read-only")

// UserMessage turns an orchestrator error into conversational text.
// Unknown errors are treated like persistence failures.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownForm):
		return "I couldn't find that form. Please check the form name and try again."
	case errors.Is(err, ErrNoActiveSession):
		return "You don't have a form in progress. Start one to begin."
	case errors.Is(err, ErrSessionAlreadyActive):
		return "You already have a form in progress. Please finish it or cancel it first."
	case errors.Is(err, ErrRegistrationRequired):
		return "Please register before starting a form."
	case errors.Is(err, ErrGenerationUnavailable):
		return "I can't chat right now. Please try again later."
	default:
		return "Something went wrong on our side. Please try again later."
	}
}
