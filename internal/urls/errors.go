package urls

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
)

var (
	// ErrDuplicateRegistration is returned when an extension already has an active handler.
	ErrDuplicateRegistration = errors.New("protocol handler already registered")

	// ErrEmptyExtensionID is returned when registering without an identity.
	ErrEmptyExtensionID = errors.New("extension ID cannot be empty")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// DuplicateRegistrationError names the extension that is already registered.
type DuplicateRegistrationError struct {
	ExtensionID string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("protocol handler already registered for extension %s", e.ExtensionID)
}

func (e *DuplicateRegistrationError) Unwrap() error {
	return ErrDuplicateRegistration
}

// HandlerError wraps a failure raised by a dispatched handler.
type HandlerError struct {
	ExtensionID string
	Handle      int
	DispatchID  id.DispatchID
	Err         error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("uri handler for extension %s (handle %d) failed: %v", e.ExtensionID, e.Handle, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
