package frames

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConnection is returned when an operation runs before a connection exists.
	ErrNoConnection = errors.New("no connection established")
	// ErrTransport wraps read/write failures. The connection must be discarded.
	ErrTransport = errors.New("transport failure")
	// ErrEncoding wraps malformed plist bytes and values that cannot be encoded.
	ErrEncoding = errors.New("encoding failure")
	// ErrUnexpectedResponse is returned for well formed replies with a missing field or wrong shape.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrPairingDialogResponsePending means the device is still showing the trust dialog.
	ErrPairingDialogResponsePending = errors.New("pairing dialog response pending")
)

// ServiceError is an operation failure reported by the device itself.
type ServiceError struct {
	Service string
	Message string
}

func (this *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", this.Service, this.Message)
}

func transportError(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func encodingError(err error) error {
	return fmt.Errorf("%w: %w", ErrEncoding, err)
}

// Unexpected wraps ErrUnexpectedResponse with a description of what was missing.
func Unexpected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedResponse, fmt.Sprintf(format, args...))
}
