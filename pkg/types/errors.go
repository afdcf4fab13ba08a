package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a capability failure so callers can pick a retry policy
// without inspecting transport details.
type ErrorKind string

const (
	ErrorKindUnknown   ErrorKind = "unknown"
	ErrorKindTransient ErrorKind = "transient" // network, 429, 5xx
	ErrorKindNotFound  ErrorKind = "not_found" // resource is gone
	ErrorKindAuth      ErrorKind = "auth"      // 401/403, bad or revoked credentials
	ErrorKindPermanent ErrorKind = "permanent" // request rejected as invalid
)

// Capability names
const (
	CapabilityMailbox  = "mailbox"
	CapabilityDelivery = "delivery"
)

// CapabilityError wraps a failed call to the mailbox or delivery capability
type CapabilityError struct {
	Capability string
	Op         string
	Kind       ErrorKind
	Code       int
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s failed (%s, %d): %v", e.Capability, e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Capability, e.Op, e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// From checks if the given error is a CapabilityError
func (e *CapabilityError) From(err error) bool {
	var capErr *CapabilityError
	return errors.As(err, &capErr)
}

// KindOf returns the kind of a CapabilityError anywhere in err's chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return capErr.Kind
	}
	return ErrorKindUnknown
}

// KindFromStatus maps an HTTP-style status code to an ErrorKind
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == 404 || code == 410:
		return ErrorKindNotFound
	case code == 401 || code == 403:
		return ErrorKindAuth
	case code == 429 || code == 408 || code >= 500:
		return ErrorKindTransient
	case code >= 400:
		return ErrorKindPermanent
	default:
		return ErrorKindUnknown
	}
}

// ErrObjectNotFound is returned by object storage for keys that do not exist
var ErrObjectNotFound = errors.New("object not found")

// ErrStartup is returned for failures that must terminate the process
type ErrStartup struct {
	Reason string
	Err    error
}

func (e *ErrStartup) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("startup failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("startup failed: %s", e.Reason)
}

func (e *ErrStartup) Unwrap() error {
	return e.Err
}

// From checks if the given error is an ErrStartup
func (e *ErrStartup) From(err error) bool {
	var startupErr *ErrStartup
	return errors.As(err, &startupErr)
}
