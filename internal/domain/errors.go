package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services, repositories and delivery.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Attendance errors.
var (
	// ErrUnknownMember is wrapped by UnknownMemberError.
	ErrUnknownMember  = errors.New("unknown member")
	ErrNotPresent     = errors.New("member is not checked in")
	ErrAlreadyPresent = errors.New("member is already checked in")
	ErrMalformedEvent = errors.New("malformed attendance event")
)

// Detection errors. ErrPermissionDenied, ErrDeviceUnavailable and
// ErrNoDecoderAvailable end a detection session; manual entry keeps working.
var (
	ErrPermissionDenied   = errors.New("camera permission denied")
	ErrDeviceUnavailable  = errors.New("camera device unavailable")
	ErrNoDecoderAvailable = errors.New("no code decoder available")
	ErrDecoderUnavailable = errors.New("decoder unavailable on this host")
	ErrSessionActive      = errors.New("detection session already active")
	ErrSessionClosed      = errors.New("detection session closed")
)

// UnknownMemberError reports a scan whose payload did not resolve to a member.
// It is recoverable: the scan loop keeps running and nothing is appended.
type UnknownMemberError struct {
	Payload string
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("unknown member for payload %q", e.Payload)
}

func (e *UnknownMemberError) Unwrap() error { return ErrUnknownMember }
