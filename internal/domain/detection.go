package domain

import (
	"context"
	"image"
	"time"
)

// FacingMode selects which camera to open.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Camera opens frame streams. Open fails with ErrPermissionDenied or
// ErrDeviceUnavailable.
type Camera interface {
	Open(ctx context.Context, mode FacingMode) (FrameStream, error)
}

// FrameStream is an open camera. Close releases the device and must be safe
// to call more than once.
type FrameStream interface {
	// NextFrame blocks until a frame is available or ctx is done.
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Decoder turns a single frame into a payload. ok=false with a nil error means
// no code was readable in this frame.
type Decoder interface {
	Name() string
	TryDecode(ctx context.Context, frame image.Image) (payload string, ok bool, err error)
}

// DecoderProbe reports whether a decoder can run on this host. It returns
// ErrDecoderUnavailable when it cannot.
type DecoderProbe func() (Decoder, error)

// DecodedPayload is one element of a detection session's output.
type DecodedPayload struct {
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}

// DetectionStatus describes the running detection session, if any.
// swagger:model DetectionStatus
type DetectionStatus struct {
	Active     bool       `json:"active"`
	Strategy   string     `json:"strategy,omitempty"`
	FacingMode FacingMode `json:"facing_mode,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	LastNotice string     `json:"last_notice,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// DetectionService controls the single detection session of a facility.
type DetectionService interface {
	Start(ctx context.Context, mode FacingMode) (DetectionStatus, error)
	Stop() error
	Status() DetectionStatus
}

// ParseFacingMode accepts "user" and "environment"; empty selects environment.
func ParseFacingMode(s string) (FacingMode, bool) {
	switch FacingMode(s) {
	case "", FacingEnvironment:
		return FacingEnvironment, true
	case FacingUser:
		return FacingUser, true
	}
	return "", false
}
