package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gymcheckin/internal/domain"
)

// Detection defaults.
const (
	DefaultScanInterval      = 150 * time.Millisecond
	DefaultCameraOpenTimeout = 10 * time.Second
)

// DetectionOptions tunes a detection session.
type DetectionOptions struct {
	// Interval is the pause between decode attempts.
	Interval time.Duration
	// OpenTimeout bounds camera acquisition; an unanswered permission prompt
	// resolves to ErrPermissionDenied.
	OpenTimeout time.Duration
	Clock       domain.Clock
	Logger      *slog.Logger
}

func (o DetectionOptions) withDefaults() DetectionOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultScanInterval
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = DefaultCameraOpenTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// DetectionSession wraps an open camera stream and the decoder chosen for it.
// Decode attempts are strictly sequential. After Close returns, no payload is
// delivered and the stream has been released.
type DetectionSession struct {
	stream  domain.FrameStream
	decoder domain.Decoder
	mode    domain.FacingMode
	opts    DetectionOptions

	// deliverMu is held while a payload is handed to a consumer; Close takes
	// it first so nothing is delivered once Close has returned.
	deliverMu sync.Mutex

	mu     sync.Mutex
	active bool
	busy   bool
	cancel context.CancelFunc
}

// OpenDetectionSession acquires a camera stream and selects the first decoder
// whose probe succeeds. If no probe succeeds the stream is released and
// ErrNoDecoderAvailable is returned.
func OpenDetectionSession(ctx context.Context, camera domain.Camera, mode domain.FacingMode, probes []domain.DecoderProbe, opts DetectionOptions) (*DetectionSession, error) {
	opts = opts.withDefaults()

	stream, err := openCamera(ctx, camera, mode, opts.OpenTimeout)
	if err != nil {
		return nil, err
	}

	decoder, err := selectDecoder(probes, opts.Logger)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	return &DetectionSession{
		stream:  stream,
		decoder: decoder,
		mode:    mode,
		opts:    opts,
		active:  true,
	}, nil
}

type openResult struct {
	stream domain.FrameStream
	err    error
}

func openCamera(ctx context.Context, camera domain.Camera, mode domain.FacingMode, timeout time.Duration) (domain.FrameStream, error) {
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan openResult, 1)
	go func() {
		s, err := camera.Open(openCtx, mode)
		results <- openResult{stream: s, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("open camera: %w", domain.ErrPermissionDenied)
			}
			return nil, fmt.Errorf("open camera: %w", res.err)
		}
		return res.stream, nil
	case <-openCtx.Done():
		// A stream that shows up late is released right away.
		go func() {
			if res := <-results; res.stream != nil {
				_ = res.stream.Close()
			}
		}()
		if errors.Is(openCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("open camera: %w", domain.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("open camera: %w", openCtx.Err())
	}
}

func selectDecoder(probes []domain.DecoderProbe, logger *slog.Logger) (domain.Decoder, error) {
	for _, probe := range probes {
		d, err := probe()
		if err == nil && d != nil {
			logger.Info("decoder selected", "strategy", d.Name())
			return d, nil
		}
		logger.Debug("decoder probe failed", "err", err)
	}
	return nil, domain.ErrNoDecoderAvailable
}

// Strategy is the name of the selected decoder.
func (s *DetectionSession) Strategy() string { return s.decoder.Name() }

// FacingMode is the camera this session was opened with.
func (s *DetectionSession) FacingMode() domain.FacingMode { return s.mode }

// Active reports whether the session has not been closed.
func (s *DetectionSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Next blocks until a frame decodes, returning the payload. Frames without a
// readable code are skipped and the loop waits one interval before retrying.
// It returns ErrSessionClosed once the session is closed.
func (s *DetectionSession) Next(ctx context.Context) (domain.DecodedPayload, error) {
	loopCtx, err := s.acquire(ctx)
	if err != nil {
		return domain.DecodedPayload{}, err
	}
	defer s.release()

	for {
		payload, ok, err := s.tick(loopCtx)
		if err != nil {
			return domain.DecodedPayload{}, s.loopErr(ctx, err)
		}
		if ok {
			if !s.Active() {
				return domain.DecodedPayload{}, domain.ErrSessionClosed
			}
			return payload, nil
		}
		if err := s.wait(loopCtx); err != nil {
			return domain.DecodedPayload{}, s.loopErr(ctx, err)
		}
	}
}

// Run delivers every decoded payload to onDetected until ctx is done, the
// session is closed, or the stream fails. The stream is released on every
// exit path. A Close from another goroutine makes Run return nil.
// onDetected must not call Close.
func (s *DetectionSession) Run(ctx context.Context, onDetected func(context.Context, domain.DecodedPayload)) error {
	defer s.Close()
	for {
		payload, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrSessionClosed) {
				return nil
			}
			return err
		}
		if !s.deliver(ctx, payload, onDetected) {
			return nil
		}
		if err := s.wait(ctx); err != nil {
			return s.loopErr(ctx, err)
		}
	}
}

func (s *DetectionSession) deliver(ctx context.Context, p domain.DecodedPayload, onDetected func(context.Context, domain.DecodedPayload)) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.Active() {
		return false
	}
	onDetected(ctx, p)
	return true
}

// Close stops the loop and releases the camera. It is safe to call twice.
func (s *DetectionSession) Close() error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	s.active = false
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("release camera: %w", err)
	}
	return nil
}

func (s *DetectionSession) acquire(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, domain.ErrSessionClosed
	}
	if s.busy {
		return nil, errors.New("detection session: concurrent decode attempt")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.busy = true
	s.cancel = cancel
	return loopCtx, nil
}

func (s *DetectionSession) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.busy = false
}

// tick runs one bounded attempt: grab a frame and try to decode it.
func (s *DetectionSession) tick(ctx context.Context) (domain.DecodedPayload, bool, error) {
	frame, err := s.stream.NextFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DecodedPayload{}, false, ctx.Err()
		}
		if errors.Is(err, domain.ErrDeviceUnavailable) || errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrSessionClosed) {
			return domain.DecodedPayload{}, false, err
		}
		s.opts.Logger.Debug("frame unavailable", "err", err)
		return domain.DecodedPayload{}, false, nil
	}

	text, ok, err := s.decoder.TryDecode(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DecodedPayload{}, false, ctx.Err()
		}
		if errors.Is(err, domain.ErrDecoderUnavailable) {
			return domain.DecodedPayload{}, false, err
		}
		s.opts.Logger.Debug("decode attempt failed", "strategy", s.decoder.Name(), "err", err)
		return domain.DecodedPayload{}, false, nil
	}
	if !ok || text == "" {
		return domain.DecodedPayload{}, false, nil
	}
	return domain.DecodedPayload{Text: text, CapturedAt: s.now()}, true, nil
}

func (s *DetectionSession) wait(ctx context.Context) error {
	t := time.NewTimer(s.opts.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// loopErr maps a loop error: cancellation caused by Close reads as
// ErrSessionClosed, cancellation of the caller's ctx is returned as is.
func (s *DetectionSession) loopErr(parent context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if parent.Err() != nil {
			return parent.Err()
		}
		if !s.Active() {
			return domain.ErrSessionClosed
		}
	}
	return err
}

func (s *DetectionSession) now() time.Time {
	if s.opts.Clock != nil {
		return s.opts.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
