package services

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymcheckin/internal/domain"
)

func fastOpts() DetectionOptions {
	return DetectionOptions{Interval: time.Millisecond, OpenTimeout: time.Second, Logger: discardLogger()}
}

func TestDetectionSession_SkipsUnreadableFrames(t *testing.T) {
	cam := newScriptedCamera()
	cam.frames <- frame("")
	cam.frames <- frame("")
	cam.frames <- frame("M-1001")

	s, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts())
	require.NoError(t, err)
	defer s.Close()

	p, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "M-1001", p.Text)
	assert.False(t, p.CapturedAt.IsZero())
	assert.Empty(t, cam.frames)
}

func TestDetectionSession_CloseReleasesStream(t *testing.T) {
	cam := newScriptedCamera()
	s, err := OpenDetectionSession(context.Background(), cam, domain.FacingUser, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts())
	require.NoError(t, err)
	assert.True(t, s.Active())
	assert.Equal(t, domain.FacingUser, s.FacingMode())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Active())
	assert.Equal(t, 1, cam.closedCount())

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestDetectionSession_CloseDiscardsInFlightDecode(t *testing.T) {
	cam := newScriptedCamera()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	dec := &fakeDecoder{name: "library", hook: func() {
		once.Do(func() { close(entered) })
		<-unblock
	}}

	s, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, []domain.DecoderProbe{probeOf(dec)}, fastOpts())
	require.NoError(t, err)

	var delivered atomic.Int32
	runErr := make(chan error, 1)
	go func() {
		runErr <- s.Run(context.Background(), func(context.Context, domain.DecodedPayload) {
			delivered.Add(1)
		})
	}()

	cam.frames <- frame("M-1001")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("decoder never started")
	}

	require.NoError(t, s.Close())
	assert.Equal(t, 1, cam.closedCount())
	close(unblock)

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after close")
	}
	assert.Zero(t, delivered.Load())
}

func TestDetectionSession_RunDeliversSequentially(t *testing.T) {
	cam := newScriptedCamera()
	for i := 0; i < 20; i++ {
		cam.frames <- frame("M-1001")
	}
	dec := &fakeDecoder{name: "library", hook: func() { time.Sleep(time.Millisecond) }}
	s, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, []domain.DecoderProbe{probeOf(dec)}, fastOpts())
	require.NoError(t, err)

	got := make(chan domain.DecodedPayload, 32)
	runErr := make(chan error, 1)
	go func() {
		runErr <- s.Run(context.Background(), func(_ context.Context, p domain.DecodedPayload) { got <- p })
	}()

	for i := 0; i < 5; i++ {
		select {
		case p := <-got:
			assert.Equal(t, "M-1001", p.Text)
		case <-time.After(2 * time.Second):
			t.Fatalf("payload %d not delivered", i)
		}
	}
	require.NoError(t, s.Close())
	require.NoError(t, <-runErr)

	dec.mu.Lock()
	defer dec.mu.Unlock()
	assert.False(t, dec.overlap, "decode attempts overlapped")
}

func TestDetectionSession_RunReleasesOnCancel(t *testing.T) {
	cam := newScriptedCamera()
	s, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx, func(context.Context, domain.DecodedPayload) {}) }()
	cancel()

	select {
	case err := <-runErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run ignored cancellation")
	}
	assert.False(t, s.Active())
	assert.Equal(t, 1, cam.closedCount())
}

func TestOpenDetectionSession_DecoderSelection(t *testing.T) {
	native := &fakeDecoder{name: "native"}
	library := &fakeDecoder{name: "library"}

	tests := []struct {
		name   string
		probes []domain.DecoderProbe
		want   string
	}{
		{"native preferred", []domain.DecoderProbe{probeOf(native), probeOf(library)}, "native"},
		{"falls back to library", []domain.DecoderProbe{unavailableProbe, probeOf(library)}, "library"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenDetectionSession(context.Background(), newScriptedCamera(), domain.FacingEnvironment, tt.probes, fastOpts())
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, tt.want, s.Strategy())
		})
	}
}

func TestOpenDetectionSession_NoDecoderReleasesCamera(t *testing.T) {
	cam := newScriptedCamera()
	_, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, []domain.DecoderProbe{unavailableProbe, unavailableProbe}, fastOpts())
	require.ErrorIs(t, err, domain.ErrNoDecoderAvailable)
	assert.Equal(t, 1, cam.closedCount())
}

func TestOpenDetectionSession_CameraErrors(t *testing.T) {
	probes := []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}

	t.Run("device unavailable", func(t *testing.T) {
		cam := newScriptedCamera()
		cam.openErr = domain.ErrDeviceUnavailable
		_, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, probes, fastOpts())
		require.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	})

	t.Run("permission denied", func(t *testing.T) {
		cam := newScriptedCamera()
		cam.openErr = domain.ErrPermissionDenied
		_, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, probes, fastOpts())
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("unanswered prompt times out", func(t *testing.T) {
		cam := newScriptedCamera()
		cam.openDelay = 100 * time.Millisecond
		opts := fastOpts()
		opts.OpenTimeout = 10 * time.Millisecond

		_, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, probes, opts)
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
		assert.Eventually(t, func() bool { return cam.closedCount() == 1 }, 2*time.Second, 5*time.Millisecond,
			"late stream was not released")
	})
}

func TestDetectionSession_StreamLostEndsRun(t *testing.T) {
	cam := newScriptedCamera()
	s, err := OpenDetectionSession(context.Background(), cam, domain.FacingEnvironment, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts())
	require.NoError(t, err)

	failing := &failingStream{FrameStream: s.stream, err: domain.ErrDeviceUnavailable}
	s.stream = failing

	err = s.Run(context.Background(), func(context.Context, domain.DecodedPayload) {})
	require.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
	assert.False(t, s.Active())
	assert.Equal(t, 1, cam.closedCount())
}

type failingStream struct {
	domain.FrameStream
	err error
}

func (f *failingStream) NextFrame(ctx context.Context) (image.Image, error) { return nil, f.err }
