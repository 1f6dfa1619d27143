package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymcheckin/internal/domain"
)

func TestDetectionManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, 10)
	cam := newScriptedCamera()
	m := NewDetectionManager(cam, []domain.DecoderProbe{unavailableProbe, probeOf(&fakeDecoder{name: "library"})}, fastOpts(), f.svc, discardLogger())

	assert.False(t, m.Status().Active)

	st, err := m.Start(ctx, "")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, "library", st.Strategy)
	assert.Equal(t, domain.FacingEnvironment, st.FacingMode)
	require.NotNil(t, st.StartedAt)

	_, err = m.Start(ctx, domain.FacingUser)
	require.ErrorIs(t, err, domain.ErrSessionActive)

	cam.frames <- frame("M-1001")
	require.Eventually(t, func() bool { return f.svc.Capacity().Count == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.Status().LastNotice == "in: Member M-1001" }, 2*time.Second, 5*time.Millisecond)

	cam.frames <- frame("X-0")
	require.Eventually(t, func() bool {
		return m.Status().LastNotice == `unknown member for payload "X-0"`
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Status().Active, "unknown member must not stop the loop")

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.False(t, m.Status().Active)
	assert.Equal(t, 1, cam.closedCount())
	assert.Equal(t, 1, f.repo.len())
}

func TestDetectionManager_StartFailureKeepsManualEntry(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, 10)
	cam := newScriptedCamera()
	cam.openErr = domain.ErrPermissionDenied
	m := NewDetectionManager(cam, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts(), f.svc, discardLogger())

	st, err := m.Start(ctx, domain.FacingUser)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.False(t, st.Active)
	assert.Contains(t, st.LastError, "camera permission denied")

	_, err = f.svc.ManualEntry(ctx, "M-1001", domain.CheckIn)
	require.NoError(t, err)
}

func TestDetectionManager_RestartAfterStop(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, 10)
	cam := newScriptedCamera()
	m := NewDetectionManager(cam, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts(), f.svc, discardLogger())

	_, err := m.Start(ctx, domain.FacingUser)
	require.NoError(t, err)
	require.NoError(t, m.Stop())

	st, err := m.Start(ctx, domain.FacingEnvironment)
	require.NoError(t, err)
	assert.Equal(t, domain.FacingEnvironment, st.FacingMode)
	require.NoError(t, m.Stop())
	assert.Equal(t, 2, cam.closedCount())
}

func TestDetectionManager_StatusWhileCameraOpens(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, 10)
	cam := gatedCamera()
	m := NewDetectionManager(cam, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts(), f.svc, discardLogger())

	started := make(chan error, 1)
	go func() {
		_, err := m.Start(ctx, domain.FacingEnvironment)
		started <- err
	}()
	waitForOpen(t, cam)
	_, err := m.Start(ctx, domain.FacingUser)
	require.ErrorIs(t, err, domain.ErrSessionActive, "second start while the first is opening")

	statusDone := make(chan domain.DetectionStatus, 1)
	go func() { statusDone <- m.Status() }()
	select {
	case st := <-statusDone:
		assert.False(t, st.Active)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Status blocked behind a pending camera open")
	}

	close(cam.gate)
	require.NoError(t, <-started)
	assert.True(t, m.Status().Active)
	require.NoError(t, m.Stop())
}

func TestDetectionManager_StopAbortsPendingOpen(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, 10)
	cam := gatedCamera()
	m := NewDetectionManager(cam, []domain.DecoderProbe{probeOf(&fakeDecoder{name: "library"})}, fastOpts(), f.svc, discardLogger())

	started := make(chan error, 1)
	go func() {
		_, err := m.Start(ctx, domain.FacingEnvironment)
		started <- err
	}()
	waitForOpen(t, cam)

	require.NoError(t, m.Stop())
	select {
	case err := <-started:
		require.ErrorIs(t, err, domain.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	st := m.Status()
	assert.False(t, st.Active)
	assert.Contains(t, st.LastError, "detection session closed")
	assert.Equal(t, 0, cam.closedCount())
}

func gatedCamera() *scriptedCamera {
	cam := newScriptedCamera()
	cam.gate = make(chan struct{})
	cam.waiting = make(chan struct{}, 4)
	return cam
}

func waitForOpen(t *testing.T, cam *scriptedCamera) {
	t.Helper()
	select {
	case <-cam.waiting:
	case <-time.After(time.Second):
		t.Fatal("camera open never started")
	}
}
