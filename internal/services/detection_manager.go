package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gymcheckin/internal/domain"
)

// DetectionManager runs at most one detection session and feeds its payloads
// into the attendance service through the same onDetected path the kiosk uses.
type DetectionManager struct {
	camera     domain.Camera
	probes     []domain.DecoderProbe
	opts       DetectionOptions
	attendance domain.AttendanceService
	logger     *slog.Logger

	mu        sync.Mutex
	session   *DetectionSession
	done      chan struct{}
	startedAt time.Time
	notice    string
	lastErr   string

	// cancelOpen is set while a Start is acquiring the camera.
	cancelOpen context.CancelFunc
}

// NewDetectionManager returns an idle manager.
func NewDetectionManager(camera domain.Camera, probes []domain.DecoderProbe, opts DetectionOptions, attendance domain.AttendanceService, logger *slog.Logger) *DetectionManager {
	opts.Logger = logger
	return &DetectionManager{
		camera:     camera,
		probes:     probes,
		opts:       opts,
		attendance: attendance,
		logger:     logger,
	}
}

// Start opens a session and runs its loop in the background until Stop, a
// fatal stream error, or ctx is done. The camera is acquired outside the
// manager lock. A concurrent Start gets ErrSessionActive and Stop aborts a
// pending acquisition with ErrSessionClosed.
func (m *DetectionManager) Start(ctx context.Context, mode domain.FacingMode) (domain.DetectionStatus, error) {
	if mode == "" {
		mode = domain.FacingEnvironment
	}

	m.mu.Lock()
	if m.session != nil || m.cancelOpen != nil {
		st := m.statusLocked()
		m.mu.Unlock()
		return st, domain.ErrSessionActive
	}
	openCtx, cancel := context.WithCancel(ctx)
	m.cancelOpen = cancel
	m.mu.Unlock()

	session, err := OpenDetectionSession(openCtx, m.camera, mode, m.probes, m.opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelOpen = nil
	stopped := openCtx.Err() != nil && ctx.Err() == nil
	cancel()
	if stopped {
		if err == nil {
			_ = session.Close()
		}
		err = domain.ErrSessionClosed
	}
	if err != nil {
		m.lastErr = err.Error()
		m.logger.Warn("detection session failed to open", "facing_mode", mode, "err", err)
		return m.statusLocked(), err
	}

	m.session = session
	m.done = make(chan struct{})
	m.startedAt = time.Now().UTC()
	m.notice = ""
	m.lastErr = ""

	runCtx := context.WithoutCancel(ctx)
	go m.run(runCtx, session, m.done)

	m.logger.Info("detection session started", "strategy", session.Strategy(), "facing_mode", mode)
	return m.statusLocked(), nil
}

func (m *DetectionManager) run(ctx context.Context, session *DetectionSession, done chan struct{}) {
	defer close(done)
	err := session.Run(ctx, m.OnDetected)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == session {
		m.session = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		m.lastErr = err.Error()
		m.logger.Error("detection session ended", "err", err)
		return
	}
	m.logger.Info("detection session stopped")
}

// OnDetected is the onDetected(payload) contract shared by the attended
// screen and the kiosk. Unknown members are noted and the loop continues.
func (m *DetectionManager) OnDetected(ctx context.Context, p domain.DecodedPayload) {
	out, err := m.attendance.Scan(ctx, p.Text)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		var unknown *domain.UnknownMemberError
		if errors.As(err, &unknown) {
			m.notice = unknown.Error()
			return
		}
		m.notice = err.Error()
		m.logger.Error("scan dispatch failed", "err", err)
		return
	}
	m.notice = string(out.Event.Kind) + ": " + out.Member.DisplayName
}

// Stop closes the running session, if any, and waits for its loop to exit.
// A Start still acquiring the camera is aborted.
func (m *DetectionManager) Stop() error {
	m.mu.Lock()
	session, done := m.session, m.done
	m.session = nil
	if m.cancelOpen != nil {
		m.cancelOpen()
	}
	m.mu.Unlock()
	if session == nil {
		return nil
	}
	err := session.Close()
	<-done
	return err
}

// Status reports the current session.
func (m *DetectionManager) Status() domain.DetectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *DetectionManager) statusLocked() domain.DetectionStatus {
	st := domain.DetectionStatus{LastNotice: m.notice, LastError: m.lastErr}
	if m.session != nil {
		started := m.startedAt
		st.Active = true
		st.Strategy = m.session.Strategy()
		st.FacingMode = m.session.FacingMode()
		st.StartedAt = &started
	}
	return st
}
