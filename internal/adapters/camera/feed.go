// Package camera provides a push-fed domain.Camera. Clients that own the real
// device (a browser tab, a kiosk) upload frames; the detection loop pulls them.
package camera

import (
	"context"
	"image"
	"sync"

	"gymcheckin/internal/domain"
)

// Feed is a single-device camera. Only one stream may be open at a time and
// only the most recent unread frame is kept.
type Feed struct {
	mu     sync.Mutex
	denied bool
	stream *feedStream
}

// NewFeed returns an idle feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Open implements domain.Camera.
func (f *Feed) Open(ctx context.Context, mode domain.FacingMode) (domain.FrameStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return nil, domain.ErrPermissionDenied
	}
	if f.stream != nil {
		return nil, domain.ErrDeviceUnavailable
	}
	s := &feedStream{
		feed:   f,
		mode:   mode,
		frames: make(chan image.Image, 1),
		done:   make(chan struct{}),
	}
	f.stream = s
	return s, nil
}

// Publish hands a frame to the open stream, replacing any unread frame.
// It reports false when no stream is open.
func (f *Feed) Publish(img image.Image) bool {
	f.mu.Lock()
	s := f.stream
	f.mu.Unlock()
	if s == nil {
		return false
	}
	return s.push(img)
}

// Deny records that the device owner refused camera access. Later opens fail
// with ErrPermissionDenied and an open stream is closed.
func (f *Feed) Deny() {
	f.mu.Lock()
	f.denied = true
	s := f.stream
	f.mu.Unlock()
	if s != nil {
		s.fail(domain.ErrPermissionDenied)
	}
}

// Allow clears a previous Deny.
func (f *Feed) Allow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied = false
}

func (f *Feed) detach(s *feedStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stream == s {
		f.stream = nil
	}
}

type feedStream struct {
	feed   *Feed
	mode   domain.FacingMode
	frames chan image.Image

	once sync.Once
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (s *feedStream) push(img image.Image) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	for {
		select {
		case s.frames <- img:
			return true
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

func (s *feedStream) NextFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.done:
		return nil, s.closedErr()
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, s.closedErr()
	case img := <-s.frames:
		return img, nil
	}
}

func (s *feedStream) Close() error {
	s.fail(domain.ErrSessionClosed)
	return nil
}

func (s *feedStream) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		s.feed.detach(s)
	})
}

func (s *feedStream) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
