package services

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"gymcheckin/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeDirectory implements domain.MemberDirectory for tests.
type fakeDirectory struct {
	members map[string]*domain.Member
	err     error
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{members: make(map[string]*domain.Member)}
	for _, id := range ids {
		d.members[id] = &domain.Member{ID: id, DisplayName: "Member " + id}
	}
	return d
}

func (d *fakeDirectory) Lookup(ctx context.Context, id string) (*domain.Member, error) {
	if d.err != nil {
		return nil, d.err
	}
	m, ok := d.members[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// seqIDs yields e0001, e0002, ... which sort in creation order.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) New(at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("e%04d", g.n), nil
}

// stepClock advances by one second on every read.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(start time.Time) *stepClock { return &stepClock{now: start} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// fakeEventRepo implements domain.AttendanceEventRepository in memory.
type fakeEventRepo struct {
	mu        sync.Mutex
	events    []domain.AttendanceEvent
	appendErr error
	deleteErr error
}

func (r *fakeEventRepo) Append(ctx context.Context, e domain.AttendanceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.events = append(r.events, e)
	return nil
}

func (r *fakeEventRepo) ListAll(ctx context.Context) ([]domain.AttendanceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AttendanceEvent(nil), r.events...), nil
}

func (r *fakeEventRepo) List(ctx context.Context, filter domain.HistoryFilter, page domain.PaginationParams) ([]domain.AttendanceEvent, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := FilterHistory(r.events, filter)
	lo, hi := pageWindow(page, len(matched))
	return matched[lo:hi], len(matched), nil
}

func (r *fakeEventRepo) DeleteRange(ctx context.Context, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	kept := r.events[:0]
	var n int64
	for _, e := range r.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return n, nil
}

func (r *fakeEventRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// fakeSettings implements domain.FacilitySettingsRepository.
type fakeSettings struct {
	stored map[string]domain.CapacityConfig
}

func (f *fakeSettings) GetCapacity(ctx context.Context, facilityID string) (domain.CapacityConfig, error) {
	cfg, ok := f.stored[facilityID]
	if !ok {
		return domain.CapacityConfig{}, domain.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeSettings) SaveCapacity(ctx context.Context, facilityID string, cfg domain.CapacityConfig) error {
	if f.stored == nil {
		f.stored = make(map[string]domain.CapacityConfig)
	}
	f.stored[facilityID] = cfg
	return nil
}

// chanNotifier records alerts on a buffered channel.
type chanNotifier struct {
	alerts chan domain.CapacityAlert
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{alerts: make(chan domain.CapacityAlert, 16)}
}

func (n *chanNotifier) NotifyCapacity(ctx context.Context, alert domain.CapacityAlert) error {
	n.alerts <- alert
	return nil
}

// scriptedCamera hands out frames from a channel.
type scriptedCamera struct {
	openErr   error
	openDelay time.Duration
	frames    chan image.Image
	// gate, when set, holds Open until it is closed or ctx is done. waiting
	// receives a value each time an Open starts to wait on it.
	gate    chan struct{}
	waiting chan struct{}

	mu     sync.Mutex
	opened int
	closed int
}

func newScriptedCamera() *scriptedCamera {
	return &scriptedCamera{frames: make(chan image.Image, 64)}
}

func (c *scriptedCamera) Open(ctx context.Context, mode domain.FacingMode) (domain.FrameStream, error) {
	if c.openDelay > 0 {
		time.Sleep(c.openDelay)
	}
	if c.gate != nil {
		c.waiting <- struct{}{}
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
	return &scriptedStream{cam: c, done: make(chan struct{})}, nil
}

func (c *scriptedCamera) closedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type scriptedStream struct {
	cam  *scriptedCamera
	once sync.Once
	done chan struct{}
}

func (s *scriptedStream) NextFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, domain.ErrSessionClosed
	case f := <-s.cam.frames:
		return f, nil
	}
}

func (s *scriptedStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.cam.mu.Lock()
		s.cam.closed++
		s.cam.mu.Unlock()
	})
	return nil
}

// textFrame is an image carrying the payload a fakeDecoder reads back.
type textFrame struct {
	image.Image
	text string
}

func frame(text string) image.Image {
	return textFrame{Image: image.NewGray(image.Rect(0, 0, 1, 1)), text: text}
}

// fakeDecoder reads textFrame payloads; an empty text is an unreadable frame.
type fakeDecoder struct {
	name string

	mu       sync.Mutex
	inFlight int
	overlap  bool
	hook     func()
}

func (d *fakeDecoder) Name() string { return d.name }

func (d *fakeDecoder) TryDecode(ctx context.Context, img image.Image) (string, bool, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > 1 {
		d.overlap = true
	}
	hook := d.hook
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if hook != nil {
		hook()
	}
	f, ok := img.(textFrame)
	if !ok || f.text == "" {
		return "", false, nil
	}
	return f.text, true, nil
}

func probeOf(d domain.Decoder) domain.DecoderProbe {
	return func() (domain.Decoder, error) { return d, nil }
}

func unavailableProbe() (domain.Decoder, error) {
	return nil, domain.ErrDecoderUnavailable
}

// pageWindow returns the [lo, hi) bounds of page p within n items.
func pageWindow(p domain.PaginationParams, n int) (int, int) {
	if p.PageSize <= 0 {
		return 0, n
	}
	lo := min(p.Offset(), n)
	return lo, min(lo+p.PageSize, n)
}
