package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gymcheckin/internal/domain"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AttendanceConfig is the per-facility configuration of the attendance service.
type AttendanceConfig struct {
	FacilityID      string
	Location        *time.Location
	DefaultCapacity domain.CapacityConfig
	MemberIDPattern string
}

type attendanceService struct {
	cfg        AttendanceConfig
	events     domain.AttendanceEventRepository
	settings   domain.FacilitySettingsRepository
	directory  domain.MemberDirectory
	dispatcher *ScanDispatcher
	notifier   domain.CapacityNotifier
	clock      domain.Clock
	logger     *slog.Logger

	// mu serializes every read and write of reducer and capacity.
	mu       sync.Mutex
	reducer  *PresenceReducer
	capacity domain.CapacityConfig
	status   domain.CapacityStatus
}

// NewAttendanceService wires the attendance core. notifier and settings may
// be nil. Start must be called before use.
func NewAttendanceService(
	cfg AttendanceConfig,
	events domain.AttendanceEventRepository,
	settings domain.FacilitySettingsRepository,
	directory domain.MemberDirectory,
	ids domain.IDGenerator,
	clock domain.Clock,
	notifier domain.CapacityNotifier,
	logger *slog.Logger,
) (domain.AttendanceService, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	dispatcher, err := NewScanDispatcher(cfg.MemberIDPattern, ids, clock)
	if err != nil {
		return nil, err
	}
	reducer, _ := NewPresenceReducer(nil)
	return &attendanceService{
		cfg:        cfg,
		events:     events,
		settings:   settings,
		directory:  directory,
		dispatcher: dispatcher,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
		reducer:    reducer,
		capacity:   cfg.DefaultCapacity,
		status:     domain.CapacityOK,
	}, nil
}

// Start seeds the reducer from the persisted log and loads the stored
// capacity configuration, keeping the default when none is stored.
func (s *attendanceService) Start(ctx context.Context) error {
	log, err := s.events.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load attendance log: %w", err)
	}
	reducer, err := NewPresenceReducer(log)
	if err != nil {
		return fmt.Errorf("replay attendance log: %w", err)
	}

	capacity := s.cfg.DefaultCapacity
	if s.settings != nil {
		stored, err := s.settings.GetCapacity(ctx, s.cfg.FacilityID)
		switch {
		case err == nil:
			capacity = stored
		case errors.Is(err, domain.ErrNotFound):
		default:
			return fmt.Errorf("load capacity settings: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reducer = reducer
	for _, e := range log {
		s.dispatcher.Observe(e.Timestamp)
	}
	s.capacity = capacity
	s.status = Utilization(reducer.Count(), capacity).Status
	s.logger.Info("attendance log replayed",
		"facility", s.cfg.FacilityID,
		"events", len(log),
		"present", reducer.Count(),
		"limit", capacity.Limit,
	)
	return nil
}

// Scan dispatches a decoded payload and appends the classified event.
func (s *attendanceService) Scan(ctx context.Context, payload string) (*domain.ScanOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.dispatcher.Dispatch(ctx, payload, s.reducer, s.directory)
	if err != nil {
		var unknown *domain.UnknownMemberError
		if errors.As(err, &unknown) {
			s.logger.Warn("scan rejected", "facility", s.cfg.FacilityID, "payload", payload)
		}
		return nil, err
	}
	return s.accept(ctx, res.Member, res.Event)
}

// ManualEntry appends an operator-chosen event. The direction must match the
// member's current state.
func (s *attendanceService) ManualEntry(ctx context.Context, memberID string, kind domain.Kind) (*domain.ScanOutcome, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, kind)
	}
	member, err := s.lookup(ctx, memberID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	present := s.reducer.IsPresent(member.ID)
	if kind == domain.CheckIn && present {
		return nil, fmt.Errorf("manual check-in %s: %w", member.ID, domain.ErrAlreadyPresent)
	}
	if kind == domain.CheckOut && !present {
		return nil, fmt.Errorf("manual check-out %s: %w", member.ID, domain.ErrNotPresent)
	}
	event, err := s.dispatcher.NewEvent(member.ID, kind)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, member, event)
}

// ForceCheckOut checks out a member who is inside.
func (s *attendanceService) ForceCheckOut(ctx context.Context, memberID string) (*domain.ScanOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reducer.IsPresent(memberID) {
		return nil, fmt.Errorf("force checkout %s: %w", memberID, domain.ErrNotPresent)
	}
	stamp, err := s.dispatcher.NewEvent(memberID, domain.CheckOut)
	if err != nil {
		return nil, err
	}
	event, err := s.reducer.ForceCheckOut(memberID, stamp.ID, stamp.Timestamp)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, event); err != nil {
		return nil, err
	}
	return s.outcome(ctx, s.memberOrStub(ctx, memberID), event), nil
}

// accept appends event to the reducer and hands it to the persistence hook.
// Callers hold mu.
func (s *attendanceService) accept(ctx context.Context, member *domain.Member, event domain.AttendanceEvent) (*domain.ScanOutcome, error) {
	if err := s.reducer.Append(event); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, event); err != nil {
		return nil, err
	}
	s.logger.Info("attendance event accepted",
		"facility", s.cfg.FacilityID,
		"member_id", event.MemberID,
		"kind", event.Kind,
		"event_id", event.ID,
	)
	return s.outcome(ctx, member, event), nil
}

// persist stores an event already in the reducer. On failure the event is
// removed again so presence keeps matching the accepted log.
func (s *attendanceService) persist(ctx context.Context, event domain.AttendanceEvent) error {
	if err := s.events.Append(ctx, event); err != nil {
		s.reducer.Reset(func(e domain.AttendanceEvent) bool { return e.ID == event.ID })
		s.logger.Error("persist attendance event", "facility", s.cfg.FacilityID, "event_id", event.ID, "err", err)
		return fmt.Errorf("persist attendance event: %w", err)
	}
	return nil
}

func (s *attendanceService) outcome(ctx context.Context, member *domain.Member, event domain.AttendanceEvent) *domain.ScanOutcome {
	u := s.recompute(ctx)
	return &domain.ScanOutcome{Member: member, Event: event, Utilization: u}
}

// recompute derives utilization from the current presence set and notifies
// when severity rises. Notifications run on their own goroutine, outside mu.
// Callers hold mu.
func (s *attendanceService) recompute(ctx context.Context) domain.CapacityUtilization {
	u := Utilization(s.reducer.Count(), s.capacity)
	prev := s.status
	s.status = u.Status
	if s.notifier != nil && u.Status.Severity() > prev.Severity() {
		alert := domain.CapacityAlert{FacilityID: s.cfg.FacilityID, Utilization: u, Previous: prev}
		notifyCtx := context.WithoutCancel(ctx)
		go func() {
			if err := s.notifier.NotifyCapacity(notifyCtx, alert); err != nil {
				s.logger.Error("capacity notification failed", "facility", s.cfg.FacilityID, "err", err)
			}
		}()
	}
	return u
}

// ResetDay removes all events of the calendar day of day (facility time)
// from the log and the store, then rebuilds presence from what remains.
func (s *attendanceService) ResetDay(ctx context.Context, day time.Time) (int, error) {
	from, to := domain.DayBounds(day, s.cfg.Location)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.events.DeleteRange(ctx, from, to); err != nil {
		return 0, fmt.Errorf("delete attendance events: %w", err)
	}
	removed := s.reducer.Reset(domain.OnDay(day, s.cfg.Location))
	s.recompute(ctx)
	s.logger.Info("attendance day reset",
		"facility", s.cfg.FacilityID,
		"day", from.Format(time.DateOnly),
		"removed", removed,
		"present", s.reducer.Count(),
	)
	return removed, nil
}

// Presence lists members inside, earliest check-in first.
func (s *attendanceService) Presence(ctx context.Context) (*domain.PresenceSnapshot, error) {
	s.mu.Lock()
	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, s.reducer.Count())
	for id := range s.reducer.Present() {
		at, _ := s.reducer.CheckedInAt(id)
		entries = append(entries, entry{id: id, at: at})
	}
	u := Utilization(len(entries), s.capacity)
	s.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		if a.id < b.id {
			return -1
		}
		if a.id > b.id {
			return 1
		}
		return 0
	})

	members := make([]domain.PresentMember, 0, len(entries))
	for _, e := range entries {
		members = append(members, domain.PresentMember{
			Member:      s.memberOrStub(ctx, e.id),
			CheckedInAt: e.at,
		})
	}
	return &domain.PresenceSnapshot{Members: members, Utilization: u}, nil
}

// Capacity returns utilization of the current presence set.
func (s *attendanceService) Capacity() domain.CapacityUtilization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Utilization(s.reducer.Count(), s.capacity)
}

// SetCapacity validates and stores a new capacity configuration.
func (s *attendanceService) SetCapacity(ctx context.Context, cfg domain.CapacityConfig) (domain.CapacityUtilization, error) {
	if cfg.WarnAt == 0 {
		cfg.WarnAt = domain.DefaultWarnAt
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return domain.CapacityUtilization{}, fmt.Errorf("%w: %s", domain.ErrInvalidInput, errs[0])
	}
	if s.settings != nil {
		if err := s.settings.SaveCapacity(ctx, s.cfg.FacilityID, cfg); err != nil {
			return domain.CapacityUtilization{}, fmt.Errorf("save capacity settings: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = cfg
	return s.recompute(ctx), nil
}

// History pages through the persisted log, newest first.
func (s *attendanceService) History(ctx context.Context, filter domain.HistoryFilter, page domain.PaginationParams) ([]domain.HistoryRow, int, error) {
	events, total, err := s.events.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance events: %w", err)
	}
	return s.rows(ctx, events), total, nil
}

// ExportCSV writes the filtered in-memory log in log order.
func (s *attendanceService) ExportCSV(ctx context.Context, w io.Writer, filter domain.HistoryFilter) error {
	s.mu.Lock()
	events := FilterHistory(s.reducer.Log(), filter)
	s.mu.Unlock()
	return WriteCSV(w, s.rows(ctx, events))
}

func (s *attendanceService) rows(ctx context.Context, events []domain.AttendanceEvent) []domain.HistoryRow {
	names := make(map[string]string)
	rows := make([]domain.HistoryRow, 0, len(events))
	for _, e := range events {
		name, ok := names[e.MemberID]
		if !ok {
			name = s.memberOrStub(ctx, e.MemberID).DisplayName
			names[e.MemberID] = name
		}
		rows = append(rows, domain.HistoryRow{At: e.Timestamp, MemberID: e.MemberID, Name: name, Kind: e.Kind})
	}
	return rows
}

func (s *attendanceService) lookup(ctx context.Context, memberID string) (*domain.Member, error) {
	m, err := s.directory.Lookup(ctx, memberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.UnknownMemberError{Payload: memberID}
		}
		return nil, fmt.Errorf("lookup member %s: %w", memberID, err)
	}
	return m, nil
}

// memberOrStub resolves a name for display; members that have left the
// directory are shown by id.
func (s *attendanceService) memberOrStub(ctx context.Context, memberID string) *domain.Member {
	m, err := s.directory.Lookup(ctx, memberID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("member lookup failed", "member_id", memberID, "err", err)
		}
		return &domain.Member{ID: memberID, DisplayName: memberID}
	}
	return m
}
