package domain

import (
	"context"
	"io"
	"time"
)

// Kind is the direction of an attendance event.
type Kind string

const (
	CheckIn  Kind = "in"
	CheckOut Kind = "out"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == CheckIn || k == CheckOut
}

// ParseKind accepts "in"/"out" as well as "check_in"/"check_out".
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "in", "check_in", "checkin", "CheckIn":
		return CheckIn, true
	case "out", "check_out", "checkout", "CheckOut":
		return CheckOut, true
	}
	return "", false
}

// AttendanceEvent is one entry of the append-only attendance log.
// swagger:model AttendanceEvent
type AttendanceEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"at"`
	MemberID  string    `json:"member_id"`
	Kind      Kind      `json:"kind"`
}

// NewAttendanceEvent returns an event with the given fields.
func NewAttendanceEvent(id, memberID string, kind Kind, at time.Time) AttendanceEvent {
	return AttendanceEvent{ID: id, Timestamp: at, MemberID: memberID, Kind: kind}
}

// EventPredicate selects events, e.g. for Reset.
type EventPredicate func(AttendanceEvent) bool

// OnDay returns a predicate matching events whose timestamp falls on the
// calendar day of day in loc.
func OnDay(day time.Time, loc *time.Location) EventPredicate {
	from, to := DayBounds(day, loc)
	return func(e AttendanceEvent) bool {
		return !e.Timestamp.Before(from) && e.Timestamp.Before(to)
	}
}

// DayBounds returns [start, end) of the calendar day of t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// HistoryFilter narrows the attendance log. Zero values match everything.
type HistoryFilter struct {
	From     time.Time
	To       time.Time
	MemberID string
	Kind     Kind
}

// Match reports whether e passes the filter. From is inclusive, To exclusive.
func (f HistoryFilter) Match(e AttendanceEvent) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	if f.MemberID != "" && e.MemberID != f.MemberID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	return true
}

// HistoryRow is an event denormalized with the member name, as exported.
type HistoryRow struct {
	At       time.Time `json:"at"`
	MemberID string    `json:"member_id"`
	Name     string    `json:"name"`
	Kind     Kind      `json:"type"`
}

// DispatchResult is a classified scan that has not yet been appended.
type DispatchResult struct {
	Member *Member         `json:"member"`
	Event  AttendanceEvent `json:"event"`
}

// ScanOutcome is returned once a dispatched event has been accepted.
// swagger:model ScanOutcome
type ScanOutcome struct {
	Member      *Member             `json:"member"`
	Event       AttendanceEvent     `json:"event"`
	Utilization CapacityUtilization `json:"utilization"`
}

// PresentMember is a member currently inside, with the time they entered.
type PresentMember struct {
	Member      *Member   `json:"member"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// PresenceSnapshot is the current occupancy of the facility.
// swagger:model PresenceSnapshot
type PresenceSnapshot struct {
	Members     []PresentMember     `json:"members"`
	Utilization CapacityUtilization `json:"utilization"`
}

// AttendanceEventRepository persists accepted events. It is the consumer of
// the onEvent hook and the source of the seed log at startup.
type AttendanceEventRepository interface {
	Append(ctx context.Context, event AttendanceEvent) error
	// ListAll returns the full log ordered by timestamp, then append order.
	ListAll(ctx context.Context) ([]AttendanceEvent, error)
	List(ctx context.Context, filter HistoryFilter, page PaginationParams) ([]AttendanceEvent, int, error)
	// DeleteRange removes events with from <= timestamp < to.
	DeleteRange(ctx context.Context, from, to time.Time) (int64, error)
}

// IDGenerator creates unique, monotonically sortable event ids.
type IDGenerator interface {
	New(at time.Time) (string, error)
}

// Clock abstracts wall time for tests.
type Clock interface {
	Now() time.Time
}

// AttendanceService is the single serialized entry point for every change to
// the attendance log.
type AttendanceService interface {
	Start(ctx context.Context) error
	Scan(ctx context.Context, payload string) (*ScanOutcome, error)
	ManualEntry(ctx context.Context, memberID string, kind Kind) (*ScanOutcome, error)
	ForceCheckOut(ctx context.Context, memberID string) (*ScanOutcome, error)
	ResetDay(ctx context.Context, day time.Time) (int, error)
	Presence(ctx context.Context) (*PresenceSnapshot, error)
	Capacity() CapacityUtilization
	SetCapacity(ctx context.Context, cfg CapacityConfig) (CapacityUtilization, error)
	History(ctx context.Context, filter HistoryFilter, page PaginationParams) ([]HistoryRow, int, error)
	ExportCSV(ctx context.Context, w io.Writer, filter HistoryFilter) error
}
