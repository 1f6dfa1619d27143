package services

import (
	"fmt"
	"slices"
	"time"

	"gymcheckin/internal/domain"
)

// PresenceReducer owns the attendance log and the presence set derived from
// it. The set is kept incrementally on Append and rebuilt by Replay on Reset;
// both must agree with Replay over Log() at all times.
//
// PresenceReducer is not safe for concurrent use. AttendanceService
// serializes access to it.
type PresenceReducer struct {
	log     []domain.AttendanceEvent
	present map[string]time.Time
}

// NewPresenceReducer seeds the reducer with initialLog, taken to be in append
// order, and rebuilds presence by full replay. The seed is never reordered,
// so a reducer built from Log() always agrees with the one it came from.
func NewPresenceReducer(initialLog []domain.AttendanceEvent) (*PresenceReducer, error) {
	log := slices.Clone(initialLog)
	for _, e := range log {
		if err := validateEvent(e); err != nil {
			return nil, err
		}
	}
	return &PresenceReducer{log: log, present: replay(log)}, nil
}

// Replay folds log from the empty state and returns the member ids inside.
func Replay(log []domain.AttendanceEvent) map[string]struct{} {
	out := make(map[string]struct{})
	for id := range replay(log) {
		out[id] = struct{}{}
	}
	return out
}

func replay(log []domain.AttendanceEvent) map[string]time.Time {
	present := make(map[string]time.Time)
	for _, e := range log {
		apply(present, e)
	}
	return present
}

func apply(present map[string]time.Time, e domain.AttendanceEvent) {
	switch e.Kind {
	case domain.CheckIn:
		if _, ok := present[e.MemberID]; !ok {
			present[e.MemberID] = e.Timestamp
		}
	case domain.CheckOut:
		delete(present, e.MemberID)
	}
}

func validateEvent(e domain.AttendanceEvent) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing id", domain.ErrMalformedEvent)
	case e.MemberID == "":
		return fmt.Errorf("%w: missing member id", domain.ErrMalformedEvent)
	case !e.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", domain.ErrMalformedEvent, e.Kind)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", domain.ErrMalformedEvent)
	}
	return nil
}

// Append adds e to the end of the log and updates presence incrementally.
// Only the structure of e is checked.
func (r *PresenceReducer) Append(e domain.AttendanceEvent) error {
	if err := validateEvent(e); err != nil {
		return err
	}
	r.log = append(r.log, e)
	apply(r.present, e)
	return nil
}

// Reset removes every event matching pred and rebuilds presence by replaying
// what remains. It returns the number of events removed.
func (r *PresenceReducer) Reset(pred domain.EventPredicate) int {
	before := len(r.log)
	r.log = slices.DeleteFunc(r.log, pred)
	r.present = replay(r.log)
	return before - len(r.log)
}

// ForceCheckOut appends a CheckOut for a member who is inside. It returns
// ErrNotPresent, and appends nothing, when the member is not inside.
func (r *PresenceReducer) ForceCheckOut(memberID, id string, at time.Time) (domain.AttendanceEvent, error) {
	if !r.IsPresent(memberID) {
		return domain.AttendanceEvent{}, fmt.Errorf("force checkout %s: %w", memberID, domain.ErrNotPresent)
	}
	e := domain.NewAttendanceEvent(id, memberID, domain.CheckOut, at)
	if err := r.Append(e); err != nil {
		return domain.AttendanceEvent{}, err
	}
	return e, nil
}

// IsPresent reports whether memberID is currently inside.
func (r *PresenceReducer) IsPresent(memberID string) bool {
	_, ok := r.present[memberID]
	return ok
}

// Count is the size of the presence set.
func (r *PresenceReducer) Count() int { return len(r.present) }

// Present returns a copy of the presence set.
func (r *PresenceReducer) Present() map[string]struct{} {
	out := make(map[string]struct{}, len(r.present))
	for id := range r.present {
		out[id] = struct{}{}
	}
	return out
}

// CheckedInAt returns when memberID entered, if they are inside.
func (r *PresenceReducer) CheckedInAt(memberID string) (time.Time, bool) {
	t, ok := r.present[memberID]
	return t, ok
}

// Log returns a copy of the ordered log.
func (r *PresenceReducer) Log() []domain.AttendanceEvent {
	return slices.Clone(r.log)
}
