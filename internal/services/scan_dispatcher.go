package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gymcheckin/internal/domain"
)

// DefaultMemberIDPattern matches ids such as "M-1001" anywhere in a payload.
const DefaultMemberIDPattern = `(?i)\b[A-Z]{1,4}-\d{1,10}\b`

// PresenceChecker is the read side of the presence set used for classification.
type PresenceChecker interface {
	IsPresent(memberID string) bool
}

// ScanDispatcher resolves decoded payloads to members and classifies them.
type ScanDispatcher struct {
	pattern *regexp.Regexp
	ids     domain.IDGenerator
	clock   domain.Clock
	// last is the newest timestamp handed out or observed. Stamps never go
	// below it, so append order and timestamp order agree.
	last time.Time
}

// NewScanDispatcher compiles pattern (DefaultMemberIDPattern when empty).
func NewScanDispatcher(pattern string, ids domain.IDGenerator, clock domain.Clock) (*ScanDispatcher, error) {
	if pattern == "" {
		pattern = DefaultMemberIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile member id pattern: %w", err)
	}
	return &ScanDispatcher{pattern: re, ids: ids, clock: clock}, nil
}

// Candidates returns the identifiers worth looking up for payload, in order:
// the trimmed payload itself, then every pattern match.
func (d *ScanDispatcher) Candidates(payload string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	trimmed := strings.TrimSpace(payload)
	if !strings.ContainsAny(trimmed, " \t\r\n/?&=:{}\"") {
		add(trimmed)
	}
	for _, m := range d.pattern.FindAllString(payload, -1) {
		add(m)
		add(strings.ToUpper(m))
	}
	return out
}

// Dispatch resolves payload and classifies it against presence: a member
// inside is checked out, anyone else is checked in. The returned event is
// stamped but not appended.
func (d *ScanDispatcher) Dispatch(ctx context.Context, payload string, presence PresenceChecker, directory domain.MemberDirectory) (*domain.DispatchResult, error) {
	member, err := d.resolve(ctx, payload, directory)
	if err != nil {
		return nil, err
	}
	kind := domain.CheckIn
	if presence.IsPresent(member.ID) {
		kind = domain.CheckOut
	}
	event, err := d.NewEvent(member.ID, kind)
	if err != nil {
		return nil, err
	}
	return &domain.DispatchResult{Member: member, Event: event}, nil
}

func (d *ScanDispatcher) resolve(ctx context.Context, payload string, directory domain.MemberDirectory) (*domain.Member, error) {
	for _, id := range d.Candidates(payload) {
		m, err := directory.Lookup(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lookup member %s: %w", id, err)
		}
	}
	return nil, &domain.UnknownMemberError{Payload: payload}
}

// Observe raises the stamp floor to t. It is called with the newest event of
// a replayed log.
func (d *ScanDispatcher) Observe(t time.Time) {
	if t.After(d.last) {
		d.last = t
	}
}

// NewEvent stamps a fresh event with a new id and the current time, or the
// previous stamp if the wall clock has stepped back since. Callers must
// serialize calls.
func (d *ScanDispatcher) NewEvent(memberID string, kind domain.Kind) (domain.AttendanceEvent, error) {
	now := d.now()
	if now.Before(d.last) {
		now = d.last
	}
	d.last = now
	id, err := d.ids.New(now)
	if err != nil {
		return domain.AttendanceEvent{}, fmt.Errorf("generate event id: %w", err)
	}
	return domain.NewAttendanceEvent(id, memberID, kind, now), nil
}

func (d *ScanDispatcher) now() time.Time {
	if d.clock == nil {
		return time.Now().UTC()
	}
	return d.clock.Now().UTC()
}
