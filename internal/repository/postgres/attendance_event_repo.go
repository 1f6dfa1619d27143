package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gymcheckin/internal/domain"
)

type attendanceEventRepository struct {
	DB         *sql.DB
	FacilityID string
}

// NewAttendanceEventRepository returns the event store for one facility.
func NewAttendanceEventRepository(db *sql.DB, facilityID string) domain.AttendanceEventRepository {
	return &attendanceEventRepository{
		DB:         db,
		FacilityID: facilityID,
	}
}

func (r *attendanceEventRepository) Append(ctx context.Context, e domain.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events (id, facility_id, member_id, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.DB.ExecContext(ctx, query, e.ID, r.FacilityID, e.MemberID, string(e.Kind), e.Timestamp)
	return mapError(err)
}

func (r *attendanceEventRepository) ListAll(ctx context.Context) ([]domain.AttendanceEvent, error) {
	query := `
		SELECT id, member_id, kind, occurred_at
		FROM attendance_events
		WHERE facility_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, r.FacilityID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r *attendanceEventRepository) List(ctx context.Context, filter domain.HistoryFilter, page domain.PaginationParams) ([]domain.AttendanceEvent, int, error) {
	where, args := filterClause(r.FacilityID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM attendance_events WHERE ` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, member_id, kind, occurred_at
		FROM attendance_events
		WHERE ` + where + `
		ORDER BY occurred_at DESC, seq DESC`
	if page.PageSize > 0 {
		args = append(args, page.PageSize, page.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *attendanceEventRepository) DeleteRange(ctx context.Context, from, to time.Time) (int64, error) {
	query := `
		DELETE FROM attendance_events
		WHERE facility_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`
	res, err := r.DB.ExecContext(ctx, query, r.FacilityID, from, to)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func filterClause(facilityID string, f domain.HistoryFilter) (string, []any) {
	conds := []string{"facility_id = $1"}
	args := []any{facilityID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < $%d", f.To)
	}
	if f.MemberID != "" {
		add("member_id = $%d", f.MemberID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	return strings.Join(conds, " AND "), args
}

func scanEvents(rows *sql.Rows) ([]domain.AttendanceEvent, error) {
	defer rows.Close()
	events := []domain.AttendanceEvent{}
	for rows.Next() {
		var (
			e    domain.AttendanceEvent
			kind string
		)
		if err := rows.Scan(&e.ID, &e.MemberID, &kind, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Kind = domain.Kind(kind)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
