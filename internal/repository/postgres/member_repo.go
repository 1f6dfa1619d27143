package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gymcheckin/internal/domain"
)

type memberRepository struct {
	DB *sql.DB
}

// NewMemberRepository returns a MemberDirectory reading the members table.
func NewMemberRepository(db *sql.DB) domain.MemberDirectory {
	return &memberRepository{DB: db}
}

func (r *memberRepository) Lookup(ctx context.Context, id string) (*domain.Member, error) {
	query := `
		SELECT id, display_name
		FROM members
		WHERE id = $1
	`
	m := &domain.Member{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}
