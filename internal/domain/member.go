package domain

import "context"

// Member is read-only reference data owned by the member directory.
// swagger:model Member
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// MemberDirectory resolves identifiers to members. Lookup returns ErrNotFound
// when the identifier is unknown.
type MemberDirectory interface {
	Lookup(ctx context.Context, id string) (*Member, error)
}
