package idgen

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"gymcheckin/internal/domain"
)

type ulidGen struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULID returns an IDGenerator producing ULIDs. Ids created within the same
// millisecond still sort in creation order.
func NewULID() domain.IDGenerator {
	return &ulidGen{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGen) New(at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at.UTC()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
