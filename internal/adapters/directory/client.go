package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gymcheckin/internal/domain"
)

// DefaultCacheTTL is how long a looked-up member is served from memory.
const DefaultCacheTTL = 5 * time.Minute

type cachedMember struct {
	member    *domain.Member
	expiresAt time.Time
}

type httpDirectory struct {
	client  *http.Client
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedMember
}

// memberResponse is the wire shape of GET {base}/members/{id}.
type memberResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

// NewHTTPDirectory returns a MemberDirectory backed by the remote member API.
// Hits are cached for ttl; misses are not cached.
func NewHTTPDirectory(client *http.Client, baseURL string, ttl time.Duration) domain.MemberDirectory {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &httpDirectory{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]cachedMember),
	}
}

func (d *httpDirectory) Lookup(ctx context.Context, id string) (*domain.Member, error) {
	if m, ok := d.cached(id); ok {
		return m, nil
	}

	endpoint := fmt.Sprintf("%s/members/%s", d.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("member directory returned status: %d", resp.StatusCode)
	}

	var data memberResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode member response: %w", err)
	}
	if data.ID == "" {
		return nil, domain.ErrNotFound
	}
	name := data.DisplayName
	if name == "" {
		name = data.Name
	}
	m := &domain.Member{ID: data.ID, DisplayName: name}
	d.store(id, m)
	return m, nil
}

func (d *httpDirectory) cached(id string) (*domain.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.cache[id]
	if !ok || d.now().After(c.expiresAt) {
		return nil, false
	}
	return c.member, true
}

func (d *httpDirectory) store(id string, m *domain.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[id] = cachedMember{member: m, expiresAt: d.now().Add(d.ttl)}
}
