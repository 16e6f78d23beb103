package store

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Profile is one player's persistent identity.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileStore reads and creates player profiles.
type ProfileStore interface {
	// Get fetches a profile; found is false when none exists.
	Get(ctx context.Context, userID uuid.UUID) (Profile, bool, error)

	// Ensure returns the profile, creating a default one on first sight.
	Ensure(ctx context.Context, userID uuid.UUID) (Profile, error)
}

// SupabaseProfiles persists profiles in the "profiles" table.
type SupabaseProfiles struct {
	client *Client
}

// NewSupabaseProfiles creates the Supabase-backed profile store.
func NewSupabaseProfiles(client *Client) *SupabaseProfiles {
	return &SupabaseProfiles{client: client}
}

func (s *SupabaseProfiles) Get(ctx context.Context, userID uuid.UUID) (Profile, bool, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID.String())
	q.Set("limit", "1")

	var rows []Profile
	if err := s.client.Select(ctx, "profiles", q, &rows); err != nil {
		return Profile{}, false, err
	}
	if len(rows) == 0 {
		return Profile{}, false, nil
	}
	return rows[0], true, nil
}

func (s *SupabaseProfiles) Ensure(ctx context.Context, userID uuid.UUID) (Profile, error) {
	p, found, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if found {
		return p, nil
	}

	p = Profile{
		UserID:      userID,
		DisplayName: defaultDisplayName(userID),
		CreatedAt:   time.Now().UTC(),
	}
	var rows []Profile
	if err := s.client.Upsert(ctx, "profiles", []Profile{p}, &rows); err != nil {
		return Profile{}, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	return p, nil
}

// MemProfiles is the in-memory profile store used when Supabase is not
// configured.
type MemProfiles struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]Profile
}

// NewMemProfiles creates an empty in-memory profile store.
func NewMemProfiles() *MemProfiles {
	return &MemProfiles{profiles: make(map[uuid.UUID]Profile)}
}

func (s *MemProfiles) Get(_ context.Context, userID uuid.UUID) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok, nil
}

func (s *MemProfiles) Ensure(_ context.Context, userID uuid.UUID) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	p := Profile{
		UserID:      userID,
		DisplayName: defaultDisplayName(userID),
		CreatedAt:   time.Now().UTC(),
	}
	s.profiles[userID] = p
	return p, nil
}

// defaultDisplayName derives a captain name from the user id's short form.
func defaultDisplayName(userID uuid.UUID) string {
	return fmt.Sprintf("Captain-%s", userID.String()[:8])
}
