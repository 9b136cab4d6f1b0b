// Package state holds the server-side application state the presentation
// layer consumes: the validated current-user snapshot per session and the
// per-creator notification feed. It replaces the ambient client-side stores
// of the previous implementation with an explicit object plus a thin
// persistence adapter.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/localnerve/tipjar/internal/models"
	"github.com/shopspring/decimal"
)

// UserSnapshot is the cached view of an authenticated creator.
type UserSnapshot struct {
	ID              string          `json:"id"`
	Username        string          `json:"username"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	IsVerified      bool            `json:"isVerified"`
	TotalDonations  decimal.Decimal `json:"totalDonations"`
	TotalSupporters int64           `json:"totalSupporters"`
}

// Notification is one feed entry for a creator.
type Notification struct {
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DonationSnapshot is one entry in the per-creator recent-donation cache.
// Anonymity is already applied to the name.
type DonationSnapshot struct {
	Amount      decimal.Decimal `json:"amount"`
	DisplayName string          `json:"displayName"`
	Message     string          `json:"message,omitempty"`
	CoffeeCount int             `json:"coffeeCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// maxNotifications bounds the per-creator feed; older entries drop off.
const maxNotifications = 50

// maxRecentDonations bounds the per-creator donation cache.
const maxRecentDonations = 20

// Adapter persists store snapshots. Load is called once at start, Save after
// every mutation.
type Adapter interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
}

// Snapshot is the serializable content of a Store.
type Snapshot struct {
	Users           map[string]UserSnapshot       `json:"users"`
	Notifications   map[string][]Notification     `json:"notifications"`
	RecentDonations map[string][]DonationSnapshot `json:"recentDonations"`
}

// Store is the in-memory state holder. Safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	users         map[string]UserSnapshot       // keyed by creator id
	notifications map[string][]Notification     // keyed by creator id
	recent        map[string][]DonationSnapshot // keyed by creator id
	adapter       Adapter
}

// NewStore returns an empty store. With a non-nil adapter the previous
// snapshot is hydrated and every change is written back.
func NewStore(adapter Adapter) (*Store, error) {
	s := &Store{
		users:         make(map[string]UserSnapshot),
		notifications: make(map[string][]Notification),
		recent:        make(map[string][]DonationSnapshot),
		adapter:       adapter,
	}

	if adapter != nil {
		snapshot, err := adapter.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate state: %w", err)
		}
		if snapshot != nil {
			if snapshot.Users != nil {
				s.users = snapshot.Users
			}
			if snapshot.Notifications != nil {
				s.notifications = snapshot.Notifications
			}
			if snapshot.RecentDonations != nil {
				s.recent = snapshot.RecentDonations
			}
		}
	}

	return s, nil
}

// SetCurrentUser caches the validated user snapshot.
func (s *Store) SetCurrentUser(snapshot UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[snapshot.ID] = snapshot
	s.persistLocked()
}

// CurrentUser returns the cached snapshot for the creator, if any.
func (s *Store) CurrentUser(creatorID string) (UserSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[creatorID]
	return u, ok
}

// ClearUser drops the cached snapshot, e.g. on deactivation.
func (s *Store) ClearUser(creatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, creatorID)
	s.persistLocked()
}

// Push appends a notification to the creator's feed.
func (s *Store) Push(creatorID string, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	feed := append(s.notifications[creatorID], n)
	if len(feed) > maxNotifications {
		feed = feed[len(feed)-maxNotifications:]
	}
	s.notifications[creatorID] = feed
	s.persistLocked()
}

// PushDonationNotification records a completed donation: a feed entry plus an
// entry in the recent-donation cache.
func (s *Store) PushDonationNotification(donation *models.Donation) {
	s.Push(donation.CreatorID, Notification{
		Kind:  "donation",
		Title: fmt.Sprintf("%s bought you %d coffee(s)", donation.DisplayName(), donation.CoffeeCount),
		Body:  donation.SupporterMessage,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	cache := append(s.recent[donation.CreatorID], DonationSnapshot{
		Amount:      donation.Amount,
		DisplayName: donation.DisplayName(),
		Message:     donation.SupporterMessage,
		CoffeeCount: donation.CoffeeCount,
		CreatedAt:   time.Now().UTC(),
	})
	if len(cache) > maxRecentDonations {
		cache = cache[len(cache)-maxRecentDonations:]
	}
	s.recent[donation.CreatorID] = cache
	s.persistLocked()
}

// RecentDonations returns a copy of the creator's cached donation entries,
// newest last.
func (s *Store) RecentDonations(creatorID string) []DonationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cache := s.recent[creatorID]
	if len(cache) == 0 {
		return nil
	}
	out := make([]DonationSnapshot, len(cache))
	copy(out, cache)
	return out
}

// Drain returns and clears the creator's notification feed.
func (s *Store) Drain(creatorID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.notifications[creatorID]
	if len(feed) == 0 {
		return nil
	}
	delete(s.notifications, creatorID)
	s.persistLocked()
	return feed
}

// persistLocked saves a snapshot through the adapter. Callers hold s.mu.
func (s *Store) persistLocked() {
	if s.adapter == nil {
		return
	}

	snapshot := &Snapshot{
		Users:           make(map[string]UserSnapshot, len(s.users)),
		Notifications:   make(map[string][]Notification, len(s.notifications)),
		RecentDonations: make(map[string][]DonationSnapshot, len(s.recent)),
	}
	for k, v := range s.users {
		snapshot.Users[k] = v
	}
	for k, v := range s.notifications {
		feed := make([]Notification, len(v))
		copy(feed, v)
		snapshot.Notifications[k] = feed
	}
	for k, v := range s.recent {
		cache := make([]DonationSnapshot, len(v))
		copy(cache, v)
		snapshot.RecentDonations[k] = cache
	}

	// Persistence is best effort; the store is a cache over the database.
	_ = s.adapter.Save(snapshot)
}
