package world

import (
	"errors"
	"time"

	"github.com/wfunc/geoworld/models"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrItemClaimed       = errors.New("item claimed by another player")
	ErrAlreadyCollecting = errors.New("already collecting this item")
	ErrNotCollecting     = errors.New("not collecting this item")
)

// ItemStore holds the items lying in the world together with their claim
// state. An item is either unclaimed or claimed by exactly one player; every
// claim gets a fresh ClaimID so a completion can tell its own claim apart
// from a later one on the same item.
type ItemStore struct {
	items     map[string]*models.WorldItem
	order     []string
	lastClaim uint64
}

func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]*models.WorldItem)}
}

// Add places an item unclaimed. An item with the same id is replaced.
func (s *ItemStore) Add(item *models.WorldItem) {
	item.ClaimedBy = ""
	item.ClaimID = 0
	item.TimerID = 0
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

func (s *ItemStore) Get(id string) (*models.WorldItem, bool) {
	item, ok := s.items[id]
	return item, ok
}

func (s *ItemStore) Remove(id string) (*models.WorldItem, bool) {
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return item, true
}

func (s *ItemStore) Len() int {
	return len(s.items)
}

// All returns the live items in insertion order.
func (s *ItemStore) All() []*models.WorldItem {
	out := make([]*models.WorldItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Snapshot returns copies of every item in insertion order.
func (s *ItemStore) Snapshot() []*models.WorldItem {
	out := make([]*models.WorldItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, worldItemCopy(s.items[id]))
	}
	return out
}

// BeginCollect claims an unclaimed item for playerID.
func (s *ItemStore) BeginCollect(itemID, playerID string, now, deadline time.Time) (*models.WorldItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	switch item.ClaimedBy {
	case "":
	case playerID:
		return nil, ErrAlreadyCollecting
	default:
		return nil, ErrItemClaimed
	}

	s.lastClaim++
	item.ClaimedBy = playerID
	item.ClaimedAt = now
	item.Deadline = deadline
	item.ClaimID = s.lastClaim
	item.TimerID = 0
	return item, nil
}

// Cancel releases playerID's claim and returns the timer that was armed for
// it.
func (s *ItemStore) Cancel(itemID, playerID string) (int64, error) {
	item, ok := s.items[itemID]
	if !ok {
		return 0, ErrItemNotFound
	}
	if item.ClaimedBy != playerID {
		return 0, ErrNotCollecting
	}
	timerID := item.TimerID
	release(item)
	return timerID, nil
}

// Complete detaches the item if and only if the claim identified by
// (playerID, claimID) is still the current one.
func (s *ItemStore) Complete(itemID, playerID string, claimID uint64) (*models.WorldItem, bool) {
	item, ok := s.items[itemID]
	if !ok || item.ClaimedBy != playerID || item.ClaimID != claimID {
		return nil, false
	}
	s.Remove(itemID)
	release(item)
	return item, true
}

// ReleaseAll drops every claim held by playerID and returns their timers.
func (s *ItemStore) ReleaseAll(playerID string) []int64 {
	var timers []int64
	for _, id := range s.order {
		item := s.items[id]
		if item.ClaimedBy != playerID {
			continue
		}
		if item.TimerID != 0 {
			timers = append(timers, item.TimerID)
		}
		release(item)
	}
	return timers
}

func release(item *models.WorldItem) {
	item.ClaimedBy = ""
	item.ClaimedAt = time.Time{}
	item.Deadline = time.Time{}
	item.TimerID = 0
}
