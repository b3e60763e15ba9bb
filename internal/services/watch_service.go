package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusfound/backend/internal/models"
)

var (
	ErrWatchNotFound  = errors.New("watch not found")
	ErrAlreadyWatched = errors.New("item already on watchlist")
)

// WatchService manages per-user item bookmarks.
type WatchService interface {
	AddWatch(ctx context.Context, userID, itemID string) (*models.Watch, error)
	RemoveWatch(ctx context.Context, userID, itemID string) error
	ListForUser(ctx context.Context, userID string) ([]*models.Watch, error)
	// RemoveAllForItem cleans up after an item is deleted.
	RemoveAllForItem(ctx context.Context, itemID string) error
	RemoveAllForUser(ctx context.Context, userID string) error
}

type MemoryWatchService struct {
	mu          sync.RWMutex
	watches     map[string]*models.Watch
	userWatches map[string]map[string]string // userID -> itemID -> watchID
	items       ItemService
}

func NewMemoryWatchService() *MemoryWatchService {
	return &MemoryWatchService{
		watches:     make(map[string]*models.Watch),
		userWatches: make(map[string]map[string]string),
	}
}

func (s *MemoryWatchService) SetItemService(items ItemService) {
	s.items = items
}

func (s *MemoryWatchService) AddWatch(ctx context.Context, userID, itemID string) (*models.Watch, error) {
	if s.items != nil {
		if _, err := s.items.GetItem(ctx, itemID); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if byItem, exists := s.userWatches[userID]; exists {
		if _, exists := byItem[itemID]; exists {
			return nil, ErrAlreadyWatched
		}
	}

	watch := &models.Watch{
		ID:        uuid.New().String(),
		UserID:    userID,
		ItemID:    itemID,
		CreatedAt: time.Now().UTC(),
	}
	s.watches[watch.ID] = watch
	if s.userWatches[userID] == nil {
		s.userWatches[userID] = make(map[string]string)
	}
	s.userWatches[userID][itemID] = watch.ID

	cp := *watch
	return &cp, nil
}

func (s *MemoryWatchService) RemoveWatch(ctx context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byItem, exists := s.userWatches[userID]
	if !exists {
		return ErrWatchNotFound
	}
	watchID, exists := byItem[itemID]
	if !exists {
		return ErrWatchNotFound
	}

	delete(s.watches, watchID)
	delete(byItem, itemID)
	return nil
}

func (s *MemoryWatchService) ListForUser(ctx context.Context, userID string) ([]*models.Watch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Watch, 0)
	for _, watchID := range s.userWatches[userID] {
		if w, exists := s.watches[watchID]; exists {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryWatchService) RemoveAllForItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for watchID, w := range s.watches {
		if w.ItemID == itemID {
			delete(s.watches, watchID)
			if byItem, exists := s.userWatches[w.UserID]; exists {
				delete(byItem, itemID)
			}
		}
	}
	return nil
}

func (s *MemoryWatchService) RemoveAllForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, watchID := range s.userWatches[userID] {
		delete(s.watches, watchID)
	}
	delete(s.userWatches, userID)
	return nil
}
