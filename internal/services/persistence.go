package services

import (
	"strings"

	"github.com/campusfound/backend/internal/models"
)

// Snapshot/Restore pairs for the in-memory services. The server uses
// them to round-trip state through a storage.SnapshotStore; they are not
// part of the service interfaces.

func (s *MemoryItemService) Snapshot() ([]*models.Item, []*models.Claim) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, copyItem(item))
	}
	claims := make([]*models.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		claims = append(claims, copyClaim(c))
	}
	return items, claims
}

func (s *MemoryItemService) Restore(items []*models.Item, claims []*models.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*models.Item, len(items))
	for _, item := range items {
		s.items[item.ID] = copyItem(item)
	}
	s.claims = make(map[string]*models.Claim, len(claims))
	for _, c := range claims {
		s.claims[c.ID] = copyClaim(c)
	}
}

func (s *MemoryUserService) Snapshot() []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	return users
}

func (s *MemoryUserService) Restore(users []*models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*models.User, len(users))
	s.byEmail = make(map[string]string, len(users))
	s.byUniversity = make(map[string]string, len(users))
	for _, u := range users {
		cp := copyUser(u)
		s.users[cp.ID] = cp
		if cp.Email != "" {
			s.byEmail[strings.ToLower(cp.Email)] = cp.ID
		}
		if cp.UniversityID != "" {
			s.byUniversity[cp.UniversityID] = cp.ID
		}
	}
}

func (s *MemoryCategoryService) Snapshot() []*models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := make([]*models.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		cp := *cat
		cats = append(cats, &cp)
	}
	return cats
}

func (s *MemoryCategoryService) Restore(cats []*models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories = make(map[string]*models.Category, len(cats))
	s.byName = make(map[string]string, len(cats))
	for _, cat := range cats {
		cp := *cat
		s.categories[cp.ID] = &cp
		s.byName[nameKey(cp.Name)] = cp.ID
	}
}

func (s *MemoryWatchService) Snapshot() []*models.Watch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Watch, 0, len(s.watches))
	for _, w := range s.watches {
		cp := *w
		out = append(out, &cp)
	}
	return out
}

func (s *MemoryWatchService) Restore(watches []*models.Watch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watches = make(map[string]*models.Watch, len(watches))
	s.userWatches = make(map[string]map[string]string)
	for _, w := range watches {
		cp := *w
		s.watches[cp.ID] = &cp
		if s.userWatches[cp.UserID] == nil {
			s.userWatches[cp.UserID] = make(map[string]string)
		}
		s.userWatches[cp.UserID][cp.ItemID] = cp.ID
	}
}
