package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusfound/backend/internal/models"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category name already exists")
	ErrCategoryInUse    = errors.New("category is referenced by items")
)

// CategoryService owns the category catalog. Renames cascade across the
// items referencing the category by name; deletion is blocked while any
// item still references it.
type CategoryService interface {
	Create(ctx context.Context, actor *models.User, req *models.CreateCategoryRequest) (*models.Category, error)
	Update(ctx context.Context, actor *models.User, categoryID string, req *models.UpdateCategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, actor *models.User, categoryID string) error
	List(ctx context.Context, includeInactive bool) ([]*models.Category, error)
	// RefreshCounts recomputes each category's cached item count.
	RefreshCounts(ctx context.Context) error
}

// MemoryCategoryService is the in-memory implementation; it is wired to
// an ItemService for rename cascades and reference counting.
type MemoryCategoryService struct {
	mu         sync.RWMutex
	categories map[string]*models.Category
	byName     map[string]string
	items      ItemService
}

func NewMemoryCategoryService() *MemoryCategoryService {
	return &MemoryCategoryService{
		categories: make(map[string]*models.Category),
		byName:     make(map[string]string),
	}
}

func (s *MemoryCategoryService) SetItemService(items ItemService) {
	s.items = items
}

func (s *MemoryCategoryService) Create(ctx context.Context, actor *models.User, req *models.CreateCategoryRequest) (*models.Category, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(req.Name)
	if _, exists := s.byName[key]; exists {
		return nil, ErrCategoryExists
	}

	cat := &models.Category{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		Active:      true,
		CreatedBy:   actor.ID,
		CreatedAt:   time.Now().UTC(),
	}
	s.categories[cat.ID] = cat
	s.byName[key] = cat.ID

	cp := *cat
	return &cp, nil
}

func (s *MemoryCategoryService) Update(ctx context.Context, actor *models.User, categoryID string, req *models.UpdateCategoryRequest) (*models.Category, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	cat, exists := s.categories[categoryID]
	if !exists {
		s.mu.Unlock()
		return nil, ErrCategoryNotFound
	}

	newName := strings.TrimSpace(req.Name)
	oldName := cat.Name
	renamed := newName != "" && newName != oldName

	if renamed {
		key := nameKey(newName)
		if otherID, exists := s.byName[key]; exists && otherID != categoryID {
			s.mu.Unlock()
			return nil, ErrCategoryExists
		}
		delete(s.byName, nameKey(oldName))
		s.byName[key] = categoryID
		cat.Name = newName
	}
	cat.Description = req.Description
	cat.Icon = req.Icon
	if req.Active != nil {
		cat.Active = *req.Active
	}
	cp := *cat
	s.mu.Unlock()

	if renamed && s.items != nil {
		if _, err := s.items.RenameCategory(ctx, oldName, newName); err != nil {
			return nil, err
		}
	}
	return &cp, nil
}

func (s *MemoryCategoryService) Delete(ctx context.Context, actor *models.User, categoryID string) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}

	s.mu.RLock()
	cat, exists := s.categories[categoryID]
	var name string
	if exists {
		name = cat.Name
	}
	s.mu.RUnlock()
	if !exists {
		return ErrCategoryNotFound
	}

	if s.items != nil {
		n, err := s.items.CountByCategory(ctx, name)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, categoryID)
	delete(s.byName, nameKey(name))
	return nil
}

func (s *MemoryCategoryService) List(ctx context.Context, includeInactive bool) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		if !includeInactive && !cat.Active {
			continue
		}
		cp := *cat
		out = append(out, &cp)
	}
	sortCategoriesByName(out)
	return out, nil
}

func (s *MemoryCategoryService) RefreshCounts(ctx context.Context) error {
	if s.items == nil {
		return nil
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.categories))
	names := make(map[string]string, len(s.categories))
	for id, cat := range s.categories {
		ids = append(ids, id)
		names[id] = cat.Name
	}
	s.mu.RUnlock()

	for _, id := range ids {
		n, err := s.items.CountByCategory(ctx, names[id])
		if err != nil {
			return err
		}
		s.mu.Lock()
		if cat, exists := s.categories[id]; exists {
			cat.ItemCount = int(n)
		}
		s.mu.Unlock()
	}
	return nil
}

// SeedDefaults populates the default catalog when the store is empty.
func (s *MemoryCategoryService) SeedDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.categories) > 0 {
		return
	}
	now := time.Now().UTC()
	for _, name := range models.DefaultCategories {
		cat := &models.Category{
			ID:        uuid.New().String(),
			Name:      name,
			Active:    true,
			CreatedAt: now,
		}
		s.categories[cat.ID] = cat
		s.byName[nameKey(cat.Name)] = cat.ID
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortCategoriesByName(cats []*models.Category) {
	sort.Slice(cats, func(i, j int) bool {
		return cats[i].Name < cats[j].Name
	})
}
