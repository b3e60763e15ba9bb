package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusfound/backend/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailExists          = errors.New("email already registered")
	ErrUniversityIDExists   = errors.New("university id already registered")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrAccountBanned        = errors.New("account is banned")
	ErrNotificationNotFound = errors.New("notification not found")
)

// UserService owns user records, their embedded notification and audit
// lists, and all administrative account mutations.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error)

	Notify(ctx context.Context, userID string, n models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	ClearNotifications(ctx context.Context, userID string) error

	SetRole(ctx context.Context, actor *models.User, userID, role string) (*models.User, error)
	SetSuspended(ctx context.Context, actor *models.User, userID string, suspended bool, reason string) (*models.User, error)
	SetBanned(ctx context.Context, actor *models.User, userID string, banned bool, reason string) (*models.User, error)
	AddStrike(ctx context.Context, actor *models.User, userID, reason string) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.User, userID string) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// MemoryUserService is the in-memory implementation used by tests and
// local development.
type MemoryUserService struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	byEmail      map[string]string
	byUniversity map[string]string
	adminEmail   string
}

func NewMemoryUserService() *MemoryUserService {
	return &MemoryUserService{
		users:        make(map[string]*models.User),
		byEmail:      make(map[string]string),
		byUniversity: make(map[string]string),
	}
}

// SetAdminEmail promotes the matching account to admin at registration.
func (s *MemoryUserService) SetAdminEmail(email string) {
	s.adminEmail = strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryUserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, exists := s.byEmail[email]; exists {
		return nil, ErrEmailExists
	}
	if _, exists := s.byUniversity[req.UniversityID]; exists {
		return nil, ErrUniversityIDExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := models.RoleStudent
	if s.adminEmail != "" && email == s.adminEmail {
		role = models.RoleAdmin
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        email,
		UniversityID: req.UniversityID,
		PasswordHash: string(hashed),
		Role:         role,
		// Verification is auto-granted at registration.
		Verified:  true,
		CreatedAt: time.Now().UTC(),
	}

	s.users[user.ID] = user
	s.byEmail[email] = user.ID
	s.byUniversity[req.UniversityID] = user.ID

	return copyUser(user), nil
}

func (s *MemoryUserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, exists := s.byEmail[strings.ToLower(strings.TrimSpace(req.Email))]
	if !exists {
		return nil, ErrUserNotFound
	}

	user := s.users[userID]
	if user.Banned {
		return nil, ErrAccountBanned
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return copyUser(user), nil
}

func (s *MemoryUserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *MemoryUserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	user.Name = req.Name
	return copyUser(user), nil
}

func (s *MemoryUserService) Notify(ctx context.Context, userID string, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}

	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	// Newest first, capped.
	user.Notifications = append([]models.Notification{n}, user.Notifications...)
	if len(user.Notifications) > models.MaxNotifications {
		user.Notifications = user.Notifications[:models.MaxNotifications]
	}
	return nil
}

func (s *MemoryUserService) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	return append([]models.Notification(nil), user.Notifications...), nil
}

func (s *MemoryUserService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}
	for i := range user.Notifications {
		if user.Notifications[i].ID == notificationID {
			user.Notifications[i].Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (s *MemoryUserService) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}
	for i := range user.Notifications {
		user.Notifications[i].Read = true
	}
	return nil
}

func (s *MemoryUserService) ClearNotifications(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}
	user.Notifications = nil
	return nil
}

func (s *MemoryUserService) SetRole(ctx context.Context, actor *models.User, userID, role string) (*models.User, error) {
	if role != models.RoleStudent && role != models.RoleAdmin {
		return nil, errors.New("unknown role: " + role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.adminTargetLocked(actor, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	appendAudit(user, models.AdminAction{Action: "role_change", Reason: role, ActorID: actor.ID})
	return copyUser(user), nil
}

func (s *MemoryUserService) SetSuspended(ctx context.Context, actor *models.User, userID string, suspended bool, reason string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.adminTargetLocked(actor, userID)
	if err != nil {
		return nil, err
	}

	user.Suspended = suspended
	user.ModReason = reason
	user.ModAt = time.Now().UTC()
	user.ModBy = actor.ID

	action := "suspend"
	if !suspended {
		action = "unsuspend"
	}
	appendAudit(user, models.AdminAction{Action: action, Reason: reason, ActorID: actor.ID})
	return copyUser(user), nil
}

func (s *MemoryUserService) SetBanned(ctx context.Context, actor *models.User, userID string, banned bool, reason string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.adminTargetLocked(actor, userID)
	if err != nil {
		return nil, err
	}

	user.Banned = banned
	user.ModReason = reason
	user.ModAt = time.Now().UTC()
	user.ModBy = actor.ID

	action := "ban"
	if !banned {
		action = "unban"
	}
	appendAudit(user, models.AdminAction{Action: action, Reason: reason, ActorID: actor.ID})
	return copyUser(user), nil
}

// AddStrike records a moderation strike (e.g. an admin removed one of the
// user's items) on the user record.
func (s *MemoryUserService) AddStrike(ctx context.Context, actor *models.User, userID, reason string) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	user.Strikes++
	appendAudit(user, models.AdminAction{Action: "item_removed", Reason: reason, ActorID: actor.ID})
	return copyUser(user), nil
}

// DeleteUser replaces the account with a placeholder. Authored items are
// preserved by the caller clearing their reporter references.
func (s *MemoryUserService) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.adminTargetLocked(actor, userID)
	if err != nil {
		return err
	}

	delete(s.byEmail, user.Email)
	delete(s.byUniversity, user.UniversityID)

	user.Name = "Deleted User"
	user.Email = ""
	user.UniversityID = ""
	user.PasswordHash = ""
	user.Role = models.RoleStudent
	user.Deleted = true
	user.Notifications = nil
	appendAudit(user, models.AdminAction{Action: "deleted", ActorID: actor.ID})
	return nil
}

func (s *MemoryUserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	return users, nil
}

// adminTargetLocked enforces that actor is an admin acting on someone
// other than themselves.
func (s *MemoryUserService) adminTargetLocked(actor *models.User, userID string) (*models.User, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if actor.ID == userID {
		return nil, ErrForbidden
	}
	user, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func appendAudit(user *models.User, action models.AdminAction) {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	user.AuditLog = append([]models.AdminAction{action}, user.AuditLog...)
	if len(user.AuditLog) > models.MaxAuditEntries {
		user.AuditLog = user.AuditLog[:models.MaxAuditEntries]
	}
}

func copyUser(user *models.User) *models.User {
	cp := *user
	cp.Notifications = append([]models.Notification(nil), user.Notifications...)
	cp.AuditLog = append([]models.AdminAction(nil), user.AuditLog...)
	return &cp
}
