package models

import (
	"regexp"
	"strings"
	"time"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	UniversityID string    `json:"university_id"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Verified     bool      `json:"verified"`
	Suspended    bool      `json:"suspended"`
	Banned       bool      `json:"banned"`
	ModReason    string    `json:"mod_reason,omitempty"`
	ModAt        time.Time `json:"mod_at,omitempty"`
	ModBy        string    `json:"mod_by,omitempty"`
	Strikes      int       `json:"strikes"`
	Deleted      bool      `json:"deleted,omitempty"`

	// Newest-first, capped (50 notifications, 100 audit entries).
	Notifications []Notification `json:"notifications,omitempty"`
	AuditLog      []AdminAction  `json:"audit_log,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AdminAction is one entry in a user's admin audit trail.
type AdminAction struct {
	Action    string    `json:"action"` // suspend, unsuspend, ban, unban, role_change, item_removed, deleted
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	UniversityID string `json:"university_id"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !emailRe.MatchString(r.Email) {
		errors["email"] = "Email is not valid"
	}
	if strings.TrimSpace(r.UniversityID) == "" {
		errors["university_id"] = "University ID is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters"
	}

	return errors
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *UpdateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}

	return errors
}
