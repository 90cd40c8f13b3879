// Package user defines the company member model stored inside each
// tenant schema.
package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Role represents the authorization level of a member within a company.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:  true,
	RoleEditor: true,
	RoleViewer: true,
}

// DateLayout is the wire format of deletion dates.
const DateLayout = time.DateOnly

// User is a member of one company. The row lives in the company's schema,
// so it carries no tenant reference.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Mobile       string     `json:"mobile,omitempty"`
	PasswordHash string     `json:"-"` // never serialized
	Role         Role       `json:"role"`
	DeletionDate *time.Time `json:"deletion_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateRequest is the input for adding a member to the current company.
type CreateRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Mobile   string `json:"mobile,omitempty"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Role     Role   `json:"role"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("invalid email format")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if r.Role == "" {
		r.Role = RoleViewer
	}
	if !ValidRoles[r.Role] {
		return errors.New("invalid role: must be admin, editor, or viewer")
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return nil
}

// ScheduleDeletionRequest sets (or clears, when Date is empty) the day on
// which the nightly sweep removes the member.
type ScheduleDeletionRequest struct {
	Date string `json:"date"`
}

// Parse returns the requested date, nil when clearing.
func (r *ScheduleDeletionRequest) Parse() (*time.Time, error) {
	if r.Date == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return nil, errors.New("date must be formatted as YYYY-MM-DD")
	}
	return &d, nil
}
