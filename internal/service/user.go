package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/user"
	"github.com/Strob0t/democrm/internal/port/database"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// UserService manages the members of the company bound in the context.
type UserService struct {
	store      database.Store
	bcryptCost int
}

// NewUserService creates a new UserService hashing passwords with bcryptCost.
func NewUserService(store database.Store, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{store: store, bcryptCost: bcryptCost}
}

// Create adds a member with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	if err := requireTenant(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Mobile:       req.Mobile,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// List returns the members of the current company.
func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	if err := requireTenant(ctx); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// Get returns a member of the current company by ID.
func (s *UserService) Get(ctx context.Context, id string) (*user.User, error) {
	if err := requireTenant(ctx); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

// ScheduleDeletion sets or clears the day on which the member is removed.
func (s *UserService) ScheduleDeletion(ctx context.Context, id string, req user.ScheduleDeletionRequest) (*user.User, error) {
	if err := requireTenant(ctx); err != nil {
		return nil, err
	}
	date, err := req.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.store.SetUserDeletionDate(ctx, id, date); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

func requireTenant(ctx context.Context) error {
	if p := tenancy.CurrentOrPublic(ctx); p.IsPublic() {
		return fmt.Errorf("members: %w", tenancy.ErrTenantRequired)
	}
	return nil
}
