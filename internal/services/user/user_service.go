package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken      = errors.New("email is already registered")
	ErrInvalidPassword = errors.New("invalid password")
)

// Store is the persistence surface the service needs. *UserRepo implements it.
type Store interface {
	Create(ctx context.Context, name, email, passwordHash, timezone string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	SearchInOrganization(ctx context.Context, organizationID uuid.UUID, term string, limit int) ([]*User, error)
}

type UserService struct {
	store Store
}

func NewUserService(store Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	taken, err := s.store.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}

	return s.store.Create(ctx, req.Name, req.Email, string(hash), tz)
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	if err != nil {
		return nil, ErrInvalidPassword
	}

	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *UserService) SearchInOrganization(ctx context.Context, organizationID uuid.UUID, term string) ([]*User, error) {
	return s.store.SearchInOrganization(ctx, organizationID, term, 10)
}
