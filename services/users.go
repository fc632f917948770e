package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"altotrafico-web/internal/storage"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/google/uuid"
)

const MaxAdminUsers = 10

var (
	ErrMissingFields  = errors.New("username, email and password are required")
	ErrUsernameTaken  = errors.New("username already exists")
	ErrTooManyUsers   = errors.New("user limit reached")
	ErrUserIDRequired = errors.New("user id is required")
	ErrLastUser       = errors.New("at least one user must remain")
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidAction  = errors.New("invalid action")
)

// UsersService manages the admin accounts stored under site:users.
type UsersService struct {
	store      *storage.Store
	bcryptCost int
	newID      func() string

	// Serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

func NewUsersService(store *storage.Store, bcryptCost int) *UsersService {
	return &UsersService{store: store, bcryptCost: bcryptCost, newID: uuid.NewString}
}

// List returns every user without password hashes.
func (s *UsersService) List(ctx context.Context) ([]models.Identity, error) {
	users, err := s.store.ReadUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	return out, nil
}

// Apply runs one add, update or remove action.
func (s *UsersService) Apply(ctx context.Context, a models.UserAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.ReadUsers(ctx)
	if err != nil {
		return err
	}

	switch a.Action {
	case "add":
		users, err = s.add(users, a)
	case "update":
		users, err = s.update(users, a)
	case "remove":
		users, err = remove(users, a.ID)
	default:
		return ErrInvalidAction
	}
	if err != nil {
		return err
	}
	return s.store.WriteUsers(ctx, users)
}

// EnsureUser creates u when no users exist yet. It reports whether it wrote.
func (s *UsersService) EnsureUser(ctx context.Context, id, username, email, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.ReadUsers(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	users = append(users, models.AdminUser{ID: id, Username: username, Email: email, PasswordHash: hash})
	return true, s.store.WriteUsers(ctx, users)
}

func (s *UsersService) add(users []models.AdminUser, a models.UserAction) ([]models.AdminUser, error) {
	username := truncate(strings.TrimSpace(a.Username), 50)
	email := truncate(strings.TrimSpace(a.Email), 100)
	if username == "" || email == "" || a.Password == "" {
		return nil, ErrMissingFields
	}
	if indexByUsername(users, username) >= 0 {
		return nil, ErrUsernameTaken
	}
	if len(users) >= MaxAdminUsers {
		return nil, ErrTooManyUsers
	}

	hash, err := utils.HashPassword(a.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	return append(users, models.AdminUser{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}), nil
}

func (s *UsersService) update(users []models.AdminUser, a models.UserAction) ([]models.AdminUser, error) {
	if a.ID == "" {
		return nil, ErrUserIDRequired
	}
	if len(users) <= 1 {
		return nil, ErrLastUser
	}
	idx := indexByID(users, a.ID)
	if idx < 0 {
		return nil, ErrUserNotFound
	}

	u := users[idx]
	if name := truncate(strings.TrimSpace(a.Username), 50); name != "" {
		if other := indexByUsername(users, name); other >= 0 && other != idx {
			return nil, ErrUsernameTaken
		}
		u.Username = name
	}
	if email := truncate(strings.TrimSpace(a.Email), 100); email != "" {
		u.Email = email
	}
	if a.Password != "" {
		hash, err := utils.HashPassword(a.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	out := append([]models.AdminUser(nil), users...)
	out[idx] = u
	return out, nil
}

func remove(users []models.AdminUser, id string) ([]models.AdminUser, error) {
	if id == "" {
		return nil, ErrUserIDRequired
	}
	if len(users) <= 1 {
		return nil, ErrLastUser
	}
	idx := indexByID(users, id)
	if idx < 0 {
		return nil, ErrUserNotFound
	}
	out := make([]models.AdminUser, 0, len(users)-1)
	out = append(out, users[:idx]...)
	return append(out, users[idx+1:]...), nil
}

func indexByID(users []models.AdminUser, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func indexByUsername(users []models.AdminUser, username string) int {
	for i := range users {
		if users[i].Username == username {
			return i
		}
	}
	return -1
}
