package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/dashboard/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo keeps users in process memory. Both unique keys are checked and
// written under one lock, so concurrent creates behave like a unique index.
type UsersRepo struct {
	mu         sync.RWMutex
	byID       map[string]user.User // {"id": user}
	byUsername map[string]string    // {"username": id}
	byEmail    map[string]string    // {"email": id}
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:       make(map[string]user.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *UsersRepo) Create(ctx context.Context, username, email, passwordHash string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[username]; ok {
		return user.User{}, user.ErrAlreadyExists
	}

	if _, ok := r.byEmail[email]; ok {
		return user.User{}, user.ErrAlreadyExists
	}

	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	r.byID[u.ID] = u
	r.byUsername[username] = u.ID
	r.byEmail[email] = u.ID

	return u, nil
}

func (r *UsersRepo) FindByUsername(ctx context.Context, username string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.byID[id], nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

// Ping always succeeds; it lets the memory store back the readiness check.
func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored users.
func (r *UsersRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
