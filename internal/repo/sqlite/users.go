package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/dashboard/internal/domain/user"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

func (r *UsersRepo) Create(ctx context.Context, username, email, passwordHash string) (user.User, error) {
	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, oops.Code("USER_ALREADY_EXISTS").
				With("username", username).
				Wrap(user.ErrAlreadyExists)
		}

		return user.User{}, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", username).
			Wrap(err)
	}

	return u, nil
}

func (r *UsersRepo) FindByUsername(ctx context.Context, username string) (user.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// column is always one of the literals passed by the Find methods.
func (r *UsersRepo) findOne(ctx context.Context, column, value string) (user.User, error) {
	var u user.User

	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE `+column+` = ?`,
		value,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, oops.Code("USER_LOOKUP_FAILED").
			With("by", column).
			With("value", value).
			Wrap(err)
	}

	return u, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
