package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/dashboard/internal/domain/user"
	"github.com/geocoder89/dashboard/internal/observability"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DBTX is the part of pgxpool.Pool the repo needs; pgxmock satisfies it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type UsersRepo struct {
	db   DBTX
	prom *observability.Prom
}

func NewUsersRepo(db DBTX, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create inserts a user. Uniqueness of username and email is left to the
// table's unique indexes so concurrent inserts cannot both win.
func (r *UsersRepo) Create(ctx context.Context, username, email, passwordHash string) (user.User, error) {
	u := user.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}

	err := r.observe("users.create", func() error {
		return r.db.QueryRow(ctx,
			`INSERT INTO users (username, email, password_hash)
			VALUES ($1, $2, $3)
			RETURNING id::text, created_at`,
			username, email, passwordHash,
		).Scan(&u.ID, &u.CreatedAt)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user.User{}, oops.Code("USER_ALREADY_EXISTS").
				With("constraint", pgErr.ConstraintName).
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
	var u user.User

	err := r.observe("users.find_by_username", func() error {
		return r.db.QueryRow(ctx,
			`SELECT id::text, username, email, password_hash, created_at
			FROM users
			WHERE username = $1`,
			username,
		).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("username", username).
			Wrap(err)
	}
	return u, nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.find_by_id", func() error {
		return r.db.QueryRow(ctx,
			`SELECT id::text, username, email, password_hash, created_at
			FROM users
			WHERE id = $1`,
			id,
		).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		// a token subject that is not a uuid cannot name a row
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, oops.Code("USER_GET_BY_ID_FAILED").
			With("id", id).
			Wrap(err)
	}
	return u, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
