package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/dashboard/internal/db"
	"github.com/geocoder89/dashboard/internal/domain/user"
	"github.com/geocoder89/dashboard/internal/repo/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *sqlite.UsersRepo {
	t.Helper()

	ctx := context.Background()

	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(ctx, sqlDB, db.DialectSQLite))

	return sqlite.NewUsersRepo(sqlDB)
}

func TestUsersRepo_CreateAndFind(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "admin", "admin@test.com", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	byName, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)
	assert.WithinDuration(t, created.CreatedAt, byName.CreatedAt, time.Millisecond)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@test.com", byID.Email)

	require.NoError(t, repo.Ping(ctx))
}

func TestUsersRepo_UniqueKeys(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "admin", "admin@test.com", "hash")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "admin", "other@test.com", "hash")
	assert.ErrorIs(t, err, user.ErrAlreadyExists)

	_, err = repo.Create(ctx, "other", "admin@test.com", "hash")
	assert.ErrorIs(t, err, user.ErrAlreadyExists)
}

func TestUsersRepo_CaseSensitiveLookup(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "admin", "admin@test.com", "hash")
	require.NoError(t, err)

	_, err = repo.FindByUsername(ctx, "Admin")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUsersRepo_ConcurrentCreate(t *testing.T) {
	repo := newRepo(t)

	const n = 6
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(context.Background(), "racer", "racer@test.com", "hash")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, user.ErrAlreadyExists)
	}
	assert.Equal(t, 1, ok)
}
