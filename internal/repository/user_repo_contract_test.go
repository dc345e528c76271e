package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"users-api/internal/domain"
)

// runUserRepositoryContract ejercita el comportamiento común de cualquier UserRepository.
// repo debe estar vacío al comenzar.
func runUserRepositoryContract(t *testing.T, newRepo func(t *testing.T) UserRepository) {
	t.Helper()
	ctx := context.Background()

	// El reloj avanza en cada alta para que el orden de inserción sea estable en todos los stores.
	clock := time.Now().UTC().Truncate(time.Millisecond)
	seed := func(t *testing.T, repo UserRepository, name, email string) domain.User {
		t.Helper()
		clock = clock.Add(time.Millisecond)
		now := clock
		u, err := repo.Create(ctx, domain.User{
			Name:         name,
			Email:        email,
			PasswordHash: "hash-" + name,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)
		return u
	}

	t.Run("create assigns id and reads back", func(t *testing.T) {
		repo := newRepo(t)
		created := seed(t, repo, "Ana", "ana@x.com")

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "Ana", got.Name)
		require.Equal(t, "ana@x.com", got.Email)
		require.Equal(t, "hash-Ana", got.PasswordHash)

		byEmail, err := repo.GetByEmail(ctx, "ana@x.com")
		require.NoError(t, err)
		require.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo, "Ana", "ana@x.com")
		_, err := repo.Create(ctx, domain.User{Name: "Other", Email: "ana@x.com", PasswordHash: "h"})
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("missing ids are not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetByID(ctx, "does-not-exist")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = repo.GetByEmail(ctx, "nobody@x.com")
		require.ErrorIs(t, err, ErrNotFound)

		name := "New"
		_, err = repo.Update(ctx, "does-not-exist", domain.UserPatch{Name: &name, UpdatedAt: time.Now().UTC()})
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, repo.Delete(ctx, "does-not-exist"), ErrNotFound)

		list, err := repo.List(ctx, domain.ListQuery{Limit: 10})
		require.NoError(t, err)
		require.Empty(t, list, "update on a missing id must not upsert")
	})

	t.Run("pagination windows do not overlap", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 7; i++ {
			seed(t, repo, fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@x.com", i))
		}

		seen := map[string]bool{}
		var names []string
		for page := 1; page <= 3; page++ {
			got, err := repo.List(ctx, domain.ListQuery{Skip: (page - 1) * 3, Limit: 3})
			require.NoError(t, err)
			require.LessOrEqual(t, len(got), 3)
			for _, u := range got {
				require.False(t, seen[u.ID], "user %s repeated across pages", u.ID)
				seen[u.ID] = true
				names = append(names, u.Name)
			}
		}
		require.Len(t, seen, 7)
		require.Equal(t, []string{"user0", "user1", "user2", "user3", "user4", "user5", "user6"}, names)
	})

	t.Run("search is case-insensitive substring over name or email", func(t *testing.T) {
		repo := newRepo(t)
		ana := seed(t, repo, "Ana", "ana@x.com")
		bob := seed(t, repo, "Bob", "bob@analytics.io")
		seed(t, repo, "Carl", "carl@x.com")
		seed(t, repo, "a.b_c%", "weird@x.com")

		got, err := repo.List(ctx, domain.ListQuery{Limit: 10, Search: "ANA"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, ana.ID, got[0].ID)
		require.Equal(t, bob.ID, got[1].ID)

		got, err = repo.List(ctx, domain.ListQuery{Limit: 10, Search: "_c%"})
		require.NoError(t, err)
		require.Len(t, got, 1, "wildcards in search must match literally")
		require.Equal(t, "a.b_c%", got[0].Name)

		got, err = repo.List(ctx, domain.ListQuery{Limit: 10, Search: "a.b"})
		require.NoError(t, err)
		require.Len(t, got, 1)

		got, err = repo.List(ctx, domain.ListQuery{Skip: 1, Limit: 10, Search: "ana"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, bob.ID, got[0].ID, "skip applies after filtering")
	})

	t.Run("update changes only patched fields", func(t *testing.T) {
		repo := newRepo(t)
		created := seed(t, repo, "Ana", "ana@x.com")
		other := seed(t, repo, "Bob", "bob@x.com")

		name := "New"
		updatedAt := created.UpdatedAt.Add(time.Minute)
		got, err := repo.Update(ctx, created.ID, domain.UserPatch{Name: &name, UpdatedAt: updatedAt})
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "New", got.Name)
		require.Equal(t, "ana@x.com", got.Email)
		require.Equal(t, "hash-Ana", got.PasswordHash)
		require.True(t, got.UpdatedAt.Equal(updatedAt))

		taken := "bob@x.com"
		_, err = repo.Update(ctx, created.ID, domain.UserPatch{Email: &taken, UpdatedAt: updatedAt})
		require.ErrorIs(t, err, ErrEmailTaken)

		untouched, err := repo.GetByID(ctx, other.ID)
		require.NoError(t, err)
		require.Equal(t, "Bob", untouched.Name)
	})

	t.Run("delete removes exactly one record", func(t *testing.T) {
		repo := newRepo(t)
		a := seed(t, repo, "Ana", "ana@x.com")
		b := seed(t, repo, "Bob", "bob@x.com")

		require.NoError(t, repo.Delete(ctx, a.ID))
		_, err := repo.GetByID(ctx, a.ID)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, repo.Delete(ctx, a.ID), ErrNotFound)

		_, err = repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newRepo(t).Ping(ctx))
	})
}

func TestMemoryUserRepository_Contract(t *testing.T) {
	runUserRepositoryContract(t, func(t *testing.T) UserRepository {
		return NewMemoryUserRepository()
	})
}

func TestMongoUserRepository_Contract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	runUserRepositoryContract(t, func(t *testing.T) UserRepository {
		database := client.Database(fmt.Sprintf("users_test_%d", time.Now().UnixNano()))
		t.Cleanup(func() { _ = database.Drop(context.Background()) })
		repo := NewMongoUserRepository(database)
		require.NoError(t, repo.EnsureIndexes(context.Background()))
		return repo
	})
}

func TestPgUserRepository_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runUserRepositoryContract(t, func(t *testing.T) UserRepository {
		repo := NewPgUserRepository(pool)
		require.NoError(t, repo.EnsureSchema(ctx))
		_, err := pool.Exec(ctx, `TRUNCATE users`)
		require.NoError(t, err)
		return repo
	})
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
	require.Equal(t, "plain", escapeLike("plain"))
}
