//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/models"
	"github.com/hongminglow/staff-portal/internal/storage"
)

const superAdmin = "root@example.com"

// authSchema stands in for the hosted backend's auth schema.
var authSchema = []string{
	`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'authenticated') THEN
			CREATE ROLE authenticated NOLOGIN;
		END IF;
	END $$;`,
	`CREATE SCHEMA IF NOT EXISTS auth;`,
	`CREATE TABLE auth.users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT UNIQUE,
		raw_user_meta_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	);`,
	`CREATE FUNCTION auth.email() RETURNS TEXT LANGUAGE sql STABLE AS $$
		SELECT COALESCE(
			NULLIF(current_setting('request.jwt.claim.email', true), ''),
			(NULLIF(current_setting('request.jwt.claims', true), '')::jsonb ->> 'email')
		)::text;
	$$;`,
	`CREATE FUNCTION auth.uid() RETURNS UUID LANGUAGE sql STABLE AS $$
		SELECT NULLIF(current_setting('request.jwt.claim.sub', true), '')::uuid;
	$$;`,
	`CREATE FUNCTION auth.admin_invite_user_by_email(invite_email TEXT, meta JSON) RETURNS VOID
	LANGUAGE sql AS $$
		INSERT INTO auth.users (email, raw_user_meta_data) VALUES (invite_email, meta::jsonb);
	$$;`,
}

func setupGateway(t *testing.T) (*Gateway, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("portal_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, stmt := range authSchema {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, Migrate(ctx, pool, superAdmin))

	return NewGateway(pool), pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO auth.users (email) VALUES ($1) RETURNING id::text`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func asPrincipal(email string) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{
		ID:    "00000000-0000-4000-8000-000000000000",
		Email: email,
	})
}

func TestGatewayIntegration(t *testing.T) {
	g, pool := setupGateway(t)

	rootID := seedUser(t, pool, superAdmin)
	aliceID := seedUser(t, pool, "alice@example.com")
	bobID := seedUser(t, pool, "bob@example.com")

	root := asPrincipal(superAdmin)
	alice := asPrincipal("alice@example.com")

	t.Run("list keeps creation order and defaults to user", func(t *testing.T) {
		users, err := g.ListUsersWithRoles(root)
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, []string{rootID, aliceID, bobID},
			[]string{users[0].UserID, users[1].UserID, users[2].UserID})
		for _, u := range users {
			assert.Equal(t, models.RoleUser, u.Role)
		}
	})

	t.Run("non super admin is rejected", func(t *testing.T) {
		_, err := g.ListUsersWithRoles(alice)
		assert.ErrorIs(t, err, admin.ErrAuthz)
		assert.ErrorIs(t, g.SetUserRole(alice, bobID, models.RoleAdmin), admin.ErrAuthz)
		assert.ErrorIs(t, g.InviteUser(alice, "eve@example.com",
			models.InviteProfile{FullName: "Eve", Department: "Ops"}), admin.ErrAuthz)
	})

	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, g.SetUserRole(root, aliceID, models.RoleAdmin))
		require.NoError(t, g.SetUserRole(root, aliceID, models.RoleUser))

		users, err := g.ListUsersWithRoles(root)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, users[1].Role)
	})

	t.Run("idempotent role set", func(t *testing.T) {
		require.NoError(t, g.SetUserRole(root, bobID, models.RoleAdmin))
		require.NoError(t, g.SetUserRole(root, bobID, models.RoleAdmin))

		users, err := g.ListUsersWithRoles(root)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, users[2].Role)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := g.SetUserRole(root, "7c9e6679-7425-40de-944b-e07fc1f90ae7", models.RoleAdmin)
		assert.ErrorIs(t, err, admin.ErrTransport)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invite seeds profile", func(t *testing.T) {
		err := g.InviteUser(root, "carol@example.com", models.InviteProfile{
			FullName: "Carol", Department: "Finance", Title: "Lead", Role: models.RoleAdmin,
		})
		require.NoError(t, err)

		users, err := g.ListUsersWithRoles(root)
		require.NoError(t, err)
		require.Len(t, users, 4)
		assert.Equal(t, "carol@example.com", users[3].Email)
		assert.Equal(t, models.RoleAdmin, users[3].Role)

		var dept string
		require.NoError(t, pool.QueryRow(context.Background(),
			`SELECT department FROM public.profiles WHERE id = $1::uuid`, users[3].UserID).Scan(&dept))
		assert.Equal(t, "Finance", dept)

		err = g.InviteUser(root, "carol@example.com", models.InviteProfile{FullName: "Carol", Department: "Finance"})
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})
}
