package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/models"
	"github.com/hongminglow/staff-portal/internal/storage"
)

// Ensure Gateway satisfies the admin.Service interface at compile time.
var _ admin.Service = (*Gateway)(nil)

// Gateway calls the backend's administration functions over a pgx pool,
// forwarding the caller's session claims so the database authorizes each call.
type Gateway struct {
	pool *pgxpool.Pool
}

// Connect parses the database URL and opens a verified pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewGateway wraps an open pool. The caller owns the pool's lifetime.
func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// ListUsersWithRoles calls get_users_with_roles and keeps the backend's row order.
func (g *Gateway) ListUsersWithRoles(ctx context.Context) ([]models.UserRecord, error) {
	const query = `SELECT user_id::text, COALESCE(email, ''), role FROM public.get_users_with_roles();`

	users := []models.UserRecord{}
	err := g.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		collected, err := pgx.CollectRows(rows, scanUserRecord)
		if err != nil {
			return err
		}
		users = append(users, collected...)
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// SetUserRole calls admin_update_user_role, which upserts the profile row.
func (g *Gateway) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return admin.Validation("invalid user id %q", userID)
	}
	if !role.Valid() {
		return admin.Validation("invalid role %q", role)
	}

	err = g.asCaller(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT public.admin_update_user_role($1::uuid, $2);`, id.String(), string(role))
		return err
	})
	return classify(err)
}

// InviteUser calls admin_invite_user with the profile as invite metadata.
func (g *Gateway) InviteUser(ctx context.Context, email string, profile models.InviteProfile) error {
	if strings.TrimSpace(email) == "" {
		return admin.Validation("email is required")
	}
	if strings.TrimSpace(profile.FullName) == "" || strings.TrimSpace(profile.Department) == "" {
		return admin.Validation("full name and department are required")
	}
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	if !profile.Role.Valid() {
		return admin.Validation("invalid role %q", profile.Role)
	}

	metadata, err := json.Marshal(profile)
	if err != nil {
		return admin.Transport("", fmt.Errorf("encode invite metadata: %w", err))
	}

	err = g.asCaller(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT public.admin_invite_user($1, $2::json);`, email, string(metadata))
		return err
	})
	return classify(err)
}

// asCaller runs fn in a transaction scoped to the principal on ctx. The
// backend's auth.email()/auth.uid() read the claims set here.
func (g *Gateway) asCaller(ctx context.Context, fn func(pgx.Tx) error) error {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return admin.Authz("no authenticated session", nil)
	}
	claims, err := json.Marshal(map[string]string{
		"sub":   p.ID,
		"email": p.Email,
		"role":  "authenticated",
	})
	if err != nil {
		return fmt.Errorf("encode session claims: %w", err)
	}

	const setClaims = `SELECT set_config('request.jwt.claims', $1, true),
		set_config('request.jwt.claim.email', $2, true),
		set_config('request.jwt.claim.sub', $3, true);`

	return pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, setClaims, string(claims), p.Email, p.ID); err != nil {
			return fmt.Errorf("attach session claims: %w", err)
		}
		return fn(tx)
	})
}

func scanUserRecord(row pgx.CollectableRow) (models.UserRecord, error) {
	var rec models.UserRecord
	var role string
	if err := row.Scan(&rec.UserID, &rec.Email, &role); err != nil {
		return models.UserRecord{}, err
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return models.UserRecord{}, fmt.Errorf("user %s: %w", rec.UserID, err)
	}
	rec.Role = parsed
	return rec, nil
}

// classify maps database failures onto the facade's error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var adminErr *admin.Error
	if errors.As(err, &adminErr) {
		return adminErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501" || strings.HasPrefix(pgErr.Message, "403"):
			return admin.Authz(pgErr.Message, err)
		case pgErr.Code == "23503":
			return admin.Transport("user not found", fmt.Errorf("%w: %w", storage.ErrNotFound, err))
		case pgErr.Code == "23505":
			return admin.Transport("a user with this email already exists", fmt.Errorf("%w: %w", storage.ErrAlreadyExists, err))
		}
		return admin.Transport(pgErr.Message, err)
	}
	return admin.Transport("", err)
}
