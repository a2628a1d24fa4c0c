// Package admin defines the user administration facade: the three remote
// operations the portal performs against the hosted backend, and the error
// taxonomy their failures are reported in.
package admin

import (
	"context"

	"github.com/hongminglow/staff-portal/internal/models"
)

// Service is the administration facade. Each method is a single round trip,
// authorized by the backend against the principal carried on ctx. Calls are
// independent of each other; there is no cross-call atomicity.
type Service interface {
	// ListUsersWithRoles returns every account in backend order (oldest first).
	ListUsersWithRoles(ctx context.Context) ([]models.UserRecord, error)
	// SetUserRole upserts the role on the account's profile row.
	SetUserRole(ctx context.Context, userID string, role models.Role) error
	// InviteUser triggers the backend's account creation and invite notification.
	InviteUser(ctx context.Context, email string, profile models.InviteProfile) error
}
