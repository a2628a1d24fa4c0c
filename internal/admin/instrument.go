package admin

import (
	"context"
	"time"

	"github.com/hongminglow/staff-portal/internal/models"
)

// Recorder receives one observation per facade call.
type Recorder interface {
	ObserveCall(op, outcome string, elapsed time.Duration)
}

type instrumented struct {
	next Service
	rec  Recorder
}

// Instrument wraps svc so that every call is reported to rec.
func Instrument(svc Service, rec Recorder) Service {
	return &instrumented{next: svc, rec: rec}
}

func (i *instrumented) ListUsersWithRoles(ctx context.Context) ([]models.UserRecord, error) {
	start := time.Now()
	users, err := i.next.ListUsersWithRoles(ctx)
	i.observe("list_users_with_roles", start, err)
	return users, err
}

func (i *instrumented) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	start := time.Now()
	err := i.next.SetUserRole(ctx, userID, role)
	i.observe("set_user_role", start, err)
	return err
}

func (i *instrumented) InviteUser(ctx context.Context, email string, profile models.InviteProfile) error {
	start := time.Now()
	err := i.next.InviteUser(ctx, email, profile)
	i.observe("invite_user", start, err)
	return err
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	i.rec.ObserveCall(op, outcome, time.Since(start))
}
