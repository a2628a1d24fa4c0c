package admin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/staff-portal/internal/models"
)

type silentErr struct {
	Code string `json:"code"`
}

func (silentErr) Error() string { return "" }

func TestError_KindMatching(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("list users: %w", Transport("", cause))

	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrAuthz)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransport, KindOf(err))

	assert.ErrorIs(t, Authz("403: Forbidden", nil), ErrAuthz)
	assert.ErrorIs(t, Validation("email is required"), ErrValidation)
	assert.Equal(t, KindTransport, KindOf(errors.New("plain")))
}

func TestError_MessageVerbatim(t *testing.T) {
	err := Authz("403: Forbidden - Only the super admin can perform this action.", nil)
	assert.Equal(t, "403: Forbidden - Only the super admin can perform this action.", err.Error())
}

func TestMessage_FallsBackToJSON(t *testing.T) {
	err := Transport("", silentErr{Code: "PGRST301"})
	assert.Equal(t, `{"code":"PGRST301"}`, err.Error())
	assert.Equal(t, "", Message(nil))
}

type fakeService struct {
	err error
}

func (f fakeService) ListUsersWithRoles(context.Context) ([]models.UserRecord, error) {
	return nil, f.err
}

func (f fakeService) SetUserRole(context.Context, string, models.Role) error { return f.err }

func (f fakeService) InviteUser(context.Context, string, models.InviteProfile) error { return f.err }

type recordedCall struct {
	op, outcome string
}

type fakeRecorder struct {
	calls []recordedCall
}

func (r *fakeRecorder) ObserveCall(op, outcome string, _ time.Duration) {
	r.calls = append(r.calls, recordedCall{op, outcome})
}

func TestInstrument_RecordsOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	ctx := context.Background()

	ok := Instrument(fakeService{}, rec)
	_, err := ok.ListUsersWithRoles(ctx)
	require.NoError(t, err)

	denied := Instrument(fakeService{err: Authz("403: Forbidden", nil)}, rec)
	require.Error(t, denied.SetUserRole(ctx, "u", models.RoleAdmin))

	broken := Instrument(fakeService{err: errors.New("boom")}, rec)
	require.Error(t, broken.InviteUser(ctx, "a@example.com", models.InviteProfile{}))

	assert.Equal(t, []recordedCall{
		{"list_users_with_roles", "ok"},
		{"set_user_role", "authz"},
		{"invite_user", "transport"},
	}, rec.calls)
}
