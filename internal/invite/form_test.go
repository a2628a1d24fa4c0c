package invite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/models"
)

type inviteCall struct {
	email   string
	profile models.InviteProfile
}

type fakeInviter struct {
	calls   []inviteCall
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeInviter) ListUsersWithRoles(context.Context) ([]models.UserRecord, error) {
	return nil, nil
}

func (f *fakeInviter) SetUserRole(context.Context, string, models.Role) error { return nil }

func (f *fakeInviter) InviteUser(_ context.Context, email string, profile models.InviteProfile) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.calls = append(f.calls, inviteCall{email: email, profile: profile})
	return f.err
}

type silentErr struct {
	Status int `json:"status"`
}

func (silentErr) Error() string { return "" }

func validFields() Fields {
	return Fields{
		Email:      " new.hire@example.com ",
		FullName:   "Nguyen Van A",
		Department: "Operations",
		Title:      "Engineer",
		Role:       models.RoleAdmin,
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Fields)
		missing []string
	}{
		{"missing full name", func(f *Fields) { f.FullName = "" }, []string{"full_name"}},
		{"blank email", func(f *Fields) { f.Email = "   " }, []string{"email"}},
		{"missing department", func(f *Fields) { f.Department = "\t" }, []string{"department"}},
		{"everything empty", func(f *Fields) { *f = Fields{} }, []string{"full_name", "email", "department"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeInviter{}
			form := New(backend)
			fields := validFields()
			tt.mutate(&fields)
			require.NoError(t, form.Set(fields))

			_, err := form.Submit(context.Background())

			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.missing, fieldErr.Fields)
			assert.ErrorIs(t, err, admin.ErrValidation)
			assert.Equal(t, admin.KindValidation, admin.KindOf(err))
			assert.Empty(t, backend.calls)
			assert.NotEmpty(t, form.Status().Err)
			assert.Equal(t, fields, form.Fields())
		})
	}
}

func TestValidate_UnknownRole(t *testing.T) {
	backend := &fakeInviter{}
	form := New(backend)
	fields := validFields()
	fields.Role = "owner"
	require.NoError(t, form.Set(fields))

	_, err := form.Submit(context.Background())

	var fieldErr *FieldError
	assert.False(t, errors.As(err, &fieldErr))
	assert.EqualError(t, err, `invalid role "owner"`)
	assert.Equal(t, admin.KindValidation, admin.KindOf(err))
	assert.Equal(t, `invalid role "owner"`, form.Status().Err)
	assert.Empty(t, backend.calls)
}

func TestSubmit_SendsExactFields(t *testing.T) {
	backend := &fakeInviter{}
	done := make(chan struct{})
	form := New(backend, WithSuccessDisplay(10*time.Millisecond), WithOnDone(func() { close(done) }))
	require.NoError(t, form.Set(validFields()))

	msg, err := form.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "invitation sent to new.hire@example.com", msg)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, inviteCall{
		email: "new.hire@example.com",
		profile: models.InviteProfile{
			FullName:   "Nguyen Van A",
			Department: "Operations",
			Title:      "Engineer",
			Role:       models.RoleAdmin,
		},
	}, backend.calls[0])

	assert.Equal(t, Fields{Role: models.RoleUser}, form.Fields())
	assert.Equal(t, Status{Success: msg}, form.Status())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDone was not called after the success display")
	}
}

func TestSubmit_DefaultsRoleToUser(t *testing.T) {
	backend := &fakeInviter{}
	form := New(backend)
	fields := validFields()
	fields.Role = ""
	fields.Title = ""
	require.NoError(t, form.Set(fields))

	_, err := form.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, backend.calls[0].profile.Role)
	assert.Empty(t, backend.calls[0].profile.Title)
}

func TestSubmit_FailureKeepsFields(t *testing.T) {
	backend := &fakeInviter{err: admin.Transport("A user with this email address has already been registered", nil)}
	called := make(chan struct{}, 1)
	form := New(backend, WithSuccessDisplay(time.Millisecond), WithOnDone(func() { called <- struct{}{} }))
	require.NoError(t, form.Set(validFields()))

	_, err := form.Submit(context.Background())
	assert.ErrorIs(t, err, admin.ErrTransport)

	assert.Equal(t, validFields(), form.Fields())
	assert.Equal(t, Status{Err: "A user with this email address has already been registered"}, form.Status())

	select {
	case <-called:
		t.Fatal("OnDone fired after a failed submit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmit_FailureWithoutMessageIsSerialized(t *testing.T) {
	backend := &fakeInviter{err: silentErr{Status: 500}}
	form := New(backend)
	require.NoError(t, form.Set(validFields()))

	_, err := form.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, `{"status":500}`, form.Status().Err)
}

func TestSubmit_LocksFormWhileSubmitting(t *testing.T) {
	backend := &fakeInviter{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	form := New(backend)
	require.NoError(t, form.Set(validFields()))

	result := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background())
		result <- err
	}()

	select {
	case <-backend.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit never reached the backend")
	}

	assert.True(t, form.Status().Submitting)
	_, err := form.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitting)
	assert.ErrorIs(t, form.Clear(), ErrSubmitting)
	assert.ErrorIs(t, form.Set(Fields{}), ErrSubmitting)

	close(backend.gate)
	require.NoError(t, <-result)
	assert.Len(t, backend.calls, 1)
	assert.False(t, form.Status().Submitting)
}

func TestClear(t *testing.T) {
	form := New(&fakeInviter{})
	require.NoError(t, form.Set(validFields()))
	require.NoError(t, form.Clear())
	assert.Equal(t, Fields{Role: models.RoleUser}, form.Fields())
}

func TestFieldError_Message(t *testing.T) {
	err := &FieldError{Fields: []string{"full_name", "email"}}
	assert.Equal(t, "please fill in: full_name, email", err.Error())
	assert.True(t, errors.Is(err, admin.ErrValidation))
}

func TestSubmitFields_RejectedWhileSubmitting(t *testing.T) {
	backend := &fakeInviter{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	form := New(backend)

	result := make(chan error, 1)
	go func() {
		_, err := form.SubmitFields(context.Background(), validFields())
		result <- err
	}()

	select {
	case <-backend.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit never reached the backend")
	}

	other := validFields()
	other.Email = "someone.else@example.com"
	_, err := form.SubmitFields(context.Background(), other)
	assert.ErrorIs(t, err, ErrSubmitting)
	assert.Equal(t, validFields(), form.Fields())

	close(backend.gate)
	require.NoError(t, <-result)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, "new.hire@example.com", backend.calls[0].email)
}

func TestRegistry_OneFormPerPrincipal(t *testing.T) {
	done := make(chan auth.Principal, 1)
	r := NewRegistry(&fakeInviter{}, 4, time.Hour, func(p auth.Principal) { done <- p },
		WithSuccessDisplay(time.Millisecond))

	alice := auth.Principal{ID: "a", Email: "alice@example.com"}
	form := r.For(alice)
	assert.Same(t, form, r.For(alice))
	assert.NotSame(t, form, r.For(auth.Principal{ID: "b", Email: "bob@example.com"}))

	_, err := form.SubmitFields(context.Background(), validFields())
	require.NoError(t, err)

	select {
	case p := <-done:
		assert.Equal(t, alice, p)
	case <-time.After(2 * time.Second):
		t.Fatal("completion was never reported")
	}
}
