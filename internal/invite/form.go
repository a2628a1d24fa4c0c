// Package invite implements the invitation form: a local validation gate in
// front of the backend's invite call, plus the submit/success/failure states
// an operator sees.
package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/models"
)

// DefaultSuccessDisplay is how long a success message stays up before the
// form reports completion.
const DefaultSuccessDisplay = 2500 * time.Millisecond

// ErrSubmitting is returned for edits, clears, and submits while a submission is in flight.
var ErrSubmitting = errors.New("an invitation is already being sent")

// FieldError names the fields that failed validation.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("please fill in: %s", strings.Join(e.Fields, ", "))
}

func (e *FieldError) Unwrap() error { return admin.ErrValidation }

// Fields are the operator's inputs.
type Fields struct {
	Email      string
	FullName   string
	Department string
	Title      string
	Role       models.Role
}

// Status is what the form currently shows besides its fields.
type Status struct {
	Submitting bool
	Err        string
	Success    string
}

// Option configures a Form.
type Option func(*Form)

// WithSuccessDisplay sets how long the success message is shown before OnDone fires.
func WithSuccessDisplay(d time.Duration) Option {
	return func(f *Form) { f.display = d }
}

// WithOnDone registers the callback fired once a successful invite's message has been shown.
func WithOnDone(fn func()) Option {
	return func(f *Form) { f.onDone = fn }
}

// Form is one invitation form instance.
type Form struct {
	svc     admin.Service
	display time.Duration
	onDone  func()

	mu         sync.Mutex
	fields     Fields
	submitting bool
	errMsg     string
	success    string
}

// New returns an empty form with the role defaulted to user.
func New(svc admin.Service, opts ...Option) *Form {
	f := &Form{
		svc:     svc,
		display: DefaultSuccessDisplay,
		onDone:  func() {},
		fields:  Fields{Role: models.RoleUser},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Set replaces the form's inputs.
func (f *Form) Set(fields Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrSubmitting
	}
	f.fields = fields
	return nil
}

// Fields returns the current inputs.
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Clear empties every input and resets the role to user.
func (f *Form) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrSubmitting
	}
	f.fields = Fields{Role: models.RoleUser}
	return nil
}

// Status returns the submit state and any message on display.
func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{Submitting: f.submitting, Err: f.errMsg, Success: f.success}
}

// Validate checks the inputs and builds the request that Submit would send.
func Validate(fields Fields) (models.InvitationRequest, error) {
	req := models.InvitationRequest{
		Email: strings.TrimSpace(fields.Email),
		Profile: models.InviteProfile{
			FullName:   strings.TrimSpace(fields.FullName),
			Department: strings.TrimSpace(fields.Department),
			Title:      strings.TrimSpace(fields.Title),
		},
	}

	var missing []string
	if req.Profile.FullName == "" {
		missing = append(missing, "full_name")
	}
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Profile.Department == "" {
		missing = append(missing, "department")
	}
	if len(missing) > 0 {
		return models.InvitationRequest{}, &FieldError{Fields: missing}
	}
	role, err := models.ParseRole(string(fields.Role))
	if err != nil {
		return models.InvitationRequest{}, admin.Validation("invalid role %q", fields.Role)
	}
	req.Profile.Role = role
	return req, nil
}

// Submit validates and sends the invitation. On success the fields are
// cleared and, after the success display duration, the OnDone callback
// fires. On failure the fields are kept for correction.
func (f *Form) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return "", ErrSubmitting
	}
	return f.submit(ctx)
}

// SubmitFields replaces the inputs and submits them as one step, so a
// concurrent edit cannot slip in between.
func (f *Form) SubmitFields(ctx context.Context, fields Fields) (string, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return "", ErrSubmitting
	}
	f.fields = fields
	return f.submit(ctx)
}

// submit must be called with mu held; it releases mu.
func (f *Form) submit(ctx context.Context) (string, error) {
	req, err := Validate(f.fields)
	if err != nil {
		f.errMsg = err.Error()
		f.success = ""
		f.mu.Unlock()
		return "", err
	}
	f.submitting = true
	f.errMsg = ""
	f.success = ""
	f.mu.Unlock()

	err = f.svc.InviteUser(ctx, req.Email, req.Profile)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.errMsg = admin.Message(err)
		return "", err
	}
	f.fields = Fields{Role: models.RoleUser}
	f.success = fmt.Sprintf("invitation sent to %s", req.Email)
	time.AfterFunc(f.display, f.onDone)
	return f.success, nil
}
