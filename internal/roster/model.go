// Package roster holds the administration view model: the operator's
// in-memory list of accounts, its load state, and the single in-flight role
// change.
//
// The roster is only ever replaced by a full fetch from the backend. A failed
// call never edits it, so a failure always leaves the operator looking at the
// last state the backend reported.
package roster

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/models"
)

const rosterKey = "roster"

// State is the load state of a roster.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateLoadError State = "load_error"
)

var (
	// ErrMutationPending is returned when a role change is requested while another is in flight.
	ErrMutationPending = errors.New("another role change is in progress")
	// ErrProtectedAccount is returned for the super-administrator's row.
	ErrProtectedAccount = errors.New("the super administrator's role cannot be changed")
	// ErrUnknownUser is returned for a user id that is not on the displayed roster.
	ErrUnknownUser = errors.New("user is not on the roster")
	// ErrNotLoaded is returned when no roster is on display.
	ErrNotLoaded = errors.New("roster is not loaded")
)

// Row is one displayed account.
type Row struct {
	models.UserRecord
	CanChangeRole bool
	Pending       bool
}

// Snapshot is a copy of the model's state safe to hand to a renderer.
type Snapshot struct {
	State         State
	Rows          []Row
	PendingUserID string
	Err           string
	// Cause is the error behind Err, if any.
	Cause error
}

// Option configures a Model.
type Option func(*Model)

// WithRejectionObserver reports role changes refused before reaching the backend.
func WithRejectionObserver(fn func(reason string)) Option {
	return func(m *Model) { m.onReject = fn }
}

// Model is the administration view model for one operator.
type Model struct {
	svc        admin.Service
	superAdmin string
	onReject   func(reason string)

	loads singleflight.Group

	mu      sync.Mutex
	fetches uint64
	state   State
	users   []models.UserRecord
	pending string
	errMsg  string
	lastErr error
}

// New creates an idle model. superAdminEmail names the account whose row
// never offers a role change.
func New(svc admin.Service, superAdminEmail string, opts ...Option) *Model {
	m := &Model{
		svc:        svc,
		superAdmin: strings.TrimSpace(superAdminEmail),
		state:      StateIdle,
		onReject:   func(string) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mount performs the initial load. Only the first call from the idle state
// fetches; later calls are no-ops.
func (m *Model) Mount(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return nil
	}
	m.state = StateLoading
	m.mu.Unlock()

	return m.load(ctx, false)
}

// Reload re-fetches the roster on operator request. It joins a fetch that
// is already running.
func (m *Model) Reload(ctx context.Context) error {
	return m.load(ctx, false)
}

// Refresh re-fetches the roster after a change made elsewhere. It always
// starts its own round trip, and fetches that began earlier are discarded.
// An idle model stays idle.
func (m *Model) Refresh(ctx context.Context) error {
	m.mu.Lock()
	idle := m.state == StateIdle
	m.mu.Unlock()
	if idle {
		return nil
	}
	return m.load(ctx, true)
}

// load replaces the roster with a fresh fetch. Overlapping loads share one
// round trip unless fresh is set. Only the newest fetch may write the roster.
func (m *Model) load(ctx context.Context, fresh bool) error {
	ctx = context.WithoutCancel(ctx)
	if fresh {
		m.loads.Forget(rosterKey)
	}
	_, err, _ := m.loads.Do(rosterKey, func() (any, error) {
		m.mu.Lock()
		m.fetches++
		seq := m.fetches
		m.state = StateLoading
		m.setErr(nil)
		m.mu.Unlock()

		users, err := m.svc.ListUsersWithRoles(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		if seq != m.fetches {
			// superseded
			return nil, err
		}
		if err != nil {
			m.state = StateLoadError
			m.setErr(err)
			return nil, err
		}
		m.users = slices.Clone(users)
		m.state = StateLoaded
		return nil, nil
	})
	return err
}

// ChangeRole sets the role of one displayed account and re-fetches the
// roster. Only one change may be in flight at a time.
func (m *Model) ChangeRole(ctx context.Context, userID string, role models.Role) error {
	m.mu.Lock()
	if m.pending != "" {
		m.mu.Unlock()
		m.onReject("pending")
		return ErrMutationPending
	}
	if m.state != StateLoaded {
		m.mu.Unlock()
		m.onReject("not_loaded")
		return ErrNotLoaded
	}
	idx := slices.IndexFunc(m.users, func(u models.UserRecord) bool { return u.UserID == userID })
	if idx < 0 {
		m.mu.Unlock()
		m.onReject("unknown_user")
		return ErrUnknownUser
	}
	if !m.changeable(m.users[idx]) {
		m.mu.Unlock()
		m.onReject("protected")
		return ErrProtectedAccount
	}
	m.pending = userID
	m.setErr(nil)
	m.mu.Unlock()

	if err := m.svc.SetUserRole(ctx, userID, role); err != nil {
		m.mu.Lock()
		m.pending = ""
		m.setErr(err)
		m.mu.Unlock()
		return err
	}

	// The pending flag stays set through the re-fetch so no second change
	// can race it. A failed re-fetch shows up as StateLoadError.
	_ = m.load(ctx, true)

	m.mu.Lock()
	m.pending = ""
	m.mu.Unlock()
	return nil
}

// Snapshot returns the current view.
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{State: m.state, PendingUserID: m.pending, Err: m.errMsg, Cause: m.lastErr, Rows: []Row{}}
	if m.state != StateLoaded {
		return s
	}
	for _, u := range m.users {
		s.Rows = append(s.Rows, Row{
			UserRecord:    u,
			CanChangeRole: m.changeable(u),
			Pending:       u.UserID == m.pending,
		})
	}
	return s
}

// Users returns a copy of the last roster fetched successfully.
func (m *Model) Users() []models.UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.users)
}

// setErr must be called with mu held.
func (m *Model) setErr(err error) {
	m.lastErr = err
	m.errMsg = admin.Message(err)
}

func (m *Model) changeable(u models.UserRecord) bool {
	return m.superAdmin == "" || !strings.EqualFold(u.Email, m.superAdmin)
}
