package invite

import (
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
)

// Registry keeps one Form per operator so that a submission in flight locks
// that operator's form across requests.
type Registry struct {
	svc    admin.Service
	onDone func(auth.Principal)
	opts   []Option

	mu    sync.Mutex
	forms *expirable.LRU[string, *Form]
}

// NewRegistry creates a registry holding at most size forms. onDone, if
// set, runs for the operator once a successful invite's message has been shown.
func NewRegistry(svc admin.Service, size int, ttl time.Duration, onDone func(auth.Principal), opts ...Option) *Registry {
	return &Registry{
		svc:    svc,
		onDone: onDone,
		opts:   opts,
		forms:  expirable.NewLRU[string, *Form](size, nil, ttl),
	}
}

// For returns the operator's form, creating it on first use.
func (r *Registry) For(p auth.Principal) *Form {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.forms.Get(p.ID); ok {
		return f
	}
	opts := slices.Clone(r.opts)
	if r.onDone != nil {
		opts = append(opts, WithOnDone(func() { r.onDone(p) }))
	}
	f := New(r.svc, opts...)
	r.forms.Add(p.ID, f)
	return f
}
