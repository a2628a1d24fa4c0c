package roster

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
)

// Registry keeps one Model per operator. Idle operators expire after ttl and
// get a fresh, unmounted model on their next visit.
type Registry struct {
	svc        admin.Service
	superAdmin string
	opts       []Option

	mu     sync.Mutex
	models *expirable.LRU[string, *Model]
}

// NewRegistry creates a registry holding at most size models.
func NewRegistry(svc admin.Service, superAdminEmail string, size int, ttl time.Duration, opts ...Option) *Registry {
	return &Registry{
		svc:        svc,
		superAdmin: superAdminEmail,
		opts:       opts,
		models:     expirable.NewLRU[string, *Model](size, nil, ttl),
	}
}

// For returns the operator's model, creating it on first use.
func (r *Registry) For(p auth.Principal) *Model {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models.Get(p.ID); ok {
		return m
	}
	m := New(r.svc, r.superAdmin, r.opts...)
	r.models.Add(p.ID, m)
	return m
}

// Refresh re-fetches the operator's roster if a mounted model is held for
// them. Unknown and idle operators are left alone.
func (r *Registry) Refresh(ctx context.Context, p auth.Principal) error {
	m, ok := r.models.Get(p.ID)
	if !ok {
		return nil
	}
	return m.Refresh(ctx)
}

// Len reports how many operator models are held.
func (r *Registry) Len() int {
	return r.models.Len()
}
