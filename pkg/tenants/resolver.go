package tenants

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 30 * time.Second
)

// Resolver locates the financially responsible tenant for any tenant and
// aggregates seat counts across a responsible tenant and its branches.
//
// Lookups go through a small expirable cache; billing reads are frequent
// (every gated request evaluates status) and tenant rows change rarely.
type Resolver struct {
	service Service
	cache   *expirable.LRU[int64, *Tenant]
}

// NewResolver creates a Resolver backed by the given tenant service
func NewResolver(service Service) *Resolver {
	return &Resolver{
		service: service,
		cache:   expirable.NewLRU[int64, *Tenant](defaultCacheSize, nil, defaultCacheTTL),
	}
}

// Invalidate drops a tenant from the cache. Called after mutations so that
// status reads observe them promptly.
func (r *Resolver) Invalidate(tenantID int64) {
	r.cache.Remove(tenantID)
}

func (r *Resolver) getTenant(id int64) (*Tenant, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached, nil
	}
	tenant, err := r.service.GetTenant(id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, tenant)
	return tenant, nil
}

// ResolveResponsible returns the tenant whose subscription covers the given
// tenant: the tenant itself when it is a root, its parent when it is a branch.
// If a branch's parent row is missing the branch itself is returned rather
// than failing the whole billing read.
func (r *Resolver) ResolveResponsible(ctx context.Context, tenantID int64) (*Tenant, error) {
	tenant, err := r.getTenant(tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.IsRoot() {
		return tenant, nil
	}

	parent, err := r.getTenant(*tenant.ParentID)
	if err != nil {
		if IsNotFound(err) {
			// Orphaned branch. Bill it standalone instead of erroring.
			return tenant, nil
		}
		return nil, fmt.Errorf("failed to resolve parent of tenant %d: %w", tenantID, err)
	}
	return parent, nil
}

// AggregateSeats counts billable seats for a responsible tenant: regular
// seats are summed across the root and all of its branches, while admin
// seats are counted once per distinct identity across the same set.
func (r *Resolver) AggregateSeats(ctx context.Context, responsible *Tenant) (SeatCounts, error) {
	tenantIDs := []int64{responsible.ID}
	if responsible.IsRoot() {
		branches, err := r.service.ListBranches(responsible.ID)
		if err != nil {
			return SeatCounts{}, fmt.Errorf("failed to list branches: %w", err)
		}
		for _, b := range branches {
			tenantIDs = append(tenantIDs, b.ID)
		}
	}

	var mu sync.Mutex
	regular := 0
	adminIdentities := make(map[string]struct{})

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range tenantIDs {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seats, err := r.service.ListSeats(id)
			if err != nil {
				return fmt.Errorf("failed to list seats for tenant %d: %w", id, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, seat := range seats {
				switch seat.Role {
				case SeatRoleAdmin:
					adminIdentities[seat.Identity] = struct{}{}
				default:
					regular++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SeatCounts{}, err
	}

	return SeatCounts{Regular: regular, Admin: len(adminIdentities)}, nil
}
