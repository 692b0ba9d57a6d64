package service

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	perr "custodian/internal/platform/errors"
	"custodian/internal/services/quota/domain"
)

// memShards keeps lock contention per-tenant, never global
const memShards = 32

type memKey struct {
	tenant string
	kind   domain.ResourceKind
}

type memShard struct {
	mu      sync.Mutex
	periods map[memKey]*domain.Period
}

// Memory is an in-process ledger implementing the same port as the Postgres
// service. It backs unit tests and single-node deployments
type Memory struct {
	caps   Caps
	shards [memShards]*memShard
	now    func() time.Time
}

// NewMemory constructs an in-memory ledger
func NewMemory(caps Caps) *Memory {
	m := &Memory{caps: caps, now: time.Now}
	for i := range m.shards {
		m.shards[i] = &memShard{periods: make(map[memKey]*domain.Period)}
	}
	return m
}

func (m *Memory) shardFor(k memKey) *memShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.tenant))
	_, _ = h.Write([]byte(k.kind))
	return m.shards[h.Sum32()%memShards]
}

// TryConsume atomically checks and increments under the key's shard lock
func (m *Memory) TryConsume(ctx context.Context, tenantID string, kind domain.ResourceKind, amount int64) (domain.Decision, error) {
	if amount <= 0 {
		return domain.Decision{}, perr.InvalidArgf("amount must be positive")
	}
	cap, ok := m.caps[kind]
	if !ok {
		return domain.Decision{}, perr.InvalidArgf("no cap configured for kind %q", kind)
	}

	key := memKey{tenant: tenantID, kind: kind}
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p := m.currentLocked(sh, key, cap)
	if p.Mode == domain.CapHard && p.Used+amount > p.Cap {
		return domain.Decision{
			Admitted: false,
			Reason:   "hard cap reached",
			Used:     p.Used,
			Cap:      p.Cap,
		}, nil
	}
	p.Used += amount
	return domain.Decision{
		Admitted: true,
		Used:     p.Used,
		Cap:      p.Cap,
		Overage:  p.Overage(),
	}, nil
}

// Release decrements used with a zero floor
func (m *Memory) Release(ctx context.Context, tenantID string, kind domain.ResourceKind, amount int64) error {
	if amount <= 0 {
		return perr.InvalidArgf("amount must be positive")
	}
	cap, ok := m.caps[kind]
	if !ok {
		return perr.InvalidArgf("no cap configured for kind %q", kind)
	}
	key := memKey{tenant: tenantID, kind: kind}
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p := m.currentLocked(sh, key, cap)
	p.Used -= amount
	if p.Used < 0 {
		p.Used = 0
	}
	return nil
}

// Snapshot returns copies of the tenant's open periods in kind order
func (m *Memory) Snapshot(ctx context.Context, tenantID string) ([]domain.Period, error) {
	kinds := make([]string, 0, len(m.caps))
	for kind := range m.caps {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var out []domain.Period
	for _, k := range kinds {
		kind := domain.ResourceKind(k)
		key := memKey{tenant: tenantID, kind: kind}
		sh := m.shardFor(key)
		sh.mu.Lock()
		if p, ok := sh.periods[key]; ok {
			out = append(out, *p)
		}
		sh.mu.Unlock()
	}
	return out, nil
}

// currentLocked lazily creates the period for now, rolling over at the
// boundary. Caller holds the shard lock
func (m *Memory) currentLocked(sh *memShard, key memKey, cap domain.Cap) *domain.Period {
	now := m.now().UTC()
	p, ok := sh.periods[key]
	if ok && p.PeriodEnd.After(now) {
		return p
	}
	start, end := periodBounds(now)
	p = &domain.Period{
		TenantID:    key.tenant,
		Kind:        key.kind,
		PeriodStart: start,
		PeriodEnd:   end,
		Cap:         cap.Amount,
		Mode:        cap.Mode,
	}
	sh.periods[key] = p
	return p
}
