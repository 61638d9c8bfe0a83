package referral

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockReferralStore is a mock implementation of ReferralStore
type MockReferralStore struct {
	mock.Mock
}

func (m *MockReferralStore) GetDirectReferrals(ctx context.Context, referrerID string) ([]referral.Referral, error) {
	args := m.Called(ctx, referrerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]referral.Referral), args.Error(1)
}

func (m *MockReferralStore) AddReferral(ctx context.Context, edge *referral.Referral) (*referral.Referral, error) {
	args := m.Called(ctx, edge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*referral.Referral), args.Error(1)
}

func (m *MockReferralStore) FindByCustomerID(ctx context.Context, customerID string) (*referral.Referral, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*referral.Referral), args.Error(1)
}

func (m *MockReferralStore) FindRoots(ctx context.Context) ([]referral.Referral, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]referral.Referral), args.Error(1)
}

// MockCustomerDirectory is a mock implementation of referral.CustomerDirectory
type MockCustomerDirectory struct {
	mock.Mock
}

func (m *MockCustomerDirectory) NameOf(ctx context.Context, customerID string) (string, bool, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Bool(1), args.Error(2)
}

// forestStore is an in-memory ReferralStore over a fixed referrer -> children map
type forestStore struct {
	mu       sync.Mutex
	children map[string][]string
	roots    []string
	failOn   map[string]error
	delay    time.Duration
	reads    int
}

func newForestStore() *forestStore {
	return &forestStore{
		children: make(map[string][]string),
		failOn:   make(map[string]error),
	}
}

// link adds child under parent; an empty parent makes child a root
func (f *forestStore) link(parent string, children ...string) *forestStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range children {
		if parent == "" {
			f.roots = append(f.roots, c)
			continue
		}
		f.children[parent] = append(f.children[parent], c)
	}
	return f
}

func (f *forestStore) GetDirectReferrals(ctx context.Context, referrerID string) ([]referral.Referral, error) {
	f.mu.Lock()
	f.reads++
	err := f.failOn[referrerID]
	ids := append([]string(nil), f.children[referrerID]...)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]referral.Referral, len(ids))
	for i, id := range ids {
		out[i] = referral.Referral{CustomerID: id, ReferrerID: referrerID}
	}
	return out, nil
}

func (f *forestStore) AddReferral(_ context.Context, edge *referral.Referral) (*referral.Referral, error) {
	f.link(edge.ReferrerID, edge.CustomerID)
	return edge, nil
}

func (f *forestStore) FindByCustomerID(_ context.Context, customerID string) (*referral.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roots {
		if r == customerID {
			return &referral.Referral{CustomerID: r}, nil
		}
	}
	for parent, cs := range f.children {
		for _, c := range cs {
			if c == customerID {
				return &referral.Referral{CustomerID: c, ReferrerID: parent}, nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

func (f *forestStore) FindRoots(_ context.Context) ([]referral.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[""]; err != nil {
		return nil, err
	}
	out := make([]referral.Referral, len(f.roots))
	for i, r := range f.roots {
		out[i] = referral.Referral{CustomerID: r}
	}
	return out, nil
}

// bruteForceTop scans every known customer and ranks them
func (f *forestStore) bruteForceTop(k int) []referral.LeaderboardEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := make(map[string]int)
	for _, r := range f.roots {
		all[r] += 0
	}
	for parent, cs := range f.children {
		all[parent] += len(cs)
		for _, c := range cs {
			all[c] += 0
		}
	}

	entries := make([]referral.LeaderboardEntry, 0, len(all))
	for id, n := range all {
		entries = append(entries, referral.LeaderboardEntry{CustomerID: id, NumReferrals: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].NumReferrals != entries[j].NumReferrals {
			return entries[i].NumReferrals > entries[j].NumReferrals
		}
		return entries[i].CustomerID < entries[j].CustomerID
	})
	if len(entries) > k {
		entries = entries[:k]
	}
	return entries
}
