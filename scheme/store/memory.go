// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/aurum/savings-engine/scheme"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a scheme.TxStore backed by maps. WithEnrollmentTx serializes
// writers per enrollment with a striped mutex; snapshots taken on entry
// provide rollback when fn fails.
type Memory struct {
	mu          sync.RWMutex
	schemes     map[scheme.SchemeID]scheme.Scheme
	enrollments map[scheme.EnrollmentID]scheme.Enrollment
	accounts    map[accountKey]scheme.EnrollmentID
	txs         map[scheme.EnrollmentID][]scheme.Transaction
	redemptions map[scheme.EnrollmentID]scheme.Redemption

	locksMu sync.Mutex
	locks   map[scheme.EnrollmentID]*sync.Mutex
}

type accountKey struct {
	ShopID        scheme.ShopID
	AccountNumber string
}

func NewMemory() *Memory {
	return &Memory{
		schemes:     make(map[scheme.SchemeID]scheme.Scheme),
		enrollments: make(map[scheme.EnrollmentID]scheme.Enrollment),
		accounts:    make(map[accountKey]scheme.EnrollmentID),
		txs:         make(map[scheme.EnrollmentID][]scheme.Transaction),
		redemptions: make(map[scheme.EnrollmentID]scheme.Redemption),
	}
}

// =============================================================================
// SCHEMES
// =============================================================================

func (m *Memory) CreateScheme(_ context.Context, s *scheme.Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[s.ID] = *s
	return nil
}

func (m *Memory) GetScheme(_ context.Context, id scheme.SchemeID) (*scheme.Scheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemes[id]
	if !ok {
		return nil, scheme.ErrSchemeNotFound
	}
	cp := s
	return &cp, nil
}

func (m *Memory) UpdateScheme(_ context.Context, s *scheme.Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemes[s.ID]; !ok {
		return scheme.ErrSchemeNotFound
	}
	m.schemes[s.ID] = *s
	return nil
}

func (m *Memory) ListSchemes(_ context.Context, shopID scheme.ShopID) ([]*scheme.Scheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*scheme.Scheme
	for _, s := range m.schemes {
		if shopID != "" && s.ShopID != shopID {
			continue
		}
		cp := s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func (m *Memory) CreateEnrollment(_ context.Context, e *scheme.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ak := accountKey{ShopID: e.ShopID, AccountNumber: e.AccountNumber}
	if _, taken := m.accounts[ak]; taken {
		return scheme.ErrDuplicateAccountNumber
	}
	m.enrollments[e.ID] = *e
	m.accounts[ak] = e.ID
	return nil
}

func (m *Memory) GetEnrollment(_ context.Context, id scheme.EnrollmentID) (*scheme.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, scheme.ErrEnrollmentNotFound
	}
	cp := e
	return &cp, nil
}

func (m *Memory) UpdateEnrollment(_ context.Context, e *scheme.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[e.ID]; !ok {
		return scheme.ErrEnrollmentNotFound
	}
	m.enrollments[e.ID] = *e
	return nil
}

func (m *Memory) ListEnrollments(_ context.Context, shopID scheme.ShopID, status scheme.EnrollmentStatus) ([]*scheme.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*scheme.Enrollment
	for _, e := range m.enrollments {
		if shopID != "" && e.ShopID != shopID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, t *scheme.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.IdempotencyKey != "" {
		for _, prior := range m.txs[t.EnrollmentID] {
			if prior.IdempotencyKey == t.IdempotencyKey {
				return scheme.ErrDuplicateIdempotencyKey
			}
		}
	}
	m.txs[t.EnrollmentID] = append(m.txs[t.EnrollmentID], *t)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, id scheme.EnrollmentID, f scheme.TransactionFilter) ([]*scheme.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*scheme.Transaction
	for _, t := range m.txs[id] {
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if !f.From.IsZero() && t.PaymentDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.PaymentDate.After(f.To) {
			continue
		}
		cp := t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

func (m *Memory) FindTransactionByKey(_ context.Context, id scheme.EnrollmentID, key string) (*scheme.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.txs[id] {
		if t.IdempotencyKey == key {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (m *Memory) CreateRedemption(_ context.Context, r *scheme.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.redemptions[r.EnrollmentID]; exists {
		return scheme.ErrAlreadyRedeemed
	}
	m.redemptions[r.EnrollmentID] = *r
	return nil
}

func (m *Memory) GetRedemption(_ context.Context, id scheme.EnrollmentID) (*scheme.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.redemptions[id]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

// =============================================================================
// TRANSACTIONS (store-level)
// =============================================================================

// WithEnrollmentTx serializes fn against other transactions on the same
// enrollment and rolls back that enrollment's records when fn fails.
func (m *Memory) WithEnrollmentTx(_ context.Context, id scheme.EnrollmentID, fn func(scheme.Store) error) error {
	lock := m.enrollmentLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	snapEnr, hadEnr := m.enrollments[id]
	snapTxs := make([]scheme.Transaction, len(m.txs[id]))
	copy(snapTxs, m.txs[id])
	snapRed, hadRed := m.redemptions[id]
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		if hadEnr {
			m.enrollments[id] = snapEnr
		} else {
			delete(m.enrollments, id)
		}
		m.txs[id] = snapTxs
		if hadRed {
			m.redemptions[id] = snapRed
		} else {
			delete(m.redemptions, id)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) enrollmentLock(id scheme.EnrollmentID) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	if m.locks == nil {
		m.locks = make(map[scheme.EnrollmentID]*sync.Mutex)
	}
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}
