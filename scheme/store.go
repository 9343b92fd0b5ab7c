/*
PURPOSE:
  Storage abstraction for the savings engine. Defines what persistence
  must provide without committing to a backend; implementations live in
  scheme/store (in-memory) and store/sqlite.

KEY CONCEPTS:
  - Store: CRUD over schemes, enrollments, transactions, redemptions
  - TxStore: adds per-enrollment transactional execution so read-check-
    append sequences are atomic under concurrent writers
  - Error contract: implementations return the package sentinels
    (ErrSchemeNotFound, ErrDuplicateAccountNumber, ...) and wrap backend
    failures in ErrStoreUnavailable

IMPLEMENTATION NOTES:
  WithEnrollmentTx serializes all mutations touching one enrollment. Two
  concurrent payments to the same enrollment must observe each other;
  payments to different enrollments may proceed in parallel.
*/
package scheme

import (
	"context"
	"time"
)

// TransactionFilter narrows ListTransactions. Zero-valued fields match all.
type TransactionFilter struct {
	Type TransactionType
	From time.Time
	To   time.Time
}

// Store provides persistence for the engine's records.
type Store interface {
	// Schemes
	CreateScheme(ctx context.Context, s *Scheme) error
	GetScheme(ctx context.Context, id SchemeID) (*Scheme, error)
	UpdateScheme(ctx context.Context, s *Scheme) error
	ListSchemes(ctx context.Context, shopID ShopID) ([]*Scheme, error)

	// Enrollments
	CreateEnrollment(ctx context.Context, e *Enrollment) error
	GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error)
	UpdateEnrollment(ctx context.Context, e *Enrollment) error
	ListEnrollments(ctx context.Context, shopID ShopID, status EnrollmentStatus) ([]*Enrollment, error)

	// Transactions (append-only)
	AppendTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, id EnrollmentID, f TransactionFilter) ([]*Transaction, error)
	FindTransactionByKey(ctx context.Context, id EnrollmentID, key string) (*Transaction, error)

	// Redemptions. GetRedemption returns (nil, nil) when none exists;
	// FindTransactionByKey likewise for an unseen key.
	CreateRedemption(ctx context.Context, r *Redemption) error
	GetRedemption(ctx context.Context, id EnrollmentID) (*Redemption, error)
}

// TxStore is a Store whose mutations can run atomically per enrollment.
type TxStore interface {
	Store

	// WithEnrollmentTx runs fn with a Store view that is exclusive for the
	// given enrollment. Writes made by fn become visible atomically; an
	// error from fn rolls them back.
	WithEnrollmentTx(ctx context.Context, id EnrollmentID, fn func(Store) error) error
}
