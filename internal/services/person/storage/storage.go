// Package storage defines persistence contracts for person records.
package storage

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrInvalidBatch indicates a save batch was rejected and nothing was written.
	ErrInvalidBatch = errors.New("invalid person batch")
	// ErrUnavailable indicates the store is temporarily unable to serve, for
	// example while another writer holds the database lock.
	ErrUnavailable = errors.New("person store unavailable")
)

// MaxID is the largest person id. Ids are 32-bit on the GraphQL surface, so
// larger ids are never stored.
const MaxID = math.MaxInt32

// Person is one stored person record. ID zero means "not yet assigned".
type Person struct {
	ID    int64
	Name  string
	Email string
}

// PersonStore persists person records.
//
// Email is a lookup key only; several records may share one.
type PersonStore interface {
	// ListPersons returns every stored person in ascending id order.
	ListPersons(ctx context.Context) ([]Person, error)
	// SavePersons inserts or updates the batch atomically and returns the
	// saved records with their assigned ids, in input order.
	SavePersons(ctx context.Context, persons []Person) ([]Person, error)
	// FindPersonByEmail returns the lowest-id person whose email matches
	// exactly. ok is false when none matches.
	FindPersonByEmail(ctx context.Context, email string) (person Person, ok bool, err error)
}
