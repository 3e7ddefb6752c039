// Package couchbase wraps the parts of the Couchbase SDK the topic storage needs:
// typed access to one collection of a scope, and distributed transactions over it.
package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// Store reads and writes documents of type T in a single collection. Queries run
// at scope level, so statements may name the collection without a keyspace prefix.
type Store[T any] struct {
	scope      *gocb.Scope
	collection *gocb.Collection
}

// NewStore opens the named collection of scope.
func NewStore[T any](scope *gocb.Scope, collection string) (*Store[T], error) {
	if scope == nil || collection == "" {
		return nil, errors.New("couchbase store needs a scope and a collection name")
	}

	return &Store[T]{
		scope:      scope,
		collection: scope.Collection(collection),
	}, nil
}

// Name returns the collection name.
func (s *Store[T]) Name() string {
	return s.collection.Name()
}

// Insert creates a document that expires after expiry, or never when expiry is 0.
// The error wraps gocb.ErrDocumentExists when the key is taken.
func (s *Store[T]) Insert(ctx context.Context, key string, value T, expiry time.Duration) error {
	_, err := s.collection.Insert(key, value, &gocb.InsertOptions{
		Context: ctx,
		Expiry:  expiry,
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s into %s: %w", key, s.Name(), err)
	}

	return nil
}

// Get loads the document stored under key. The error wraps
// gocb.ErrDocumentNotFound for missing keys.
func (s *Store[T]) Get(ctx context.Context, key string) (T, error) {
	var v T

	res, err := s.collection.Get(key, &gocb.GetOptions{Context: ctx})
	if err != nil {
		return v, fmt.Errorf("failed to get %s from %s: %w", key, s.Name(), err)
	}
	if err := res.Content(&v); err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return v, nil
}

// Query runs a SQL++ statement with named parameters and decodes every row into T.
func (s *Store[T]) Query(ctx context.Context, statement string, params map[string]any) ([]T, error) {
	result, err := s.scope.Query(statement, &gocb.QueryOptions{
		Context:         ctx,
		NamedParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.Name(), err)
	}
	defer result.Close()

	var rows []T
	for result.Next() {
		var row T
		if err := result.Row(&row); err != nil {
			return nil, fmt.Errorf("failed to decode row from %s: %w", s.Name(), err)
		}
		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", s.Name(), err)
	}

	return rows, nil
}

// TxGet reads a document inside a transaction. The returned result is needed to
// replace the document later in the same transaction.
func (s *Store[T]) TxGet(tx *Tx, key string) (T, *gocb.TransactionGetResult, error) {
	var v T

	res, err := tx.attempt.Get(s.collection, key)
	if err != nil {
		return v, nil, err
	}
	if err := res.Content(&v); err != nil {
		return v, nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return v, res, nil
}

// TxInsert creates a document inside a transaction.
func (s *Store[T]) TxInsert(tx *Tx, key string, value T) error {
	_, err := tx.attempt.Insert(s.collection, key, value)
	return err
}

// TxReplace overwrites a document previously read with TxGet.
func (s *Store[T]) TxReplace(tx *Tx, doc *gocb.TransactionGetResult, value T) error {
	_, err := tx.attempt.Replace(doc, value)
	return err
}
