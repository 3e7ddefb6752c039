package couchbase

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

const defaultTransactionTimeout = 10 * time.Second

// Tx is one attempt of a transaction. Stores operate on it through their Tx methods.
type Tx struct {
	attempt *gocb.TransactionAttemptContext
}

// Transactions runs functions inside Couchbase distributed transactions.
type Transactions struct {
	cluster *gocb.Cluster
	timeout time.Duration
}

// NewTransactions creates a transaction runner for the cluster. A zero timeout
// falls back to 10s.
func NewTransactions(cluster *gocb.Cluster, timeout time.Duration) (*Transactions, error) {
	if cluster == nil {
		return nil, errors.New("couchbase cluster cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultTransactionTimeout
	}

	return &Transactions{cluster: cluster, timeout: timeout}, nil
}

// Run executes fn in a transaction and commits it when fn returns nil. The SDK may
// call fn more than once, so fn must not have side effects outside tx.
func (t *Transactions) Run(fn func(tx *Tx) error) error {
	_, err := t.cluster.Transactions().Run(func(attempt *gocb.TransactionAttemptContext) error {
		return fn(&Tx{attempt: attempt})
	}, &gocb.TransactionOptions{
		DurabilityLevel: gocb.DurabilityLevelNone,
		Timeout:         t.timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to run transaction: %w", err)
	}

	return nil
}
