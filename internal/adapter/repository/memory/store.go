// Package memory keeps the ledger in process memory with the same contracts
// as the Postgres repositories. Writes are staged on a Tx and applied
// atomically on Commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// Store holds every record. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	entities map[string]*domain.Entity
	codes    map[string]string // code -> entity ID

	transactions map[string]*domain.Transaction
	byEntity     map[string][]string // entity ID -> transaction IDs in append order
	activeRefs   map[string]string   // RefNo -> transaction ID, non-cancelled only
	corrections  map[string]string   // original ID -> compensation ID

	outbox      []*domain.OutboxEvent
	outboxIndex map[string]*domain.OutboxEvent
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entities:     make(map[string]*domain.Entity),
		codes:        make(map[string]string),
		transactions: make(map[string]*domain.Transaction),
		byEntity:     make(map[string][]string),
		activeRefs:   make(map[string]string),
		corrections:  make(map[string]string),
		outboxIndex:  make(map[string]*domain.OutboxEvent),
	}
}

// op mutates the store under its write lock and returns how to undo itself.
type op func(s *Store) (undo func(), err error)

// TxManager implements usecase.TxManager over a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

var errTxDone = errors.New("transaction already committed or rolled back")

// Tx collects staged writes.
type Tx struct {
	store *Store
	ops   []op
	done  bool
}

func (t *Tx) stage(o op) error {
	if t.done {
		return errTxDone
	}
	t.ops = append(t.ops, o)
	return nil
}

// Commit applies every staged write, or none of them.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true

	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	undos := make([]func(), 0, len(t.ops))
	for _, o := range t.ops {
		undo, err := o(s)
		if err != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return err
		}
		undos = append(undos, undo)
	}

	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}

func asTx(tx usecase.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt == nil {
		return nil, errors.New("memory: foreign or nil transaction")
	}
	return mt, nil
}

func cloneEntity(e *domain.Entity) *domain.Entity {
	c := *e
	if e.Code != nil {
		code := *e.Code
		c.Code = &code
	}
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.CorrectionOf != nil {
		id := *t.CorrectionOf
		c.CorrectionOf = &id
	}
	if t.FinalizedAt != nil {
		at := *t.FinalizedAt
		c.FinalizedAt = &at
	}
	return &c
}
