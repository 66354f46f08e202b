// Package store holds the in-memory entity registry and relationship store.
//
// Neither type locks internally: the graph engine owns one of each and
// serializes access. Every mutating method takes a *Tx so an observation that
// fails part way can be undone.
package store

import (
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// ErrNotFound is returned by Get and Delete when the requested record does not exist.
var ErrNotFound = models.ErrNotFound

// Tx is an undo journal. Mutations record their inverse; Rollback replays
// them newest first. A nil *Tx records nothing.
type Tx struct {
	undo []func()
}

// NewTx starts an empty journal.
func NewTx() *Tx {
	return &Tx{}
}

func (tx *Tx) record(fn func()) {
	if tx == nil {
		return
	}
	tx.undo = append(tx.undo, fn)
}

// Len returns the number of journaled mutations.
func (tx *Tx) Len() int {
	if tx == nil {
		return 0
	}
	return len(tx.undo)
}

// Rollback undoes every journaled mutation and empties the journal.
func (tx *Tx) Rollback() {
	if tx == nil {
		return
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// Commit discards the journal.
func (tx *Tx) Commit() {
	if tx == nil {
		return
	}
	tx.undo = nil
}

// idSet is a set of record IDs used by the secondary indices.
type idSet map[string]struct{}

func addTo[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		set = make(idSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFrom[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}
