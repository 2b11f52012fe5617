// Package journal records reversible edits as named transactions of do/undo
// step pairs and keeps an undo/redo history of committed transactions.
package journal

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrTransactionOpen = errors.New("a transaction is already open")
	ErrNotOpen         = errors.New("transaction is not open")
	ErrEmptyName       = errors.New("transaction name is required")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToRedo   = errors.New("nothing to redo")
)

// Step is a single forward or inverse operation.
type Step func()

type pair struct {
	label string
	do    Step
	undo  Step
}

// Entry is a committed transaction.
type Entry struct {
	Name  string
	Steps []string
	Seq   uint64

	pairs []pair
}

// History is an undo/redo stack of committed transactions. Only one
// transaction may be open at a time.
type History struct {
	mu       sync.Mutex
	undo     []*Entry
	redo     []*Entry
	open     *Tx
	limit    int
	seq      uint64
	onCommit func(*Entry)
}

// New creates a history bounded to limit entries; limit <= 0 means unbounded.
func New(limit int) *History {
	return &History{limit: limit}
}

// OnCommit registers a callback run after every successful commit.
func (h *History) OnCommit(fn func(*Entry)) {
	h.mu.Lock()
	h.onCommit = fn
	h.mu.Unlock()
}

// Tx is an open transaction collecting step pairs.
type Tx struct {
	h     *History
	name  string
	pairs []pair
	done  bool
}

// Begin opens a named transaction.
func (h *History) Begin(name string) (*Tx, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.open != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionOpen, h.open.name)
	}
	tx := &Tx{h: h, name: name}
	h.open = tx
	return tx, nil
}

// Name returns the transaction name.
func (tx *Tx) Name() string { return tx.name }

// Len returns the number of queued step pairs.
func (tx *Tx) Len() int { return len(tx.pairs) }

// Step queues a do/undo pair. Nothing runs until Commit.
func (tx *Tx) Step(label string, do, undo Step) {
	if tx.done {
		panic("journal: step queued on a finished transaction")
	}
	tx.pairs = append(tx.pairs, pair{label: label, do: do, undo: undo})
}

// Commit runs every do step in order and pushes the entry onto the undo
// stack, clearing redo history.
func (tx *Tx) Commit() (*Entry, error) {
	h := tx.h
	h.mu.Lock()
	if tx.done || h.open != tx {
		h.mu.Unlock()
		return nil, ErrNotOpen
	}
	tx.done = true
	h.open = nil
	h.seq++
	e := &Entry{Name: tx.name, Seq: h.seq, pairs: tx.pairs}
	for _, p := range tx.pairs {
		e.Steps = append(e.Steps, p.label)
	}
	h.undo = append(h.undo, e)
	if h.limit > 0 && len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
	cb := h.onCommit
	h.mu.Unlock()

	for _, p := range e.pairs {
		if p.do != nil {
			p.do()
		}
	}
	if cb != nil {
		cb(e)
	}
	return e, nil
}

// Discard abandons the transaction without running anything.
func (tx *Tx) Discard() {
	h := tx.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if !tx.done && h.open == tx {
		h.open = nil
	}
	tx.done = true
}

// Undo reverts the most recent entry by running its undo steps in reverse.
func (h *History) Undo() (*Entry, error) {
	h.mu.Lock()
	if h.open != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTransactionOpen, h.open.name)
	}
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return nil, ErrNothingToUndo
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
	h.mu.Unlock()

	for i := len(e.pairs) - 1; i >= 0; i-- {
		if u := e.pairs[i].undo; u != nil {
			u()
		}
	}
	return e, nil
}

// Redo reapplies the most recently undone entry.
func (h *History) Redo() (*Entry, error) {
	h.mu.Lock()
	if h.open != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTransactionOpen, h.open.name)
	}
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return nil, ErrNothingToRedo
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	h.mu.Unlock()

	for _, p := range e.pairs {
		if p.do != nil {
			p.do()
		}
	}
	return e, nil
}

// Open reports whether a transaction is currently open.
func (h *History) Open() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open != nil
}

// Len returns the undo and redo stack depths.
func (h *History) Len() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

// Entries returns the names of committed entries, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.undo))
	for i, e := range h.undo {
		out[i] = e.Name
	}
	return out
}

// Clear drops all history. An open transaction is discarded.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.open != nil {
		h.open.done = true
		h.open = nil
	}
	h.undo = nil
	h.redo = nil
}
