package txn

import (
	"errors"

	"github.com/myuser/lexkv/internal/storage"
	"github.com/myuser/lexkv/internal/storage/wal"
)

var (
	ErrTxnOpen = errors.New("transaction already in progress")
	ErrNoTxn   = errors.New("no transaction in progress")
)

type State int

const (
	StateIdle State = 0
	StateOpen State = 1
)

// Coordinator drives the single-session transaction lifecycle: BEGIN
// clones the main index and opens an empty record buffer, writes issued
// while open land on the clone and the buffer, COMMIT hands the buffer
// back for logging and main-index application, ABORT discards both.
// At most one transaction exists at a time; there is no nesting.
type Coordinator struct {
	state    State
	snapshot *storage.Index
	buffer   []wal.Record
}

func NewCoordinator() *Coordinator {
	return &Coordinator{state: StateIdle}
}

func (c *Coordinator) Open() bool {
	return c.state == StateOpen
}

// Begin snapshots main. Fails with no state change if already open.
func (c *Coordinator) Begin(main *storage.Index) error {
	if c.state == StateOpen {
		return ErrTxnOpen
	}
	c.snapshot = main.Clone()
	c.buffer = c.buffer[:0]
	c.state = StateOpen
	return nil
}

// Current resolves the active index: the private snapshot while open,
// else main. Reads against the snapshot give read-your-own-writes.
func (c *Coordinator) Current(main *storage.Index) *storage.Index {
	if c.state == StateOpen {
		return c.snapshot
	}
	return main
}

// Buffer queues one record for commit. Caller must have applied the same
// operation to the snapshot already.
func (c *Coordinator) Buffer(rec wal.Record) {
	c.buffer = append(c.buffer, rec)
}

// Commit closes the transaction and returns the buffered records in the
// order they were issued. The caller appends them to the log and applies
// them to the main index.
func (c *Coordinator) Commit() ([]wal.Record, error) {
	if c.state != StateOpen {
		return nil, ErrNoTxn
	}
	recs := c.buffer
	c.buffer = nil
	c.snapshot = nil
	c.state = StateIdle
	return recs, nil
}

// Abort discards the snapshot and buffer. The main index is untouched.
func (c *Coordinator) Abort() error {
	if c.state != StateOpen {
		return ErrNoTxn
	}
	c.buffer = nil
	c.snapshot = nil
	c.state = StateIdle
	return nil
}
