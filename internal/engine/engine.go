// Package engine composes the sorted index, the write log, and the
// transaction coordinator into the operation set the command layer calls.
package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/myuser/lexkv/internal/metrics"
	"github.com/myuser/lexkv/internal/storage"
	"github.com/myuser/lexkv/internal/storage/wal"
	"github.com/myuser/lexkv/internal/txn"
)

// ErrWrongArgCount reports a malformed MSET argument list.
var ErrWrongArgCount = errors.New("wrong number of arguments")

// Lookup is one MGET result slot.
type Lookup struct {
	Value string
	Found bool
}

// Engine owns the live index, the write log, and the transaction state.
// Every operation runs under one mutex: the transaction model assumes a
// single in-flight transaction and no reader of a half-applied commit.
// Multiple engines can coexist as long as they use different log files.
type Engine struct {
	mu  sync.Mutex
	idx *storage.Index
	log *wal.WAL
	txn *txn.Coordinator

	nowMs  func() int64 // clock hook, overridden in tests
	logger *zap.Logger
}

// Open creates the engine and replays the write log into a fresh index.
// The log directory is created if missing.
func Open(walPath string, degree int, logger *zap.Logger) (*Engine, error) {
	return open(walPath, degree, logger, func() int64 { return time.Now().UnixMilli() })
}

// open exists so tests can replay under a deterministic clock.
func open(walPath string, degree int, logger *zap.Logger, nowMs func() int64) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(walPath), 0755); err != nil {
		return nil, pkgerrors.Wrap(err, "create data dir")
	}
	w, err := wal.Open(walPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		idx:    storage.NewIndex(degree),
		log:    w,
		txn:    txn.NewCoordinator(),
		nowMs:  nowMs,
		logger: logger,
	}

	replayed := 0
	skipped, err := w.Iterate(func(rec wal.Record) error {
		e.applyRecord(e.idx, rec)
		replayed++
		return nil
	})
	if err != nil {
		w.Close()
		return nil, pkgerrors.Wrap(err, "replay write log")
	}
	metrics.ReplayedRecords.Add(float64(replayed))
	metrics.SkippedRecords.Add(float64(skipped))
	metrics.IndexSlots.Set(float64(e.idx.Len()))
	logger.Info("write log replayed",
		zap.String("path", walPath),
		zap.Int("records", replayed),
		zap.Int("skipped", skipped))
	return e, nil
}

// applyRecord applies one log record to ix. Replay and commit both
// funnel through here, and the application is purely structural — it
// never consults the clock. A record must land the same way no matter
// how much later it is replayed: SET upserts and clears any TTL (the
// live SET semantic), DEL tombstones, EXPIRE stores the absolute
// deadline as logged (a past one is hidden by lazy expiration on first
// access, never deleted here), PERSIST clears the deadline.
func (e *Engine) applyRecord(ix *storage.Index, rec wal.Record) {
	switch rec.Op {
	case wal.OpSet:
		ix.Set(rec.Key, rec.Value, false)
	case wal.OpDel:
		ix.ApplyDelete(rec.Key)
	case wal.OpExpire:
		ix.ApplyExpireAt(rec.Key, rec.ExpireAt)
	case wal.OpPersist:
		ix.ApplyPersist(rec.Key)
	default:
		e.logger.Warn("unknown log record op", zap.String("op", string(rec.Op)))
	}
}

// current resolves reads and writes to the transaction snapshot while one
// is open, else to the main index.
func (e *Engine) current() *storage.Index {
	return e.txn.Current(e.idx)
}

// finish routes a record that already mutated the current index: buffered
// while a transaction is open, appended durably otherwise.
func (e *Engine) finish(rec wal.Record) error {
	if e.txn.Open() {
		e.txn.Buffer(rec)
		return nil
	}
	return e.append(rec)
}

// append persists one record. The in-memory state already reflects the
// operation; a storage failure is surfaced to the caller but never takes
// the process down.
func (e *Engine) append(rec wal.Record) error {
	metrics.IndexSlots.Set(float64(e.idx.Len()))
	if err := e.log.Append(rec); err != nil {
		metrics.WALAppendErrors.Inc()
		e.logger.Warn("write log append failed, operation is not durable",
			zap.String("op", string(rec.Op)),
			zap.String("key", rec.Key),
			zap.Error(err))
		return err
	}
	return nil
}

func (e *Engine) Set(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("set").Inc()
	return e.setLocked(key, value)
}

// setLocked upserts and clears any TTL. Clearing is load-bearing: reads
// trigger lazy expiration but are never logged, so a SET that preserved
// a due deadline would make the final state depend on whether some GET
// happened to tombstone the entry first — and unreplayable from the log.
func (e *Engine) setLocked(key, value string) error {
	e.current().Set(key, value, false)
	return e.finish(wal.SetRecord(key, value))
}

func (e *Engine) Get(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("get").Inc()
	return e.current().Get(key, e.nowMs())
}

func (e *Engine) Del(key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("del").Inc()
	if !e.current().Delete(key, e.nowMs()) {
		return 0, nil
	}
	return 1, e.finish(wal.DelRecord(key))
}

func (e *Engine) Exists(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("exists").Inc()
	return e.current().Exists(key, e.nowMs())
}

// MSet sets each pair in order. Validation happens before any mutation,
// but the pairs are logged independently: a crash mid-sequence keeps the
// prefix that was already durable.
func (e *Engine) MSet(pairs ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("mset").Inc()
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return ErrWrongArgCount
	}
	var firstErr error
	for i := 0; i < len(pairs); i += 2 {
		if err := e.setLocked(pairs[i], pairs[i+1]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) MGet(keys ...string) []Lookup {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("mget").Inc()
	out := make([]Lookup, len(keys))
	now := e.nowMs()
	cur := e.current()
	for i, key := range keys {
		v, ok := cur.Get(key, now)
		out[i] = Lookup{Value: v, Found: ok}
	}
	return out
}

// Expire sets a TTL in milliseconds. ttlMs <= 0 expires the key now.
// Returns 1 if the key was live, 0 otherwise.
func (e *Engine) Expire(key string, ttlMs int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("expire").Inc()
	now := e.nowMs()
	expireAt := now + ttlMs
	if e.current().ExpireAbsolute(key, expireAt, now) == 0 {
		return 0, nil
	}
	return 1, e.finish(wal.ExpireRecord(key, expireAt))
}

func (e *Engine) TTL(key string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("ttl").Inc()
	return e.current().TTL(key, e.nowMs())
}

func (e *Engine) Persist(key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("persist").Inc()
	if e.current().Persist(key, e.nowMs()) == 0 {
		return 0, nil
	}
	return 1, e.finish(wal.PersistRecord(key))
}

// Range returns the live keys in [start, end] ascending. An empty bound
// is open on that side.
func (e *Engine) Range(start, end string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("range").Inc()
	return e.current().RangeKeys(start, end, e.nowMs())
}

// Begin opens a transaction over a private snapshot of the main index.
func (e *Engine) Begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("begin").Inc()
	return e.txn.Begin(e.idx)
}

// Commit appends every buffered record to the write log and applies it to
// the main index, in buffer order. A storage failure is surfaced, but the
// remaining records still apply in memory: each operation is independent.
func (e *Engine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("commit").Inc()
	recs, err := e.txn.Commit()
	if err != nil {
		return err
	}
	metrics.TxnTotal.WithLabelValues("commit").Inc()
	var firstErr error
	for _, rec := range recs {
		if err := e.append(rec); err != nil && firstErr == nil {
			firstErr = err
		}
		e.applyRecord(e.idx, rec)
	}
	metrics.IndexSlots.Set(float64(e.idx.Len()))
	return firstErr
}

// Abort discards the open transaction. The main index is untouched.
func (e *Engine) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.OpsTotal.WithLabelValues("abort").Inc()
	if err := e.txn.Abort(); err != nil {
		return err
	}
	metrics.TxnTotal.WithLabelValues("abort").Inc()
	return nil
}

// InTxn reports whether a transaction is open.
func (e *Engine) InTxn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txn.Open()
}

// Close aborts any open transaction and closes the write log.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.txn.Open() {
		e.txn.Abort()
	}
	return e.log.Close()
}
