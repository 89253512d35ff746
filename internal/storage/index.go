package storage

import (
	"github.com/google/btree"
)

// TTL return codes for keys without a usable deadline.
const (
	TTLNone    = -1 // key exists, no TTL set
	TTLMissing = -2 // key absent or just expired
)

// DefaultDegree is the btree branching factor.
const DefaultDegree = 32

// entry is one logical key slot. A deleted key keeps its slot as a
// tombstone (exists=false) so the key order never shrinks or shifts.
type entry struct {
	key      string
	value    string
	exists   bool
	hasTTL   bool
	expireAt int64 // unix ms, valid only while hasTTL
}

func (e *entry) Less(than btree.Item) bool {
	return e.key < than.(*entry).key
}

// Index is the sorted in-memory key space. It is not safe for concurrent
// use; the owning engine serializes access. Each Index is exclusively
// owned — clones share nothing with their origin.
type Index struct {
	degree int
	tree   *btree.BTree
}

func NewIndex(degree int) *Index {
	if degree < 2 {
		degree = DefaultDegree
	}
	return &Index{degree: degree, tree: btree.New(degree)}
}

func (ix *Index) find(key string) *entry {
	it := ix.tree.Get(&entry{key: key})
	if it == nil {
		return nil
	}
	return it.(*entry)
}

// expireIfDue applies lazy expiration: a deadline at or before now flips
// the entry to a tombstone. Every accessor that can observe a TTL goes
// through here first.
func expireIfDue(e *entry, nowMs int64) {
	if e.exists && e.hasTTL && e.expireAt <= nowMs {
		e.exists = false
		e.hasTTL = false
		e.expireAt = 0
		e.value = ""
	}
}

// Set upserts key. When preserveTTL is false an existing deadline is
// cleared; replayed and committed log records preserve it.
func (ix *Index) Set(key, value string, preserveTTL bool) {
	if e := ix.find(key); e != nil {
		e.value = value
		e.exists = true
		if !preserveTTL {
			e.hasTTL = false
			e.expireAt = 0
		}
		return
	}
	ix.tree.ReplaceOrInsert(&entry{key: key, value: value, exists: true})
}

// Get returns the live value for key, expiring it first if due.
func (ix *Index) Get(key string, nowMs int64) (string, bool) {
	e := ix.find(key)
	if e == nil {
		return "", false
	}
	expireIfDue(e, nowMs)
	if !e.exists {
		return "", false
	}
	return e.value, true
}

func (ix *Index) Exists(key string, nowMs int64) bool {
	_, ok := ix.Get(key, nowMs)
	return ok
}

// Delete tombstones key. Returns false if the key was already absent,
// deleted, or expired. The slot stays in the key order.
func (ix *Index) Delete(key string, nowMs int64) bool {
	e := ix.find(key)
	if e == nil {
		return false
	}
	expireIfDue(e, nowMs)
	if !e.exists {
		return false
	}
	e.exists = false
	e.hasTTL = false
	e.expireAt = 0
	e.value = ""
	return true
}

// ExpireAbsolute sets an absolute deadline on a live key. A deadline at
// or before now expires the key immediately. Returns 1 if the key was
// live and updated, 0 otherwise.
func (ix *Index) ExpireAbsolute(key string, expireAt, nowMs int64) int {
	e := ix.find(key)
	if e == nil {
		return 0
	}
	expireIfDue(e, nowMs)
	if !e.exists {
		return 0
	}
	if expireAt <= nowMs {
		e.exists = false
		e.hasTTL = false
		e.expireAt = 0
		e.value = ""
		return 1
	}
	e.hasTTL = true
	e.expireAt = expireAt
	return 1
}

// TTL reports the remaining milliseconds before key expires, TTLNone for a
// live key without a deadline, TTLMissing for an absent or expired key.
func (ix *Index) TTL(key string, nowMs int64) int64 {
	e := ix.find(key)
	if e == nil {
		return TTLMissing
	}
	expireIfDue(e, nowMs)
	if !e.exists {
		return TTLMissing
	}
	if !e.hasTTL {
		return TTLNone
	}
	return e.expireAt - nowMs
}

// Persist clears a deadline. Returns 1 only when a TTL was actually
// present on a live key.
func (ix *Index) Persist(key string, nowMs int64) int {
	e := ix.find(key)
	if e == nil {
		return 0
	}
	expireIfDue(e, nowMs)
	if !e.exists || !e.hasTTL {
		return 0
	}
	e.hasTTL = false
	e.expireAt = 0
	return 1
}

// ApplyDelete tombstones key without consulting a clock. Record
// application (replay and commit) must be purely structural so that
// replaying a log at any later wall time reproduces the live state.
func (ix *Index) ApplyDelete(key string) {
	e := ix.find(key)
	if e == nil {
		return
	}
	e.exists = false
	e.hasTTL = false
	e.expireAt = 0
	e.value = ""
}

// ApplyExpireAt stores the logged deadline as-is, never deleting: a
// deadline already in the past is hidden by lazy expiration on first
// access, which is observably identical to the live immediate expiry.
func (ix *Index) ApplyExpireAt(key string, expireAt int64) {
	e := ix.find(key)
	if e == nil || !e.exists {
		return
	}
	e.hasTTL = true
	e.expireAt = expireAt
}

// ApplyPersist clears the deadline without first running expiration.
func (ix *Index) ApplyPersist(key string) {
	e := ix.find(key)
	if e == nil || !e.exists {
		return
	}
	e.hasTTL = false
	e.expireAt = 0
}

// RangeKeys returns the live keys in [start, end] ascending. An empty
// bound is open on that side. Entries touched by the scan are lazily
// expired, so expired keys never leak into the result.
func (ix *Index) RangeKeys(start, end string, nowMs int64) []string {
	keys := []string{}
	iter := func(it btree.Item) bool {
		e := it.(*entry)
		if end != "" && e.key > end {
			return false
		}
		expireIfDue(e, nowMs)
		if e.exists {
			keys = append(keys, e.key)
		}
		return true
	}
	if start == "" {
		ix.tree.Ascend(iter)
	} else {
		ix.tree.AscendGreaterOrEqual(&entry{key: start}, iter)
	}
	return keys
}

// Clone returns a fully independent copy. Transactions mutate a private
// clone, so entries are duplicated by value, never shared.
func (ix *Index) Clone() *Index {
	out := btree.New(ix.degree)
	ix.tree.Ascend(func(it btree.Item) bool {
		dup := *it.(*entry)
		out.ReplaceOrInsert(&dup)
		return true
	})
	return &Index{degree: ix.degree, tree: out}
}

// Len counts all slots, tombstones included.
func (ix *Index) Len() int {
	return ix.tree.Len()
}

// LiveLen counts keys that currently exist, ignoring deadlines that have
// passed but not yet been observed by an accessor.
func (ix *Index) LiveLen(nowMs int64) int {
	n := 0
	ix.tree.Ascend(func(it btree.Item) bool {
		e := it.(*entry)
		if e.exists && !(e.hasTTL && e.expireAt <= nowMs) {
			n++
		}
		return true
	})
	return n
}
