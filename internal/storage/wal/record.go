package wal

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Op discriminates log records.
type Op string

const (
	OpSet     Op = "SET"
	OpDel     Op = "DEL"
	OpExpire  Op = "EXPIRE"
	OpPersist Op = "PERSIST"
)

// Record is one self-describing logged operation. Append order is commit
// order; replaying records in file order reproduces the index state.
type Record struct {
	Op       Op     `json:"op"`
	Key      string `json:"key"`
	Value    string `json:"value,omitempty"`
	ExpireAt int64  `json:"expire_at,omitempty"` // unix ms, EXPIRE only
}

func SetRecord(key, value string) Record {
	return Record{Op: OpSet, Key: key, Value: value}
}

func DelRecord(key string) Record {
	return Record{Op: OpDel, Key: key}
}

func ExpireRecord(key string, expireAt int64) Record {
	return Record{Op: OpExpire, Key: key, ExpireAt: expireAt}
}

func PersistRecord(key string) Record {
	return Record{Op: OpPersist, Key: key}
}

func (r Record) encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encode wal record")
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, errors.Wrap(err, "decode wal record")
	}
	return r, nil
}
