package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/pkg/errors"
)

// WAL is the append-only durable record stream. It is the sole source of
// truth across restarts: replaying every record in file order rebuilds
// the index. The file is never truncated or compacted.
type WAL struct {
	f    *os.File
	path string
}

// Open opens or creates the log file.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open wal %s", path)
	}
	return &WAL{f: f, path: path}, nil
}

// Append durably persists one record before returning.
// Frame format: Len(4) | Data(N) | CRC(4)
func (w *WAL) Append(rec Record) error {
	data, err := rec.encode()
	if err != nil {
		return err
	}

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	if _, err := w.f.Write(buf); err != nil {
		return errors.Wrap(err, "wal write length")
	}

	if _, err := w.f.Write(data); err != nil {
		return errors.Wrap(err, "wal write data")
	}

	crc := crc32.ChecksumIEEE(data)
	binary.BigEndian.PutUint32(buf, crc)
	if _, err := w.f.Write(buf); err != nil {
		return errors.Wrap(err, "wal write crc")
	}

	// Success must mean survives-a-crash, so force to stable storage now.
	if err := w.f.Sync(); err != nil {
		return errors.Wrap(err, "wal sync")
	}
	return nil
}

// Iterate replays all records in file order. A short or corrupt trailing
// frame ends the iteration without error: data before it is still served,
// and the skipped tail is reported in the returned count.
func (w *WAL) Iterate(handler func(rec Record) error) (skipped int, err error) {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "wal seek start")
	}
	// Position back at the end for appends, whatever replay finds.
	defer w.f.Seek(0, io.SeekEnd)

	lenBuf := make([]byte, 4)
	crcBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(w.f, lenBuf); err != nil {
			if err == io.EOF {
				return skipped, nil
			}
			if err == io.ErrUnexpectedEOF {
				return skipped + 1, nil // partial length at tail
			}
			return skipped, errors.Wrap(err, "wal read length")
		}
		length := binary.BigEndian.Uint32(lenBuf)

		data := make([]byte, length)
		if _, err := io.ReadFull(w.f, data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return skipped + 1, nil // partial data at tail
			}
			return skipped, errors.Wrap(err, "wal read data")
		}

		if _, err := io.ReadFull(w.f, crcBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return skipped + 1, nil // partial crc at tail
			}
			return skipped, errors.Wrap(err, "wal read crc")
		}
		if crc32.ChecksumIEEE(data) != binary.BigEndian.Uint32(crcBuf) {
			// Torn or corrupted frame. Frames are not self-synchronizing,
			// so nothing after this point can be trusted either.
			return skipped + 1, nil
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return skipped + 1, nil
		}
		if err := handler(rec); err != nil {
			return skipped, err
		}
	}
}

func (w *WAL) Path() string {
	return w.path
}

func (w *WAL) Close() error {
	return w.f.Close()
}
