package jit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Bump when LogEntry changes shape.
const logSchemaVersion uint16 = 1

// ErrLogSchema is returned for logs written by an incompatible version.
var ErrLogSchema = errors.New("jit: translation log schema mismatch")

// LogCell is a chaining cell in the translation log.
type LogCell struct {
	Kind   string `msgpack:"kind"`
	Offset uint32 `msgpack:"offset"`
	Callee string `msgpack:"callee,omitempty"`
	Target uint64 `msgpack:"target,omitempty"`
}

// LogEntry records one installed translation.
type LogEntry struct {
	Key      string    `msgpack:"key"`
	Method   string    `msgpack:"method"`
	Mode     string    `msgpack:"mode"`
	Entry    uint64    `msgpack:"entry"`
	BaseAddr uint64    `msgpack:"base"`
	Size     uint32    `msgpack:"size"`
	Insts    int       `msgpack:"insts"`
	Ceilings []int     `msgpack:"ceilings"`
	Cells    []LogCell `msgpack:"cells"`
}

type logFile struct {
	Schema  uint16     `msgpack:"schema"`
	Written time.Time  `msgpack:"written"`
	Entries []LogEntry `msgpack:"entries"`
}

// NewLogEntry converts a successful result.
func NewLogEntry(r Result) LogEntry {
	t := r.Translation
	e := LogEntry{
		Key:      r.Key,
		Method:   r.Method,
		Mode:     r.Mode,
		Entry:    t.Entry(),
		BaseAddr: t.BaseAddr,
		Size:     t.Size,
		Insts:    r.Insts,
		Ceilings: r.Ceilings,
	}
	for _, c := range t.Cells {
		e.Cells = append(e.Cells, LogCell{Kind: c.Kind.String(), Offset: c.Offset, Callee: c.Callee, Target: c.Target})
	}
	return e
}

// WriteLog atomically replaces path with entries.
func WriteLog(path string, entries []LogEntry) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	enc := msgpack.NewEncoder(f)
	if err = enc.Encode(&logFile{Schema: logSchemaVersion, Written: time.Now().UTC(), Entries: entries}); err != nil {
		return fmt.Errorf("jit: encode translation log: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadLog loads a log written by WriteLog.
func ReadLog(path string) ([]LogEntry, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	var lf logFile
	if err := msgpack.NewDecoder(f).Decode(&lf); err != nil {
		return nil, time.Time{}, fmt.Errorf("jit: decode translation log %s: %w", path, err)
	}
	if lf.Schema != logSchemaVersion {
		return nil, time.Time{}, fmt.Errorf("%w: %s has version %d, want %d", ErrLogSchema, path, lf.Schema, logSchemaVersion)
	}
	return lf.Entries, lf.Written, nil
}
