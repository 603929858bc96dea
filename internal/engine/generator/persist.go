package generator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Persister writes a diagnostic record of every fragment the generator
// compiles to a single file, grounded in
// internal/compilationcache/file_cache.go's fileCache (create-file,
// write-bytes, best-effort directory creation), with one difference
// that file_cache.go's own comment invites: a different payload, here
// a flat log of (offset, length) records rather than a serialized
// compilation artifact keyed for later lookup. It is diagnostic only —
// nothing in this module ever reads the file back; a Reset empties it
// through Truncate, and each later compile appends one record.
type Persister struct {
	path  string
	mu    sync.Mutex
	dirOk bool
}

// NewPersister returns a Persister that writes to path, conventionally
// named l2.bc per spec.md §6.
func NewPersister(path string) *Persister {
	return &Persister{path: path}
}

// Record appends one (offset, length) entry. It never truncates: content
// from before the last Reset is cleared only by calling Truncate once
// per Reset, as wam.Machine does.
func (p *Persister) Record(offset, length uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireDirLocked(); err != nil {
		return err
	}

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("generator: opening %s: %w", p.path, err)
	}
	defer f.Close()

	var rec [8]byte
	binary.LittleEndian.PutUint32(rec[0:4], offset)
	binary.LittleEndian.PutUint32(rec[4:8], length)
	if _, err := f.Write(rec[:]); err != nil {
		return fmt.Errorf("generator: writing %s: %w", p.path, err)
	}
	return nil
}

// Truncate empties the persisted file, called once per machine Reset
// so that l2.bc never describes fragments from a discarded generation.
func (p *Persister) Truncate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireDirLocked(); err != nil {
		return err
	}
	f, err := os.Create(p.path)
	if err != nil {
		return fmt.Errorf("generator: truncating %s: %w", p.path, err)
	}
	return f.Close()
}

func (p *Persister) requireDirLocked() error {
	if p.dirOk {
		return nil
	}
	dir := filepath.Dir(p.path)
	if s, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("generator: creating dir %s: %w", dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("generator: statting dir %s: %w", dir, err)
	} else if !s.IsDir() {
		return fmt.Errorf("generator: expected dir at %s", dir)
	}
	p.dirOk = true
	return nil
}
