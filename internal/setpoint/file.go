package setpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/temoto/extremofile"
)

const (
	fileDirPerm  = 0750
	fileFilePerm = 0600
)

// efile is the subset of extremofile used here.
type efile interface {
	Read() ([]byte, error)
	Write(b []byte) (int, error)
}

// FileBackend stores each slot in its own extremofile directory under root.
// extremofile keeps a checksummed main and backup copy, so a torn write
// falls back to the previous record.
type FileBackend struct {
	root string

	mu    sync.Mutex
	files map[Slot]efile
	warn  func(msg string, args ...any)
}

// NewFileBackend creates a backend rooted at dir. No IO happens until the
// first Read or Write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{
		root:  dir,
		files: make(map[Slot]efile),
		warn:  func(string, ...any) {},
	}
}

// SetWarnFunc sets the function used to report recoverable read errors.
func (b *FileBackend) SetWarnFunc(fn func(msg string, args ...any)) {
	b.warn = fn
}

func (b *FileBackend) file(slot Slot) efile {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.files[slot]
	if !ok {
		f = extremofile.New(extremofile.Config{
			Dir:      filepath.Join(b.root, strconv.FormatUint(uint64(slot), 10)),
			DirPerm:  fileDirPerm,
			FilePerm: fileFilePerm,
		})
		b.files[slot] = f
	}
	return f
}

// Read implements Backend. A damaged main copy that was recovered from the
// backup is reported through the warn function, not as an error.
func (b *FileBackend) Read(_ context.Context, slot Slot) ([]byte, bool, error) {
	data, err := b.file(slot).Read()
	if extremofile.IsCritical(err) {
		if extremofile.IsCorrupt(err) {
			b.warn("setpoint record corrupt, treating as unset", "slot", slot)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading slot %d: %w", slot, err)
	}
	if err != nil {
		b.warn("setpoint record recovered from backup", "slot", slot, "error", err)
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// Write implements Backend. A failed backup copy after a good main copy is
// not an error.
func (b *FileBackend) Write(_ context.Context, slot Slot, data []byte) error {
	_, err := b.file(slot).Write(data)
	if extremofile.IsCritical(err) {
		return fmt.Errorf("writing slot %d: %w", slot, err)
	}
	if err != nil {
		b.warn("setpoint backup copy not written", "slot", slot, "error", err)
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}
