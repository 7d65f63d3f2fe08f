package journal

import (
	"fmt"
	"os"
	"path/filepath"
)

// Source supplies attachment bytes. Bytes is read exactly once per insert;
// after the enclosing transaction commits the store owns the copy.
type Source interface {
	// Name returns the filename to store verbatim.
	Name() string
	// Bytes returns the attachment content.
	Bytes() ([]byte, error)
}

// FileSource reads an attachment from a filesystem path. The stored filename
// is the path's base name.
type FileSource struct {
	Path string
}

// Name returns the base name of the source path.
func (f FileSource) Name() string { return filepath.Base(f.Path) }

// Bytes reads the file's content.
func (f FileSource) Bytes() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("journal: read attachment %s: %w", f.Path, err)
	}
	return data, nil
}

// BytesSource is an in-memory attachment source, used by upload handlers and
// tests.
type BytesSource struct {
	Filename string
	Data     []byte
}

// Name returns the attachment filename.
func (b BytesSource) Name() string { return b.Filename }

// Bytes returns the in-memory content.
func (b BytesSource) Bytes() ([]byte, error) { return b.Data, nil }
