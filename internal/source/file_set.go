package source

import (
	"fmt"
	"path/filepath"

	"fortio.org/safecast"
)

// FileSet maps FileIDs to the paths a bundle was produced from. Bundles do not
// ship file contents, so positions are reported as byte ranges.
type FileSet struct {
	paths []string
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{
		paths: []string{"<unknown>"},
		index: make(map[string]FileID),
	}
}

// Add registers path and returns its ID; registering twice returns the same ID.
func (fs *FileSet) Add(path string) FileID {
	path = filepath.ToSlash(filepath.Clean(path))
	if id, ok := fs.index[path]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(fs.paths))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(n)
	fs.paths = append(fs.paths, path)
	fs.index[path] = id
	return id
}

// Path returns the registered path, or "<unknown>".
func (fs *FileSet) Path(id FileID) string {
	if fs == nil || int(id) >= len(fs.paths) {
		return "<unknown>"
	}
	return fs.paths[id]
}

// Paths lists registered paths in ID order, the sentinel excluded.
func (fs *FileSet) Paths() []string {
	return append([]string(nil), fs.paths[1:]...)
}

// Format renders span as path:start-end.
func (fs *FileSet) Format(sp Span) string {
	return fmt.Sprintf("%s:%d-%d", fs.Path(sp.File), sp.Start, sp.End)
}
