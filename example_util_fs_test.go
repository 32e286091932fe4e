package temper_test

import (
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// staticFS is a flat, read-only fs.FS of template sources keyed by file
// name. It only has a root directory.
type staticFS map[string]string

func (s staticFS) Open(name string) (fs.File, error) {
	if name == "." {
		return &staticDir{entries: s.entries()}, nil
	}
	val, ok := s[name]
	if !ok {
		return nil, &fs.PathError{
			Op:   "open",
			Path: name,
			Err:  fs.ErrNotExist,
		}
	}
	return &staticFile{
		name:     name,
		contents: []byte(val),
	}, nil
}

// ReadDir lists the root directory, sorted by name.
func (s staticFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name != "." {
		return nil, &fs.PathError{
			Op:   "readdir",
			Path: name,
			Err:  fs.ErrNotExist,
		}
	}
	return s.entries(), nil
}

func (s staticFS) entries() []fs.DirEntry {
	entries := make([]fs.DirEntry, 0, len(s))
	for name, contents := range s {
		entries = append(entries, fs.FileInfoToDirEntry(&staticFile{
			name:     name,
			contents: []byte(contents),
		}))
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries
}

type staticDir struct {
	entries []fs.DirEntry
	offset  int
}

func (d *staticDir) Stat() (fs.FileInfo, error) { return d, nil }

func (*staticDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: fs.ErrInvalid}
}

func (*staticDir) Close() error { return nil }

func (d *staticDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	rest = rest[:min(n, len(rest))]
	d.offset += len(rest)
	return rest, nil
}

func (*staticDir) Name() string       { return "." }
func (*staticDir) Size() int64        { return 0 }
func (*staticDir) Mode() fs.FileMode  { return fs.ModeDir | 0500 }
func (*staticDir) ModTime() time.Time { return time.Time{} }
func (*staticDir) IsDir() bool        { return true }
func (*staticDir) Sys() any           { return nil }

type staticFile struct {
	name     string
	contents []byte
	offset   int
}

func (s *staticFile) Stat() (fs.FileInfo, error) {
	return s, nil
}

func (s *staticFile) Read(buf []byte) (int, error) {
	if s.offset >= len(s.contents) {
		return 0, io.EOF
	}
	n := copy(buf, s.contents[s.offset:])
	s.offset += n
	return n, nil
}

func (*staticFile) Close() error {
	return nil
}

func (s *staticFile) Name() string {
	return s.name
}

func (s *staticFile) Size() int64 {
	return int64(len(s.contents))
}

func (*staticFile) Mode() fs.FileMode {
	return 0400
}

func (*staticFile) ModTime() time.Time {
	return time.Time{}
}

func (*staticFile) IsDir() bool {
	return false
}

func (*staticFile) Sys() any {
	return nil
}
