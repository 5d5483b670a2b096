package model

import (
	"bytes"
	"io/fs"
	"time"
)

// testFS is a minimal in-memory fs.FS used to exercise BPETokenizer
// without touching the real filesystem.
type testFS struct {
	files map[string][]byte
}

func (f *testFS) Open(name string) (fs.File, error) {
	data, ok := f.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return &testFile{name: name, Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

type testFile struct {
	name string
	size int64
	*bytes.Reader
}

func (f *testFile) Stat() (fs.FileInfo, error) { return &testFileInfo{name: f.name, size: f.size}, nil }
func (f *testFile) Close() error               { return nil }

type testFileInfo struct {
	name string
	size int64
}

func (i *testFileInfo) Name() string       { return i.name }
func (i *testFileInfo) Size() int64        { return i.size }
func (i *testFileInfo) Mode() fs.FileMode  { return 0o444 }
func (i *testFileInfo) ModTime() time.Time { return time.Time{} }
func (i *testFileInfo) IsDir() bool        { return false }
func (i *testFileInfo) Sys() any           { return nil }
