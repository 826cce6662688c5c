package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"courier/internal/core"
)

// MockFilesystem is an in-memory implementation of core.Filesystem.
// Failure injection via FailWrites / FailRemoves exercises the
// best-effort and no-partial-state paths of the avatar stores.
type MockFilesystem struct {
	files map[string][]byte
	dirs  map[string]bool

	// FailWrites makes WriteFile fail for any path containing the string.
	FailWrites string
	// FailRemoves makes RemoveFile / RemoveFileIfExists fail for any
	// path containing the string.
	FailRemoves string
}

// NewMockFilesystem creates an empty mock filesystem.
func NewMockFilesystem() *MockFilesystem {
	return &MockFilesystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// AddFile adds a file (and its parent directory) to the mock filesystem.
func (m *MockFilesystem) AddFile(path string, content []byte) {
	m.files[path] = content
	m.dirs[filepath.Dir(path)] = true
}

// HasFile reports whether path is present.
func (m *MockFilesystem) HasFile(path string) bool {
	_, ok := m.files[path]
	return ok
}

// FileCount returns the number of files present.
func (m *MockFilesystem) FileCount() int { return len(m.files) }

func (m *MockFilesystem) DirectoryExists(path string) bool {
	return m.dirs[path]
}

func (m *MockFilesystem) EnsureDirectory(path string) error {
	m.dirs[path] = true
	return nil
}

func (m *MockFilesystem) FileExists(path string) bool {
	return m.HasFile(path)
}

func (m *MockFilesystem) ListFiles(dir string) ([]string, error) {
	if !m.dirs[dir] {
		return nil, fmt.Errorf("directory not found: %s", dir)
	}
	var paths []string
	prefix := dir + string(filepath.Separator)
	for path := range m.files {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MockFilesystem) WriteFile(path string, data []byte) error {
	if m.FailWrites != "" && strings.Contains(path, m.FailWrites) {
		return fmt.Errorf("write failure injected: %s", path)
	}
	m.AddFile(path, data)
	return nil
}

func (m *MockFilesystem) RemoveFile(path string) error {
	if m.FailRemoves != "" && strings.Contains(path, m.FailRemoves) {
		return fmt.Errorf("remove failure injected: %s", path)
	}
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystem) RemoveFileIfExists(path string) error {
	if m.FailRemoves != "" && strings.Contains(path, m.FailRemoves) {
		return fmt.Errorf("remove failure injected: %s", path)
	}
	delete(m.files, path)
	return nil
}

// Compile-time check
var _ core.Filesystem = (*MockFilesystem)(nil)
