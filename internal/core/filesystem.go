package core

// Filesystem abstracts the file operations the avatar stores need, so
// history and reconciliation logic can be tested against an in-memory
// implementation.
type Filesystem interface {
	// DirectoryExists reports whether path exists and is a directory.
	DirectoryExists(path string) bool

	// EnsureDirectory creates path (and parents) if it does not exist.
	EnsureDirectory(path string) error

	// FileExists reports whether path exists and is a regular file.
	FileExists(path string) bool

	// ListFiles returns the absolute paths of all regular files under
	// dir, recursively.
	ListFiles(dir string) ([]string, error)

	// WriteFile creates or overwrites the file at path with data.
	WriteFile(path string, data []byte) error

	// RemoveFile deletes the file at path. Removing a missing file is
	// an error.
	RemoveFile(path string) error

	// RemoveFileIfExists deletes the file at path if present. Removing
	// a missing file is not an error.
	RemoveFileIfExists(path string) error
}
