package shader

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Files is the file system the cache reads sources from and writes compiled
// bytecode to.
type Files interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// OSFiles returns the Files of the host file system.
func OSFiles() Files {
	return osFiles{}
}

type osFiles struct{}

func (osFiles) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (osFiles) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile creates the parent directories of name as needed.
func (osFiles) WriteFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}
