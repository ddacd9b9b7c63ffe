package scan

import (
	"io/fs"
	"os"
)

// FS is the filesystem surface the classifier needs.
type FS interface {
	// Stat reports the entry at name, following symbolic links.
	Stat(name string) (fs.FileInfo, error)

	// ReadDirNames lists the names in directory name, in no particular order.
	// It may return a partial list together with an error.
	ReadDirNames(name string) ([]string, error)
}

// OSFS is the operating system filesystem.
type OSFS struct{}

func (OSFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OSFS) ReadDirNames(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
