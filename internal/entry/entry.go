package entry

import (
	"cmp"
	"io/fs"
	"time"
)

// Kind represents the type of filesystem entry.
//
// The numeric values of KindDir and KindFile are part of the tree format.
type Kind int8

const (
	KindUnknown Kind = -1
	KindDir     Kind = 0
	KindFile    Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// KindFromMode derives the Kind from a mode reported by stat.
// Anything that is not a directory is a file.
func KindFromMode(mode fs.FileMode) Kind {
	if mode.IsDir() {
		return KindDir
	}
	return KindFile
}

// rank places directories first, then files, then anything unresolved.
func (k Kind) rank() int {
	switch k {
	case KindDir:
		return 0
	case KindFile:
		return 1
	default:
		return 2
	}
}

// Compare orders siblings: directories before files, then by name in byte order.
// It returns a negative number when (ka, na) sorts before (kb, nb).
func Compare(ka Kind, na string, kb Kind, nb string) int {
	if c := cmp.Compare(ka.rank(), kb.rank()); c != 0 {
		return c
	}
	return cmp.Compare(na, nb)
}

// ScanError represents an error encountered during scanning.
type ScanError struct {
	Path    string
	Op      string
	Message string
}

// Rollup represents aggregated statistics for a directory.
type Rollup struct {
	Path       string
	TotalSize  int64
	TotalFiles int64
	TotalDirs  int64
}

// ScanMeta holds metadata about a scan.
type ScanMeta struct {
	RootPath   string
	StartTime  time.Time
	EndTime    time.Time
	TotalSize  int64
	FileCount  int64
	DirCount   int64
	ErrorCount int64
	MaxDepth   int
	Workers    int
}
