package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/pathutil"
)

// DisplayEntry combines entry data with rollup data for display.
type DisplayEntry struct {
	Path       string
	Name       string
	Kind       entry.Kind
	Size       int64
	TotalFiles int64
	TotalDirs  int64
}

// IsDir reports whether the entry is a directory.
func (e DisplayEntry) IsDir() bool {
	return e.Kind == entry.KindDir
}

// orderClause maps a sort key to SQL. "tree" is the crawl order.
func orderClause(sortBy string) string {
	switch sortBy {
	case "name":
		return "name ASC"
	case "files":
		return "total_files DESC, name ASC"
	case "tree":
		return "kind ASC, name ASC"
	default:
		return "size DESC, name ASC"
	}
}

// LoadChildren loads child entries for a directory with rollup data.
func LoadChildren(db *sql.DB, parentPath, sortBy string, limit int) ([]DisplayEntry, error) {
	parentPath = pathutil.Normalize(parentPath)

	query := fmt.Sprintf(`
		SELECT d.path, d.name, ? as kind,
		       COALESCE(r.total_size, 0) as size,
		       COALESCE(r.total_files, 0) as total_files,
		       COALESCE(r.total_dirs, 0) as total_dirs
		FROM dirs d
		LEFT JOIN rollups r ON r.dir_id = d.id
		WHERE d.parent_id = ?

		UNION ALL

		SELECT (CASE WHEN pd.path = '/' THEN '' ELSE pd.path END || '/' || e.name) as path,
		       e.name, e.kind, e.size as size,
		       1 as total_files,
		       0 as total_dirs
		FROM entries e
		JOIN dirs pd ON pd.id = e.parent_id
		WHERE e.parent_id = ?
		ORDER BY %s
		LIMIT ?
	`, orderClause(sortBy))

	parentID, err := lookupDirID(db, parentPath)
	if err != nil {
		return nil, fmt.Errorf("parent not found: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.Query(query, entry.KindDir, parentID, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []DisplayEntry
	for rows.Next() {
		var e DisplayEntry
		if err := rows.Scan(&e.Path, &e.Name, &e.Kind, &e.Size, &e.TotalFiles, &e.TotalDirs); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func lookupDirID(db *sql.DB, path string) (int64, error) {
	cache := getDirCache(db)
	if id, ok := cache.Get(path); ok {
		return id, nil
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM dirs WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, err
	}
	cache.Set(path, id)
	return id, nil
}

// GetRollup retrieves rollup data for a directory. It returns nil when path
// is not a recorded directory.
func GetRollup(db *sql.DB, path string) (*entry.Rollup, error) {
	path = pathutil.Normalize(path)
	dirID, err := lookupDirID(db, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := entry.Rollup{Path: path}
	err = db.QueryRow(`
		SELECT total_size, total_files, total_dirs
		FROM rollups WHERE dir_id = ?
	`, dirID).Scan(&r.TotalSize, &r.TotalFiles, &r.TotalDirs)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// GetScanMeta retrieves scan metadata.
func GetScanMeta(db *sql.DB) (*entry.ScanMeta, error) {
	var m entry.ScanMeta
	var startTime, endTime int64

	err := db.QueryRow(`
		SELECT root_path, start_time, COALESCE(end_time, 0), total_size, file_count, dir_count, error_count, max_depth, workers
		FROM scan_meta WHERE id = 1
	`).Scan(&m.RootPath, &startTime, &endTime, &m.TotalSize, &m.FileCount, &m.DirCount, &m.ErrorCount, &m.MaxDepth, &m.Workers)

	if err != nil {
		return nil, err
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}

// LoadErrors returns up to limit recorded scan errors ordered by path.
// limit <= 0 returns all of them.
func LoadErrors(db *sql.DB, limit int) ([]entry.ScanError, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT path, op, message FROM scan_errors ORDER BY path, op LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var errs []entry.ScanError
	for rows.Next() {
		var e entry.ScanError
		if err := rows.Scan(&e.Path, &e.Op, &e.Message); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
