package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/snapshot"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a snapshot non-interactively",
	Long:  `List the children of a directory in a snapshot for scripting.`,
	RunE:  runQuery,
}

var (
	querySnapshot string
	queryPath     string
	querySort     string
	queryLimit    int
)

func init() {
	queryCmd.Flags().StringVarP(&querySnapshot, "snapshot", "s", "", "Snapshot file or directory (default: configured snapshot dir)")
	queryCmd.Flags().StringVarP(&queryPath, "path", "p", "", "Directory path to query (default: scan root)")
	queryCmd.Flags().StringVar(&querySort, "sort", "size", "Sort by: size, name, files, tree")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of results (0 = all)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	path, err := snapshotPath(querySnapshot)
	if err != nil {
		return err
	}
	database, err := snapshot.Open(path)
	if err != nil {
		return err
	}
	defer database.Close()

	if queryPath == "" {
		meta, err := db.GetScanMeta(database)
		if err != nil {
			return fmt.Errorf("failed to get root path: %w", err)
		}
		queryPath = meta.RootPath
	}

	entries, err := db.LoadChildren(database, queryPath, querySort, queryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SIZE\tFILES\tDIRS\tKIND\tNAME\n")
	for _, e := range entries {
		name := e.Name
		if e.Kind == entry.KindDir {
			name += "/"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Bytes(uint64(e.Size)),
			humanize.Comma(e.TotalFiles),
			humanize.Comma(e.TotalDirs),
			e.Kind,
			name,
		)
	}
	return w.Flush()
}
