package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/snapshot"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display snapshot metadata",
	Long:  `Print metadata about a snapshot including timestamps, statistics and the first scan errors.`,
	RunE:  runInfo,
}

var (
	infoSnapshot string
	infoErrors   int
)

func init() {
	infoCmd.Flags().StringVarP(&infoSnapshot, "snapshot", "s", "", "Snapshot file or directory (default: configured snapshot dir)")
	infoCmd.Flags().IntVar(&infoErrors, "errors", 10, "Number of scan errors to list (0 = none)")
}

// snapshotPath resolves a --snapshot flag against the configured directory.
func snapshotPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Snapshot.Dir == "" {
		return "", errors.New("no snapshot given and no snapshot dir configured")
	}
	return cfg.Snapshot.Dir, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	path, err := snapshotPath(infoSnapshot)
	if err != nil {
		return err
	}
	database, err := snapshot.Open(path)
	if err != nil {
		return err
	}
	defer database.Close()

	meta, err := db.GetScanMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read scan metadata: %w", err)
	}

	fmt.Printf("Scan Information\n")
	fmt.Printf("================\n\n")
	fmt.Printf("Root Path:    %s\n", meta.RootPath)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if !meta.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", meta.EndTime.Sub(meta.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("Workers:      %d\n", meta.Workers)
	if meta.MaxDepth >= 0 {
		fmt.Printf("Max Depth:    %d\n", meta.MaxDepth)
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Files:         %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("Directories:   %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("Size:          %s\n", humanize.Bytes(uint64(meta.TotalSize)))
	if meta.ErrorCount == 0 {
		return nil
	}
	fmt.Printf("Errors:        %s\n", humanize.Comma(meta.ErrorCount))

	if infoErrors <= 0 {
		return nil
	}
	scanErrs, err := db.LoadErrors(database, infoErrors)
	if err != nil {
		return fmt.Errorf("failed to read scan errors: %w", err)
	}
	fmt.Printf("\nFirst Errors\n")
	fmt.Printf("------------\n")
	for _, e := range scanErrs {
		fmt.Printf("%-8s %s: %s\n", e.Op, e.Path, e.Message)
	}
	return nil
}
