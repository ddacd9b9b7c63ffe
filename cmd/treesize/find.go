package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/logger"
	"github.com/michaelscutari/treesize/internal/pathutil"
	"github.com/michaelscutari/treesize/internal/progress"
	"github.com/michaelscutari/treesize/internal/scan"
	"github.com/michaelscutari/treesize/internal/snapshot"
	"github.com/michaelscutari/treesize/internal/tree"
	"github.com/michaelscutari/treesize/internal/verify"
)

var findCmd = &cobra.Command{
	Use:   "find ROOT",
	Short: "Crawl a directory tree and write its sizes",
	Long: heredoc.Doc(`
		Crawl ROOT with a pool of --nproc workers and write the sized tree as
		JSON. Every entry is encoded as [name, kind, size, children...] where
		kind is 0 for directories and 1 for everything else. Directories come
		before files and siblings are ordered by name, so the output is
		identical for any worker count.

		Directories at --depth are reported with size 0 and no children.
	`),
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

var (
	findDepth       int
	findNproc       int
	findLogDepth    int
	findOut         string
	findExclude     []string
	findSnapshotDir string
	findIndexMode   string
	findSQLiteTmp   string
	findVerify      bool
	findNoProgress  bool
)

func init() {
	findCmd.Flags().IntVar(&findDepth, "depth", scan.Unlimited, "Truncation depth (-1 = unlimited)")
	findCmd.Flags().IntVar(&findNproc, "nproc", 1, "Number of worker goroutines")
	findCmd.Flags().IntVar(&findLogDepth, "log-depth", 2, "Deepest level shown in the progress display")
	findCmd.Flags().StringVarP(&findOut, "out", "o", "", "Output file (default stdout)")
	findCmd.Flags().StringArrayVar(&findExclude, "exclude", nil, "Regex pattern of paths to skip (can be repeated)")
	findCmd.Flags().StringVar(&findSnapshotDir, "snapshot-dir", "", "Also store the crawl as a SQLite snapshot in this directory")
	findCmd.Flags().StringVar(&findIndexMode, "index-mode", "memory", "Snapshot index build mode: memory|disk|skip")
	findCmd.Flags().StringVar(&findSQLiteTmp, "sqlite-tmp-dir", "", "Directory for SQLite temp files during the snapshot index build")
	findCmd.Flags().BoolVar(&findVerify, "verify", false, "Cross-check the total size with an independent walk")
	findCmd.Flags().BoolVar(&findNoProgress, "no-progress", false, "Disable the progress display")
}

// findOptions merges the find section of the config with the flags that
// were set explicitly.
func findOptions(cmd *cobra.Command) (scan.ScanOptions, error) {
	flags := cmd.Flags()
	depth, nproc, logDepth := cfg.Find.MaxDepth(), cfg.Find.Nproc, cfg.Find.ProgressDepth()
	if flags.Changed("depth") {
		depth = findDepth
	}
	if flags.Changed("nproc") {
		nproc = findNproc
	}
	if flags.Changed("log-depth") {
		logDepth = findLogDepth
	}

	opts := scan.DefaultOptions().
		WithWorkers(nproc).
		WithMaxDepth(depth).
		WithLogDepth(logDepth)

	patterns := cfg.Find.Exclude
	if flags.Changed("exclude") {
		patterns = findExclude
	}
	for _, pattern := range patterns {
		var err error
		if opts, err = opts.WithExcludePattern(pattern); err != nil {
			return opts, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return opts, nil
}

func runFind(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	root = pathutil.Normalize(root)

	opts, err := findOptions(cmd)
	if err != nil {
		return err
	}
	if err := snapshot.CheckIndexMode(findIndexMode); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	crawler := scan.NewCrawler(opts)
	crawler.SetLogger(log)

	var reporter *progress.Reporter
	if !findNoProgress {
		reporter = progress.New(os.Stderr, opts.LogDepth)
		crawler.SetReporter(reporter)
		// Scan errors share stderr with the progress block.
		crawler.SetLogger(logger.New(reporter, logLevel))
	}

	log.Info("crawl started", "root", root, "workers", opts.Workers, "depth", opts.MaxDepth)
	res := crawler.Run(root)
	reporter.Close()

	if findOut == "" {
		err = tree.Write(os.Stdout, res.Tree)
	} else {
		err = tree.WriteFile(findOut, res.Tree)
	}
	if err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}

	elapsed := res.Stats.EndTime.Sub(res.Stats.StartTime)
	log.Info("crawl finished",
		"root", root,
		"size", humanize.Bytes(uint64(res.Stats.TotalSize)),
		"files", humanize.Comma(res.Stats.Files),
		"dirs", humanize.Comma(res.Stats.Dirs),
		"errors", res.Stats.Errors,
		"elapsed", elapsed.Round(time.Millisecond))

	if findVerify {
		checkTotal(ctx, root, res, opts)
	}

	snapshotDir := cfg.Snapshot.Dir
	if cmd.Flags().Changed("snapshot-dir") {
		snapshotDir = findSnapshotDir
	}
	if snapshotDir == "" {
		return nil
	}

	mgr := snapshot.NewManager(snapshotDir, cfg.Snapshot.Retention)
	mgr.SetLogger(log)
	if err := mgr.SetIndexMode(findIndexMode); err != nil {
		return err
	}
	mgr.SetSQLiteTmpDir(findSQLiteTmp)
	mgr.SetStageFunc(func(stage string) {
		log.Debug("snapshot stage", "stage", stage)
	})
	mgr.SetProgressFunc(func(p db.Progress) {
		log.Debug("snapshot ingest", "files", humanize.Comma(p.Files), "dirs", humanize.Comma(p.Dirs))
	})
	dbPath, err := mgr.Save(ctx, res, opts)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	log.Info("snapshot written", "path", dbPath)
	return nil
}

// checkTotal walks root again and warns when its total differs from the
// crawl, which means the tree changed while it was being crawled.
func checkTotal(ctx context.Context, root string, res *scan.Result, opts scan.ScanOptions) {
	if opts.MaxDepth != scan.Unlimited {
		log.Warn("skipping verification of a truncated crawl", "depth", opts.MaxDepth)
		return
	}

	totals, err := verify.Total(ctx, root, verify.Options{
		Workers: opts.Workers,
		Exclude: opts.ShouldExclude,
	})
	if err != nil {
		log.Warn("verification failed", "err", err)
		return
	}
	if totals.Size != res.Tree.Size {
		log.Warn("size changed during crawl",
			"crawled", humanize.Bytes(uint64(res.Tree.Size)),
			"walked", humanize.Bytes(uint64(totals.Size)),
			"delta", totals.Size-res.Tree.Size)
		return
	}
	log.Info("verified", "size", humanize.Bytes(uint64(totals.Size)), "files", humanize.Comma(totals.Files))
}
