package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/pathutil"
	"github.com/michaelscutari/treesize/internal/queue"
	"github.com/michaelscutari/treesize/internal/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload ROOT",
	Short: "Drain an upload queue into a bucket",
	Long: heredoc.Doc(`
		Pop entries off the head of the queue written by select and transfer
		each one to BUCKET/<path relative to ROOT>. Directories are synced and
		files are copied. When the primary tool fails the fallback tool is
		tried once before the entry is marked failed.

		The queue file is saved after every attempt and locked for the whole
		run, so an interrupted upload resumes where it stopped.
	`),
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var (
	uploadQueue  string
	uploadBucket string
	uploadLimit  int
	uploadDryRun bool
)

func init() {
	uploadCmd.Flags().StringVar(&uploadQueue, "queue", "select.json", "Queue file written by select")
	uploadCmd.Flags().StringVar(&uploadBucket, "bucket", "", "Destination prefix, e.g. s3://archive/project")
	uploadCmd.Flags().IntVar(&uploadLimit, "limit", 0, "Stop after N attempts (0 = all)")
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "Print the planned commands without running them")
}

func runUpload(cmd *cobra.Command, args []string) error {
	bucket := cfg.Upload.Bucket
	if cmd.Flags().Changed("bucket") {
		bucket = uploadBucket
	}

	store, err := queue.Open(uploadQueue)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer store.Close()

	var out io.Writer = os.Stderr
	if uploadDryRun {
		out = os.Stdout
	}
	uploader, err := upload.New(upload.Options{
		Root:     pathutil.Normalize(args[0]),
		Bucket:   bucket,
		Primary:  cfg.Upload.Primary,
		Fallback: cfg.Upload.Fallback,
		Limit:    uploadLimit,
		DryRun:   uploadDryRun,
	}, upload.ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}, out)
	if err != nil {
		return err
	}
	uploader.SetLogger(log)

	ctx, stop := signalContext()
	defer stop()

	sum, err := uploader.Run(ctx, store)
	log.Info("upload finished",
		"attempted", sum.Attempted,
		"completed", sum.Completed,
		"failed", sum.Failed,
		"remaining", sum.Remaining)
	if errors.Is(err, context.Canceled) {
		return errors.New("upload interrupted; rerun to resume")
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}
