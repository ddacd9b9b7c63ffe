package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/pathutil"
	"github.com/michaelscutari/treesize/internal/queue"
	"github.com/michaelscutari/treesize/internal/selection"
	"github.com/michaelscutari/treesize/internal/tree"
)

var selectCmd = &cobra.Command{
	Use:   "select ROOT",
	Short: "Split a crawled tree into upload units",
	Long: heredoc.Doc(`
		Read a tree written by find and pick the largest subtrees that fit
		under --threshold. Oversized directories are split into their
		children; a file larger than the threshold is queued on its own.

		ROOT is the filesystem path of the tree's root. The result is a fresh
		upload queue with every unit in "queued".
	`),
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

var (
	selectTree      string
	selectThreshold string
	selectOut       string
)

func init() {
	selectCmd.Flags().StringVar(&selectTree, "tree", "find.json", "Tree file written by find")
	selectCmd.Flags().StringVar(&selectThreshold, "threshold", "1TB", "Largest upload unit, e.g. 500GB or 1TiB")
	selectCmd.Flags().StringVar(&selectOut, "out", "select.json", "Queue file to write")
}

func runSelect(cmd *cobra.Command, args []string) error {
	root := pathutil.Normalize(args[0])

	raw := cfg.Select.Threshold
	if cmd.Flags().Changed("threshold") || raw == "" {
		raw = selectThreshold
	}
	threshold, err := selection.ParseThreshold(raw)
	if err != nil {
		return err
	}

	node, err := tree.ReadFile(selectTree)
	if err != nil {
		return fmt.Errorf("failed to read tree: %w", err)
	}

	selector := selection.New(threshold)
	selector.SetLogger(log)
	q := selector.Select(root, node)

	if err := queue.Save(selectOut, q); err != nil {
		return fmt.Errorf("failed to write queue: %w", err)
	}
	log.Info("queue written", "path", selectOut, "queued", len(q.Queued))
	return nil
}
