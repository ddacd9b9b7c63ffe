package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/pathutil"
	"github.com/michaelscutari/treesize/internal/queue"
	"github.com/michaelscutari/treesize/internal/rollup"
	"github.com/michaelscutari/treesize/internal/snapshot"
	"github.com/michaelscutari/treesize/internal/tree"
	"github.com/michaelscutari/treesize/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [ROOT]",
	Short: "Browse a tree interactively",
	Long: heredoc.Doc(`
		Open an interactive browser over a tree file written by find, or over
		a snapshot. ROOT is the filesystem path of the tree's root and
		defaults to the root entry's name.

		With --queue, entries are marked with their upload state.
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

var (
	tuiTree     string
	tuiSnapshot string
	tuiQueue    string
)

func init() {
	tuiCmd.Flags().StringVar(&tuiTree, "tree", "", "Tree file written by find")
	tuiCmd.Flags().StringVarP(&tuiSnapshot, "snapshot", "s", "", "Snapshot file or directory")
	tuiCmd.Flags().StringVar(&tuiQueue, "queue", "", "Queue file whose states are shown")
	tuiCmd.MarkFlagsMutuallyExclusive("tree", "snapshot")
}

func runTUI(cmd *cobra.Command, args []string) error {
	var source tui.Source
	switch {
	case tuiTree != "":
		src, err := treeSource(cmd, args)
		if err != nil {
			return err
		}
		source = src
	case tuiSnapshot != "":
		database, err := snapshot.Open(tuiSnapshot)
		if err != nil {
			return err
		}
		defer database.Close()
		source = tui.DBSource{DB: database}
	default:
		return errors.New("one of --tree or --snapshot is required")
	}

	model := tui.NewModel(source)
	if tuiQueue != "" {
		q, err := queue.Load(tuiQueue)
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}
		model.SetQueue(q)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func treeSource(cmd *cobra.Command, args []string) (*tui.TreeSource, error) {
	info, err := os.Stat(tuiTree)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree: %w", err)
	}
	root, err := tree.ReadFile(tuiTree)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree: %w", err)
	}

	base := root.Name
	if len(args) == 1 {
		base = pathutil.Normalize(args[0])
	}
	rollups, err := rollup.NewBuilder().Build(cmd.Context(), base, root)
	if err != nil {
		return nil, fmt.Errorf("failed to build rollups: %w", err)
	}
	return tui.NewTreeSource(base, root, rollups, info.ModTime()), nil
}
