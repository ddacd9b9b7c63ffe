package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/treesize/internal/config"
	"github.com/michaelscutari/treesize/internal/logger"
)

var version = "0.1.0"

var (
	logLevelFlag string
	configPath   string

	cfg      config.Config
	log      *slog.Logger
	logLevel slog.Level
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "treesize",
	Short: "Measure directory trees and ship them to object storage",
	Long: heredoc.Doc(`
		treesize crawls a directory tree concurrently and writes its sizes as a
		compact JSON tree. The tree can be split into upload units below a size
		threshold, and the resulting queue drained into a bucket with s5cmd or
		the aws CLI.

		A typical run:

		  treesize find /data -o find.json --nproc 16
		  treesize select /data --tree find.json --threshold 1TB
		  treesize upload /data --queue select.json
	`),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tuiCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	lvl, err := logger.ParseLevel(logLevelFlag)
	if err != nil {
		return err
	}
	logLevel = lvl
	log = logger.New(os.Stderr, lvl)
	slog.SetDefault(log)

	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// signalContext is canceled on the first interrupt. A second interrupt
// exits immediately.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		if _, ok := <-sigCh; ok {
			os.Exit(130)
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}
}
