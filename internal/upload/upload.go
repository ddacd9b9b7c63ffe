// Package upload drains the work queue into an object store using an
// external sync tool with a fallback.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/michaelscutari/treesize/internal/pathutil"
	"github.com/michaelscutari/treesize/internal/queue"
)

// Options configures an Uploader.
type Options struct {
	// Root is the filesystem path that maps to Bucket.
	Root string

	// Bucket is the destination prefix, e.g. s3://archive/project.
	Bucket string

	// Primary and Fallback are argv prefixes. The subcommand ("sync" or
	// "cp") and the source and destination are appended.
	Primary  []string
	Fallback []string

	// Limit stops after this many attempts. 0 means no limit.
	Limit int

	// DryRun prints the primary command for every queued entry and changes
	// nothing.
	DryRun bool
}

// Summary counts the outcome of a run.
type Summary struct {
	Attempted int
	Completed int
	Failed    int
	Remaining int
}

// Uploader runs transfers for queued entries.
type Uploader struct {
	opts   Options
	runner Runner
	out    io.Writer
	logger *slog.Logger
	stat   func(string) (os.FileInfo, error)

	okStyle   lipgloss.Style
	warnStyle lipgloss.Style
	failStyle lipgloss.Style
	textStyle lipgloss.Style
}

// New creates an uploader that prints attempt headers to out.
func New(opts Options, runner Runner, out io.Writer) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, errors.New("no destination bucket configured")
	}
	if len(opts.Primary) == 0 {
		return nil, errors.New("no primary upload tool configured")
	}

	renderer := lipgloss.NewRenderer(out)
	return &Uploader{
		opts:      opts,
		runner:    runner,
		out:       out,
		logger:    slog.Default(),
		stat:      os.Stat,
		okStyle:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warnStyle: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		failStyle: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		textStyle: renderer.NewStyle().Foreground(lipgloss.Color("14")),
	}, nil
}

// SetLogger sets the logger for attempt results.
func (u *Uploader) SetLogger(logger *slog.Logger) {
	u.logger = logger
}

// Command returns the argv that transfers src with tool. Directories are
// synced with trailing slashes; files are copied.
func (u *Uploader) Command(tool []string, src string) ([]string, error) {
	info, err := u.stat(src)
	if err != nil {
		return nil, err
	}
	rel, err := pathutil.Rel(u.opts.Root, src)
	if err != nil {
		return nil, err
	}
	dest := pathutil.JoinURL(u.opts.Bucket, rel)

	argv := append([]string{}, tool...)
	if info.IsDir() {
		return append(argv, "sync", strings.TrimRight(src, "/")+"/", dest+"/"), nil
	}
	return append(argv, "cp", src, dest), nil
}

// Run drains store's queue. The queue is saved after every attempt so an
// interrupted run resumes where it stopped.
func (u *Uploader) Run(ctx context.Context, store *queue.Store) (Summary, error) {
	q := store.Queue()
	if u.opts.DryRun {
		return u.plan(q)
	}

	var sum Summary
	total := q.Len()
	for index := 0; ; index++ {
		if u.opts.Limit > 0 && sum.Attempted == u.opts.Limit {
			u.logger.Info("attempt limit reached", "limit", u.opts.Limit)
			break
		}
		if err := ctx.Err(); err != nil {
			sum.Remaining = q.Len()
			return sum, err
		}

		path, ok := q.Pop()
		if !ok {
			break
		}
		header := fmt.Sprintf("[ %d/%d ]", index+1, total)

		sum.Attempted++
		ok = u.attempt(ctx, header, path)
		if !ok && ctx.Err() != nil {
			// Interrupted, not failed.
			q.Requeue(path)
			sum.Attempted--
		} else if ok {
			q.Complete(path)
			sum.Completed++
		} else {
			q.Fail(path)
			sum.Failed++
		}

		if err := store.Save(); err != nil {
			sum.Remaining = q.Len()
			return sum, err
		}
	}

	sum.Remaining = q.Len()
	return sum, nil
}

func (u *Uploader) attempt(ctx context.Context, header, path string) bool {
	argv, err := u.Command(u.opts.Primary, path)
	if err != nil {
		u.printf(u.failStyle, header, "Cannot upload %q: %v", path, err)
		u.logger.Warn("upload failed", "path", path, "err", err)
		return false
	}

	u.printf(u.okStyle, header, "Syncing %q with %s...", path, u.opts.Primary[0])
	err = u.runner.Run(ctx, argv)
	if err == nil {
		return true
	}
	u.logger.Debug("primary tool failed", "path", path, "err", err)

	if len(u.opts.Fallback) == 0 || ctx.Err() != nil {
		u.printf(u.failStyle, header, "Failed to sync %q with %s!", path, u.opts.Primary[0])
		return false
	}

	u.printf(u.warnStyle, header, "Failed to sync %q with %s. Retrying with %s...", path, u.opts.Primary[0], u.opts.Fallback[0])
	argv, err = u.Command(u.opts.Fallback, path)
	if err != nil {
		// The source went away while the primary tool ran.
		u.printf(u.failStyle, header, "Cannot upload %q: %v", path, err)
		u.logger.Warn("upload failed", "path", path, "err", err)
		return false
	}
	if err := u.runner.Run(ctx, argv); err != nil {
		u.printf(u.failStyle, header, "Failed to sync %q with %s!", path, u.opts.Fallback[0])
		u.logger.Warn("upload failed", "path", path, "err", err)
		return false
	}
	return true
}

func (u *Uploader) plan(q *queue.Queue) (Summary, error) {
	for i, path := range q.Queued {
		if u.opts.Limit > 0 && i == u.opts.Limit {
			break
		}
		argv, err := u.Command(u.opts.Primary, path)
		if err != nil {
			u.logger.Warn("cannot plan upload", "path", path, "err", err)
			continue
		}
		fmt.Fprintln(u.out, strings.Join(argv, " "))
	}
	return Summary{Remaining: q.Len()}, nil
}

func (u *Uploader) printf(style lipgloss.Style, header, format string, args ...any) {
	fmt.Fprintf(u.out, "%s %s\n", style.Render(header), u.textStyle.Render(fmt.Sprintf(format, args...)))
}
