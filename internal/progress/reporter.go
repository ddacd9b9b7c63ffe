// Package progress renders crawl progress for the shallow part of the tree.
//
// Updates arrive from pool workers (Working), from the builder (Queued) and
// from the reducer (Done). Every Update mutates the status map and redraws
// while holding the same lock, so concurrent updates never interleave on the
// terminal. Log output that shares the terminal goes through Write, which
// takes the same lock and prints above the block.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/sasha-s/go-deadlock"
)

// Status is the lifecycle state of one entry.
type Status int

const (
	Queued Status = iota
	Working
	Done
)

func (s Status) String() string {
	switch s {
	case Working:
		return "working"
	case Done:
		return "done"
	default:
		return "queued"
	}
}

// DefaultMaxRows bounds the number of in-flight entries drawn in interactive mode.
const DefaultMaxRows = 20

// Reporter tracks entries at or above a depth threshold.
// A nil *Reporter discards all updates.
type Reporter struct {
	mu          deadlock.Mutex
	out         io.Writer
	maxDepth    int
	maxRows     int
	interactive bool
	status      map[string]Status
	active      map[string]Status // entries not yet done
	counts      [3]int
	drawn       int

	queuedStyle  lipgloss.Style
	workingStyle lipgloss.Style
	doneStyle    lipgloss.Style
	headerStyle  lipgloss.Style
}

// New creates a reporter writing to out. Entries deeper than maxDepth are
// ignored. Interactive redraws are enabled when out is a terminal.
func New(out io.Writer, maxDepth int) *Reporter {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd())
	}

	renderer := lipgloss.NewRenderer(out)
	return &Reporter{
		out:          out,
		maxDepth:     maxDepth,
		maxRows:      DefaultMaxRows,
		interactive:  interactive,
		status:       make(map[string]Status),
		active:       make(map[string]Status),
		queuedStyle:  renderer.NewStyle().Foreground(lipgloss.Color("245")),
		workingStyle: renderer.NewStyle().Foreground(lipgloss.Color("214")),
		doneStyle:    renderer.NewStyle().Foreground(lipgloss.Color("76")),
		headerStyle:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}
}

// SetInteractive forces in-place redraws on or off.
func (r *Reporter) SetInteractive(interactive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactive = interactive
}

// SetMaxRows sets how many in-flight entries an interactive redraw shows.
func (r *Reporter) SetMaxRows(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxRows = n
}

// Update records the status of path and redraws.
func (r *Reporter) Update(path string, depth int, status Status) {
	if r == nil || depth > r.maxDepth {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.status[path]; ok {
		r.counts[prev]--
	}
	r.status[path] = status
	r.counts[status]++
	if status == Done {
		delete(r.active, path)
	} else {
		r.active[path] = status
	}

	if r.interactive {
		r.redraw()
		return
	}
	if status == Done {
		fmt.Fprintf(r.out, "%s %s\n", r.styleFor(Done).Render(Done.String()), path)
	}
}

// Remove forgets path, for entries that will never finish.
func (r *Reporter) Remove(path string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.status[path]
	if !ok {
		return
	}
	r.counts[prev]--
	delete(r.status, path)
	delete(r.active, path)
	if r.interactive {
		r.redraw()
	}
}

// Write prints p above the interactive block, so a logger pointed at the
// reporter never tears the display. p is passed through unchanged in plain
// mode.
func (r *Reporter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.interactive {
		return r.out.Write(p)
	}

	r.erase()
	n, err := r.out.Write(p)
	if err != nil {
		return n, err
	}
	if len(p) > 0 && p[len(p)-1] != '\n' {
		io.WriteString(r.out, "\n")
	}
	if len(r.status) > 0 {
		r.redraw()
	}
	return n, nil
}

// IsTerminal reports whether the reporter draws in place.
func (r *Reporter) IsTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interactive
}

// Counts returns the number of tracked entries per status.
func (r *Reporter) Counts() (queued, working, done int) {
	if r == nil {
		return 0, 0, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[Queued], r.counts[Working], r.counts[Done]
}

// Status returns the last recorded status of path.
func (r *Reporter) Status(path string) (Status, bool) {
	if r == nil {
		return Queued, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.status[path]
	return s, ok
}

// Close erases the interactive block.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interactive {
		r.erase()
	}
}

func (r *Reporter) styleFor(s Status) lipgloss.Style {
	switch s {
	case Working:
		return r.workingStyle
	case Done:
		return r.doneStyle
	default:
		return r.queuedStyle
	}
}

// erase moves the cursor to the first drawn line and clears to the end of
// the screen. Callers hold r.mu.
func (r *Reporter) erase() {
	if r.drawn > 0 {
		fmt.Fprintf(r.out, "\033[%dF\033[J", r.drawn)
	}
	r.drawn = 0
}

// redraw renders the full block. Callers hold r.mu.
func (r *Reporter) redraw() {
	lines := r.lines()

	var b strings.Builder
	if r.drawn > 0 {
		fmt.Fprintf(&b, "\033[%dF\033[J", r.drawn)
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	io.WriteString(r.out, b.String())
	r.drawn = len(lines)
}

func (r *Reporter) lines() []string {
	header := fmt.Sprintf("crawling: %d queued | %d working | %d done",
		r.counts[Queued], r.counts[Working], r.counts[Done])
	lines := []string{r.headerStyle.Render(header)}

	shown := r.topActive()
	for _, path := range shown {
		s := r.status[path]
		label := r.styleFor(s).Render(fmt.Sprintf("%-7s", s))
		lines = append(lines, fmt.Sprintf("  %s %s", label, path))
	}
	if hidden := len(r.active) - len(shown); hidden > 0 {
		lines = append(lines, r.queuedStyle.Render(fmt.Sprintf("  ... %d more", hidden)))
	}
	return lines
}

// activeBefore orders working entries first, then by path.
func (r *Reporter) activeBefore(a, b string) bool {
	if sa, sb := r.active[a], r.active[b]; sa != sb {
		return sa > sb
	}
	return a < b
}

// topActive returns the first maxRows in-flight entries in display order.
// It keeps a bounded insertion-sorted slice, so a redraw costs one pass over
// the in-flight set.
func (r *Reporter) topActive() []string {
	top := make([]string, 0, min(r.maxRows, len(r.active)))
	for path := range r.active {
		if len(top) == r.maxRows && (r.maxRows == 0 || !r.activeBefore(path, top[len(top)-1])) {
			continue
		}
		i := len(top)
		if i < r.maxRows {
			top = append(top, path)
		} else {
			i--
		}
		for ; i > 0 && r.activeBefore(path, top[i-1]); i-- {
			top[i] = top[i-1]
		}
		top[i] = path
	}
	return top
}
