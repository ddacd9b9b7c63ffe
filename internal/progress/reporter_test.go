package progress

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestUpdateIgnoresEntriesBelowDepth(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 1)

	r.Update("/r", 0, Done)
	r.Update("/r/a", 1, Done)
	r.Update("/r/a/b", 2, Done)

	if _, ok := r.Status("/r/a/b"); ok {
		t.Fatalf("entry deeper than maxDepth should not be tracked")
	}
	if _, _, done := r.Counts(); done != 2 {
		t.Fatalf("expected 2 done entries, got %d", done)
	}
}

func TestPlainModePrintsOneLinePerDone(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(false)

	r.Update("/r/a", 1, Queued)
	r.Update("/r/a", 1, Working)
	r.Update("/r/a", 1, Done)
	r.Update("/r", 0, Queued)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single line, got %q", buf.String())
	}
	if !strings.HasSuffix(lines[0], "/r/a") || !strings.Contains(lines[0], "done") {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestInteractiveRedrawReplacesPreviousBlock(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(true)

	r.Update("/r", 0, Queued)
	first := buf.String()
	if strings.Contains(first, "\033[") && strings.Contains(first, "F\033[J") {
		t.Fatalf("first draw should not move the cursor: %q", first)
	}
	if !strings.Contains(first, "1 queued") {
		t.Fatalf("header missing from first draw: %q", first)
	}

	buf.Reset()
	r.Update("/r", 0, Working)
	second := buf.String()
	if !strings.HasPrefix(second, "\033[2F\033[J") {
		t.Fatalf("second draw should erase the two previous lines: %q", second)
	}
	if !strings.Contains(second, "1 working") {
		t.Fatalf("header not updated: %q", second)
	}

	buf.Reset()
	r.Close()
	if !strings.HasPrefix(buf.String(), "\033[2F\033[J") {
		t.Fatalf("close should erase the block: %q", buf.String())
	}
}

func TestInteractiveRedrawCapsRows(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(true)
	r.SetMaxRows(2)

	for i := 0; i < 5; i++ {
		r.Update(fmt.Sprintf("/r/%d", i), 1, Queued)
	}

	buf.Reset()
	r.Update("/r", 0, Working)
	if !strings.Contains(buf.String(), "... 4 more") {
		t.Fatalf("expected overflow line, got %q", buf.String())
	}
}

func TestConcurrentUpdatesKeepCountsConsistent(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 3)
	r.SetInteractive(true)

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				path := fmt.Sprintf("/r/%d/%d", w, i)
				r.Update(path, 2, Queued)
				r.Update(path, 2, Working)
				r.Update(path, 2, Done)
			}
		}(w)
	}
	wg.Wait()

	queued, working, done := r.Counts()
	if queued != 0 || working != 0 || done != workers*perWorker {
		t.Fatalf("unexpected counts queued=%d working=%d done=%d", queued, working, done)
	}
}

func TestNilReporterIsNoop(t *testing.T) {
	var r *Reporter
	r.Update("/r", 0, Done)
	r.Close()
	if q, w, d := r.Counts(); q+w+d != 0 {
		t.Fatalf("nil reporter should report zero counts")
	}
}

func TestLogLinesPrintAboveInteractiveBlock(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(true)
	logger := slog.New(slog.NewTextHandler(r, nil))

	r.Update("/r", 0, Working)
	r.Update("/r/a", 1, Queued)
	buf.Reset()

	logger.Warn("scan error", "path", "/r/a")
	out := buf.String()
	if !strings.HasPrefix(out, "\033[3F\033[J") {
		t.Fatalf("log line should start by erasing the 3-line block: %q", out)
	}
	_, after, ok := strings.Cut(out, "path=/r/a\n")
	if !ok {
		t.Fatalf("log line missing: %q", out)
	}
	if !strings.HasPrefix(after, "crawling: 1 queued | 1 working") {
		t.Fatalf("block should be redrawn below the log line without moving up: %q", after)
	}

	buf.Reset()
	r.Update("/r/a", 1, Working)
	if !strings.HasPrefix(buf.String(), "\033[3F\033[J") {
		t.Fatalf("next redraw should erase exactly the redrawn block: %q", buf.String())
	}
}

func TestWritePassesThroughInPlainMode(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(false)
	r.Update("/r", 0, Queued)

	fmt.Fprint(r, "hello\n")
	if buf.String() != "hello\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if r.IsTerminal() {
		t.Fatalf("plain reporter claims to be a terminal")
	}
}

func TestRemoveForgetsEntry(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(true)

	r.Update("/r/a", 1, Queued)
	r.Update("/r/b", 1, Working)
	r.Remove("/r/a")
	r.Remove("/r/missing")

	if _, ok := r.Status("/r/a"); ok {
		t.Fatalf("removed entry still tracked")
	}
	if q, w, d := r.Counts(); q != 0 || w != 1 || d != 0 {
		t.Fatalf("counts = %d/%d/%d", q, w, d)
	}
}

func TestInteractiveRowsPreferWorkingThenPath(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 2)
	r.SetInteractive(true)
	r.SetMaxRows(3)

	for _, p := range []string{"/r/e", "/r/b", "/r/d", "/r/a", "/r/c"} {
		r.Update(p, 1, Queued)
	}
	buf.Reset()
	r.Update("/r/d", 1, Working)

	var rows []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if f := strings.Fields(line); len(f) == 2 && strings.HasPrefix(f[1], "/r/") {
			rows = append(rows, f[1])
		}
	}
	if strings.Join(rows, ",") != "/r/d,/r/a,/r/b" {
		t.Fatalf("rows = %v", rows)
	}
	if !strings.Contains(buf.String(), "... 2 more") {
		t.Fatalf("expected overflow line: %q", buf.String())
	}
}
