// Package tui is an interactive browser for crawl results.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/queue"
)

// SortColumn represents the current sort field.
type SortColumn int

const (
	SortBySize SortColumn = iota
	SortByName
	SortByFiles
	SortByTree
)

func (s SortColumn) String() string {
	switch s {
	case SortByName:
		return "name"
	case SortByFiles:
		return "files"
	case SortByTree:
		return "tree"
	default:
		return "size"
	}
}

const childLimit = 1000

// Model holds the TUI state.
type Model struct {
	source       Source
	queue        *queue.Queue
	currentPath  string
	returnTo     string
	allEntries   []db.DisplayEntry
	entries      []db.DisplayEntry
	cursor       int
	sort         SortColumn
	width        int
	height       int
	scanMeta     *entry.ScanMeta
	rollup       *entry.Rollup
	filter       string
	filterActive bool
	err          error
}

// NewModel creates a new TUI model.
func NewModel(source Source) *Model {
	return &Model{
		source: source,
		sort:   SortBySize,
	}
}

// SetQueue marks entries with their upload state.
func (m *Model) SetQueue(q *queue.Queue) {
	m.queue = q
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadInitialData
}

type dataLoadedMsg struct {
	scanMeta *entry.ScanMeta
	entries  []db.DisplayEntry
	rollup   *entry.Rollup
	err      error
}

func (m *Model) loadInitialData() tea.Msg {
	meta, err := m.source.Meta()
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	entries, err := m.source.Children(meta.RootPath, m.sort, childLimit)
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	rollup, err := m.source.Rollup(meta.RootPath)
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	return dataLoadedMsg{
		scanMeta: meta,
		entries:  entries,
		rollup:   rollup,
	}
}

type entriesLoadedMsg struct {
	entries []db.DisplayEntry
	rollup  *entry.Rollup
	err     error
}

func (m *Model) loadEntries(path string) tea.Cmd {
	sort := m.sort
	return func() tea.Msg {
		entries, err := m.source.Children(path, sort, childLimit)
		if err != nil {
			return entriesLoadedMsg{err: err}
		}

		rollup, _ := m.source.Rollup(path)

		return entriesLoadedMsg{
			entries: entries,
			rollup:  rollup,
		}
	}
}

func (m *Model) helpLine() string {
	if m.filterActive {
		return "Type to filter | Enter: apply | Esc: clear | q: quit"
	}
	return "↑/↓ move | Enter: open | Backspace: close | s/n/f/t: sort | /: filter | q: quit"
}

func (m *Model) setEntries(entries []db.DisplayEntry) {
	m.allEntries = entries
	m.applyFilter()
}

func (m *Model) applyFilter() {
	if m.filter == "" {
		m.entries = m.allEntries
	} else {
		filtered := make([]db.DisplayEntry, 0, len(m.allEntries))
		needle := strings.ToLower(m.filter)
		for _, e := range m.allEntries {
			if strings.Contains(strings.ToLower(e.Name), needle) {
				filtered = append(filtered, e)
			}
		}
		m.entries = filtered
	}
	m.cursor = 0
}

// queueMark returns a one-character upload state for path.
func (m *Model) queueMark(path string) string {
	if m.queue == nil {
		return ""
	}
	switch m.queue.State(path) {
	case "completed":
		return markCompleted
	case "queued":
		return markQueued
	case "failed":
		return markFailed
	}
	return " "
}
