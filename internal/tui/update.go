package tui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/entry"
)

const pageSize = 10

// sortKeys maps a key to the column it sorts by.
var sortKeys = map[string]SortColumn{
	"s": SortBySize,
	"n": SortByName,
	"f": SortByFiles,
	"t": SortByTree,
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filterActive {
			return m, m.handleFilterKey(msg)
		}
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case dataLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.scanMeta = msg.scanMeta
		m.currentPath = msg.scanMeta.RootPath
		m.show(msg.entries, msg.rollup)

	case entriesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.show(msg.entries, msg.rollup)
		m.restoreCursor()
	}
	return m, nil
}

// show replaces the listing and clears any filter.
func (m *Model) show(entries []db.DisplayEntry, r *entry.Rollup) {
	m.filter = ""
	m.filterActive = false
	m.setEntries(entries)
	m.rollup = r
}

// restoreCursor puts the cursor back on the directory just left.
func (m *Model) restoreCursor() {
	if m.returnTo == "" {
		return
	}
	for i, e := range m.entries {
		if e.Path == m.returnTo {
			m.cursor = i
			break
		}
	}
	m.returnTo = ""
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return tea.Quit
	case "enter":
		m.filterActive = false
	case "esc":
		m.filterActive = false
		m.filter = ""
		m.applyFilter()
	case "backspace":
		if runes := []rune(m.filter); len(runes) > 0 {
			m.filter = string(runes[:len(runes)-1])
			m.applyFilter()
		}
	default:
		if msg.Type == tea.KeyRunes {
			m.filter += key
			m.applyFilter()
		}
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if col, ok := sortKeys[key]; ok {
		m.sort = col
		return m.loadEntries(m.currentPath)
	}

	switch key {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-pageSize)
	case "pgdown":
		m.moveCursor(pageSize)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.moveCursor(len(m.entries))
	case "/":
		m.filterActive = true
	case "enter", "l", "right":
		return m.descend()
	case "backspace", "h", "left":
		return m.ascend()
	}
	return nil
}

// moveCursor moves the cursor by delta, clamped to the listing.
func (m *Model) moveCursor(delta int) {
	m.cursor = max(0, min(m.cursor+delta, len(m.entries)-1))
}

func (m *Model) descend() tea.Cmd {
	if m.cursor >= len(m.entries) {
		return nil
	}
	selected := m.entries[m.cursor]
	if !selected.IsDir() {
		return nil
	}
	m.currentPath = selected.Path
	return m.loadEntries(selected.Path)
}

func (m *Model) ascend() tea.Cmd {
	if m.scanMeta == nil || m.currentPath == m.scanMeta.RootPath {
		return nil
	}
	m.returnTo = m.currentPath
	m.currentPath = filepath.Dir(m.currentPath)
	return m.loadEntries(m.currentPath)
}
