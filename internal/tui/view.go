package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/entry"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	if m.scanMeta == nil {
		return "Loading..."
	}

	var b strings.Builder
	headerLines := 0

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("treesize - Tree Size Browser"))

	scanInfo := fmt.Sprintf("Crawl: %s | Size: %s | Files: %s | Dirs: %s",
		m.scanMeta.StartTime.Format("2006-01-02 15:04"),
		FormatSize(m.scanMeta.TotalSize),
		FormatCount(m.scanMeta.FileCount),
		FormatCount(m.scanMeta.DirCount),
	)
	if m.scanMeta.ErrorCount > 0 {
		scanInfo += fmt.Sprintf(" | Errors: %s", FormatCount(m.scanMeta.ErrorCount))
	}
	writeLine(statsStyle.Render(scanInfo))

	pathLabel := fmt.Sprintf("Path: %s", truncateMiddle(m.currentPath, max(10, m.width-6)))
	writeLine(breadcrumbStyle.Render(pathLabel))

	dirInfo := ""
	if m.rollup != nil {
		dirInfo = fmt.Sprintf("Size: %s | %s files | %s subdirs",
			FormatSize(m.rollup.TotalSize),
			FormatCount(m.rollup.TotalFiles),
			FormatCount(m.rollup.TotalDirs),
		)
	}
	if m.queue != nil {
		q := fmt.Sprintf("Queue: %d queued | %d completed | %d failed",
			len(m.queue.Queued), len(m.queue.Completed), len(m.queue.Failed))
		if dirInfo != "" {
			dirInfo += " | "
		}
		dirInfo += q
	}

	status := fmt.Sprintf("Items: %s", FormatCount(int64(len(m.entries))))
	if m.filter != "" {
		status += fmt.Sprintf(" | Filter: %q", m.filter)
	}
	if len(m.entries) > 0 && m.cursor < len(m.entries) {
		sel := m.entries[m.cursor]
		status += fmt.Sprintf(" | Sel: %s (%s)", sel.Name, FormatSize(sel.Size))
	}
	writeLine(statusStyle.Render(status))

	if m.filterActive {
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s_", m.filter)))
	} else if m.filter != "" {
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s", m.filter)))
	}

	sizeLabel := headerLabel("SIZE", m.sort == SortBySize, "v")
	filesLabel := headerLabel("FILES", m.sort == SortByFiles, "v")
	nameLabel := headerLabel("NAME", m.sort == SortByName || m.sort == SortByTree, "^")

	footerLines := 2
	if dirInfo != "" {
		footerLines = 3
	}
	visibleRows := max(m.height-headerLines-footerLines, 5)

	startIdx := 0
	if m.cursor >= visibleRows {
		startIdx = m.cursor - visibleRows + 1
	}
	endIdx := min(len(m.entries), startIdx+visibleRows)

	widths := calcColumnWidths(m.entries, startIdx, endIdx, sizeLabel, filesLabel, "DIRS")
	if m.queue != nil {
		widths.mark = 1
	}
	nameWidth := calcNameWidth(m.width, widths)

	nameLabel = truncateRight(nameLabel, nameWidth)
	header := fmt.Sprintf("%*s%s%*s%s%*s%s%s%s%s%*s",
		widths.size, sizeLabel,
		gap(),
		widths.files, filesLabel,
		gap(),
		widths.dirs, "DIRS",
		markCol(widths, " "),
		strings.Repeat(" ", nameGapWidth),
		nameLabel+strings.Repeat(" ", max(nameWidth-len(nameLabel), 0)),
		gap(),
		barColWidth, barHeaderLabel(m.sort),
	)
	writeLine(headerStyle.Render(header))

	for i := startIdx; i < endIdx; i++ {
		b.WriteString(m.formatEntry(m.entries[i], i == m.cursor, widths, nameWidth))
		b.WriteString("\n")
	}

	displayedRows := min(len(m.entries)-startIdx, visibleRows)
	for i := displayedRows; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if dirInfo != "" {
		b.WriteString(statsStyle.Render(dirInfo))
		b.WriteString("\n")
	}
	help := m.helpLine()
	if len(m.entries) > 0 {
		help = fmt.Sprintf("%s [%d/%d]", help, m.cursor+1, len(m.entries))
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

type columnWidths struct {
	size  int
	files int
	dirs  int
	mark  int
}

const (
	colGap        = 2
	nameGapWidth  = 2
	minNameWidth  = 10
	barBlockWidth = 10                                        // number of block characters
	barPctWidth   = 4                                         // " 78%" or "100%"
	barGapWidth   = 1                                         // space between blocks and pct
	barColWidth   = barBlockWidth + barGapWidth + barPctWidth // 15
)

func gap() string {
	return strings.Repeat(" ", colGap)
}

// markCol renders the queue state column, which is absent without a queue.
func markCol(w columnWidths, mark string) string {
	if w.mark == 0 {
		return ""
	}
	return gap() + mark
}

func calcColumnWidths(entries []db.DisplayEntry, startIdx, endIdx int, sizeLabel, filesLabel, dirsLabel string) columnWidths {
	w := columnWidths{
		size:  len(sizeLabel),
		files: len(filesLabel),
		dirs:  len(dirsLabel),
	}

	for i := startIdx; i < endIdx; i++ {
		e := entries[i]
		w.size = max(w.size, len(FormatSize(e.Size)))
		w.files = max(w.files, len(FormatCount(e.TotalFiles)))
		w.dirs = max(w.dirs, len(FormatCount(e.TotalDirs)))
	}

	return w
}

func calcNameWidth(totalWidth int, w columnWidths) int {
	used := w.size + w.files + w.dirs + (colGap * 3) + nameGapWidth + barColWidth
	if w.mark > 0 {
		used += colGap + w.mark
	}
	return max(totalWidth-used, minNameWidth)
}

func truncateRight(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func (m *Model) formatEntry(e db.DisplayEntry, selected bool, widths columnWidths, nameWidth int) string {
	size := FormatSize(e.Size)
	files := FormatCount(e.TotalFiles)
	dirs := FormatCount(e.TotalDirs)

	rawName := e.Name
	if e.Kind == entry.KindDir {
		rawName += "/"
	}
	rawName = truncateRight(rawName, nameWidth)

	styledName := fileStyle.Render(rawName)
	if e.Kind == entry.KindDir {
		styledName = dirStyle.Render(rawName)
	}
	paddedName := styledName + strings.Repeat(" ", max(nameWidth-len(rawName), 0))

	mark := m.queueMark(e.Path)
	if mark != "" {
		mark = markStyle(mark).Render(mark)
	}

	entryVal, parentTotal := barValues(m.sort, e, m.rollup)
	line := fmt.Sprintf("%*s%s%*s%s%*s%s%s%s%s%s",
		widths.size, size,
		gap(),
		widths.files, files,
		gap(),
		widths.dirs, dirs,
		markCol(widths, mark),
		strings.Repeat(" ", nameGapWidth),
		paddedName,
		gap(),
		formatBar(entryVal, parentTotal),
	)

	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func barHeaderLabel(sort SortColumn) string {
	if sort == SortByFiles {
		return "FILE%"
	}
	return "SIZE%"
}

func barValues(sort SortColumn, e db.DisplayEntry, rollup *entry.Rollup) (int64, int64) {
	if rollup == nil {
		return 0, 0
	}
	if sort == SortByFiles {
		return e.TotalFiles, rollup.TotalFiles
	}
	return e.Size, rollup.TotalSize
}

func formatBar(entryVal, parentTotal int64) string {
	if parentTotal <= 0 || entryVal <= 0 {
		empty := strings.Repeat("░", barBlockWidth)
		return barEmptyStyle.Render(empty) + fmt.Sprintf(" %3d%%", 0)
	}

	pct := min(float64(entryVal)/float64(parentTotal)*100, 100)

	filled := int(math.Round(pct / 100 * float64(barBlockWidth)))
	filled = min(max(filled, 1), barBlockWidth)

	filledStr := barFilledStyle.Render(strings.Repeat("█", filled))
	emptyStr := barEmptyStyle.Render(strings.Repeat("░", barBlockWidth-filled))
	return filledStr + emptyStr + fmt.Sprintf(" %3d%%", int(math.Round(pct)))
}

func headerLabel(label string, active bool, dir string) string {
	if active {
		return label + dir
	}
	return label
}

func truncateMiddle(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return s[:head] + "..." + s[len(s)-tail:]
}
