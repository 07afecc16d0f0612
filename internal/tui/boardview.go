package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/designboard/internal/board"
	"github.com/fentz26/designboard/internal/drag"
	"github.com/fentz26/designboard/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Screen rows above the first card: header, rule, column title, underline.
const (
	columnTitleRow = 2
	cardTop        = 4
	footerRows     = 4
)

var (
	columnTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(cyanColor)

	dropTargetStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fgColor).
			Background(secondaryColor)

	ghostStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	urgentStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)
)

var titleCaser = cases.Title(language.English)

// columnLabel renders a bucket as a column heading.
func columnLabel(b models.Bucket) string {
	return titleCaser.String(strings.ReplaceAll(string(b), "_", " "))
}

// cardLabel is the one-line card text.
func cardLabel(t models.Task) string {
	name := t.CustomerName
	if name == "" {
		name = t.Title
	}
	if t.OrderNumber != "" {
		name += " #" + t.OrderNumber
	}
	return name
}

// cursor addresses a card by column and row on the projected board.
type cursor struct {
	col, row int
}

// boardView keeps the geometry of the last projected board so pointer
// positions can be mapped back to columns and cards.
type boardView struct {
	board   board.Board
	width   int
	height  int
	offsets []int
}

func (v *boardView) colWidth() int {
	n := len(v.board.Columns)
	if n == 0 {
		return v.width
	}
	return max(v.width/n, 8)
}

// visibleRows is the number of card rows per column.
func (v *boardView) visibleRows() int {
	return max(v.height-cardTop-footerRows, 1)
}

func (v *boardView) setBoard(b board.Board) {
	v.board = b
	if len(v.offsets) != len(b.Columns) {
		v.offsets = make([]int, len(b.Columns))
	}
}

// columnAt maps an x position to a column index.
func (v *boardView) columnAt(x int) (int, bool) {
	if x < 0 || len(v.board.Columns) == 0 {
		return 0, false
	}
	i := x / v.colWidth()
	if i >= len(v.board.Columns) {
		return 0, false
	}
	return i, true
}

// bucketAt returns the column under the pointer, or "" outside the board.
func (v *boardView) bucketAt(p drag.Point) models.Bucket {
	if p.Y < columnTitleRow {
		return ""
	}
	i, ok := v.columnAt(p.X)
	if !ok {
		return ""
	}
	return v.board.Columns[i].Bucket
}

// cardAt returns the card under the pointer.
func (v *boardView) cardAt(p drag.Point) (cursor, models.Task, bool) {
	col, ok := v.columnAt(p.X)
	if !ok || p.Y < cardTop || p.Y >= cardTop+v.visibleRows() {
		return cursor{}, models.Task{}, false
	}
	tasks := v.board.Columns[col].Tasks
	row := v.offsets[col] + p.Y - cardTop
	if row < 0 || row >= len(tasks) {
		return cursor{}, models.Task{}, false
	}
	return cursor{col: col, row: row}, tasks[row], true
}

// task returns the card under c.
func (v *boardView) task(c cursor) (models.Task, bool) {
	if c.col < 0 || c.col >= len(v.board.Columns) {
		return models.Task{}, false
	}
	tasks := v.board.Columns[c.col].Tasks
	if c.row < 0 || c.row >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[c.row], true
}

// locate finds a task id on the board.
func (v *boardView) locate(id string) (cursor, bool) {
	for ci, col := range v.board.Columns {
		for ri, t := range col.Tasks {
			if t.ID == id {
				return cursor{col: ci, row: ri}, true
			}
		}
	}
	return cursor{}, false
}

// clamp keeps c on the board and scrolls its column so it is visible.
func (v *boardView) clamp(c cursor) cursor {
	n := len(v.board.Columns)
	if n == 0 {
		return cursor{}
	}
	c.col = min(max(c.col, 0), n-1)
	rows := len(v.board.Columns[c.col].Tasks)
	c.row = min(max(c.row, 0), max(rows-1, 0))

	off := v.offsets[c.col]
	visible := v.visibleRows()
	if c.row < off {
		off = c.row
	} else if c.row >= off+visible {
		off = c.row - visible + 1
	}
	v.offsets[c.col] = off
	return c
}

// render draws the columns. selected is the cursor card; dragging is the
// lifted card, drawn as a ghost in its origin column; target is the column
// under the pointer.
func (v *boardView) render(sel cursor, dragging string, target models.Bucket) string {
	if len(v.board.Columns) == 0 {
		return "\n  No columns visible for this actor.\n"
	}
	w := v.colWidth()
	rows := v.visibleRows()
	colStyle := lipgloss.NewStyle().Width(w).MaxWidth(w)

	cols := make([]string, 0, len(v.board.Columns))
	for ci, col := range v.board.Columns {
		var b strings.Builder

		title := fmt.Sprintf("%s (%d)", columnLabel(col.Bucket), len(col.Tasks))
		if col.Bucket == target && dragging != "" {
			b.WriteString(dropTargetStyle.Render(truncate(title, w-1)))
		} else {
			b.WriteString(columnTitleStyle.Render(truncate(title, w-1)))
		}
		b.WriteString("\n" + strings.Repeat("─", max(w-1, 1)) + "\n")

		off := v.offsets[ci]
		for ri := off; ri < len(col.Tasks) && ri < off+rows; ri++ {
			t := col.Tasks[ri]
			label := truncate(cardLabel(t), w-3)
			marker := " "
			if t.Priority == models.PriorityUrgent {
				marker = urgentStyle.Render("!")
			}
			switch {
			case t.ID == dragging:
				b.WriteString(ghostStyle.Render("  " + label))
			case ci == sel.col && ri == sel.row:
				b.WriteString(selectedStyle.Padding(0, 0).Render("▶" + marker + label))
			default:
				b.WriteString(taskItemStyle.Padding(0, 0).Render(" " + marker + label))
			}
			b.WriteString("\n")
		}
		cols = append(cols, colStyle.Render(strings.TrimRight(b.String(), "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
