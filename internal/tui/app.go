// Package tui provides the interactive board for designboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/designboard/internal/board"
	"github.com/fentz26/designboard/internal/drag"
	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
	"github.com/fentz26/designboard/internal/session"
	"github.com/fentz26/designboard/internal/store"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	busyStyle = lipgloss.NewStyle().
			Foreground(warningColor)
)

// DefaultDragThreshold is used when Options leaves it unset.
const DefaultDragThreshold = 3

// Backend is what the board needs from the daemon. *Client satisfies it.
type Backend interface {
	session.Store
	CreateTask(ctx context.Context, in store.NewTask) (*models.Task, error)
	RequestChange(ctx context.Context, taskID, description string) (*models.ChangeRequest, error)
	History(ctx context.Context, taskID string) ([]models.PDREntry, error)
}

// Options tunes the board.
type Options struct {
	PollInterval  time.Duration
	DragThreshold int
	// Locale drives customer name and order number collation.
	Locale string
	// Bell enables the terminal bell cues.
	Bell bool
	// LogFile receives session logs while the board owns the terminal.
	// Logs are discarded when empty.
	LogFile string
	// CueOutput is where bell cues are written. Defaults to stderr.
	CueOutput io.Writer
}

// App is the main TUI application model.
type App struct {
	backend     Backend
	session     *session.Controller
	drag        *drag.Controller
	view        boardView
	cmdbar      *CmdBar
	suggestions *Suggestions
	viewport    viewport.Model
	opts        Options
	now         func() time.Time

	width   int
	height  int
	mode    string // "board", "detail"
	cursor  cursor
	filters board.Filters
	sortBy  board.SortOption

	history    []models.PDREntry
	historyFor string

	message  string
	msgIsErr bool
}

// New creates the board for actor. src may be nil, in which case the
// board relies on polling.
func New(backend Backend, src feed.Source, actor models.Actor, opts Options) (*App, error) {
	projector, err := board.NewProjector(opts.Locale)
	if err != nil {
		return nil, err
	}
	if opts.DragThreshold <= 0 {
		opts.DragThreshold = DefaultDragThreshold
	}
	if opts.CueOutput == nil {
		opts.CueOutput = os.Stderr
	}

	sessOpts := []session.Option{
		session.WithProjector(projector),
		session.WithCues(newBellCues(opts.CueOutput, opts.Bell)),
		session.WithLogger(log.Default()),
	}
	if opts.PollInterval > 0 {
		sessOpts = append(sessOpts, session.WithInterval(opts.PollInterval))
	}
	sess := session.New(backend, src, actor, sessOpts...)

	a := &App{
		backend:     backend,
		session:     sess,
		drag:        drag.New(sess, opts.DragThreshold),
		cmdbar:      NewCmdBar(),
		suggestions: NewSuggestions(),
		viewport:    viewport.New(80, 20),
		opts:        opts,
		now:         time.Now,
		mode:        "board",
		width:       80,
		height:      24,
	}
	a.view.width, a.view.height = a.width, a.height
	return a, nil
}

// Run starts the session and the TUI application.
func (a *App) Run() error {
	if a.opts.LogFile != "" {
		f, err := tea.LogToFile(a.opts.LogFile, "designboard")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}
	defer log.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.session.Start(ctx)
	defer a.session.Stop()

	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.waitForUpdate(),
	)
}

// waitForUpdate turns the next session update into a message.
func (a *App) waitForUpdate() tea.Cmd {
	updates := a.session.Updates()
	return func() tea.Msg {
		<-updates
		return boardUpdatedMsg{}
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case tea.MouseMsg:
		return a, a.handleMouse(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.width, a.view.height = msg.Width, msg.Height
		a.cmdbar.SetWidth(msg.Width - 20)
		a.viewport.Width = max(msg.Width-4, 10)
		a.viewport.Height = max(msg.Height-cardTop-footerRows, 3)
		a.rebuild()

	case boardUpdatedMsg:
		a.rebuild()
		return a, a.waitForUpdate()

	case actionResultMsg:
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		a.setMessage(msg.message)
		a.session.Refresh()
		if a.mode == "detail" {
			return a, a.fetchHistory(a.historyFor)
		}

	case historyLoadedMsg:
		if msg.taskID == a.historyFor {
			a.history = msg.entries
			a.refreshDetail()
		}

	case errMsg:
		a.setError(msg.err)
	}

	if a.cmdbar.Active() {
		return a, a.cmdbar.Update(msg)
	}
	return a, nil
}

func (a *App) setMessage(m string) {
	a.message = m
	a.msgIsErr = false
}

func (a *App) setError(err error) {
	a.message = "Error: " + describeError(err)
	a.msgIsErr = true
}

// describeError turns guard and persistence failures into operator text.
func describeError(err error) string {
	var v *guard.Violation
	var ab *guard.Abort
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &ab):
		if ab.Kind == guard.DuplicateOrderNumber {
			return fmt.Sprintf("order %s is already completed on task %s", ab.OrderNumber, shortID(ab.ConflictTaskID))
		}
		return ab.Message
	case errors.Is(err, store.ErrConcurrentModification):
		return "task changed elsewhere, board reloaded"
	}
	return err.Error()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// rebuild re-projects the board and keeps the cursor on the same card.
func (a *App) rebuild() {
	selectedID := ""
	if t, ok := a.view.task(a.cursor); ok {
		selectedID = t.ID
	}
	a.view.setBoard(a.session.Board(a.filters, a.sortBy))
	if selectedID != "" {
		if c, ok := a.view.locate(selectedID); ok {
			a.cursor = c
		}
	}
	a.cursor = a.view.clamp(a.cursor)
	if a.mode == "detail" {
		a.refreshDetail()
	}
}

func (a *App) refreshDetail() {
	t, ok := a.session.Selected()
	if !ok {
		if a.mode == "detail" {
			a.mode = "board"
			a.setMessage("Task is no longer on the board")
		}
		return
	}
	a.viewport.SetContent(renderTaskDetail(t, a.history, a.now()))
}

func (a *App) cursorTask() (models.Task, bool) {
	return a.view.task(a.cursor)
}

// --- Keyboard ---

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	switch {
	case a.cmdbar.Active():
		return a.handlePromptKey(msg)
	case a.drag.State() == drag.Confirming:
		return a.handleConfirmKey(msg)
	case a.mode == "detail":
		return a.handleDetailKey(msg)
	default:
		return a.handleBoardKey(msg)
	}
}

func (a *App) handleBoardKey(msg tea.KeyMsg) tea.Cmd {
	lifted := a.drag.State() == drag.Dragging

	switch msg.String() {
	case "q":
		if !lifted {
			return tea.Quit
		}

	case "esc":
		if lifted {
			a.drag.Cancel()
			a.setMessage("Move cancelled")
		} else if !a.filters.IsZero() {
			a.filters = board.Filters{}
			a.rebuild()
			a.setMessage("Filters cleared")
		}

	case "left":
		if lifted {
			a.moveTarget(-1)
		} else {
			a.cursor.col--
			a.cursor = a.view.clamp(a.cursor)
		}

	case "right":
		if lifted {
			a.moveTarget(1)
		} else {
			a.cursor.col++
			a.cursor = a.view.clamp(a.cursor)
		}

	case "up", "k":
		if !lifted {
			a.cursor.row--
			a.cursor = a.view.clamp(a.cursor)
		}

	case "down", "j":
		if !lifted {
			a.cursor.row++
			a.cursor = a.view.clamp(a.cursor)
		}

	case " ", "space":
		if lifted {
			return a.drop()
		}
		a.lift()

	case "enter":
		if lifted {
			return a.drop()
		}
		if t, ok := a.cursorTask(); ok {
			return a.openDetail(t.ID)
		}

	case "/":
		return a.cmdbar.Open(promptSearch, "Search:", "", a.filters.Search)

	case ":":
		a.suggestions.Update("")
		return a.cmdbar.Open(promptCommand, ":", "", "")

	case "s":
		a.sortBy = a.sortBy.Next()
		a.rebuild()
		a.setMessage("Sort: " + a.sortBy.String())

	case "p":
		a.cyclePriority()

	case "m":
		a.toggleMine()

	case "r":
		a.session.Refresh()
		a.setMessage("Reloading...")

	case "a", "o", "l", "c":
		if t, ok := a.cursorTask(); ok && !lifted {
			return a.taskAction(msg.String(), t)
		}
	}
	return nil
}

// lift picks up the cursor card for a keyboard move.
func (a *App) lift() {
	t, ok := a.cursorTask()
	if !ok {
		return
	}
	if err := a.drag.Lift(t.ID); err != nil {
		a.setError(err)
		return
	}
	a.drag.Hover(a.view.board.Columns[a.cursor.col].Bucket)
	a.setMessage(fmt.Sprintf("Moving %s: ←/→ pick a column, Enter to drop, Esc to cancel", cardLabel(t)))
}

// moveTarget shifts the drop column of a lifted card.
func (a *App) moveTarget(delta int) {
	cols := a.view.board.Columns
	if len(cols) == 0 {
		return
	}
	idx := 0
	for i, c := range cols {
		if c.Bucket == a.drag.Target() {
			idx = i
		}
	}
	idx = min(max(idx+delta, 0), len(cols)-1)
	a.drag.Hover(cols[idx].Bucket)
}

func (a *App) drop() tea.Cmd {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
	defer cancel()
	return a.handleOutcome(a.drag.Release(ctx))
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		return a.handleOutcome(a.drag.Confirm(ctx))
	case "n", "esc":
		return a.handleOutcome(a.drag.Cancel())
	}
	return nil
}

func (a *App) handleDetailKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter", "q":
		a.closeDetail()
	case "up", "k":
		a.viewport.LineUp(1)
	case "down", "j":
		a.viewport.LineDown(1)
	case "a", "o", "l", "c":
		if t, ok := a.session.Selected(); ok {
			return a.taskAction(msg.String(), t)
		}
	}
	return nil
}

func (a *App) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	kind := a.cmdbar.Kind()

	switch msg.String() {
	case "esc":
		if kind == promptSearch {
			a.filters.Search = ""
			a.rebuild()
		}
		a.cmdbar.Close()
		a.suggestions.Hide()
		return nil

	case "tab":
		if kind == promptCommand {
			if s := a.suggestions.Selected(); s != nil {
				a.cmdbar.SetValue(s.Text + " ")
				a.suggestions.Update(a.cmdbar.Value())
			}
		}
		return nil

	case "up":
		if kind == promptCommand {
			a.suggestions.Prev()
		}
		return nil

	case "down":
		if kind == promptCommand {
			a.suggestions.Next()
		}
		return nil

	case "enter":
		return a.submitPrompt()
	}

	cmd := a.cmdbar.Update(msg)
	switch kind {
	case promptSearch:
		a.filters.Search = a.cmdbar.Value()
		a.rebuild()
	case promptCommand:
		a.suggestions.Update(a.cmdbar.Value())
	}
	return cmd
}

func (a *App) submitPrompt() tea.Cmd {
	kind, taskID := a.cmdbar.Kind(), a.cmdbar.TaskID()
	value := strings.TrimSpace(a.cmdbar.Value())
	a.cmdbar.Close()
	a.suggestions.Hide()

	switch kind {
	case promptSearch:
		a.filters.Search = value
		a.rebuild()
	case promptOrder:
		if value == "" {
			a.setMessage("Order number unchanged")
			return nil
		}
		return a.runAction("✓ Order number set to "+value, func(ctx context.Context) error {
			return a.session.UpdateOrderNumber(ctx, taskID, value)
		})
	case promptRequest:
		if value == "" {
			a.setMessage("Change request needs a description")
			return nil
		}
		return a.runAction("✓ Change request opened", func(ctx context.Context) error {
			_, err := a.backend.RequestChange(ctx, taskID, value)
			return err
		})
	case promptCommand:
		return a.executeCommand(value)
	}
	return nil
}

// taskAction runs a side-channel key on t.
func (a *App) taskAction(key string, t models.Task) tea.Cmd {
	switch key {
	case "a":
		return a.runAction("✓ Accepted "+cardLabel(t), func(ctx context.Context) error {
			return a.session.AcceptTask(ctx, t.ID)
		})
	case "o":
		return a.cmdbar.Open(promptOrder, "Order number:", t.ID, t.OrderNumber)
	case "l":
		if t.Bucket() != models.BucketLogoNeeded {
			a.setMessage("Task is not waiting for a logo")
			return nil
		}
		return a.runAction("✓ Sent to designer", func(ctx context.Context) error {
			return a.session.SendToDesigner(ctx, t.ID)
		})
	case "c":
		return a.cmdbar.Open(promptRequest, "Change request:", t.ID, "")
	}
	return nil
}

func (a *App) runAction(success string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{message: success}
	}
}

func (a *App) cyclePriority() {
	switch a.filters.Priority {
	case "":
		a.filters.Priority = models.PriorityUrgent
	case models.PriorityUrgent:
		a.filters.Priority = models.PriorityNormal
	default:
		a.filters.Priority = ""
	}
	a.rebuild()
	a.setMessage("Priority: " + priorityLabel(a.filters.Priority))
}

func priorityLabel(p models.Priority) string {
	if p == "" {
		return "all"
	}
	return string(p)
}

func (a *App) toggleMine() {
	if a.filters.AssignedTo == "" {
		a.filters.AssignedTo = a.session.Actor().ID
		a.setMessage("Showing tasks assigned to you")
	} else {
		a.filters.AssignedTo = ""
		a.setMessage("Showing all assignees")
	}
	a.rebuild()
}

// --- Drag outcomes ---

func (a *App) handleOutcome(out drag.Outcome) tea.Cmd {
	switch out.Kind {
	case drag.Click:
		return a.openDetail(out.TaskID)

	case drag.NoOp:
		if out.TaskID != "" {
			a.setMessage("")
		}

	case drag.Committed:
		a.setMessage("✓ Moved to " + columnLabel(out.Target))
		a.session.Refresh()

	case drag.AwaitingConfirmation:
		label := out.TaskID
		if t, ok := a.session.Task(out.TaskID); ok {
			label = cardLabel(t)
		}
		a.setMessage(fmt.Sprintf("Move %s to %s? y/n", label, columnLabel(out.Target)))

	case drag.Aborted:
		a.setError(out.Err)
		if out.Result.Abort == nil {
			return nil
		}
		switch out.Result.Abort.Kind {
		case guard.MissingOrderNumber:
			return a.cmdbar.Open(promptOrder, "Order number:", out.TaskID, "")
		case guard.DuplicateOrderNumber:
			return a.cmdbar.Open(promptOrder, "New order number:", out.TaskID, out.Result.Abort.OrderNumber)
		}

	case drag.Rejected:
		a.setError(out.Err)

	case drag.Failed:
		a.setError(out.Err)
		if errors.Is(out.Err, store.ErrConcurrentModification) {
			a.session.Refresh()
		}

	case drag.Cancelled:
		a.setMessage("Completion cancelled")
	}
	return nil
}

// --- Mouse ---

func (a *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if a.cmdbar.Active() || a.mode == "detail" || a.drag.State() == drag.Confirming {
		return nil
	}
	p := drag.Point{X: msg.X, Y: msg.Y}

	switch msg.Type {
	case tea.MouseLeft, tea.MouseMotion:
		if a.drag.State() == drag.Idle {
			if msg.Type != tea.MouseLeft {
				return nil
			}
			c, t, ok := a.view.cardAt(p)
			if !ok {
				return nil
			}
			a.cursor = a.view.clamp(c)
			if err := a.drag.PointerDown(t.ID, p); err != nil {
				a.setError(err)
			}
			return nil
		}
		a.drag.PointerMove(p)
		a.drag.Hover(a.view.bucketAt(p))

	case tea.MouseRelease:
		if a.drag.State() == drag.Idle {
			return nil
		}
		return a.drop()
	}
	return nil
}

// --- Detail ---

func (a *App) openDetail(taskID string) tea.Cmd {
	if err := a.session.Open(taskID); err != nil {
		a.setError(err)
		return nil
	}
	a.mode = "detail"
	a.history = nil
	a.historyFor = taskID
	a.viewport.GotoTop()
	a.refreshDetail()
	return a.fetchHistory(taskID)
}

func (a *App) closeDetail() {
	a.session.Close()
	a.mode = "board"
	a.history = nil
	a.historyFor = ""
}

func (a *App) fetchHistory(taskID string) tea.Cmd {
	if taskID == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		entries, err := a.backend.History(ctx, taskID)
		if err != nil {
			return errMsg{err}
		}
		if entries == nil {
			entries = []models.PDREntry{}
		}
		return historyLoadedMsg{taskID: taskID, entries: entries}
	}
}

// --- Commands ---

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	cmd, args := parts[0], parts[1:]
	rest := strings.Join(args, " ")

	switch cmd {
	case "add":
		if rest == "" {
			a.setMessage("Usage: add <customer> [| title]")
			return nil
		}
		in := store.NewTask{CustomerName: rest, CreatedBy: a.session.Actor().ID}
		if customer, title, ok := strings.Cut(rest, "|"); ok {
			in.CustomerName, in.Title = strings.TrimSpace(customer), strings.TrimSpace(title)
		}
		return a.runAction("✓ Created task for "+in.CustomerName, func(ctx context.Context) error {
			_, err := a.backend.CreateTask(ctx, in)
			return err
		})

	case "request":
		t, ok := a.cursorTask()
		if !ok {
			a.setMessage("No task selected")
			return nil
		}
		if rest == "" {
			return a.cmdbar.Open(promptRequest, "Change request:", t.ID, "")
		}
		return a.runAction("✓ Change request opened", func(ctx context.Context) error {
			_, err := a.backend.RequestChange(ctx, t.ID, rest)
			return err
		})

	case "move":
		t, ok := a.cursorTask()
		if !ok {
			a.setMessage("No task selected")
			return nil
		}
		target, ok := models.ParseBucket(rest)
		if !ok {
			a.setMessage("Usage: move <column>")
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		return a.handleOutcome(a.drag.Move(ctx, t.ID, target))

	case "sort":
		opt, err := board.ParseSortOption(rest)
		if err != nil {
			a.setError(err)
			return nil
		}
		a.sortBy = opt
		a.rebuild()
		a.setMessage("Sort: " + opt.String())

	case "priority":
		switch strings.ToLower(rest) {
		case "", "all":
			a.filters.Priority = ""
		case string(models.PriorityUrgent):
			a.filters.Priority = models.PriorityUrgent
		case string(models.PriorityNormal):
			a.filters.Priority = models.PriorityNormal
		default:
			a.setMessage("Usage: priority urgent|normal|all")
			return nil
		}
		a.rebuild()
		a.setMessage("Priority: " + priorityLabel(a.filters.Priority))

	case "mine":
		a.toggleMine()

	case "clear":
		a.filters = board.Filters{}
		a.rebuild()
		a.setMessage("Filters cleared")

	case "reload":
		a.session.Refresh()
		a.setMessage("Reloading...")

	case "q", "quit", "exit":
		return tea.Quit

	default:
		a.setMessage(fmt.Sprintf("Unknown: %s (try: add, request, sort, priority, mine)", cmd))
	}
	return nil
}

// --- View ---

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	actor := a.session.Actor()
	header := titleStyle.Render("DESIGNBOARD")
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(actor.ID)
	header += "  " + a.syncStatus()
	b.WriteString(lipgloss.NewStyle().MaxWidth(max(a.width, 1)).Render(header) + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	if a.mode == "detail" {
		b.WriteString(panelStyle.Render(a.viewport.View()))
	} else {
		var dragging string
		var target models.Bucket
		if st := a.drag.State(); st == drag.Dragging || st == drag.Confirming {
			dragging, target = a.drag.TaskID(), a.drag.Target()
		}
		b.WriteString(a.view.render(a.cursor, dragging, target))
	}
	b.WriteString("\n")

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if a.msgIsErr {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else if t, _, ok := a.drag.Overlay(); ok {
		b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("Dragging %s → %s", cardLabel(t), columnLabel(a.drag.Target()))))
	} else {
		b.WriteString("\n")
	}

	// Prompt
	b.WriteString("\n")
	if a.cmdbar.Active() {
		b.WriteString(a.cmdbar.View())
		if a.suggestions.IsVisible() {
			b.WriteString("\n" + a.suggestions.Render(a.width))
		}
	} else {
		b.WriteString(helpStyle.Render(a.filterSummary()))
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch {
	case a.drag.State() == drag.Confirming:
		status = " y:confirm | n:cancel"
	case a.mode == "detail":
		status = " ↑↓:scroll | a:accept | o:order | l:send | c:change | Esc:back"
	case a.drag.State() == drag.Dragging:
		status = " ←→:column | Enter/Space:drop | Esc:cancel"
	default:
		status = fmt.Sprintf(" Tasks: %d | ←→↑↓:nav | Space:move | Enter:open | /:search | s:sort | p:priority | m:mine | ::command | q:quit",
			a.view.board.Len())
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(status))

	return b.String()
}

func (a *App) syncStatus() string {
	st := a.session.Status()
	switch {
	case st.InFlight:
		return busyStyle.Render("◐ loading")
	case st.LastError != nil:
		return offlineStyle.Render("○ sync error: " + describeError(st.LastError))
	case !st.LastReload.IsZero():
		return onlineStyle.Render("● synced " + st.LastReload.Local().Format("15:04:05"))
	default:
		return offlineStyle.Render("○ connecting")
	}
}

func (a *App) filterSummary() string {
	parts := []string{"sort:" + a.sortBy.String()}
	if a.filters.Search != "" {
		parts = append(parts, fmt.Sprintf("search:%q", a.filters.Search))
	}
	if a.filters.Priority != "" {
		parts = append(parts, "priority:"+string(a.filters.Priority))
	}
	if a.filters.AssignedTo != "" {
		parts = append(parts, "assignee:"+a.filters.AssignedTo)
	}
	return " " + strings.Join(parts, "  ")
}
