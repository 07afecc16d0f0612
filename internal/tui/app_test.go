package tui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	bcursor "github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/designboard/internal/board"
	"github.com/fentz26/designboard/internal/drag"
	"github.com/fentz26/designboard/internal/models"
	"github.com/fentz26/designboard/internal/store"
)

// fakeBackend applies writes to its own task list so a reload shows them.
type fakeBackend struct {
	mu       sync.Mutex
	tasks    []models.Task
	writes   []models.StatusChange
	created  []store.NewTask
	requests []string
	history  []models.PDREntry
}

func (f *fakeBackend) find(id string) *models.Task {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			return &f.tasks[i]
		}
	}
	return nil
}

func (f *fakeBackend) Snapshot(context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Snapshot{Tasks: append([]models.Task(nil), f.tasks...)}, nil
}

func (f *fakeBackend) UpdateStatus(_ context.Context, id string, change models.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, change)
	t := f.find(id)
	t.Status = change.Status
	t.StatusChangedAt = change.StatusChangedAt
	t.CompletedAt = change.CompletedAt
	return nil
}

func (f *fakeBackend) AcceptTask(_ context.Context, id, actorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.find(id).AssignedTo = actorID
	return nil
}

func (f *fakeBackend) UpdateOrderNumber(_ context.Context, id, orderNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.find(id).OrderNumber = orderNumber
	return nil
}

func (f *fakeBackend) SendToDesigner(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.find(id).LogoAction = models.LogoActionSent
	return nil
}

func (f *fakeBackend) CreateTask(_ context.Context, in store.NewTask) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return &models.Task{ID: "new", CustomerName: in.CustomerName, Title: in.Title}, nil
}

func (f *fakeBackend) RequestChange(_ context.Context, taskID, description string) (*models.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, taskID+":"+description)
	return &models.ChangeRequest{ID: "cr1", TaskID: taskID, Description: description}, nil
}

func (f *fakeBackend) History(_ context.Context, taskID string) ([]models.PDREntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PDREntry(nil), f.history...), nil
}

var admin = models.Actor{ID: "admin", Roles: []models.Role{models.RoleSuperAdmin}}

func newTestApp(t *testing.T, tasks ...models.Task) (*App, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{tasks: tasks}
	a, err := New(backend, nil, admin, Options{CueOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// A blinking cursor returns commands that sleep.
	a.cmdbar.input.Cursor.SetMode(bcursor.CursorStatic)
	reload(t, a)
	// Seven columns at 20 cells each.
	a.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return a, backend
}

func reload(t *testing.T, a *App) {
	t.Helper()
	if err := a.session.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	a.Update(boardUpdatedMsg{})
}

func task(id, customer string, status models.Status) models.Task {
	return models.Task{ID: id, CustomerName: customer, Status: status, CreatedBy: "sam",
		StatusChangedAt: time.Now().Add(-time.Hour)}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// press sends keys and runs any command they return, feeding results the
// app consumes back in.
func press(a *App, keys ...string) {
	for _, k := range keys {
		_, cmd := a.Update(key(k))
		run(a, cmd)
	}
}

func run(a *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case actionResultMsg, historyLoadedMsg, errMsg:
		a.Update(msg)
	}
}

func mouse(a *App, typ tea.MouseEventType, x, y int) tea.Cmd {
	_, cmd := a.Update(tea.MouseMsg{X: x, Y: y, Type: typ})
	return cmd
}

// columnX returns an x position inside column i.
func columnX(i int) int { return i*20 + 5 }

const (
	colPending  = 1
	colProgress = 2
	colApproved = 5
)

func TestBoardGeometry(t *testing.T) {
	a, _ := newTestApp(t, task("t1", "Acme", models.StatusPending))

	if _, got, ok := a.view.cardAt(drag.Point{X: columnX(colPending), Y: cardTop}); !ok || got.ID != "t1" {
		t.Errorf("Expected t1 under the pointer, got %v %+v", ok, got)
	}
	if _, _, ok := a.view.cardAt(drag.Point{X: columnX(colPending), Y: cardTop + 1}); ok {
		t.Error("Expected no card below the last one")
	}
	if got := a.view.bucketAt(drag.Point{X: columnX(colProgress), Y: 12}); got != models.Bucket(models.StatusInProgress) {
		t.Errorf("Expected in_progress column, got %q", got)
	}
	if got := a.view.bucketAt(drag.Point{X: columnX(colProgress), Y: 0}); got != "" {
		t.Errorf("Expected no column over the header, got %q", got)
	}
	if got := a.view.bucketAt(drag.Point{X: 500, Y: 10}); got != "" {
		t.Errorf("Expected no column past the board, got %q", got)
	}
}

func TestMouseDragCommits(t *testing.T) {
	t1 := task("t1", "Acme", models.StatusPending)
	t1.AssignedTo = "admin"
	a, backend := newTestApp(t, t1)

	mouse(a, tea.MouseLeft, columnX(colPending), cardTop)
	mouse(a, tea.MouseMotion, columnX(colProgress), cardTop+2)
	if a.drag.State() != drag.Dragging || a.drag.Target() != models.Bucket(models.StatusInProgress) {
		t.Fatalf("Expected dragging over in_progress, got %s over %q", a.drag.State(), a.drag.Target())
	}
	mouse(a, tea.MouseRelease, columnX(colProgress), cardTop+2)

	if len(backend.writes) != 1 || backend.writes[0].Status != models.StatusInProgress {
		t.Fatalf("Expected one in_progress write, got %+v", backend.writes)
	}
	if a.msgIsErr || !strings.Contains(a.message, "In Progress") {
		t.Errorf("Unexpected message %q", a.message)
	}
}

func TestMouseClickOpensDetail(t *testing.T) {
	a, backend := newTestApp(t, task("t1", "Acme", models.StatusPending))
	backend.history = []models.PDREntry{{ID: "p1", Action: "task.create", Outcome: "success", TaskID: "t1"}}

	mouse(a, tea.MouseLeft, columnX(colPending), cardTop)
	cmd := mouse(a, tea.MouseRelease, columnX(colPending), cardTop)
	if a.mode != "detail" {
		t.Fatalf("Expected detail mode after click, got %s", a.mode)
	}
	run(a, cmd)
	if len(a.history) != 1 {
		t.Errorf("Expected history to load, got %d entries", len(a.history))
	}
	if sel, ok := a.session.Selected(); !ok || sel.ID != "t1" {
		t.Errorf("Expected t1 selected, got %v %+v", ok, sel)
	}

	press(a, "esc")
	if a.mode != "board" {
		t.Errorf("Expected board mode after esc, got %s", a.mode)
	}
	if _, ok := a.session.Selected(); ok {
		t.Error("Expected selection cleared")
	}
}

func TestRejectedDropWritesNothing(t *testing.T) {
	a, backend := newTestApp(t, task("t1", "Acme", models.StatusPending))

	press(a, "right")
	press(a, " ", "right", "enter")

	if len(backend.writes) != 0 {
		t.Errorf("Expected no writes, got %+v", backend.writes)
	}
	if !a.msgIsErr || !strings.Contains(a.message, "accept") {
		t.Errorf("Expected assignee error, got %q", a.message)
	}
	if a.drag.State() != drag.Idle {
		t.Errorf("Expected idle, got %s", a.drag.State())
	}
}

func TestKeyboardCompletionNeedsConfirmation(t *testing.T) {
	t2 := task("t2", "Acme", models.StatusApproved)
	t2.OrderNumber = "PO-7"
	a, backend := newTestApp(t, t2)

	for i := 0; i < colApproved; i++ {
		press(a, "right")
	}
	press(a, " ", "right", "enter")
	if a.drag.State() != drag.Confirming {
		t.Fatalf("Expected confirmation step, got %s (%s)", a.drag.State(), a.message)
	}
	press(a, "n")
	if len(backend.writes) != 0 || a.drag.State() != drag.Idle {
		t.Fatalf("Expected cancel without write, got %+v", backend.writes)
	}

	press(a, " ", "right", "enter", "y")
	if len(backend.writes) != 1 {
		t.Fatalf("Expected one write after confirm, got %d", len(backend.writes))
	}
	if w := backend.writes[0]; w.Status != models.StatusCompleted || w.CompletedAt == nil {
		t.Errorf("Expected completed write with completed_at, got %+v", w)
	}
}

func TestMissingOrderNumberOpensPrompt(t *testing.T) {
	a, backend := newTestApp(t, task("t2", "Acme", models.StatusApproved))

	for i := 0; i < colApproved; i++ {
		press(a, "right")
	}
	press(a, " ", "right", "enter")
	if !a.cmdbar.Active() || a.cmdbar.Kind() != promptOrder || a.cmdbar.TaskID() != "t2" {
		t.Fatalf("Expected order prompt for t2, got %q %q", a.cmdbar.Kind(), a.cmdbar.TaskID())
	}

	press(a, "PO-42", "enter")
	if got := backend.find("t2").OrderNumber; got != "PO-42" {
		t.Errorf("Expected order number PO-42, got %q", got)
	}
	if len(backend.writes) != 0 {
		t.Errorf("Expected no status write, got %+v", backend.writes)
	}
}

func TestDuplicateOrderNumberPrefillsPrompt(t *testing.T) {
	done := task("t3", "Globex", models.StatusCompleted)
	done.OrderNumber = "PO-42"
	t2 := task("t2", "Acme", models.StatusApproved)
	t2.OrderNumber = "PO-42"
	a, _ := newTestApp(t, t2, done)

	for i := 0; i < colApproved; i++ {
		press(a, "right")
	}
	press(a, " ", "right", "enter")
	if a.cmdbar.Kind() != promptOrder || a.cmdbar.Value() != "PO-42" {
		t.Fatalf("Expected prefilled order prompt, got %q %q", a.cmdbar.Kind(), a.cmdbar.Value())
	}
	if !strings.Contains(a.message, "t3") {
		t.Errorf("Expected conflicting task in message, got %q", a.message)
	}
}

func TestSearchPromptFiltersLive(t *testing.T) {
	a, _ := newTestApp(t, task("t1", "Acme", models.StatusPending), task("t2", "Globex", models.StatusPending))

	press(a, "/", "glo")
	if got := a.view.board.Len(); got != 1 {
		t.Errorf("Expected 1 match while typing, got %d", got)
	}
	press(a, "esc")
	if got := a.view.board.Len(); got != 2 {
		t.Errorf("Expected search cleared on esc, got %d", got)
	}
}

func TestCommands(t *testing.T) {
	a, backend := newTestApp(t, task("t1", "Acme", models.StatusPending))

	press(a, ":", "sort customer_name", "enter")
	if a.sortBy != board.SortCustomerName {
		t.Errorf("Expected customer_name sort, got %s", a.sortBy)
	}

	press(a, ":", "add Initech | Hoodies", "enter")
	if len(backend.created) != 1 {
		t.Fatalf("Expected one created task, got %d", len(backend.created))
	}
	if in := backend.created[0]; in.CustomerName != "Initech" || in.Title != "Hoodies" || in.CreatedBy != "admin" {
		t.Errorf("Unexpected new task %+v", in)
	}

	press(a, ":", "priority urgent", "enter")
	if a.filters.Priority != models.PriorityUrgent {
		t.Errorf("Expected urgent filter, got %q", a.filters.Priority)
	}
	press(a, ":", "clear", "enter")
	if !a.filters.IsZero() {
		t.Errorf("Expected filters cleared, got %+v", a.filters)
	}
}

func TestMoveCommandForLogoTask(t *testing.T) {
	t1 := task("t1", "Acme", models.StatusPending)
	t1.NeedsLogo = true
	t1.LogoAction = models.LogoActionSent
	a, backend := newTestApp(t, t1)

	press(a, "right")
	press(a, " ", "right", "enter")
	if len(backend.writes) != 0 || !a.msgIsErr || !strings.Contains(a.message, "logo") {
		t.Fatalf("Expected logo rejection without write, got %q %+v", a.message, backend.writes)
	}

	press(a, ":", "move approved", "enter")
	if len(backend.writes) != 1 || backend.writes[0].Status != models.StatusApproved {
		t.Fatalf("Expected one approved write, got %+v", backend.writes)
	}

	press(a, ":", "move nowhere", "enter")
	if a.message != "Usage: move <column>" {
		t.Errorf("Expected usage message, got %q", a.message)
	}
}

func TestCommandSuggestionsComplete(t *testing.T) {
	a, _ := newTestApp(t)

	press(a, ":", "pri")
	sel := a.suggestions.Selected()
	if sel == nil || sel.Text != "priority" {
		t.Fatalf("Expected priority suggestion, got %+v", sel)
	}
	_, _ = a.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := a.cmdbar.Value(); got != "priority " {
		t.Errorf("Expected completed command, got %q", got)
	}
}

func TestSideChannelKeys(t *testing.T) {
	logo := task("t1", "Acme", models.StatusPending)
	logo.NeedsLogo = true
	logo.LogoAction = models.LogoActionWaitingClient
	a, backend := newTestApp(t, logo, task("t2", "Globex", models.StatusPending))

	// Cursor starts in the logo column.
	press(a, "l")
	if got := backend.find("t1").LogoAction; got != models.LogoActionSent {
		t.Errorf("Expected logo sent, got %s", got)
	}

	press(a, "right", "a")
	if got := backend.find("t2").AssignedTo; got != "admin" {
		t.Errorf("Expected t2 accepted by admin, got %q", got)
	}

	press(a, "c", "wrong colour", "enter")
	if len(backend.requests) != 1 || backend.requests[0] != "t2:wrong colour" {
		t.Errorf("Unexpected change requests %v", backend.requests)
	}
}

func TestReloadKeepsCursorOnCard(t *testing.T) {
	a, backend := newTestApp(t, task("t1", "Acme", models.StatusPending))
	press(a, "right")
	if got, _ := a.cursorTask(); got.ID != "t1" {
		t.Fatalf("Expected cursor on t1, got %q", got.ID)
	}

	backend.mu.Lock()
	newer := task("t0", "Zeta", models.StatusPending)
	newer.UpdatedAt = time.Now()
	backend.tasks = append(backend.tasks, newer)
	backend.mu.Unlock()
	reload(t, a)

	if got, _ := a.cursorTask(); got.ID != "t1" {
		t.Errorf("Expected cursor to follow t1, got %q", got.ID)
	}
}

func TestViewRenders(t *testing.T) {
	a, _ := newTestApp(t, task("t1", "Acme", models.StatusPending))
	out := a.View()
	for _, want := range []string{"DESIGNBOARD", "Pending (1)", "Acme", "Tasks: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestBellCues(t *testing.T) {
	var buf bytes.Buffer
	cues := newBellCues(&buf, true)
	cues.NewCard("t1")
	cues.StatusChanged("t1")
	if buf.String() != "\a\a\a" {
		t.Errorf("Expected three bells, got %q", buf.String())
	}

	buf.Reset()
	muted := newBellCues(&buf, false)
	muted.NewCard("t1")
	if buf.Len() != 0 {
		t.Errorf("Expected muted cues, got %q", buf.String())
	}
}
