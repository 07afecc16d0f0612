package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recorder) Publish(ev feed.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []feed.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]feed.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	// Create
	task, err := s.CreateTask(ctx, NewTask{Title: "Team shirts", CustomerName: "Acme", CreatedBy: "sam", Quantity: 12})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %s", task.Status)
	}
	if task.Priority != models.PriorityNormal {
		t.Errorf("Expected default priority normal, got %s", task.Priority)
	}

	// Get
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.CustomerName != "Acme" || got.Quantity != 12 || got.Revision != 1 {
		t.Errorf("Unexpected task %+v", got)
	}
	if got.DesignFiles == nil {
		t.Error("Expected empty design files slice, got nil")
	}

	// List with filter
	tasks, err := s.ListTasks(ctx, TaskFilter{Status: models.StatusPending})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected 1 pending task, got %d", len(tasks))
	}
	tasks, _ = s.ListTasks(ctx, TaskFilter{Status: models.StatusCompleted})
	if len(tasks) != 0 {
		t.Errorf("Expected 0 completed tasks, got %d", len(tasks))
	}
	tasks, _ = s.ListTasks(ctx, TaskFilter{CreatedBy: "someone-else"})
	if len(tasks) != 0 {
		t.Errorf("Expected 0 tasks for other creator, got %d", len(tasks))
	}

	if _, err := s.CreateTask(ctx, NewTask{Title: "no owner"}); err == nil {
		t.Error("Expected error when created_by is missing")
	}
}

func TestCreateTaskWithLogo(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	task, err := s.CreateTask(context.Background(), NewTask{Title: "Caps", CreatedBy: "sam", NeedsLogo: true})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.LogoAction != models.LogoActionWaitingClient {
		t.Errorf("Expected waiting_client, got %s", task.LogoAction)
	}
	if task.Bucket() != models.BucketLogoNeeded {
		t.Errorf("Expected logo bucket, got %s", task.Bucket())
	}
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "Hoodies", CreatedBy: "sam"})
	changed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := s.UpdateStatus(ctx, task.ID, models.StatusChange{
		Status:          models.StatusCompleted,
		StatusChangedAt: changed,
		CompletedAt:     &changed,
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, _ := s.GetTask(ctx, task.ID)
	if got.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if !got.StatusChangedAt.Equal(changed) {
		t.Errorf("Expected status_changed_at %v, got %v", changed, got.StatusChangedAt)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(changed) {
		t.Errorf("Expected completed_at %v, got %v", changed, got.CompletedAt)
	}
	if got.Revision != 2 {
		t.Errorf("Expected revision 2, got %d", got.Revision)
	}

	// Completed is terminal.
	err = s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusApproved})
	if !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("Expected ErrTerminalStatus, got %v", err)
	}
	got, _ = s.GetTask(ctx, task.ID)
	if got.Status != models.StatusCompleted || got.CompletedAt == nil || got.Revision != 2 {
		t.Errorf("Expected completed task untouched, got %s completed_at=%v revision=%d", got.Status, got.CompletedAt, got.Revision)
	}

	if err := s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: "logo_needed"}); err == nil {
		t.Error("Expected virtual bucket to be rejected as a status")
	}
	if err := s.UpdateStatus(ctx, "missing", models.StatusChange{Status: models.StatusApproved}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateStatusDerivesCompletedAt(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "Caps", CreatedBy: "sam"})
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	// completed_at is ignored for any status other than completed.
	err := s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusPending, StatusChangedAt: now, CompletedAt: &now})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := s.GetTask(ctx, task.ID)
	if got.CompletedAt != nil {
		t.Errorf("Expected no completed_at on a pending task, got %v", got.CompletedAt)
	}

	// Entering completed without a timestamp uses the status change time.
	if err := s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusCompleted, StatusChangedAt: now}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ = s.GetTask(ctx, task.ID)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("Expected completed_at %v, got %v", now, got.CompletedAt)
	}

	// Re-writing completed is allowed and keeps it set.
	if err := s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusCompleted}); err != nil {
		t.Errorf("Expected completed to completed to succeed, got %v", err)
	}
	if err := s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusPending}); !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("Expected ErrTerminalStatus, got %v", err)
	}
	got, _ = s.GetTask(ctx, task.ID)
	if got.Status != models.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("Expected task to stay completed, got %s completed_at=%v", got.Status, got.CompletedAt)
	}
}

func TestStrictWrites(t *testing.T) {
	ctx := context.Background()

	lenient := newTestStore(t)
	defer lenient.Close()
	task, _ := lenient.CreateTask(ctx, NewTask{Title: "lww", CreatedBy: "sam"})
	if err := lenient.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusInProgress, ExpectedRevision: 99}); err != nil {
		t.Errorf("Expected last write to win without strict writes, got %v", err)
	}

	strict := newTestStore(t, WithStrictWrites(true))
	defer strict.Close()
	task, _ = strict.CreateTask(ctx, NewTask{Title: "strict", CreatedBy: "sam"})
	err := strict.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusInProgress, ExpectedRevision: 99})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}
	if err := strict.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusInProgress, ExpectedRevision: 1}); err != nil {
		t.Errorf("Expected matching revision to succeed, got %v", err)
	}
	err = strict.UpdateStatus(ctx, "missing", models.StatusChange{Status: models.StatusInProgress, ExpectedRevision: 1})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestFieldUpdates(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "Jerseys", CreatedBy: "sam", NeedsLogo: true})
	if err := s.AssignTask(ctx, task.ID, "dana"); err != nil {
		t.Fatalf("AssignTask failed: %v", err)
	}
	if err := s.UpdateOrderNumber(ctx, task.ID, "  PO-7 "); err != nil {
		t.Fatalf("UpdateOrderNumber failed: %v", err)
	}
	if err := s.SetLogoAction(ctx, task.ID, models.LogoActionSent); err != nil {
		t.Fatalf("SetLogoAction failed: %v", err)
	}
	if err := s.SetDesignFiles(ctx, task.ID, []string{"front.png", "back.png"}); err != nil {
		t.Fatalf("SetDesignFiles failed: %v", err)
	}
	if err := s.SetLogoAction(ctx, task.ID, "lost"); err == nil {
		t.Error("Expected invalid logo action to fail")
	}

	got, _ := s.GetTask(ctx, task.ID)
	if got.AssignedTo != "dana" {
		t.Errorf("Expected assignee dana, got %q", got.AssignedTo)
	}
	if got.OrderNumber != "PO-7" {
		t.Errorf("Expected trimmed order number, got %q", got.OrderNumber)
	}
	if got.Bucket() != models.Bucket(models.StatusPending) {
		t.Errorf("Expected task to leave logo bucket, got %s", got.Bucket())
	}
	if len(got.DesignFiles) != 2 || got.DesignFiles[1] != "back.png" {
		t.Errorf("Unexpected design files %v", got.DesignFiles)
	}
	if got.Revision != 5 {
		t.Errorf("Expected revision 5 after four writes, got %d", got.Revision)
	}

	if err := s.AssignTask(ctx, "missing", "dana"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "Gone", CreatedBy: "sam"})
	s.CreateChangeRequest(ctx, task.ID, "bigger logo", "sam")

	if err := s.SoftDeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("SoftDeleteTask failed: %v", err)
	}
	if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected deleted task to be hidden, got %v", err)
	}
	if err := s.SoftDeleteTask(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected second delete to fail, got %v", err)
	}
	tasks, _ := s.ListTasks(ctx, TaskFilter{})
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks after delete, got %d", len(tasks))
	}
	open, _ := s.ListOpenChangeRequests(ctx)
	if len(open) != 0 {
		t.Errorf("Expected requests on deleted tasks to be hidden, got %d", len(open))
	}
}

func TestFindCompletedByOrderNumber(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	done, _ := s.CreateTask(ctx, NewTask{Title: "done", CreatedBy: "sam"})
	s.UpdateOrderNumber(ctx, done.ID, "PO-1")
	s.UpdateStatus(ctx, done.ID, models.StatusChange{Status: models.StatusCompleted, CompletedAt: &now})

	other, _ := s.CreateTask(ctx, NewTask{Title: "other", CreatedBy: "sam"})
	s.UpdateOrderNumber(ctx, other.ID, "PO-1")

	dup, err := s.FindCompletedByOrderNumber(ctx, " PO-1 ", other.ID)
	if err != nil {
		t.Fatalf("FindCompletedByOrderNumber failed: %v", err)
	}
	if dup == nil || dup.ID != done.ID {
		t.Errorf("Expected duplicate %s, got %+v", done.ID, dup)
	}

	self, _ := s.FindCompletedByOrderNumber(ctx, "PO-1", done.ID)
	if self != nil {
		t.Errorf("Expected task to be excluded from its own duplicate check, got %s", self.ID)
	}

	s.SoftDeleteTask(ctx, done.ID)
	gone, _ := s.FindCompletedByOrderNumber(ctx, "PO-1", other.ID)
	if gone != nil {
		t.Errorf("Expected deleted task to be ignored, got %s", gone.ID)
	}
}

func TestChangeRequests(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "Polos", CreatedBy: "sam"})
	if open, _ := s.HasOpenChangeRequest(ctx, task.ID); open {
		t.Error("Expected no open change request")
	}

	cr, err := s.CreateChangeRequest(ctx, task.ID, "move logo left", "sam")
	if err != nil {
		t.Fatalf("CreateChangeRequest failed: %v", err)
	}
	if open, _ := s.HasOpenChangeRequest(ctx, task.ID); !open {
		t.Error("Expected open change request")
	}
	list, _ := s.ListOpenChangeRequests(ctx)
	if len(list) != 1 || list[0].Description != "move logo left" {
		t.Errorf("Unexpected open requests %+v", list)
	}

	if err := s.ResolveChangeRequest(ctx, cr.ID); err != nil {
		t.Fatalf("ResolveChangeRequest failed: %v", err)
	}
	if err := s.ResolveChangeRequest(ctx, cr.ID); !errors.Is(err, ErrChangeRequestNotFound) {
		t.Errorf("Expected ErrChangeRequestNotFound, got %v", err)
	}
	if open, _ := s.HasOpenChangeRequest(ctx, task.ID); open {
		t.Error("Expected request to be resolved")
	}

	if _, err := s.CreateChangeRequest(ctx, "missing", "x", "sam"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	a, _ := s.CreateTask(ctx, NewTask{Title: "a", CreatedBy: "sam"})
	s.CreateTask(ctx, NewTask{Title: "b", CreatedBy: "sam"})
	s.CreateChangeRequest(ctx, a.ID, "tweak", "sam")

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Tasks) != 2 {
		t.Errorf("Expected 2 tasks, got %d", len(snap.Tasks))
	}
	if len(snap.OpenChangeRequests) != 1 || snap.OpenChangeRequests[0].TaskID != a.ID {
		t.Errorf("Unexpected open requests %+v", snap.OpenChangeRequests)
	}
	if snap.LoadedAt.IsZero() {
		t.Error("Expected LoadedAt to be set")
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, WithPublisher(rec))
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "feed", CreatedBy: "sam"})
	s.UpdateStatus(ctx, task.ID, models.StatusChange{Status: models.StatusInProgress})
	s.UpdateStatus(ctx, "missing", models.StatusChange{Status: models.StatusInProgress})
	s.SoftDeleteTask(ctx, task.ID)

	want := []feed.Kind{feed.KindInsert, feed.KindUpdate, feed.KindDelete}
	got := rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if rec.events[0].RowID != task.ID || rec.events[0].Table != feed.TableTasks {
		t.Errorf("Unexpected event %+v", rec.events[0])
	}
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	pdr, err := s.WritePDR(ctx, "transition", "abc123", "allow", "task-1", "dana", `{"target":"approved"}`)
	if err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}
	if pdr.ID == "" {
		t.Error("PDR ID should not be empty")
	}
	list, err := s.ListPDR(ctx, "task-1")
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(list) != 1 || list[0].ActorID != "dana" {
		t.Errorf("Unexpected records %+v", list)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath, opts...)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
