// Package controlplane provides the HTTP API and service layer for designboard.
package controlplane

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/designboard/internal/audit"
	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
	"github.com/fentz26/designboard/internal/store"
)

// Actors resolves actor ids. *config.Config satisfies it.
type Actors interface {
	LookupActor(id string) (models.Actor, error)
}

type actorKey struct{}

// WithActor tags ctx with the acting operator's id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorID returns the id set by WithActor.
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

// Service provides the control plane business logic.
type Service struct {
	store  *store.Store
	pdr    *audit.PDRWriter
	actors Actors
	engine *guard.Engine
	now    func() time.Time
}

// NewService creates a new control plane service.
func NewService(s *store.Store, pdr *audit.PDRWriter, actors Actors) *Service {
	return &Service{
		store:  s,
		pdr:    pdr,
		actors: actors,
		engine: guard.NewEngine(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Actor resolves a configured actor.
func (s *Service) Actor(id string) (models.Actor, error) {
	if id == "" {
		return models.Actor{}, ErrNoActor
	}
	return s.actors.LookupActor(id)
}

func (s *Service) record(ctx context.Context, action string, inputs any, outcome, taskID string) {
	s.pdr.Record(ctx, action, inputs, outcome, taskID, ActorID(ctx), "")
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- Task Operations ---

// CreateTask creates a Pending task.
func (s *Service) CreateTask(ctx context.Context, in store.NewTask) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.CustomerName) == "" {
		return nil, fmt.Errorf("%w: title or customer name required", ErrInvalidInput)
	}
	if in.CreatedBy == "" {
		in.CreatedBy = ActorID(ctx)
	}
	switch in.Priority {
	case "", models.PriorityNormal, models.PriorityUrgent:
	default:
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidInput, in.Priority)
	}
	task, err := s.store.CreateTask(ctx, in)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "task.create", in, "success", task.ID)
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks returns filtered tasks.
func (s *Service) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	return s.store.ListTasks(ctx, f)
}

// Snapshot returns every live task and open change request.
func (s *Service) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.store.Snapshot(ctx)
}

// UpdateStatus writes a transition a client has already guarded.
func (s *Service) UpdateStatus(ctx context.Context, taskID string, change models.StatusChange) error {
	if err := s.store.UpdateStatus(ctx, taskID, change); err != nil {
		s.record(ctx, "task.status", change, "error", taskID)
		return err
	}
	s.record(ctx, "task.status", change, "success", taskID)
	return nil
}

// Transition guards and writes a status change for command clients. Facts
// are read from the store before the guard runs.
func (s *Service) Transition(ctx context.Context, actorID, taskID string, target models.Bucket, confirmed bool) (guard.Result, error) {
	actor, err := s.Actor(actorID)
	if err != nil {
		return guard.Result{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return guard.Result{}, err
	}
	facts, err := s.loadFacts(ctx, task)
	if err != nil {
		return guard.Result{}, err
	}

	res := s.engine.Evaluate(guard.Request{Task: task, Actor: actor, Target: target, Origin: guard.OriginCommand}, facts)
	inputs := map[string]any{"target": target, "confirmed": confirmed, "from": task.Status}
	if !res.Allowed() {
		s.record(ctx, "task.transition", inputs, res.Decision.String()+":"+res.Guard, taskID)
		return res, res.Err()
	}
	if res.NeedsConfirmation && !confirmed {
		return res, ErrConfirmationRequired
	}

	status, _ := target.Status()
	change := guard.ApplyEffects(status, res.Effects, s.now())
	change.ExpectedRevision = task.Revision
	if err := s.store.UpdateStatus(ctx, taskID, change); err != nil {
		s.record(ctx, "task.transition", inputs, "error", taskID)
		return res, err
	}
	s.record(ctx, "task.transition", inputs, "success", taskID)
	return res, nil
}

// commandFacts holds guard facts read up front.
type commandFacts struct {
	taskID      string
	openRequest bool
	order       string
	conflictID  string
}

func (f commandFacts) HasOpenChangeRequest(taskID string) bool {
	return taskID == f.taskID && f.openRequest
}

func (f commandFacts) CompletedWithOrderNumber(orderNumber, excludeID string) (string, bool) {
	if f.conflictID == "" || f.conflictID == excludeID || strings.TrimSpace(orderNumber) != f.order {
		return "", false
	}
	return f.conflictID, true
}

func (s *Service) loadFacts(ctx context.Context, task *models.Task) (commandFacts, error) {
	f := commandFacts{taskID: task.ID, order: strings.TrimSpace(task.OrderNumber)}
	open, err := s.store.HasOpenChangeRequest(ctx, task.ID)
	if err != nil {
		return f, err
	}
	f.openRequest = open
	if f.order != "" {
		dup, err := s.store.FindCompletedByOrderNumber(ctx, f.order, task.ID)
		if err != nil {
			return f, err
		}
		if dup != nil {
			f.conflictID = dup.ID
		}
	}
	return f, nil
}

// AcceptTask assigns the task to actorID without consulting the guard.
func (s *Service) AcceptTask(ctx context.Context, taskID, actorID string) error {
	if _, err := s.Actor(actorID); err != nil {
		return err
	}
	if err := s.store.AssignTask(ctx, taskID, actorID); err != nil {
		return err
	}
	s.record(ctx, "task.accept", map[string]string{"task_id": taskID, "actor_id": actorID}, "success", taskID)
	return nil
}

// UpdateOrderNumber sets the production order code.
func (s *Service) UpdateOrderNumber(ctx context.Context, taskID, orderNumber string) error {
	if err := s.store.UpdateOrderNumber(ctx, taskID, orderNumber); err != nil {
		return err
	}
	s.record(ctx, "task.order_number", map[string]string{"order_number": orderNumber}, "success", taskID)
	return nil
}

// SendToDesigner marks the client's logo as sent, which takes the task out
// of the logo column.
func (s *Service) SendToDesigner(ctx context.Context, taskID string) error {
	if err := s.store.SetLogoAction(ctx, taskID, models.LogoActionSent); err != nil {
		return err
	}
	s.record(ctx, "task.send_to_designer", map[string]string{"task_id": taskID}, "success", taskID)
	return nil
}

// SetDesignFiles replaces the mockup references on a task.
func (s *Service) SetDesignFiles(ctx context.Context, taskID string, files []string) error {
	clean := make([]string, 0, len(files))
	for _, f := range files {
		if f = strings.TrimSpace(f); f != "" {
			clean = append(clean, f)
		}
	}
	if err := s.store.SetDesignFiles(ctx, taskID, clean); err != nil {
		return err
	}
	s.record(ctx, "task.design_files", clean, "success", taskID)
	return nil
}

// DeleteTask soft-deletes a task. Only admins may do it.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	actor, err := s.Actor(ActorID(ctx))
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.store.SoftDeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.record(ctx, "task.delete", map[string]string{"task_id": taskID}, "success", taskID)
	return nil
}

// --- Change Request Operations ---

// RequestChange opens a change request on a task.
func (s *Service) RequestChange(ctx context.Context, taskID, description string) (*models.ChangeRequest, error) {
	cr, err := s.store.CreateChangeRequest(ctx, taskID, description, ActorID(ctx))
	if err != nil {
		return nil, err
	}
	s.record(ctx, "change_request.create", map[string]string{"description": description}, "success", taskID)
	return cr, nil
}

// ResolveChangeRequest closes a change request.
func (s *Service) ResolveChangeRequest(ctx context.Context, id string) error {
	if err := s.store.ResolveChangeRequest(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "change_request.resolve", map[string]string{"id": id}, "success", "")
	return nil
}

// History returns the decision records for a task.
func (s *Service) History(ctx context.Context, taskID string) ([]models.PDREntry, error) {
	return s.store.ListPDR(ctx, taskID)
}
