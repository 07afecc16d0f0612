package session

import (
	"context"

	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
)

// Evaluate runs the guard pipeline for moving taskID to target, using the
// current list and facts. It performs no I/O.
func (c *Controller) Evaluate(taskID string, target models.Bucket, origin guard.Origin) (guard.Result, error) {
	task, ok := c.Task(taskID)
	if !ok {
		return guard.Result{}, ErrTaskNotFound
	}
	return c.engine.Evaluate(guard.Request{
		Task:   &task,
		Actor:  c.actor,
		Target: target,
		Origin: origin,
	}, c.Facts()), nil
}

// SetStatus writes an allowed transition. It issues exactly one store call
// and does not touch the local list. The status-changed cue plays only
// after the write succeeds.
func (c *Controller) SetStatus(ctx context.Context, taskID string, target models.Status, effects []guard.Effect) error {
	change := guard.ApplyEffects(target, effects, c.now())
	if task, ok := c.Task(taskID); ok {
		change.ExpectedRevision = task.Revision
	}
	if err := c.store.UpdateStatus(ctx, taskID, change); err != nil {
		c.logger.Printf("Status write for %s failed: %v", taskID, err)
		return &PersistenceError{Op: "set_status", TaskID: taskID, Err: err}
	}
	for _, e := range effects {
		if e == guard.EffectPlayStatusChangedCue {
			c.cues.StatusChanged(taskID)
			break
		}
	}
	return nil
}

// AcceptTask assigns the task to the session's actor. It bypasses the
// guard pipeline.
func (c *Controller) AcceptTask(ctx context.Context, taskID string) error {
	if err := c.store.AcceptTask(ctx, taskID, c.actor.ID); err != nil {
		return &PersistenceError{Op: "accept_task", TaskID: taskID, Err: err}
	}
	return nil
}

// UpdateOrderNumber sets the production order code.
func (c *Controller) UpdateOrderNumber(ctx context.Context, taskID, orderNumber string) error {
	if err := c.store.UpdateOrderNumber(ctx, taskID, orderNumber); err != nil {
		return &PersistenceError{Op: "update_order_number", TaskID: taskID, Err: err}
	}
	return nil
}

// SendToDesigner releases a task from the logo column.
func (c *Controller) SendToDesigner(ctx context.Context, taskID string) error {
	if err := c.store.SendToDesigner(ctx, taskID); err != nil {
		return &PersistenceError{Op: "send_to_designer", TaskID: taskID, Err: err}
	}
	return nil
}
