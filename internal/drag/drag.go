// Package drag turns pointer gestures on the board into at most one guarded
// status write.
package drag

import (
	"context"
	"errors"
	"fmt"

	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
)

// ErrTaskNotFound is returned when a gesture starts on an unknown card.
var ErrTaskNotFound = errors.New("task not on board")

// Board is the slice of the sync controller a drag needs.
type Board interface {
	Task(id string) (models.Task, bool)
	Evaluate(taskID string, target models.Bucket, origin guard.Origin) (guard.Result, error)
	SetStatus(ctx context.Context, taskID string, target models.Status, effects []guard.Effect) error
}

// State of the gesture.
type State int

const (
	Idle State = iota
	Pressed
	Dragging
	Confirming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	case Confirming:
		return "confirming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Point is a pointer position in cells.
type Point struct {
	X, Y int
}

// OutcomeKind says what a gesture ended in.
type OutcomeKind int

const (
	// NoOp covers drops outside any column or back onto the origin column.
	NoOp OutcomeKind = iota
	// Click is a press released before the drag threshold.
	Click
	Rejected
	Aborted
	AwaitingConfirmation
	Committed
	Failed
	Cancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case NoOp:
		return "noop"
	case Click:
		return "click"
	case Rejected:
		return "rejected"
	case Aborted:
		return "aborted"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome reports the end of a gesture.
type Outcome struct {
	Kind   OutcomeKind
	TaskID string
	Target models.Bucket
	Result guard.Result
	Err    error
}

// Controller is the gesture state machine. It is not safe for concurrent
// use; the presentation loop owns it.
type Controller struct {
	board     Board
	threshold int

	state    State
	taskID   string
	origin   models.Bucket
	start    Point
	pos      Point
	target   models.Bucket
	snapshot models.Task
	via      guard.Origin
}

// New creates a controller. A drag starts once the pointer travels more
// than threshold cells from where it was pressed.
func New(b Board, threshold int) *Controller {
	if threshold < 0 {
		threshold = 0
	}
	return &Controller{board: b, threshold: threshold}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Target returns the column under the pointer while dragging.
func (c *Controller) Target() models.Bucket { return c.target }

// TaskID returns the card the gesture is about.
func (c *Controller) TaskID() string { return c.taskID }

// PointerDown presses on a card. Presses while another gesture is active
// are ignored.
func (c *Controller) PointerDown(taskID string, p Point) error {
	if c.state != Idle {
		return nil
	}
	task, ok := c.board.Task(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	c.state = Pressed
	c.taskID = taskID
	c.origin = task.Bucket()
	c.start, c.pos = p, p
	c.target = ""
	return nil
}

// Lift picks a card up directly, skipping the threshold. Keyboard input
// uses it.
func (c *Controller) Lift(taskID string) error {
	if err := c.PointerDown(taskID, Point{}); err != nil {
		return err
	}
	if c.state == Pressed {
		c.beginDrag()
	}
	return nil
}

// PointerMove tracks the pointer. Travel beyond the threshold turns a
// press into a drag.
func (c *Controller) PointerMove(p Point) {
	switch c.state {
	case Pressed:
		c.pos = p
		if exceeds(c.start, p, c.threshold) {
			c.beginDrag()
		}
	case Dragging:
		c.pos = p
	}
}

func (c *Controller) beginDrag() {
	task, ok := c.board.Task(c.taskID)
	if !ok {
		c.reset()
		return
	}
	c.snapshot = task
	c.state = Dragging
}

func exceeds(a, b Point, threshold int) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	return dx*dx+dy*dy > threshold*threshold
}

// Hover sets the candidate drop column. An empty bucket means no column.
func (c *Controller) Hover(b models.Bucket) {
	if c.state == Dragging {
		c.target = b
	}
}

// Overlay returns the card snapshot taken when the drag began and the
// pointer position.
func (c *Controller) Overlay() (models.Task, Point, bool) {
	if c.state != Dragging {
		return models.Task{}, Point{}, false
	}
	return c.snapshot, c.pos, true
}

// Release drops the card. The guard runs synchronously; only an allowed
// result reaches the store, and entering Completed waits for Confirm.
func (c *Controller) Release(ctx context.Context) Outcome {
	switch c.state {
	case Pressed:
		out := Outcome{Kind: Click, TaskID: c.taskID}
		c.reset()
		return out
	case Dragging:
	default:
		return Outcome{Kind: NoOp}
	}

	taskID, target := c.taskID, c.target
	if target == "" || target == c.origin {
		c.reset()
		return Outcome{Kind: NoOp, TaskID: taskID, Target: target}
	}

	out := c.propose(ctx, taskID, target)
	if out.Kind == AwaitingConfirmation {
		c.state = Confirming
		return out
	}
	c.reset()
	return out
}

// Confirm commits a pending move into Completed. The guard is evaluated
// again against the current list first.
func (c *Controller) Confirm(ctx context.Context) Outcome {
	if c.state != Confirming {
		return Outcome{Kind: NoOp}
	}
	taskID, target, via := c.taskID, c.target, c.via
	c.reset()

	res, err := c.board.Evaluate(taskID, target, via)
	if err != nil {
		return Outcome{Kind: Failed, TaskID: taskID, Target: target, Err: err}
	}
	if !res.Allowed() {
		return verdict(taskID, target, res)
	}
	return c.commit(ctx, taskID, target, res)
}

// Move proposes a typed move of a card into target. It goes through the
// same guard pipeline as a drop but as an explicit command, so a task
// waiting on a logo can still be moved. Entering Completed waits for
// Confirm.
func (c *Controller) Move(ctx context.Context, taskID string, target models.Bucket) Outcome {
	if c.state != Idle {
		return Outcome{Kind: NoOp}
	}
	task, ok := c.board.Task(taskID)
	if !ok {
		return Outcome{Kind: Failed, TaskID: taskID, Target: target, Err: ErrTaskNotFound}
	}
	if target == "" || target == task.Bucket() {
		return Outcome{Kind: NoOp, TaskID: taskID, Target: target}
	}
	c.taskID, c.origin, c.target = taskID, task.Bucket(), target
	c.via = guard.OriginCommand

	out := c.propose(ctx, taskID, target)
	if out.Kind == AwaitingConfirmation {
		c.state = Confirming
		return out
	}
	c.reset()
	return out
}

// Cancel abandons the gesture. Declining a completion reports
// guard.ErrConfirmationAborted.
func (c *Controller) Cancel() Outcome {
	state, taskID, target := c.state, c.taskID, c.target
	c.reset()
	if state == Confirming {
		return Outcome{Kind: Cancelled, TaskID: taskID, Target: target, Err: guard.ErrConfirmationAborted}
	}
	return Outcome{Kind: NoOp, TaskID: taskID}
}

func (c *Controller) propose(ctx context.Context, taskID string, target models.Bucket) Outcome {
	res, err := c.board.Evaluate(taskID, target, c.via)
	if err != nil {
		return Outcome{Kind: Failed, TaskID: taskID, Target: target, Err: err}
	}
	if !res.Allowed() {
		return verdict(taskID, target, res)
	}
	if res.NeedsConfirmation {
		return Outcome{Kind: AwaitingConfirmation, TaskID: taskID, Target: target, Result: res}
	}
	return c.commit(ctx, taskID, target, res)
}

func (c *Controller) commit(ctx context.Context, taskID string, target models.Bucket, res guard.Result) Outcome {
	status, ok := target.Status()
	if !ok {
		return Outcome{Kind: Failed, TaskID: taskID, Target: target, Result: res,
			Err: fmt.Errorf("%s is not a persisted status", target)}
	}
	if err := c.board.SetStatus(ctx, taskID, status, res.Effects); err != nil {
		return Outcome{Kind: Failed, TaskID: taskID, Target: target, Result: res, Err: err}
	}
	return Outcome{Kind: Committed, TaskID: taskID, Target: target, Result: res}
}

func verdict(taskID string, target models.Bucket, res guard.Result) Outcome {
	kind := Rejected
	if res.Decision == guard.Aborted {
		kind = Aborted
	}
	return Outcome{Kind: kind, TaskID: taskID, Target: target, Result: res, Err: res.Err()}
}

func (c *Controller) reset() {
	c.state = Idle
	c.taskID = ""
	c.origin = ""
	c.target = ""
	c.snapshot = models.Task{}
	c.start, c.pos = Point{}, Point{}
	c.via = guard.OriginDrag
}
