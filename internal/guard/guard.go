// Package guard evaluates status transitions against the fixed, ordered
// list of workflow preconditions.
//
// Evaluation is deterministic and has no side effects. Anything the
// pipeline needs beyond the task itself comes through Facts, which callers
// answer from data they already hold, so evaluation always finishes before
// any write is attempted.
package guard

import (
	"fmt"
	"time"

	"github.com/fentz26/designboard/internal/models"
)

// Origin tells the engine where a proposed transition came from.
type Origin int

const (
	// OriginDrag is a card dropped on a column.
	OriginDrag Origin = iota
	// OriginCommand is an explicit command (CLI, API).
	OriginCommand
)

// Request is one proposed transition.
type Request struct {
	Task   *models.Task
	Actor  models.Actor
	Target models.Bucket
	Origin Origin
}

// Facts answers the lookups the pipeline cannot derive from the task.
type Facts interface {
	// HasOpenChangeRequest reports whether taskID has an unresolved request.
	HasOpenChangeRequest(taskID string) bool
	// CompletedWithOrderNumber finds another non-deleted completed task
	// carrying orderNumber, ignoring excludeID.
	CompletedWithOrderNumber(orderNumber, excludeID string) (string, bool)
}

// Decision is the verdict of an evaluation.
type Decision int

const (
	Allow Decision = iota
	Reject
	Aborted
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Reject:
		return "reject"
	case Aborted:
		return "abort"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Effect is a side effect the caller applies together with the write.
type Effect string

const (
	EffectRefreshTimer         Effect = "refresh_timer"
	EffectClearCompletedAt     Effect = "clear_completed_at"
	EffectSetCompletedAt       Effect = "set_completed_at"
	EffectPlayStatusChangedCue Effect = "play_status_changed_cue"
)

// Result is the outcome of Evaluate.
type Result struct {
	Decision Decision
	// Guard names the check that decided the result.
	Guard     string
	Violation *Violation
	Abort     *Abort
	// NeedsConfirmation is set when entering Completed; the write must wait
	// for an explicit human confirmation.
	NeedsConfirmation bool
	Effects           []Effect
}

// Allowed reports whether the transition may be written.
func (r Result) Allowed() bool { return r.Decision == Allow }

// Err returns the typed error for a rejected or aborted result.
func (r Result) Err() error {
	switch r.Decision {
	case Reject:
		return r.Violation
	case Aborted:
		return r.Abort
	default:
		return nil
	}
}

// HasEffect reports whether e is part of the result.
func (r Result) HasEffect(e Effect) bool {
	for _, have := range r.Effects {
		if have == e {
			return true
		}
	}
	return false
}

// Check is a named guard. Eval returns decided=false to pass the request on
// to the next check.
type Check struct {
	Name string
	Eval func(req Request, facts Facts) (res Result, decided bool)
}

// Engine runs checks in order; the first decided result wins.
type Engine struct {
	checks []Check
}

// NewEngine builds the engine with the standard pipeline.
func NewEngine() *Engine {
	checks := make([]Check, len(pipeline))
	copy(checks, pipeline)
	return &Engine{checks: checks}
}

// Checks returns the guard names in evaluation order.
func (e *Engine) Checks() []string {
	names := make([]string, len(e.checks))
	for i, c := range e.checks {
		names[i] = c.Name
	}
	return names
}

// Evaluate runs req through the pipeline. req.Task must not be nil; a nil
// facts value behaves as "no open change requests, no duplicates".
func (e *Engine) Evaluate(req Request, facts Facts) Result {
	if facts == nil {
		facts = noFacts{}
	}
	for _, c := range e.checks {
		if res, decided := c.Eval(req, facts); decided {
			res.Guard = c.Name
			if res.Violation != nil {
				res.Violation.Guard = c.Name
			}
			return res
		}
	}
	return allow("pass_through", req.Target)
}

var defaultEngine = NewEngine()

// Evaluate runs req through the standard pipeline.
func Evaluate(req Request, facts Facts) Result {
	return defaultEngine.Evaluate(req, facts)
}

// Lookup returns the standard check with the given name.
func Lookup(name string) (Check, bool) {
	for _, c := range pipeline {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// ApplyEffects turns allowed effects into the status write.
func ApplyEffects(target models.Status, effects []Effect, now time.Time) models.StatusChange {
	change := models.StatusChange{Status: target}
	for _, e := range effects {
		switch e {
		case EffectRefreshTimer:
			change.StatusChangedAt = now
		case EffectClearCompletedAt:
			change.CompletedAt = nil
		case EffectSetCompletedAt:
			at := now
			change.CompletedAt = &at
		}
	}
	return change
}

type noFacts struct{}

func (noFacts) HasOpenChangeRequest(string) bool                     { return false }
func (noFacts) CompletedWithOrderNumber(string, string) (string, bool) { return "", false }
