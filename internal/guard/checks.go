package guard

import (
	"strings"

	"github.com/fentz26/designboard/internal/models"
)

// Guard names, in pipeline order.
const (
	CheckVirtualColumn     = "forbidden_virtual_column"
	CheckLogoBypass        = "forbidden_logo_bypass"
	CheckOpenChangeRequest = "open_change_request"
	CheckApprovalAssignee  = "approval_assignee"
	CheckApprovalMockup    = "approval_mockup"
	CheckProgressAssignee  = "progress_assignee"
	CheckTerminalStatus    = "terminal_status"
	CheckCompletedEntry    = "completed_entry"
)

var pipeline = []Check{
	{
		Name: CheckVirtualColumn,
		Eval: func(req Request, _ Facts) (Result, bool) {
			if req.Target.IsVirtual() {
				return reject(ForbiddenVirtualColumn, "cards cannot be dropped on the logo column"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckLogoBypass,
		Eval: func(req Request, _ Facts) (Result, bool) {
			if req.Origin == OriginDrag && req.Task.NeedsLogo {
				return reject(ForbiddenLogoBypass, "logo tasks cannot be dragged; use the move command"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckOpenChangeRequest,
		Eval: func(req Request, facts Facts) (Result, bool) {
			if req.Target == models.Bucket(models.StatusChangesRequested) && !facts.HasOpenChangeRequest(req.Task.ID) {
				return reject(NoOpenChangeRequest, "register a change request before moving to changes requested"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckApprovalAssignee,
		Eval: func(req Request, _ Facts) (Result, bool) {
			if req.Target == models.Bucket(models.StatusAwaitingApproval) && !req.Task.IsAssigned() {
				return reject(MissingAssignee, "a designer must accept the task before it goes to approval"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckApprovalMockup,
		Eval: func(req Request, _ Facts) (Result, bool) {
			if req.Target == models.Bucket(models.StatusAwaitingApproval) && len(req.Task.DesignFiles) == 0 {
				return reject(MissingMockup, "attach at least one mockup before sending to approval"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckProgressAssignee,
		Eval: func(req Request, _ Facts) (Result, bool) {
			if req.Target == models.Bucket(models.StatusInProgress) && !req.Task.IsAssigned() {
				return reject(MissingAssignee, "accept the task before starting it"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckTerminalStatus,
		Eval: func(req Request, _ Facts) (Result, bool) {
			if req.Task.Status == models.StatusCompleted && req.Target != models.Bucket(models.StatusCompleted) {
				return reject(TerminalStatus, "completed tasks cannot be reopened"), true
			}
			return Result{}, false
		},
	},
	{
		Name: CheckCompletedEntry,
		Eval: func(req Request, facts Facts) (Result, bool) {
			if req.Target != models.Bucket(models.StatusCompleted) {
				return Result{}, false
			}
			order := strings.TrimSpace(req.Task.OrderNumber)
			if order == "" {
				return abort(&Abort{
					Kind:    MissingOrderNumber,
					Message: "an order number is required to complete the task",
				}), true
			}
			if other, ok := facts.CompletedWithOrderNumber(order, req.Task.ID); ok {
				return abort(&Abort{
					Kind:           DuplicateOrderNumber,
					OrderNumber:    order,
					ConflictTaskID: other,
					Message:        "order number " + order + " is already used by a completed task",
				}), true
			}
			res := allow(CheckCompletedEntry, req.Target)
			res.NeedsConfirmation = true
			return res, true
		},
	},
}

func reject(kind ViolationKind, msg string) Result {
	return Result{Decision: Reject, Violation: &Violation{Kind: kind, Message: msg}}
}

func abort(a *Abort) Result {
	return Result{Decision: Aborted, Abort: a}
}

func allow(name string, target models.Bucket) Result {
	effects := []Effect{EffectRefreshTimer}
	if target == models.Bucket(models.StatusCompleted) {
		effects = append(effects, EffectSetCompletedAt)
	} else {
		effects = append(effects, EffectClearCompletedAt)
	}
	effects = append(effects, EffectPlayStatusChangedCue)
	return Result{Decision: Allow, Guard: name, Effects: effects}
}
