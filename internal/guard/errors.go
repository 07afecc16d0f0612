package guard

import (
	"errors"
	"fmt"
)

// ViolationKind names a hard precondition failure.
type ViolationKind string

const (
	MissingAssignee        ViolationKind = "missing_assignee"
	MissingMockup          ViolationKind = "missing_mockup"
	NoOpenChangeRequest    ViolationKind = "no_open_change_request"
	TerminalStatus         ViolationKind = "terminal_status"
	ForbiddenVirtualColumn ViolationKind = "forbidden_virtual_column"
	ForbiddenLogoBypass    ViolationKind = "forbidden_logo_bypass"
)

// Violation is returned when a guard rejects a transition. The user has to
// satisfy the precondition and retry the gesture.
type Violation struct {
	Kind    ViolationKind
	Guard   string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("transition rejected (%s): %s", v.Kind, v.Message)
}

// AbortKind names a recoverable side-flow.
type AbortKind string

const (
	MissingOrderNumber   AbortKind = "missing_order_number"
	DuplicateOrderNumber AbortKind = "duplicate_order_number"
)

// Abort stops a transition into a resolution flow instead of failing it.
type Abort struct {
	Kind           AbortKind
	OrderNumber    string
	ConflictTaskID string
	Message        string
}

func (a *Abort) Error() string {
	return fmt.Sprintf("transition needs resolution (%s): %s", a.Kind, a.Message)
}

// ErrConfirmationAborted means the operator declined to confirm completion.
var ErrConfirmationAborted = errors.New("completion not confirmed")

// IsViolation reports whether err is a guard violation of the given kind.
// An empty kind matches any violation.
func IsViolation(err error, kind ViolationKind) bool {
	var v *Violation
	if !errors.As(err, &v) {
		return false
	}
	return kind == "" || v.Kind == kind
}

// IsAbort reports whether err is a recoverable abort of the given kind.
// An empty kind matches any abort.
func IsAbort(err error, kind AbortKind) bool {
	var a *Abort
	if !errors.As(err, &a) {
		return false
	}
	return kind == "" || a.Kind == kind
}
