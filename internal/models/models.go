// Package models defines the core domain types for designboard.
package models

import (
	"strings"
	"time"
)

// Status is the persisted workflow state of a task.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInProgress       Status = "in_progress"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusCompleted        Status = "completed"
)

// Statuses returns every persisted status in pipeline order.
func Statuses() []Status {
	return []Status{
		StatusPending, StatusInProgress, StatusAwaitingApproval,
		StatusChangesRequested, StatusApproved, StatusCompleted,
	}
}

// IsValid reports whether s is one of the persisted statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusAwaitingApproval,
		StatusChangesRequested, StatusApproved, StatusCompleted:
		return true
	default:
		return false
	}
}

// Bucket is a board column: a persisted status or the virtual logo bucket.
type Bucket string

// BucketLogoNeeded is computed from needsLogo/logoAction and never stored.
const BucketLogoNeeded Bucket = "logo_needed"

// Buckets returns every board column in display order.
func Buckets() []Bucket {
	out := []Bucket{BucketLogoNeeded}
	for _, s := range Statuses() {
		out = append(out, Bucket(s))
	}
	return out
}

// IsVirtual reports whether b exists only on the board.
func (b Bucket) IsVirtual() bool { return b == BucketLogoNeeded }

// Status converts a persisted bucket back to its status.
func (b Bucket) Status() (Status, bool) {
	s := Status(b)
	return s, s.IsValid()
}

// ParseBucket accepts wire names as well as loosely typed column names
// such as "In Progress" or "logo-needed".
func ParseBucket(v string) (Bucket, bool) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, b := range Buckets() {
		if string(b) == norm {
			return b, true
		}
	}
	return "", false
}

// LogoAction tracks the logo side-flow of a task.
type LogoAction string

const (
	LogoActionNone          LogoAction = "none"
	LogoActionWaitingClient LogoAction = "waiting_client"
	LogoActionSent          LogoAction = "sent"
)

// Priority of a task.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Role grants board visibility.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleDesigner    Role = "designer"
	RoleSalesperson Role = "salesperson"
	RoleViewer      Role = "viewer"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleDesigner, RoleSalesperson, RoleViewer:
		return true
	}
	return false
}

// Task is one custom-apparel design job.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	CustomerName    string     `json:"customer_name"`
	Status          Status     `json:"status"`
	NeedsLogo       bool       `json:"needs_logo"`
	LogoAction      LogoAction `json:"logo_action"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	CreatedBy       string     `json:"created_by"`
	Priority        Priority   `json:"priority"`
	DesignFiles     []string   `json:"design_files"`
	OrderNumber     string     `json:"order_number,omitempty"`
	OrderID         string     `json:"order_id,omitempty"`
	CampaignID      string     `json:"campaign_id,omitempty"`
	LeadID          string     `json:"lead_id,omitempty"`
	Quantity        int        `json:"quantity"`
	CurrentVersion  int        `json:"current_version"`
	Revision        int        `json:"revision"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Bucket returns the board column the task belongs to.
func (t *Task) Bucket() Bucket {
	if t.NeedsLogo && t.LogoAction == LogoActionWaitingClient {
		return BucketLogoNeeded
	}
	return Bucket(t.Status)
}

// IsAssigned reports whether someone has accepted the task.
func (t *Task) IsAssigned() bool { return t.AssignedTo != "" }

// HasOrderNumber reports whether a non-blank order number is set.
func (t *Task) HasOrderNumber() bool { return strings.TrimSpace(t.OrderNumber) != "" }

// IsDeleted reports whether the task was soft-deleted.
func (t *Task) IsDeleted() bool { return t.DeletedAt != nil }

// ChangeRequest is a modification request raised against one task.
type ChangeRequest struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	Description string     `json:"description,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// IsOpen reports whether the request is still unresolved.
func (c *ChangeRequest) IsOpen() bool { return c.ResolvedAt == nil }

// Actor is an operator session.
type Actor struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name,omitempty" yaml:"name"`
	Roles          []Role   `json:"roles" yaml:"roles"`
	AllowedColumns []Bucket `json:"allowed_columns,omitempty" yaml:"allowed_columns"`
}

// HasRole reports whether the actor holds r.
func (a *Actor) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsAdmin is true for SuperAdmin and Admin, who see everything.
func (a *Actor) IsAdmin() bool {
	return a.HasRole(RoleSuperAdmin) || a.HasRole(RoleAdmin)
}

// CanSeeColumn applies column visibility.
func (a *Actor) CanSeeColumn(b Bucket) bool {
	if a.IsAdmin() {
		return true
	}
	for _, c := range a.AllowedColumns {
		if c == b {
			return true
		}
	}
	return false
}

// StatusChange is the single write issued for a committed transition.
type StatusChange struct {
	Status          Status     `json:"status"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	// ExpectedRevision is only checked when strict writes are enabled;
	// zero skips the check.
	ExpectedRevision int `json:"expected_revision,omitempty"`
}

// Snapshot is the result of one full load.
type Snapshot struct {
	Tasks              []Task          `json:"tasks"`
	OpenChangeRequests []ChangeRequest `json:"open_change_requests"`
	LoadedAt           time.Time       `json:"loaded_at"`
}

// PDREntry is a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
