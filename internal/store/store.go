// Package store provides SQLite-backed persistence for designboard.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrTaskNotFound indicates the task does not exist or was soft-deleted.
	ErrTaskNotFound = errors.New("task not found")
	// ErrChangeRequestNotFound indicates an unknown or already resolved request.
	ErrChangeRequestNotFound = errors.New("open change request not found")
	// ErrConcurrentModification is returned by strict writes when the task
	// moved on since the caller read it.
	ErrConcurrentModification = errors.New("task was modified concurrently")
	// ErrTerminalStatus rejects a status write that would move a task out
	// of completed.
	ErrTerminalStatus = errors.New("completed tasks cannot change status")
)

// Store provides access to the designboard SQLite database.
type Store struct {
	db     *sql.DB
	feed   feed.Publisher
	strict bool
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithPublisher emits one change event per task mutation.
func WithPublisher(p feed.Publisher) Option {
	return func(s *Store) { s.feed = p }
}

// WithStrictWrites enables the revision check on status writes.
func WithStrictWrites(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new Store and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for concurrent readers while the daemon writes
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StrictWrites reports whether status writes check revisions.
func (s *Store) StrictWrites() bool { return s.strict }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		needs_logo INTEGER NOT NULL DEFAULT 0,
		logo_action TEXT NOT NULL DEFAULT 'none',
		assigned_to TEXT,
		created_by TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		design_files TEXT NOT NULL DEFAULT '[]',
		order_number TEXT,
		order_id TEXT,
		campaign_id TEXT,
		lead_id TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		current_version INTEGER NOT NULL DEFAULT 0,
		revision INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		status_changed_at DATETIME NOT NULL,
		completed_at DATETIME,
		deleted_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS change_requests (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		description TEXT,
		requested_by TEXT,
		created_at DATETIME NOT NULL,
		resolved_at DATETIME,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		actor_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_order_number ON tasks(order_number);
	CREATE INDEX IF NOT EXISTS idx_change_requests_task_id ON change_requests(task_id);
	CREATE INDEX IF NOT EXISTS idx_pdr_task_id ON pdr(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) publish(table string, kind feed.Kind, rowID string) {
	if s.feed != nil {
		s.feed.Publish(feed.NewTableEvent(table, kind, rowID))
	}
}

// --- Task Operations ---

// NewTask holds the fields a creator supplies.
type NewTask struct {
	Title        string          `json:"title"`
	CustomerName string          `json:"customer_name"`
	CreatedBy    string          `json:"created_by"`
	NeedsLogo    bool            `json:"needs_logo"`
	Priority     models.Priority `json:"priority"`
	DesignFiles  []string        `json:"design_files"`
	OrderID      string          `json:"order_id"`
	CampaignID   string          `json:"campaign_id"`
	LeadID       string          `json:"lead_id"`
	Quantity     int             `json:"quantity"`
}

// CreateTask inserts a Pending task. Tasks flagged NeedsLogo start out
// waiting on the client's logo.
func (s *Store) CreateTask(ctx context.Context, in NewTask) (*models.Task, error) {
	if strings.TrimSpace(in.CreatedBy) == "" {
		return nil, fmt.Errorf("created_by is required")
	}
	now := s.now()
	task := &models.Task{
		ID:              uuid.New().String(),
		Title:           in.Title,
		CustomerName:    in.CustomerName,
		Status:          models.StatusPending,
		NeedsLogo:       in.NeedsLogo,
		LogoAction:      models.LogoActionNone,
		CreatedBy:       in.CreatedBy,
		Priority:        in.Priority,
		DesignFiles:     append([]string{}, in.DesignFiles...),
		OrderID:         in.OrderID,
		CampaignID:      in.CampaignID,
		LeadID:          in.LeadID,
		Quantity:        in.Quantity,
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusChangedAt: now,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityNormal
	}
	if task.NeedsLogo {
		task.LogoAction = models.LogoActionWaitingClient
	}
	files, err := json.Marshal(task.DesignFiles)
	if err != nil {
		return nil, fmt.Errorf("encode design files: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, customer_name, status, needs_logo, logo_action, created_by, priority,
			design_files, order_id, campaign_id, lead_id, quantity, current_version, revision,
			created_at, updated_at, status_changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.CustomerName, task.Status, task.NeedsLogo, task.LogoAction, task.CreatedBy, task.Priority,
		string(files), nullString(task.OrderID), nullString(task.CampaignID), nullString(task.LeadID),
		task.Quantity, task.CurrentVersion, task.Revision,
		task.CreatedAt, task.UpdatedAt, task.StatusChangedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	s.publish(feed.TableTasks, feed.KindInsert, task.ID)
	return task, nil
}

const taskColumns = `id, title, customer_name, status, needs_logo, logo_action, assigned_to, created_by, priority,
	design_files, order_number, order_id, campaign_id, lead_id, quantity, current_version, revision,
	created_at, updated_at, status_changed_at, completed_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task                                                  models.Task
		assignedTo, orderNumber, orderID, campaignID, leadID sql.NullString
		files                                                 string
		completedAt, deletedAt                                sql.NullTime
	)
	err := row.Scan(&task.ID, &task.Title, &task.CustomerName, &task.Status, &task.NeedsLogo, &task.LogoAction,
		&assignedTo, &task.CreatedBy, &task.Priority, &files, &orderNumber, &orderID, &campaignID, &leadID,
		&task.Quantity, &task.CurrentVersion, &task.Revision,
		&task.CreatedAt, &task.UpdatedAt, &task.StatusChangedAt, &completedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	task.AssignedTo = assignedTo.String
	task.OrderNumber = orderNumber.String
	task.OrderID = orderID.String
	task.CampaignID = campaignID.String
	task.LeadID = leadID.String
	if files != "" {
		if err := json.Unmarshal([]byte(files), &task.DesignFiles); err != nil {
			return nil, fmt.Errorf("decode design files: %w", err)
		}
	}
	if task.DesignFiles == nil {
		task.DesignFiles = []string{}
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		task.DeletedAt = &t
	}
	return &task, nil
}

// GetTask retrieves a non-deleted task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at IS NULL`, id))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// TaskFilter narrows ListTasks. Empty fields are ignored.
type TaskFilter struct {
	Status     models.Status
	OrderID    string
	CampaignID string
	CreatedBy  string
	AssignedTo string
	LeadID     string
}

func (f TaskFilter) where() (string, []any) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	add := func(col, v string) {
		if v != "" {
			conds = append(conds, col+" = ?")
			args = append(args, v)
		}
	}
	add("status", string(f.Status))
	add("order_id", f.OrderID)
	add("campaign_id", f.CampaignID)
	add("created_by", f.CreatedBy)
	add("assigned_to", f.AssignedTo)
	add("lead_id", f.LeadID)
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTasks returns non-deleted tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	return listTasks(ctx, s.db, f)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listTasks(ctx context.Context, q querier, f TaskFilter) ([]models.Task, error) {
	where, args := f.where()
	rows, err := q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateStatus writes a guarded transition in one statement. The guard has
// already run; status_changed_at comes from its effects. completed_at is
// derived from the target status so it is set iff the task is completed,
// and a completed task never leaves completed.
func (s *Store) UpdateStatus(ctx context.Context, id string, change models.StatusChange) error {
	if !change.Status.IsValid() {
		return fmt.Errorf("invalid status %q", change.Status)
	}
	changedAt := change.StatusChangedAt
	if changedAt.IsZero() {
		changedAt = s.now()
	}
	var completedAt any
	if change.Status == models.StatusCompleted {
		at := changedAt
		if change.CompletedAt != nil {
			at = *change.CompletedAt
		}
		completedAt = at.UTC()
	}

	query := `UPDATE tasks SET status = ?, status_changed_at = ?, completed_at = ?, updated_at = ?, revision = revision + 1
		WHERE id = ? AND deleted_at IS NULL AND (status <> ? OR ? = ?)`
	args := []any{change.Status, changedAt.UTC(), completedAt, s.now(), id,
		models.StatusCompleted, change.Status, models.StatusCompleted}
	revisionChecked := s.strict && change.ExpectedRevision > 0
	if revisionChecked {
		query += ` AND revision = ?`
		args = append(args, change.ExpectedRevision)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		current, err := s.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == models.StatusCompleted && change.Status != models.StatusCompleted {
			return ErrTerminalStatus
		}
		if revisionChecked {
			return ErrConcurrentModification
		}
		return ErrTaskNotFound
	}
	s.publish(feed.TableTasks, feed.KindUpdate, id)
	return nil
}

// AssignTask sets the owner of a task.
func (s *Store) AssignTask(ctx context.Context, id, actorID string) error {
	return s.updateField(ctx, id, "assigned_to", nullString(actorID))
}

// UpdateOrderNumber sets or clears the production order code.
func (s *Store) UpdateOrderNumber(ctx context.Context, id, orderNumber string) error {
	return s.updateField(ctx, id, "order_number", nullString(strings.TrimSpace(orderNumber)))
}

// SetLogoAction moves the logo side-flow.
func (s *Store) SetLogoAction(ctx context.Context, id string, action models.LogoAction) error {
	switch action {
	case models.LogoActionNone, models.LogoActionWaitingClient, models.LogoActionSent:
	default:
		return fmt.Errorf("invalid logo action %q", action)
	}
	return s.updateField(ctx, id, "logo_action", action)
}

// SetDesignFiles replaces the mockups attached to a task.
func (s *Store) SetDesignFiles(ctx context.Context, id string, files []string) error {
	data, err := json.Marshal(append([]string{}, files...))
	if err != nil {
		return fmt.Errorf("encode design files: %w", err)
	}
	return s.updateField(ctx, id, "design_files", string(data))
}

// column is always one of the literals above, never caller input.
func (s *Store) updateField(ctx context.Context, id, column string, value any) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+column+` = ?, updated_at = ?, revision = revision + 1 WHERE id = ? AND deleted_at IS NULL`,
		value, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if err := s.checkAffected(ctx, res, id, false); err != nil {
		return err
	}
	s.publish(feed.TableTasks, feed.KindUpdate, id)
	return nil
}

// SoftDeleteTask hides a task from every projection and guard.
func (s *Store) SoftDeleteTask(ctx context.Context, id string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := s.checkAffected(ctx, res, id, false); err != nil {
		return err
	}
	s.publish(feed.TableTasks, feed.KindDelete, id)
	return nil
}

func (s *Store) checkAffected(ctx context.Context, res sql.Result, id string, revisionChecked bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if revisionChecked {
		// Distinguish a stale revision from a missing task.
		if _, err := s.GetTask(ctx, id); err == nil {
			return ErrConcurrentModification
		}
	}
	return ErrTaskNotFound
}

// FindCompletedByOrderNumber returns another non-deleted completed task with
// the same order number, or nil.
func (s *Store) FindCompletedByOrderNumber(ctx context.Context, orderNumber, excludeID string) (*models.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = ? AND deleted_at IS NULL AND order_number = ? AND id <> ?
		 ORDER BY completed_at DESC LIMIT 1`,
		models.StatusCompleted, strings.TrimSpace(orderNumber), excludeID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query duplicate order number: %w", err)
	}
	return task, nil
}

// --- Change Request Operations ---

// CreateChangeRequest opens a change request against a task.
func (s *Store) CreateChangeRequest(ctx context.Context, taskID, description, requestedBy string) (*models.ChangeRequest, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	cr := &models.ChangeRequest{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Description: description,
		RequestedBy: requestedBy,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_requests (id, task_id, description, requested_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		cr.ID, cr.TaskID, cr.Description, cr.RequestedBy, cr.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert change request: %w", err)
	}
	s.publish(feed.TableChangeRequests, feed.KindInsert, cr.ID)
	return cr, nil
}

// ResolveChangeRequest closes an open request.
func (s *Store) ResolveChangeRequest(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE change_requests SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`, s.now(), id)
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrChangeRequestNotFound
	}
	s.publish(feed.TableChangeRequests, feed.KindUpdate, id)
	return nil
}

// HasOpenChangeRequest reports whether taskID has an unresolved request.
func (s *Store) HasOpenChangeRequest(ctx context.Context, taskID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM change_requests WHERE task_id = ? AND resolved_at IS NULL`, taskID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count change requests: %w", err)
	}
	return n > 0, nil
}

// ListOpenChangeRequests returns unresolved requests on non-deleted tasks.
func (s *Store) ListOpenChangeRequests(ctx context.Context) ([]models.ChangeRequest, error) {
	return listOpenChangeRequests(ctx, s.db)
}

func listOpenChangeRequests(ctx context.Context, q querier) ([]models.ChangeRequest, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT cr.id, cr.task_id, cr.description, cr.requested_by, cr.created_at
		 FROM change_requests cr JOIN tasks t ON t.id = cr.task_id
		 WHERE cr.resolved_at IS NULL AND t.deleted_at IS NULL
		 ORDER BY cr.created_at`)
	if err != nil {
		return nil, fmt.Errorf("query change requests: %w", err)
	}
	defer rows.Close()

	out := []models.ChangeRequest{}
	for rows.Next() {
		var cr models.ChangeRequest
		var desc, by sql.NullString
		if err := rows.Scan(&cr.ID, &cr.TaskID, &desc, &by, &cr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan change request: %w", err)
		}
		cr.Description = desc.String
		cr.RequestedBy = by.String
		out = append(out, cr)
	}
	return out, rows.Err()
}

// Snapshot loads every non-deleted task and open change request in one read
// transaction.
func (s *Store) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tasks, err := listTasks(ctx, tx, TaskFilter{})
	if err != nil {
		return nil, err
	}
	open, err := listOpenChangeRequests(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{Tasks: tasks, OpenChangeRequests: open, LoadedAt: s.now()}, nil
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(ctx context.Context, action, inputsHash, outcome, taskID, actorID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		ActorID:    actorID,
		Details:    details,
		Timestamp:  s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pdr (id, action, inputs_hash, outcome, task_id, actor_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.TaskID, pdr.ActorID, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the decision records for a task, newest first.
func (s *Store) ListPDR(ctx context.Context, taskID string) ([]models.PDREntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, inputs_hash, outcome, task_id, actor_id, details, timestamp
		 FROM pdr WHERE task_id = ? ORDER BY timestamp DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	out := []models.PDREntry{}
	for rows.Next() {
		var e models.PDREntry
		var task, actor, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &task, &actor, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.TaskID, e.ActorID, e.Details = task.String, actor.String, details.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
