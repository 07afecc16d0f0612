// Package board derives per-actor board columns from a task set.
//
// Projection is a pure function of its inputs: it never mutates the tasks
// it is given and keeps nothing between calls, so the same inputs always
// produce the same columns in the same order.
package board

import (
	"fmt"
	"strings"

	"github.com/fentz26/designboard/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Filters narrows the board. Zero-valued fields are ignored; the rest are
// AND-composed.
type Filters struct {
	// Search is matched case-insensitively against customer name and order
	// number.
	Search     string
	Priority   models.Priority
	AssignedTo string
	CreatedBy  string
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Column is one bucket with its ordered tasks.
type Column struct {
	Bucket models.Bucket
	Tasks  []models.Task
}

// Board is the ordered list of columns visible to one actor.
type Board struct {
	Columns []Column
}

// Column returns the tasks in bucket b, and whether b is visible at all.
func (b Board) Column(bucket models.Bucket) ([]models.Task, bool) {
	for _, c := range b.Columns {
		if c.Bucket == bucket {
			return c.Tasks, true
		}
	}
	return nil, false
}

// Len counts the tasks on the board.
func (b Board) Len() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// Projector projects boards using one collation locale.
type Projector struct {
	tag language.Tag
}

// NewProjector parses a BCP 47 locale such as "en" or "es-MX".
func NewProjector(locale string) (*Projector, error) {
	if strings.TrimSpace(locale) == "" {
		return &Projector{tag: language.English}, nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &Projector{tag: tag}, nil
}

var defaultProjector = &Projector{tag: language.English}

// Project builds the board with English collation.
func Project(tasks []models.Task, actor models.Actor, filters Filters, sortBy SortOption) Board {
	return defaultProjector.Project(tasks, actor, filters, sortBy)
}

// Project runs bucketing, role visibility, column visibility, the filter
// chain and the selected sort, in that order.
func (p *Projector) Project(tasks []models.Task, actor models.Actor, filters Filters, sortBy SortOption) Board {
	match := newMatcher(filters)

	grouped := make(map[models.Bucket][]models.Task)
	for i := range tasks {
		t := &tasks[i]
		if t.IsDeleted() {
			continue
		}
		bucket := t.Bucket()
		if !roleVisible(t, &actor) || !actor.CanSeeColumn(bucket) || !match(t) {
			continue
		}
		grouped[bucket] = append(grouped[bucket], cloneTask(t))
	}

	less := p.comparator(sortBy)
	var out Board
	for _, bucket := range models.Buckets() {
		if !actor.CanSeeColumn(bucket) {
			continue
		}
		col := Column{Bucket: bucket, Tasks: grouped[bucket]}
		if col.Tasks == nil {
			col.Tasks = []models.Task{}
		}
		sortStable(col.Tasks, less)
		out.Columns = append(out.Columns, col)
	}
	return out
}

// roleVisible applies the role rules: admins see everything, designers see
// unclaimed tasks and their own, salespeople see what they created.
func roleVisible(t *models.Task, actor *models.Actor) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.HasRole(models.RoleDesigner):
		return t.AssignedTo == "" || t.AssignedTo == actor.ID
	case actor.HasRole(models.RoleSalesperson):
		return t.CreatedBy == actor.ID
	default:
		return true
	}
}

func newMatcher(f Filters) func(*models.Task) bool {
	var needle string
	fold := cases.Fold()
	if s := strings.TrimSpace(f.Search); s != "" {
		needle = fold.String(s)
	}
	return func(t *models.Task) bool {
		if needle != "" &&
			!strings.Contains(fold.String(t.CustomerName), needle) &&
			!strings.Contains(fold.String(t.OrderNumber), needle) {
			return false
		}
		if f.Priority != "" && t.Priority != f.Priority {
			return false
		}
		if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
			return false
		}
		if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
			return false
		}
		return true
	}
}

func cloneTask(t *models.Task) models.Task {
	c := *t
	if t.DesignFiles != nil {
		c.DesignFiles = append([]string(nil), t.DesignFiles...)
	}
	return c
}
