package board

import (
	"reflect"
	"testing"
	"time"

	"github.com/fentz26/designboard/internal/models"
)

var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func task(id string, status models.Status) models.Task {
	return models.Task{
		ID:              id,
		Status:          status,
		LogoAction:      models.LogoActionNone,
		Priority:        models.PriorityNormal,
		CreatedBy:       "sales-1",
		CreatedAt:       base,
		UpdatedAt:       base,
		StatusChangedAt: base,
	}
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

var admin = models.Actor{ID: "admin", Roles: []models.Role{models.RoleAdmin}}

func TestBucketing(t *testing.T) {
	logo := task("logo", models.StatusPending)
	logo.NeedsLogo = true
	logo.LogoAction = models.LogoActionWaitingClient

	sent := task("sent", models.StatusPending)
	sent.NeedsLogo = true
	sent.LogoAction = models.LogoActionSent

	b := Project([]models.Task{logo, sent}, admin, Filters{}, SortDefault)

	got, _ := b.Column(models.BucketLogoNeeded)
	if !reflect.DeepEqual(ids(got), []string{"logo"}) {
		t.Errorf("Expected logo bucket [logo], got %v", ids(got))
	}
	got, _ = b.Column(models.Bucket(models.StatusPending))
	if !reflect.DeepEqual(ids(got), []string{"sent"}) {
		t.Errorf("Expected pending bucket [sent], got %v", ids(got))
	}
	if len(b.Columns) != len(models.Buckets()) {
		t.Errorf("Expected admin to see %d columns, got %d", len(models.Buckets()), len(b.Columns))
	}
}

func TestDeletedTasksExcluded(t *testing.T) {
	gone := task("gone", models.StatusPending)
	now := base
	gone.DeletedAt = &now
	b := Project([]models.Task{gone, task("kept", models.StatusPending)}, admin, Filters{}, SortDefault)
	if b.Len() != 1 {
		t.Errorf("Expected 1 task on the board, got %d", b.Len())
	}
}

func TestRoleVisibility(t *testing.T) {
	unclaimed := task("unclaimed", models.StatusPending)
	mine := task("mine", models.StatusPending)
	mine.AssignedTo = "d1"
	theirs := task("theirs", models.StatusPending)
	theirs.AssignedTo = "d2"
	other := task("other-sales", models.StatusPending)
	other.CreatedBy = "sales-2"
	all := []models.Task{unclaimed, mine, theirs, other}

	pending := []models.Bucket{models.Bucket(models.StatusPending)}
	cases := []struct {
		name  string
		actor models.Actor
		want  []string
	}{
		{"designer", models.Actor{ID: "d1", Roles: []models.Role{models.RoleDesigner}, AllowedColumns: pending}, []string{"unclaimed", "mine", "other-sales"}},
		{"salesperson", models.Actor{ID: "sales-1", Roles: []models.Role{models.RoleSalesperson}, AllowedColumns: pending}, []string{"unclaimed", "mine", "theirs"}},
		{"designer and salesperson", models.Actor{ID: "d1", Roles: []models.Role{models.RoleSalesperson, models.RoleDesigner}, AllowedColumns: pending}, []string{"unclaimed", "mine", "other-sales"}},
		{"viewer", models.Actor{ID: "v", Roles: []models.Role{models.RoleViewer}, AllowedColumns: pending}, []string{"unclaimed", "mine", "theirs", "other-sales"}},
		{"super admin", models.Actor{ID: "root", Roles: []models.Role{models.RoleSuperAdmin}}, []string{"unclaimed", "mine", "theirs", "other-sales"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Project(all, tc.actor, Filters{}, SortDefault)
			got, _ := b.Column(models.Bucket(models.StatusPending))
			if !reflect.DeepEqual(ids(got), tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, ids(got))
			}
		})
	}
}

func TestDesignerColumnVisibility(t *testing.T) {
	d := models.Actor{
		ID:             "d1",
		Roles:          []models.Role{models.RoleDesigner},
		AllowedColumns: []models.Bucket{models.Bucket(models.StatusPending), models.Bucket(models.StatusInProgress)},
	}
	var tasks []models.Task
	for _, s := range models.Statuses() {
		tasks = append(tasks, task(string(s), s))
	}

	b := Project(tasks, d, Filters{}, SortDefault)
	for _, hidden := range []models.Status{models.StatusApproved, models.StatusCompleted} {
		if _, ok := b.Column(models.Bucket(hidden)); ok {
			t.Errorf("Expected %s column to be hidden", hidden)
		}
	}
	for _, c := range b.Columns {
		for _, tk := range c.Tasks {
			if tk.Status == models.StatusApproved || tk.Status == models.StatusCompleted {
				t.Errorf("Designer should not see task %s", tk.ID)
			}
		}
	}
	if len(b.Columns) != 2 {
		t.Errorf("Expected 2 visible columns, got %d", len(b.Columns))
	}
}

func TestFilterChain(t *testing.T) {
	a := task("a", models.StatusPending)
	a.CustomerName = "Club Atlético Ñandú"
	a.Priority = models.PriorityUrgent
	a.AssignedTo = "d1"
	b := task("b", models.StatusPending)
	b.CustomerName = "Riverside FC"
	b.OrderNumber = "PO-ÑAN-9"
	c := task("c", models.StatusPending)
	c.CustomerName = "Harbor Rowing"
	c.CreatedBy = "sales-2"
	tasks := []models.Task{a, b, c}

	cases := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"none", Filters{}, []string{"a", "b", "c"}},
		{"search customer case-insensitive", Filters{Search: "ñANDú"}, []string{"a"}},
		{"search order number", Filters{Search: "ñan"}, []string{"a", "b"}},
		{"priority", Filters{Priority: models.PriorityUrgent}, []string{"a"}},
		{"assignee", Filters{AssignedTo: "d1"}, []string{"a"}},
		{"creator", Filters{CreatedBy: "sales-2"}, []string{"c"}},
		{"conjunctive", Filters{Search: "riverside", Priority: models.PriorityUrgent}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Project(tasks, admin, tc.filters, SortDefault).Column(models.Bucket(models.StatusPending))
			if !reflect.DeepEqual(ids(got), tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, ids(got))
			}
		})
	}
}

func TestSortStatusChangedReverses(t *testing.T) {
	var tasks []models.Task
	for i, id := range []string{"c", "a", "d", "b"} {
		tk := task(id, models.StatusInProgress)
		tk.StatusChangedAt = base.Add(time.Duration([]int{3, 1, 4, 2}[i]) * time.Hour)
		tasks = append(tasks, tk)
	}
	col := models.Bucket(models.StatusInProgress)

	asc, _ := Project(tasks, admin, Filters{}, SortStatusChangedAsc).Column(col)
	desc, _ := Project(tasks, admin, Filters{}, SortStatusChangedDesc).Column(col)
	if !reflect.DeepEqual(ids(asc), []string{"a", "b", "c", "d"}) {
		t.Fatalf("Unexpected ascending order %v", ids(asc))
	}
	for i := range asc {
		if asc[i].ID != desc[len(desc)-1-i].ID {
			t.Fatalf("Expected descending to reverse ascending, got %v and %v", ids(asc), ids(desc))
		}
	}
}

func TestSortsAreStable(t *testing.T) {
	var tasks []models.Task
	for _, id := range []string{"x1", "x2", "x3", "x4"} {
		tk := task(id, models.StatusPending)
		tk.Quantity = 10
		tasks = append(tasks, tk)
	}
	want := []string{"x1", "x2", "x3", "x4"}
	for _, opt := range SortOptions() {
		got, _ := Project(tasks, admin, Filters{}, opt).Column(models.Bucket(models.StatusPending))
		if !reflect.DeepEqual(ids(got), want) {
			t.Errorf("%s: expected ties to keep input order %v, got %v", opt, want, ids(got))
		}
	}
}

func TestSortComparators(t *testing.T) {
	mk := func(id string, qty, version int, customer, order string, created, updated int) models.Task {
		tk := task(id, models.StatusApproved)
		tk.Quantity = qty
		tk.CurrentVersion = version
		tk.CustomerName = customer
		tk.OrderNumber = order
		tk.CreatedAt = base.Add(time.Duration(created) * time.Minute)
		tk.UpdatedAt = base.Add(time.Duration(updated) * time.Minute)
		return tk
	}
	tasks := []models.Task{
		mk("t1", 50, 2, "beta", "PO-10", 1, 5),
		mk("t2", 5, 1, "Álvarez", "PO-9", 3, 1),
		mk("t3", 20, 3, "", "", 2, 9),
	}
	cases := []struct {
		opt  SortOption
		want []string
	}{
		{SortDefault, []string{"t3", "t1", "t2"}},
		{SortCreatedAsc, []string{"t1", "t3", "t2"}},
		{SortCreatedDesc, []string{"t2", "t3", "t1"}},
		{SortQuantityAsc, []string{"t2", "t3", "t1"}},
		{SortQuantityDesc, []string{"t1", "t3", "t2"}},
		{SortVersionAsc, []string{"t2", "t1", "t3"}},
		{SortVersionDesc, []string{"t3", "t1", "t2"}},
		{SortCustomerName, []string{"t2", "t1", "t3"}},
		{SortOrderNumberAsc, []string{"t2", "t1", "t3"}},
		{SortOrderNumberDesc, []string{"t1", "t2", "t3"}},
	}
	for _, tc := range cases {
		got, _ := Project(tasks, admin, Filters{}, tc.opt).Column(models.Bucket(models.StatusApproved))
		if !reflect.DeepEqual(ids(got), tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.opt, tc.want, ids(got))
		}
	}
}

func TestProjectIsIdempotentAndPure(t *testing.T) {
	tasks := []models.Task{task("b", models.StatusPending), task("a", models.StatusPending)}
	tasks[0].DesignFiles = []string{"one.png"}

	first := Project(tasks, admin, Filters{}, SortCustomerName)
	second := Project(tasks, admin, Filters{}, SortCustomerName)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical projections for identical inputs")
	}

	col, _ := first.Column(models.Bucket(models.StatusPending))
	col[0].DesignFiles[0] = "changed.png"
	if tasks[0].DesignFiles[0] != "one.png" {
		t.Error("Expected projection output not to alias input tasks")
	}
}

func TestParseSortOption(t *testing.T) {
	for _, o := range SortOptions() {
		got, err := ParseSortOption(o.String())
		if err != nil || got != o {
			t.Errorf("Expected %q to parse back, got %q (%v)", o.String(), got, err)
		}
	}
	if _, err := ParseSortOption("random"); err == nil {
		t.Error("Expected error for unknown option")
	}
	if SortOrderNumberDesc.Next() != SortDefault {
		t.Error("Expected Next to wrap around to the default")
	}
}

func TestNewProjectorRejectsBadLocale(t *testing.T) {
	if _, err := NewProjector("not a locale!!"); err == nil {
		t.Error("Expected error for malformed locale")
	}
	if _, err := NewProjector("es-MX"); err != nil {
		t.Errorf("Expected es-MX to parse, got %v", err)
	}
}
