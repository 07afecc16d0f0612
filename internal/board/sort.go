package board

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fentz26/designboard/internal/models"
	"golang.org/x/text/collate"
)

// SortOption selects the comparator used inside every column.
type SortOption string

const (
	SortDefault           SortOption = ""
	SortCreatedAsc        SortOption = "created_asc"
	SortCreatedDesc       SortOption = "created_desc"
	SortStatusChangedAsc  SortOption = "time_in_column_asc"
	SortStatusChangedDesc SortOption = "time_in_column_desc"
	SortQuantityAsc       SortOption = "quantity_asc"
	SortQuantityDesc      SortOption = "quantity_desc"
	SortVersionAsc        SortOption = "version_asc"
	SortVersionDesc       SortOption = "version_desc"
	SortCustomerName      SortOption = "customer_name"
	SortOrderNumberAsc    SortOption = "order_number_asc"
	SortOrderNumberDesc   SortOption = "order_number_desc"
)

// SortOptions lists every option, default first.
func SortOptions() []SortOption {
	return []SortOption{
		SortDefault,
		SortCreatedAsc, SortCreatedDesc,
		SortStatusChangedAsc, SortStatusChangedDesc,
		SortQuantityAsc, SortQuantityDesc,
		SortVersionAsc, SortVersionDesc,
		SortCustomerName,
		SortOrderNumberAsc, SortOrderNumberDesc,
	}
}

// ParseSortOption accepts any name from SortOptions, or "" / "updated_desc"
// for the default.
func ParseSortOption(v string) (SortOption, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "updated_desc" {
		return SortDefault, nil
	}
	for _, o := range SortOptions() {
		if string(o) == v {
			return o, nil
		}
	}
	return SortDefault, fmt.Errorf("unknown sort option %q", v)
}

// Next cycles through SortOptions.
func (o SortOption) Next() SortOption {
	opts := SortOptions()
	i := slices.Index(opts, o)
	return opts[(i+1)%len(opts)]
}

func (o SortOption) String() string {
	if o == SortDefault {
		return "updated_desc"
	}
	return string(o)
}

type lessFunc func(a, b *models.Task) int

func (p *Projector) comparator(o SortOption) lessFunc {
	switch o {
	case SortCreatedAsc:
		return byTime(func(t *models.Task) time.Time { return t.CreatedAt }, false)
	case SortCreatedDesc:
		return byTime(func(t *models.Task) time.Time { return t.CreatedAt }, true)
	case SortStatusChangedAsc:
		return byTime(func(t *models.Task) time.Time { return t.StatusChangedAt }, false)
	case SortStatusChangedDesc:
		return byTime(func(t *models.Task) time.Time { return t.StatusChangedAt }, true)
	case SortQuantityAsc:
		return byInt(func(t *models.Task) int { return t.Quantity }, false)
	case SortQuantityDesc:
		return byInt(func(t *models.Task) int { return t.Quantity }, true)
	case SortVersionAsc:
		return byInt(func(t *models.Task) int { return t.CurrentVersion }, false)
	case SortVersionDesc:
		return byInt(func(t *models.Task) int { return t.CurrentVersion }, true)
	case SortCustomerName:
		col := collate.New(p.tag, collate.IgnoreCase)
		return byText(col, func(t *models.Task) string { return t.CustomerName }, false)
	case SortOrderNumberAsc:
		col := collate.New(p.tag, collate.IgnoreCase, collate.Numeric)
		return byText(col, func(t *models.Task) string { return t.OrderNumber }, false)
	case SortOrderNumberDesc:
		col := collate.New(p.tag, collate.IgnoreCase, collate.Numeric)
		return byText(col, func(t *models.Task) string { return t.OrderNumber }, true)
	default:
		return byTime(func(t *models.Task) time.Time { return t.UpdatedAt }, true)
	}
}

func byTime(key func(*models.Task) time.Time, desc bool) lessFunc {
	return func(a, b *models.Task) int {
		c := key(a).Compare(key(b))
		if desc {
			return -c
		}
		return c
	}
}

func byInt(key func(*models.Task) int, desc bool) lessFunc {
	return func(a, b *models.Task) int {
		x, y := key(a), key(b)
		c := 0
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
		if desc {
			return -c
		}
		return c
	}
}

// byText collates key values; blank keys go last in both directions.
func byText(col *collate.Collator, key func(*models.Task) string, desc bool) lessFunc {
	return func(a, b *models.Task) int {
		x, y := strings.TrimSpace(key(a)), strings.TrimSpace(key(b))
		switch {
		case x == "" && y == "":
			return 0
		case x == "":
			return 1
		case y == "":
			return -1
		}
		c := col.CompareString(x, y)
		if desc {
			return -c
		}
		return c
	}
}

func sortStable(tasks []models.Task, less lessFunc) {
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		return less(&a, &b)
	})
}
