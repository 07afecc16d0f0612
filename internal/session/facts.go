package session

import (
	"strings"

	"github.com/fentz26/designboard/internal/models"
)

// snapshotFacts answers guard lookups from one loaded snapshot. It is built
// once per reload and never mutated afterwards.
type snapshotFacts struct {
	openRequests map[string]bool
	completed    map[string][]string // order number -> completed task ids
}

func newSnapshotFacts(snap *models.Snapshot) snapshotFacts {
	f := snapshotFacts{
		openRequests: map[string]bool{},
		completed:    map[string][]string{},
	}
	for _, cr := range snap.OpenChangeRequests {
		if cr.IsOpen() {
			f.openRequests[cr.TaskID] = true
		}
	}
	for _, t := range snap.Tasks {
		if t.IsDeleted() || t.Status != models.StatusCompleted || !t.HasOrderNumber() {
			continue
		}
		key := strings.TrimSpace(t.OrderNumber)
		f.completed[key] = append(f.completed[key], t.ID)
	}
	return f
}

func (f snapshotFacts) HasOpenChangeRequest(taskID string) bool {
	return f.openRequests[taskID]
}

func (f snapshotFacts) CompletedWithOrderNumber(orderNumber, excludeID string) (string, bool) {
	for _, id := range f.completed[strings.TrimSpace(orderNumber)] {
		if id != excludeID {
			return id, true
		}
	}
	return "", false
}
