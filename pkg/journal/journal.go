// Package journal provides the append-only action log that is the source of
// truth for run history and replay.
package journal

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/google/uuid"
)

// ErrNoEntry indicates no log entry exists for the requested step.
var ErrNoEntry = errors.New("no log entry for step")

// Journal is an arena of log entries indexed by run id. Entries are immutable
// once appended (the approvals list is the single append-only exception);
// ordering is creation time, tie-broken by a monotonic sequence number so the
// timeline stays deterministic when timestamps collide. Appends from
// concurrent runs are safe.
type Journal struct {
	mu      sync.RWMutex
	seq     atomic.Uint64
	entries map[string][]*models.LogEntry
}

func NewJournal() *Journal {
	return &Journal{
		entries: make(map[string][]*models.LogEntry),
	}
}

// Append records an entry for a run, assigning its id, sequence number and
// creation time. It returns the stored entry.
func (j *Journal) Append(runID string, entry *models.LogEntry) *models.LogEntry {
	entry.ID = uuid.New().String()
	entry.Seq = j.seq.Add(1)
	entry.CreatedAt = time.Now().UTC()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[runID] = append(j.entries[runID], entry)

	return entry
}

// ListByRun returns a copy of the run's entries ordered by creation time,
// sequence number as tiebreak.
func (j *Journal) ListByRun(runID string) []*models.LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := make([]*models.LogEntry, len(j.entries[runID]))
	copy(entries, j.entries[runID])

	sort.SliceStable(entries, func(i, k int) bool {
		if entries[i].CreatedAt.Equal(entries[k].CreatedAt) {
			return entries[i].Seq < entries[k].Seq
		}

		return entries[i].CreatedAt.Before(entries[k].CreatedAt)
	})

	return entries
}

// FindByStep returns the latest entry for a step within a run. The latest
// entry is the step's current status holder.
func (j *Journal) FindByStep(runID, stepID string) (*models.LogEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := j.entries[runID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].StepID == stepID {
			return entries[i], nil
		}
	}

	return nil, ErrNoEntry
}

// AttachApproval appends an approval record to the latest entry for a step.
// Approvals accumulate; the entry's status is left untouched so an approval
// on an already-applied step never regresses it.
func (j *Journal) AttachApproval(runID, stepID string, approval models.Approval) (*models.LogEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := j.entries[runID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].StepID == stepID {
			entries[i].Approvals = append(entries[i].Approvals, approval)

			return entries[i], nil
		}
	}

	return nil, ErrNoEntry
}
