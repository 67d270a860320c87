package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotProgressBands(t *testing.T) {
	m := NewBatchMetrics("inbox")
	m.SetTotalCount(200)

	m.SetPhase(PhaseFetching)
	m.RecordPageTime(0, 50)
	m.AddPagesFetched(2)
	snap := m.Snapshot()
	assert.Equal(t, PhaseFetching, snap.Phase)
	assert.InDelta(t, 16.5, snap.Progress, 0.01)

	m.AddPagesFetched(2)
	snap = m.Snapshot()
	// The fetching band is capped at 33 even when every page is in.
	assert.InDelta(t, 33, snap.Progress, 0.01)

	m.SetPhase(PhaseTranslating)
	m.AddIDsTranslated(100)
	snap = m.Snapshot()
	assert.InDelta(t, 49.5, snap.Progress, 0.01)

	m.SetPhase(PhaseProcessing)
	m.AddEmailsProcessed(200)
	snap = m.Snapshot()
	assert.InDelta(t, 100, snap.Progress, 0.01)
}

func TestSnapshotZeroTotal(t *testing.T) {
	m := NewBatchMetrics("inbox")
	m.SetPhase(PhaseFetching)
	snap := m.Snapshot()
	assert.Zero(t, snap.Progress)
	assert.Zero(t, snap.TotalEmails)
}

func TestSnapshotCounters(t *testing.T) {
	m := NewBatchMetrics("inbox")
	m.SetTotalCount(10)
	m.AddPagesFetched(1)
	m.AddIDsTranslated(5)
	m.AddEmailsProcessed(3)

	snap := m.Snapshot()
	assert.Equal(t, 10, snap.TotalEmails)
	assert.Equal(t, 1, snap.PagesFetched)
	assert.Equal(t, 5, snap.IDsTranslated)
	assert.Equal(t, 3, snap.ProcessedEmails)
}
