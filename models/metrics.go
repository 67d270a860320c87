package models

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Collection phases, in order.
const (
	PhaseInitializing = "initializing"
	PhaseFetching     = "fetching"
	PhaseTranslating  = "translating"
	PhaseProcessing   = "processing"
	PhaseComplete     = "complete"
)

// BatchMetrics tracks one collection run. Counter updates are atomic
// because page fetches record into it from a bounded set of concurrent
// goroutines; phase and timing fields are guarded by a mutex.
type BatchMetrics struct {
	FolderID string

	pagesFetched     atomic.Int64
	idsTranslated    atomic.Int64
	emailsProcessed  atomic.Int64
	totalCount       atomic.Int64
	totalRetries     atomic.Int64
	totalErrors      atomic.Int64
	currentPageItems atomic.Int64

	mu               sync.Mutex
	phase            string
	startTime        time.Time
	translationStart time.Time
	processingStart  time.Time
	currentPageTime  time.Duration
	translationTime  time.Duration
	processingTime   time.Duration
}

// NewBatchMetrics starts a metrics object for one folder collection run.
func NewBatchMetrics(folderID string) *BatchMetrics {
	return &BatchMetrics{
		FolderID:  folderID,
		phase:     PhaseInitializing,
		startTime: time.Now(),
	}
}

// SetPhase moves the run into the given phase.
func (m *BatchMetrics) SetPhase(phase string) {
	m.mu.Lock()
	m.phase = phase
	m.mu.Unlock()
}

// Phase returns the current phase.
func (m *BatchMetrics) Phase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SetTotalCount records the folder's total message count from page zero.
func (m *BatchMetrics) SetTotalCount(n int) { m.totalCount.Store(int64(n)) }

// AddPagesFetched increments the fetched-page counter.
func (m *BatchMetrics) AddPagesFetched(n int) { m.pagesFetched.Add(int64(n)) }

// AddIDsTranslated increments the translated-ID counter.
func (m *BatchMetrics) AddIDsTranslated(n int) { m.idsTranslated.Add(int64(n)) }

// AddEmailsProcessed increments the processed-email counter.
func (m *BatchMetrics) AddEmailsProcessed(n int) { m.emailsProcessed.Add(int64(n)) }

// RecordPageTime stores the duration and item count of the most recently
// completed page fetch.
func (m *BatchMetrics) RecordPageTime(d time.Duration, items int) {
	m.currentPageItems.Store(int64(items))
	m.mu.Lock()
	m.currentPageTime = d
	m.mu.Unlock()
}

// RecordRetry counts one retried attempt (page fetch or ID translation).
func (m *BatchMetrics) RecordRetry() { m.totalRetries.Add(1) }

// RecordError counts one terminally failed operation.
func (m *BatchMetrics) RecordError() { m.totalErrors.Add(1) }

// StartTranslation marks the beginning of the translating phase.
func (m *BatchMetrics) StartTranslation() {
	m.mu.Lock()
	m.translationStart = time.Now()
	m.mu.Unlock()
}

// EndTranslation records the total translating-phase duration.
func (m *BatchMetrics) EndTranslation() {
	m.mu.Lock()
	m.translationTime = time.Since(m.translationStart)
	m.mu.Unlock()
}

// StartProcessing marks the beginning of the processing phase.
func (m *BatchMetrics) StartProcessing() {
	m.mu.Lock()
	m.processingStart = time.Now()
	m.mu.Unlock()
}

// EndProcessing records the total processing-phase duration.
func (m *BatchMetrics) EndProcessing() {
	m.mu.Lock()
	m.processingTime = time.Since(m.processingStart)
	m.mu.Unlock()
}

// Snapshot returns the progress view sent to the front-end. The overall
// percentage splits the run into fetching 0-33, translating 33-66 and
// processing 66-100.
func (m *BatchMetrics) Snapshot() ProgressSnapshot {
	total := int(m.totalCount.Load())
	snap := ProgressSnapshot{
		Phase:           m.Phase(),
		TotalEmails:     total,
		ProcessedEmails: int(m.emailsProcessed.Load()),
		PagesFetched:    int(m.pagesFetched.Load()),
		IDsTranslated:   int(m.idsTranslated.Load()),
	}
	if total == 0 {
		return snap
	}
	switch snap.Phase {
	case PhaseFetching:
		fetched := snap.PagesFetched * int(m.currentPageItems.Load())
		snap.Progress = min(float64(fetched)/float64(total)*33, 33)
	case PhaseTranslating:
		snap.Progress = 33 + float64(snap.IDsTranslated)/float64(total)*33
	case PhaseProcessing:
		snap.Progress = 66 + float64(snap.ProcessedEmails)/float64(total)*34
	}
	return snap
}

// LogFinal writes the single end-of-run metrics summary.
func (m *BatchMetrics) LogFinal(entry *log.Entry) {
	m.mu.Lock()
	translation, processing := m.translationTime, m.processingTime
	m.mu.Unlock()
	entry.WithFields(log.Fields{
		"folder_id":        m.FolderID,
		"emails_processed": m.emailsProcessed.Load(),
		"ids_translated":   m.idsTranslated.Load(),
		"pages_fetched":    m.pagesFetched.Load(),
		"retries":          m.totalRetries.Load(),
		"errors":           m.totalErrors.Load(),
		"translation_time": translation.Round(time.Millisecond).String(),
		"processing_time":  processing.Round(time.Millisecond).String(),
		"total_time":       time.Since(m.startTime).Round(time.Millisecond).String(),
	}).Info("collection run finished")
}
