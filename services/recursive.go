package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mailbridge/cache"
	"mailbridge/models"
	"mailbridge/storage"
	"mailbridge/utils"
)

// StreamEventKind discriminates recursive ingestion stream events.
type StreamEventKind int

const (
	// StreamStatus carries a front-end status event.
	StreamStatus StreamEventKind = iota
	// StreamError ends the stream with a failure.
	StreamError
)

// StreamEvent is one event of a recursive ingestion stream.
type StreamEvent struct {
	Kind   StreamEventKind
	Status models.StatusEvent
	Err    error
}

// Collector streams the collection of one folder.
type Collector interface {
	GetAllEmailsByFolderID(ctx context.Context, folderID string) <-chan CollectionEvent
}

// FolderDirectory resolves folders and their children.
type FolderDirectory interface {
	GetFolder(ctx context.Context, folderID string) (models.Folder, error)
	GetChildFolders(ctx context.Context, folderID string) ([]models.Folder, error)
}

// EmailCachePort is the cache surface the pipeline services need.
type EmailCachePort interface {
	Info(folderID string) *cache.Info
	FolderEmails(folderID string) ([]models.Email, bool)
	StoreFolderEmails(folderID string, emails []models.Email)
	GetEmailsByIDs(folderID string, sourceIDs []string) ([]models.Email, []string)
}

// EmailStorePort persists collected emails.
type EmailStorePort interface {
	BulkSaveEmails(ctx context.Context, records []*storage.EmailRecord) (*storage.BulkSaveResult, error)
}

// RecipientStorePort persists recipient rows of saved emails.
type RecipientStorePort interface {
	BulkSaveRecipients(ctx context.Context, records []storage.RecipientRecord) error
}

// RecursiveEmailService walks a folder subtree depth first, collects
// every folder's emails and persists the whole harvest in one bulk
// save at the end.
type RecursiveEmailService struct {
	folders    FolderDirectory
	collector  Collector
	cache      EmailCachePort
	emails     EmailStorePort
	recipients RecipientStorePort
	log        *log.Entry
}

// NewRecursiveEmailService wires the orchestrator.
func NewRecursiveEmailService(folders FolderDirectory, collector Collector, emailCache EmailCachePort, emails EmailStorePort, recipients RecipientStorePort, logger *log.Entry) *RecursiveEmailService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &RecursiveEmailService{
		folders:    folders,
		collector:  collector,
		cache:      emailCache,
		emails:     emails,
		recipients: recipients,
		log:        logger,
	}
}

// GetAllEmailsRecursively runs one recursive ingestion. The stream
// carries status events for the front-end and closes after the
// persistence summary or a terminal error.
func (s *RecursiveEmailService) GetAllEmailsRecursively(ctx context.Context, folderID string, req models.IngestRequest) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go s.run(ctx, folderID, req, ch)
	return ch
}

func (s *RecursiveEmailService) run(ctx context.Context, folderID string, req models.IngestRequest, ch chan<- StreamEvent) {
	defer close(ch)
	emit := func(ev StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	status := func(se models.StatusEvent) bool {
		return emit(StreamEvent{Kind: StreamStatus, Status: se})
	}

	status(models.StatusEvent{
		Status:   models.StatusInitializing,
		Message:  "starting recursive email collection",
		FolderID: folderID,
	})

	emails, err := s.collectFolder(ctx, folderID, status)
	if err != nil {
		// API rejections reach the client as the terminal error alone;
		// everything else gets a readable status event first.
		if !utils.IsKind(err, utils.KindAPI) {
			status(models.StatusEvent{
				Status:   models.StatusError,
				Message:  fmt.Sprintf("recursive collection failed: %v", err),
				FolderID: folderID,
			})
		}
		emit(StreamEvent{Kind: StreamError, Err: err})
		return
	}

	if len(emails) == 0 {
		status(models.StatusEvent{
			Status:   models.StatusWarning,
			Message:  "no emails found in folder tree",
			FolderID: folderID,
		})
		emit(StreamEvent{Kind: StreamError, Err: utils.NewRecursiveEmailError(
			folderID, "no emails found in folder tree", nil)})
		return
	}

	s.persist(ctx, emails, req, folderID, emit, status)
}

// collectFolder gathers the emails of folderID and its whole subtree.
// Failures on the current folder propagate; failures inside a subtree
// folder are reported as warnings and that subtree is skipped, unless
// the failure is an API rejection, which always propagates.
func (s *RecursiveEmailService) collectFolder(ctx context.Context, folderID string, status func(models.StatusEvent) bool) ([]models.Email, error) {
	folder, err := s.folders.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	status(models.StatusEvent{
		Status:   models.StatusProgress,
		Message:  fmt.Sprintf("collecting folder %s", folder.DisplayName),
		FolderID: folderID,
	})

	children, err := s.folders.GetChildFolders(ctx, folderID)
	if err != nil {
		return nil, err
	}

	all, err := s.collectCurrent(ctx, folderID, status)
	if err != nil {
		return nil, err
	}

	for _, child := range children {
		sub, err := s.collectFolder(ctx, child.ID, status)
		if err != nil {
			if utils.IsKind(err, utils.KindFolder) || utils.IsKind(err, utils.KindEmail) {
				s.log.WithFields(log.Fields{
					"folder_id": child.ID,
					"parent_id": folderID,
				}).WithError(err).Warn("skipping subfolder after collection failure")
				status(models.StatusEvent{
					Status:   models.StatusWarning,
					Message:  fmt.Sprintf("skipping folder %s: %v", child.DisplayName, err),
					FolderID: child.ID,
				})
				continue
			}
			return nil, err
		}
		all = append(all, sub...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// collectCurrent fetches one folder's own emails, merges them with any
// cached snapshot and stores the merged list back, restarting the TTL.
// Empty folders are stored too so repeat runs skip straight through.
func (s *RecursiveEmailService) collectCurrent(ctx context.Context, folderID string, status func(models.StatusEvent) bool) ([]models.Email, error) {
	var baseline []models.Email
	cached := false
	if info := s.cache.Info(folderID); info != nil {
		baseline, _ = s.cache.FolderEmails(folderID)
		cached = true
		status(models.StatusEvent{
			Status:   models.StatusProgress,
			Message:  fmt.Sprintf("retrieved %d emails from cache", len(baseline)),
			FolderID: folderID,
		})
	}

	var fetched []models.Email
	gotResult := false
	for ev := range s.collector.GetAllEmailsByFolderID(ctx, folderID) {
		switch ev.Kind {
		case EventProgress:
			snapshot := ev.Snapshot
			status(models.StatusEvent{
				Status:   models.StatusProgress,
				Message:  fmt.Sprintf("collection %s", snapshot.Phase),
				FolderID: folderID,
				Progress: &snapshot,
			})
		case EventError:
			return nil, ev.Err
		case EventResult:
			fetched = ev.Emails
			gotResult = true
		}
	}
	if !gotResult {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, utils.NewEmailError(folderID, "collection ended without a result", nil)
	}

	known := make(map[string]struct{}, len(baseline))
	for _, email := range baseline {
		known[email.SourceID] = struct{}{}
	}
	merged := baseline
	for _, email := range fetched {
		if _, ok := known[email.SourceID]; !ok {
			merged = append(merged, email)
		}
	}
	if merged == nil {
		merged = []models.Email{}
	}
	s.cache.StoreFolderEmails(folderID, merged)
	if cached {
		status(models.StatusEvent{
			Status:   models.StatusProgress,
			Message:  fmt.Sprintf("found %d new emails", len(merged)-len(baseline)),
			FolderID: folderID,
		})
	} else {
		status(models.StatusEvent{
			Status:   models.StatusProgress,
			Message:  fmt.Sprintf("retrieved %d emails", len(merged)),
			FolderID: folderID,
		})
	}
	return merged, nil
}

func (s *RecursiveEmailService) persist(ctx context.Context, emails []models.Email, req models.IngestRequest, folderID string, emit func(StreamEvent) bool, status func(models.StatusEvent) bool) {
	records := make([]*storage.EmailRecord, 0, len(emails))
	bySource := make(map[string]models.Email, len(emails))
	for _, email := range emails {
		records = append(records, storage.ToEmailRecord(email, req))
		bySource[email.SourceID] = email
	}

	result, err := s.emails.BulkSaveEmails(ctx, records)
	if err != nil {
		status(models.StatusEvent{
			Status:   models.StatusError,
			Message:  fmt.Sprintf("persisting emails failed: %v", err),
			FolderID: folderID,
		})
		emit(StreamEvent{Kind: StreamError, Err: err})
		return
	}

	var recipientRecords []storage.RecipientRecord
	for _, rec := range result.Successful {
		email, ok := bySource[rec.GraphSourceID]
		if !ok {
			continue
		}
		recipientRecords = append(recipientRecords,
			storage.RecipientRecords(email, rec.EmailID, req.CreatedBy)...)
	}
	if err := s.recipients.BulkSaveRecipients(ctx, recipientRecords); err != nil {
		status(models.StatusEvent{
			Status:   models.StatusError,
			Message:  fmt.Sprintf("persisting recipients failed: %v", err),
			FolderID: folderID,
		})
		emit(StreamEvent{Kind: StreamError, Err: err})
		return
	}

	summary := result.Summary()
	s.log.WithFields(log.Fields{
		"folder_id":  folderID,
		"total":      summary.TotalEmails,
		"successful": len(summary.Successful),
		"duplicates": len(summary.Duplicates),
		"failures":   len(summary.Failures),
	}).Info("recursive ingestion finished")
	status(models.StatusEvent{
		Status:   models.StatusPersistenceComplete,
		Message:  fmt.Sprintf("saved %d of %d emails", len(summary.Successful), summary.TotalEmails),
		FolderID: folderID,
		Data:     summary,
	})
}
