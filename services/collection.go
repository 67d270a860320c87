package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"mailbridge/config"
	"mailbridge/graph"
	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/utils"
)

// MessageClient is the message-listing surface of the Graph client.
type MessageClient interface {
	ListMessages(ctx context.Context, folderID string, q graph.MessageQuery) (*graph.MessagePage, error)
}

// CollectionEventKind discriminates collection stream events.
type CollectionEventKind int

const (
	// EventProgress carries a metrics snapshot.
	EventProgress CollectionEventKind = iota
	// EventResult carries the folder's complete email list and ends
	// the stream.
	EventResult
	// EventError ends the stream with a failure.
	EventError
)

// CollectionEvent is one event of a folder collection stream. Exactly
// one of Emails and Err is meaningful for result and error events.
type CollectionEvent struct {
	Kind     CollectionEventKind
	Snapshot models.ProgressSnapshot
	Emails   []models.Email
	Err      error
}

// CollectionService fetches a single folder's complete contents:
// concurrent paged fetches, then ID translation, then chunked
// conversion into domain emails.
type CollectionService struct {
	messages   MessageClient
	translator *TranslatorService
	retry      *retry.Service
	cfg        config.CollectionConfig
	log        *log.Entry
}

// NewCollectionService builds the collection pipeline.
func NewCollectionService(messages MessageClient, translator *TranslatorService, retrySvc *retry.Service, cfg config.CollectionConfig, logger *log.Entry) *CollectionService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CollectionService{
		messages:   messages,
		translator: translator,
		retry:      retrySvc,
		cfg:        cfg,
		log:        logger,
	}
}

// GetAllEmailsByFolderID streams the collection of one folder. The
// returned channel closes after a result or error event, or when ctx
// is cancelled.
func (s *CollectionService) GetAllEmailsByFolderID(ctx context.Context, folderID string) <-chan CollectionEvent {
	ch := make(chan CollectionEvent)
	go s.run(ctx, folderID, ch)
	return ch
}

func (s *CollectionService) run(ctx context.Context, folderID string, ch chan<- CollectionEvent) {
	defer close(ch)
	metrics := models.NewBatchMetrics(folderID)
	defer metrics.LogFinal(s.log)

	emit := func(ev CollectionEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	progress := func() bool {
		return emit(CollectionEvent{Kind: EventProgress, Snapshot: metrics.Snapshot()})
	}
	fail := func(err error) {
		metrics.RecordError()
		emit(CollectionEvent{Kind: EventError, Err: err})
	}

	// Phase 1: fetch every page. Page zero goes alone so the folder's
	// total count is known before fanning out.
	metrics.SetPhase(models.PhaseFetching)
	firstPage, err := s.fetchPage(ctx, folderID, 0, true, metrics)
	if err != nil {
		fail(err)
		return
	}
	total := firstPage.TotalCount
	if total < 0 {
		total = len(firstPage.Messages)
	}
	metrics.SetTotalCount(total)
	if !progress() {
		return
	}
	if total == 0 || len(firstPage.Messages) == 0 {
		metrics.SetPhase(models.PhaseComplete)
		emit(CollectionEvent{Kind: EventResult, Emails: []models.Email{}})
		return
	}

	totalPages := (total + s.cfg.PageSize - 1) / s.cfg.PageSize
	pages := make([][]graph.Message, totalPages)
	pages[0] = firstPage.Messages

	if totalPages > 1 {
		sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrentPages))
		g, gctx := errgroup.WithContext(ctx)
		for pageNum := 1; pageNum < totalPages; pageNum++ {
			pageNum := pageNum
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				page, err := s.fetchPage(gctx, folderID, pageNum, false, metrics)
				if err != nil {
					return err
				}
				pages[pageNum] = page.Messages
				progress()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			fail(err)
			return
		}
	}

	var wireMessages []graph.Message
	for _, page := range pages {
		wireMessages = append(wireMessages, page...)
	}

	// Phase 2: translate volatile IDs to immutable ones. A failed
	// batch leaves its messages untranslated rather than sinking the
	// whole run.
	metrics.SetPhase(models.PhaseTranslating)
	metrics.StartTranslation()
	sourceIDs := make([]string, 0, len(wireMessages))
	for _, m := range wireMessages {
		sourceIDs = append(sourceIDs, m.ID)
	}
	mappings := s.translator.TranslateLenient(ctx, sourceIDs, s.cfg.TranslationBatchSize, func(translated int) {
		metrics.AddIDsTranslated(translated)
		progress()
	})
	metrics.EndTranslation()
	if ctx.Err() != nil {
		fail(ctx.Err())
		return
	}

	// Phase 3: convert to domain emails in chunks, with a progress
	// event per chunk. Messages without an immutable ID are left out;
	// their translation batch already logged why.
	metrics.SetPhase(models.PhaseProcessing)
	metrics.StartProcessing()
	emails := make([]models.Email, 0, len(wireMessages))
	chunkSize := s.cfg.ProcessingChunkSize
	for start := 0; start < len(wireMessages); start += chunkSize {
		end := min(start+chunkSize, len(wireMessages))
		for _, m := range wireMessages[start:end] {
			immutableID, ok := mappings[m.ID]
			if !ok {
				continue
			}
			emails = append(emails, m.ToEmail(immutableID))
		}
		metrics.AddEmailsProcessed(end - start)
		if !progress() {
			metrics.EndProcessing()
			return
		}
	}
	metrics.EndProcessing()

	metrics.SetPhase(models.PhaseComplete)
	emit(CollectionEvent{Kind: EventResult, Emails: emails})
}

// fetchPage retrieves one page under the standard retry profile.
func (s *CollectionService) fetchPage(ctx context.Context, folderID string, pageNum int, withCount bool, metrics *models.BatchMetrics) (*graph.MessagePage, error) {
	q := graph.DefaultMessageQuery(s.cfg.PageSize, pageNum*s.cfg.PageSize, withCount)
	started := time.Now()
	page, err := retry.Do(ctx, s.retry, retry.Context[*graph.MessagePage]{
		ErrorMsg: fmt.Sprintf("fetch page %d of folder %s", pageNum, folderID),
		Op: func(ctx context.Context) (*graph.MessagePage, error) {
			return s.messages.ListMessages(ctx, folderID, q)
		},
		OnRetry: metrics.RecordRetry,
		Wrap: func(err error) error {
			if utils.IsKind(err, utils.KindAPI) {
				return err
			}
			return utils.NewEmailError(folderID, fmt.Sprintf("fetching page %d", pageNum), err)
		},
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPageTime(time.Since(started), len(page.Messages))
	metrics.AddPagesFetched(1)
	return page, nil
}
