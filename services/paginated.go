package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"mailbridge/config"
	"mailbridge/graph"
	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/utils"
)

// PaginatedEmailService serves single browsable pages of a folder and
// feeds what it fetched into the cache so a later selective persist
// does not refetch.
type PaginatedEmailService struct {
	messages   MessageClient
	translator *TranslatorService
	cache      EmailCachePort
	retry      *retry.Service
	cfg        config.CollectionConfig
	log        *log.Entry
}

// NewPaginatedEmailService builds the page-browsing service.
func NewPaginatedEmailService(messages MessageClient, translator *TranslatorService, emailCache EmailCachePort, retrySvc *retry.Service, cfg config.CollectionConfig, logger *log.Entry) *PaginatedEmailService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &PaginatedEmailService{
		messages:   messages,
		translator: translator,
		cache:      emailCache,
		retry:      retrySvc,
		cfg:        cfg,
		log:        logger,
	}
}

// GetEmailsPage fetches one page of a folder, optionally narrowed to
// subjects containing the given text. Bodies in the response are
// sanitized; the cached copies keep the original markup so persistence
// stores what Graph returned.
func (s *PaginatedEmailService) GetEmailsPage(ctx context.Context, folderID string, page, perPage int, subject string) (*models.PaginatedEmails, error) {
	if page < 0 {
		page = 0
	}
	if perPage <= 0 {
		perPage = s.cfg.PageSize
	}
	q := graph.DefaultMessageQuery(perPage, page*perPage, true)
	if subject != "" {
		// OData escapes single quotes by doubling them.
		escaped := strings.ReplaceAll(subject, "'", "''")
		q.Filter = fmt.Sprintf("contains(subject,'%s')", escaped)
	}
	result, err := retry.Do(ctx, s.retry, retry.Context[*graph.MessagePage]{
		ErrorMsg: fmt.Sprintf("fetch page %d of folder %s", page, folderID),
		Op: func(ctx context.Context) (*graph.MessagePage, error) {
			return s.messages.ListMessages(ctx, folderID, q)
		},
		Wrap: func(err error) error {
			if utils.IsKind(err, utils.KindAPI) {
				return err
			}
			return utils.NewEmailError(folderID, fmt.Sprintf("fetching page %d", page), err)
		},
	})
	if err != nil {
		return nil, err
	}

	sourceIDs := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		sourceIDs = append(sourceIDs, m.ID)
	}
	mappings := s.translator.TranslateLenient(ctx, sourceIDs, s.cfg.TranslationBatchSize, nil)

	emails := make([]models.Email, 0, len(result.Messages))
	for _, m := range result.Messages {
		emails = append(emails, m.ToEmail(mappings[m.ID]))
	}
	s.mergeIntoCache(folderID, emails)

	total := result.TotalCount
	if total < 0 {
		total = len(emails)
	}
	sanitized := make([]models.Email, len(emails))
	copy(sanitized, emails)
	for i := range sanitized {
		sanitized[i].Body = utils.SanitizeHTML(sanitized[i].Body)
	}
	return models.NewPaginatedEmails(sanitized, page, perPage, total), nil
}

// mergeIntoCache adds newly fetched emails to the folder's snapshot
// without dropping emails other pages already contributed.
func (s *PaginatedEmailService) mergeIntoCache(folderID string, emails []models.Email) {
	baseline, _ := s.cache.FolderEmails(folderID)
	known := make(map[string]struct{}, len(baseline))
	for _, email := range baseline {
		known[email.SourceID] = struct{}{}
	}
	merged := baseline
	for _, email := range emails {
		if _, ok := known[email.SourceID]; !ok {
			merged = append(merged, email)
		}
	}
	if merged == nil {
		merged = []models.Email{}
	}
	s.cache.StoreFolderEmails(folderID, merged)
}
