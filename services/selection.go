package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mailbridge/graph"
	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/storage"
	"mailbridge/utils"
)

// selectionTranslationBatchSize is deliberately small: a selection is
// at most models.MaxSelectionSize IDs and a failed batch fails the
// whole request, so small batches limit the blast radius.
const selectionTranslationBatchSize = 20

// SingleMessageClient fetches one message by its volatile ID.
type SingleMessageClient interface {
	GetMessage(ctx context.Context, messageID string) (*graph.Message, error)
}

// SelectEmailService persists a hand-picked set of emails. Unlike the
// recursive run it is strict end to end: a missing message or a failed
// translation fails the request instead of degrading it.
type SelectEmailService struct {
	messages   SingleMessageClient
	translator *TranslatorService
	cache      EmailCachePort
	emails     EmailStorePort
	recipients RecipientStorePort
	retry      *retry.Service
	log        *log.Entry
}

// NewSelectEmailService wires the selective-persist service. The retry
// service should use the fast profile; the user is waiting on this call.
func NewSelectEmailService(messages SingleMessageClient, translator *TranslatorService, emailCache EmailCachePort, emails EmailStorePort, recipients RecipientStorePort, retrySvc *retry.Service, logger *log.Entry) *SelectEmailService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &SelectEmailService{
		messages:   messages,
		translator: translator,
		cache:      emailCache,
		emails:     emails,
		recipients: recipients,
		retry:      retrySvc,
		log:        logger,
	}
}

// PersistSelection saves the selected emails and returns the tri-state
// summary. Cached copies are used where available; the rest are
// fetched individually.
func (s *SelectEmailService) PersistSelection(ctx context.Context, folderID string, sel models.EmailSelection) (*models.PersistenceSummary, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	emails, missing := s.cache.GetEmailsByIDs(folderID, sel.EmailSourceIDs)
	s.log.WithFields(log.Fields{
		"folder_id": folderID,
		"selected":  len(sel.EmailSourceIDs),
		"cached":    len(emails),
		"missing":   len(missing),
	}).Info("resolving email selection")
	for _, sourceID := range missing {
		email, err := s.fetchOne(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	// Translate whatever still lacks an immutable ID. Any gap fails
	// the request; persisting without the stable ID would break
	// duplicate detection.
	var untranslated []string
	for _, email := range emails {
		if email.MessageID == "" {
			untranslated = append(untranslated, email.SourceID)
		}
	}
	if len(untranslated) > 0 {
		mappings, err := s.translator.TranslateStrict(ctx, untranslated, selectionTranslationBatchSize)
		if err != nil {
			return nil, err
		}
		for i := range emails {
			if emails[i].MessageID == "" {
				emails[i].MessageID = mappings[emails[i].SourceID]
			}
		}
	}

	req := sel.IngestRequest()
	records := make([]*storage.EmailRecord, 0, len(emails))
	bySource := make(map[string]models.Email, len(emails))
	for _, email := range emails {
		records = append(records, storage.ToEmailRecord(email, req))
		bySource[email.SourceID] = email
	}
	result, err := s.emails.BulkSaveEmails(ctx, records)
	if err != nil {
		return nil, err
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
		return nil, err
	}
	return result.Summary(), nil
}

func (s *SelectEmailService) fetchOne(ctx context.Context, sourceID string) (models.Email, error) {
	msg, err := retry.Do(ctx, s.retry, retry.Context[*graph.Message]{
		ErrorMsg: fmt.Sprintf("fetch message %s", sourceID),
		Op: func(ctx context.Context) (*graph.Message, error) {
			return s.messages.GetMessage(ctx, sourceID)
		},
		Wrap: func(err error) error {
			if utils.IsKind(err, utils.KindAPI) {
				return err
			}
			return utils.NewEmailError("", fmt.Sprintf("fetching message %s", sourceID), err)
		},
	})
	if err != nil {
		return models.Email{}, err
	}
	return msg.ToEmailWithoutID(), nil
}
