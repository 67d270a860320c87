package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mailbridge/graph"
	"mailbridge/retry"
	"mailbridge/utils"
)

// TranslateClient is the ID-translation surface of the Graph client.
type TranslateClient interface {
	TranslateExchangeIDs(ctx context.Context, sourceIDs []string) ([]graph.IDMapping, error)
}

// TranslatorService converts volatile message IDs into immutable ones
// in retried batches.
type TranslatorService struct {
	client TranslateClient
	retry  *retry.Service
	log    *log.Entry
}

// NewTranslatorService builds a translator over the Graph client.
func NewTranslatorService(client TranslateClient, retrySvc *retry.Service, logger *log.Entry) *TranslatorService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &TranslatorService{client: client, retry: retrySvc, log: logger}
}

func (s *TranslatorService) translateBatch(ctx context.Context, batch []string) (map[string]string, error) {
	mappings, err := retry.Do(ctx, s.retry, retry.Context[[]graph.IDMapping]{
		ErrorMsg: "translate message IDs",
		Op: func(ctx context.Context) ([]graph.IDMapping, error) {
			return s.client.TranslateExchangeIDs(ctx, batch)
		},
		Wrap: func(err error) error {
			return utils.NewIDTranslationError("translating message IDs", err, batch)
		},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		out[m.SourceID] = m.TargetID
	}
	return out, nil
}

// TranslateLenient translates IDs in batches of batchSize and tolerates
// batch failures: a failed batch is logged and its IDs simply stay
// untranslated. onBatch runs after each successful batch with the
// number of IDs it translated.
func (s *TranslatorService) TranslateLenient(ctx context.Context, sourceIDs []string, batchSize int, onBatch func(translated int)) map[string]string {
	result := make(map[string]string, len(sourceIDs))
	for start := 0; start < len(sourceIDs); start += batchSize {
		end := min(start+batchSize, len(sourceIDs))
		batch := sourceIDs[start:end]
		mapped, err := s.translateBatch(ctx, batch)
		if err != nil {
			s.log.WithFields(log.Fields{
				"batch_start": start,
				"batch_size":  len(batch),
			}).WithError(err).Warn("translation batch failed, skipping")
			continue
		}
		for k, v := range mapped {
			result[k] = v
		}
		if onBatch != nil {
			onBatch(len(mapped))
		}
	}
	return result
}

// TranslateStrict translates IDs in batches of batchSize and fails on
// the first batch error or on any ID that comes back without a mapping.
func (s *TranslatorService) TranslateStrict(ctx context.Context, sourceIDs []string, batchSize int) (map[string]string, error) {
	result := make(map[string]string, len(sourceIDs))
	for start := 0; start < len(sourceIDs); start += batchSize {
		end := min(start+batchSize, len(sourceIDs))
		batch := sourceIDs[start:end]
		mapped, err := s.translateBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for k, v := range mapped {
			result[k] = v
		}
	}
	for _, id := range sourceIDs {
		if _, ok := result[id]; !ok {
			return nil, utils.NewIDTranslationError(
				fmt.Sprintf("no immutable ID returned for message %s", id), nil, sourceIDs)
		}
	}
	return result, nil
}
