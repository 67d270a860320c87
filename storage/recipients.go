package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"mailbridge/retry"
	"mailbridge/utils"
)

const insertRecipientQuery = `
INSERT INTO email_recipients (email_id, recipient_type, recipient_name, created_by)
VALUES ($1, $2, $3, $4)`

// RecipientStore persists the recipient rows of saved emails.
type RecipientStore struct {
	pool  *pgxpool.Pool
	retry *retry.Service
	log   *log.Entry

	insert func(ctx context.Context, records []RecipientRecord) error
}

// NewRecipientStore builds a store over an open pool.
func NewRecipientStore(pool *pgxpool.Pool, retrySvc *retry.Service, logger *log.Entry) *RecipientStore {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	s := &RecipientStore{pool: pool, retry: retrySvc, log: logger}
	s.insert = s.insertBatch
	return s
}

// insertBatch writes all rows in one pipelined batch, which pgx runs in
// a single implicit transaction. Any failed row rolls back the whole
// batch, so a retried pass never re-inserts rows from a failed one.
func (s *RecipientStore) insertBatch(ctx context.Context, records []RecipientRecord) error {
	b := &pgx.Batch{}
	for _, rec := range records {
		b.Queue(insertRecipientQuery, rec.EmailID, string(rec.Type), rec.Name, rec.CreatedBy)
	}
	results := s.pool.SendBatch(ctx, b)
	defer results.Close()
	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting recipient for email %d: %w", rec.EmailID, err)
		}
	}
	return results.Close()
}

// BulkSaveRecipients saves all recipient rows under one retried pass.
// Unlike email saves, recipient rows have no per-row tolerance: the
// first row that cannot be saved fails the whole call, because emails
// without their recipients are considered corrupt.
func (s *RecipientStore) BulkSaveRecipients(ctx context.Context, records []RecipientRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := retry.Do(ctx, s.retry, retry.Context[struct{}]{
		ErrorMsg: "save recipients",
		Op: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.insert(ctx, records)
		},
		Wrap: func(err error) error {
			return utils.NewPersistenceError("saving email recipients", err)
		},
	})
	if err == nil {
		s.log.WithField("count", len(records)).Info("recipients saved")
	}
	return err
}
