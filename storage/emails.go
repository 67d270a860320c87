package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/utils"
)

const insertEmailQuery = `
INSERT INTO emails (
	ref_type, ref_id, from_addr, to_addr, cc_addr, bcc_addr,
	subject, body, email_date, graph_message_id, graph_source_id,
	graph_conversation_id, is_read, has_attachments, created_by
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
) RETURNING email_id`

// EmailStore persists collected emails. Every insert runs under the
// batch retry profile; duplicates abort retrying on the first attempt.
type EmailStore struct {
	pool  *pgxpool.Pool
	retry *retry.Service
	log   *log.Entry

	// insert is swappable so outcome classification is testable
	// without a live database.
	insert func(ctx context.Context, rec *EmailRecord) error
}

// NewEmailStore builds a store over an open pool.
func NewEmailStore(pool *pgxpool.Pool, retrySvc *retry.Service, logger *log.Entry) *EmailStore {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	s := &EmailStore{pool: pool, retry: retrySvc, log: logger}
	s.insert = s.insertOne
	return s
}

func (s *EmailStore) insertOne(ctx context.Context, rec *EmailRecord) error {
	err := s.pool.QueryRow(ctx, insertEmailQuery,
		rec.RefType, rec.RefID, rec.FromAddr, rec.ToAddr, rec.CcAddr, rec.BccAddr,
		rec.Subject, rec.Body, rec.EmailDate, rec.GraphMessageID, rec.GraphSourceID,
		rec.GraphConversationID, rec.IsRead, rec.HasAttachments, rec.CreatedBy,
	).Scan(&rec.EmailID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("email %s already stored: %w", rec.GraphMessageID, utils.ErrUniqueViolation)
		}
		return fmt.Errorf("inserting email %s: %w", rec.GraphMessageID, err)
	}
	return nil
}

// BulkSaveResult partitions a bulk save's records by outcome.
// Successful records carry their assigned database ID.
type BulkSaveResult struct {
	Successful []*EmailRecord
	Duplicates []*EmailRecord
	Failed     []*EmailRecord
}

// Summary shapes the result for the front-end: database IDs for the
// saved rows, immutable message IDs for duplicates and volatile source
// IDs for failures.
func (r *BulkSaveResult) Summary() *models.PersistenceSummary {
	summary := &models.PersistenceSummary{
		TotalEmails: len(r.Successful) + len(r.Duplicates) + len(r.Failed),
		Successful:  make([]int64, 0, len(r.Successful)),
		Duplicates:  make([]string, 0, len(r.Duplicates)),
		Failures:    make([]string, 0, len(r.Failed)),
	}
	for _, rec := range r.Successful {
		summary.Successful = append(summary.Successful, rec.EmailID)
	}
	for _, rec := range r.Duplicates {
		summary.Duplicates = append(summary.Duplicates, rec.GraphMessageID)
	}
	for _, rec := range r.Failed {
		summary.Failures = append(summary.Failures, rec.GraphSourceID)
	}
	return summary
}

// BulkSaveEmails inserts each record independently and classifies the
// outcome per record. A unique-constraint hit is a duplicate, not a
// failure; only when every record fails outright does the whole call
// return an error alongside the result.
func (s *EmailStore) BulkSaveEmails(ctx context.Context, records []*EmailRecord) (*BulkSaveResult, error) {
	result := &BulkSaveResult{}
	if len(records) == 0 {
		return result, nil
	}
	if err := s.checkPool(ctx); err != nil {
		return nil, utils.NewPersistenceError("database unavailable before bulk save", err)
	}

	for _, rec := range records {
		rec := rec
		_, err := retry.Do(ctx, s.retry, retry.Context[struct{}]{
			ErrorMsg: "save email",
			Op: func(ctx context.Context) (struct{}, error) {
				return struct{}{}, s.insert(ctx, rec)
			},
			Wrap: func(err error) error {
				return fmt.Errorf("saving email %s: %w", rec.GraphMessageID, err)
			},
		})
		switch {
		case err == nil:
			result.Successful = append(result.Successful, rec)
		case errors.Is(err, utils.ErrUniqueViolation):
			result.Duplicates = append(result.Duplicates, rec)
		default:
			s.log.WithField("graph_source_id", rec.GraphSourceID).
				WithError(err).Warn("email insert failed")
			result.Failed = append(result.Failed, rec)
		}
	}

	s.log.WithFields(log.Fields{
		"total":      len(records),
		"successful": len(result.Successful),
		"duplicates": len(result.Duplicates),
		"failed":     len(result.Failed),
	}).Info("bulk save finished")

	if len(result.Successful) == 0 && len(result.Duplicates) == 0 && len(result.Failed) > 0 {
		return result, utils.NewPersistenceError(
			fmt.Sprintf("all %d emails failed to save", len(result.Failed)), nil)
	}
	return result, nil
}

// checkPool verifies the pool can hand out a connection before a bulk
// run starts, so a down database fails fast instead of once per record.
func (s *EmailStore) checkPool(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
