package models

import "fmt"

// IngestRequest carries the persistence attribution the front-end sends
// along with a recursive ingestion run.
type IngestRequest struct {
	RefType   string `json:"ref_type"`
	RefID     int64  `json:"ref_id"`
	CreatedBy int64  `json:"created_by"`
}

// Validate checks the attribution fields the database requires.
func (r IngestRequest) Validate() error {
	if r.RefType == "" || len(r.RefType) > 30 {
		return fmt.Errorf("ref_type must be 1-30 characters")
	}
	if r.RefID <= 0 {
		return fmt.Errorf("ref_id must be positive")
	}
	if r.CreatedBy <= 0 {
		return fmt.Errorf("created_by must be positive")
	}
	return nil
}

// MaxSelectionSize caps how many source IDs a selective persist request
// may carry in one call.
const MaxSelectionSize = 50

// EmailSelection is the request body for selectively persisting a set of
// emails identified by their source IDs.
type EmailSelection struct {
	EmailSourceIDs []string `json:"email_source_ids"`
	RefType        string   `json:"ref_type"`
	RefID          int64    `json:"ref_id"`
	CreatedBy      int64    `json:"created_by"`
}

// Validate checks the selection bounds and attribution fields.
func (s EmailSelection) Validate() error {
	if len(s.EmailSourceIDs) == 0 {
		return fmt.Errorf("email_source_ids must not be empty")
	}
	if len(s.EmailSourceIDs) > MaxSelectionSize {
		return fmt.Errorf("too many message IDs provided, maximum allowed is %d", MaxSelectionSize)
	}
	return IngestRequest{RefType: s.RefType, RefID: s.RefID, CreatedBy: s.CreatedBy}.Validate()
}

// IngestRequest returns the attribution part of the selection.
func (s EmailSelection) IngestRequest() IngestRequest {
	return IngestRequest{RefType: s.RefType, RefID: s.RefID, CreatedBy: s.CreatedBy}
}
