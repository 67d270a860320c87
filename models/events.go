package models

// Status values emitted by the recursive ingestion stream.
const (
	StatusInitializing        = "initializing"
	StatusProgress            = "progress"
	StatusPersistenceComplete = "persistence_complete"
	StatusWarning             = "warning"
	StatusError               = "error"
)

// StatusEvent is one server-push event of the recursive ingestion stream.
type StatusEvent struct {
	Status   string              `json:"status"`
	Message  string              `json:"message"`
	FolderID string              `json:"folder_id,omitempty"`
	Progress *ProgressSnapshot   `json:"progress,omitempty"`
	Data     *PersistenceSummary `json:"data,omitempty"`
}

// PersistenceSummary reports the tri-state outcome of a bulk save.
// Successful carries internal database IDs, Duplicates carries immutable
// message IDs of rows already present, and Failures carries the volatile
// source IDs of rows that could not be saved for any other reason.
type PersistenceSummary struct {
	TotalEmails int      `json:"total_emails"`
	Successful  []int64  `json:"successful"`
	Duplicates  []string `json:"duplicates"`
	Failures    []string `json:"failures"`
}

// ProgressSnapshot is a point-in-time view of a collection run, shaped for
// the front-end progress display.
type ProgressSnapshot struct {
	Phase           string  `json:"phase"`
	Progress        float64 `json:"progress"`
	TotalEmails     int     `json:"total_emails"`
	ProcessedEmails int     `json:"processed_emails"`
	PagesFetched    int     `json:"pages_fetched"`
	IDsTranslated   int     `json:"ids_translated"`
}
