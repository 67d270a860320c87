package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUniqueViolation marks a database insert rejected by a unique
// constraint. The storage layer wraps the driver error with it so
// callers can classify duplicates without importing pgx.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrorKind partitions application errors by the layer that raised them.
// Retry and traversal logic branch on kinds, never on concrete types.
type ErrorKind int

const (
	KindFolder ErrorKind = iota
	KindEmail
	KindIDTranslation
	KindEmailPersistence
	KindRecursiveEmail
	KindAPI
	KindGraphResponse
	KindAttachment
)

func (k ErrorKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindEmail:
		return "email"
	case KindIDTranslation:
		return "id_translation"
	case KindEmailPersistence:
		return "email_persistence"
	case KindRecursiveEmail:
		return "recursive_email"
	case KindAPI:
		return "api"
	case KindGraphResponse:
		return "graph_response"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// AppError is the application error type. It carries an HTTP status code
// for the handler layer and enough identifiers to log where in the
// folder tree the failure happened.
type AppError struct {
	Kind      ErrorKind
	Code      int
	Message   string
	Err       error
	FolderID  string
	MessageID string
	SourceIDs []string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewFolderError wraps a failure while resolving or listing folders.
func NewFolderError(folderID, message string, err error) *AppError {
	return &AppError{Kind: KindFolder, Code: http.StatusBadGateway, Message: message, Err: err, FolderID: folderID}
}

// NewEmailError wraps a failure while collecting a folder's messages.
func NewEmailError(folderID, message string, err error) *AppError {
	return &AppError{Kind: KindEmail, Code: http.StatusBadGateway, Message: message, Err: err, FolderID: folderID}
}

// NewIDTranslationError wraps a failed immutable-ID translation batch.
func NewIDTranslationError(message string, err error, sourceIDs []string) *AppError {
	return &AppError{Kind: KindIDTranslation, Code: http.StatusBadGateway, Message: message, Err: err, SourceIDs: sourceIDs}
}

// NewPersistenceError wraps a database failure during a bulk save.
func NewPersistenceError(message string, err error) *AppError {
	return &AppError{Kind: KindEmailPersistence, Code: http.StatusInternalServerError, Message: message, Err: err}
}

// NewRecursiveEmailError wraps a failure of a whole recursive run.
func NewRecursiveEmailError(folderID, message string, err error) *AppError {
	return &AppError{Kind: KindRecursiveEmail, Code: http.StatusInternalServerError, Message: message, Err: err, FolderID: folderID}
}

// NewAPIError wraps a Graph HTTP error response. API errors are never
// retried and abort whatever run raised them.
func NewAPIError(code int, message string, err error) *AppError {
	if code < http.StatusBadRequest {
		code = http.StatusBadGateway
	}
	return &AppError{Kind: KindAPI, Code: code, Message: message, Err: err}
}

// NewGraphResponseError marks a structurally invalid Graph response,
// such as a collection envelope with no value array.
func NewGraphResponseError(message string) *AppError {
	return &AppError{Kind: KindGraphResponse, Code: http.StatusBadGateway, Message: message}
}

// NewAttachmentError wraps a failure fetching or saving an attachment.
func NewAttachmentError(messageID, message string, err error) *AppError {
	return &AppError{Kind: KindAttachment, Code: http.StatusBadGateway, Message: message, Err: err, MessageID: messageID}
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// IsAbortWorthy reports whether an error must stop a retry loop
// immediately: upstream API rejections and database integrity
// violations never become retryable by waiting.
func IsAbortWorthy(err error) bool {
	return IsKind(err, KindAPI) || errors.Is(err, ErrUniqueViolation)
}

// StatusCode returns the HTTP status for err, falling back to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
