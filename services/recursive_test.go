package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/cache"
	"mailbridge/models"
	"mailbridge/storage"
	"mailbridge/utils"
)

type fakeFolderDirectory struct {
	folders  map[string]models.Folder
	children map[string][]models.Folder
	errs     map[string]error
}

func (f *fakeFolderDirectory) GetFolder(ctx context.Context, folderID string) (models.Folder, error) {
	if err := f.errs[folderID]; err != nil {
		return models.Folder{}, err
	}
	folder, ok := f.folders[folderID]
	if !ok {
		return models.Folder{}, utils.NewFolderError(folderID, "not found", nil)
	}
	return folder, nil
}

func (f *fakeFolderDirectory) GetChildFolders(ctx context.Context, folderID string) ([]models.Folder, error) {
	return f.children[folderID], nil
}

type fakeCollector struct {
	emails map[string][]models.Email
	errs   map[string]error
}

func (f *fakeCollector) GetAllEmailsByFolderID(ctx context.Context, folderID string) <-chan CollectionEvent {
	ch := make(chan CollectionEvent, 2)
	if err := f.errs[folderID]; err != nil {
		ch <- CollectionEvent{Kind: EventError, Err: err}
	} else {
		emails := f.emails[folderID]
		if emails == nil {
			emails = []models.Email{}
		}
		ch <- CollectionEvent{Kind: EventResult, Emails: emails}
	}
	close(ch)
	return ch
}

type fakeEmailStore struct {
	saved      []*storage.EmailRecord
	err        error
	duplicates map[string]bool
	failures   map[string]bool
}

func (f *fakeEmailStore) BulkSaveEmails(ctx context.Context, records []*storage.EmailRecord) (*storage.BulkSaveResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = records
	result := &storage.BulkSaveResult{}
	var id int64
	for _, rec := range records {
		switch {
		case f.duplicates[rec.GraphSourceID]:
			result.Duplicates = append(result.Duplicates, rec)
		case f.failures[rec.GraphSourceID]:
			result.Failed = append(result.Failed, rec)
		default:
			id++
			rec.EmailID = id
			result.Successful = append(result.Successful, rec)
		}
	}
	return result, nil
}

type fakeRecipientStore struct {
	saved []storage.RecipientRecord
	err   error
}

func (f *fakeRecipientStore) BulkSaveRecipients(ctx context.Context, records []storage.RecipientRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, records...)
	return nil
}

func folder(id, name string) models.Folder {
	return models.Folder{ID: id, DisplayName: name}
}

func emailWithRecipients(sourceID string) models.Email {
	return models.Email{
		SourceID:  sourceID,
		MessageID: "imm-" + sourceID,
		Subject:   "s " + sourceID,
		Receivers: []string{"Reader One"},
	}
}

func testRequest() models.IngestRequest {
	return models.IngestRequest{RefType: "case", RefID: 1, CreatedBy: 9}
}

func drainStream(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func statusEvents(events []StreamEvent) []models.StatusEvent {
	var out []models.StatusEvent
	for _, ev := range events {
		if ev.Kind == StreamStatus {
			out = append(out, ev.Status)
		}
	}
	return out
}

func TestRecursiveHappyPathTree(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{
			"root":  folder("root", "Inbox"),
			"child": folder("child", "Archive"),
		},
		children: map[string][]models.Folder{
			"root": {folder("child", "Archive")},
		},
	}
	collector := &fakeCollector{emails: map[string][]models.Email{
		"root":  {emailWithRecipients("r1")},
		"child": {emailWithRecipients("c1"), emailWithRecipients("c2")},
	}}
	emailStore := &fakeEmailStore{}
	recipientStore := &fakeRecipientStore{}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), emailStore, recipientStore, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	statuses := statusEvents(events)
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusInitializing, statuses[0].Status)

	final := statuses[len(statuses)-1]
	require.Equal(t, models.StatusPersistenceComplete, final.Status)
	require.NotNil(t, final.Data)
	assert.Equal(t, 3, final.Data.TotalEmails)
	assert.Len(t, final.Data.Successful, 3)
	assert.Empty(t, final.Data.Duplicates)
	assert.Empty(t, final.Data.Failures)

	// One recipient row per saved email.
	assert.Len(t, recipientStore.saved, 3)
	// No error event anywhere in a clean run.
	for _, ev := range events {
		assert.NotEqual(t, StreamError, ev.Kind)
	}
}

func TestRecursiveTriStateSummary(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{"root": folder("root", "Inbox")},
	}
	collector := &fakeCollector{emails: map[string][]models.Email{
		"root": {emailWithRecipients("a"), emailWithRecipients("b"), emailWithRecipients("c")},
	}}
	emailStore := &fakeEmailStore{
		duplicates: map[string]bool{"b": true},
		failures:   map[string]bool{"c": true},
	}
	recipientStore := &fakeRecipientStore{}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), emailStore, recipientStore, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	statuses := statusEvents(events)
	final := statuses[len(statuses)-1]
	require.Equal(t, models.StatusPersistenceComplete, final.Status)
	assert.Equal(t, []string{"imm-b"}, final.Data.Duplicates)
	assert.Equal(t, []string{"c"}, final.Data.Failures)
	require.Len(t, final.Data.Successful, 1)
	// Recipients only for the successfully saved email.
	assert.Len(t, recipientStore.saved, 1)
}

func TestRecursiveEmptyTreeIsAnError(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{"root": folder("root", "Inbox")},
	}
	collector := &fakeCollector{}
	emailStore := &fakeEmailStore{}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), emailStore, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	statuses := statusEvents(events)
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusWarning, statuses[len(statuses)-1].Status)

	last := events[len(events)-1]
	require.Equal(t, StreamError, last.Kind)
	assert.True(t, utils.IsKind(last.Err, utils.KindRecursiveEmail))
	assert.Nil(t, emailStore.saved)
}

func TestRecursiveSubfolderFailureIsSkipped(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{
			"root": folder("root", "Inbox"),
			"bad":  folder("bad", "Broken"),
		},
		children: map[string][]models.Folder{
			"root": {folder("bad", "Broken")},
		},
	}
	collector := &fakeCollector{
		emails: map[string][]models.Email{"root": {emailWithRecipients("r1")}},
		errs:   map[string]error{"bad": utils.NewEmailError("bad", "fetch failed", nil)},
	}
	emailStore := &fakeEmailStore{}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), emailStore, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	statuses := statusEvents(events)

	warned := false
	for _, se := range statuses {
		if se.Status == models.StatusWarning && se.FolderID == "bad" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for the skipped subfolder")

	final := statuses[len(statuses)-1]
	require.Equal(t, models.StatusPersistenceComplete, final.Status)
	assert.Equal(t, 1, final.Data.TotalEmails)
}

func TestRecursiveAPIErrorPropagatesWithoutStatusError(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{
			"root": folder("root", "Inbox"),
			"bad":  folder("bad", "Broken"),
		},
		children: map[string][]models.Folder{
			"root": {folder("bad", "Broken")},
		},
	}
	collector := &fakeCollector{
		emails: map[string][]models.Email{"root": {emailWithRecipients("r1")}},
		errs:   map[string]error{"bad": utils.NewAPIError(401, "token expired", nil)},
	}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), &fakeEmailStore{}, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	last := events[len(events)-1]
	require.Equal(t, StreamError, last.Kind)
	assert.True(t, utils.IsKind(last.Err, utils.KindAPI))
	for _, se := range statusEvents(events) {
		assert.NotEqual(t, models.StatusError, se.Status)
	}
}

func TestRecursivePersistenceFailureEmitsErrorStatusFirst(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{"root": folder("root", "Inbox")},
	}
	collector := &fakeCollector{emails: map[string][]models.Email{
		"root": {emailWithRecipients("r1")},
	}}
	emailStore := &fakeEmailStore{err: utils.NewPersistenceError("database down", errors.New("dial refused"))}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), emailStore, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	require.GreaterOrEqual(t, len(events), 2)
	statusErr := events[len(events)-2]
	require.Equal(t, StreamStatus, statusErr.Kind)
	assert.Equal(t, models.StatusError, statusErr.Status.Status)

	last := events[len(events)-1]
	require.Equal(t, StreamError, last.Kind)
	assert.True(t, utils.IsKind(last.Err, utils.KindEmailPersistence))
}

func TestRecursiveMergesCachedSnapshot(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{"root": folder("root", "Inbox")},
	}
	collector := &fakeCollector{emails: map[string][]models.Email{
		"root": {emailWithRecipients("new")},
	}}
	emailCache := cache.NewEmailCache(time.Minute)
	emailCache.StoreFolderEmails("root", []models.Email{emailWithRecipients("old")})
	emailStore := &fakeEmailStore{}
	svc := NewRecursiveEmailService(folders, collector, emailCache, emailStore, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	statuses := statusEvents(events)
	final := statuses[len(statuses)-1]
	require.Equal(t, models.StatusPersistenceComplete, final.Status)
	assert.Equal(t, 2, final.Data.TotalEmails)

	messages := make([]string, 0, len(statuses))
	for _, se := range statuses {
		messages = append(messages, se.Message)
	}
	assert.Contains(t, messages, "retrieved 1 emails from cache")
	assert.Contains(t, messages, "found 1 new emails")

	cached, ok := emailCache.FolderEmails("root")
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestRecursiveUncachedFolderReportsRetrievedCount(t *testing.T) {
	folders := &fakeFolderDirectory{
		folders: map[string]models.Folder{"root": folder("root", "Inbox")},
	}
	collector := &fakeCollector{emails: map[string][]models.Email{
		"root": {emailWithRecipients("a"), emailWithRecipients("b")},
	}}
	svc := NewRecursiveEmailService(folders, collector, cache.NewEmailCache(time.Minute), &fakeEmailStore{}, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	messages := make([]string, 0, len(events))
	for _, se := range statusEvents(events) {
		messages = append(messages, se.Message)
	}
	assert.Contains(t, messages, "retrieved 2 emails")
	assert.NotContains(t, messages, "retrieved 2 emails from cache")
}

func TestRecursiveRootFolderErrorPropagates(t *testing.T) {
	folders := &fakeFolderDirectory{
		errs: map[string]error{"root": utils.NewFolderError("root", "not found", fmt.Errorf("404"))},
	}
	svc := NewRecursiveEmailService(folders, &fakeCollector{}, cache.NewEmailCache(time.Minute), &fakeEmailStore{}, &fakeRecipientStore{}, nil)

	events := drainStream(t, svc.GetAllEmailsRecursively(context.Background(), "root", testRequest()))
	last := events[len(events)-1]
	require.Equal(t, StreamError, last.Kind)
	assert.True(t, utils.IsKind(last.Err, utils.KindFolder))
}
