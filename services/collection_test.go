package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/config"
	"mailbridge/graph"
	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/utils"
)

func testRetryService(maxRetries int) *retry.Service {
	return retry.NewServiceWithConfig(retry.Config{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxTimeout: time.Minute,
	}, nil)
}

func testCollectionConfig() config.CollectionConfig {
	return config.CollectionConfig{
		PageSize:             50,
		TranslationBatchSize: 1000,
		ProcessingChunkSize:  100,
		MaxConcurrentPages:   5,
	}
}

func genMessages(n int) []graph.Message {
	messages := make([]graph.Message, n)
	for i := range messages {
		messages[i] = graph.Message{
			ID:      fmt.Sprintf("src-%d", i),
			Subject: fmt.Sprintf("message %d", i),
		}
	}
	return messages
}

type fakeMessageClient struct {
	mu       sync.Mutex
	messages []graph.Message
	failSkip map[int]error
	// countOverride reports a folder total larger than the messages
	// actually served, producing empty trailing pages.
	countOverride int
	calls         int
	lastQuery     graph.MessageQuery
}

func (f *fakeMessageClient) ListMessages(ctx context.Context, folderID string, q graph.MessageQuery) (*graph.MessagePage, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuery = q
	f.mu.Unlock()
	if err, ok := f.failSkip[q.Skip]; ok {
		return nil, err
	}
	start := min(q.Skip, len(f.messages))
	end := min(start+q.Top, len(f.messages))
	page := &graph.MessagePage{Messages: f.messages[start:end], TotalCount: -1}
	if q.Count {
		page.TotalCount = len(f.messages)
		if f.countOverride > 0 {
			page.TotalCount = f.countOverride
		}
	}
	return page, nil
}

type fakeTranslateClient struct {
	mu    sync.Mutex
	err   error
	calls int
	// drop lists source IDs silently left out of the response.
	drop map[string]bool
}

func (f *fakeTranslateClient) TranslateExchangeIDs(ctx context.Context, sourceIDs []string) ([]graph.IDMapping, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	mappings := make([]graph.IDMapping, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if f.drop[id] {
			continue
		}
		mappings = append(mappings, graph.IDMapping{SourceID: id, TargetID: "imm-" + id})
	}
	return mappings, nil
}

func newTestCollection(messages *fakeMessageClient, translate *fakeTranslateClient) *CollectionService {
	translator := NewTranslatorService(translate, testRetryService(1), nil)
	return NewCollectionService(messages, translator, testRetryService(1), testCollectionConfig(), nil)
}

func drain(t *testing.T, ch <-chan CollectionEvent) []CollectionEvent {
	t.Helper()
	var events []CollectionEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestCollectionThreePhases(t *testing.T) {
	messages := &fakeMessageClient{messages: genMessages(120)}
	svc := newTestCollection(messages, &fakeTranslateClient{})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, EventResult, last.Kind)
	require.Len(t, last.Emails, 120)
	assert.Equal(t, "imm-src-0", last.Emails[0].MessageID)
	assert.Equal(t, "src-0", last.Emails[0].SourceID)
	// Pages arrive concurrently but the result preserves folder order.
	assert.Equal(t, "src-119", last.Emails[119].SourceID)

	processing := 0
	for _, ev := range events {
		if ev.Kind == EventProgress && ev.Snapshot.Phase == models.PhaseProcessing {
			processing++
		}
	}
	// 120 emails in chunks of 100 means exactly two processing events.
	assert.Equal(t, 2, processing)
}

func TestCollectionEmptyFolderShortCircuits(t *testing.T) {
	messages := &fakeMessageClient{messages: nil}
	svc := newTestCollection(messages, &fakeTranslateClient{})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	last := events[len(events)-1]
	require.Equal(t, EventResult, last.Kind)
	assert.Empty(t, last.Emails)
	assert.Equal(t, 1, messages.calls)
}

func TestCollectionTranslationFailureIsTolerated(t *testing.T) {
	messages := &fakeMessageClient{messages: genMessages(10)}
	svc := newTestCollection(messages, &fakeTranslateClient{err: errors.New("translate down")})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	last := events[len(events)-1]
	// The run still completes, but without translated IDs no message
	// can be kept.
	require.Equal(t, EventResult, last.Kind)
	assert.Empty(t, last.Emails)
}

func TestCollectionPartialTranslationExcludesUntranslated(t *testing.T) {
	messages := &fakeMessageClient{messages: genMessages(3)}
	svc := newTestCollection(messages, &fakeTranslateClient{drop: map[string]bool{"src-1": true}})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	last := events[len(events)-1]
	require.Equal(t, EventResult, last.Kind)
	require.Len(t, last.Emails, 2)
	assert.Equal(t, "imm-src-0", last.Emails[0].MessageID)
	assert.Equal(t, "imm-src-2", last.Emails[1].MessageID)
	for _, email := range last.Emails {
		assert.NotEmpty(t, email.MessageID, "email %s kept without an immutable ID", email.SourceID)
	}
}

func TestCollectionCountsEmptyTrailingPage(t *testing.T) {
	messages := &fakeMessageClient{messages: genMessages(50), countOverride: 60}
	svc := newTestCollection(messages, &fakeTranslateClient{})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	last := events[len(events)-1]
	require.Equal(t, EventResult, last.Kind)
	assert.Len(t, last.Emails, 50)

	maxPages := 0
	for _, ev := range events {
		if ev.Kind == EventProgress {
			maxPages = max(maxPages, ev.Snapshot.PagesFetched)
		}
	}
	// The second page comes back empty but its fetch still completed.
	assert.Equal(t, 2, maxPages)
}

func TestCollectionFirstPageErrorEndsStream(t *testing.T) {
	messages := &fakeMessageClient{
		messages: genMessages(10),
		failSkip: map[int]error{0: errors.New("boom")},
	}
	svc := newTestCollection(messages, &fakeTranslateClient{})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Kind)
	assert.True(t, utils.IsKind(last.Err, utils.KindEmail))
}

func TestCollectionLaterPageAPIErrorPropagates(t *testing.T) {
	messages := &fakeMessageClient{
		messages: genMessages(120),
		failSkip: map[int]error{100: utils.NewAPIError(429, "throttled", nil)},
	}
	svc := newTestCollection(messages, &fakeTranslateClient{})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Kind)
	assert.True(t, utils.IsKind(last.Err, utils.KindAPI))
}

func TestCollectionPhaseOrdering(t *testing.T) {
	messages := &fakeMessageClient{messages: genMessages(60)}
	svc := newTestCollection(messages, &fakeTranslateClient{})

	events := drain(t, svc.GetAllEmailsByFolderID(context.Background(), "inbox"))
	rank := map[string]int{
		models.PhaseFetching:    1,
		models.PhaseTranslating: 2,
		models.PhaseProcessing:  3,
	}
	prev := 0
	for _, ev := range events {
		if ev.Kind != EventProgress {
			continue
		}
		r := rank[ev.Snapshot.Phase]
		require.GreaterOrEqual(t, r, prev, "phase %s arrived after a later phase", ev.Snapshot.Phase)
		prev = r
	}
}
