package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/correlation"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/mocks"
)

type staticKeys map[string]string

func (k staticKeys) PublishKey(topicName string) (string, bool) {
	key, ok := k[topicName]
	return key, ok
}

type capturedRequest struct {
	path          string
	key           string
	correlationID string
	body          map[string]any
}

func newIngestServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests <- capturedRequest{
			path:          r.URL.Path,
			key:           r.Header.Get(KeyHeader),
			correlationID: r.Header.Get("X-Correlation-ID"),
			body:          body,
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func newTestClient(srv *httptest.Server, store core.Store) *Client {
	return NewClient(config.PublishConfig{BaseURL: srv.URL + "/metro/", Timeout: time.Second},
		staticKeys{"Intility.MyTopic": "my-metro-key"}, store, nil, logger.Discard())
}

func testEvent() Event {
	return Event{
		EventType:   "My.Event.Created",
		EventTime:   time.Date(2021, 2, 22, 12, 34, 18, 0, time.UTC),
		DataVersion: "1.0",
		Data:        json.RawMessage(`{"hello":"world"}`),
		Subject:     "test/subject",
	}
}

func TestClient_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	srv, requests := newIngestServer(t, http.StatusOK)

	ctx := correlation.WithID(context.Background(), "corr-1")
	require.NoError(t, newTestClient(srv, store).Publish(ctx, "Intility.MyTopic", testEvent()))

	got := <-requests
	assert.Equal(t, "/metro/Intility.MyTopic", got.path)
	assert.Equal(t, "my-metro-key", got.key)
	assert.Equal(t, "corr-1", got.correlationID)
	assert.Equal(t, map[string]any{
		"eventType":   "My.Event.Created",
		"eventTime":   "2021-02-22T12:34:18Z",
		"dataVersion": "1.0",
		"data":        map[string]any{"hello": "world"},
		"subject":     "test/subject",
	}, got.body)
}

func TestClient_PublishFailureIsSaved(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	srv, _ := newIngestServer(t, http.StatusBadGateway)

	store.EXPECT().SaveFailedPublish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, record *core.FailedPublish) error {
			assert.Equal(t, "Intility.MyTopic", record.TopicName)
			assert.Equal(t, "My.Event.Created", record.EventType)
			assert.Equal(t, "test/subject", record.Subject)
			assert.Equal(t, "1.0", record.DataVersion)
			assert.JSONEq(t, `{"hello":"world"}`, string(record.Payload))
			assert.NotEmpty(t, record.CorrelationID)
			return nil
		},
	)

	err := newTestClient(srv, store).Publish(context.Background(), "Intility.MyTopic", testEvent())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestClient_PublishSaveFailureReturnsPublishError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	srv, _ := newIngestServer(t, http.StatusInternalServerError)

	store.EXPECT().SaveFailedPublish(gomock.Any(), gomock.Any()).Return(errors.New("database is down"))

	err := newTestClient(srv, store).Publish(context.Background(), "Intility.MyTopic", testEvent())
	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestClient_PublishUnknownTopic(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	srv, requests := newIngestServer(t, http.StatusOK)

	err := newTestClient(srv, store).Publish(context.Background(), "Unknown.Topic", testEvent())
	assert.ErrorIs(t, err, ErrNoPublishKey)
	assert.Empty(t, requests)
}

func TestClient_RetryFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The first record is accepted, the second rejected.
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	records := []*core.FailedPublish{
		{ID: 1, TopicName: "Intility.MyTopic", EventType: "A", Payload: json.RawMessage(`{}`), EventTime: time.Now()},
		{ID: 2, TopicName: "Intility.MyTopic", EventType: "B", Payload: json.RawMessage(`[1,2]`), EventTime: time.Now()},
		{ID: 3, TopicName: "Unknown.Topic", EventType: "C", Payload: json.RawMessage(`null`), EventTime: time.Now()},
	}
	store.EXPECT().ListFailedPublishes(gomock.Any()).Return(records, nil)
	store.EXPECT().DeleteFailedPublish(gomock.Any(), int64(1)).Return(nil)

	report, err := newTestClient(srv, store).RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RetryReport{Succeeded: 1, Failed: 2}, report)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RetryFailedListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	srv, _ := newIngestServer(t, http.StatusOK)

	store.EXPECT().ListFailedPublishes(gomock.Any()).Return(nil, errors.New("database is down"))

	_, err := newTestClient(srv, store).RetryFailed(context.Background())
	assert.ErrorContains(t, err, "database is down")
}

func TestClient_RunRetryLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	srv, _ := newIngestServer(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	store.EXPECT().ListFailedPublishes(gomock.Any()).DoAndReturn(
		func(context.Context) ([]*core.FailedPublish, error) {
			cancel()
			return nil, nil
		},
	).MinTimes(1)

	done := make(chan error, 1)
	go func() { done <- newTestClient(srv, store).RunRetryLoop(ctx, 10*time.Millisecond) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop")
	}
}

func TestClient_RunRetryLoopDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	srv, _ := newIngestServer(t, http.StatusOK)
	assert.NoError(t, newTestClient(srv, mocks.NewMockStore(ctrl)).RunRetryLoop(context.Background(), 0))
}
