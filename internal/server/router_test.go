package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/failures"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/internal/metrics"
	"github.com/sevigo/metroid/internal/publish"
	"github.com/sevigo/metroid/internal/routing"
	"github.com/sevigo/metroid/mocks"
)

type anyJob struct{}

func (anyJob) Has(string) bool { return true }

type staticKeys map[string]string

func (k staticKeys) PublishKey(topicName string) (string, bool) {
	key, ok := k[topicName]
	return key, ok
}

type testAPI struct {
	store      *mocks.MockStore
	dispatcher *mocks.MockJobDispatcher
	handler    http.Handler
	ingest     *httptest.Server
}

func newTestAPI(t *testing.T, ingestStatus int) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	dispatcher := mocks.NewMockJobDispatcher(ctrl)

	registry, err := routing.NewRegistry([]core.SubscriptionConfig{{
		TopicName:        "T1",
		SubscriptionName: "S1",
		ConnectionTarget: "nats://localhost:4222",
		Handlers:         []core.HandlerRule{{Subject: "Order.Created", Job: "orders"}},
	}}, anyJob{})
	require.NoError(t, err)

	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(ingestStatus)
	}))
	t.Cleanup(ingest.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	deps := Dependencies{
		FailedMessages: failures.NewService(store, registry, dispatcher, logger.Discard()),
		Publisher: publish.NewClient(config.PublishConfig{BaseURL: ingest.URL, Timeout: time.Second},
			staticKeys{"orders": "secret"}, store, m, logger.Discard()),
		FailedPublish: store,
		Gatherer:      reg,
	}
	return &testAPI{store: store, dispatcher: dispatcher, handler: NewRouter(deps, logger.Discard()), ingest: ingest}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func failedRecord(subject string) *core.FailedMessage {
	return &core.FailedMessage{
		ID:               7,
		TopicName:        "T1",
		SubscriptionName: "S1",
		Subject:          subject,
		Message:          map[string]any{"subject": subject},
		ErrorSummary:     "boom",
		CorrelationID:    "corr-7",
	}
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t, http.StatusOK)
	rec := api.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	api := newTestAPI(t, http.StatusOK)
	rec := api.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "metroid_failed_publishes_total")
}

func TestRouter_RetryFailedMessage(t *testing.T) {
	testCases := []struct {
		name       string
		setup      func(api *testAPI)
		wantStatus int
		wantBody   string
	}{
		{
			name: "retried",
			setup: func(api *testAPI) {
				api.store.EXPECT().GetFailedMessage(gomock.Any(), int64(7)).Return(failedRecord("Order.Created"), nil)
				api.dispatcher.EXPECT().Submit(gomock.Any(), "orders", gomock.Any()).Return(nil)
				api.store.EXPECT().DeleteFailedMessage(gomock.Any(), int64(7)).Return(nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "retried",
		},
		{
			name: "no handler",
			setup: func(api *testAPI) {
				api.store.EXPECT().GetFailedMessage(gomock.Any(), int64(7)).Return(failedRecord("Order.Deleted"), nil)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   "no_handler",
		},
		{
			name: "resubmission failed",
			setup: func(api *testAPI) {
				api.store.EXPECT().GetFailedMessage(gomock.Any(), int64(7)).Return(failedRecord("Order.Created"), nil)
				api.dispatcher.EXPECT().Submit(gomock.Any(), "orders", gomock.Any()).Return(errors.New("queue full"))
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   "failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t, http.StatusOK)
			tc.setup(api)

			rec := api.do(http.MethodPost, "/api/v1/failed-messages/7/retry", "")
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantBody, decodeBody(t, rec)["status"])
		})
	}
}

func TestRouter_RetryUnknownFailedMessage(t *testing.T) {
	api := newTestAPI(t, http.StatusOK)
	api.store.EXPECT().GetFailedMessage(gomock.Any(), int64(8)).Return(nil, core.ErrNotFound)

	rec := api.do(http.MethodPost, "/api/v1/failed-messages/8/retry", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not found")
}

func TestRouter_FailedMessageCRUD(t *testing.T) {
	api := newTestAPI(t, http.StatusOK)

	api.store.EXPECT().ListFailedMessages(gomock.Any(), 5).Return([]*core.FailedMessage{failedRecord("Order.Created")}, nil)
	rec := api.do(http.MethodGet, "/api/v1/failed-messages?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.FailedMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "corr-7", list[0].CorrelationID)

	rec = api.do(http.MethodGet, "/api/v1/failed-messages?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	api.store.EXPECT().GetFailedMessage(gomock.Any(), int64(7)).Return(failedRecord("Order.Created"), nil)
	rec = api.do(http.MethodGet, "/api/v1/failed-messages/7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order.Created", decodeBody(t, rec)["subject"])

	rec = api.do(http.MethodGet, "/api/v1/failed-messages/seven", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	api.store.EXPECT().DeleteFailedMessage(gomock.Any(), int64(7)).Return(nil)
	rec = api.do(http.MethodDelete, "/api/v1/failed-messages/7", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	api.store.EXPECT().DeleteFailedMessage(gomock.Any(), int64(9)).Return(core.ErrNotFound)
	rec = api.do(http.MethodDelete, "/api/v1/failed-messages/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Publish(t *testing.T) {
	body := `{"eventType":"Order.Created","dataVersion":"1.0","subject":"orders/1","data":{"id":1}}`

	t.Run("published", func(t *testing.T) {
		api := newTestAPI(t, http.StatusOK)
		rec := api.do(http.MethodPost, "/api/v1/publish/orders", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "published", decodeBody(t, rec)["status"])
	})

	t.Run("ingest rejects", func(t *testing.T) {
		api := newTestAPI(t, http.StatusServiceUnavailable)
		api.store.EXPECT().SaveFailedPublish(gomock.Any(), gomock.Any()).Return(nil)
		rec := api.do(http.MethodPost, "/api/v1/publish/orders", body)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "failed", decodeBody(t, rec)["status"])
	})

	t.Run("unknown topic", func(t *testing.T) {
		api := newTestAPI(t, http.StatusOK)
		rec := api.do(http.MethodPost, "/api/v1/publish/invoices", body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		api := newTestAPI(t, http.StatusOK)
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/publish/orders", `{`).Code)
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/publish/orders", `{"eventType":"x"}`).Code)
	})
}

func TestRouter_FailedPublishes(t *testing.T) {
	api := newTestAPI(t, http.StatusOK)

	records := []*core.FailedPublish{{ID: 1, TopicName: "orders", EventType: "Order.Created", Payload: json.RawMessage(`{}`)}}
	api.store.EXPECT().ListFailedPublishes(gomock.Any()).Return(records, nil)
	rec := api.do(http.MethodGet, "/api/v1/failed-publishes", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	api.store.EXPECT().ListFailedPublishes(gomock.Any()).Return(records, nil)
	api.store.EXPECT().DeleteFailedPublish(gomock.Any(), int64(1)).Return(nil)
	rec = api.do(http.MethodPost, "/api/v1/failed-publishes/retry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"succeeded": 1.0, "failed": 0.0}, decodeBody(t, rec))
}

func TestServer_StartStop(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Port: "0"}}
	srv := NewServer(context.Background(), cfg, Dependencies{}, logger.Discard())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, srv.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
