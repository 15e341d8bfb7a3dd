package failures

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/internal/metrics"
	"github.com/sevigo/metroid/internal/routing"
	"github.com/sevigo/metroid/mocks"
)

type anyJob struct{}

func (anyJob) Has(string) bool { return true }

func testRegistry(t *testing.T) *routing.Registry {
	t.Helper()
	reg, err := routing.NewRegistry([]core.SubscriptionConfig{{
		TopicName:        "T2",
		SubscriptionName: "S2",
		ConnectionTarget: "nats://localhost:4222",
		Handlers: []core.HandlerRule{
			{Subject: `^Invoice/.*$`, IsPattern: true, Job: "invoices"},
			{Subject: "Invoice.Voided", Job: "voids"},
		},
	}}, anyJob{})
	require.NoError(t, err)
	return reg
}

type detailedErr struct{}

func (detailedErr) Error() string  { return "boom" }
func (detailedErr) Detail() string { return "boom after 3 attempts" }

func TestRecorder_RecordJobFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	m := metrics.NewNop()

	req := &core.DispatchJobRequest{
		Message:          map[string]any{"subject": "Invoice/Paid", "amount": 10.0},
		TopicName:        "T2",
		SubscriptionName: "S2",
		Subject:          `^Invoice/.*$`,
		SequenceNumber:   7,
	}

	var saved *core.FailedMessage
	store.EXPECT().SaveFailedMessage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *core.FailedMessage) error {
			saved = msg
			msg.ID = 1
			return nil
		},
	).Times(1)

	NewRecorder(store, m, logger.Discard()).RecordJobFailure(context.Background(), "invoices", req, "corr-1", fmt.Errorf("wrapped: %w", detailedErr{}))

	require.NotNil(t, saved)
	assert.Equal(t, "T2", saved.TopicName)
	assert.Equal(t, "S2", saved.SubscriptionName)
	assert.Equal(t, `^Invoice/.*$`, saved.Subject)
	assert.Equal(t, int64(7), saved.SequenceNumber)
	assert.Equal(t, req.Message, saved.Message)
	assert.Equal(t, "wrapped: boom", saved.ErrorSummary)
	assert.Equal(t, "boom after 3 attempts", saved.ErrorDetail)
	assert.Equal(t, "corr-1", saved.CorrelationID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.InDelta(t, 1, testutil.ToFloat64(m.FailedRecords), 0)
}

func TestRecorder_PersistenceFailureIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	m := metrics.NewNop()

	store.EXPECT().SaveFailedMessage(gomock.Any(), gomock.Any()).Return(errors.New("database is down"))

	rec := NewRecorder(store, m, logger.Discard())
	assert.NotPanics(t, func() {
		rec.RecordJobFailure(context.Background(), "invoices", &core.DispatchJobRequest{TopicName: "T2"}, "corr-2", errors.New("job failed"))
	})
	assert.InDelta(t, 0, testutil.ToFloat64(m.FailedRecords), 0)
}

func TestRecorder_CancelledContextStillSaves(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().SaveFailedMessage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *core.FailedMessage) error {
			return ctx.Err()
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewRecorder(store, nil, logger.Discard()).RecordJobFailure(ctx, "invoices", &core.DispatchJobRequest{}, "corr-3", errors.New("job failed"))
}

func TestService_Retry(t *testing.T) {
	record := func() *core.FailedMessage {
		return &core.FailedMessage{
			ID:               5,
			TopicName:        "T2",
			SubscriptionName: "S2",
			Subject:          `^Invoice/.*$`,
			SequenceNumber:   11,
			Message:          map[string]any{"subject": "Invoice/Paid"},
			CorrelationID:    "corr-5",
		}
	}

	testCases := []struct {
		name       string
		setup      func(store *mocks.MockStore, dispatcher *mocks.MockJobDispatcher)
		wantResult RetryResult
		wantErr    error
	}{
		{
			name: "resubmits and deletes",
			setup: func(store *mocks.MockStore, dispatcher *mocks.MockJobDispatcher) {
				gomock.InOrder(
					store.EXPECT().GetFailedMessage(gomock.Any(), int64(5)).Return(record(), nil),
					dispatcher.EXPECT().Submit(gomock.Any(), "invoices", &core.DispatchJobRequest{
						Message:          map[string]any{"subject": "Invoice/Paid"},
						TopicName:        "T2",
						SubscriptionName: "S2",
						Subject:          `^Invoice/.*$`,
						SequenceNumber:   11,
					}).Return(nil),
					store.EXPECT().DeleteFailedMessage(gomock.Any(), int64(5)).Return(nil),
				)
			},
			wantResult: RetryResubmitted,
		},
		{
			name: "literal subject resolved by equality",
			setup: func(store *mocks.MockStore, dispatcher *mocks.MockJobDispatcher) {
				r := record()
				r.Subject = "Invoice.Voided"
				store.EXPECT().GetFailedMessage(gomock.Any(), int64(5)).Return(r, nil)
				dispatcher.EXPECT().Submit(gomock.Any(), "voids", gomock.Any()).Return(nil)
				store.EXPECT().DeleteFailedMessage(gomock.Any(), int64(5)).Return(nil)
			},
			wantResult: RetryResubmitted,
		},
		{
			name: "no handler keeps the record",
			setup: func(store *mocks.MockStore, _ *mocks.MockJobDispatcher) {
				r := record()
				r.Subject = "Order.Created"
				store.EXPECT().GetFailedMessage(gomock.Any(), int64(5)).Return(r, nil)
			},
			wantResult: RetryNoHandler,
			wantErr:    routing.ErrNoHandler,
		},
		{
			name: "submission failure keeps the record",
			setup: func(store *mocks.MockStore, dispatcher *mocks.MockJobDispatcher) {
				store.EXPECT().GetFailedMessage(gomock.Any(), int64(5)).Return(record(), nil)
				dispatcher.EXPECT().Submit(gomock.Any(), "invoices", gomock.Any()).Return(errors.New("queue full"))
			},
			wantResult: RetryFailed,
		},
		{
			name: "unknown record",
			setup: func(store *mocks.MockStore, _ *mocks.MockJobDispatcher) {
				store.EXPECT().GetFailedMessage(gomock.Any(), int64(5)).Return(nil, core.ErrNotFound)
			},
			wantResult: RetryFailed,
			wantErr:    core.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockStore(ctrl)
			dispatcher := mocks.NewMockJobDispatcher(ctrl)
			tc.setup(store, dispatcher)

			svc := NewService(store, testRegistry(t), dispatcher, logger.Discard())
			result, err := svc.Retry(context.Background(), 5)

			assert.Equal(t, tc.wantResult, result)
			if tc.wantResult == RetryResubmitted {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestRecordThenRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	dispatcher := mocks.NewMockJobDispatcher(ctrl)

	var saved *core.FailedMessage
	store.EXPECT().SaveFailedMessage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *core.FailedMessage) error {
			msg.ID = 3
			saved = msg
			return nil
		},
	)
	req := &core.DispatchJobRequest{
		Message:          map[string]any{"subject": "Invoice/Paid"},
		TopicName:        "T2",
		SubscriptionName: "S2",
		Subject:          `^Invoice/.*$`,
		SequenceNumber:   2,
	}
	NewRecorder(store, nil, logger.Discard()).RecordJobFailure(context.Background(), "invoices", req, "corr-7", errors.New("job failed"))
	require.NotNil(t, saved)
	assert.NotEmpty(t, saved.CorrelationID)

	store.EXPECT().GetFailedMessage(gomock.Any(), int64(3)).Return(saved, nil)
	dispatcher.EXPECT().Submit(gomock.Any(), "invoices", req).Return(nil)
	store.EXPECT().DeleteFailedMessage(gomock.Any(), int64(3)).Return(nil)

	result, err := NewService(store, testRegistry(t), dispatcher, logger.Discard()).Retry(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, RetryResubmitted, result)
}

func TestService_ListDefaultsLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().ListFailedMessages(gomock.Any(), DefaultListLimit).Return(nil, nil)

	_, err := NewService(store, testRegistry(t), nil, logger.Discard()).List(context.Background(), 0)
	assert.NoError(t, err)
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", core.ErrNotFound)))
}
