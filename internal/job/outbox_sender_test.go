package job

import (
	"context"
	"errors"
	"testing"

	"smartbank/internal/config"
	"smartbank/internal/infrastructure/mq"
	"smartbank/internal/model"
	"smartbank/internal/storage"
	"smartbank/internal/storage/memory"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOutbox(t *testing.T, store *memory.Store, keys ...string) {
	t.Helper()
	err := store.RunAtomic(context.Background(), func(tx storage.Tx) error {
		for _, key := range keys {
			if err := tx.InsertOutbox(context.Background(), &model.OutboxMessage{
				MessageKey: key,
				Topic:      "transaction-events",
				Payload:    `{"event":"deposit"}`,
				Status:     model.OutboxStatusPending,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func newTestSender(store *memory.Store) *OutboxSender {
	cfg := &config.Config{}
	cfg.Business.MaxRetryCount = 2
	return NewOutboxSender(store, nil, cfg)
}

func TestProcessPendingMessages(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedOutbox(t, store, "TXN1", "TXN2")

	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	mq.KafkaProducer = producer

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	sender := newTestSender(store)
	sender.processPendingMessages(ctx)

	// The delivered message leaves the queue, the failed one stays with a
	// bumped retry count.
	pending, err := store.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "TXN2", pending[0].MessageKey)
	assert.Equal(t, 1, pending[0].RetryCount)
}

func TestSendMessageMarksFailedAtRetryBudget(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedOutbox(t, store, "TXN1")

	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	mq.KafkaProducer = producer

	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	sender := newTestSender(store)
	sender.processPendingMessages(ctx)
	sender.processPendingMessages(ctx)

	pending, err := store.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "a message over its retry budget is parked as failed")
}
