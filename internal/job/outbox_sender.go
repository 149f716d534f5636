package job

import (
	"context"
	"log"
	"time"

	"smartbank/internal/config"
	"smartbank/internal/infrastructure/lock"
	"smartbank/internal/infrastructure/mq"
	"smartbank/internal/model"
	"smartbank/internal/storage"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// OutboxSender drains pending ledger events to Kafka. Events were written in
// the same atomic unit as the mutation they describe, so publishing them here
// never races the commit.
type OutboxSender struct {
	store       storage.Store
	redisClient *redis.Client
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewOutboxSender(store storage.Store, redisClient *redis.Client, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		store:       store,
		redisClient: redisClient,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    time.Second,
		batchSize:   100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] context cancelled, exiting")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	// One replica drains at a time; the others skip the tick.
	batchLock := lock.NewOutboxLock(s.redisClient, uuid.NewString())
	held, err := batchLock.TryLock(ctx)
	if err != nil {
		log.Printf("[OutboxSender] lock error: %v", err)
		return
	}
	if !held {
		return
	}
	defer batchLock.Unlock(ctx)

	messages, err := s.store.PendingOutbox(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] failed to load pending messages: %v", err)
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.store.MarkOutboxSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] failed to mark message sent: id=%d, err=%v", msg.ID, updateErr)
		}
		return
	}

	log.Printf("[OutboxSender] publish failed: id=%d, err=%v", msg.ID, err)

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.store.MarkOutboxFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] failed to mark message failed: id=%d, err=%v", msg.ID, err)
		}
		return
	}
	if err := s.store.IncrementOutboxRetry(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] failed to bump retry count: id=%d, err=%v", msg.ID, err)
	}
}
