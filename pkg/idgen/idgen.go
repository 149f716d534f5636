// Package idgen generates account numbers and transaction references.
//
// Transaction references come from a snowflake-style generator:
// 41 bits of millisecond timestamp, 10 bits of worker id, 12 bits of
// per-millisecond sequence. References are unique and trend upward, which
// keeps the unique index on them cheap.
package idgen

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets the worker id for the default generator. Call once at startup.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID must be between 0 and %d", maxWorkerID)
		}
		defaultGenerator = &Snowflake{workerID: workerID}
	})
}

func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted for this millisecond, wait for the next one
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// TransactionRef generates a ledger transaction reference.
// Format: TXN + yyyymmddhhmmss + last 8 digits of a snowflake id.
func TransactionRef() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("TXN%s%08d", timestamp, id%100000000)
}

// AccountNumber proposes a random 10-digit account number with a nonzero
// leading digit. Randomness alone does not guarantee uniqueness; the store's
// unique index does, and callers retry on collision.
func AccountNumber() string {
	return fmt.Sprintf("%d", 1_000_000_000+rand.Int63n(9_000_000_000))
}
