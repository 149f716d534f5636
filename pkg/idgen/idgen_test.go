package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDMonotonic(t *testing.T) {
	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateConcurrentUnique(t *testing.T) {
	gen := &Snowflake{workerID: 3}

	const workers = 8
	const perWorker = 500
	ids := make([][]int64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids[w] = make([]int64, perWorker)
			for i := 0; i < perWorker; i++ {
				ids[w][i] = gen.Generate()
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[int64]struct{}, workers*perWorker)
	for _, batch := range ids {
		for _, id := range batch {
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %d", id)
			seen[id] = struct{}{}
		}
	}
}

func TestTransactionRefFormat(t *testing.T) {
	ref := TransactionRef()
	assert.True(t, strings.HasPrefix(ref, "TXN"))
	assert.Len(t, ref, 3+14+8)
	for _, r := range ref[3:] {
		assert.True(t, r >= '0' && r <= '9', "reference %q contains a non-digit", ref)
	}
}

func TestAccountNumberFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		number := AccountNumber()
		assert.Len(t, number, 10)
		assert.NotEqual(t, byte('0'), number[0])
	}
}
