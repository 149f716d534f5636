package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"smartbank/internal/model"
	"smartbank/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, store *Store, number string, userID, balance int64) *model.Account {
	t.Helper()
	account := &model.Account{
		AccountNumber: number,
		AccountType:   model.AccountTypeSavings,
		Balance:       balance,
		UserID:        userID,
	}
	err := store.RunAtomic(context.Background(), func(tx storage.Tx) error {
		return tx.InsertAccount(context.Background(), account)
	})
	require.NoError(t, err)
	return account
}

func TestRunAtomicRollback(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := seedAccount(t, store, "1000000001", 1, 500)

	boom := errors.New("boom")
	err := store.RunAtomic(ctx, func(tx storage.Tx) error {
		if err := tx.UpdateAccountBalance(ctx, account.ID, 0); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &model.Transaction{
			Reference: "TXN-rollback",
			AccountID: account.ID,
			Type:      model.TransactionTypeWithdraw,
			Amount:    500,
		}); err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, &model.OutboxMessage{
			MessageKey: "TXN-rollback",
			Topic:      "events",
			Status:     model.OutboxStatusPending,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every write inside the failed unit is gone.
	got, err := store.AccountForOwner(ctx, account.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Balance)

	_, total, err := store.TransactionsByAccount(ctx, account.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	pending, err := store.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunAtomicRollbackRestoresInsertedAccount(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	boom := errors.New("boom")
	err := store.RunAtomic(ctx, func(tx storage.Tx) error {
		if err := tx.InsertAccount(ctx, &model.Account{
			AccountNumber: "1000000002",
			AccountType:   model.AccountTypeSavings,
			UserID:        1,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The account number is free again, including its id slot.
	account := seedAccount(t, store, "1000000002", 1, 0)
	assert.Equal(t, int64(1), account.ID)
}

func TestInsertAccountDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedAccount(t, store, "1000000003", 1, 0)

	err := store.RunAtomic(ctx, func(tx storage.Tx) error {
		return tx.InsertAccount(ctx, &model.Account{
			AccountNumber: "1000000003",
			AccountType:   model.AccountTypeCurrent,
			UserID:        2,
		})
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateAccountNumber)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.CreateUser(ctx, &model.User{Name: "Alice", Email: "alice@example.com"}))
	err := store.CreateUser(ctx, &model.User{Name: "Alice Two", Email: "alice@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
}

func TestAccountForOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := seedAccount(t, store, "1000000004", 1, 0)

	_, err := store.AccountForOwner(ctx, account.ID, 2)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	_, err = store.AccountForOwner(ctx, 9999, 1)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestTransactionsByAccountPagination(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := seedAccount(t, store, "1000000005", 1, 0)

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	err := store.RunAtomic(ctx, func(tx storage.Tx) error {
		for i := 0; i < 5; i++ {
			if err := tx.InsertTransaction(ctx, &model.Transaction{
				Reference: fmt.Sprintf("TXN-%d", i),
				AccountID: account.ID,
				Type:      model.TransactionTypeDeposit,
				Amount:    int64(i + 1),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	// Newest first, two per page.
	page1, total, err := store.TransactionsByAccount(ctx, account.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "TXN-4", page1[0].Reference)
	assert.Equal(t, "TXN-3", page1[1].Reference)

	page3, total, err := store.TransactionsByAccount(ctx, account.ID, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page3, 1)
	assert.Equal(t, "TXN-0", page3[0].Reference)

	empty, total, err := store.TransactionsByAccount(ctx, account.ID, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, empty)
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.RunAtomic(ctx, func(tx storage.Tx) error {
		for i := 0; i < 3; i++ {
			if err := tx.InsertOutbox(ctx, &model.OutboxMessage{
				MessageKey: fmt.Sprintf("key-%d", i),
				Topic:      "events",
				Payload:    "{}",
				Status:     model.OutboxStatusPending,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	pending, err := store.PendingOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, store.MarkOutboxSent(ctx, pending[0].ID))
	require.NoError(t, store.IncrementOutboxRetry(ctx, pending[1].ID))
	require.NoError(t, store.MarkOutboxFailed(ctx, pending[1].ID))

	remaining, err := store.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "key-2", remaining[0].MessageKey)
}

func TestTxReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := seedAccount(t, store, "1000000006", 1, 100)

	got, err := store.AccountForOwner(ctx, account.ID, 1)
	require.NoError(t, err)
	got.Balance = 0

	again, err := store.AccountForOwner(ctx, account.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.Balance, "mutating a returned account must not touch the store")
}
