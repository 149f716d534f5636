package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"smartbank/internal/config"
	"smartbank/internal/model"
	"smartbank/internal/storage"
	"smartbank/pkg/idgen"
)

// accountNumberAttempts bounds the retries when a proposed account number
// collides with an existing one.
const accountNumberAttempts = 5

// LedgerService orchestrates account creation, deposits, withdrawals and
// transfers. Each operation runs as one atomic store transaction: input
// validation, ownership lookup, limit check, balance mutation and the
// transaction-log append all commit together or not at all.
//
// The service holds no locks of its own. Correctness under concurrent calls
// is delegated to the store's RunAtomic contract.
type LedgerService struct {
	store       storage.Store
	limit       LimitPolicy
	outboxTopic string
	now         func() time.Time
}

func NewLedgerService(store storage.Store, cfg *config.Config) *LedgerService {
	return &LedgerService{
		store:       store,
		limit:       LimitPolicy{DailyLimit: cfg.Business.DailyLimit},
		outboxTopic: cfg.Kafka.Topic.TransactionEvents,
		now:         time.Now,
	}
}

// CreateAccount opens an account of the given type for userID. A positive
// initial deposit seeds the balance and is recorded as a deposit transaction
// in the same atomic unit as the account row itself.
func (s *LedgerService) CreateAccount(ctx context.Context, userID int64, accountType string, initialDeposit int64) (*model.Account, error) {
	if !model.ValidAccountType(accountType) {
		return nil, ErrInvalidAccountType
	}
	if initialDeposit < 0 {
		return nil, ErrInvalidAmount
	}

	asOf := s.now().UTC()

	var account *model.Account
	var err error
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		account = &model.Account{
			AccountNumber: idgen.AccountNumber(),
			AccountType:   accountType,
			Balance:       initialDeposit,
			UserID:        userID,
		}
		err = s.store.RunAtomic(ctx, func(tx storage.Tx) error {
			if err := tx.InsertAccount(ctx, account); err != nil {
				return err
			}
			if initialDeposit > 0 {
				trans := s.newTransaction(account.ID, model.TransactionTypeDeposit, initialDeposit, asOf)
				if err := tx.InsertTransaction(ctx, trans); err != nil {
					return err
				}
				if err := s.insertEvent(ctx, tx, "deposit", trans, account.Balance); err != nil {
					return err
				}
			}
			return nil
		})
		if !errors.Is(err, storage.ErrDuplicateAccountNumber) {
			break
		}
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return account, nil
}

// Deposit adds amount to the account's balance. Deposits are not subject to
// the daily limit.
func (s *LedgerService) Deposit(ctx context.Context, userID, accountID, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	asOf := s.now().UTC()

	var out *model.Account
	err := s.store.RunAtomic(ctx, func(tx storage.Tx) error {
		account, err := s.lockOwnedAccount(ctx, tx, accountID, userID)
		if err != nil {
			return err
		}

		account.Balance += amount
		if err := tx.UpdateAccountBalance(ctx, account.ID, account.Balance); err != nil {
			return err
		}

		trans := s.newTransaction(account.ID, model.TransactionTypeDeposit, amount, asOf)
		if err := tx.InsertTransaction(ctx, trans); err != nil {
			return err
		}
		if err := s.insertEvent(ctx, tx, "deposit", trans, account.Balance); err != nil {
			return err
		}

		out = account
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Withdraw removes amount from the account's balance. Checks run in a fixed
// order so the reported error is deterministic when several conditions fail
// at once: amount validity, then existence/ownership, then the daily limit,
// then sufficient balance.
func (s *LedgerService) Withdraw(ctx context.Context, userID, accountID, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	asOf := s.now().UTC()

	var out *model.Account
	err := s.store.RunAtomic(ctx, func(tx storage.Tx) error {
		account, err := s.lockOwnedAccount(ctx, tx, accountID, userID)
		if err != nil {
			return err
		}

		ok, err := s.limit.WithinDailyLimit(ctx, tx, account.ID, model.TransactionTypeWithdraw, amount, asOf)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLimitExceeded
		}

		if account.Balance < amount {
			return ErrInsufficientBalance
		}

		account.Balance -= amount
		if err := tx.UpdateAccountBalance(ctx, account.ID, account.Balance); err != nil {
			return err
		}

		trans := s.newTransaction(account.ID, model.TransactionTypeWithdraw, amount, asOf)
		if err := tx.InsertTransaction(ctx, trans); err != nil {
			return err
		}
		if err := s.insertEvent(ctx, tx, "withdraw", trans, account.Balance); err != nil {
			return err
		}

		out = account
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Transfer moves amount from the caller's account to the account identified
// by toAccountNumber. Both balance changes and both ledger records commit in
// one atomic unit. The outbound leg counts against the transfer window of the
// daily limit; the inbound leg is recorded as a deposit on the destination.
//
// A transfer to the source account itself is not rejected: it falls through
// as a balance-neutral withdraw-plus-deposit pair.
func (s *LedgerService) Transfer(ctx context.Context, userID, fromAccountID int64, toAccountNumber string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	asOf := s.now().UTC()

	var out *model.Account
	err := s.store.RunAtomic(ctx, func(tx storage.Tx) error {
		src, err := tx.AccountForOwner(ctx, fromAccountID, userID)
		if err != nil {
			if errors.Is(err, storage.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		dst, err := tx.AccountByNumber(ctx, toAccountNumber)
		if err != nil {
			if errors.Is(err, storage.ErrAccountNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}

		// Lock both rows in ascending id order so two crossing transfers
		// cannot deadlock. Ownership cannot change between the predicate
		// lookup above and the locked re-read: accounts never change hands.
		src, dst, err = lockPair(ctx, tx, src.ID, dst.ID)
		if err != nil {
			return err
		}

		ok, err := s.limit.WithinDailyLimit(ctx, tx, src.ID, model.TransactionTypeTransfer, amount, asOf)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLimitExceeded
		}

		if src.Balance < amount {
			return ErrInsufficientBalance
		}

		if src.ID == dst.ID {
			// Self-transfer nets to zero but both legs are still recorded.
			dst = src
		} else {
			src.Balance -= amount
			dst.Balance += amount
			if err := tx.UpdateAccountBalance(ctx, dst.ID, dst.Balance); err != nil {
				return err
			}
		}
		if err := tx.UpdateAccountBalance(ctx, src.ID, src.Balance); err != nil {
			return err
		}

		transOut := s.newTransaction(src.ID, model.TransactionTypeTransfer, amount, asOf)
		if err := tx.InsertTransaction(ctx, transOut); err != nil {
			return err
		}
		transIn := s.newTransaction(dst.ID, model.TransactionTypeDeposit, amount, asOf)
		if err := tx.InsertTransaction(ctx, transIn); err != nil {
			return err
		}
		if err := s.insertTransferEvent(ctx, tx, transOut, src, dst, amount); err != nil {
			return err
		}

		out = src
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Accounts lists the user's accounts.
func (s *LedgerService) Accounts(ctx context.Context, userID int64) ([]*model.Account, error) {
	accounts, err := s.store.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return accounts, nil
}

// Transactions lists an account's ledger records, newest first. The account
// must belong to userID.
func (s *LedgerService) Transactions(ctx context.Context, userID, accountID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if _, err := s.store.AccountForOwner(ctx, accountID, userID); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, 0, ErrAccountNotFound
		}
		return nil, 0, storeErr(err)
	}

	transactions, total, err := s.store.TransactionsByAccount(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return transactions, total, nil
}

// lockOwnedAccount resolves the ownership predicate and then takes the row
// lock. The lookup and lock are separate store calls, but both happen inside
// the caller's atomic unit, so the locked re-read is authoritative.
func (s *LedgerService) lockOwnedAccount(ctx context.Context, tx storage.Tx, accountID, userID int64) (*model.Account, error) {
	account, err := tx.AccountForOwner(ctx, accountID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return tx.LockAccount(ctx, account.ID)
}

func lockPair(ctx context.Context, tx storage.Tx, srcID, dstID int64) (src, dst *model.Account, err error) {
	if srcID == dstID {
		src, err = tx.LockAccount(ctx, srcID)
		return src, src, err
	}
	first, second := srcID, dstID
	if second < first {
		first, second = second, first
	}
	a, err := tx.LockAccount(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.LockAccount(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if a.ID == srcID {
		return a, b, nil
	}
	return b, a, nil
}

func (s *LedgerService) newTransaction(accountID int64, kind string, amount int64, asOf time.Time) *model.Transaction {
	return &model.Transaction{
		Reference: idgen.TransactionRef(),
		AccountID: accountID,
		Type:      kind,
		Amount:    amount,
		CreatedAt: asOf,
	}
}

func (s *LedgerService) insertEvent(ctx context.Context, tx storage.Tx, event string, trans *model.Transaction, balance int64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event":       event,
		"reference":   trans.Reference,
		"account_id":  trans.AccountID,
		"amount":      trans.Amount,
		"balance":     balance,
		"occurred_at": trans.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return tx.InsertOutbox(ctx, &model.OutboxMessage{
		MessageKey: trans.Reference,
		Topic:      s.outboxTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func (s *LedgerService) insertTransferEvent(ctx context.Context, tx storage.Tx, transOut *model.Transaction, src, dst *model.Account, amount int64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event":           "transfer",
		"reference":       transOut.Reference,
		"from_account_id": src.ID,
		"to_account_id":   dst.ID,
		"amount":          amount,
		"occurred_at":     transOut.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return tx.InsertOutbox(ctx, &model.OutboxMessage{
		MessageKey: transOut.Reference,
		Topic:      s.outboxTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
