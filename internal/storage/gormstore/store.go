// Package gormstore implements the ledger store on MySQL through gorm.
//
// Atomic units map to database transactions; exclusive row access inside a
// unit maps to SELECT ... FOR UPDATE.
package gormstore

import (
	"context"
	"errors"
	"time"

	"smartbank/internal/model"
	"smartbank/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// RunAtomic wraps fn in one database transaction. gorm rolls back on any
// error returned by fn, including the engine's domain errors, which pass
// through unchanged.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&storeTx{db: tx})
	})
}

// ------------------------------------------------------------
// Users
// ------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicateEmail
	}
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

// ------------------------------------------------------------
// Accounts and transactions (plain reads)
// ------------------------------------------------------------

func (s *Store) AccountForOwner(ctx context.Context, accountID, userID int64) (*model.Account, error) {
	return accountForOwner(ctx, s.db, accountID, userID)
}

func (s *Store) AccountsByUser(ctx context.Context, userID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := s.db.WithContext(ctx).Model(&model.Transaction{}).Where("account_id = ?", accountID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// ------------------------------------------------------------
// Outbox
// ------------------------------------------------------------

func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
}

func (s *Store) IncrementOutboxRetry(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (s *Store) MarkOutboxFailed(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.OutboxStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}

// ------------------------------------------------------------
// Tx
// ------------------------------------------------------------

type storeTx struct {
	db *gorm.DB
}

func (t *storeTx) AccountForOwner(ctx context.Context, accountID, userID int64) (*model.Account, error) {
	return accountForOwner(ctx, t.db, accountID, userID)
}

func (t *storeTx) AccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	var account model.Account
	err := t.db.WithContext(ctx).Where("account_number = ?", number).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (t *storeTx) LockAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	var account model.Account
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (t *storeTx) SumTransactionsSince(ctx context.Context, accountID int64, kind string, since time.Time) (int64, error) {
	var total int64
	err := t.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND type = ? AND created_at >= ?", accountID, kind, since).
		Scan(&total).Error
	return total, err
}

func (t *storeTx) InsertAccount(ctx context.Context, account *model.Account) error {
	err := t.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicateAccountNumber
	}
	return err
}

func (t *storeTx) InsertTransaction(ctx context.Context, trans *model.Transaction) error {
	return t.db.WithContext(ctx).Create(trans).Error
}

func (t *storeTx) UpdateAccountBalance(ctx context.Context, accountID, balance int64) error {
	// Row existence is guaranteed by the locked read that preceded the write,
	// so RowsAffected is not checked: MySQL reports 0 when the new balance
	// equals the old one (self-transfer).
	return t.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("balance", balance).Error
}

func (t *storeTx) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return t.db.WithContext(ctx).Create(msg).Error
}

// accountForOwner is the single predicate-filtered lookup behind both the
// plain read and the in-transaction read: ownership is part of the WHERE
// clause, never a second check, so an ownership miss and a true miss are
// indistinguishable to callers.
func accountForOwner(ctx context.Context, db *gorm.DB, accountID, userID int64) (*model.Account, error) {
	var account model.Account
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}
