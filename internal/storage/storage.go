package storage

import (
	"context"
	"errors"
	"time"

	"smartbank/internal/model"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrDuplicateAccountNumber = errors.New("account number already taken")
)

// Store is the durable ledger store: users, accounts and the append-only
// transaction log.
//
// All balance mutations go through RunAtomic. The methods on Store itself are
// plain reads (and outbox bookkeeping) that need no transaction.
type Store interface {
	// RunAtomic executes fn inside one store transaction: every write made
	// through the Tx commits together, or none does. Row locks taken inside
	// fn are held until the transaction ends.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error

	CreateUser(ctx context.Context, user *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// AccountForOwner looks up an account by id filtered by owner. An account
	// owned by someone else is indistinguishable from a missing one: both
	// return ErrAccountNotFound.
	AccountForOwner(ctx context.Context, accountID, userID int64) (*model.Account, error)
	AccountsByUser(ctx context.Context, userID int64) ([]*model.Account, error)
	TransactionsByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transaction, int64, error)

	PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	IncrementOutboxRetry(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64) error
}

// Tx is the view of the store inside one atomic unit.
//
// AccountForOwner and AccountByNumber are predicate lookups and take no row
// lock; callers that intend to write must re-read through LockAccount. When
// an operation touches two accounts it must lock them in ascending id order.
type Tx interface {
	AccountForOwner(ctx context.Context, accountID, userID int64) (*model.Account, error)
	AccountByNumber(ctx context.Context, number string) (*model.Account, error)

	// LockAccount re-reads an account with exclusive read-modify-write access
	// for the remainder of the atomic unit.
	LockAccount(ctx context.Context, accountID int64) (*model.Account, error)

	// SumTransactionsSince totals the amounts of all transactions of the
	// given kind posted against the account at or after since.
	SumTransactionsSince(ctx context.Context, accountID int64, kind string, since time.Time) (int64, error)

	InsertAccount(ctx context.Context, account *model.Account) error
	InsertTransaction(ctx context.Context, trans *model.Transaction) error
	UpdateAccountBalance(ctx context.Context, accountID, balance int64) error
	InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error
}
