// Package memory implements the ledger store in process memory. It backs the
// engine tests and gives RunAtomic serializable semantics by construction:
// one mutex guards every atomic unit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"smartbank/internal/model"
	"smartbank/internal/storage"
)

type Store struct {
	mu sync.Mutex

	users    map[int64]*model.User
	byEmail  map[string]int64
	accounts map[int64]*model.Account
	byNumber map[string]int64

	transactions []*model.Transaction
	outbox       []*model.OutboxMessage

	nextUserID        int64
	nextAccountID     int64
	nextTransactionID int64
	nextOutboxID      int64
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*model.User),
		byEmail:  make(map[string]int64),
		accounts: make(map[int64]*model.Account),
		byNumber: make(map[string]int64),
	}
}

// snapshot captures everything a Tx may touch so a failed atomic unit can be
// rolled back. Users are not reachable through Tx and need no copy.
type snapshot struct {
	accounts          map[int64]model.Account
	byNumber          map[string]int64
	transactionCount  int
	outboxCount       int
	nextAccountID     int64
	nextTransactionID int64
	nextOutboxID      int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		accounts:          make(map[int64]model.Account, len(s.accounts)),
		byNumber:          make(map[string]int64, len(s.byNumber)),
		transactionCount:  len(s.transactions),
		outboxCount:       len(s.outbox),
		nextAccountID:     s.nextAccountID,
		nextTransactionID: s.nextTransactionID,
		nextOutboxID:      s.nextOutboxID,
	}
	for id, a := range s.accounts {
		snap.accounts[id] = *a
	}
	for n, id := range s.byNumber {
		snap.byNumber[n] = id
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.accounts = make(map[int64]*model.Account, len(snap.accounts))
	for id, a := range snap.accounts {
		a := a
		s.accounts[id] = &a
	}
	s.byNumber = snap.byNumber
	s.transactions = s.transactions[:snap.transactionCount]
	s.outbox = s.outbox[:snap.outboxCount]
	s.nextAccountID = snap.nextAccountID
	s.nextTransactionID = snap.nextTransactionID
	s.nextOutboxID = snap.nextOutboxID
}

// RunAtomic serializes atomic units behind the store mutex and rolls every
// write back when fn fails.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ------------------------------------------------------------
// Users
// ------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return storage.ErrDuplicateEmail
	}
	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := *user
	s.users[u.ID] = &u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*model.User, 0, len(s.users))
	for _, user := range s.users {
		u := *user
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ------------------------------------------------------------
// Accounts and transactions (plain reads)
// ------------------------------------------------------------

func (s *Store) AccountForOwner(ctx context.Context, accountID, userID int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountForOwner(accountID, userID)
}

func (s *Store) accountForOwner(accountID, userID int64) (*model.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok || account.UserID != userID {
		return nil, storage.ErrAccountNotFound
	}
	a := *account
	return &a, nil
}

func (s *Store) AccountsByUser(ctx context.Context, userID int64) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []*model.Account
	for _, account := range s.accounts {
		if account.UserID == userID {
			a := *account
			accounts = append(accounts, &a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*model.Transaction
	for _, trans := range s.transactions {
		if trans.AccountID == accountID {
			t := *trans
			matches = append(matches, &t)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	total := int64(len(matches))
	start := (page - 1) * pageSize
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

// ------------------------------------------------------------
// Outbox
// ------------------------------------------------------------

func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*model.OutboxMessage
	for _, msg := range s.outbox {
		if msg.Status == model.OutboxStatusPending {
			m := *msg
			pending = append(pending, &m)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusSent
	})
}

func (s *Store) IncrementOutboxRetry(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.RetryCount++
	})
}

func (s *Store) MarkOutboxFailed(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusFailed
		msg.RetryCount++
	})
}

func (s *Store) updateOutbox(id int64, update func(*model.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.outbox {
		if msg.ID == id {
			update(msg)
			return nil
		}
	}
	return nil
}

// ------------------------------------------------------------
// Tx
// ------------------------------------------------------------

// memTx operates on the store directly: the store mutex held by RunAtomic is
// what makes its reads and writes exclusive.
type memTx struct {
	s *Store
}

func (t *memTx) AccountForOwner(ctx context.Context, accountID, userID int64) (*model.Account, error) {
	return t.s.accountForOwner(accountID, userID)
}

func (t *memTx) AccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	id, ok := t.s.byNumber[number]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	a := *t.s.accounts[id]
	return &a, nil
}

func (t *memTx) LockAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	account, ok := t.s.accounts[accountID]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	a := *account
	return &a, nil
}

func (t *memTx) SumTransactionsSince(ctx context.Context, accountID int64, kind string, since time.Time) (int64, error) {
	var total int64
	for _, trans := range t.s.transactions {
		if trans.AccountID == accountID && trans.Type == kind && !trans.CreatedAt.Before(since) {
			total += trans.Amount
		}
	}
	return total, nil
}

func (t *memTx) InsertAccount(ctx context.Context, account *model.Account) error {
	if _, exists := t.s.byNumber[account.AccountNumber]; exists {
		return storage.ErrDuplicateAccountNumber
	}
	t.s.nextAccountID++
	account.ID = t.s.nextAccountID
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	a := *account
	t.s.accounts[a.ID] = &a
	t.s.byNumber[a.AccountNumber] = a.ID
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, trans *model.Transaction) error {
	t.s.nextTransactionID++
	trans.ID = t.s.nextTransactionID
	if trans.CreatedAt.IsZero() {
		trans.CreatedAt = time.Now().UTC()
	}
	tr := *trans
	t.s.transactions = append(t.s.transactions, &tr)
	return nil
}

func (t *memTx) UpdateAccountBalance(ctx context.Context, accountID, balance int64) error {
	account, ok := t.s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	account.Balance = balance
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	t.s.nextOutboxID++
	msg.ID = t.s.nextOutboxID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m := *msg
	t.s.outbox = append(t.s.outbox, &m)
	return nil
}
