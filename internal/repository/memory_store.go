package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/models"
)

// MemoryStore keeps users and accounts in process memory.
//
// Committed state sits behind mu. Each account additionally has its own mutex
// that a unit of work holds from the first lookup until it ends, so two units
// touching the same account run one after the other while units on disjoint
// accounts run in parallel.
//
// Account mutexes are never evicted, so memory grows with the number of accounts
// ever touched. It is meant for development and tests, not long-running production.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[int64]models.Account
	users     map[int64]models.User
	usernames map[string]int64

	nextAccountID atomic.Int64
	nextUserID    atomic.Int64

	locksMu   sync.Mutex
	acctLocks map[int64]*sync.Mutex
}

var _ TxManager = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[int64]models.Account),
		users:     make(map[int64]models.User),
		usernames: make(map[string]int64),
		acctLocks: make(map[int64]*sync.Mutex),
	}
}

func (s *MemoryStore) getAccountLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	l, ok := s.acctLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.acctLocks[id] = l
	}
	s.locksMu.Unlock()
	return l
}

func (s *MemoryStore) Accounts() AccountStore {
	return &memAccounts{s: s}
}

func (s *MemoryStore) Users() UserStore {
	return &memUsers{s: s}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:        s,
		held:     make(map[int64]*sync.Mutex),
		accounts: make(map[int64]models.Account),
		users:    make(map[int64]models.User),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// memTx buffers writes until commit and remembers which account locks it holds.
type memTx struct {
	s        *MemoryStore
	held     map[int64]*sync.Mutex
	accounts map[int64]models.Account
	users    map[int64]models.User
}

func (tx *memTx) Accounts() AccountStore {
	return &memAccounts{s: tx.s, tx: tx}
}

func (tx *memTx) Users() UserStore {
	return &memUsers{s: tx.s, tx: tx}
}

func (tx *memTx) lock(id int64) {
	if _, ok := tx.held[id]; ok {
		return
	}
	l := tx.s.getAccountLock(id)
	l.Lock()
	tx.held[id] = l
}

func (tx *memTx) release() {
	for _, l := range tx.held {
		l.Unlock()
	}
	tx.held = nil
}

// commit publishes every buffered write in one critical section.
func (tx *memTx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range tx.users {
		if owner, ok := s.usernames[u.Username]; ok && owner != id {
			return uniqueViolationError(u.Username)
		}
	}
	for id, u := range tx.users {
		if prev, ok := s.users[id]; ok && prev.Username != u.Username {
			delete(s.usernames, prev.Username)
		}
		s.users[id] = u
		s.usernames[u.Username] = id
	}
	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	return nil
}

type memAccounts struct {
	s  *MemoryStore
	tx *memTx
}

func (r *memAccounts) lookup(id int64) (models.Account, bool) {
	if r.tx != nil {
		if a, ok := r.tx.accounts[id]; ok {
			return a, true
		}
	}
	r.s.mu.RLock()
	a, ok := r.s.accounts[id]
	r.s.mu.RUnlock()
	return a, ok
}

// load returns the account, locking it first when running inside a unit of work.
// Ownership never changes, so it is checked before the lock is taken.
func (r *memAccounts) load(id int64, owner *int64) (*models.Account, error) {
	a, ok := r.lookup(id)
	if !ok || (owner != nil && a.OwnerID != *owner) {
		return nil, apperrors.ErrAccountNotFound
	}
	if r.tx == nil {
		return &a, nil
	}
	r.tx.lock(id)
	// Re-read: another unit may have committed while we waited.
	a, _ = r.lookup(id)
	return &a, nil
}

func (r *memAccounts) FindByID(ctx context.Context, accountID int64) (*models.Account, error) {
	return r.load(accountID, nil)
}

func (r *memAccounts) FindByOwnerAndID(ctx context.Context, ownerID, accountID int64) (*models.Account, error) {
	return r.load(accountID, &ownerID)
}

func (r *memAccounts) FindByOwner(ctx context.Context, ownerID int64) ([]models.Account, error) {
	r.s.mu.RLock()
	merged := make(map[int64]models.Account)
	for id, a := range r.s.accounts {
		if a.OwnerID == ownerID {
			merged[id] = a
		}
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, a := range r.tx.accounts {
			if a.OwnerID == ownerID {
				merged[id] = a
			}
		}
	}

	list := make([]models.Account, 0, len(merged))
	for _, a := range merged {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *memAccounts) Save(ctx context.Context, account *models.Account) error {
	if r.tx == nil {
		return r.s.WithinTx(ctx, func(tx Store) error {
			return tx.Accounts().Save(ctx, account)
		})
	}

	now := time.Now().UTC()
	if account.ID == 0 {
		account.ID = r.s.nextAccountID.Add(1)
		if account.CreatedAt.IsZero() {
			account.CreatedAt = now
		}
		account.UpdatedAt = now
		r.tx.lock(account.ID)
		r.tx.accounts[account.ID] = *account
		return nil
	}

	if _, ok := r.lookup(account.ID); !ok {
		return apperrors.ErrAccountNotFound
	}
	r.tx.lock(account.ID)
	account.UpdatedAt = now
	r.tx.accounts[account.ID] = *account
	return nil
}

func (r *memAccounts) Lock(ctx context.Context, accountIDs ...int64) error {
	if r.tx == nil {
		return nil
	}
	for _, id := range sortedUnique(accountIDs) {
		if _, ok := r.lookup(id); !ok {
			continue
		}
		r.tx.lock(id)
	}
	return nil
}

type memUsers struct {
	s  *MemoryStore
	tx *memTx
}

func (r *memUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if r.tx != nil {
		if u, ok := r.tx.users[id]; ok {
			return &u, nil
		}
	}
	r.s.mu.RLock()
	u, ok := r.s.users[id]
	r.s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if r.tx != nil {
		for _, u := range r.tx.users {
			if u.Username == username {
				return &u, nil
			}
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.usernames[username]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

func (r *memUsers) FindAll(ctx context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	merged := make(map[int64]models.User, len(r.s.users))
	for id, u := range r.s.users {
		merged[id] = u
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, u := range r.tx.users {
			merged[id] = u
		}
	}

	list := make([]models.User, 0, len(merged))
	for _, u := range merged {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *memUsers) Save(ctx context.Context, user *models.User) error {
	if r.tx == nil {
		return r.s.WithinTx(ctx, func(tx Store) error {
			return tx.Users().Save(ctx, user)
		})
	}

	if existing, err := r.FindByUsername(ctx, user.Username); err == nil && existing.ID != user.ID {
		return uniqueViolationError(user.Username)
	}
	if user.ID == 0 {
		user.ID = r.s.nextUserID.Add(1)
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
	} else if _, err := r.FindByID(ctx, user.ID); err != nil {
		return err
	}
	r.tx.users[user.ID] = *user
	return nil
}
