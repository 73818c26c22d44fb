package repository

import (
	"context"
	"sort"

	"github.com/eaglebank/ledger/shared/models"
)

// AccountStore is keyed storage of accounts.
//
// Inside a unit of work (see TxManager.WithinTx) every lookup of a single account
// takes an exclusive lock on it that is held until the unit ends, which serialises
// read-modify-write cycles on the same account.
type AccountStore interface {
	// FindByOwnerAndID returns apperrors.ErrAccountNotFound when the account is absent
	// or owned by someone else.
	FindByOwnerAndID(ctx context.Context, ownerID, accountID int64) (*models.Account, error)
	FindByID(ctx context.Context, accountID int64) (*models.Account, error)
	FindByOwner(ctx context.Context, ownerID int64) ([]models.Account, error)
	// Save inserts the account when its ID is zero, assigning the ID, and updates it otherwise.
	Save(ctx context.Context, account *models.Account) error
	// Lock takes the exclusive locks of the given accounts in ascending id order.
	// Unknown ids are skipped. Outside a unit of work it does nothing.
	Lock(ctx context.Context, accountIDs ...int64) error
}

// UserStore is keyed storage of users with unique usernames.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// Save inserts the user when its ID is zero and fails with
	// apperrors.ErrUserAlreadyExists if the username is taken.
	Save(ctx context.Context, user *models.User) error
	FindAll(ctx context.Context) ([]models.User, error)
}

type Store interface {
	Accounts() AccountStore
	Users() UserStore
}

// TxManager is a Store that can also run a unit of work. Writes made through the
// Store passed to fn become visible to others only if fn returns nil, and then all
// at once.
type TxManager interface {
	Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
