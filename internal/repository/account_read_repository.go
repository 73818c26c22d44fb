package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/shared/models"
	sharedredis "github.com/eaglebank/ledger/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const accountViewKeyPrefix = "account:view:"

// accountCacheEntry is the Redis representation of an account.
// Unlike models.AccountView it serialises OwnerID, so ownership can be checked
// on a cache hit.
type accountCacheEntry struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"ownerId"`
	Amount    int64           `json:"amount"`
	Currency  models.Currency `json:"currency"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

// AccountReadRepository serves account views from Redis and falls back to the
// write store, warming the cache on every cold read.
type AccountReadRepository struct {
	store Store
	cache *sharedredis.ViewCache[accountCacheEntry]
}

// NewAccountReadRepository works without Redis when redisClient is nil.
func NewAccountReadRepository(store Store, redisClient *goredis.Client, ttl time.Duration) *AccountReadRepository {
	return &AccountReadRepository{
		store: store,
		cache: sharedredis.NewViewCache[accountCacheEntry](redisClient, ttl),
	}
}

func accountViewKey(id int64) string {
	return accountViewKeyPrefix + strconv.FormatInt(id, 10)
}

func cacheEntryToView(e *accountCacheEntry) *models.AccountView {
	return &models.AccountView{
		ID:        e.ID,
		OwnerID:   e.OwnerID,
		Amount:    e.Amount,
		Currency:  e.Currency,
		UpdatedAt: e.UpdatedAt,
	}
}

// GetByID returns an AccountView, trying Redis first. The caller checks OwnerID.
func (r *AccountReadRepository) GetByID(ctx context.Context, accountID int64) (*models.AccountView, error) {
	entry, err := r.cache.GetOrLoad(ctx, accountViewKey(accountID), func(ctx context.Context) (*accountCacheEntry, error) {
		account, err := r.store.Accounts().FindByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &accountCacheEntry{
			ID:        account.ID,
			OwnerID:   account.OwnerID,
			Amount:    account.Amount,
			Currency:  account.Currency,
			UpdatedAt: account.UpdatedAt,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return cacheEntryToView(entry), nil
}

// ListByOwner always reads the write store.
func (r *AccountReadRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.AccountView, error) {
	accounts, err := r.store.Accounts().FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]models.AccountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, *models.NewAccountView(&accounts[i]))
	}
	return views, nil
}

// InvalidateAccountView is called after every committed mutation of the accounts.
// All views of one unit of work are dropped together.
func (r *AccountReadRepository) InvalidateAccountView(ctx context.Context, accountIDs ...int64) {
	keys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		keys = append(keys, accountViewKey(id))
	}
	r.cache.Delete(ctx, keys...)
}
