package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/shared/models"
	sharedredis "github.com/eaglebank/ledger/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const userViewKeyPrefix = "user:view:"

// UserReadRepository serves user views from Redis, falling back to the write store on a miss.
type UserReadRepository struct {
	store Store
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(store Store, redisClient *goredis.Client, ttl time.Duration) *UserReadRepository {
	return &UserReadRepository{
		store: store,
		cache: sharedredis.NewViewCache[models.UserView](redisClient, ttl),
	}
}

func userViewKey(id int64) string {
	return userViewKeyPrefix + strconv.FormatInt(id, 10)
}

// GetByID returns the user with the ids and currencies of their accounts.
func (r *UserReadRepository) GetByID(ctx context.Context, id int64) (*models.UserView, error) {
	return r.cache.GetOrLoad(ctx, userViewKey(id), func(ctx context.Context) (*models.UserView, error) {
		user, err := r.store.Users().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts, err := r.store.Accounts().FindByOwner(ctx, id)
		if err != nil {
			return nil, err
		}
		return models.NewUserView(user, accounts), nil
	})
}

func (r *UserReadRepository) List(ctx context.Context) ([]models.UserListItem, error) {
	users, err := r.store.Users().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]models.UserListItem, 0, len(users))
	for _, u := range users {
		items = append(items, models.UserListItem{ID: u.ID, Username: u.Username})
	}
	return items, nil
}

// InvalidateUserView drops the cached view after the user's account set or
// currencies change.
func (r *UserReadRepository) InvalidateUserView(ctx context.Context, userID int64) {
	r.cache.Delete(ctx, userViewKey(userID))
}
