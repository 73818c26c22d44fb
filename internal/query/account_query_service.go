package query

import (
	"context"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

type AccountQueryService struct {
	readRepo *repository.AccountReadRepository
}

func NewAccountQueryService(readRepo *repository.AccountReadRepository) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo}
}

// GetAccount fetches a single account view scoped to its owner. An account owned by
// someone else is reported as not found.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.readRepo.GetByID(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}

	// The AccountView carries OwnerID (json:"-") for this check.
	if view.OwnerID != q.RequestingUserID {
		return nil, apperrors.ErrAccountNotFound
	}
	return view, nil
}

func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountSummary, error) {
	views, err := s.readRepo.ListByOwner(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.AccountSummary, 0, len(views))
	for _, v := range views {
		summaries = append(summaries, models.AccountSummary{AccountID: v.ID, Currency: v.Currency})
	}
	return summaries, nil
}
