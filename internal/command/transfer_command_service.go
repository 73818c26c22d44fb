package command

import (
	"context"
	"log/slog"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
)

// TransferCommandService moves money between two accounts of the same currency,
// possibly owned by different users. The source must belong to the initiator and
// the destination to cmd.DestinationUserID.
type TransferCommandService struct {
	txm       repository.TxManager
	accounts  *AccountCommandService
	readRepo  *repository.AccountReadRepository
	publisher EventPublisher
}

func NewTransferCommandService(
	txm repository.TxManager,
	accounts *AccountCommandService,
	readRepo *repository.AccountReadRepository,
	publisher EventPublisher,
) *TransferCommandService {
	return &TransferCommandService{
		txm:       txm,
		accounts:  accounts,
		readRepo:  readRepo,
		publisher: publisher,
	}
}

// Transfer validates the currency pair, withdraws, then deposits, all in one unit of
// work. Any failure leaves both balances untouched. Retrying a transfer that
// succeeded applies it again.
func (s *TransferCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	var source, destination *models.Account
	err := s.txm.WithinTx(ctx, func(tx repository.Store) error {
		if err := s.accounts.ValidateCurrencyIn(ctx, tx, cmd.SourceAccountID, cmd.DestinationAccountID); err != nil {
			return err
		}
		var err error
		source, err = s.accounts.WithdrawIn(ctx, tx, cmd.InitiatingUserID, cmd.SourceAccountID, cmd.Amount)
		if err != nil {
			return err
		}
		destination, err = s.accounts.DepositIn(ctx, tx, cmd.DestinationUserID, cmd.DestinationAccountID, cmd.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	// A self-transfer returns the same row twice; the deposit saw the withdrawn state.
	if source.ID == destination.ID {
		source = destination
	}

	s.readRepo.InvalidateAccountView(ctx, source.ID, destination.ID)
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, events.TransferCompleted, events.TransferCompletedEvent{
		SourceAccountID:      source.ID,
		SourceUserID:         cmd.InitiatingUserID,
		DestinationAccountID: destination.ID,
		DestinationUserID:    cmd.DestinationUserID,
		Amount:               cmd.Amount,
		Currency:             string(source.Currency),
	}); err != nil {
		slog.Error("failed to publish event", "type", events.TransferCompleted, "error", err)
	}

	return &models.TransferResult{
		Source:      *models.NewAccountView(source),
		Destination: *models.NewAccountView(destination),
		Amount:      cmd.Amount,
	}, nil
}
