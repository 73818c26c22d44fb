package command

import (
	"context"
	"sync"
	"testing"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

type publishedEvent struct {
	stream    string
	eventType string
	data      any
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{stream: stream, eventType: eventType, data: data})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

type testServices struct {
	store     *repository.MemoryStore
	accounts  *AccountCommandService
	transfers *TransferCommandService
	users     *UserCommandService
	publisher *recordingPublisher
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	store := repository.NewMemoryStore()
	pub := &recordingPublisher{}
	accountRead := repository.NewAccountReadRepository(store, nil, 0)
	userRead := repository.NewUserReadRepository(store, nil, 0)
	accounts := NewAccountCommandService(store, accountRead, userRead, pub)
	return &testServices{
		store:     store,
		accounts:  accounts,
		transfers: NewTransferCommandService(store, accounts, accountRead, pub),
		users:     NewUserCommandService(store, accounts, userRead, pub),
		publisher: pub,
	}
}

// mustCreateUser registers a user and returns its id and provisioned account ids
// keyed by currency.
func (s *testServices) mustCreateUser(t *testing.T, username string) (int64, map[models.Currency]int64) {
	t.Helper()
	view, err := s.users.CreateUser(context.Background(), cqrs.CreateUserCommand{
		Username: username,
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	ids := make(map[models.Currency]int64, len(view.Accounts))
	for _, a := range view.Accounts {
		ids[a.Currency] = a.AccountID
	}
	return view.ID, ids
}

func (s *testServices) balance(t *testing.T, accountID int64) int64 {
	t.Helper()
	a, err := s.store.Accounts().FindByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("find account %d: %v", accountID, err)
	}
	return a.Amount
}
