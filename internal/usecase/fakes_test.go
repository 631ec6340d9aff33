package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/xerrors"
)

// In-memory fakes for the repository interfaces. The tx argument is always
// nil here; transactional atomicity is the DB layer's concern, these fakes
// only mimic the data contracts.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type fakeLockManager struct {
	mu    sync.Mutex
	locks []uuid.UUID
}

func (l *fakeLockManager) AcquireWalletLock(_ context.Context, _ pgx.Tx, walletID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks = append(l.locks, walletID)
	return nil
}

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*domain.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*domain.Customer)}
}

func (r *fakeCustomerRepo) Create(_ context.Context, _ pgx.Tx, customer *domain.Customer) error {
	r.customers[customer.ID] = customer
	return nil
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, xerrors.ErrCustomerNotFound
	}
	return c, nil
}

type fakeOrderRepo struct {
	orders map[uuid.UUID]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *fakeOrderRepo) Create(_ context.Context, _ pgx.Tx, order *domain.Order) error {
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, _ pgx.Tx, orderID uuid.UUID, status domain.OrderStatus) error {
	order, ok := r.orders[orderID]
	if !ok {
		return xerrors.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, xerrors.ErrOrderNotFound
	}
	loaded := *order
	loaded.Items = append([]domain.OrderItem(nil), order.Items...)
	return &loaded, nil
}

type fakeWalletRepo struct {
	wallets      map[uuid.UUID]uuid.UUID // wallet id -> customer id
	transactions map[uuid.UUID][]domain.WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		wallets:      make(map[uuid.UUID]uuid.UUID),
		transactions: make(map[uuid.UUID][]domain.WalletTransaction),
	}
}

func (r *fakeWalletRepo) Create(_ context.Context, _ pgx.Tx, wallet *domain.Wallet) error {
	r.wallets[wallet.ID] = wallet.CustomerID
	return nil
}

func (r *fakeWalletRepo) load(walletID uuid.UUID) *domain.Wallet {
	txns := append([]domain.WalletTransaction(nil), r.transactions[walletID]...)
	wallet := &domain.Wallet{
		ID:           walletID,
		CustomerID:   r.wallets[walletID],
		Transactions: txns,
	}
	wallet.Balance = wallet.ReplayBalance()
	return wallet
}

func (r *fakeWalletRepo) GetByID(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	if _, ok := r.wallets[id]; !ok {
		return nil, xerrors.ErrWalletNotFound
	}
	return r.load(id), nil
}

func (r *fakeWalletRepo) GetByCustomerID(_ context.Context, _ pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	for walletID, owner := range r.wallets {
		if owner == customerID {
			return r.load(walletID), nil
		}
	}
	return nil, xerrors.ErrWalletNotFound
}

func (r *fakeWalletRepo) SaveTransactions(_ context.Context, _ pgx.Tx, wallet *domain.Wallet) error {
	replayed := wallet.ReplayBalance()
	if wallet.Balance.Sub(replayed).Abs().GreaterThan(domain.BalanceTolerance) {
		return xerrors.ErrBalanceMismatch
	}
	r.transactions[wallet.ID] = append(r.transactions[wallet.ID], wallet.PendingTransactions()...)
	wallet.ClearPending()
	return nil
}

type fakeEventStore struct {
	events map[uuid.UUID][]domain.StoredEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[uuid.UUID][]domain.StoredEvent)}
}

func (s *fakeEventStore) Append(_ context.Context, _ pgx.Tx, event *domain.Event, aggregateType string) error {
	seq := int64(len(s.events[event.AggregateID]) + 1)
	s.events[event.AggregateID] = append(s.events[event.AggregateID], domain.StoredEvent{
		ID:             event.EventID.String(),
		AggregateID:    event.AggregateID,
		AggregateType:  aggregateType,
		EventType:      event.EventType,
		Version:        event.Version,
		Payload:        event.Payload,
		SequenceNumber: seq,
		CreatedAt:      event.OccurredAt,
	})
	return nil
}

func (s *fakeEventStore) ListByAggregate(_ context.Context, aggregateID uuid.UUID, _ string) ([]domain.StoredEvent, error) {
	return append([]domain.StoredEvent(nil), s.events[aggregateID]...), nil
}

type fakeOutboxRepo struct {
	seq     int
	entries []domain.OutboxEvent
	retries map[string]int
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{retries: make(map[string]int)}
}

func (r *fakeOutboxRepo) Add(_ context.Context, _ pgx.Tx, event *domain.Event, aggregateType string) (string, error) {
	r.seq++
	id := fmt.Sprintf("outbox-%04d", r.seq)
	r.entries = append(r.entries, domain.OutboxEvent{
		ID:            id,
		AggregateID:   event.AggregateID,
		AggregateType: aggregateType,
		EventType:     event.EventType,
		Payload:       event.Payload,
		CreatedAt:     time.Now().UTC(),
	})
	return id, nil
}

func (r *fakeOutboxRepo) FetchUnprocessed(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for _, e := range r.entries {
		if e.Processed {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkProcessed(_ context.Context, id string) error {
	for i := range r.entries {
		if r.entries[i].ID == id {
			now := time.Now().UTC()
			r.entries[i].Processed = true
			r.entries[i].ProcessedAt = &now
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (r *fakeOutboxRepo) IncrementRetry(_ context.Context, id string) error {
	r.retries[id]++
	return nil
}

func (r *fakeOutboxRepo) unprocessedCount() int {
	n := 0
	for _, e := range r.entries {
		if !e.Processed {
			n++
		}
	}
	return n
}

type fakeIdempotencyRepo struct {
	records map[string]*domain.IdempotencyRecord
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func idemKey(key, actorID, operation string) string {
	return key + "|" + actorID + "|" + operation
}

func (r *fakeIdempotencyRepo) Get(_ context.Context, key, actorID, operation string) (*domain.IdempotencyRecord, error) {
	return r.records[idemKey(key, actorID, operation)], nil
}

func (r *fakeIdempotencyRepo) Insert(_ context.Context, record *domain.IdempotencyRecord) error {
	k := idemKey(record.Key, record.ActorID, record.Operation)
	if _, exists := r.records[k]; exists {
		return xerrors.ErrDuplicateRequest
	}
	r.records[k] = record
	return nil
}

type fakeReadModelRepo struct {
	summaries map[uuid.UUID]*domain.OrderSummary
	views     map[uuid.UUID]*domain.WalletView // keyed by wallet id
	owners    map[uuid.UUID]uuid.UUID          // wallet id -> customer id, for lazy view creation
}

func newFakeReadModelRepo() *fakeReadModelRepo {
	return &fakeReadModelRepo{
		summaries: make(map[uuid.UUID]*domain.OrderSummary),
		views:     make(map[uuid.UUID]*domain.WalletView),
		owners:    make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *fakeReadModelRepo) UpsertOrderSummary(_ context.Context, summary *domain.OrderSummary) error {
	s := *summary
	r.summaries[summary.ID] = &s
	return nil
}

func (r *fakeReadModelRepo) SetOrderStatus(_ context.Context, orderID uuid.UUID, status string) error {
	if s, ok := r.summaries[orderID]; ok {
		s.Status = status
	}
	return nil
}

func (r *fakeReadModelRepo) GetOrderSummary(_ context.Context, orderID uuid.UUID) (*domain.OrderSummary, error) {
	s, ok := r.summaries[orderID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return s, nil
}

func (r *fakeReadModelRepo) ListOrderSummariesByCustomer(_ context.Context, customerID uuid.UUID, _, _ int) ([]domain.OrderSummary, error) {
	var out []domain.OrderSummary
	for _, s := range r.summaries {
		if s.CustomerID == customerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeReadModelRepo) UpsertWalletView(_ context.Context, view *domain.WalletView) error {
	if _, exists := r.views[view.ID]; exists {
		return nil
	}
	v := *view
	r.views[view.ID] = &v
	return nil
}

func (r *fakeReadModelRepo) ApplyWalletMovement(_ context.Context, walletID uuid.UUID, eventID string, balance decimal.Decimal, at time.Time) error {
	v, ok := r.views[walletID]
	if !ok {
		owner, known := r.owners[walletID]
		if !known {
			return xerrors.ErrWalletNotFound
		}
		r.views[walletID] = &domain.WalletView{
			ID: walletID, CustomerID: owner, Balance: balance,
			TransactionsCount: 1, LastTransactionAt: &at, LastEventID: eventID,
		}
		return nil
	}
	// Redelivery dedup: ids are ordered, anything at or below the watermark
	// was already applied.
	if eventID <= v.LastEventID {
		return nil
	}
	v.Balance = balance
	v.TransactionsCount++
	v.LastTransactionAt = &at
	v.LastEventID = eventID
	return nil
}

func (r *fakeReadModelRepo) GetWalletView(_ context.Context, customerID uuid.UUID) (*domain.WalletView, error) {
	for _, v := range r.views {
		if v.CustomerID == customerID {
			return v, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type fakePublisher struct {
	published []string
	failOn    map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failOn: make(map[string]bool)}
}

func (p *fakePublisher) Publish(_ context.Context, id string, _ string, _ []byte) error {
	if p.failOn[id] {
		return fmt.Errorf("broker unavailable")
	}
	p.published = append(p.published, id)
	return nil
}

// testEnv wires the usecases over the in-memory fakes.
type testEnv struct {
	customerRepo *fakeCustomerRepo
	orderRepo    *fakeOrderRepo
	walletRepo   *fakeWalletRepo
	eventStore   *fakeEventStore
	outboxRepo   *fakeOutboxRepo
	idemRepo     *fakeIdempotencyRepo
	readModels   *fakeReadModelRepo
	locks        *fakeLockManager

	walletUC *WalletUsecase
	orderUC  *OrderUsecase
	refundUC *RefundUsecase
	idemUC   *IdempotencyUsecase
}

func newTestEnv() *testEnv {
	env := &testEnv{
		customerRepo: newFakeCustomerRepo(),
		orderRepo:    newFakeOrderRepo(),
		walletRepo:   newFakeWalletRepo(),
		eventStore:   newFakeEventStore(),
		outboxRepo:   newFakeOutboxRepo(),
		idemRepo:     newFakeIdempotencyRepo(),
		readModels:   newFakeReadModelRepo(),
		locks:        &fakeLockManager{},
	}
	logger := zap.NewNop()
	txm := fakeTxManager{}
	env.walletUC = NewWalletUsecase(env.walletRepo, env.customerRepo, env.eventStore,
		env.outboxRepo, txm, env.locks, nil, nil, logger)
	env.orderUC = NewOrderUsecase(env.orderRepo, env.customerRepo, env.walletRepo,
		env.eventStore, env.outboxRepo, env.readModels, txm, env.locks, env.walletUC, logger)
	env.refundUC = NewRefundUsecase(env.orderRepo, env.walletRepo, env.eventStore,
		env.outboxRepo, txm, env.locks, env.walletUC, logger)
	env.idemUC = NewIdempotencyUsecase(env.idemRepo, logger)
	return env
}

func (env *testEnv) addCustomer(name, email string) *domain.Customer {
	customer := domain.NewCustomer(name, email)
	env.customerRepo.customers[customer.ID] = customer
	return customer
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
