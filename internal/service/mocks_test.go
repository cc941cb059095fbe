package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/cache"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/payment"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/repository"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory document store. WithTransaction snapshots it and restores
// the snapshot when fn fails, so tests can check all-or-nothing behaviour.
type fakeStore struct {
	mu       sync.Mutex
	carts    map[string]domain.Cart
	products map[string]domain.Product
	orders   map[string]domain.Order
	users    map[string]domain.User
	outbox   []domain.OutboxEvent

	getProductsErr error
	insertEventErr error
	removeItemsErr error
	txCalls        int

	// afterGetCart runs outside the lock once a cart has been read.
	afterGetCart func()
	// beforeTx runs when a transaction starts, before fn.
	beforeTx func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:    map[string]domain.Cart{},
		products: map[string]domain.Product{},
		orders:   map[string]domain.Order{},
		users:    map[string]domain.User{},
	}
}

func (f *fakeStore) repos() Repositories {
	return Repositories{
		Carts:    fakeCarts{f},
		Products: fakeProducts{f},
		Orders:   fakeOrders{f},
		Users:    fakeUsers{f},
		Outbox:   fakeOutbox{f},
		Tx:       f,
	}
}

func (f *fakeStore) addProduct(p domain.Product) {
	f.products[p.ID] = p
}

func (f *fakeStore) putCart(userID string, items ...domain.CartItem) {
	f.carts[userID] = domain.Cart{UserID: userID, Items: items}
}

func (f *fakeStore) cartItems(userID string) []domain.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CartItem(nil), f.carts[userID].Items...)
}

func (f *fakeStore) hasCart(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.carts[userID]
	return ok
}

func (f *fakeStore) order(id string) (domain.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	return o, ok
}

func (f *fakeStore) user(id string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeStore) events() []domain.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OutboxEvent(nil), f.outbox...)
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.beforeTx != nil {
		f.beforeTx()
	}

	f.mu.Lock()
	f.txCalls++
	snap := f.snapshot()
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.restore(snap)
		f.mu.Unlock()
		return err
	}
	return nil
}

type storeSnapshot struct {
	carts  map[string]domain.Cart
	orders map[string]domain.Order
	users  map[string]domain.User
	outbox []domain.OutboxEvent
}

func (f *fakeStore) snapshot() storeSnapshot {
	s := storeSnapshot{
		carts:  make(map[string]domain.Cart, len(f.carts)),
		orders: make(map[string]domain.Order, len(f.orders)),
		users:  make(map[string]domain.User, len(f.users)),
		outbox: append([]domain.OutboxEvent(nil), f.outbox...),
	}
	for k, v := range f.carts {
		v.Items = append([]domain.CartItem(nil), v.Items...)
		s.carts[k] = v
	}
	for k, v := range f.orders {
		s.orders[k] = v
	}
	for k, v := range f.users {
		v.Orders = append([]string(nil), v.Orders...)
		s.users[k] = v
	}
	return s
}

func (f *fakeStore) restore(s storeSnapshot) {
	f.carts = s.carts
	f.orders = s.orders
	f.users = s.users
	f.outbox = s.outbox
}

type fakeCarts struct{ f *fakeStore }

func (r fakeCarts) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	r.f.mu.Lock()
	cart, ok := r.f.carts[userID]
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	hook := r.f.afterGetCart
	r.f.mu.Unlock()

	if !ok {
		return nil, repository.ErrCartNotFound
	}
	if hook != nil {
		hook()
	}
	return &cart, nil
}

func (r fakeCarts) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	cart := r.f.carts[userID]
	cart.UserID = userID
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			if cart.Items[i].Quantity+item.Quantity > domain.MaxItemQuantity {
				return repository.ErrQuantityLimit
			}
			cart.Items[i].Quantity += item.Quantity
			r.f.carts[userID] = cart
			return nil
		}
	}
	cart.Items = append(cart.Items, item)
	r.f.carts[userID] = cart
	return nil
}

func (r fakeCarts) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if quantity > domain.MaxItemQuantity {
		return repository.ErrQuantityLimit
	}
	cart, ok := r.f.carts[userID]
	if !ok {
		return repository.ErrItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (r fakeCarts) RemoveItems(_ context.Context, userID string, productIDs ...string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.removeItemsErr != nil {
		return r.f.removeItemsErr
	}
	cart, ok := r.f.carts[userID]
	if !ok {
		return nil
	}
	drop := map[string]bool{}
	for _, id := range productIDs {
		drop[id] = true
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if !drop[item.ProductID] {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	r.f.carts[userID] = cart
	return nil
}

func (r fakeCarts) ConsumeItems(_ context.Context, userID string, items []domain.CartItem) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	cart, ok := r.f.carts[userID]
	if !ok {
		return nil
	}
	taken := map[string]int{}
	for _, item := range items {
		taken[item.ProductID] += item.Quantity
	}
	kept := make([]domain.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		item.Quantity -= taken[item.ProductID]
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		delete(r.f.carts, userID)
		return nil
	}
	cart.Items = kept
	r.f.carts[userID] = cart
	return nil
}

type fakeProducts struct{ f *fakeStore }

func (r fakeProducts) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	p, ok := r.f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r fakeProducts) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.getProductsErr != nil {
		return nil, r.f.getProductsErr
	}
	out := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := r.f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeOrders struct{ f *fakeStore }

func (r fakeOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.orders[order.ID] = *order
	return nil
}

func (r fakeOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r fakeOrders) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.f.orders {
		if o.UserID == userID {
			o := o
			out = append(out, &o)
		}
	}
	return out, nil
}

func (r fakeOrders) SetExternalOrderID(_ context.Context, id, externalOrderID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.ExternalOrderID = externalOrderID
	r.f.orders[id] = o
	return nil
}

func (r fakeOrders) MarkProcessing(_ context.Context, id, externalPaymentID string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusProcessing
	o.ExternalPaymentID = externalPaymentID
	r.f.orders[id] = o
	return true, nil
}

func (r fakeOrders) MarkExpired(_ context.Context, id string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusExpired
	r.f.orders[id] = o
	return true, nil
}

func (r fakeOrders) ListPendingBefore(_ context.Context, cutoff time.Time, limit int64) ([]*domain.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.f.orders {
		if o.Status == domain.OrderStatusPending && o.CreatedAt.Before(cutoff) && int64(len(out)) < limit {
			o := o
			out = append(out, &o)
		}
	}
	return out, nil
}

type fakeUsers struct{ f *fakeStore }

func (r fakeUsers) GetUser(_ context.Context, id string) (*domain.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u, ok := r.f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r fakeUsers) DebitCoins(_ context.Context, id string, amount int64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u, ok := r.f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.Coins < amount {
		return domain.ErrInsufficientBalance
	}
	u.Coins -= amount
	r.f.users[id] = u
	return nil
}

func (r fakeUsers) AddOrderToHistory(_ context.Context, id, orderID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u := r.f.users[id]
	u.ID = id
	for _, existing := range u.Orders {
		if existing == orderID {
			return nil
		}
	}
	u.Orders = append(u.Orders, orderID)
	r.f.users[id] = u
	return nil
}

type fakeOutbox struct{ f *fakeStore }

func (r fakeOutbox) InsertEvent(_ context.Context, event *domain.OutboxEvent) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.insertEventErr != nil {
		return r.f.insertEventErr
	}
	r.f.outbox = append(r.f.outbox, *event)
	return nil
}

func (r fakeOutbox) GetUnprocessedEvents(_ context.Context, _ int64) ([]*domain.OutboxEvent, error) {
	return nil, errors.New("not used")
}

func (r fakeOutbox) MarkEventAsProcessed(_ context.Context, _ string) error {
	return errors.New("not used")
}

// mockCache counts calls and can be made to fail. Delete bumps a per-user version and
// Set refuses a stale one, like the Redis cache.
type mockCache struct {
	mu        sync.Mutex
	carts     map[string]*domain.Cart
	versions  map[string]int64
	getErr    error
	gets      int
	deletes   int
	staleSets int
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}, versions: map[string]int64{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Version(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.versions[userID], nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[userID] != version {
		m.staleSets++
		return cache.ErrVersionChanged
	}
	m.carts[userID] = cart
	return nil
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	m.versions[userID]++
	delete(m.carts, userID)
	return nil
}

func (m *mockCache) deleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

func (m *mockCache) staleSetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleSets
}

func (m *mockCache) cached(userID string) (*domain.Cart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	return c, ok
}

type mockGateway struct {
	intent     *payment.Intent
	err        error
	calls      int
	lastAmount decimal.Decimal
	lastRef    string
}

func (m *mockGateway) CreateIntent(_ context.Context, receipt string, amount decimal.Decimal) (*payment.Intent, error) {
	m.calls++
	m.lastAmount = amount
	m.lastRef = receipt
	if m.err != nil {
		return nil, m.err
	}
	intent := *m.intent
	intent.Amount = payment.MinorUnits(amount)
	return &intent, nil
}
