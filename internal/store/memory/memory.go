// Package memory fournit un Store en mémoire, utilisé en développement
// (STORE_DRIVER=memory) et dans les tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wallet_shop/internal/models"
	"wallet_shop/internal/store"
)

type state struct {
	products         map[uuid.UUID]models.Product
	users            map[uuid.UUID]models.User
	usernames        map[string]uuid.UUID
	purchases        map[uuid.UUID]models.Purchase
	returns          map[uuid.UUID]models.ProductReturn
	returnByPurchase map[uuid.UUID]uuid.UUID
	movements        []models.StockMovement
	audit            []models.AuditLog
}

func newState() *state {
	return &state{
		products:         make(map[uuid.UUID]models.Product),
		users:            make(map[uuid.UUID]models.User),
		usernames:        make(map[string]uuid.UUID),
		purchases:        make(map[uuid.UUID]models.Purchase),
		returns:          make(map[uuid.UUID]models.ProductReturn),
		returnByPurchase: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.usernames {
		c.usernames[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.returns {
		c.returns[k] = v
	}
	for k, v := range s.returnByPurchase {
		c.returnByPurchase[k] = v
	}
	c.movements = append([]models.StockMovement(nil), s.movements...)
	c.audit = append([]models.AuditLog(nil), s.audit...)
	return c
}

// Store sérialise toutes les unités de travail sur un seul mutex.
// Les écritures d'une unité sont faites sur une copie de l'état, échangée
// seulement si fn réussit.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// Atomically ne doit pas rappeler les méthodes non transactionnelles du
// Store depuis fn : le mutex est déjà tenu.
func (s *Store) Atomically(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.st.clone()
	if err := fn(&tx{st: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]models.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).GetProduct(ctx, id)
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = *p
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.st.usernames[u.Username]; taken {
		return store.ErrUsernameTaken
	}
	s.st.users[u.ID] = *u
	s.st.usernames[u.Username] = u.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).GetUser(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.st.usernames[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.st.users[id]
	return &u, nil
}

func (s *Store) ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purchases []models.Purchase
	for _, p := range s.st.purchases {
		if p.UserID == userID {
			purchases = append(purchases, p)
		}
	}
	sort.Slice(purchases, func(i, j int) bool {
		return purchases[i].PurchasedAt.After(purchases[j].PurchasedAt)
	})
	return purchases, nil
}

func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).GetPurchase(ctx, id)
}

func (s *Store) ListReturns(ctx context.Context) ([]models.ProductReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	returns := make([]models.ProductReturn, 0, len(s.st.returns))
	for _, r := range s.st.returns {
		returns = append(returns, r)
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].CreatedAt.Before(returns[j].CreatedAt)
	})
	return returns, nil
}

func (s *Store) ListStockMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var movements []models.StockMovement
	for i := len(s.st.movements) - 1; i >= 0; i-- {
		m := s.st.movements[i]
		if productID != uuid.Nil && m.ProductID != productID {
			continue
		}
		movements = append(movements, m)
		if limit > 0 && len(movements) == limit {
			break
		}
	}
	return movements, nil
}

func (s *Store) RecordAudit(ctx context.Context, entry models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.audit = append(s.st.audit, entry)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := []models.AuditLog{}
	for i := len(s.st.audit) - 1; i >= 0; i-- {
		logs = append(logs, s.st.audit[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) Close() error { return nil }

type tx struct {
	st *state
}

func (t *tx) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *tx) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *tx) GetPurchase(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	p, ok := t.st.purchases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *tx) GetReturn(_ context.Context, id uuid.UUID) (*models.ProductReturn, error) {
	r, ok := t.st.returns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *tx) ReturnExistsForPurchase(_ context.Context, purchaseID uuid.UUID) (bool, error) {
	_, ok := t.st.returnByPurchase[purchaseID]
	return ok, nil
}

func (t *tx) UpdateProduct(_ context.Context, p *models.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) UpdateUserMoney(_ context.Context, userID uuid.UUID, money int64) error {
	u, ok := t.st.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Money = money
	t.st.users[userID] = u
	return nil
}

func (t *tx) InsertPurchase(_ context.Context, p *models.Purchase) error {
	t.st.purchases[p.ID] = *p
	return nil
}

func (t *tx) DeletePurchase(_ context.Context, p *models.Purchase) error {
	if _, ok := t.st.purchases[p.ID]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.purchases, p.ID)
	return nil
}

func (t *tx) InsertReturn(_ context.Context, r *models.ProductReturn) error {
	if _, exists := t.st.returnByPurchase[r.PurchaseID]; exists {
		return store.ErrReturnExists
	}
	t.st.returns[r.ID] = *r
	t.st.returnByPurchase[r.PurchaseID] = r.ID
	return nil
}

func (t *tx) DeleteReturn(_ context.Context, r *models.ProductReturn) error {
	if _, ok := t.st.returns[r.ID]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.returns, r.ID)
	delete(t.st.returnByPurchase, r.PurchaseID)
	return nil
}

func (t *tx) InsertStockMovement(_ context.Context, m *models.StockMovement) error {
	t.st.movements = append(t.st.movements, *m)
	return nil
}
