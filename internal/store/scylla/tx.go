package scylla

import (
	"context"
	"fmt"
	"sort"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/models"
	"wallet_shop/internal/store"
)

// tx verrouille chaque ligne lue et accumule les écritures dans un batch.
// Les écritures ne sont pas visibles des lectures de la même unité.
type tx struct {
	ctx   context.Context
	s     *Store
	batch *gocql.Batch
	locks map[string]*cache.Lock
	order []string

	products map[uuid.UUID]bool
	users    map[uuid.UUID]bool
}

func newTx(ctx context.Context, s *Store) *tx {
	return &tx{
		ctx:      ctx,
		s:        s,
		batch:    s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx),
		locks:    make(map[string]*cache.Lock),
		products: make(map[uuid.UUID]bool),
		users:    make(map[uuid.UUID]bool),
	}
}

func lockKey(kind string, id uuid.UUID) string {
	return "shop:" + kind + ":" + id.String()
}

func (t *tx) lock(ctx context.Context, kind string, id uuid.UUID) error {
	key := lockKey(kind, id)
	if _, held := t.locks[key]; held {
		return nil
	}
	l, err := cache.AcquireLock(ctx, t.s.redis, key, t.s.lockTTL, t.s.lockWait)
	if err != nil {
		return fmt.Errorf("verrou %s: %w", key, err)
	}
	t.locks[key] = l
	t.order = append(t.order, key)
	return nil
}

// release libère les verrous dans l'ordre inverse d'acquisition
func (t *tx) release() {
	// contexte propre : les verrous doivent être rendus même si ctx est annulé
	ctx := context.WithoutCancel(t.ctx)
	for i := len(t.order) - 1; i >= 0; i-- {
		key := t.order[i]
		logRelease(key, t.locks[key].Release(ctx))
	}
}

func (t *tx) commit() error {
	if t.batch.Size() == 0 {
		return nil
	}
	if err := t.s.session.ExecuteBatch(t.batch); err != nil {
		return fmt.Errorf("batch scylla: %w", err)
	}
	return nil
}

func (t *tx) add(stmt string, args ...interface{}) {
	t.batch.Query(stmt, args...)
}

func (t *tx) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if err := t.lock(ctx, "product", id); err != nil {
		return nil, err
	}
	p, err := getProduct(ctx, t.s.session, id)
	if err == nil {
		t.products[id] = true
	}
	return p, err
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := t.lock(ctx, "user", id); err != nil {
		return nil, err
	}
	u, err := getUser(ctx, t.s.session, id)
	if err == nil {
		t.users[id] = true
	}
	return u, err
}

func (t *tx) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	if err := t.lock(ctx, "purchase", id); err != nil {
		return nil, err
	}
	return getPurchase(ctx, t.s.session, id)
}

func (t *tx) GetReturn(ctx context.Context, id uuid.UUID) (*models.ProductReturn, error) {
	if err := t.lock(ctx, "return", id); err != nil {
		return nil, err
	}
	return getReturn(ctx, t.s.session, id)
}

// ReturnExistsForPurchase est protégé par le verrou de l'achat
func (t *tx) ReturnExistsForPurchase(ctx context.Context, purchaseID uuid.UUID) (bool, error) {
	if err := t.lock(ctx, "purchase", purchaseID); err != nil {
		return false, err
	}
	var rid gocql.UUID
	err := t.s.session.Query(stmtSelectReturnByPurchase, gocql.UUID(purchaseID)).WithContext(ctx).Scan(&rid)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateProduct exige une ligne existante : un UPDATE CQL créerait la ligne
func (t *tx) UpdateProduct(ctx context.Context, p *models.Product) error {
	if !t.products[p.ID] {
		if _, err := t.GetProduct(ctx, p.ID); err != nil {
			return err
		}
	}
	t.add(stmtUpdateProduct, p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.UpdatedAt, gocql.UUID(p.ID))
	return nil
}

func (t *tx) UpdateUserMoney(ctx context.Context, userID uuid.UUID, money int64) error {
	if !t.users[userID] {
		if _, err := t.GetUser(ctx, userID); err != nil {
			return err
		}
	}
	t.add(stmtUpdateUserMoney, money, gocql.UUID(userID))
	return nil
}

func (t *tx) InsertPurchase(_ context.Context, p *models.Purchase) error {
	id, uid, pid := gocql.UUID(p.ID), gocql.UUID(p.UserID), gocql.UUID(p.ProductID)
	t.add(stmtInsertPurchase, id, uid, pid, p.Quantity, p.PurchasedAt)
	t.add(stmtInsertPurchaseByUser, uid, p.PurchasedAt, id, pid, p.Quantity)
	return nil
}

func (t *tx) DeletePurchase(_ context.Context, p *models.Purchase) error {
	t.add(stmtDeletePurchase, gocql.UUID(p.ID))
	t.add(stmtDeletePurchaseByUser, gocql.UUID(p.UserID), p.PurchasedAt, gocql.UUID(p.ID))
	return nil
}

func (t *tx) InsertReturn(ctx context.Context, r *models.ProductReturn) error {
	exists, err := t.ReturnExistsForPurchase(ctx, r.PurchaseID)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrReturnExists
	}
	t.add(stmtInsertReturn, gocql.UUID(r.ID), gocql.UUID(r.PurchaseID), gocql.UUID(r.RequestedBy), r.CreatedAt)
	t.add(stmtInsertReturnByPurchase, gocql.UUID(r.PurchaseID), gocql.UUID(r.ID))
	return nil
}

func (t *tx) DeleteReturn(_ context.Context, r *models.ProductReturn) error {
	t.add(stmtDeleteReturn, gocql.UUID(r.ID))
	t.add(stmtDeleteReturnByPurchase, gocql.UUID(r.PurchaseID))
	return nil
}

func (t *tx) InsertStockMovement(_ context.Context, m *models.StockMovement) error {
	t.add(stmtInsertMovement,
		gocql.UUID(m.ProductID), m.CreatedAt, gocql.UUID(m.ID), m.Type, m.Quantity,
		m.PrevStock, m.NewStock, m.Reason, gocql.UUID(m.UserID))
	return nil
}

func sortProducts(products []models.Product) {
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
}

func sortReturns(returns []models.ProductReturn) {
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].CreatedAt.Before(returns[j].CreatedAt)
	})
}
