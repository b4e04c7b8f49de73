// Package scylla implémente store.Store sur ScyllaDB.
//
// ScyllaDB n'a pas de transaction multi-lignes : une unité de travail pose un
// verrou Redis sur chaque ligne lue (dans l'ordre retour, achat, produit,
// utilisateur) puis applique toutes ses écritures dans un seul LOGGED BATCH
// au commit. Un batch logué garantit que toutes les écritures finissent par
// être appliquées ou aucune.
package scylla

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"wallet_shop/internal/models"
	"wallet_shop/internal/store"
	"wallet_shop/internal/utils"
)

const (
	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 5 * time.Second
)

type Store struct {
	session  *gocql.Session
	audit    *gocql.Session
	redis    *redis.Client
	lockTTL  time.Duration
	lockWait time.Duration
}

var _ store.Store = (*Store)(nil)

// New construit le store. audit peut valoir session si le journal d'audit
// partage le keyspace principal.
func New(session, audit *gocql.Session, rdb *redis.Client) *Store {
	if audit == nil {
		audit = session
	}
	return &Store{
		session:  session,
		audit:    audit,
		redis:    rdb,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
}

func (s *Store) Atomically(ctx context.Context, fn func(tx store.Tx) error) error {
	t := newTx(ctx, s)
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	iter := s.session.Query(stmtSelectProducts).WithContext(ctx).Iter()
	products := []models.Product{}
	for {
		p, ok := scanProduct(iter)
		if !ok {
			break
		}
		products = append(products, p)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return getProduct(ctx, s.session, id)
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.session.Query(stmtInsertProduct,
		gocql.UUID(p.ID), p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).Exec()
}

// CreateUser réserve le nom d'utilisateur par une transaction légère avant
// d'écrire la ligne users.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	var existingName string
	var existingID gocql.UUID
	applied, err := s.session.Query(stmtClaimUsername, u.Username, gocql.UUID(u.ID)).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		ScanCAS(&existingName, &existingID)
	if err != nil {
		return fmt.Errorf("réservation username: %w", err)
	}
	if !applied {
		return store.ErrUsernameTaken
	}

	return s.session.Query(stmtInsertUser,
		gocql.UUID(u.ID), u.Username, u.Email, u.Password, u.Money, u.IsStaff, u.CreatedAt,
	).WithContext(ctx).Exec()
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return getUser(ctx, s.session, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var id gocql.UUID
	if err := s.session.Query(stmtSelectUserIDByName, username).WithContext(ctx).Scan(&id); err != nil {
		return nil, mapError(err)
	}
	return getUser(ctx, s.session, uuid.UUID(id))
}

func (s *Store) ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	iter := s.session.Query(stmtSelectPurchasesByUser, gocql.UUID(userID)).WithContext(ctx).Iter()
	purchases := []models.Purchase{}
	for {
		p, ok := scanPurchase(iter)
		if !ok {
			break
		}
		purchases = append(purchases, p)
	}
	return purchases, iter.Close()
}

func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return getPurchase(ctx, s.session, id)
}

func (s *Store) ListReturns(ctx context.Context) ([]models.ProductReturn, error) {
	iter := s.session.Query(stmtSelectReturns).WithContext(ctx).Iter()
	returns := []models.ProductReturn{}
	for {
		r, ok := scanReturn(iter)
		if !ok {
			break
		}
		returns = append(returns, r)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sortReturns(returns)
	return returns, nil
}

func (s *Store) ListStockMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	var q *gocql.Query
	if productID == uuid.Nil {
		q = s.session.Query(stmtSelectMovements, limit)
	} else {
		q = s.session.Query(stmtSelectMovementsByProduct, gocql.UUID(productID), limit)
	}

	iter := q.WithContext(ctx).Iter()
	movements := []models.StockMovement{}
	var (
		id, pid, uid gocql.UUID
		m            models.StockMovement
	)
	for iter.Scan(&id, &pid, &m.Type, &m.Quantity, &m.PrevStock, &m.NewStock, &m.Reason, &uid, &m.CreatedAt) {
		m.ID, m.ProductID, m.UserID = uuid.UUID(id), uuid.UUID(pid), uuid.UUID(uid)
		movements = append(movements, m)
	}
	return movements, iter.Close()
}

func (s *Store) RecordAudit(ctx context.Context, e models.AuditLog) error {
	return s.audit.Query(stmtInsertAudit,
		gocql.UUID(e.ID), e.UserID, e.Username, e.Action, e.Resource, e.ResourceID,
		e.IPAddress, e.UserAgent, e.Success, e.ErrorMsg, e.Timestamp,
	).WithContext(ctx).Exec()
}

// ListAuditLogs lit au plus limit entrées puis les trie : la table n'a pas
// d'ordre global
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	iter := s.audit.Query(stmtSelectAudit, limit).WithContext(ctx).Iter()
	logs := []models.AuditLog{}
	var (
		id gocql.UUID
		e  models.AuditLog
	)
	for iter.Scan(&id, &e.UserID, &e.Username, &e.Action, &e.Resource, &e.ResourceID,
		&e.IPAddress, &e.UserAgent, &e.Success, &e.ErrorMsg, &e.Timestamp) {
		e.ID = uuid.UUID(id)
		logs = append(logs, e)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	return logs, nil
}

// Close ne ferme pas les sessions : elles appartiennent au ScyllaManager
func (s *Store) Close() error { return nil }

// --- lectures partagées entre Store et tx ---

func getProduct(ctx context.Context, session *gocql.Session, id uuid.UUID) (*models.Product, error) {
	iter := session.Query(stmtSelectProduct, gocql.UUID(id)).WithContext(ctx).Iter()
	p, ok := scanProduct(iter)
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func getUser(ctx context.Context, session *gocql.Session, id uuid.UUID) (*models.User, error) {
	var (
		uid gocql.UUID
		u   models.User
	)
	err := session.Query(stmtSelectUser, gocql.UUID(id)).WithContext(ctx).
		Scan(&uid, &u.Username, &u.Email, &u.Password, &u.Money, &u.IsStaff, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	u.ID = uuid.UUID(uid)
	return &u, nil
}

func getPurchase(ctx context.Context, session *gocql.Session, id uuid.UUID) (*models.Purchase, error) {
	iter := session.Query(stmtSelectPurchase, gocql.UUID(id)).WithContext(ctx).Iter()
	p, ok := scanPurchase(iter)
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func getReturn(ctx context.Context, session *gocql.Session, id uuid.UUID) (*models.ProductReturn, error) {
	iter := session.Query(stmtSelectReturn, gocql.UUID(id)).WithContext(ctx).Iter()
	r, ok := scanReturn(iter)
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func scanProduct(iter *gocql.Iter) (models.Product, bool) {
	var (
		id gocql.UUID
		p  models.Product
	)
	if !iter.Scan(&id, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt) {
		return p, false
	}
	p.ID = uuid.UUID(id)
	return p, true
}

func scanPurchase(iter *gocql.Iter) (models.Purchase, bool) {
	var (
		id, uid, pid gocql.UUID
		p            models.Purchase
	)
	if !iter.Scan(&id, &uid, &pid, &p.Quantity, &p.PurchasedAt) {
		return p, false
	}
	p.ID, p.UserID, p.ProductID = uuid.UUID(id), uuid.UUID(uid), uuid.UUID(pid)
	return p, true
}

func scanReturn(iter *gocql.Iter) (models.ProductReturn, bool) {
	var (
		id, pid, by gocql.UUID
		r           models.ProductReturn
	)
	if !iter.Scan(&id, &pid, &by, &r.CreatedAt) {
		return r, false
	}
	r.ID, r.PurchaseID, r.RequestedBy = uuid.UUID(id), uuid.UUID(pid), uuid.UUID(by)
	return r, true
}

func mapError(err error) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return store.ErrNotFound
	}
	return err
}

func logRelease(key string, err error) {
	if err != nil {
		utils.Log.Warnf("⚠️ Libération verrou %s: %v", key, err)
	}
}
