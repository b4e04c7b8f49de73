// Package postgres implémente store.Store sur PostgreSQL : chaque unité de
// travail est une transaction, et les lectures transactionnelles prennent un
// verrou de ligne (SELECT ... FOR UPDATE).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"wallet_shop/internal/models"
	"wallet_shop/internal/store"
	"wallet_shop/internal/utils"
)

const (
	productColumns  = `product_id, name, description, price, stock, image_url, created_at, updated_at`
	userColumns     = `user_id, username, email, password, money, is_staff, created_at`
	purchaseColumns = `purchase_id, user_id, product_id, quantity, purchased_at`
	returnColumns   = `return_id, purchase_id, requested_by, created_at`
	movementColumns = `movement_id, product_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at`
)

type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open se connecte à dsn et applique les migrations si migrate vaut true
func Open(ctx context.Context, dsn string, migrate bool) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connexion postgres: %w", err)
	}
	if migrate {
		if err := Migrate(db.DB); err != nil {
			db.Close()
			return nil, err
		}
	}
	utils.Log.Info("✅ Connecté à PostgreSQL")
	return New(db), nil
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Atomically(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			utils.Log.Warnf("⚠️ Rollback: %v", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM products ORDER BY created_at`)
	return products, err
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := s.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:product_id, :name, :description, :price, :stock, :image_url, :created_at, :updated_at)`, p)
	return mapError(err)
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:user_id, :username, :email, :password, :money, :is_staff, :created_at)`, u)
	return mapError(err)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username = $1`, username); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *Store) ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	err := s.db.SelectContext(ctx, &purchases, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE user_id = $1
		ORDER BY purchased_at DESC`, userID)
	return purchases, err
}

func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE purchase_id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (s *Store) ListReturns(ctx context.Context) ([]models.ProductReturn, error) {
	returns := []models.ProductReturn{}
	err := s.db.SelectContext(ctx, &returns, `SELECT `+returnColumns+` FROM product_returns ORDER BY created_at`)
	return returns, err
}

func (s *Store) ListStockMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	movements := []models.StockMovement{}
	var err error
	if productID == uuid.Nil {
		err = s.db.SelectContext(ctx, &movements, `
			SELECT `+movementColumns+` FROM stock_movements
			ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		err = s.db.SelectContext(ctx, &movements, `
			SELECT `+movementColumns+` FROM stock_movements
			WHERE product_id = $1
			ORDER BY created_at DESC LIMIT $2`, productID, limit)
	}
	return movements, err
}

func (s *Store) RecordAudit(ctx context.Context, entry models.AuditLog) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (audit_id, user_id, username, action, resource, resource_id,
			ip_address, user_agent, success, error_msg, created_at)
		VALUES (:audit_id, :user_id, :username, :action, :resource, :resource_id,
			:ip_address, :user_agent, :success, :error_msg, :created_at)`, entry)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	logs := []models.AuditLog{}
	err := s.db.SelectContext(ctx, &logs, `
		SELECT audit_id, user_id, username, action, resource, resource_id,
			ip_address, user_agent, success, error_msg, created_at
		FROM audit_logs
		ORDER BY created_at DESC LIMIT $1`, limit)
	return logs, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	tx *sqlx.Tx
}

func (t *tx) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := t.tx.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE product_id = $1 FOR UPDATE`, id); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := t.tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, id); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (t *tx) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var p models.Purchase
	if err := t.tx.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE purchase_id = $1 FOR UPDATE`, id); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (t *tx) GetReturn(ctx context.Context, id uuid.UUID) (*models.ProductReturn, error) {
	var r models.ProductReturn
	if err := t.tx.GetContext(ctx, &r, `SELECT `+returnColumns+` FROM product_returns WHERE return_id = $1 FOR UPDATE`, id); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (t *tx) ReturnExistsForPurchase(ctx context.Context, purchaseID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM product_returns WHERE purchase_id = $1)`, purchaseID)
	return exists, err
}

func (t *tx) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := t.tx.NamedExecContext(ctx, `
		UPDATE products
		SET name = :name, description = :description, price = :price, stock = :stock,
			image_url = :image_url, updated_at = :updated_at
		WHERE product_id = :product_id`, p)
	return affected(res, err)
}

func (t *tx) UpdateUserMoney(ctx context.Context, userID uuid.UUID, money int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET money = $2 WHERE user_id = $1`, userID, money)
	return affected(res, err)
}

func (t *tx) InsertPurchase(ctx context.Context, p *models.Purchase) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES (:purchase_id, :user_id, :product_id, :quantity, :purchased_at)`, p)
	return mapError(err)
}

func (t *tx) DeletePurchase(ctx context.Context, p *models.Purchase) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM purchases WHERE purchase_id = $1`, p.ID)
	return affected(res, err)
}

func (t *tx) InsertReturn(ctx context.Context, r *models.ProductReturn) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO product_returns (`+returnColumns+`)
		VALUES (:return_id, :purchase_id, :requested_by, :created_at)`, r)
	return mapError(err)
}

func (t *tx) DeleteReturn(ctx context.Context, r *models.ProductReturn) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM product_returns WHERE return_id = $1`, r.ID)
	return affected(res, err)
}

func (t *tx) InsertStockMovement(ctx context.Context, m *models.StockMovement) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES (:movement_id, :product_id, :type, :quantity, :prev_stock, :new_stock, :reason, :user_id, :created_at)`, m)
	return err
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapError traduit les erreurs du driver en erreurs du package store
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_username_key":
			return store.ErrUsernameTaken
		case "product_returns_purchase_id_key":
			return store.ErrReturnExists
		}
	}
	return err
}
