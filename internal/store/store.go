// Package store définit la couche de persistance de la boutique.
//
// Toute transition qui lit puis modifie du stock ou un solde passe par
// Store.Atomically : les lectures faites via Tx verrouillent la ligne lue
// jusqu'à la fin de l'unité de travail, et les écritures sont appliquées
// toutes ensemble ou pas du tout.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"wallet_shop/internal/models"
)

var (
	ErrNotFound      = errors.New("store: enregistrement introuvable")
	ErrUsernameTaken = errors.New("store: nom d'utilisateur déjà pris")
	ErrReturnExists  = errors.New("store: une demande de retour existe déjà pour cet achat")
)

// Store est implémenté par les backends scylla, postgres et memory.
type Store interface {
	// Atomically exécute fn dans une unité de travail. Si fn renvoie une
	// erreur, aucune écriture n'est visible.
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	ListReturns(ctx context.Context) ([]models.ProductReturn, error)
	ListStockMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)

	RecordAudit(ctx context.Context, entry models.AuditLog) error
	// ListAuditLogs retourne les entrées les plus récentes en premier
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)

	Close() error
}

// Tx est la vue transactionnelle passée à Atomically.
type Tx interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	GetReturn(ctx context.Context, id uuid.UUID) (*models.ProductReturn, error)
	ReturnExistsForPurchase(ctx context.Context, purchaseID uuid.UUID) (bool, error)

	UpdateProduct(ctx context.Context, p *models.Product) error
	UpdateUserMoney(ctx context.Context, userID uuid.UUID, money int64) error
	InsertPurchase(ctx context.Context, p *models.Purchase) error
	DeletePurchase(ctx context.Context, p *models.Purchase) error
	InsertReturn(ctx context.Context, r *models.ProductReturn) error
	DeleteReturn(ctx context.Context, r *models.ProductReturn) error
	InsertStockMovement(ctx context.Context, m *models.StockMovement) error
}
