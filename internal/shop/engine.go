// Package shop contient les règles métier de la boutique : validation des
// achats et des retours, et transitions atomiques sur les stocks et soldes.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wallet_shop/internal/models"
	"wallet_shop/internal/store"
	"wallet_shop/internal/utils"
)

type Engine struct {
	store           store.Store
	policy          ReturnPolicy
	startingBalance int64
	now             func() time.Time
}

type Option func(*Engine)

// WithClock remplace l'horloge (tests)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStartingBalance fixe le solde initial des nouveaux comptes
func WithStartingBalance(balance int64) Option {
	return func(e *Engine) { e.startingBalance = balance }
}

func NewEngine(s store.Store, policy ReturnPolicy, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		policy:          policy,
		startingBalance: 10000,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Policy() ReturnPolicy { return e.policy }

// ReturnDecision décrit l'état des entités au moment où le staff a traité
// une demande de retour.
type ReturnDecision struct {
	Return   models.ProductReturn
	Purchase models.Purchase
	Product  models.Product
	User     models.User
	Refund   int64
	Approved bool
}

// ProductInput contient les champs éditables d'un produit
type ProductInput struct {
	Name        string
	Description string
	Price       int64
	Stock       int
}

// Purchase débite le stock et le solde puis crée l'achat, dans une seule
// unité de travail.
func (e *Engine) Purchase(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Purchase, error) {
	var purchase *models.Purchase
	var total int64

	err := e.store.Atomically(ctx, func(tx store.Tx) error {
		product, err := optional(tx.GetProduct(ctx, productID))
		if err != nil {
			return err
		}
		var user *models.User
		if product != nil {
			if user, err = optional(tx.GetUser(ctx, userID)); err != nil {
				return err
			}
		}

		if err := ValidatePurchase(quantity, product, user).Err(); err != nil {
			return err
		}

		now := e.now().UTC()
		total = product.Total(quantity)
		prevStock := product.Stock

		product.Stock -= quantity
		product.UpdatedAt = now
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return fmt.Errorf("mise à jour stock: %w", err)
		}
		if err := tx.UpdateUserMoney(ctx, user.ID, user.Money-total); err != nil {
			return fmt.Errorf("mise à jour solde: %w", err)
		}

		purchase = &models.Purchase{
			ID:          uuid.New(),
			UserID:      user.ID,
			ProductID:   product.ID,
			Quantity:    quantity,
			PurchasedAt: now,
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return fmt.Errorf("création achat: %w", err)
		}

		return tx.InsertStockMovement(ctx, &models.StockMovement{
			ID:        uuid.New(),
			ProductID: product.ID,
			Type:      models.MovementSale,
			Quantity:  quantity,
			PrevStock: prevStock,
			NewStock:  product.Stock,
			Reason:    "achat " + purchase.ID.String(),
			UserID:    user.ID,
			CreatedAt: now,
		})
	})
	observe("purchase", err)
	if err != nil {
		return nil, err
	}

	walletUnitsMoved.WithLabelValues("purchase").Add(float64(total))
	utils.Log.Infof("🛒 Achat %s: user %s, produit %s x%d (%d unités)",
		purchase.ID, userID, productID, quantity, total)
	return purchase, nil
}

// RequestReturn crée une demande de retour sur un achat encore dans la
// fenêtre de remboursement. Aucun effet sur le solde avant approbation.
func (e *Engine) RequestReturn(ctx context.Context, actor *models.User, purchaseID uuid.UUID) (*models.ProductReturn, error) {
	if actor == nil {
		return nil, ErrPermissionDenied
	}

	var ret *models.ProductReturn
	err := e.store.Atomically(ctx, func(tx store.Tx) error {
		purchase, err := optional(tx.GetPurchase(ctx, purchaseID))
		if err != nil {
			return err
		}

		now := e.now().UTC()
		if err := ValidateReturnRequest(purchase, actor, now, e.policy).Err(); err != nil {
			return err
		}

		exists, err := tx.ReturnExistsForPurchase(ctx, purchase.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRequested
		}

		ret = &models.ProductReturn{
			ID:          uuid.New(),
			PurchaseID:  purchase.ID,
			RequestedBy: actor.ID,
			CreatedAt:   now,
		}
		if err := tx.InsertReturn(ctx, ret); err != nil {
			if errors.Is(err, store.ErrReturnExists) {
				return ErrAlreadyRequested
			}
			return fmt.Errorf("création retour: %w", err)
		}
		return nil
	})
	observe("return_request", err)
	if err != nil {
		return nil, err
	}

	utils.Log.Infof("📦 Demande de retour %s pour l'achat %s (par %s)", ret.ID, purchaseID, actor.ID)
	return ret, nil
}

// ApproveReturn remet le stock, recrédite l'acheteur puis supprime l'achat
// et la demande de retour. Réservé au staff.
func (e *Engine) ApproveReturn(ctx context.Context, actor *models.User, returnID uuid.UUID) (*ReturnDecision, error) {
	if !isStaff(actor) {
		observe("return_approve", ErrPermissionDenied)
		return nil, ErrPermissionDenied
	}

	var decision *ReturnDecision
	err := e.store.Atomically(ctx, func(tx store.Tx) error {
		d, err := e.loadDecision(ctx, tx, returnID, true)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		prevStock := d.Product.Stock
		d.Refund = d.Product.Total(d.Purchase.Quantity)
		d.Product.Stock += d.Purchase.Quantity
		d.Product.UpdatedAt = now
		d.User.Money += d.Refund
		d.Approved = true

		if err := tx.UpdateProduct(ctx, &d.Product); err != nil {
			return fmt.Errorf("remise en stock: %w", err)
		}
		if err := tx.UpdateUserMoney(ctx, d.User.ID, d.User.Money); err != nil {
			return fmt.Errorf("remboursement: %w", err)
		}
		if err := tx.InsertStockMovement(ctx, &models.StockMovement{
			ID:        uuid.New(),
			ProductID: d.Product.ID,
			Type:      models.MovementReturn,
			Quantity:  d.Purchase.Quantity,
			PrevStock: prevStock,
			NewStock:  d.Product.Stock,
			Reason:    "retour " + d.Return.ID.String(),
			UserID:    actor.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		// suppression explicite : l'achat puis la demande
		if err := tx.DeletePurchase(ctx, &d.Purchase); err != nil {
			return fmt.Errorf("suppression achat: %w", err)
		}
		if err := tx.DeleteReturn(ctx, &d.Return); err != nil {
			return fmt.Errorf("suppression retour: %w", err)
		}

		decision = d
		return nil
	})
	observe("return_approve", err)
	if err != nil {
		return nil, err
	}

	walletUnitsMoved.WithLabelValues("refund").Add(float64(decision.Refund))
	utils.Log.Infof("✅ Retour %s approuvé par %s: %d unités rendues à %s",
		returnID, actor.Username, decision.Refund, decision.User.Username)
	return decision, nil
}

// RejectReturn supprime uniquement la demande de retour. Réservé au staff.
func (e *Engine) RejectReturn(ctx context.Context, actor *models.User, returnID uuid.UUID) (*ReturnDecision, error) {
	if !isStaff(actor) {
		observe("return_reject", ErrPermissionDenied)
		return nil, ErrPermissionDenied
	}

	var decision *ReturnDecision
	err := e.store.Atomically(ctx, func(tx store.Tx) error {
		d, err := e.loadDecision(ctx, tx, returnID, false)
		if err != nil {
			return err
		}
		if err := tx.DeleteReturn(ctx, &d.Return); err != nil {
			return fmt.Errorf("suppression retour: %w", err)
		}
		decision = d
		return nil
	})
	observe("return_reject", err)
	if err != nil {
		return nil, err
	}

	utils.Log.Infof("❌ Retour %s rejeté par %s", returnID, actor.Username)
	return decision, nil
}

// loadDecision lit la demande, l'achat, le produit et l'acheteur dans cet
// ordre. withProduct=false évite de verrouiller le produit pour un rejet.
func (e *Engine) loadDecision(ctx context.Context, tx store.Tx, returnID uuid.UUID, withProduct bool) (*ReturnDecision, error) {
	ret, err := optional(tx.GetReturn(ctx, returnID))
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, fmt.Errorf("retour %s: %w", returnID, ErrNotFound)
	}

	purchase, err := optional(tx.GetPurchase(ctx, ret.PurchaseID))
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, fmt.Errorf("achat %s du retour %s: %w", ret.PurchaseID, returnID, ErrNotFound)
	}

	d := &ReturnDecision{Return: *ret, Purchase: *purchase}

	if withProduct {
		product, err := optional(tx.GetProduct(ctx, purchase.ProductID))
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("produit %s: %w", purchase.ProductID, ErrNotFound)
		}
		d.Product = *product
	}

	user, err := optional(tx.GetUser(ctx, purchase.UserID))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("utilisateur %s: %w", purchase.UserID, ErrNotFound)
	}
	d.User = *user
	return d, nil
}

// Register crée un compte avec le solde de départ. passwordHash est déjà haché.
func (e *Engine) Register(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		Money:     e.startingBalance,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.CreateUser(ctx, user); err != nil {
		observe("register", err)
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("création compte: %w", err)
	}
	observe("register", nil)
	utils.Log.Infof("👤 Nouveau compte %s (%d unités)", username, user.Money)
	return user, nil
}

// Authenticate vérifie le couple nom d'utilisateur / mot de passe
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := optional(e.store.GetUserByUsername(ctx, username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil {
		utils.Log.Warnf("⚠️ Hash illisible pour %s: %v", username, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (e *Engine) CreateProduct(ctx context.Context, actor *models.User, in ProductInput) (*models.Product, error) {
	if !isStaff(actor) {
		return nil, ErrPermissionDenied
	}
	if err := ValidateProduct(in).Err(); err != nil {
		return nil, err
	}
	now := e.now().UTC()
	p := &models.Product{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("création produit: %w", err)
	}
	utils.Log.Infof("🆕 Produit %s créé par %s (stock %d)", p.Name, actor.Username, p.Stock)
	return p, nil
}

// UpdateProduct remplace tous les champs éditables. Passe par une unité de
// travail pour ne pas écraser un stock modifié par un achat concurrent.
func (e *Engine) UpdateProduct(ctx context.Context, actor *models.User, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if !isStaff(actor) {
		return nil, ErrPermissionDenied
	}

	var updated *models.Product
	err := e.store.Atomically(ctx, func(tx store.Tx) error {
		p, err := optional(tx.GetProduct(ctx, id))
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNotFound
		}
		if err := ValidateProduct(in).Err(); err != nil {
			return err
		}

		now := e.now().UTC()
		prevStock := p.Stock
		p.Name = in.Name
		p.Description = in.Description
		p.Price = in.Price
		p.Stock = in.Stock
		p.UpdatedAt = now
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}

		if prevStock != p.Stock {
			if err := tx.InsertStockMovement(ctx, &models.StockMovement{
				ID:        uuid.New(),
				ProductID: p.ID,
				Type:      models.MovementAdjustment,
				Quantity:  p.Stock - prevStock,
				PrevStock: prevStock,
				NewStock:  p.Stock,
				Reason:    "modification staff",
				UserID:    actor.ID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.Log.Infof("✏️ Produit %s mis à jour par %s", id, actor.Username)
	return updated, nil
}

// SetProductImage enregistre l'URL de l'image d'un produit
func (e *Engine) SetProductImage(ctx context.Context, actor *models.User, id uuid.UUID, imageURL string) error {
	if !isStaff(actor) {
		return ErrPermissionDenied
	}
	return e.store.Atomically(ctx, func(tx store.Tx) error {
		p, err := optional(tx.GetProduct(ctx, id))
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNotFound
		}
		p.ImageURL = imageURL
		p.UpdatedAt = e.now().UTC()
		return tx.UpdateProduct(ctx, p)
	})
}

func (e *Engine) ListProducts(ctx context.Context) ([]models.Product, error) {
	return e.store.ListProducts(ctx)
}

func (e *Engine) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := optional(e.store.GetProduct(ctx, id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// ListPurchases retourne uniquement les achats de userID
func (e *Engine) ListPurchases(ctx context.Context, userID uuid.UUID) ([]models.PurchaseView, error) {
	purchases, err := e.store.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	returns, err := e.store.ListReturns(ctx)
	if err != nil {
		return nil, err
	}
	requested := make(map[uuid.UUID]bool, len(returns))
	for _, r := range returns {
		requested[r.PurchaseID] = true
	}

	now := e.now().UTC()
	products := make(map[uuid.UUID]*models.Product)
	views := make([]models.PurchaseView, 0, len(purchases))
	for _, p := range purchases {
		product, ok := products[p.ProductID]
		if !ok {
			if product, err = optional(e.store.GetProduct(ctx, p.ProductID)); err != nil {
				return nil, err
			}
			products[p.ProductID] = product
		}

		view := models.PurchaseView{
			Purchase:        p,
			ReturnRequested: requested[p.ID],
		}
		view.Returnable = !view.ReturnRequested && e.policy.Returnable(p, now)
		if product != nil {
			view.ProductName = product.Name
			view.Price = product.Price
		}
		views = append(views, view)
	}
	return views, nil
}

// ListPendingReturns retourne les demandes en attente avec leur contexte
func (e *Engine) ListPendingReturns(ctx context.Context, actor *models.User) ([]models.ReturnDetail, error) {
	if !isStaff(actor) {
		return nil, ErrPermissionDenied
	}
	returns, err := e.store.ListReturns(ctx)
	if err != nil {
		return nil, err
	}

	details := make([]models.ReturnDetail, 0, len(returns))
	for _, r := range returns {
		detail := models.ReturnDetail{Return: r}
		purchase, err := optional(e.store.GetPurchase(ctx, r.PurchaseID))
		if err != nil {
			return nil, err
		}
		if purchase == nil {
			utils.Log.Warnf("⚠️ Retour %s sans achat %s", r.ID, r.PurchaseID)
			details = append(details, detail)
			continue
		}
		detail.Purchase = *purchase
		if product, err := optional(e.store.GetProduct(ctx, purchase.ProductID)); err == nil && product != nil {
			detail.ProductName = product.Name
			detail.RefundAmount = product.Total(purchase.Quantity)
		}
		if user, err := optional(e.store.GetUser(ctx, purchase.UserID)); err == nil && user != nil {
			detail.Username = user.Username
		}
		details = append(details, detail)
	}
	return details, nil
}

func (e *Engine) StockMovements(ctx context.Context, actor *models.User, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if !isStaff(actor) {
		return nil, ErrPermissionDenied
	}
	return e.store.ListStockMovements(ctx, productID, limit)
}

func isStaff(u *models.User) bool {
	return u != nil && u.IsStaff
}

// optional transforme store.ErrNotFound en pointeur nil
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
