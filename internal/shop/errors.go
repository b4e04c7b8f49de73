package shop

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("introuvable")
	ErrInsufficientStock = errors.New("stock insuffisant")
	ErrInsufficientFunds = errors.New("solde insuffisant")
	ErrExpiredWindow     = errors.New("délai de retour expiré")
	ErrPermissionDenied  = errors.New("permission refusée")
	ErrInvalidQuantity   = errors.New("quantité invalide")
	ErrAlreadyRequested  = errors.New("retour déjà demandé")

	ErrUsernameTaken      = errors.New("nom d'utilisateur déjà pris")
	ErrInvalidCredentials = errors.New("identifiants invalides")
	ErrInvalidProduct     = errors.New("produit invalide")
)

// Reason décrit un refus. Field vaut "" pour une erreur générale du formulaire.
type Reason struct {
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
	Message string `json:"message"`
}

// Result est le résultat d'une validation : OK si aucune raison.
type Result struct {
	Reasons []Reason
}

func (r *Result) add(field string, err error, message string) {
	r.Reasons = append(r.Reasons, Reason{Field: field, Err: err, Message: message})
}

func (r Result) OK() bool {
	return len(r.Reasons) == 0
}

// Err retourne nil si la validation est passée, sinon un *ValidationError.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Reasons: r.Reasons}
}

// ValidationError regroupe toutes les raisons d'un refus de transition.
// errors.Is fonctionne sur chacune des erreurs sentinelles contenues.
type ValidationError struct {
	Reasons []Reason
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		errs = append(errs, r.Err)
	}
	return errs
}

// Reasons extrait les raisons d'une erreur de transition, pour l'affichage.
// Une erreur qui n'est pas une ValidationError donne une raison générale.
func Reasons(err error) []Reason {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reasons
	}
	return []Reason{{Err: err, Message: Message(err)}}
}

// Message traduit une erreur en message affichable
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Élément introuvable"
	case errors.Is(err, ErrInsufficientStock):
		return "Pas assez de produits en stock"
	case errors.Is(err, ErrInsufficientFunds):
		return "Solde insuffisant"
	case errors.Is(err, ErrExpiredWindow):
		return "Le délai de retour a expiré"
	case errors.Is(err, ErrPermissionDenied):
		return "Permission refusée"
	case errors.Is(err, ErrInvalidQuantity):
		return "La quantité doit être supérieure à zéro"
	case errors.Is(err, ErrAlreadyRequested):
		return "Un retour a déjà été demandé pour cet achat"
	case errors.Is(err, ErrUsernameTaken):
		return "Ce nom d'utilisateur est déjà pris"
	case errors.Is(err, ErrInvalidCredentials):
		return "Nom d'utilisateur ou mot de passe incorrect"
	case errors.Is(err, ErrInvalidProduct):
		return "Produit invalide"
	default:
		return "Erreur interne, veuillez réessayer"
	}
}
