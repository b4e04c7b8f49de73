package shop

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Name:      "transitions_total",
		Help:      "Transitions achat/retour par opération et résultat.",
	}, []string{"operation", "result"})

	walletUnitsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Name:      "wallet_units_total",
		Help:      "Unités de portefeuille débitées (purchase) ou recréditées (refund).",
	}, []string{"direction"})
)

func observe(operation string, err error) {
	transitionsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "rejected"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrAlreadyRequested),
		errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrInvalidCredentials):
		return "rejected"
	default:
		return "error"
	}
}
