package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/example/parfum-commerce/internal/domain/analytics"
	"github.com/example/parfum-commerce/internal/domain/cart"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/product"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/domain/recovery"
)

var errBadRequest = errors.New("invalid request body")

// statusByError is checked in order; the first match wins
var statusByError = []struct {
	err    error
	status int
}{
	{inventory.ErrInsufficientStock, http.StatusConflict},
	{promotion.ErrPromoInvalid, http.StatusUnprocessableEntity},
	{order.ErrInvalidTransition, http.StatusConflict},

	{product.ErrProductNotFound, http.StatusNotFound},
	{order.ErrOrderNotFound, http.StatusNotFound},
	{inventory.ErrNotFound, http.StatusNotFound},
	{recovery.ErrNotFound, http.StatusNotFound},
	{analytics.ErrSessionNotFound, http.StatusNotFound},
	{analytics.ErrSessionEnded, http.StatusConflict},

	{inventory.ErrAlreadyExists, http.StatusConflict},
	{promotion.ErrAlreadyExists, http.StatusConflict},
	{recovery.ErrAlreadyRecovered, http.StatusConflict},

	{errBadRequest, http.StatusBadRequest},
	{inventory.ErrInvalidQuantity, http.StatusBadRequest},
	{inventory.ErrNegativeStock, http.StatusBadRequest},
	{inventory.ErrInvalidVelocity, http.StatusBadRequest},
	{inventory.ErrInvalidProduct, http.StatusBadRequest},
	{promotion.ErrInvalidCode, http.StatusBadRequest},
	{promotion.ErrInvalidPercent, http.StatusBadRequest},
	{promotion.ErrInvalidLimit, http.StatusBadRequest},
	{order.ErrEmptyOrder, http.StatusBadRequest},
	{order.ErrInvalidItem, http.StatusBadRequest},
	{order.ErrInvalidStatus, http.StatusBadRequest},
	{product.ErrInvalidName, http.StatusBadRequest},
	{product.ErrInvalidPrice, http.StatusBadRequest},
	{product.ErrInvalidVolume, http.StatusBadRequest},
	{cart.ErrInvalidProduct, http.StatusBadRequest},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{cart.ErrInvalidPrice, http.StatusBadRequest},
	{cart.ErrEmptyCart, http.StatusBadRequest},
	{analytics.ErrInvalidPath, http.StatusBadRequest},
	{analytics.ErrInvalidProduct, http.StatusBadRequest},
}

func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondError maps a domain error to its HTTP status. Unknown errors are
// logged and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", r.Method, r.URL.Path, err)
		message = "internal error"
	}
	respondJSON(w, status, map[string]string{"error": message})
}
