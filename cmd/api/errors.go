package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frescora/pedidos-api/internal/cart"
	"github.com/frescora/pedidos-api/internal/catalog"
	"github.com/frescora/pedidos-api/internal/delivery"
	"github.com/frescora/pedidos-api/internal/order"
	"github.com/frescora/pedidos-api/internal/payment"
	"github.com/frescora/pedidos-api/internal/stock"
)

var notFoundErrs = []error{
	catalog.ErrProductNotFound,
	catalog.ErrComboNotFound,
	catalog.ErrPriceListNotFound,
	catalog.ErrNoCurrentPrice,
	cart.ErrCartNotFound,
	cart.ErrItemNotFound,
	order.ErrNotFound,
	delivery.ErrSlotNotFound,
	payment.ErrEventNotFound,
}

var conflictErrs = []error{
	order.ErrTransition,
	stock.ErrInsufficientStock,
	delivery.ErrSlotFull,
	payment.ErrAlreadyApproved,
}

var badRequestErrs = []error{
	catalog.ErrQuantity,
	catalog.ErrValidWindow,
	cart.ErrLineRef,
	cart.ErrComboMinQty,
	delivery.ErrBadDate,
	delivery.ErrUnknownDay,
	delivery.ErrEmptyTemplate,
	order.ErrNoItems,
	order.ErrItemRef,
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// writeError maps domain errors onto HTTP statuses. Unclassified
// errors are internal and not leaked to the client.
func writeError(c *gin.Context, err error) {
	switch {
	case matchesAny(err, notFoundErrs):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case matchesAny(err, conflictErrs):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case matchesAny(err, badRequestErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[http] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
