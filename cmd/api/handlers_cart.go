package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/cart"
)

func createCartHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cart.CreateCartInput
		if err := c.ShouldBindJSON(&in); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := carts.CreateCart(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func getCartHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := carts.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func addCartItemHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cart.AddItemInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := carts.AddItem(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func updateCartItemHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Qty decimal.Decimal `json:"qty"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := carts.UpdateItem(c.Request.Context(), c.Param("id"), in.Qty)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func removeCartItemHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := carts.RemoveItem(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
