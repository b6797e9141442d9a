package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/stock"
)

func listStockHandler(ledger stock.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var warehouseID *string
		if w := c.Query("warehouseId"); w != "" {
			warehouseID = &w
		}
		out, err := ledger.ListAvailable(c.Request.Context(), warehouseID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func getStockHandler(ledger stock.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var warehouseID *string
		if w := c.Query("warehouseId"); w != "" {
			warehouseID = &w
		}
		out, err := ledger.ForProduct(c.Request.Context(), c.Param("productId"), warehouseID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func addStockHandler(ledger stock.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Qty         decimal.Decimal `json:"qty"`
			WarehouseID *string         `json:"warehouseId"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if !in.Qty.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "qty must be positive"})
			return
		}
		out, err := ledger.Add(c.Request.Context(), c.Param("productId"), in.WarehouseID, in.Qty)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
