package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/frescora/pedidos-api/internal/catalog"
)

func listPriceListsHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := repo.ListPriceLists(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func createPriceListHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Name     string `json:"name" binding:"required"`
			Currency string `json:"currency"`
			Priority int    `json:"priority"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		pl := &catalog.PriceList{
			ID:       uuid.NewString(),
			Name:     in.Name,
			Currency: in.Currency,
			Priority: in.Priority,
			Active:   true,
		}
		if err := repo.CreatePriceList(c.Request.Context(), pl); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, pl)
	}
}

func updatePriceListHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		pl, err := repo.GetPriceList(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		var in struct {
			Name     *string `json:"name"`
			Currency *string `json:"currency"`
			Priority *int    `json:"priority"`
			Active   *bool   `json:"active"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if in.Name != nil {
			pl.Name = *in.Name
		}
		if in.Currency != nil {
			pl.Currency = *in.Currency
		}
		if in.Priority != nil {
			pl.Priority = *in.Priority
		}
		if in.Active != nil {
			pl.Active = *in.Active
		}
		if err := repo.UpdatePriceList(c.Request.Context(), pl); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, pl)
	}
}

func deletePriceListHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := repo.DeletePriceList(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func setPriceHandler(resolver *catalog.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.SetPriceInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := resolver.SetPrice(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func setPricesBulkHandler(resolver *catalog.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Items []catalog.SetPriceInput `json:"items" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil || len(in.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "items are required"})
			return
		}
		out, err := resolver.SetPrices(c.Request.Context(), in.Items)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"items": out})
	}
}

func listProductPricesHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := repo.ListPricesForProduct(c.Request.Context(), c.Param("productId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}
