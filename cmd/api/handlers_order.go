package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frescora/pedidos-api/internal/order"
)

func createOrderHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := orders.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func getOrderHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := orders.GetByNumber(c.Request.Context(), c.Param("number"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func listOrdersHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		f := order.ListFilter{
			Status: order.Status(c.Query("status")),
			Query:  c.Query("q"),
			Limit:  limit,
			Offset: offset,
		}
		items, total, err := orders.List(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
	}
}

func updateOrderStatusHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Status string  `json:"status" binding:"required"`
			Note   *string `json:"note"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		out, err := orders.Transition(c.Request.Context(), c.Param("number"), order.Status(in.Status), in.Note)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func assignDriverHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.AssignDriverInput
		if err := c.ShouldBindJSON(&in); err != nil || in.DriverName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "driverName is required"})
			return
		}
		out, err := orders.AssignDriver(c.Request.Context(), c.Param("number"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func markDeliveredHandler(orders *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			ProofURL *string `json:"proofUrl"`
		}
		if err := c.ShouldBindJSON(&in); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := orders.MarkDelivered(c.Request.Context(), c.Param("number"), in.ProofURL)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
