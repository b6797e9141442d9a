package main

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frescora/pedidos-api/internal/payment"
)

func createCheckoutHandler(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			OrderNumber string `json:"orderNumber" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orderNumber is required"})
			return
		}
		pref, err := payments.CreateCheckout(c.Request.Context(), in.OrderNumber)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"preferenceId": pref.ID,
			"initPoint":    pref.InitPoint,
		})
	}
}

// webhookHandler always answers 200 so the provider stops redelivering;
// failures are dead-lettered inside the service.
func webhookHandler(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		in := payment.WebhookInput{
			XEventID: c.GetHeader("x-id"),
			Type:     c.Query("type"),
			DataID:   c.Query("data.id"),
			Body:     body,
		}
		if in.Type == "" {
			in.Type = c.Query("topic")
		}
		if in.DataID == "" {
			in.DataID = c.Query("id")
		}
		if err := payments.HandleWebhook(c.Request.Context(), in); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func listPaymentsHandler(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		out, err := payments.List(c.Request.Context(), limit, offset)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func orderPaymentsHandler(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := payments.ForOrder(c.Request.Context(), c.Param("number"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func manualPaymentHandler(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in payment.ManualUpdateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := payments.ManualUpdate(c.Request.Context(), c.Param("number"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deadLettersHandler(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := payments.DeadLetters(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}
