package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frescora/pedidos-api/internal/delivery"
)

func listSlotsHandler(slots *delivery.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
			return
		}
		out, err := slots.List(c.Request.Context(), date)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func createSlotHandler(slots *delivery.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in delivery.Slot
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		out, err := slots.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func upsertWeekdaySlotsHandler(slots *delivery.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Weekday string                 `json:"weekday" binding:"required"`
			Slots   []delivery.DayTemplate `json:"slots"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "weekday is required"})
			return
		}
		out, err := slots.UpsertWeekdaySlots(c.Request.Context(), in.Weekday, in.Slots)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func weekdaySlotsHandler(slots *delivery.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := slots.WeekdaySlots(c.Request.Context(), c.Param("weekday"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}
