// internal/handlers/distribution.go

package handlers

import (
	"context"
	"net/http"
	"time"

	"relieflink-backend/internal/distribution"
	"relieflink-backend/internal/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DistributionHandler struct {
	store   store.Store
	tracker *distribution.Tracker
}

type CreateDistributionRequest struct {
	RequestID string `json:"id_yeu_cau" binding:"required"`
	Quantity  int64  `json:"so_luong" binding:"required,min=1"`
}

type AdvanceDistributionRequest struct {
	Status string `json:"trang_thai" binding:"required"`
}

func NewDistributionHandler(s store.Store, tracker *distribution.Tracker) *DistributionHandler {
	return &DistributionHandler{
		store:   s,
		tracker: tracker,
	}
}

// Create starts a distribution for a matched request. The authenticated
// volunteer takes responsibility for the delivery.
func (h *DistributionHandler) Create(c *gin.Context) {
	var req CreateDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	requestID, err := primitive.ObjectIDFromHex(req.RequestID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid id_yeu_cau",
		})
		return
	}

	volunteerID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dist, err := h.tracker.Create(ctx, distribution.CreateParams{
		RequestID:   requestID,
		VolunteerID: volunteerID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"distribution": dist})
}

// Advance moves a distribution along its lifecycle
func (h *DistributionHandler) Advance(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var req AdvanceDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dist, err := h.tracker.Advance(ctx, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distribution": dist})
}

// Get returns a single distribution
func (h *DistributionHandler) Get(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dist, err := h.store.GetDistribution(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distribution": dist})
}

// ListByRequest returns every distribution attempt for a request,
// newest first
func (h *DistributionHandler) ListByRequest(c *gin.Context) {
	requestID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	distributions, err := h.store.ListDistributionsByRequest(ctx, requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distributions": distributions})
}
