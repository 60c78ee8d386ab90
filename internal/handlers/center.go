// internal/handlers/center.go

package handlers

import (
	"context"
	"net/http"
	"time"

	"relieflink-backend/internal/models"
	"relieflink-backend/internal/store"
	"relieflink-backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

type CenterHandler struct {
	store store.Store
}

type CreateCenterRequest struct {
	Name     string             `json:"ten_trung_tam" binding:"required,min=3,max=200"`
	Address  string             `json:"dia_chi" binding:"required,min=5,max=500"`
	Location models.Coordinates `json:"location" binding:"required"`
	Manager  string             `json:"nguoi_quan_ly" binding:"required,min=2,max=100"`
	Contact  string             `json:"so_lien_he" binding:"required"`
}

type CreateResourceRequest struct {
	Name        string `json:"ten_nguon_luc" binding:"required,min=2,max=200"`
	Category    string `json:"loai" binding:"required" validate:"resource_category"`
	Quantity    int64  `json:"so_luong" binding:"required,min=0"`
	Unit        string `json:"don_vi" binding:"required"`
	MinQuantity int64  `json:"so_luong_toi_thieu" binding:"min=0"`
}

func NewCenterHandler(s store.Store) *CenterHandler {
	return &CenterHandler{store: s}
}

// CreateCenter registers a relief center
func (h *CenterHandler) CreateCenter(c *gin.Context) {
	var req CreateCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	center := models.ReliefCenter{
		Name:      req.Name,
		Address:   req.Address,
		Location:  req.Location,
		Manager:   req.Manager,
		Contact:   req.Contact,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateCenter(ctx, &center); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"center": center})
}

// ListCenters returns all relief centers
func (h *CenterHandler) ListCenters(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	centers, err := h.store.ListCenters(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"centers": centers})
}

// GetCenter returns one center
func (h *CenterHandler) GetCenter(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	center, err := h.store.GetCenter(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"center": center})
}

// CreateResource adds stock to a center
func (h *CenterHandler) CreateResource(c *gin.Context) {
	centerID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var req CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if err := validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Center must exist before stock is attached to it
	if _, err := h.store.GetCenter(ctx, centerID); err != nil {
		respondError(c, err)
		return
	}

	status := models.ResourceStatusReady
	if req.Quantity == 0 {
		status = models.ResourceStatusOutOfStock
	}

	now := time.Now()
	resource := models.Resource{
		CenterID:    centerID,
		Name:        req.Name,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		MinQuantity: req.MinQuantity,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateResource(ctx, &resource); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"resource": resource})
}

// ListResources returns the stock of a center
func (h *CenterHandler) ListResources(c *gin.Context) {
	centerID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resources, err := h.store.ListResourcesByCenter(ctx, centerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resources": resources})
}
