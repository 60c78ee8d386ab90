// internal/handlers/request.go

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"relieflink-backend/internal/events"
	"relieflink-backend/internal/matching"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/scoring"
	"relieflink-backend/internal/store"
	"relieflink-backend/internal/workflow"
	"relieflink-backend/pkg/geocode"
	"relieflink-backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RequestHandler struct {
	store    store.Store
	workflow *workflow.Engine
	geocoder geocode.Validator
	bus      *events.Bus
}

type CreateRequestRequest struct {
	RequestType string             `json:"loai_yeu_cau" binding:"required,min=3,max=200"`
	Description string             `json:"mo_ta" binding:"required,min=5,max=1000"`
	People      int                `json:"so_nguoi" binding:"required,min=1"`
	Urgency     string             `json:"do_uu_tien" binding:"required" validate:"urgency"`
	Location    models.Coordinates `json:"location" binding:"required"`
}

type RejectRequestRequest struct {
	Reason string `json:"ly_do_tu_choi" binding:"required,min=3,max=500"`
}

func NewRequestHandler(s store.Store, engine *workflow.Engine, geocoder geocode.Validator, bus *events.Bus) *RequestHandler {
	return &RequestHandler{
		store:    s,
		workflow: engine,
		geocoder: geocoder,
		bus:      bus,
	}
}

// Create accepts a relief request from an authenticated user or an
// anonymous submitter. The priority score is fixed at submission time.
func (h *RequestHandler) Create(c *gin.Context) {
	var req CreateRequestRequest
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

	if err := h.geocoder.Validate(ctx, req.Location); err != nil {
		respondError(c, err)
		return
	}

	// Anonymous submissions carry no user id
	var userID *primitive.ObjectID
	if value, exists := c.Get("user_id"); exists {
		id := value.(primitive.ObjectID)
		userID = &id
	}

	now := time.Now()
	request := models.ReliefRequest{
		UserID:         userID,
		RequestType:    req.RequestType,
		Description:    req.Description,
		People:         req.People,
		Urgency:        req.Urgency,
		Location:       req.Location,
		Status:         models.RequestStatusQueued,
		ApprovalStatus: models.ApprovalPending,
		MatchingStatus: models.MatchingUnmatched,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	request.PriorityScore = scoring.Score(&request, now)

	if err := h.store.CreateRequest(ctx, &request); err != nil {
		respondError(c, err)
		return
	}

	h.bus.Publish(events.Event{
		Type:    events.TypeRequestCreated,
		At:      now,
		ActorID: userID,
		Request: &request,
	})

	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// List returns requests matching the query filters. Admins see
// everything; other callers only their own.
func (h *RequestHandler) List(c *gin.Context) {
	filter := store.RequestFilter{
		Status:         c.Query("trang_thai"),
		ApprovalStatus: c.Query("trang_thai_phe_duyet"),
		MatchingStatus: c.Query("trang_thai_matching"),
		Urgency:        c.Query("do_uu_tien"),
		Page:           parseIntQuery(c, "page", 1),
		Limit:          parseIntQuery(c, "limit", 20),
	}

	role, _ := c.Get("user_role")
	if role != models.RoleAdmin {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		filter.UserID = &userID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	requests, err := h.store.ListRequests(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

// Get returns a single request
func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	request, err := h.store.GetRequest(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request":             request,
		"trang_thai_hien_thi": models.GetRequestStatusTranslation(request.Status),
		"phe_duyet_hien_thi":  models.GetApprovalStatusTranslation(request.ApprovalStatus),
	})
}

// Types lists the request types the matching taxonomy understands, for
// the submission form. Free-text types are still accepted, they just
// score the default weight and may end up khong_match.
func (h *RequestHandler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"loai_yeu_cau": matching.KnownRequestTypes()})
}

// Approve moves a pending request to approved and triggers matching
func (h *RequestHandler) Approve(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	request, err := h.workflow.Approve(ctx, id, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// Reject declines a pending request with a mandatory reason
func (h *RequestHandler) Reject(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RejectRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	request, err := h.workflow.Reject(ctx, id, adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// Cancel aborts a non-terminal request. Owners cancel their own,
// admins cancel anything.
func (h *RequestHandler) Cancel(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	role, _ := c.Get("user_role")
	if role != models.RoleAdmin {
		existing, err := h.store.GetRequest(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if existing.UserID == nil || *existing.UserID != actorID {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "You can only cancel your own requests",
			})
			return
		}
	}

	request, err := h.workflow.Cancel(ctx, id, &actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// Rematch re-runs matching for an approved request that has no active
// distribution
func (h *RequestHandler) Rematch(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	request, err := h.workflow.Rematch(ctx, id, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
