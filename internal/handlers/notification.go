// internal/handlers/notification.go

package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"relieflink-backend/internal/events"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/store"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	store store.Store
	bus   *events.Bus
}

type EmergencyBroadcastRequest struct {
	Area    string `json:"khu_vuc" binding:"required,min=2,max=200"`
	Message string `json:"noi_dung" binding:"required,min=5,max=1000"`
}

func NewNotificationHandler(s store.Store, bus *events.Bus) *NotificationHandler {
	return &NotificationHandler{
		store: s,
		bus:   bus,
	}
}

type notificationView struct {
	models.Notification
	TypeDisplay string `json:"loai_hien_thi"`
}

// List returns the authenticated user's notifications, newest first
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit := parseIntQuery(c, "limit", 50)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notifications, err := h.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	unreadCount, err := h.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]notificationView, 0, len(notifications))
	for _, notification := range notifications {
		views = append(views, notificationView{
			Notification: notification,
			TypeDisplay:  models.GetNotificationTypeTranslation(notification.Type),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": views,
		"unread_count":  unreadCount,
	})
}

// MarkRead marks one notification of the authenticated user as read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.store.MarkNotificationRead(ctx, id, userID, time.Now()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// Emergency broadcasts an urgent message to every citizen and
// volunteer registered in the named area
func (h *NotificationHandler) Emergency(c *gin.Context) {
	var req EmergencyBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	area := strings.TrimSpace(req.Area)
	recipients, err := h.store.ListUsersInArea(ctx, area)
	if err != nil {
		respondError(c, err)
		return
	}

	// The sender and fellow admins do not need the alert back
	targets := make([]models.User, 0, len(recipients))
	for _, user := range recipients {
		if user.IsAdmin() {
			continue
		}
		targets = append(targets, user)
	}

	h.bus.Publish(events.Event{
		Type:       events.TypeEmergency,
		At:         time.Now(),
		ActorID:    &adminID,
		Area:       area,
		Message:    req.Message,
		Recipients: targets,
	})

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Emergency broadcast queued",
		"recipients": len(targets),
	})
}
