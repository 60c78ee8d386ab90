// internal/handlers/respond.go

package handlers

import (
	"errors"
	"net/http"

	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondError translates domain errors into the HTTP surface. Anything
// not recognized is a 500 and gets logged with its cause.
func respondError(c *gin.Context, err error) {
	var validation *relieferr.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Error(),
			"field": validation.Field,
		})
		return
	}

	var conflict *relieferr.StateConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error": conflict.Error(),
		})
		return
	}

	var exhausted *relieferr.ResourceExhaustionError
	if errors.As(err, &exhausted) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     exhausted.Error(),
			"available": exhausted.Available,
		})
		return
	}

	var integrity *relieferr.IntegrityError
	if errors.As(err, &integrity) {
		// A broken audit chain is an operational incident, log it loud
		logrus.WithError(err).Error("audit chain integrity failure")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": integrity.Error(),
		})
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Not found",
		})
		return
	}

	logrus.WithError(err).Error("unhandled error in request handler")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
	})
}

// parseObjectID reads a path parameter as an ObjectID and writes the 400
// itself on failure. The bool tells the caller whether to continue.
func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + param,
		})
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUserID reads the authenticated user id placed by the auth
// middleware.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return primitive.NilObjectID, false
	}
	return value.(primitive.ObjectID), true
}
