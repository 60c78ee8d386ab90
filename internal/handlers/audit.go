// internal/handlers/audit.go

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"relieflink-backend/internal/audit"
	"relieflink-backend/internal/relieferr"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditHandler struct {
	ledger *audit.Ledger
}

func NewAuditHandler(ledger *audit.Ledger) *AuditHandler {
	return &AuditHandler{ledger: ledger}
}

// chainID resolves the chain path parameter. The literal "requests"
// selects the shared request-level chain.
func chainID(c *gin.Context) (primitive.ObjectID, bool) {
	raw := c.Param("chain")
	if raw == "requests" {
		return audit.RequestChainID, true
	}

	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid chain id",
		})
		return primitive.NilObjectID, false
	}
	return id, true
}

// List returns the entries of one audit chain in insertion order
func (h *AuditHandler) List(c *gin.Context) {
	id, ok := chainID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := h.ledger.Entries(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Verify recomputes the fingerprints of a chain and reports the first
// broken link, if any
func (h *AuditHandler) Verify(c *gin.Context) {
	id, ok := chainID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := h.ledger.Verify(ctx, id)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	var integrity *relieferr.IntegrityError
	if errors.As(err, &integrity) {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"index": integrity.Index,
			"error": integrity.Error(),
		})
		return
	}

	respondError(c, err)
}
