// Package distribution tracks the physical handoff of a matched resource to
// a request. Creating a distribution is the only operation that decrements
// inventory; cancelling one before completion restores exactly what it took
// and reopens the request for matching.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relieflink-backend/internal/events"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Tracker struct {
	store store.Store
	bus   *events.Bus
	log   *logrus.Entry
}

func NewTracker(s store.Store, bus *events.Bus) *Tracker {
	return &Tracker{
		store: s,
		bus:   bus,
		log:   logrus.WithField("component", "distribution"),
	}
}

// CreateParams carries the explicit allocation decision. Quantity is never
// implied: the caller states how much of the matched resource this
// distribution takes.
type CreateParams struct {
	RequestID   primitive.ObjectID
	VolunteerID primitive.ObjectID
	Quantity    int64
}

// Create starts a distribution for a matched request. The quantity check
// and decrement are a single guarded store operation, so two concurrent
// creations against the same resource cannot over-allocate; the loser gets
// ResourceExhaustionError and the request stays matched for a retry or an
// admin re-match.
func (t *Tracker) Create(ctx context.Context, params CreateParams) (*models.Distribution, error) {
	if params.Quantity < 1 {
		return nil, relieferr.NewValidation("so_luong", "allocation quantity must be positive")
	}

	request, err := t.store.GetRequest(ctx, params.RequestID)
	if err != nil {
		return nil, err
	}
	if request.IsTerminal() {
		return nil, relieferr.NewStateConflict("relief request", request.ID,
			models.RequestStatusInProgress, request.Status)
	}
	if !request.IsMatched() || request.MatchedResourceID == nil {
		return nil, relieferr.NewStateConflict("relief request", request.ID,
			models.MatchingMatched, request.MatchingStatus)
	}

	volunteer, err := t.store.GetUser(ctx, params.VolunteerID)
	if err != nil {
		return nil, err
	}
	if !volunteer.IsVolunteer() {
		return nil, relieferr.NewValidation("id_tinh_nguyen_vien", "assignee must be a volunteer")
	}

	active, err := t.store.HasActiveDistribution(ctx, params.RequestID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, relieferr.NewStateConflict("relief request", request.ID,
			"no active distribution", "active distribution exists")
	}

	resourceID := *request.MatchedResourceID
	resource, err := t.store.AllocateResource(ctx, resourceID, params.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrExhausted):
			available := int64(0)
			if current, getErr := t.store.GetResource(ctx, resourceID); getErr == nil {
				available = current.Quantity
			}
			return nil, &relieferr.ResourceExhaustionError{
				ResourceID: resourceID,
				Requested:  params.Quantity,
				Available:  available,
			}
		case errors.Is(err, store.ErrConflict):
			return nil, relieferr.NewStateConflict("resource", resourceID,
				models.ResourceStatusReady, "")
		default:
			return nil, err
		}
	}

	now := time.Now()
	distribution := &models.Distribution{
		RequestID:       params.RequestID,
		ResourceID:      resourceID,
		VolunteerID:     params.VolunteerID,
		Quantity:        params.Quantity,
		Status:          models.DistributionStatusPreparing,
		TransactionCode: uuid.New().String(),
		DispatchedAt:    now,
	}
	if err := t.store.CreateDistribution(ctx, distribution); err != nil {
		// Undo the decrement so the failed insert does not leak stock.
		if _, restoreErr := t.store.RestoreResource(ctx, resourceID, params.Quantity); restoreErr != nil {
			t.log.WithError(restoreErr).WithField("resource_id", resourceID.Hex()).
				Error("failed to restore allocation after insert failure")
		}
		return nil, err
	}

	t.log.WithFields(logrus.Fields{
		"distribution_id": distribution.ID.Hex(),
		"request_id":      params.RequestID.Hex(),
		"resource_id":     resourceID.Hex(),
		"quantity":        params.Quantity,
	}).Info("distribution created")

	t.bus.Publish(events.Event{
		Type:         events.TypeDistributionCreated,
		Request:      request,
		Distribution: distribution,
		Resource:     resource,
	})
	if resource.IsLowStock() {
		t.bus.Publish(events.Event{
			Type:     events.TypeResourceLowStock,
			Resource: resource,
		})
	}
	return distribution, nil
}

// Advance moves a distribution along its lifecycle. The store write is
// guarded on the observed current status, so concurrent transition attempts
// cannot both apply: the loser fails with StateConflictError and must
// re-fetch. Completion stamps the delivery time and completes the request;
// cancellation restores the decremented quantity and resets the request's
// matching status so re-matching can occur.
func (t *Tracker) Advance(ctx context.Context, id primitive.ObjectID, newStatus string) (*models.Distribution, error) {
	if !models.IsValidDistributionStatus(newStatus) {
		return nil, relieferr.NewValidation("trang_thai", fmt.Sprintf("unknown distribution status %q", newStatus))
	}

	distribution, err := t.store.GetDistribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if !distribution.CanAdvanceTo(newStatus) {
		return nil, relieferr.NewStateConflict("distribution", id, newStatus, distribution.Status)
	}

	var deliveredAt *time.Time
	if newStatus == models.DistributionStatusCompleted {
		now := time.Now()
		deliveredAt = &now
	}

	updated, err := t.store.AdvanceDistribution(ctx, id, distribution.Status, newStatus, deliveredAt)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, relieferr.NewStateConflict("distribution", id, distribution.Status, "")
		}
		return nil, err
	}

	switch newStatus {
	case models.DistributionStatusCompleted:
		t.afterCompleted(ctx, updated)
	case models.DistributionStatusCancelled:
		t.afterCancelled(ctx, updated)
	}

	request, err := t.store.GetRequest(ctx, updated.RequestID)
	if err != nil {
		return nil, err
	}

	t.log.WithFields(logrus.Fields{
		"distribution_id": id.Hex(),
		"status":          newStatus,
	}).Info("distribution advanced")

	t.bus.Publish(events.Event{
		Type:         events.TypeDistributionAdvanced,
		Request:      request,
		Distribution: updated,
	})
	return updated, nil
}

// CancelActive cancels every active distribution of a request. Used when
// the request itself is cancelled, to release reserved resources.
func (t *Tracker) CancelActive(ctx context.Context, requestID primitive.ObjectID) error {
	distributions, err := t.store.ListDistributionsByRequest(ctx, requestID)
	if err != nil {
		return err
	}
	for _, d := range distributions {
		if !d.IsActive() {
			continue
		}
		if _, err := t.Advance(ctx, d.ID, models.DistributionStatusCancelled); err != nil {
			var conflict *relieferr.StateConflictError
			if errors.As(err, &conflict) {
				continue // someone else finished it first
			}
			return err
		}
	}
	return nil
}

func (t *Tracker) afterCompleted(ctx context.Context, distribution *models.Distribution) {
	if _, err := t.store.CompleteRequest(ctx, distribution.RequestID); err != nil &&
		!errors.Is(err, store.ErrConflict) {
		t.log.WithError(err).WithField("request_id", distribution.RequestID.Hex()).
			Error("failed to complete request after delivery")
	}
}

func (t *Tracker) afterCancelled(ctx context.Context, distribution *models.Distribution) {
	if _, err := t.store.RestoreResource(ctx, distribution.ResourceID, distribution.Quantity); err != nil {
		t.log.WithError(err).WithField("resource_id", distribution.ResourceID.Hex()).
			Error("failed to restore quantity after cancellation")
	}
	if _, err := t.store.ResetRequestMatching(ctx, distribution.RequestID); err != nil &&
		!errors.Is(err, store.ErrConflict) {
		t.log.WithError(err).WithField("request_id", distribution.RequestID.Hex()).
			Error("failed to reset matching after cancellation")
	}
}
