// Package workflow is the approval state machine for relief requests.
// Approval transitions are one-way: an approved or rejected request is
// never un-decided, corrections require a new request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relieflink-backend/internal/distribution"
	"relieflink-backend/internal/events"
	"relieflink-backend/internal/matching"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Engine struct {
	store   store.Store
	matcher *matching.Engine
	tracker *distribution.Tracker
	bus     *events.Bus
	log     *logrus.Entry
}

func NewEngine(s store.Store, matcher *matching.Engine, tracker *distribution.Tracker, bus *events.Bus) *Engine {
	return &Engine{
		store:   s,
		matcher: matcher,
		tracker: tracker,
		bus:     bus,
		log:     logrus.WithField("component", "workflow"),
	}
}

// Approve moves a pending request to da_phe_duyet and runs exactly one
// matching attempt. The approval write is guarded on cho_phe_duyet, so of
// two concurrent approvals one wins and the other gets StateConflictError;
// only the winner reaches the matcher.
func (e *Engine) Approve(ctx context.Context, requestID, adminID primitive.ObjectID) (*models.ReliefRequest, error) {
	request, err := e.store.ApproveRequest(ctx, requestID, store.ApprovalDecision{
		ApproverID: adminID,
		DecidedAt:  time.Now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, relieferr.NewStateConflict("relief request", requestID,
				models.ApprovalPending, "")
		}
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"request_id": requestID.Hex(),
		"admin_id":   adminID.Hex(),
	}).Info("request approved")

	e.bus.Publish(events.Event{
		Type:    events.TypeRequestApproved,
		ActorID: &adminID,
		Request: request,
	})

	matched, err := e.runMatching(ctx, request, adminID)
	if err != nil {
		// The approval itself committed; matching can be retried by an
		// admin. Surface the request state, log the failure.
		e.log.WithError(err).WithField("request_id", requestID.Hex()).
			Error("matching failed after approval")
		return request, nil
	}
	return matched, nil
}

// Reject moves a pending request to tu_choi. The reason is mandatory.
func (e *Engine) Reject(ctx context.Context, requestID, adminID primitive.ObjectID, reason string) (*models.ReliefRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, relieferr.NewValidation("ly_do_tu_choi", "rejection reason is required")
	}

	request, err := e.store.RejectRequest(ctx, requestID, store.ApprovalDecision{
		ApproverID: adminID,
		DecidedAt:  time.Now(),
		Reason:     reason,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, relieferr.NewStateConflict("relief request", requestID,
				models.ApprovalPending, "")
		}
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"request_id": requestID.Hex(),
		"admin_id":   adminID.Hex(),
	}).Info("request rejected")

	e.bus.Publish(events.Event{
		Type:    events.TypeRequestRejected,
		ActorID: &adminID,
		Request: request,
	})
	return request, nil
}

// Cancel aborts a non-terminal request and releases anything it reserved:
// active distributions are cancelled, which restores their allocations, and
// a match that never produced a distribution is cleared so the resource
// stops being held for a dead request.
func (e *Engine) Cancel(ctx context.Context, requestID primitive.ObjectID, actorID *primitive.ObjectID) (*models.ReliefRequest, error) {
	request, err := e.store.CancelRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, relieferr.NewStateConflict("relief request", requestID,
				"non-terminal status", "")
		}
		return nil, err
	}

	if err := e.tracker.CancelActive(ctx, requestID); err != nil {
		e.log.WithError(err).WithField("request_id", requestID.Hex()).
			Error("failed to release distributions on cancel")
	}

	// Cancelling a distribution above already resets the matching columns;
	// this covers the matched-but-never-distributed case. A chua_match
	// request fails the reset guard, which is fine.
	if released, err := e.store.ResetRequestMatching(ctx, requestID); err == nil {
		request = released
	} else if !errors.Is(err, store.ErrConflict) {
		e.log.WithError(err).WithField("request_id", requestID.Hex()).
			Error("failed to release matching on cancel")
	}

	e.log.WithField("request_id", requestID.Hex()).Info("request cancelled")

	e.bus.Publish(events.Event{
		Type:    events.TypeRequestCancelled,
		ActorID: actorID,
		Request: request,
	})
	return request, nil
}

// Rematch retries matching after an explicit khong_match, or after a
// cancelled distribution already reset the request to chua_match. A request
// that is currently matched cannot be re-matched.
func (e *Engine) Rematch(ctx context.Context, requestID, adminID primitive.ObjectID) (*models.ReliefRequest, error) {
	request, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsApproved() {
		return nil, relieferr.NewStateConflict("relief request", requestID,
			models.ApprovalApproved, request.ApprovalStatus)
	}
	if request.IsTerminal() {
		return nil, relieferr.NewStateConflict("relief request", requestID,
			models.RequestStatusInProgress, request.Status)
	}

	switch request.MatchingStatus {
	case models.MatchingMatched:
		return nil, relieferr.NewStateConflict("relief request", requestID,
			models.MatchingUnmatched, models.MatchingMatched)
	case models.MatchingNoMatch:
		request, err = e.store.ResetRequestMatching(ctx, requestID)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, relieferr.NewStateConflict("relief request", requestID,
					models.MatchingNoMatch, "")
			}
			return nil, err
		}
	}

	return e.runMatching(ctx, request, adminID)
}

// runMatching executes one matching attempt and publishes the outcome.
func (e *Engine) runMatching(ctx context.Context, request *models.ReliefRequest, actorID primitive.ObjectID) (*models.ReliefRequest, error) {
	result, err := e.matcher.Match(ctx, request)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.GetRequest(ctx, request.ID)
	if err != nil {
		return nil, fmt.Errorf("reload request after matching: %w", err)
	}

	eventType := events.TypeRequestNoMatch
	if result.Matched {
		eventType = events.TypeRequestMatched
	}
	e.bus.Publish(events.Event{
		Type:    eventType,
		ActorID: &actorID,
		Request: updated,
	})
	return updated, nil
}
