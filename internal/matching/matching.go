// Package matching pairs an approved relief request with the nearest
// compatible, available resource. Matching never touches inventory: the
// decrement happens only when a distribution is created, so a speculative
// match cannot starve other requests.
package matching

import (
	"context"
	"errors"
	"fmt"

	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"
	"relieflink-backend/internal/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result describes one matching attempt. When Matched is false the request
// was moved to khong_match.
type Result struct {
	Matched    bool
	ResourceID primitive.ObjectID
	CenterID   primitive.ObjectID
	Distance   float64
}

type Engine struct {
	store store.Store
	log   *logrus.Entry
}

func NewEngine(s store.Store) *Engine {
	return &Engine{
		store: s,
		log:   logrus.WithField("component", "matching"),
	}
}

// Match runs one matching attempt for the request. Preconditions: approval
// status da_phe_duyet and matching status chua_match; anything else is a
// StateConflictError. The winning candidate minimizes haversine distance to
// the owning center, tie-broken by larger remaining quantity, then lowest
// resource id for determinism. The final write is guarded on chua_match, so
// two concurrent attempts cannot both apply.
func (e *Engine) Match(ctx context.Context, request *models.ReliefRequest) (*Result, error) {
	if !request.IsApproved() {
		return nil, relieferr.NewStateConflict("relief request", request.ID,
			models.ApprovalApproved, request.ApprovalStatus)
	}
	if request.MatchingStatus != models.MatchingUnmatched {
		return nil, relieferr.NewStateConflict("relief request", request.ID,
			models.MatchingUnmatched, request.MatchingStatus)
	}

	best, err := e.selectCandidate(ctx, request)
	if err != nil {
		return nil, err
	}

	if best == nil {
		if _, err := e.store.SetRequestNoMatch(ctx, request.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, relieferr.NewStateConflict("relief request", request.ID,
					models.MatchingUnmatched, "")
			}
			return nil, fmt.Errorf("record no-match: %w", err)
		}
		e.log.WithFields(logrus.Fields{
			"request_id":   request.ID.Hex(),
			"request_type": request.RequestType,
		}).Info("no compatible resource available")
		return &Result{Matched: false}, nil
	}

	if _, err := e.store.SetRequestMatched(ctx, request.ID, best.ResourceID, best.Distance); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, relieferr.NewStateConflict("relief request", request.ID,
				models.MatchingUnmatched, "")
		}
		return nil, fmt.Errorf("record match: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"request_id":  request.ID.Hex(),
		"resource_id": best.ResourceID.Hex(),
		"distance_km": best.Distance,
	}).Info("request matched")
	return best, nil
}

// selectCandidate scans ready resources and picks the best compatible one.
func (e *Engine) selectCandidate(ctx context.Context, request *models.ReliefRequest) (*Result, error) {
	resources, err := e.store.ListReadyResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ready resources: %w", err)
	}
	centers, err := e.store.ListCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	centersByID := make(map[primitive.ObjectID]models.ReliefCenter, len(centers))
	for _, center := range centers {
		centersByID[center.ID] = center
	}

	var best *Result
	var bestQuantity int64
	for _, resource := range resources {
		if !IsCompatible(request.RequestType, resource.Category) {
			continue
		}
		center, exists := centersByID[resource.CenterID]
		if !exists {
			e.log.WithField("resource_id", resource.ID.Hex()).Warn("resource references unknown center")
			continue
		}

		distance := utils.CalculateDistance(request.Location, center.Location)
		if best == nil || better(distance, resource, best.Distance, bestQuantity, best.ResourceID) {
			best = &Result{
				Matched:    true,
				ResourceID: resource.ID,
				CenterID:   center.ID,
				Distance:   distance,
			}
			bestQuantity = resource.Quantity
		}
	}
	return best, nil
}

// better decides whether the candidate beats the incumbent: closer wins,
// then larger remaining quantity, then lowest id.
func better(distance float64, candidate models.Resource, bestDistance float64, bestQuantity int64, bestID primitive.ObjectID) bool {
	if distance != bestDistance {
		return distance < bestDistance
	}
	if candidate.Quantity != bestQuantity {
		return candidate.Quantity > bestQuantity
	}
	return candidate.ID.Hex() < bestID.Hex()
}
