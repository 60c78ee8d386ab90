package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"relieflink-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-memory Store used by tests and local development.
// A single mutex serializes every operation, which trivially gives the same
// per-entity linearizability the Mongo implementation gets from guarded
// FindOneAndUpdate calls. All reads return copies.
type MemoryStore struct {
	mu sync.Mutex

	users         map[primitive.ObjectID]*models.User
	centers       map[primitive.ObjectID]*models.ReliefCenter
	resources     map[primitive.ObjectID]*models.Resource
	requests      map[primitive.ObjectID]*models.ReliefRequest
	distributions map[primitive.ObjectID]*models.Distribution
	notifications map[primitive.ObjectID]*models.Notification
	auditChains   map[primitive.ObjectID][]models.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[primitive.ObjectID]*models.User),
		centers:       make(map[primitive.ObjectID]*models.ReliefCenter),
		resources:     make(map[primitive.ObjectID]*models.Resource),
		requests:      make(map[primitive.ObjectID]*models.ReliefRequest),
		distributions: make(map[primitive.ObjectID]*models.Distribution),
		notifications: make(map[primitive.ObjectID]*models.Notification),
		auditChains:   make(map[primitive.ObjectID][]models.AuditEntry),
	}
}

// Users

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = primitive.NewObjectID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsersByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []models.User
	for _, user := range s.users {
		if user.Role == role && !user.IsBlocked {
			users = append(users, *user)
		}
	}
	sortByID(users, func(u models.User) primitive.ObjectID { return u.ID })
	return users, nil
}

func (s *MemoryStore) ListUsersInArea(_ context.Context, area string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(area)
	var users []models.User
	for _, user := range s.users {
		if !user.IsBlocked && strings.Contains(strings.ToLower(user.Address), needle) {
			users = append(users, *user)
		}
	}
	sortByID(users, func(u models.User) primitive.ObjectID { return u.ID })
	return users, nil
}

func (s *MemoryStore) UpdateUserLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLoginAt = &at
	user.UpdatedAt = at
	return nil
}

// Relief centers

func (s *MemoryStore) CreateCenter(_ context.Context, center *models.ReliefCenter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	center.ID = primitive.NewObjectID()
	now := time.Now()
	center.CreatedAt = now
	center.UpdatedAt = now
	clone := *center
	s.centers[center.ID] = &clone
	return nil
}

func (s *MemoryStore) GetCenter(_ context.Context, id primitive.ObjectID) (*models.ReliefCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	center, ok := s.centers[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *center
	return &clone, nil
}

func (s *MemoryStore) ListCenters(_ context.Context) ([]models.ReliefCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var centers []models.ReliefCenter
	for _, center := range s.centers {
		centers = append(centers, *center)
	}
	sortByID(centers, func(c models.ReliefCenter) primitive.ObjectID { return c.ID })
	return centers, nil
}

// Resources

func (s *MemoryStore) CreateResource(_ context.Context, resource *models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource.ID = primitive.NewObjectID()
	now := time.Now()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	if resource.Status == "" {
		resource.Status = models.ResourceStatusReady
	}
	clone := *resource
	s.resources[resource.ID] = &clone
	return nil
}

func (s *MemoryStore) GetResource(_ context.Context, id primitive.ObjectID) (*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *resource
	return &clone, nil
}

func (s *MemoryStore) ListResourcesByCenter(_ context.Context, centerID primitive.ObjectID) ([]models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resources []models.Resource
	for _, resource := range s.resources {
		if resource.CenterID == centerID {
			resources = append(resources, *resource)
		}
	}
	sortByID(resources, func(r models.Resource) primitive.ObjectID { return r.ID })
	return resources, nil
}

func (s *MemoryStore) ListReadyResources(_ context.Context) ([]models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resources []models.Resource
	for _, resource := range s.resources {
		if resource.Status == models.ResourceStatusReady && resource.Quantity > 0 {
			resources = append(resources, *resource)
		}
	}
	sortByID(resources, func(r models.Resource) primitive.ObjectID { return r.ID })
	return resources, nil
}

func (s *MemoryStore) AllocateResource(_ context.Context, id primitive.ObjectID, qty int64) (*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	if resource.Status != models.ResourceStatusReady {
		return nil, ErrConflict
	}
	if resource.Quantity < qty {
		return nil, ErrExhausted
	}

	resource.Quantity -= qty
	if resource.Quantity == 0 {
		resource.Status = models.ResourceStatusOutOfStock
	}
	resource.UpdatedAt = time.Now()
	clone := *resource
	return &clone, nil
}

func (s *MemoryStore) RestoreResource(_ context.Context, id primitive.ObjectID, qty int64) (*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return nil, ErrNotFound
	}

	resource.Quantity += qty
	if resource.Status == models.ResourceStatusOutOfStock && resource.Quantity > 0 {
		resource.Status = models.ResourceStatusReady
	}
	resource.UpdatedAt = time.Now()
	clone := *resource
	return &clone, nil
}

// Relief requests

func (s *MemoryStore) CreateRequest(_ context.Context, request *models.ReliefRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request.ID = primitive.NewObjectID()
	now := time.Now()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.RequestStatusQueued
	}
	if request.ApprovalStatus == "" {
		request.ApprovalStatus = models.ApprovalPending
	}
	if request.MatchingStatus == "" {
		request.MatchingStatus = models.MatchingUnmatched
	}
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) ListRequests(_ context.Context, filter RequestFilter) ([]models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []models.ReliefRequest
	for _, request := range s.requests {
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.ApprovalStatus != "" && request.ApprovalStatus != filter.ApprovalStatus {
			continue
		}
		if filter.MatchingStatus != "" && request.MatchingStatus != filter.MatchingStatus {
			continue
		}
		if filter.Urgency != "" && request.Urgency != filter.Urgency {
			continue
		}
		if filter.UserID != nil && (request.UserID == nil || *request.UserID != *filter.UserID) {
			continue
		}
		requests = append(requests, *request)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].PriorityScore != requests[j].PriorityScore {
			return requests[i].PriorityScore > requests[j].PriorityScore
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return paginate(requests, filter.Page, filter.Limit), nil
}

func (s *MemoryStore) ApproveRequest(_ context.Context, id primitive.ObjectID, decision ApprovalDecision) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.ApprovalStatus != models.ApprovalPending {
		return nil, ErrConflict
	}

	approver := decision.ApproverID
	decided := decision.DecidedAt
	request.ApprovalStatus = models.ApprovalApproved
	request.Status = models.RequestStatusInProgress
	request.ApproverID = &approver
	request.ApprovedAt = &decided
	request.UpdatedAt = decided
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) RejectRequest(_ context.Context, id primitive.ObjectID, decision ApprovalDecision) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.ApprovalStatus != models.ApprovalPending {
		return nil, ErrConflict
	}

	approver := decision.ApproverID
	decided := decision.DecidedAt
	request.ApprovalStatus = models.ApprovalRejected
	request.Status = models.RequestStatusRejected
	request.ApproverID = &approver
	request.ApprovedAt = &decided
	request.RejectReason = decision.Reason
	request.UpdatedAt = decided
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) CancelRequest(_ context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.Status != models.RequestStatusQueued && request.Status != models.RequestStatusInProgress {
		return nil, ErrConflict
	}

	request.Status = models.RequestStatusCancelled
	request.UpdatedAt = time.Now()
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) CompleteRequest(_ context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.Status != models.RequestStatusInProgress {
		return nil, ErrConflict
	}

	request.Status = models.RequestStatusCompleted
	request.UpdatedAt = time.Now()
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) SetRequestMatched(_ context.Context, id, resourceID primitive.ObjectID, distance float64) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.MatchingStatus != models.MatchingUnmatched {
		return nil, ErrConflict
	}

	request.MatchingStatus = models.MatchingMatched
	request.MatchedResourceID = &resourceID
	request.NearestDistance = &distance
	request.UpdatedAt = time.Now()
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) SetRequestNoMatch(_ context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.MatchingStatus != models.MatchingUnmatched {
		return nil, ErrConflict
	}

	request.MatchingStatus = models.MatchingNoMatch
	request.UpdatedAt = time.Now()
	clone := *request
	return &clone, nil
}

func (s *MemoryStore) ResetRequestMatching(_ context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.MatchingStatus != models.MatchingMatched && request.MatchingStatus != models.MatchingNoMatch {
		return nil, ErrConflict
	}

	request.MatchingStatus = models.MatchingUnmatched
	request.MatchedResourceID = nil
	request.NearestDistance = nil
	request.UpdatedAt = time.Now()
	clone := *request
	return &clone, nil
}

// Distributions

func (s *MemoryStore) CreateDistribution(_ context.Context, distribution *models.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	distribution.ID = primitive.NewObjectID()
	now := time.Now()
	distribution.CreatedAt = now
	distribution.UpdatedAt = now
	if distribution.Status == "" {
		distribution.Status = models.DistributionStatusPreparing
	}
	clone := *distribution
	s.distributions[distribution.ID] = &clone
	return nil
}

func (s *MemoryStore) GetDistribution(_ context.Context, id primitive.ObjectID) (*models.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	distribution, ok := s.distributions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *distribution
	return &clone, nil
}

func (s *MemoryStore) ListDistributionsByRequest(_ context.Context, requestID primitive.ObjectID) ([]models.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var distributions []models.Distribution
	for _, distribution := range s.distributions {
		if distribution.RequestID == requestID {
			distributions = append(distributions, *distribution)
		}
	}
	sort.Slice(distributions, func(i, j int) bool {
		return distributions[i].CreatedAt.Before(distributions[j].CreatedAt)
	})
	return distributions, nil
}

func (s *MemoryStore) HasActiveDistribution(_ context.Context, requestID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, distribution := range s.distributions {
		if distribution.RequestID == requestID && distribution.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AdvanceDistribution(_ context.Context, id primitive.ObjectID, from, to string, deliveredAt *time.Time) (*models.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	distribution, ok := s.distributions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if distribution.Status != from {
		return nil, ErrConflict
	}

	distribution.Status = to
	if deliveredAt != nil {
		at := *deliveredAt
		distribution.DeliveredAt = &at
	}
	distribution.UpdatedAt = time.Now()
	clone := *distribution
	return &clone, nil
}

// Notifications

func (s *MemoryStore) InsertNotification(_ context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()
	clone := *notification
	s.notifications[notification.ID] = &clone
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notifications []models.Notification
	for _, notification := range s.notifications {
		if notification.RecipientID != userID {
			continue
		}
		if unreadOnly && notification.IsRead {
			continue
		}
		notifications = append(notifications, *notification)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}
	return notifications, nil
}

func (s *MemoryStore) CountUnreadNotifications(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, notification := range s.notifications {
		if notification.RecipientID == userID && !notification.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, userID primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[id]
	if !ok || notification.RecipientID != userID {
		return ErrNotFound
	}
	notification.IsRead = true
	notification.ReadAt = &at
	return nil
}

func (s *MemoryStore) MarkNotificationDelivered(_ context.Context, id primitive.ObjectID, emailSent, smsSent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	if emailSent {
		notification.EmailSent = true
	}
	if smsSent {
		notification.SMSSent = true
	}
	return nil
}

// Audit trail

func (s *MemoryStore) AppendAuditEntry(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = primitive.NewObjectID()
	s.auditChains[entry.ChainID] = append(s.auditChains[entry.ChainID], *entry)
	return nil
}

func (s *MemoryStore) ListAuditEntries(_ context.Context, chainID primitive.ObjectID) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.auditChains[chainID]
	entries := make([]models.AuditEntry, len(chain))
	copy(entries, chain)
	return entries, nil
}

func (s *MemoryStore) LastAuditEntry(_ context.Context, chainID primitive.ObjectID) (*models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.auditChains[chainID]
	if len(chain) == 0 {
		return nil, nil
	}
	entry := chain[len(chain)-1]
	return &entry, nil
}

// TamperAuditEntry overwrites one stored entry in place, bypassing the
// append-only contract. Test hook for chain-verification failures.
func (s *MemoryStore) TamperAuditEntry(chainID primitive.ObjectID, index int, mutate func(*models.AuditEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.auditChains[chainID]
	if index >= 0 && index < len(chain) {
		mutate(&chain[index])
	}
}

// Helpers

func sortByID[T any](items []T, id func(T) primitive.ObjectID) {
	sort.Slice(items, func(i, j int) bool {
		return id(items[i]).Hex() < id(items[j]).Hex()
	})
}

func paginate[T any](items []T, page, limit int) []T {
	if limit < 1 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
