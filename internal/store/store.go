// Package store is the persistence boundary. Every mutating operation that
// guards a workflow invariant is conditional: it applies only if the entity
// is still in the expected state and returns ErrConflict otherwise, which is
// what makes concurrent transitions linearizable per entity.
package store

import (
	"context"
	"errors"
	"time"

	"relieflink-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound = errors.New("entity not found")

	// ErrConflict means the expected-state guard of a conditional update
	// did not hold. The caller lost a race and should re-fetch.
	ErrConflict = errors.New("state conflict")

	// ErrExhausted means an allocation exceeded the remaining quantity.
	ErrExhausted = errors.New("insufficient resource quantity")
)

// RequestFilter narrows ListRequests. Zero values mean "no filter".
type RequestFilter struct {
	Status         string
	ApprovalStatus string
	MatchingStatus string
	Urgency        string
	UserID         *primitive.ObjectID
	Page           int
	Limit          int
}

// ApprovalDecision carries the admin decision applied by ApproveRequest /
// RejectRequest.
type ApprovalDecision struct {
	ApproverID primitive.ObjectID
	DecidedAt  time.Time
	Reason     string // reject only
}

type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	// ListUsersInArea matches users whose stored address contains the area
	// name. Used to resolve emergency-broadcast recipient sets.
	ListUsersInArea(ctx context.Context, area string) ([]models.User, error)
	UpdateUserLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error

	// Relief centers
	CreateCenter(ctx context.Context, center *models.ReliefCenter) error
	GetCenter(ctx context.Context, id primitive.ObjectID) (*models.ReliefCenter, error)
	ListCenters(ctx context.Context) ([]models.ReliefCenter, error)

	// Resources
	CreateResource(ctx context.Context, resource *models.Resource) error
	GetResource(ctx context.Context, id primitive.ObjectID) (*models.Resource, error)
	ListResourcesByCenter(ctx context.Context, centerID primitive.ObjectID) ([]models.Resource, error)
	ListReadyResources(ctx context.Context) ([]models.Resource, error)
	// AllocateResource atomically checks quantity >= qty and decrements it.
	// A decrement that reaches zero flips the status to het_hang in the
	// same guarded operation sequence. Returns the resource after the
	// decrement, ErrExhausted when quantity is short, ErrConflict when the
	// resource is not san_sang.
	AllocateResource(ctx context.Context, id primitive.ObjectID, qty int64) (*models.Resource, error)
	// RestoreResource atomically adds qty back and flips het_hang to
	// san_sang when the quantity becomes positive again.
	RestoreResource(ctx context.Context, id primitive.ObjectID, qty int64) (*models.Resource, error)

	// Relief requests
	CreateRequest(ctx context.Context, request *models.ReliefRequest) error
	GetRequest(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.ReliefRequest, error)
	// ApproveRequest applies only while trang_thai_phe_duyet is
	// cho_phe_duyet; the lifecycle moves to dang_xu_ly in the same write.
	ApproveRequest(ctx context.Context, id primitive.ObjectID, decision ApprovalDecision) (*models.ReliefRequest, error)
	// RejectRequest applies only while pending; the lifecycle moves to
	// bi_tu_choi in the same write.
	RejectRequest(ctx context.Context, id primitive.ObjectID, decision ApprovalDecision) (*models.ReliefRequest, error)
	// CancelRequest applies only while the lifecycle is non-terminal.
	CancelRequest(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error)
	// CompleteRequest moves the lifecycle to hoan_thanh while in progress.
	CompleteRequest(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error)
	// SetRequestMatched applies only while trang_thai_matching is
	// chua_match, which enforces at-most-one successful match per attempt
	// window.
	SetRequestMatched(ctx context.Context, id, resourceID primitive.ObjectID, distance float64) (*models.ReliefRequest, error)
	// SetRequestNoMatch applies only while chua_match.
	SetRequestNoMatch(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error)
	// ResetRequestMatching moves da_match or khong_match back to
	// chua_match and clears the matched resource and distance.
	ResetRequestMatching(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error)

	// Distributions
	CreateDistribution(ctx context.Context, distribution *models.Distribution) error
	GetDistribution(ctx context.Context, id primitive.ObjectID) (*models.Distribution, error)
	ListDistributionsByRequest(ctx context.Context, requestID primitive.ObjectID) ([]models.Distribution, error)
	HasActiveDistribution(ctx context.Context, requestID primitive.ObjectID) (bool, error)
	// AdvanceDistribution applies only while the status equals from.
	AdvanceDistribution(ctx context.Context, id primitive.ObjectID, from, to string, deliveredAt *time.Time) (*models.Distribution, error)

	// Notifications
	InsertNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkNotificationRead(ctx context.Context, id, userID primitive.ObjectID, at time.Time) error
	MarkNotificationDelivered(ctx context.Context, id primitive.ObjectID, emailSent, smsSent bool) error

	// Audit trail (append-only; no update or delete exists)
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, chainID primitive.ObjectID) ([]models.AuditEntry, error)
	LastAuditEntry(ctx context.Context, chainID primitive.ObjectID) (*models.AuditEntry, error)
}
