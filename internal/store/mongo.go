package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"relieflink-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB collections. Conditional updates
// are expressed as filtered FindOneAndUpdate calls: the filter carries the
// expected state, so a lost race surfaces as mongo.ErrNoDocuments and is
// mapped to ErrConflict.
type MongoStore struct {
	users         *mongo.Collection
	centers       *mongo.Collection
	resources     *mongo.Collection
	requests      *mongo.Collection
	distributions *mongo.Collection
	notifications *mongo.Collection
	auditEntries  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:         db.Collection("users"),
		centers:       db.Collection("relief_centers"),
		resources:     db.Collection("resources"),
		requests:      db.Collection("relief_requests"),
		distributions: db.Collection("distributions"),
		notifications: db.Collection("notifications"),
		auditEntries:  db.Collection("audit_entries"),
	}
}

// Users

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := s.users.InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, mapFindErr(err, "user")
	}
	return &user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, mapFindErr(err, "user")
	}
	return &user, nil
}

func (s *MongoStore) ListUsersByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{"vai_tro": role, "is_blocked": false})
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return decodeAll[models.User](ctx, cursor)
}

func (s *MongoStore) ListUsersInArea(ctx context.Context, area string) ([]models.User, error) {
	// Anchored as a case-insensitive literal, not a user-supplied regex.
	filter := bson.M{
		"is_blocked": false,
		"dia_chi":    bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(area), Options: "i"}},
	}
	cursor, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users in area: %w", err)
	}
	return decodeAll[models.User](ctx, cursor)
}

func (s *MongoStore) UpdateUserLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"last_login_at": at, "updated_at": at},
	})
	return err
}

// Relief centers

func (s *MongoStore) CreateCenter(ctx context.Context, center *models.ReliefCenter) error {
	now := time.Now()
	center.CreatedAt = now
	center.UpdatedAt = now

	result, err := s.centers.InsertOne(ctx, center)
	if err != nil {
		return fmt.Errorf("insert relief center: %w", err)
	}
	center.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetCenter(ctx context.Context, id primitive.ObjectID) (*models.ReliefCenter, error) {
	var center models.ReliefCenter
	err := s.centers.FindOne(ctx, bson.M{"_id": id}).Decode(&center)
	if err != nil {
		return nil, mapFindErr(err, "relief center")
	}
	return &center, nil
}

func (s *MongoStore) ListCenters(ctx context.Context) ([]models.ReliefCenter, error) {
	cursor, err := s.centers.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "ten_trung_tam", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list relief centers: %w", err)
	}
	return decodeAll[models.ReliefCenter](ctx, cursor)
}

// Resources

func (s *MongoStore) CreateResource(ctx context.Context, resource *models.Resource) error {
	now := time.Now()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	if resource.Status == "" {
		resource.Status = models.ResourceStatusReady
	}

	result, err := s.resources.InsertOne(ctx, resource)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	resource.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetResource(ctx context.Context, id primitive.ObjectID) (*models.Resource, error) {
	var resource models.Resource
	err := s.resources.FindOne(ctx, bson.M{"_id": id}).Decode(&resource)
	if err != nil {
		return nil, mapFindErr(err, "resource")
	}
	return &resource, nil
}

func (s *MongoStore) ListResourcesByCenter(ctx context.Context, centerID primitive.ObjectID) ([]models.Resource, error) {
	cursor, err := s.resources.Find(ctx, bson.M{"id_trung_tam": centerID})
	if err != nil {
		return nil, fmt.Errorf("list resources by center: %w", err)
	}
	return decodeAll[models.Resource](ctx, cursor)
}

func (s *MongoStore) ListReadyResources(ctx context.Context) ([]models.Resource, error) {
	cursor, err := s.resources.Find(ctx, bson.M{
		"trang_thai": models.ResourceStatusReady,
		"so_luong":   bson.M{"$gt": 0},
	})
	if err != nil {
		return nil, fmt.Errorf("list ready resources: %w", err)
	}
	return decodeAll[models.Resource](ctx, cursor)
}

func (s *MongoStore) AllocateResource(ctx context.Context, id primitive.ObjectID, qty int64) (*models.Resource, error) {
	after := options.After
	var resource models.Resource
	err := s.resources.FindOneAndUpdate(ctx,
		bson.M{
			"_id":        id,
			"trang_thai": models.ResourceStatusReady,
			"so_luong":   bson.M{"$gte": qty},
		},
		bson.M{
			"$inc": bson.M{"so_luong": -qty},
			"$set": bson.M{"updated_at": time.Now()},
		},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.classifyAllocationFailure(ctx, id, qty)
		}
		return nil, fmt.Errorf("allocate resource: %w", err)
	}

	// Automatic out-of-stock flip. Guarded on so_luong so a concurrent
	// restore that already raised the quantity wins.
	if resource.Quantity == 0 {
		res := s.resources.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "so_luong": 0, "trang_thai": models.ResourceStatusReady},
			bson.M{"$set": bson.M{"trang_thai": models.ResourceStatusOutOfStock, "updated_at": time.Now()}},
			&options.FindOneAndUpdateOptions{ReturnDocument: &after},
		)
		if res.Err() == nil {
			_ = res.Decode(&resource)
		}
	}
	return &resource, nil
}

// classifyAllocationFailure distinguishes "not found", "not ready" and
// "too little left" after a failed guarded decrement.
func (s *MongoStore) classifyAllocationFailure(ctx context.Context, id primitive.ObjectID, qty int64) error {
	resource, err := s.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if resource.Status != models.ResourceStatusReady {
		return ErrConflict
	}
	if resource.Quantity < qty {
		return ErrExhausted
	}
	return ErrConflict
}

func (s *MongoStore) RestoreResource(ctx context.Context, id primitive.ObjectID, qty int64) (*models.Resource, error) {
	after := options.After
	var resource models.Resource
	err := s.resources.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"so_luong": qty},
			"$set": bson.M{"updated_at": time.Now()},
		},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&resource)
	if err != nil {
		return nil, mapFindErr(err, "resource")
	}

	if resource.Status == models.ResourceStatusOutOfStock && resource.Quantity > 0 {
		res := s.resources.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "trang_thai": models.ResourceStatusOutOfStock, "so_luong": bson.M{"$gt": 0}},
			bson.M{"$set": bson.M{"trang_thai": models.ResourceStatusReady, "updated_at": time.Now()}},
			&options.FindOneAndUpdateOptions{ReturnDocument: &after},
		)
		if res.Err() == nil {
			_ = res.Decode(&resource)
		}
	}
	return &resource, nil
}

// Relief requests

func (s *MongoStore) CreateRequest(ctx context.Context, request *models.ReliefRequest) error {
	now := time.Now()
	request.CreatedAt = now
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

	result, err := s.requests.InsertOne(ctx, request)
	if err != nil {
		return fmt.Errorf("insert relief request: %w", err)
	}
	request.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetRequest(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	var request models.ReliefRequest
	err := s.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		return nil, mapFindErr(err, "relief request")
	}
	return &request, nil
}

func (s *MongoStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.ReliefRequest, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["trang_thai"] = filter.Status
	}
	if filter.ApprovalStatus != "" {
		query["trang_thai_phe_duyet"] = filter.ApprovalStatus
	}
	if filter.MatchingStatus != "" {
		query["trang_thai_matching"] = filter.MatchingStatus
	}
	if filter.Urgency != "" {
		query["do_uu_tien"] = filter.Urgency
	}
	if filter.UserID != nil {
		query["id_nguoi_dung"] = *filter.UserID
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "diem_uu_tien", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.requests.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list relief requests: %w", err)
	}
	return decodeAll[models.ReliefRequest](ctx, cursor)
}

func (s *MongoStore) ApproveRequest(ctx context.Context, id primitive.ObjectID, decision ApprovalDecision) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai_phe_duyet": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"trang_thai_phe_duyet": models.ApprovalApproved,
			"trang_thai":           models.RequestStatusInProgress,
			"id_nguoi_phe_duyet":   decision.ApproverID,
			"thoi_gian_phe_duyet":  decision.DecidedAt,
			"updated_at":           decision.DecidedAt,
		}},
	)
}

func (s *MongoStore) RejectRequest(ctx context.Context, id primitive.ObjectID, decision ApprovalDecision) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai_phe_duyet": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"trang_thai_phe_duyet": models.ApprovalRejected,
			"trang_thai":           models.RequestStatusRejected,
			"id_nguoi_phe_duyet":   decision.ApproverID,
			"thoi_gian_phe_duyet":  decision.DecidedAt,
			"ly_do_tu_choi":        decision.Reason,
			"updated_at":           decision.DecidedAt,
		}},
	)
}

func (s *MongoStore) CancelRequest(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai": bson.M{"$in": []string{
			models.RequestStatusQueued, models.RequestStatusInProgress,
		}}},
		bson.M{"$set": bson.M{
			"trang_thai": models.RequestStatusCancelled,
			"updated_at": time.Now(),
		}},
	)
}

func (s *MongoStore) CompleteRequest(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai": models.RequestStatusInProgress},
		bson.M{"$set": bson.M{
			"trang_thai": models.RequestStatusCompleted,
			"updated_at": time.Now(),
		}},
	)
}

func (s *MongoStore) SetRequestMatched(ctx context.Context, id, resourceID primitive.ObjectID, distance float64) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai_matching": models.MatchingUnmatched},
		bson.M{"$set": bson.M{
			"trang_thai_matching":  models.MatchingMatched,
			"id_nguon_luc_match":   resourceID,
			"khoang_cach_gan_nhat": distance,
			"updated_at":           time.Now(),
		}},
	)
}

func (s *MongoStore) SetRequestNoMatch(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai_matching": models.MatchingUnmatched},
		bson.M{"$set": bson.M{
			"trang_thai_matching": models.MatchingNoMatch,
			"updated_at":          time.Now(),
		}},
	)
}

func (s *MongoStore) ResetRequestMatching(ctx context.Context, id primitive.ObjectID) (*models.ReliefRequest, error) {
	return s.conditionalRequestUpdate(ctx,
		bson.M{"_id": id, "trang_thai_matching": bson.M{"$in": []string{
			models.MatchingMatched, models.MatchingNoMatch,
		}}},
		bson.M{
			"$set": bson.M{
				"trang_thai_matching": models.MatchingUnmatched,
				"updated_at":          time.Now(),
			},
			"$unset": bson.M{
				"id_nguon_luc_match":   "",
				"khoang_cach_gan_nhat": "",
			},
		},
	)
}

func (s *MongoStore) conditionalRequestUpdate(ctx context.Context, filter, update bson.M) (*models.ReliefRequest, error) {
	after := options.After
	var request models.ReliefRequest
	err := s.requests.FindOneAndUpdate(ctx, filter, update,
		&options.FindOneAndUpdateOptions{ReturnDocument: &after}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either missing or the guard failed; look again to tell
			// the caller which.
			if _, getErr := s.GetRequest(ctx, filter["_id"].(primitive.ObjectID)); getErr != nil {
				return nil, getErr
			}
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update relief request: %w", err)
	}
	return &request, nil
}

// Distributions

func (s *MongoStore) CreateDistribution(ctx context.Context, distribution *models.Distribution) error {
	now := time.Now()
	distribution.CreatedAt = now
	distribution.UpdatedAt = now
	if distribution.Status == "" {
		distribution.Status = models.DistributionStatusPreparing
	}

	result, err := s.distributions.InsertOne(ctx, distribution)
	if err != nil {
		return fmt.Errorf("insert distribution: %w", err)
	}
	distribution.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) GetDistribution(ctx context.Context, id primitive.ObjectID) (*models.Distribution, error) {
	var distribution models.Distribution
	err := s.distributions.FindOne(ctx, bson.M{"_id": id}).Decode(&distribution)
	if err != nil {
		return nil, mapFindErr(err, "distribution")
	}
	return &distribution, nil
}

func (s *MongoStore) ListDistributionsByRequest(ctx context.Context, requestID primitive.ObjectID) ([]models.Distribution, error) {
	cursor, err := s.distributions.Find(ctx, bson.M{"id_yeu_cau": requestID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list distributions by request: %w", err)
	}
	return decodeAll[models.Distribution](ctx, cursor)
}

func (s *MongoStore) HasActiveDistribution(ctx context.Context, requestID primitive.ObjectID) (bool, error) {
	count, err := s.distributions.CountDocuments(ctx, bson.M{
		"id_yeu_cau": requestID,
		"trang_thai": bson.M{"$nin": []string{
			models.DistributionStatusCompleted, models.DistributionStatusCancelled,
		}},
	})
	if err != nil {
		return false, fmt.Errorf("count active distributions: %w", err)
	}
	return count > 0, nil
}

func (s *MongoStore) AdvanceDistribution(ctx context.Context, id primitive.ObjectID, from, to string, deliveredAt *time.Time) (*models.Distribution, error) {
	set := bson.M{
		"trang_thai": to,
		"updated_at": time.Now(),
	}
	if deliveredAt != nil {
		set["thoi_gian_giao"] = *deliveredAt
	}

	after := options.After
	var distribution models.Distribution
	err := s.distributions.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "trang_thai": from},
		bson.M{"$set": set},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&distribution)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := s.GetDistribution(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("advance distribution: %w", err)
	}
	return &distribution, nil
}

// Notifications

func (s *MongoStore) InsertNotification(ctx context.Context, notification *models.Notification) error {
	notification.CreatedAt = time.Now()

	result, err := s.notifications.InsertOne(ctx, notification)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	notification.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := bson.M{"id_nguoi_nhan": userID}
	if unreadOnly {
		query["da_doc"] = false
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	cursor, err := s.notifications.Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return decodeAll[models.Notification](ctx, cursor)
}

func (s *MongoStore) CountUnreadNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notifications.CountDocuments(ctx, bson.M{"id_nguoi_nhan": userID, "da_doc": false})
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, id, userID primitive.ObjectID, at time.Time) error {
	result, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "id_nguoi_nhan": userID},
		bson.M{"$set": bson.M{"da_doc": true, "read_at": at}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkNotificationDelivered(ctx context.Context, id primitive.ObjectID, emailSent, smsSent bool) error {
	set := bson.M{}
	if emailSent {
		set["da_gui_email"] = true
	}
	if smsSent {
		set["da_gui_sms"] = true
	}
	if len(set) == 0 {
		return nil
	}
	_, err := s.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// Audit trail

func (s *MongoStore) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	result, err := s.auditEntries.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	entry.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) ListAuditEntries(ctx context.Context, chainID primitive.ObjectID) ([]models.AuditEntry, error) {
	cursor, err := s.auditEntries.Find(ctx, bson.M{"id_phan_phoi": chainID},
		options.Find().SetSort(bson.D{{Key: "thoi_gian", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return decodeAll[models.AuditEntry](ctx, cursor)
}

func (s *MongoStore) LastAuditEntry(ctx context.Context, chainID primitive.ObjectID) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	err := s.auditEntries.FindOne(ctx, bson.M{"id_phan_phoi": chainID},
		options.FindOne().SetSort(bson.D{{Key: "thoi_gian", Value: -1}, {Key: "_id", Value: -1}})).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("last audit entry: %w", err)
	}
	return &entry, nil
}

// Helpers

func mapFindErr(err error, entity string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("find %s: %w", entity, err)
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)

	items := []T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		items = append(items, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	return items, nil
}

