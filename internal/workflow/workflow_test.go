package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"relieflink-backend/internal/distribution"
	"relieflink-backend/internal/events"
	"relieflink-backend/internal/matching"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *store.MemoryStore
	bus     *events.Bus
	engine  *Engine
	tracker *distribution.Tracker
	admin   models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	bus := events.NewBus(64, time.Second)
	go bus.Run()
	t.Cleanup(bus.Close)

	admin := models.User{
		Email:    "admin@relieflink.vn",
		FullName: "Nguyễn Quản Trị",
		Role:     models.RoleAdmin,
	}
	require.NoError(t, s.CreateUser(ctx, &admin))

	tracker := distribution.NewTracker(s, bus)
	engine := NewEngine(s, matching.NewEngine(s), tracker, bus)

	return &fixture{
		store:   s,
		bus:     bus,
		engine:  engine,
		tracker: tracker,
		admin:   admin,
	}
}

func (f *fixture) pendingRequest(t *testing.T) *models.ReliefRequest {
	t.Helper()
	request := &models.ReliefRequest{
		RequestType: "Thực phẩm khẩn cấp",
		Description: "ngập lụt, thiếu lương thực",
		People:      15,
		Urgency:     models.UrgencyHigh,
		Location:    models.Coordinates{Lat: 16.07, Lng: 108.22},
	}
	require.NoError(t, f.store.CreateRequest(context.Background(), request))
	return request
}

func (f *fixture) addStock(t *testing.T, category string, qty int64) models.Resource {
	t.Helper()
	ctx := context.Background()
	center := models.ReliefCenter{
		Name:     "Trung tâm Đà Nẵng",
		Address:  "Hải Châu, Đà Nẵng",
		Location: models.Coordinates{Lat: 16.06, Lng: 108.21},
	}
	require.NoError(t, f.store.CreateCenter(ctx, &center))
	resource := models.Resource{
		CenterID: center.ID,
		Name:     "kho " + category,
		Category: category,
		Quantity: qty,
		Unit:     "phần",
		Status:   models.ResourceStatusReady,
	}
	require.NoError(t, f.store.CreateResource(ctx, &resource))
	return resource
}

func TestApprove_TransitionsAndMatches(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resource := f.addStock(t, models.CategoryFood, 100)
	request := f.pendingRequest(t)

	approved, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, models.RequestStatusInProgress, approved.Status)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, f.admin.ID, *approved.ApproverID)
	assert.NotNil(t, approved.ApprovedAt)

	// Matching ran as part of the approval
	assert.Equal(t, models.MatchingMatched, approved.MatchingStatus)
	require.NotNil(t, approved.MatchedResourceID)
	assert.Equal(t, resource.ID, *approved.MatchedResourceID)
}

func TestApprove_NoStockRecordsNoMatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	request := f.pendingRequest(t)

	approved, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, models.MatchingNoMatch, approved.MatchingStatus)
}

func TestApprove_ConcurrentDoubleApproval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addStock(t, models.CategoryFood, 100)
	request := f.pendingRequest(t)

	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Approve(ctx, request.ID, f.admin.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			var conflict *relieferr.StateConflictError
			assert.ErrorAs(t, err, &conflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	// Exactly one matching attempt happened
	updated, err := f.store.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingMatched, updated.MatchingStatus)
}

func TestReject_RequiresReason(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	request := f.pendingRequest(t)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := f.engine.Reject(ctx, request.ID, f.admin.ID, reason)
		var validation *relieferr.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "ly_do_tu_choi", validation.Field)
	}

	// The request is still pending after the failed attempts
	current, err := f.store.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, current.ApprovalStatus)
}

func TestReject_TransitionsBothColumns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	request := f.pendingRequest(t)

	rejected, err := f.engine.Reject(ctx, request.ID, f.admin.ID, "địa chỉ không xác minh được")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	assert.Equal(t, "địa chỉ không xác minh được", rejected.RejectReason)
}

func TestDecisionsAreOneWay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	approved := f.pendingRequest(t)
	_, err := f.engine.Approve(ctx, approved.ID, f.admin.ID)
	require.NoError(t, err)

	// Approved requests cannot be rejected, or approved again
	_, err = f.engine.Reject(ctx, approved.ID, f.admin.ID, "đổi ý")
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
	_, err = f.engine.Approve(ctx, approved.ID, f.admin.ID)
	require.ErrorAs(t, err, &conflict)

	rejected := f.pendingRequest(t)
	_, err = f.engine.Reject(ctx, rejected.ID, f.admin.ID, "trùng lặp")
	require.NoError(t, err)

	_, err = f.engine.Approve(ctx, rejected.ID, f.admin.ID)
	require.ErrorAs(t, err, &conflict)
}

func TestCancel_ReleasesActiveDistribution(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resource := f.addStock(t, models.CategoryFood, 60)
	request := f.pendingRequest(t)

	_, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)

	volunteer := models.User{
		Email:    "vol@relieflink.vn",
		FullName: "Phạm Tình Nguyện",
		Role:     models.RoleVolunteer,
	}
	require.NoError(t, f.store.CreateUser(ctx, &volunteer))

	_, err = f.tracker.Create(ctx, distribution.CreateParams{
		RequestID:   request.ID,
		VolunteerID: volunteer.ID,
		Quantity:    25,
	})
	require.NoError(t, err)

	cancelled, err := f.engine.Cancel(ctx, request.ID, &f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)

	// The reserved quantity came back
	current, err := f.store.GetResource(ctx, resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), current.Quantity)

	// Cancelling again conflicts: the lifecycle is terminal
	_, err = f.engine.Cancel(ctx, request.ID, &f.admin.ID)
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCancel_ReleasesSpeculativeMatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resource := f.addStock(t, models.CategoryFood, 60)
	request := f.pendingRequest(t)

	approved, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.MatchingMatched, approved.MatchingStatus)

	// Cancelled before any distribution was created: the match itself is
	// the reservation and must be cleared
	cancelled, err := f.engine.Cancel(ctx, request.ID, &f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
	assert.Equal(t, models.MatchingUnmatched, cancelled.MatchingStatus)
	assert.Nil(t, cancelled.MatchedResourceID)
	assert.Nil(t, cancelled.NearestDistance)

	// Nothing was ever decremented
	current, err := f.store.GetResource(ctx, resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), current.Quantity)
}

func TestRematch_RejectsCancelledRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	request := f.pendingRequest(t)

	approved, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.MatchingNoMatch, approved.MatchingStatus)

	_, err = f.engine.Cancel(ctx, request.ID, &f.admin.ID)
	require.NoError(t, err)

	// Stock arriving later changes nothing for a cancelled request
	f.addStock(t, models.CategoryFood, 40)

	_, err = f.engine.Rematch(ctx, request.ID, f.admin.ID)
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.RequestStatusCancelled, conflict.Actual)
}

func TestRematch_AfterNoMatchFindsNewStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	request := f.pendingRequest(t)

	approved, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.MatchingNoMatch, approved.MatchingStatus)

	// Stock arrives later
	resource := f.addStock(t, models.CategoryFood, 40)

	rematched, err := f.engine.Rematch(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingMatched, rematched.MatchingStatus)
	require.NotNil(t, rematched.MatchedResourceID)
	assert.Equal(t, resource.ID, *rematched.MatchedResourceID)
}

func TestRematch_RejectsCurrentlyMatchedRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addStock(t, models.CategoryFood, 40)
	request := f.pendingRequest(t)

	_, err := f.engine.Approve(ctx, request.ID, f.admin.ID)
	require.NoError(t, err)

	_, err = f.engine.Rematch(ctx, request.ID, f.admin.ID)
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRematch_RequiresApproval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	request := f.pendingRequest(t)

	_, err := f.engine.Rematch(ctx, request.ID, f.admin.ID)
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
}
