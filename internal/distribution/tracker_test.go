package distribution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"relieflink-backend/internal/events"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
	"relieflink-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	store     *store.MemoryStore
	bus       *events.Bus
	events    *eventRecorder
	tracker   *Tracker
	volunteer models.User
	resource  models.Resource
	request   *models.ReliefRequest
}

type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) HandleEvent(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.Type)
	return nil
}

// has reports whether the event type was delivered. Call after bus.Close so
// the queue is drained.
func (r *eventRecorder) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seen := range r.types {
		if seen == eventType {
			return true
		}
	}
	return false
}

// setupFixture builds a matched request backed by a resource with the
// given stock.
func setupFixture(t *testing.T, quantity, minQuantity int64) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	bus := events.NewBus(64, time.Second)
	recorder := &eventRecorder{}
	bus.Subscribe(recorder)
	go bus.Run()
	t.Cleanup(bus.Close)

	volunteer := models.User{
		Email:    "vol@relieflink.vn",
		FullName: "Trần Văn Bình",
		Role:     models.RoleVolunteer,
	}
	require.NoError(t, s.CreateUser(ctx, &volunteer))

	center := models.ReliefCenter{
		Name:     "Trung tâm cứu trợ Huế",
		Address:  "Thành phố Huế",
		Location: models.Coordinates{Lat: 16.46, Lng: 107.59},
	}
	require.NoError(t, s.CreateCenter(ctx, &center))

	resource := models.Resource{
		CenterID:    center.ID,
		Name:        "Thùng mì ăn liền",
		Category:    models.CategoryFood,
		Quantity:    quantity,
		Unit:        "thùng",
		MinQuantity: minQuantity,
		Status:      models.ResourceStatusReady,
	}
	require.NoError(t, s.CreateResource(ctx, &resource))

	request := &models.ReliefRequest{
		RequestType:    "Thực phẩm khẩn cấp",
		Description:    "mất nhà sau bão",
		People:         8,
		Urgency:        models.UrgencyHigh,
		Status:         models.RequestStatusInProgress,
		ApprovalStatus: models.ApprovalApproved,
		MatchingStatus: models.MatchingUnmatched,
	}
	require.NoError(t, s.CreateRequest(ctx, request))
	matched, err := s.SetRequestMatched(ctx, request.ID, resource.ID, 4.2)
	require.NoError(t, err)

	return &fixture{
		store:     s,
		bus:       bus,
		events:    recorder,
		tracker:   NewTracker(s, bus),
		volunteer: volunteer,
		resource:  resource,
		request:   matched,
	}
}

func TestCreate_DecrementsInventory(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	dist, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    30,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DistributionStatusPreparing, dist.Status)
	assert.NotEmpty(t, dist.TransactionCode)
	assert.Equal(t, int64(30), dist.Quantity)
	assert.False(t, dist.DispatchedAt.IsZero())

	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), resource.Quantity)
	assert.Equal(t, models.ResourceStatusReady, resource.Status)
}

func TestCreate_RequiresPositiveQuantity(t *testing.T) {
	f := setupFixture(t, 100, 10)

	for _, qty := range []int64{0, -5} {
		_, err := f.tracker.Create(context.Background(), CreateParams{
			RequestID:   f.request.ID,
			VolunteerID: f.volunteer.ID,
			Quantity:    qty,
		})
		var validation *relieferr.ValidationError
		require.ErrorAs(t, err, &validation, "quantity=%d", qty)
		assert.Equal(t, "so_luong", validation.Field)
	}
}

func TestCreate_RejectsNonVolunteer(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	citizen := models.User{
		Email:    "dan@relieflink.vn",
		FullName: "Lê Thị Hoa",
		Role:     models.RoleCitizen,
	}
	require.NoError(t, f.store.CreateUser(ctx, &citizen))

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: citizen.ID,
		Quantity:    10,
	})
	var validation *relieferr.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestCreate_RejectsUnmatchedRequest(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	unmatched := &models.ReliefRequest{
		RequestType:    "Thực phẩm khẩn cấp",
		Description:    "chưa được duyệt match",
		People:         3,
		Urgency:        models.UrgencyLow,
		ApprovalStatus: models.ApprovalApproved,
		MatchingStatus: models.MatchingUnmatched,
	}
	require.NoError(t, f.store.CreateRequest(ctx, unmatched))

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   unmatched.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreate_RejectsCancelledRequest(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	// Cancelled at the store level while the matching columns still point
	// at the resource
	_, err := f.store.CancelRequest(ctx, f.request.ID)
	require.NoError(t, err)

	_, err = f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.RequestStatusCancelled, conflict.Actual)

	// Inventory was never touched
	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), resource.Quantity)
}

func TestCreate_LowStockAtExactThreshold(t *testing.T) {
	f := setupFixture(t, 30, 20)
	ctx := context.Background()

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	require.NoError(t, err)

	// Landing exactly on the threshold keeps the resource available but
	// warns the operators
	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), resource.Quantity)
	assert.Equal(t, models.ResourceStatusReady, resource.Status)

	f.bus.Close()
	assert.True(t, f.events.has(events.TypeResourceLowStock))
}

func TestCreate_AboveThresholdStaysQuiet(t *testing.T) {
	f := setupFixture(t, 30, 20)
	ctx := context.Background()

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    9,
	})
	require.NoError(t, err)

	f.bus.Close()
	assert.False(t, f.events.has(events.TypeResourceLowStock))
	assert.True(t, f.events.has(events.TypeDistributionCreated))
}

func TestCreate_RejectsSecondActiveDistribution(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	require.NoError(t, err)

	_, err = f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreate_ExhaustionLeavesRequestMatched(t *testing.T) {
	f := setupFixture(t, 20, 5)
	ctx := context.Background()

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    50,
	})
	var exhausted *relieferr.ResourceExhaustionError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, int64(50), exhausted.Requested)
	assert.Equal(t, int64(20), exhausted.Available)

	// The failed allocation changed nothing
	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), resource.Quantity)

	request, err := f.store.GetRequest(ctx, f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingMatched, request.MatchingStatus)
}

func TestCreate_DecrementToZeroFlipsOutOfStock(t *testing.T) {
	f := setupFixture(t, 25, 5)
	ctx := context.Background()

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    25,
	})
	require.NoError(t, err)

	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resource.Quantity)
	assert.Equal(t, models.ResourceStatusOutOfStock, resource.Status)
}

func TestCreate_ConcurrentAllocationNeverOversells(t *testing.T) {
	f := setupFixture(t, 10, 2)
	ctx := context.Background()

	// A second matched request competing for the same resource
	other := &models.ReliefRequest{
		RequestType:    "Thực phẩm khẩn cấp",
		Description:    "cùng tranh một nguồn lực",
		People:         6,
		Urgency:        models.UrgencyHigh,
		Status:         models.RequestStatusInProgress,
		ApprovalStatus: models.ApprovalApproved,
		MatchingStatus: models.MatchingUnmatched,
	}
	require.NoError(t, f.store.CreateRequest(ctx, other))
	_, err := f.store.SetRequestMatched(ctx, other.ID, f.resource.ID, 7.7)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	requestIDs := []primitive.ObjectID{f.request.ID, other.ID}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.tracker.Create(ctx, CreateParams{
				RequestID:   requestIDs[i],
				VolunteerID: f.volunteer.ID,
				Quantity:    10,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			// The loser sees exhaustion or, when the winner already
			// flipped the resource to het_hang, a state conflict.
			var exhausted *relieferr.ResourceExhaustionError
			var conflict *relieferr.StateConflictError
			assert.True(t, errors.As(err, &exhausted) || errors.As(err, &conflict), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resource.Quantity)
	assert.Equal(t, models.ResourceStatusOutOfStock, resource.Status)
}

func TestAdvance_HappyPathToCompleted(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	dist, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    40,
	})
	require.NoError(t, err)

	for _, status := range []string{
		models.DistributionStatusShipping,
		models.DistributionStatusDelivering,
		models.DistributionStatusCompleted,
	} {
		dist, err = f.tracker.Advance(ctx, dist.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, dist.Status)
	}

	require.NotNil(t, dist.DeliveredAt)

	// Completion closes the request lifecycle
	request, err := f.store.GetRequest(ctx, f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, request.Status)
}

func TestAdvance_RejectsInvalidTransitions(t *testing.T) {
	f := setupFixture(t, 100, 10)
	ctx := context.Background()

	dist, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	require.NoError(t, err)

	// preparing cannot jump straight to delivering or completed
	for _, status := range []string{models.DistributionStatusDelivering, models.DistributionStatusCompleted} {
		_, err := f.tracker.Advance(ctx, dist.ID, status)
		var conflict *relieferr.StateConflictError
		require.ErrorAs(t, err, &conflict, "status=%s", status)
	}

	_, err = f.tracker.Advance(ctx, dist.ID, "bay_len_troi")
	var validation *relieferr.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestAdvance_CancellationRestoresStockAndReopensMatching(t *testing.T) {
	f := setupFixture(t, 50, 5)
	ctx := context.Background()

	dist, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    50,
	})
	require.NoError(t, err)

	// Stock hit zero on allocation
	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResourceStatusOutOfStock, resource.Status)

	_, err = f.tracker.Advance(ctx, dist.ID, models.DistributionStatusCancelled)
	require.NoError(t, err)

	resource, err = f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), resource.Quantity)
	assert.Equal(t, models.ResourceStatusReady, resource.Status)

	request, err := f.store.GetRequest(ctx, f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingUnmatched, request.MatchingStatus)
	assert.Nil(t, request.MatchedResourceID)
}

func TestAdvance_TerminalDistributionsStayTerminal(t *testing.T) {
	f := setupFixture(t, 50, 5)
	ctx := context.Background()

	dist, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    10,
	})
	require.NoError(t, err)

	_, err = f.tracker.Advance(ctx, dist.ID, models.DistributionStatusCancelled)
	require.NoError(t, err)

	_, err = f.tracker.Advance(ctx, dist.ID, models.DistributionStatusShipping)
	var conflict *relieferr.StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCancelActive_ReleasesEverything(t *testing.T) {
	f := setupFixture(t, 80, 5)
	ctx := context.Background()

	_, err := f.tracker.Create(ctx, CreateParams{
		RequestID:   f.request.ID,
		VolunteerID: f.volunteer.ID,
		Quantity:    30,
	})
	require.NoError(t, err)

	require.NoError(t, f.tracker.CancelActive(ctx, f.request.ID))

	resource, err := f.store.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), resource.Quantity)

	active, err := f.store.HasActiveDistribution(ctx, f.request.ID)
	require.NoError(t, err)
	assert.False(t, active)
}
