package services

import (
	"context"
	"fmt"
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

// recordingTransport remembers every send and fails the channels listed in
// failChannels.
type recordingTransport struct {
	mu           sync.Mutex
	sends        []string // "channel:email-address"
	failChannels map[string]bool
}

func (t *recordingTransport) Send(_ context.Context, channel string, recipient *models.User, _, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = append(t.sends, channel+":"+recipient.Email)
	if t.failChannels[channel] {
		return &relieferr.TransportFailure{Channel: channel, Err: fmt.Errorf("gateway down")}
	}
	return nil
}

type recordingPusher struct {
	mu     sync.Mutex
	pushed []primitive.ObjectID
}

func (p *recordingPusher) PushToUser(userID primitive.ObjectID, _ models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, userID)
}

func newUser(t *testing.T, s *store.MemoryStore, email string, role models.UserRole, prefs models.NotificationPreferences) models.User {
	t.Helper()
	user := models.User{
		Email:         email,
		FullName:      "Người dùng " + email,
		Role:          role,
		Phone:         "0901234567",
		Address:       "Phường Thuận Hòa, Huế",
		Notifications: prefs,
	}
	require.NoError(t, s.CreateUser(context.Background(), &user))
	return user
}

func allChannels() models.NotificationPreferences {
	return models.NotificationPreferences{Enabled: true, Email: true, SMS: true}
}

func TestHandleEvent_ApprovedNotifiesCitizenOnly(t *testing.T) {
	s := store.NewMemoryStore()
	transport := &recordingTransport{}
	dispatcher := NewNotificationDispatcher(s, transport, nil)
	ctx := context.Background()

	citizen := newUser(t, s, "dan@relieflink.vn", models.RoleCitizen, allChannels())
	admin := newUser(t, s, "admin@relieflink.vn", models.RoleAdmin, allChannels())

	requestID := citizen.ID
	request := &models.ReliefRequest{
		ID:          primitive.NewObjectID(),
		UserID:      &requestID,
		RequestType: "Thực phẩm khẩn cấp",
	}

	require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
		Type:    events.TypeRequestApproved,
		At:      time.Now(),
		Request: request,
	}))

	own, err := s.ListNotifications(ctx, citizen.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, models.NotificationTypeApproved, own[0].Type)
	assert.True(t, own[0].EmailSent)
	assert.True(t, own[0].SMSSent)

	adminInbox, err := s.ListNotifications(ctx, admin.ID, false, 0)
	require.NoError(t, err)
	assert.Empty(t, adminInbox)
}

func TestHandleEvent_AnonymousRequestSkippedSilently(t *testing.T) {
	s := store.NewMemoryStore()
	transport := &recordingTransport{}
	dispatcher := NewNotificationDispatcher(s, transport, nil)

	request := &models.ReliefRequest{
		ID:          primitive.NewObjectID(),
		RequestType: "Chỗ ở tạm thời",
	}

	err := dispatcher.HandleEvent(context.Background(), events.Event{
		Type:    events.TypeRequestApproved,
		At:      time.Now(),
		Request: request,
	})
	require.NoError(t, err)
	assert.Empty(t, transport.sends)
}

func TestHandleEvent_NewRequestFansOutToAdmins(t *testing.T) {
	s := store.NewMemoryStore()
	dispatcher := NewNotificationDispatcher(s, nil, nil)
	ctx := context.Background()

	citizen := newUser(t, s, "dan@relieflink.vn", models.RoleCitizen, allChannels())
	admin1 := newUser(t, s, "admin1@relieflink.vn", models.RoleAdmin, allChannels())
	admin2 := newUser(t, s, "admin2@relieflink.vn", models.RoleAdmin, allChannels())

	citizenID := citizen.ID
	request := &models.ReliefRequest{
		ID:          primitive.NewObjectID(),
		UserID:      &citizenID,
		RequestType: "Hỗ trợ y tế",
		People:      20,
		Urgency:     models.UrgencyHigh,
	}

	require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
		Type:    events.TypeRequestCreated,
		At:      time.Now(),
		Request: request,
	}))

	for _, admin := range []models.User{admin1, admin2} {
		inbox, err := s.ListNotifications(ctx, admin.ID, false, 0)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, models.NotificationTypeNewRequest, inbox[0].Type)
		assert.Contains(t, inbox[0].Body, citizen.FullName)
	}

	// The citizen does not get a copy of their own submission
	own, err := s.ListNotifications(ctx, citizen.ID, false, 0)
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestHandleEvent_DistributionNotifiesCitizenAndVolunteer(t *testing.T) {
	s := store.NewMemoryStore()
	pusher := &recordingPusher{}
	dispatcher := NewNotificationDispatcher(s, nil, pusher)
	ctx := context.Background()

	citizen := newUser(t, s, "dan@relieflink.vn", models.RoleCitizen, allChannels())
	volunteer := newUser(t, s, "vol@relieflink.vn", models.RoleVolunteer, allChannels())

	citizenID := citizen.ID
	request := &models.ReliefRequest{
		ID:          primitive.NewObjectID(),
		UserID:      &citizenID,
		RequestType: "Thực phẩm khẩn cấp",
	}
	dist := &models.Distribution{
		ID:          primitive.NewObjectID(),
		RequestID:   request.ID,
		VolunteerID: volunteer.ID,
		Quantity:    10,
		Status:      models.DistributionStatusShipping,
	}

	require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
		Type:         events.TypeDistributionAdvanced,
		At:           time.Now(),
		Request:      request,
		Distribution: dist,
	}))

	for _, userID := range []primitive.ObjectID{citizen.ID, volunteer.ID} {
		inbox, err := s.ListNotifications(ctx, userID, false, 0)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, models.NotificationTypeDistribution, inbox[0].Type)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{citizen.ID, volunteer.ID}, pusher.pushed)
}

func TestHandleEvent_LowStockAlertsAdmins(t *testing.T) {
	s := store.NewMemoryStore()
	dispatcher := NewNotificationDispatcher(s, nil, nil)
	ctx := context.Background()

	admin := newUser(t, s, "admin@relieflink.vn", models.RoleAdmin, allChannels())

	require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
		Type: events.TypeResourceLowStock,
		At:   time.Now(),
		Resource: &models.Resource{
			ID:          primitive.NewObjectID(),
			Name:        "Nước đóng chai",
			Quantity:    8,
			Unit:        "thùng",
			MinQuantity: 10,
			Status:      models.ResourceStatusReady,
		},
	}))

	inbox, err := s.ListNotifications(ctx, admin.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationTypeLowStock, inbox[0].Type)
	assert.Contains(t, inbox[0].Body, "Nước đóng chai")
}

func TestHandleEvent_EmergencySkipsAdmins(t *testing.T) {
	s := store.NewMemoryStore()
	dispatcher := NewNotificationDispatcher(s, nil, nil)
	ctx := context.Background()

	citizen := newUser(t, s, "dan@relieflink.vn", models.RoleCitizen, allChannels())
	volunteer := newUser(t, s, "vol@relieflink.vn", models.RoleVolunteer, allChannels())
	admin := newUser(t, s, "admin@relieflink.vn", models.RoleAdmin, allChannels())

	require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
		Type:       events.TypeEmergency,
		At:         time.Now(),
		Area:       "Phường Thuận Hòa",
		Message:    "Nước lũ dâng nhanh, sơ tán ngay",
		Recipients: []models.User{citizen, volunteer, admin},
	}))

	for _, userID := range []primitive.ObjectID{citizen.ID, volunteer.ID} {
		inbox, err := s.ListNotifications(ctx, userID, false, 0)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, models.NotificationTypeEmergency, inbox[0].Type)
		assert.Contains(t, inbox[0].Body, "Phường Thuận Hòa")
	}

	adminInbox, err := s.ListNotifications(ctx, admin.ID, false, 0)
	require.NoError(t, err)
	assert.Empty(t, adminInbox)
}

func TestDeliver_ChannelFlagsFollowPreferences(t *testing.T) {
	s := store.NewMemoryStore()
	transport := &recordingTransport{}
	dispatcher := NewNotificationDispatcher(s, transport, nil)
	ctx := context.Background()

	emailOnly := newUser(t, s, "email@relieflink.vn", models.RoleCitizen,
		models.NotificationPreferences{Enabled: true, Email: true, SMS: false})
	optedOut := newUser(t, s, "quiet@relieflink.vn", models.RoleCitizen,
		models.NotificationPreferences{Enabled: false, Email: true, SMS: true})

	for _, user := range []models.User{emailOnly, optedOut} {
		userID := user.ID
		request := &models.ReliefRequest{
			ID:          primitive.NewObjectID(),
			UserID:      &userID,
			RequestType: "Thực phẩm khẩn cấp",
		}
		require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
			Type:    events.TypeRequestApproved,
			At:      time.Now(),
			Request: request,
		}))
	}

	inbox, err := s.ListNotifications(ctx, emailOnly.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.True(t, inbox[0].EmailSent)
	assert.False(t, inbox[0].SMSSent)

	// Disabled notifications still get the in-app record, nothing else
	inbox, err = s.ListNotifications(ctx, optedOut.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.False(t, inbox[0].EmailSent)
	assert.False(t, inbox[0].SMSSent)
	assert.Equal(t, []string{"email:email@relieflink.vn"}, transport.sends)
}

func TestDeliver_TransportFailureLeavesFlagFalse(t *testing.T) {
	s := store.NewMemoryStore()
	transport := &recordingTransport{failChannels: map[string]bool{models.ChannelEmail: true}}
	dispatcher := NewNotificationDispatcher(s, transport, nil)
	ctx := context.Background()

	citizen := newUser(t, s, "dan@relieflink.vn", models.RoleCitizen, allChannels())
	citizenID := citizen.ID
	request := &models.ReliefRequest{
		ID:          primitive.NewObjectID(),
		UserID:      &citizenID,
		RequestType: "Hỗ trợ y tế",
	}

	// The event itself succeeds despite the email failure
	require.NoError(t, dispatcher.HandleEvent(ctx, events.Event{
		Type:    events.TypeRequestApproved,
		At:      time.Now(),
		Request: request,
	}))

	inbox, err := s.ListNotifications(ctx, citizen.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.False(t, inbox[0].EmailSent)
	assert.True(t, inbox[0].SMSSent)
}
