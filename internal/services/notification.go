package services

import (
	"context"
	"fmt"

	"relieflink-backend/internal/events"
	"relieflink-backend/internal/models"
	"relieflink-backend/internal/store"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pusher pushes in-app notifications to connected clients in real time.
// Optional: a nil pusher just skips the push.
type Pusher interface {
	PushToUser(userID primitive.ObjectID, notification models.Notification)
}

// NotificationDispatcher translates committed workflow events into per-user
// notification records. The in-app record is always written first; email
// and SMS delivery follow the recipient's stored channel preferences, and a
// failed channel only leaves its flag false, it never fails the event.
type NotificationDispatcher struct {
	store     store.Store
	transport Transport
	pusher    Pusher
	log       *logrus.Entry
}

func NewNotificationDispatcher(s store.Store, transport Transport, pusher Pusher) *NotificationDispatcher {
	if transport == nil {
		transport = NoopTransport{}
	}
	return &NotificationDispatcher{
		store:     s,
		transport: transport,
		pusher:    pusher,
		log:       logrus.WithField("component", "notifications"),
	}
}

// HandleEvent fans one event out to its recipient set. Runs on the event
// bus worker, in transition commit order.
func (d *NotificationDispatcher) HandleEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.TypeRequestCreated:
		return d.notifyAdminsOfNewRequest(ctx, event)
	case events.TypeRequestApproved:
		return d.notifyCitizen(ctx, event, models.NotificationTypeApproved,
			"Yêu cầu được phê duyệt",
			fmt.Sprintf("Yêu cầu %s của bạn đã được phê duyệt. Chúng tôi sẽ sớm liên hệ để hỗ trợ.", event.Request.RequestType))
	case events.TypeRequestRejected:
		return d.notifyCitizen(ctx, event, models.NotificationTypeRejected,
			"Yêu cầu bị từ chối",
			fmt.Sprintf("Yêu cầu %s của bạn đã bị từ chối. Lý do: %s", event.Request.RequestType, event.Request.RejectReason))
	case events.TypeDistributionCreated, events.TypeDistributionAdvanced:
		return d.notifyDistributionParties(ctx, event)
	case events.TypeResourceLowStock:
		return d.notifyAdminsOfLowStock(ctx, event)
	case events.TypeEmergency:
		return d.broadcastEmergency(ctx, event)
	}
	return nil
}

// notifyCitizen targets the requesting citizen only. Anonymous requests
// have no recipient; skipping them silently is correct behavior, not an
// error.
func (d *NotificationDispatcher) notifyCitizen(ctx context.Context, event events.Event, notificationType, title, body string) error {
	request := event.Request
	if request.IsAnonymous() {
		d.log.WithField("request_id", request.ID.Hex()).
			Debug("anonymous request, skipping citizen notification")
		return nil
	}

	requestID := request.ID
	return d.deliver(ctx, models.Notification{
		SenderID:    event.ActorID,
		RecipientID: *request.UserID,
		RequestID:   &requestID,
		Type:        notificationType,
		Title:       title,
		Body:        body,
	})
}

func (d *NotificationDispatcher) notifyAdminsOfNewRequest(ctx context.Context, event events.Event) error {
	request := event.Request
	admins, err := d.store.ListUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	senderName := models.GetRoleTranslation(models.RoleCitizen)
	if !request.IsAnonymous() {
		if citizen, err := d.store.GetUser(ctx, *request.UserID); err == nil {
			senderName = citizen.FullName
		}
	}

	requestID := request.ID
	body := fmt.Sprintf("%s đã gửi yêu cầu %s cho %d người. Độ ưu tiên: %s",
		senderName, request.RequestType, request.People, models.GetUrgencyTranslation(request.Urgency))

	for _, admin := range admins {
		if err := d.deliver(ctx, models.Notification{
			RecipientID: admin.ID,
			RequestID:   &requestID,
			Type:        models.NotificationTypeNewRequest,
			Title:       "Yêu cầu cứu trợ mới",
			Body:        body,
		}); err != nil {
			d.log.WithError(err).WithField("admin_id", admin.ID.Hex()).Error("failed to notify admin")
		}
	}
	return nil
}

// notifyDistributionParties targets the requesting citizen (when present)
// and the assigned volunteer.
func (d *NotificationDispatcher) notifyDistributionParties(ctx context.Context, event events.Event) error {
	distribution := event.Distribution
	request := event.Request

	requestID := distribution.RequestID
	title := "Cập nhật phân phối"
	body := fmt.Sprintf("Phân phối cho yêu cầu %s: %s",
		request.RequestType, models.GetDistributionStatusTranslation(distribution.Status))

	notification := models.Notification{
		RequestID: &requestID,
		Type:      models.NotificationTypeDistribution,
		Title:     title,
		Body:      body,
	}

	if !request.IsAnonymous() {
		citizenCopy := notification
		citizenCopy.RecipientID = *request.UserID
		if err := d.deliver(ctx, citizenCopy); err != nil {
			d.log.WithError(err).Error("failed to notify citizen about distribution")
		}
	}

	volunteerCopy := notification
	volunteerCopy.RecipientID = distribution.VolunteerID
	if err := d.deliver(ctx, volunteerCopy); err != nil {
		d.log.WithError(err).Error("failed to notify volunteer about distribution")
	}
	return nil
}

func (d *NotificationDispatcher) notifyAdminsOfLowStock(ctx context.Context, event events.Event) error {
	resource := event.Resource
	admins, err := d.store.ListUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	body := fmt.Sprintf("Nguồn lực %s còn %d %s (ngưỡng tối thiểu %d). Trạng thái: %s",
		resource.Name, resource.Quantity, resource.Unit, resource.MinQuantity,
		models.GetResourceStatusTranslation(resource.Status))

	for _, admin := range admins {
		if err := d.deliver(ctx, models.Notification{
			RecipientID: admin.ID,
			Type:        models.NotificationTypeLowStock,
			Title:       "Cảnh báo tồn kho",
			Body:        body,
		}); err != nil {
			d.log.WithError(err).WithField("admin_id", admin.ID.Hex()).Error("failed to notify admin")
		}
	}
	return nil
}

// broadcastEmergency fans out to the explicit recipient set resolved by the
// caller, excluding admins.
func (d *NotificationDispatcher) broadcastEmergency(ctx context.Context, event events.Event) error {
	title := "THÔNG BÁO KHẨN CẤP"
	body := fmt.Sprintf("[%s] %s", event.Area, event.Message)

	for _, recipient := range event.Recipients {
		if recipient.IsAdmin() {
			continue
		}
		if err := d.deliver(ctx, models.Notification{
			SenderID:    event.ActorID,
			RecipientID: recipient.ID,
			Type:        models.NotificationTypeEmergency,
			Title:       title,
			Body:        body,
		}); err != nil {
			d.log.WithError(err).WithField("user_id", recipient.ID.Hex()).Error("failed to deliver emergency notification")
		}
	}
	return nil
}

// deliver writes the in-app record, pushes it, then attempts the external
// channels the recipient opted into. Transport failures are logged and the
// respective flag stays false for the external retry subsystem.
func (d *NotificationDispatcher) deliver(ctx context.Context, notification models.Notification) error {
	recipient, err := d.store.GetUser(ctx, notification.RecipientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}

	if err := d.store.InsertNotification(ctx, &notification); err != nil {
		return err
	}
	if d.pusher != nil {
		d.pusher.PushToUser(recipient.ID, notification)
	}

	emailSent := false
	if recipient.WantsChannel(models.ChannelEmail) {
		if err := d.transport.Send(ctx, models.ChannelEmail, recipient, notification.Title, notification.Body); err != nil {
			d.log.WithError(err).WithField("notification_id", notification.ID.Hex()).
				Warn("email delivery failed, flag left unset for retry")
		} else {
			emailSent = true
		}
	}

	smsSent := false
	if recipient.WantsChannel(models.ChannelSMS) {
		if err := d.transport.Send(ctx, models.ChannelSMS, recipient, notification.Title, notification.Body); err != nil {
			d.log.WithError(err).WithField("notification_id", notification.ID.Hex()).
				Warn("sms delivery failed, flag left unset for retry")
		} else {
			smsSent = true
		}
	}

	if emailSent || smsSent {
		if err := d.store.MarkNotificationDelivered(ctx, notification.ID, emailSent, smsSent); err != nil {
			d.log.WithError(err).Warn("failed to persist delivery flags")
		}
	}
	return nil
}
