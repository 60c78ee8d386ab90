package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is created once and never mutated except to flip the read
// flag or the per-channel delivery flags. The core never deletes them.
type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	SenderID    *primitive.ObjectID `bson:"id_nguoi_gui,omitempty" json:"id_nguoi_gui,omitempty"`
	RecipientID primitive.ObjectID  `bson:"id_nguoi_nhan" json:"id_nguoi_nhan"`
	RequestID   *primitive.ObjectID `bson:"id_yeu_cau,omitempty" json:"id_yeu_cau,omitempty"`

	Type  string `bson:"loai_thong_bao" json:"loai_thong_bao"`
	Title string `bson:"tieu_de" json:"tieu_de"`
	Body  string `bson:"noi_dung" json:"noi_dung"`

	// Delivery flags per channel. False means "not delivered yet"; an
	// external subsystem may retry those.
	EmailSent bool `bson:"da_gui_email" json:"da_gui_email"`
	SMSSent   bool `bson:"da_gui_sms" json:"da_gui_sms"`

	IsRead bool       `bson:"da_doc" json:"da_doc"`
	ReadAt *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Notification types
const (
	NotificationTypeNewRequest   = "yeu_cau_moi"
	NotificationTypeApproved     = "phe_duyet"
	NotificationTypeRejected     = "tu_choi"
	NotificationTypeDistribution = "phan_phoi"
	NotificationTypeEmergency    = "khan_cap"
	NotificationTypeLowStock     = "ton_kho_thap"
)

// Delivery channels
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// GetNotificationTypeTranslation returns the display name of a notification type
func GetNotificationTypeTranslation(notificationType string) string {
	translations := map[string]string{
		NotificationTypeNewRequest:   "Yêu cầu mới",
		NotificationTypeApproved:     "Phê duyệt",
		NotificationTypeRejected:     "Từ chối",
		NotificationTypeDistribution: "Phân phối",
		NotificationTypeEmergency:    "Khẩn cấp",
		NotificationTypeLowStock:     "Tồn kho thấp",
	}
	if translation, exists := translations[notificationType]; exists {
		return translation
	}
	return notificationType
}
