package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coordinates is a simple lat/lng pair (WGS84)
type Coordinates struct {
	Lat float64 `bson:"vi_do" json:"vi_do" validate:"required,min=-90,max=90"`
	Lng float64 `bson:"kinh_do" json:"kinh_do" validate:"required,min=-180,max=180"`
}

// NotificationPreferences controls which delivery channels a user accepts.
// In-app records are always created; email/sms follow these flags.
type NotificationPreferences struct {
	Enabled bool `bson:"nhan_thong_bao" json:"nhan_thong_bao"`
	Email   bool `bson:"thong_bao_email" json:"thong_bao_email"`
	SMS     bool `bson:"thong_bao_sms" json:"thong_bao_sms"`
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string             `bson:"email" json:"email" validate:"required,email"`
	PasswordHash string             `bson:"mat_khau" json:"-"`

	FullName string   `bson:"ho_va_ten" json:"ho_va_ten" validate:"required,min=2,max=100"`
	Role     UserRole `bson:"vai_tro" json:"vai_tro" validate:"required"`
	Phone    string   `bson:"so_dien_thoai" json:"so_dien_thoai" validate:"omitempty,min=10,max=15"`
	Address  string   `bson:"dia_chi" json:"dia_chi"`

	Location Coordinates `bson:"location" json:"location"`

	Notifications NotificationPreferences `bson:"thong_bao" json:"thong_bao"`

	IsBlocked bool `bson:"is_blocked" json:"is_blocked"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsVolunteer() bool {
	return u.Role == RoleVolunteer
}

// WantsChannel reports whether the user accepts delivery over the given channel.
// In-app notifications ignore preferences.
func (u *User) WantsChannel(channel string) bool {
	if !u.Notifications.Enabled {
		return false
	}
	switch channel {
	case ChannelEmail:
		return u.Notifications.Email
	case ChannelSMS:
		return u.Notifications.SMS
	}
	return false
}
