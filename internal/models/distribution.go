package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Distribution is the physical handoff of a matched resource to a request,
// executed by a volunteer. Creating one decrements the resource's inventory
// by Quantity; cancelling it before completion restores exactly that amount.
type Distribution struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RequestID   primitive.ObjectID `bson:"id_yeu_cau" json:"id_yeu_cau" validate:"required"`
	ResourceID  primitive.ObjectID `bson:"id_nguon_luc" json:"id_nguon_luc" validate:"required"`
	VolunteerID primitive.ObjectID `bson:"id_tinh_nguyen_vien" json:"id_tinh_nguyen_vien" validate:"required"`

	Quantity        int64  `bson:"so_luong" json:"so_luong" validate:"required,min=1"`
	Status          string `bson:"trang_thai" json:"trang_thai"`
	TransactionCode string `bson:"ma_giao_dich" json:"ma_giao_dich"`

	DispatchedAt time.Time  `bson:"thoi_gian_xuat" json:"thoi_gian_xuat"`
	DeliveredAt  *time.Time `bson:"thoi_gian_giao,omitempty" json:"thoi_gian_giao,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Distribution statuses
const (
	DistributionStatusPreparing  = "dang_chuan_bi"
	DistributionStatusShipping   = "dang_van_chuyen"
	DistributionStatusDelivering = "dang_giao"
	DistributionStatusCompleted  = "hoan_thanh"
	DistributionStatusCancelled  = "huy_bo"
)

// distributionTransitions lists the allowed forward moves. Cancellation is
// allowed from every pre-completed state.
var distributionTransitions = map[string][]string{
	DistributionStatusPreparing:  {DistributionStatusShipping, DistributionStatusCancelled},
	DistributionStatusShipping:   {DistributionStatusDelivering, DistributionStatusCancelled},
	DistributionStatusDelivering: {DistributionStatusCompleted, DistributionStatusCancelled},
	DistributionStatusCompleted:  {},
	DistributionStatusCancelled:  {},
}

// IsActive reports whether the distribution still occupies its request
// (neither completed nor cancelled).
func (d *Distribution) IsActive() bool {
	return d.Status != DistributionStatusCompleted && d.Status != DistributionStatusCancelled
}

func (d *Distribution) IsTerminal() bool {
	return !d.IsActive()
}

// CanAdvanceTo reports whether moving to the target status is a legal
// transition from the current one.
func (d *Distribution) CanAdvanceTo(target string) bool {
	for _, next := range distributionTransitions[d.Status] {
		if next == target {
			return true
		}
	}
	return false
}

func IsValidDistributionStatus(status string) bool {
	switch status {
	case DistributionStatusPreparing, DistributionStatusShipping,
		DistributionStatusDelivering, DistributionStatusCompleted,
		DistributionStatusCancelled:
		return true
	}
	return false
}

// GetDistributionStatusTranslation returns the display name of a distribution status
func GetDistributionStatusTranslation(status string) string {
	translations := map[string]string{
		DistributionStatusPreparing:  "Đang chuẩn bị",
		DistributionStatusShipping:   "Đang vận chuyển",
		DistributionStatusDelivering: "Đang giao",
		DistributionStatusCompleted:  "Hoàn thành",
		DistributionStatusCancelled:  "Hủy bỏ",
	}
	if translation, exists := translations[status]; exists {
		return translation
	}
	return status
}
