package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReliefRequest is a citizen's ask for aid. UserID is nil for anonymous
// submissions, which is legitimate: notification fan-out skips them silently.
type ReliefRequest struct {
	ID     primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID *primitive.ObjectID `bson:"id_nguoi_dung,omitempty" json:"id_nguoi_dung,omitempty"`

	RequestType string `bson:"loai_yeu_cau" json:"loai_yeu_cau" validate:"required,min=3,max=200"`
	Description string `bson:"mo_ta" json:"mo_ta" validate:"required,min=5,max=1000"`
	People      int    `bson:"so_nguoi" json:"so_nguoi" validate:"required,min=1"`
	Urgency     string `bson:"do_uu_tien" json:"do_uu_tien" validate:"required,oneof=thap trung_binh cao"`

	Location Coordinates `bson:"location" json:"location" validate:"required"`

	// Lifecycle and approval. The two columns move together per the
	// workflow engine; nothing else writes them.
	Status         string              `bson:"trang_thai" json:"trang_thai"`
	ApprovalStatus string              `bson:"trang_thai_phe_duyet" json:"trang_thai_phe_duyet"`
	ApproverID     *primitive.ObjectID `bson:"id_nguoi_phe_duyet,omitempty" json:"id_nguoi_phe_duyet,omitempty"`
	ApprovedAt     *time.Time          `bson:"thoi_gian_phe_duyet,omitempty" json:"thoi_gian_phe_duyet,omitempty"`
	RejectReason   string              `bson:"ly_do_tu_choi,omitempty" json:"ly_do_tu_choi,omitempty"`

	// Priority and matching
	PriorityScore     int                 `bson:"diem_uu_tien" json:"diem_uu_tien"`
	NearestDistance   *float64            `bson:"khoang_cach_gan_nhat,omitempty" json:"khoang_cach_gan_nhat,omitempty"`
	MatchedResourceID *primitive.ObjectID `bson:"id_nguon_luc_match,omitempty" json:"id_nguon_luc_match,omitempty"`
	MatchingStatus    string              `bson:"trang_thai_matching" json:"trang_thai_matching"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Urgency levels
const (
	UrgencyLow    = "thap"
	UrgencyMedium = "trung_binh"
	UrgencyHigh   = "cao"
)

// Lifecycle statuses
const (
	RequestStatusQueued     = "cho_xu_ly"
	RequestStatusInProgress = "dang_xu_ly"
	RequestStatusCompleted  = "hoan_thanh"
	RequestStatusCancelled  = "huy_bo"
	RequestStatusRejected   = "bi_tu_choi"
)

// Approval statuses. Transitions are one-way: corrections need a new request.
const (
	ApprovalPending  = "cho_phe_duyet"
	ApprovalApproved = "da_phe_duyet"
	ApprovalRejected = "tu_choi"
)

// Matching statuses. chua_match means "not yet attempted"; khong_match means
// an attempt ran and found nothing compatible.
const (
	MatchingUnmatched = "chua_match"
	MatchingMatched   = "da_match"
	MatchingNoMatch   = "khong_match"
)

func (r *ReliefRequest) IsAnonymous() bool {
	return r.UserID == nil
}

func (r *ReliefRequest) IsPendingApproval() bool {
	return r.ApprovalStatus == ApprovalPending
}

func (r *ReliefRequest) IsApproved() bool {
	return r.ApprovalStatus == ApprovalApproved
}

func (r *ReliefRequest) IsMatched() bool {
	return r.MatchingStatus == MatchingMatched
}

// IsTerminal reports whether the lifecycle reached a final state
func (r *ReliefRequest) IsTerminal() bool {
	switch r.Status {
	case RequestStatusCompleted, RequestStatusCancelled, RequestStatusRejected:
		return true
	}
	return false
}

func IsValidUrgency(urgency string) bool {
	switch urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

func AllUrgencies() []string {
	return []string{UrgencyLow, UrgencyMedium, UrgencyHigh}
}

// GetRequestStatusTranslation returns the display name of a lifecycle status
func GetRequestStatusTranslation(status string) string {
	translations := map[string]string{
		RequestStatusQueued:     "Chờ xử lý",
		RequestStatusInProgress: "Đang xử lý",
		RequestStatusCompleted:  "Hoàn thành",
		RequestStatusCancelled:  "Hủy bỏ",
		RequestStatusRejected:   "Bị từ chối",
	}
	if translation, exists := translations[status]; exists {
		return translation
	}
	return status
}

// GetApprovalStatusTranslation returns the display name of an approval status
func GetApprovalStatusTranslation(status string) string {
	translations := map[string]string{
		ApprovalPending:  "Chờ phê duyệt",
		ApprovalApproved: "Đã phê duyệt",
		ApprovalRejected: "Từ chối",
	}
	if translation, exists := translations[status]; exists {
		return translation
	}
	return status
}

// GetUrgencyTranslation returns the display name of an urgency level
func GetUrgencyTranslation(urgency string) string {
	translations := map[string]string{
		UrgencyLow:    "Thấp",
		UrgencyMedium: "Trung bình",
		UrgencyHigh:   "Cao",
	}
	if translation, exists := translations[urgency]; exists {
		return translation
	}
	return urgency
}
