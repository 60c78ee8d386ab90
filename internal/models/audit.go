package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditEntry is one link of the append-only hash chain. Entries are never
// updated or deleted; the Fingerprint covers the payload plus the previous
// entry's fingerprint, so any retroactive edit is detectable.
type AuditEntry struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	// ChainID groups entries into one chain. Distribution actions chain
	// under the distribution id; request-level actions without a
	// distribution chain under the zero ObjectID.
	ChainID         primitive.ObjectID  `bson:"id_phan_phoi" json:"id_phan_phoi"`
	RequestID       *primitive.ObjectID `bson:"id_yeu_cau,omitempty" json:"id_yeu_cau,omitempty"`
	Action          string              `bson:"hanh_dong" json:"hanh_dong"`
	Payload         AuditPayload        `bson:"du_lieu" json:"du_lieu"`
	Timestamp       time.Time           `bson:"thoi_gian" json:"thoi_gian"`
	PrevFingerprint string              `bson:"van_tay_truoc" json:"van_tay_truoc"`
	Fingerprint     string              `bson:"van_tay" json:"van_tay"`
}

// Audit actions
const (
	AuditDistributionCreated    = "phan_phoi_tao_moi"
	AuditDistributionShipping   = "phan_phoi_bat_dau"
	AuditDistributionDelivering = "phan_phoi_dang_giao"
	AuditDistributionCompleted  = "phan_phoi_hoan_thanh"
	AuditDistributionCancelled  = "phan_phoi_huy_bo"

	AuditRequestApproved  = "yeu_cau_phe_duyet"
	AuditRequestRejected  = "yeu_cau_tu_choi"
	AuditRequestCancelled = "yeu_cau_huy_bo"
	AuditRequestMatched   = "yeu_cau_match"
	AuditRequestNoMatch   = "yeu_cau_khong_match"
)

// Payload kinds
const (
	AuditPayloadRequest      = "yeu_cau"
	AuditPayloadDistribution = "phan_phoi"
)

// AuditPayload is a tagged union over the known snapshot shapes. Exactly one
// of the pointer fields is set, selected by Kind.
type AuditPayload struct {
	Kind         string                `bson:"kind" json:"kind"`
	Request      *RequestSnapshot      `bson:"yeu_cau,omitempty" json:"yeu_cau,omitempty"`
	Distribution *DistributionSnapshot `bson:"phan_phoi,omitempty" json:"phan_phoi,omitempty"`
}

// RequestSnapshot captures the workflow-relevant fields of a request at the
// moment of the transition.
type RequestSnapshot struct {
	RequestID         primitive.ObjectID  `bson:"id_yeu_cau" json:"id_yeu_cau"`
	RequestType       string              `bson:"loai_yeu_cau" json:"loai_yeu_cau"`
	Status            string              `bson:"trang_thai" json:"trang_thai"`
	ApprovalStatus    string              `bson:"trang_thai_phe_duyet" json:"trang_thai_phe_duyet"`
	MatchingStatus    string              `bson:"trang_thai_matching" json:"trang_thai_matching"`
	MatchedResourceID *primitive.ObjectID `bson:"id_nguon_luc_match,omitempty" json:"id_nguon_luc_match,omitempty"`
	PriorityScore     int                 `bson:"diem_uu_tien" json:"diem_uu_tien"`
	RejectReason      string              `bson:"ly_do_tu_choi,omitempty" json:"ly_do_tu_choi,omitempty"`
	ActorID           *primitive.ObjectID `bson:"id_nguoi_thao_tac,omitempty" json:"id_nguoi_thao_tac,omitempty"`
}

// DistributionSnapshot captures the distribution state at the moment of the
// transition.
type DistributionSnapshot struct {
	DistributionID  primitive.ObjectID `bson:"id_phan_phoi" json:"id_phan_phoi"`
	RequestID       primitive.ObjectID `bson:"id_yeu_cau" json:"id_yeu_cau"`
	ResourceID      primitive.ObjectID `bson:"id_nguon_luc" json:"id_nguon_luc"`
	VolunteerID     primitive.ObjectID `bson:"id_tinh_nguyen_vien" json:"id_tinh_nguyen_vien"`
	Quantity        int64              `bson:"so_luong" json:"so_luong"`
	Status          string             `bson:"trang_thai" json:"trang_thai"`
	TransactionCode string             `bson:"ma_giao_dich" json:"ma_giao_dich"`
}
