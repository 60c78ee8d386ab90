package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resource is a typed, quantified stock of relief material owned by one center.
// Quantity is never negative; reaching zero flips the status to het_hang
// automatically (enforced by the store's allocation operation).
type Resource struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CenterID primitive.ObjectID `bson:"id_trung_tam" json:"id_trung_tam" validate:"required"`

	Name     string `bson:"ten_nguon_luc" json:"ten_nguon_luc" validate:"required,min=2,max=200"`
	Category string `bson:"loai" json:"loai" validate:"required"`
	Quantity int64  `bson:"so_luong" json:"so_luong" validate:"min=0"`
	Unit     string `bson:"don_vi" json:"don_vi" validate:"required"`

	MinQuantity int64  `bson:"so_luong_toi_thieu" json:"so_luong_toi_thieu" validate:"min=0"`
	Status      string `bson:"trang_thai" json:"trang_thai"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Resource statuses
const (
	ResourceStatusReady       = "san_sang"
	ResourceStatusOutOfStock  = "het_hang"
	ResourceStatusMaintenance = "bao_tri"
)

// Resource category families. Matching treats these as the taxonomy keys,
// never as substrings.
const (
	CategoryFood     = "Thực phẩm"
	CategoryWater    = "Nước uống"
	CategoryMedical  = "Y tế"
	CategoryShelter  = "Chỗ ở"
	CategoryClothing = "Quần áo"
	CategoryElectric = "Điện tử"
	CategoryEnergy   = "Năng lượng"
)

func (r *Resource) IsReady() bool {
	return r.Status == ResourceStatusReady
}

// IsLowStock reports whether the quantity sank to or below the minimum
// threshold. The resource stays san_sang; operators get warned instead.
func (r *Resource) IsLowStock() bool {
	return r.Quantity <= r.MinQuantity
}

func IsValidResourceStatus(status string) bool {
	switch status {
	case ResourceStatusReady, ResourceStatusOutOfStock, ResourceStatusMaintenance:
		return true
	}
	return false
}

func IsValidResourceCategory(category string) bool {
	switch category {
	case CategoryFood, CategoryWater, CategoryMedical, CategoryShelter,
		CategoryClothing, CategoryElectric, CategoryEnergy:
		return true
	}
	return false
}

// GetResourceStatusTranslation returns the display name of a resource status
func GetResourceStatusTranslation(status string) string {
	translations := map[string]string{
		ResourceStatusReady:       "Sẵn sàng",
		ResourceStatusOutOfStock:  "Hết hàng",
		ResourceStatusMaintenance: "Bảo trì",
	}
	if translation, exists := translations[status]; exists {
		return translation
	}
	return status
}
