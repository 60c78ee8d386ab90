package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReliefCenter is a physical site that holds resources for distribution.
type ReliefCenter struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name     string             `bson:"ten_trung_tam" json:"ten_trung_tam" validate:"required,min=3,max=200"`
	Address  string             `bson:"dia_chi" json:"dia_chi" validate:"required"`
	Location Coordinates        `bson:"location" json:"location" validate:"required"`
	Manager  string             `bson:"nguoi_quan_ly" json:"nguoi_quan_ly"`
	Contact  string             `bson:"so_lien_he" json:"so_lien_he" validate:"omitempty,min=10,max=15"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
