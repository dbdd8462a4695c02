package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Certificate is one uploaded document in a user's wallet. The file content
// lives in object storage under ObjectKey; this record is the metadata.
type Certificate struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Issuer      string             `bson:"issuer,omitempty" json:"issuer,omitempty"`
	Filename    string             `bson:"filename" json:"filename"`
	ContentType string             `bson:"content_type" json:"content_type"`
	Size        int64              `bson:"size" json:"size"`
	ObjectKey   string             `bson:"object_key" json:"-"`
	OwnerID     string             `bson:"owner_id" json:"owner_id"`
	IssuedAt    *time.Time         `bson:"issued_at,omitempty" json:"issued_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
