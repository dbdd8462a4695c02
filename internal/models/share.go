package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Share is one generated link granting access to a fixed set of certificates.
// Counters are mutated only through the access recorder; IsRevoked is one-way.
type Share struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token               string             `bson:"token" json:"-"`
	OwnerID             string             `bson:"owner_id" json:"owner_id"`
	CertificateIDs      []string           `bson:"certificate_ids" json:"certificate_ids"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt           *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	IsPasswordProtected bool               `bson:"is_password_protected" json:"is_password_protected"`
	PasswordHash        string             `bson:"password_hash,omitempty" json:"-"`
	MaxDownloads        *int               `bson:"max_downloads,omitempty" json:"max_downloads,omitempty"`
	DownloadCount       int                `bson:"download_count" json:"download_count"`
	ViewCount           int                `bson:"view_count" json:"view_count"`
	IsRevoked           bool               `bson:"is_revoked" json:"is_revoked"`
}

// Expired reports whether the share has passed its expiry at the given instant.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// DownloadsExhausted reports whether the download cap has been reached.
func (s *Share) DownloadsExhausted() bool {
	return s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads
}
