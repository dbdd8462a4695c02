package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessType classifies what was done with a certificate.
type AccessType string

const (
	AccessView     AccessType = "view"
	AccessDownload AccessType = "download"
	AccessEmail    AccessType = "email"
	AccessPrint    AccessType = "print"
)

// AccessMethod classifies how the certificate was reached.
type AccessMethod string

const (
	MethodLink   AccessMethod = "link"
	MethodEmail  AccessMethod = "email"
	MethodDirect AccessMethod = "direct"
	MethodQRCode AccessMethod = "qrcode"
)

// AccessLogEntry is an append-only audit record, one per access event.
// Entries are never updated or deleted.
type AccessLogEntry struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CertificateID  string             `bson:"certificate_id" json:"certificate_id"`
	AccessType     AccessType         `bson:"access_type" json:"access_type"`
	AccessMethod   AccessMethod       `bson:"access_method" json:"access_method"`
	ShareID        string             `bson:"share_id,omitempty" json:"share_id,omitempty"`
	RecipientEmail string             `bson:"recipient_email,omitempty" json:"recipient_email,omitempty"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	UserAgent      string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// ValidAccessType reports whether t is one of the known access types.
func ValidAccessType(t AccessType) bool {
	switch t {
	case AccessView, AccessDownload, AccessEmail, AccessPrint:
		return true
	}
	return false
}

// ValidAccessMethod reports whether m is one of the known access methods.
func ValidAccessMethod(m AccessMethod) bool {
	switch m {
	case MethodLink, MethodEmail, MethodDirect, MethodQRCode:
		return true
	}
	return false
}
