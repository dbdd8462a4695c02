package store

import (
	"context"
	"errors"

	"github.com/adhikramm/CertWallet/internal/models"
)

var (
	// ErrNotFound means the record does not exist in the store.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateToken means a share token collided with an existing one.
	ErrDuplicateToken = errors.New("duplicate share token")
	// ErrDuplicateEmail means the email is already registered.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrDownloadLimit means the share's download cap is already spent, so
	// the conditional increment did not apply.
	ErrDownloadLimit = errors.New("download limit reached")
)

// ShareStore persists Share records. The token carries a uniqueness
// constraint, and IncrementDownload must be a single atomic
// check-and-increment so concurrent downloads cannot overrun the cap.
type ShareStore interface {
	Insert(ctx context.Context, share *models.Share) error
	FindByToken(ctx context.Context, token string) (*models.Share, error)
	FindByID(ctx context.Context, id string) (*models.Share, error)
	FindByOwner(ctx context.Context, ownerID string) ([]models.Share, error)
	// Revoke flips is_revoked for the owner's share. Revoking an already
	// revoked share is a no-op, not an error.
	Revoke(ctx context.Context, id, ownerID string) error
	IncrementView(ctx context.Context, id string) error
	// IncrementDownload applies a conditional increment: it succeeds only
	// while download_count < max_downloads (or no cap is set), returning
	// ErrDownloadLimit otherwise.
	IncrementDownload(ctx context.Context, id string) error
}

// AccessLogStore is append-only; entries are never mutated or removed.
type AccessLogStore interface {
	Append(ctx context.Context, entry *models.AccessLogEntry) error
	ListByShare(ctx context.Context, shareID string) ([]models.AccessLogEntry, error)
	ListByCertificate(ctx context.Context, certificateID string) ([]models.AccessLogEntry, error)
}

// CertificateStore holds wallet certificate metadata.
type CertificateStore interface {
	Insert(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Certificate, error)
	FindByOwner(ctx context.Context, ownerID string) ([]models.Certificate, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// UserStore holds account records.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}
