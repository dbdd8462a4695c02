package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/store"
)

var ErrUnknownAccessType = errors.New("unknown access type")

// AccessService is the single writer of access log entries and share
// counters. Entries are append-only; counters only ever go up.
type AccessService struct {
	logs   store.AccessLogStore
	shares store.ShareStore
}

func NewAccessService(logs store.AccessLogStore, shares store.ShareStore) *AccessService {
	return &AccessService{logs: logs, shares: shares}
}

type RecordAccessInput struct {
	ShareID        string
	CertificateID  string
	AccessType     models.AccessType
	AccessMethod   models.AccessMethod
	RecipientEmail string
	UserAgent      string
}

// RecordAccess appends one audit entry and bumps the matching share
// counter. For downloads the counter bump is the atomic check-and-increment
// that enforces max_downloads: store.ErrDownloadLimit from here means the
// download must not be served. Log-write failures are swallowed so a broken
// audit trail never blocks content delivery.
func (s *AccessService) RecordAccess(ctx context.Context, in RecordAccessInput) error {
	if !models.ValidAccessType(in.AccessType) {
		return ErrUnknownAccessType
	}
	if !models.ValidAccessMethod(in.AccessMethod) {
		in.AccessMethod = models.MethodDirect
	}

	if in.ShareID != "" {
		switch in.AccessType {
		case models.AccessDownload:
			if err := s.shares.IncrementDownload(ctx, in.ShareID); err != nil {
				if errors.Is(err, store.ErrDownloadLimit) {
					return err
				}
				return fmt.Errorf("failed to count download: %w", err)
			}
		case models.AccessView:
			if err := s.shares.IncrementView(ctx, in.ShareID); err != nil {
				log.Printf("failed to count view for share %s: %v", in.ShareID, err)
			}
		}
	}

	entry := &models.AccessLogEntry{
		CertificateID:  in.CertificateID,
		AccessType:     in.AccessType,
		AccessMethod:   in.AccessMethod,
		ShareID:        in.ShareID,
		RecipientEmail: in.RecipientEmail,
		UserAgent:      in.UserAgent,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		log.Printf("failed to append access log entry: %v", err)
	}
	return nil
}

// HistoryByShare returns the audit trail for one share.
func (s *AccessService) HistoryByShare(ctx context.Context, shareID string) ([]models.AccessLogEntry, error) {
	return s.logs.ListByShare(ctx, shareID)
}

// HistoryByCertificate returns the audit trail for one certificate.
func (s *AccessService) HistoryByCertificate(ctx context.Context, certificateID string) ([]models.AccessLogEntry, error) {
	return s.logs.ListByCertificate(ctx, certificateID)
}
