package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/store"
)

func newTestAccessService(t *testing.T) (*AccessService, *store.MemoryAccessLogStore, *store.MemoryShareStore, *models.Share) {
	t.Helper()
	logs := store.NewMemoryAccessLogStore()
	shares := store.NewMemoryShareStore()
	share := &models.Share{Token: "tok", OwnerID: "owner", CertificateIDs: []string{"c1"}}
	require.NoError(t, shares.Insert(context.Background(), share))
	return NewAccessService(logs, shares), logs, shares, share
}

func TestRecordAccessCounters(t *testing.T) {
	svc, logs, shares, share := newTestAccessService(t)
	shareID := share.ID.Hex()

	const views, downloads = 3, 2
	for i := 0; i < views; i++ {
		require.NoError(t, svc.RecordAccess(context.Background(), RecordAccessInput{
			ShareID:       shareID,
			CertificateID: "c1",
			AccessType:    models.AccessView,
			AccessMethod:  models.MethodLink,
		}))
	}
	for i := 0; i < downloads; i++ {
		require.NoError(t, svc.RecordAccess(context.Background(), RecordAccessInput{
			ShareID:       shareID,
			CertificateID: "c1",
			AccessType:    models.AccessDownload,
			AccessMethod:  models.MethodLink,
		}))
	}

	got, err := shares.FindByID(context.Background(), shareID)
	require.NoError(t, err)
	assert.Equal(t, views, got.ViewCount)
	assert.Equal(t, downloads, got.DownloadCount)

	entries, err := logs.ListByShare(context.Background(), shareID)
	require.NoError(t, err)
	assert.Len(t, entries, views+downloads)

	// Entries are immutable: a second read returns the same records.
	again, err := logs.ListByShare(context.Background(), shareID)
	require.NoError(t, err)
	assert.Equal(t, entries, again)
	for _, e := range entries {
		assert.False(t, e.Timestamp.IsZero())
		assert.False(t, e.ID.IsZero())
	}
}

func TestRecordAccessEmailAndPrintSkipCounters(t *testing.T) {
	svc, _, shares, share := newTestAccessService(t)
	shareID := share.ID.Hex()

	for _, at := range []models.AccessType{models.AccessEmail, models.AccessPrint} {
		require.NoError(t, svc.RecordAccess(context.Background(), RecordAccessInput{
			ShareID:        shareID,
			CertificateID:  "c1",
			AccessType:     at,
			AccessMethod:   models.MethodEmail,
			RecipientEmail: "friend@example.com",
		}))
	}

	got, err := shares.FindByID(context.Background(), shareID)
	require.NoError(t, err)
	assert.Zero(t, got.ViewCount)
	assert.Zero(t, got.DownloadCount)
}

func TestRecordAccessUnknownType(t *testing.T) {
	svc, _, _, share := newTestAccessService(t)

	err := svc.RecordAccess(context.Background(), RecordAccessInput{
		ShareID:       share.ID.Hex(),
		CertificateID: "c1",
		AccessType:    models.AccessType("upload"),
		AccessMethod:  models.MethodLink,
	})
	assert.ErrorIs(t, err, ErrUnknownAccessType)
}

func TestRecordAccessWithoutShare(t *testing.T) {
	svc, logs, _, _ := newTestAccessService(t)

	// Direct owner access has no share; only the audit entry is written.
	require.NoError(t, svc.RecordAccess(context.Background(), RecordAccessInput{
		CertificateID: "c1",
		AccessType:    models.AccessDownload,
		AccessMethod:  models.MethodDirect,
	}))

	entries, err := logs.ListByCertificate(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ShareID)
}

// failingLogStore always fails to append.
type failingLogStore struct{}

func (failingLogStore) Append(context.Context, *models.AccessLogEntry) error {
	return errors.New("log store down")
}
func (failingLogStore) ListByShare(context.Context, string) ([]models.AccessLogEntry, error) {
	return nil, errors.New("log store down")
}
func (failingLogStore) ListByCertificate(context.Context, string) ([]models.AccessLogEntry, error) {
	return nil, errors.New("log store down")
}

func TestRecordAccessLogFailureIsNonFatal(t *testing.T) {
	shares := store.NewMemoryShareStore()
	share := &models.Share{Token: "tok", OwnerID: "owner"}
	require.NoError(t, shares.Insert(context.Background(), share))
	svc := NewAccessService(failingLogStore{}, shares)

	err := svc.RecordAccess(context.Background(), RecordAccessInput{
		ShareID:       share.ID.Hex(),
		CertificateID: "c1",
		AccessType:    models.AccessView,
		AccessMethod:  models.MethodLink,
	})
	assert.NoError(t, err, "a broken audit trail must not block access")

	got, err := shares.FindByID(context.Background(), share.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)
}

func TestRecordAccessDownloadLimitSurfaces(t *testing.T) {
	shares := store.NewMemoryShareStore()
	one := 1
	share := &models.Share{Token: "tok", OwnerID: "owner", MaxDownloads: &one, DownloadCount: 1}
	require.NoError(t, shares.Insert(context.Background(), share))
	svc := NewAccessService(store.NewMemoryAccessLogStore(), shares)

	err := svc.RecordAccess(context.Background(), RecordAccessInput{
		ShareID:       share.ID.Hex(),
		CertificateID: "c1",
		AccessType:    models.AccessDownload,
		AccessMethod:  models.MethodLink,
	})
	assert.ErrorIs(t, err, store.ErrDownloadLimit)
}
