package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/store"
)

func seedCertificates(t *testing.T, certs store.CertificateStore, ownerID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		cert := models.Certificate{
			Title:       fmt.Sprintf("cert-%d", i),
			Filename:    fmt.Sprintf("cert-%d.pdf", i),
			ContentType: "application/pdf",
			ObjectKey:   fmt.Sprintf("key-%d", i),
			OwnerID:     ownerID,
			CreatedAt:   time.Now(),
		}
		require.NoError(t, certs.Insert(context.Background(), &cert))
		ids = append(ids, cert.ID.Hex())
	}
	return ids
}

func newTestShareService(t *testing.T) (*ShareService, *store.MemoryShareStore, *store.MemoryCertificateStore) {
	t.Helper()
	shares := store.NewMemoryShareStore()
	certs := store.NewMemoryCertificateStore()
	svc := NewShareService(shares, certs, "http://localhost:8080")
	return svc, shares, certs
}

func TestCreateShareTokenUniqueness(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{CertificateIDs: ids})
		require.NoError(t, err)
		token := link.Share.Token
		assert.Len(t, token, 32, "16 random bytes hex encoded")
		assert.False(t, seen[token], "token %q generated twice", token)
		seen[token] = true
	}
}

func TestCreateShareValidation(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)
	zero := 0

	tests := []struct {
		name    string
		input   CreateShareInput
		wantErr error
	}{
		{"empty certificate set", CreateShareInput{}, ErrEmptyCertificateSet},
		{"negative expiry", CreateShareInput{CertificateIDs: ids, ExpiryDays: -1}, ErrInvalidExpiry},
		{"zero max downloads", CreateShareInput{CertificateIDs: ids, MaxDownloads: &zero}, ErrInvalidMaxDownloads},
		{"unknown certificate", CreateShareInput{CertificateIDs: []string{"deadbeefdeadbeefdeadbeef"}}, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateShare(context.Background(), "owner", tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateShareOwnershipChecked(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "alice", 1)

	_, err := svc.CreateShare(context.Background(), "mallory", CreateShareInput{CertificateIDs: ids})
	assert.ErrorIs(t, err, ErrNotShareOwner)
}

func TestCreateSharePasswordHashed(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		Password:       "hunter2",
	})
	require.NoError(t, err)

	share := link.Share
	assert.True(t, share.IsPasswordProtected)
	assert.NotEmpty(t, share.PasswordHash)
	assert.NotEqual(t, "hunter2", share.PasswordHash)
	assert.True(t, VerifyPassword("hunter2", share.PasswordHash))
}

func TestCreateShareURL(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{CertificateIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/s/"+link.Share.Token, link.URL)
	assert.False(t, link.Unsynced)
}

func TestResolveExpiryBoundary(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		ExpiryDays:     1,
	})
	require.NoError(t, err)
	token := link.Share.Token

	svc.now = func() time.Time { return base.Add(24*time.Hour - time.Second) }
	res, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)

	svc.now = func() time.Time { return base.Add(24*time.Hour + time.Second) }
	res, err = svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestResolveNeverExpires(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		ExpiryDays:     0,
	})
	require.NoError(t, err)
	require.Nil(t, link.Share.ExpiresAt)

	svc.now = func() time.Time { return base.AddDate(100, 0, 0) }
	res, err := svc.Resolve(context.Background(), link.Share.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
}

func TestResolveUnknownToken(t *testing.T) {
	svc, _, _ := newTestShareService(t)

	res, err := svc.Resolve(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestRevocationIsTerminal(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		Password:       "hunter2",
	})
	require.NoError(t, err)
	shareID := link.Share.ID.Hex()
	token := link.Share.Token

	require.NoError(t, svc.Revoke(context.Background(), "owner", shareID))

	res, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, ReasonRevoked, res.Reason)

	// The correct password does not resurrect a revoked share.
	res, err = svc.VerifyAccess(context.Background(), token, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonRevoked, res.Reason)

	// Revoking again is a no-op, not an error.
	assert.NoError(t, svc.Revoke(context.Background(), "owner", shareID))
}

func TestRevokeRequiresOwner(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{CertificateIDs: ids})
	require.NoError(t, err)

	err = svc.Revoke(context.Background(), "mallory", link.Share.ID.Hex())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPasswordGate(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		Password:       "s3cret",
	})
	require.NoError(t, err)
	token := link.Share.Token

	res, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, StatusPasswordRequired, res.Status)

	res, err = svc.VerifyAccess(context.Background(), token, "wrong")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonInvalidPassword, res.Reason)

	res, err = svc.VerifyAccess(context.Background(), token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	require.NotNil(t, res.Share)
	assert.Equal(t, ids, res.Share.CertificateIDs)

	// VerifyAccess is idempotent and stateless across requests.
	res, err = svc.VerifyAccess(context.Background(), token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
}

func TestVerifyAccessRateLimited(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.attempts.now = func() time.Time { return base }

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		Password:       "s3cret",
	})
	require.NoError(t, err)
	token := link.Share.Token

	for i := 0; i < 10; i++ {
		res, err := svc.VerifyAccess(context.Background(), token, "wrong")
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidPassword, res.Reason)
	}

	// Attempts are spent; even the correct password is refused now.
	res, err := svc.VerifyAccess(context.Background(), token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, ReasonTooManyAttempts, res.Reason)

	// A fresh window allows attempts again.
	svc.attempts.now = func() time.Time { return base.Add(16 * time.Minute) }
	res, err = svc.VerifyAccess(context.Background(), token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
}

func TestDownloadLimitRejectsAllAccess(t *testing.T) {
	svc, shares, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)
	one := 1

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		MaxDownloads:   &one,
	})
	require.NoError(t, err)
	shareID := link.Share.ID.Hex()

	require.NoError(t, shares.IncrementDownload(context.Background(), shareID))

	res, err := svc.Resolve(context.Background(), link.Share.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonDownloadLimit, res.Reason)
}

// failingShareStore simulates an unreachable durable store.
type failingShareStore struct{}

var errStoreDown = errors.New("store down")

func (failingShareStore) Insert(context.Context, *models.Share) error { return errStoreDown }
func (failingShareStore) FindByToken(context.Context, string) (*models.Share, error) {
	return nil, store.ErrNotFound
}
func (failingShareStore) FindByID(context.Context, string) (*models.Share, error) {
	return nil, errStoreDown
}
func (failingShareStore) FindByOwner(context.Context, string) ([]models.Share, error) {
	return nil, errStoreDown
}
func (failingShareStore) Revoke(context.Context, string, string) error  { return store.ErrNotFound }
func (failingShareStore) IncrementView(context.Context, string) error   { return errStoreDown }
func (failingShareStore) IncrementDownload(context.Context, string) error {
	return errStoreDown
}

func TestCreateSharePersistenceError(t *testing.T) {
	certs := store.NewMemoryCertificateStore()
	ids := seedCertificates(t, certs, "owner", 1)
	svc := NewShareService(failingShareStore{}, certs, "http://localhost:8080")

	_, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{CertificateIDs: ids})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestCreateShareEphemeralFallback(t *testing.T) {
	certs := store.NewMemoryCertificateStore()
	ids := seedCertificates(t, certs, "owner", 1)
	fallback := store.NewMemoryShareStore()
	svc := NewShareService(failingShareStore{}, certs, "http://localhost:8080").
		WithEphemeralFallback(fallback)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{CertificateIDs: ids})
	require.NoError(t, err)
	assert.True(t, link.Unsynced, "fallback shares must be visibly unsynced")

	// The unsynced share still resolves through the fallback store.
	res, err := svc.Resolve(context.Background(), link.Share.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)

	// And can be revoked there too.
	require.NoError(t, svc.Revoke(context.Background(), "owner", link.Share.ID.Hex()))
	res, err = svc.Resolve(context.Background(), link.Share.Token)
	require.NoError(t, err)
	assert.Equal(t, ReasonRevoked, res.Reason)
}

func TestEndToEndDownloadCap(t *testing.T) {
	svc, shares, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 2)
	two := 2

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		ExpiryDays:     1,
		MaxDownloads:   &two,
	})
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), link.Share.Token)
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, ids, res.Share.CertificateIDs)

	access := NewAccessService(store.NewMemoryAccessLogStore(), shares)
	shareID := link.Share.ID.Hex()
	for i := 0; i < 2; i++ {
		err := access.RecordAccess(context.Background(), RecordAccessInput{
			ShareID:       shareID,
			CertificateID: ids[i%len(ids)],
			AccessType:    models.AccessDownload,
			AccessMethod:  models.MethodLink,
		})
		require.NoError(t, err)
	}

	// The cap is spent: both further recording and validation reject.
	err = access.RecordAccess(context.Background(), RecordAccessInput{
		ShareID:       shareID,
		CertificateID: ids[0],
		AccessType:    models.AccessDownload,
		AccessMethod:  models.MethodLink,
	})
	assert.ErrorIs(t, err, store.ErrDownloadLimit)

	res, err = svc.Resolve(context.Background(), link.Share.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonDownloadLimit, res.Reason)
}

func TestEndToEndPasswordFlow(t *testing.T) {
	svc, _, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		Password:       "open sesame",
	})
	require.NoError(t, err)
	token := link.Share.Token

	res, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, StatusPasswordRequired, res.Status)

	res, err = svc.VerifyAccess(context.Background(), token, "open says me")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidPassword, res.Reason)

	res, err = svc.VerifyAccess(context.Background(), token, "open sesame")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
}

func TestConcurrentDownloadsRespectCap(t *testing.T) {
	svc, shares, certs := newTestShareService(t)
	ids := seedCertificates(t, certs, "owner", 1)
	maxDL := 5

	link, err := svc.CreateShare(context.Background(), "owner", CreateShareInput{
		CertificateIDs: ids,
		MaxDownloads:   &maxDL,
	})
	require.NoError(t, err)

	access := NewAccessService(store.NewMemoryAccessLogStore(), shares)
	shareID := link.Share.ID.Hex()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			results <- access.RecordAccess(context.Background(), RecordAccessInput{
				ShareID:       shareID,
				CertificateID: ids[0],
				AccessType:    models.AccessDownload,
				AccessMethod:  models.MethodLink,
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded, limited := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrDownloadLimit):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, maxDL, succeeded, "exactly maxDL downloads may succeed")
	assert.Equal(t, attempts-maxDL, limited)

	share, err := shares.FindByID(context.Background(), shareID)
	require.NoError(t, err)
	assert.Equal(t, maxDL, share.DownloadCount)
}
