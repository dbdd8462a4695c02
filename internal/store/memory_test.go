package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhikramm/CertWallet/internal/models"
)

func TestMemoryShareStoreTokenUniqueness(t *testing.T) {
	s := NewMemoryShareStore()

	require.NoError(t, s.Insert(context.Background(), &models.Share{Token: "tok", OwnerID: "o"}))
	err := s.Insert(context.Background(), &models.Share{Token: "tok", OwnerID: "o"})
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestMemoryShareStoreRevoke(t *testing.T) {
	s := NewMemoryShareStore()
	share := &models.Share{Token: "tok", OwnerID: "owner"}
	require.NoError(t, s.Insert(context.Background(), share))
	id := share.ID.Hex()

	assert.ErrorIs(t, s.Revoke(context.Background(), id, "other"), ErrNotFound)

	require.NoError(t, s.Revoke(context.Background(), id, "owner"))
	got, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)

	// Idempotent.
	require.NoError(t, s.Revoke(context.Background(), id, "owner"))
}

func TestMemoryShareStoreReturnsCopies(t *testing.T) {
	s := NewMemoryShareStore()
	share := &models.Share{Token: "tok", OwnerID: "owner"}
	require.NoError(t, s.Insert(context.Background(), share))

	got, err := s.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	got.IsRevoked = true

	again, err := s.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, again.IsRevoked, "callers must not mutate stored state")
}

func TestMemoryShareStoreIncrementDownload(t *testing.T) {
	s := NewMemoryShareStore()
	two := 2
	share := &models.Share{Token: "tok", OwnerID: "o", MaxDownloads: &two}
	require.NoError(t, s.Insert(context.Background(), share))
	id := share.ID.Hex()

	require.NoError(t, s.IncrementDownload(context.Background(), id))
	require.NoError(t, s.IncrementDownload(context.Background(), id))
	assert.ErrorIs(t, s.IncrementDownload(context.Background(), id), ErrDownloadLimit)

	got, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.DownloadCount)
}

func TestMemoryShareStoreUncappedDownloads(t *testing.T) {
	s := NewMemoryShareStore()
	share := &models.Share{Token: "tok", OwnerID: "o"}
	require.NoError(t, s.Insert(context.Background(), share))

	for i := 0; i < 50; i++ {
		require.NoError(t, s.IncrementDownload(context.Background(), share.ID.Hex()))
	}
}

func TestMemoryShareStoreConcurrentIncrements(t *testing.T) {
	s := NewMemoryShareStore()
	limit := 10
	share := &models.Share{Token: "tok", OwnerID: "o", MaxDownloads: &limit}
	require.NoError(t, s.Insert(context.Background(), share))
	id := share.ID.Hex()

	var wg sync.WaitGroup
	const workers = 40
	succeeded := make(chan struct{}, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := s.IncrementDownload(context.Background(), id); err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)

	assert.Len(t, succeeded, limit)
	got, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, limit, got.DownloadCount, "no lost updates, no overshoot")
}

func TestMemoryAccessLogAppendOnly(t *testing.T) {
	s := NewMemoryAccessLogStore()

	require.NoError(t, s.Append(context.Background(), &models.AccessLogEntry{
		CertificateID: "c1",
		AccessType:    models.AccessView,
		AccessMethod:  models.MethodLink,
		ShareID:       "s1",
	}))
	entries, err := s.ListByShare(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Mutating the returned slice leaves the log untouched.
	entries[0].AccessType = models.AccessDownload
	again, err := s.ListByShare(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.AccessView, again[0].AccessType)
}

func TestMemoryUserStoreDuplicateEmail(t *testing.T) {
	s := NewMemoryUserStore()

	require.NoError(t, s.Insert(context.Background(), &models.User{Email: "a@example.com"}))
	err := s.Insert(context.Background(), &models.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemoryCertificateStoreOwnerScopedDelete(t *testing.T) {
	s := NewMemoryCertificateStore()
	cert := &models.Certificate{Title: "t", OwnerID: "owner"}
	require.NoError(t, s.Insert(context.Background(), cert))

	assert.ErrorIs(t, s.Delete(context.Background(), cert.ID.Hex(), "other"), ErrNotFound)
	require.NoError(t, s.Delete(context.Background(), cert.ID.Hex(), "owner"))
	_, err := s.FindByID(context.Background(), cert.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}
