package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adhikramm/CertWallet/internal/models"
)

// MemoryShareStore is a process-local ShareStore. It backs the explicit
// demo/offline mode and the ephemeral fallback for share creation; it is
// never selected implicitly on store errors.
type MemoryShareStore struct {
	mu     sync.Mutex
	byID   map[string]*models.Share
	tokens map[string]string // token -> share id
}

func NewMemoryShareStore() *MemoryShareStore {
	return &MemoryShareStore{
		byID:   make(map[string]*models.Share),
		tokens: make(map[string]string),
	}
}

func (s *MemoryShareStore) Insert(_ context.Context, share *models.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[share.Token]; exists {
		return ErrDuplicateToken
	}
	if share.ID.IsZero() {
		share.ID = primitive.NewObjectID()
	}
	cp := *share
	s.byID[cp.ID.Hex()] = &cp
	s.tokens[cp.Token] = cp.ID.Hex()
	return nil
}

func (s *MemoryShareStore) FindByToken(_ context.Context, token string) (*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryShareStore) FindByID(_ context.Context, id string) (*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *share
	return &cp, nil
}

func (s *MemoryShareStore) FindByOwner(_ context.Context, ownerID string) ([]models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var shares []models.Share
	for _, share := range s.byID {
		if share.OwnerID == ownerID {
			shares = append(shares, *share)
		}
	}
	sort.Slice(shares, func(i, j int) bool {
		return shares[i].CreatedAt.After(shares[j].CreatedAt)
	})
	return shares, nil
}

func (s *MemoryShareStore) Revoke(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.byID[id]
	if !ok || share.OwnerID != ownerID {
		return ErrNotFound
	}
	share.IsRevoked = true
	return nil
}

func (s *MemoryShareStore) IncrementView(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	share.ViewCount++
	return nil
}

func (s *MemoryShareStore) IncrementDownload(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if share.MaxDownloads != nil && share.DownloadCount >= *share.MaxDownloads {
		return ErrDownloadLimit
	}
	share.DownloadCount++
	return nil
}

// MemoryAccessLogStore is an append-only in-memory log.
type MemoryAccessLogStore struct {
	mu      sync.Mutex
	entries []models.AccessLogEntry
}

func NewMemoryAccessLogStore() *MemoryAccessLogStore {
	return &MemoryAccessLogStore{}
}

func (s *MemoryAccessLogStore) Append(_ context.Context, entry *models.AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryAccessLogStore) ListByShare(_ context.Context, shareID string) ([]models.AccessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccessLogEntry
	for _, e := range s.entries {
		if e.ShareID == shareID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryAccessLogStore) ListByCertificate(_ context.Context, certificateID string) ([]models.AccessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccessLogEntry
	for _, e := range s.entries {
		if e.CertificateID == certificateID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MemoryCertificateStore is a process-local CertificateStore.
type MemoryCertificateStore struct {
	mu   sync.Mutex
	byID map[string]*models.Certificate
}

func NewMemoryCertificateStore() *MemoryCertificateStore {
	return &MemoryCertificateStore{byID: make(map[string]*models.Certificate)}
}

func (s *MemoryCertificateStore) Insert(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cert.ID.IsZero() {
		cert.ID = primitive.NewObjectID()
	}
	cp := *cert
	s.byID[cp.ID.Hex()] = &cp
	return nil
}

func (s *MemoryCertificateStore) FindByID(_ context.Context, id string) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

func (s *MemoryCertificateStore) FindByIDs(_ context.Context, ids []string) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	certs := make([]models.Certificate, 0, len(ids))
	for _, id := range ids {
		if cert, ok := s.byID[id]; ok {
			certs = append(certs, *cert)
		}
	}
	return certs, nil
}

func (s *MemoryCertificateStore) FindByOwner(_ context.Context, ownerID string) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var certs []models.Certificate
	for _, cert := range s.byID {
		if cert.OwnerID == ownerID {
			certs = append(certs, *cert)
		}
	}
	sort.Slice(certs, func(i, j int) bool {
		return certs[i].CreatedAt.After(certs[j].CreatedAt)
	})
	return certs, nil
}

func (s *MemoryCertificateStore) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.byID[id]
	if !ok || cert.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// MemoryUserStore is a process-local UserStore.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]string // email -> user id
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) Insert(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	s.byID[cp.ID.Hex()] = &cp
	s.byEmail[cp.Email] = cp.ID.Hex()
	return nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryUserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}
