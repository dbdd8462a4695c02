package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/store"
)

// Rejection reasons surfaced on the public share path.
const (
	ReasonRevoked         = "revoked"
	ReasonExpired         = "expired"
	ReasonDownloadLimit   = "download_limit"
	ReasonInvalidPassword = "invalid_password"
	ReasonNotFound        = "not_found"
	ReasonTooManyAttempts = "too_many_attempts"
)

// Resolution statuses.
const (
	StatusOK               = "ok"
	StatusPasswordRequired = "password_required"
	StatusRejected         = "rejected"
)

var (
	ErrEmptyCertificateSet = errors.New("share must reference at least one certificate")
	ErrInvalidExpiry       = errors.New("expiry days must be zero or positive")
	ErrInvalidMaxDownloads = errors.New("max downloads must be positive")
	ErrNotShareOwner       = errors.New("certificate does not belong to share owner")
)

// Resolution is the validator's decision for one access attempt. Expected
// rejections travel as values, not errors; only infrastructure failures
// surface as errors.
type Resolution struct {
	Status string
	Reason string
	Share  *models.Share
}

func rejected(reason string) *Resolution {
	return &Resolution{Status: StatusRejected, Reason: reason}
}

// ShareLink is the result of share creation. Unsynced marks a share that
// only exists in the process-local fallback store and will not survive a
// restart; callers must surface that state, never hide it.
type ShareLink struct {
	Share    *models.Share
	URL      string
	Unsynced bool
}

type CreateShareInput struct {
	CertificateIDs []string
	ExpiryDays     int
	Password       string
	MaxDownloads   *int
}

// ShareService owns the share lifecycle: token generation, validation,
// and revocation.
type ShareService struct {
	shares   store.ShareStore
	certs    store.CertificateStore
	baseURL  string
	fallback store.ShareStore // nil unless ephemeral degradation is enabled
	attempts *attemptLimiter
	now      func() time.Time
}

func NewShareService(shares store.ShareStore, certs store.CertificateStore, baseURL string) *ShareService {
	return &ShareService{
		shares:   shares,
		certs:    certs,
		baseURL:  baseURL,
		attempts: newAttemptLimiter(10, 15*time.Minute),
		now:      time.Now,
	}
}

// WithEphemeralFallback enables best-effort share creation: if the durable
// store is unavailable, the share is kept in-process and flagged Unsynced.
func (s *ShareService) WithEphemeralFallback(fallback store.ShareStore) *ShareService {
	s.fallback = fallback
	return s
}

func generateSecureToken() (string, error) {
	token := make([]byte, 16)
	_, err := rand.Read(token)
	if err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// CreateShare builds and persists a share covering the given certificates
// and returns the shareable URL. The password, when present, is hashed
// before the record is stored and the plaintext is discarded.
func (s *ShareService) CreateShare(ctx context.Context, ownerID string, in CreateShareInput) (*ShareLink, error) {
	if len(in.CertificateIDs) == 0 {
		return nil, ErrEmptyCertificateSet
	}
	if in.ExpiryDays < 0 {
		return nil, ErrInvalidExpiry
	}
	if in.MaxDownloads != nil && *in.MaxDownloads <= 0 {
		return nil, ErrInvalidMaxDownloads
	}

	certs, err := s.certs.FindByIDs(ctx, in.CertificateIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to verify certificates: %w", err)
	}
	if len(certs) != len(in.CertificateIDs) {
		return nil, store.ErrNotFound
	}
	for _, cert := range certs {
		if cert.OwnerID != ownerID {
			return nil, ErrNotShareOwner
		}
	}

	now := s.now()
	share := &models.Share{
		OwnerID:        ownerID,
		CertificateIDs: in.CertificateIDs,
		CreatedAt:      now,
	}
	if in.ExpiryDays > 0 {
		expires := now.Add(time.Duration(in.ExpiryDays) * 24 * time.Hour)
		share.ExpiresAt = &expires
	}
	if in.MaxDownloads != nil {
		md := *in.MaxDownloads
		share.MaxDownloads = &md
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		share.IsPasswordProtected = true
		share.PasswordHash = hash
	}

	// 128 bits of entropy makes collisions practically impossible, but the
	// unique index still backstops it; retry a few times on a duplicate.
	var insertErr error
	for attempt := 0; attempt < 3; attempt++ {
		share.Token, err = generateSecureToken()
		if err != nil {
			return nil, err
		}
		insertErr = s.shares.Insert(ctx, share)
		if !errors.Is(insertErr, store.ErrDuplicateToken) {
			break
		}
	}
	if insertErr != nil {
		if s.fallback == nil {
			return nil, fmt.Errorf("failed to persist share: %w", insertErr)
		}
		log.Printf("share store unavailable, keeping share in ephemeral store: %v", insertErr)
		if err := s.fallback.Insert(ctx, share); err != nil {
			return nil, fmt.Errorf("failed to persist share: %w", insertErr)
		}
		return &ShareLink{Share: share, URL: s.URLFor(share.Token), Unsynced: true}, nil
	}

	return &ShareLink{Share: share, URL: s.URLFor(share.Token)}, nil
}

// URLFor returns the full shareable URL for a token.
func (s *ShareService) URLFor(token string) string {
	return fmt.Sprintf("%s/s/%s", s.baseURL, token)
}

func (s *ShareService) findByToken(ctx context.Context, token string) (*models.Share, error) {
	share, err := s.shares.FindByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) && s.fallback != nil {
		return s.fallback.FindByToken(ctx, token)
	}
	return share, err
}

// Resolve evaluates the share state machine for one access attempt:
// revoked, then expired, then download limit, then password gate. A spent
// download cap rejects all further access to the share, not just downloads.
func (s *ShareService) Resolve(ctx context.Context, token string) (*Resolution, error) {
	share, err := s.findByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	return s.evaluate(share, false), nil
}

// VerifyAccess is the idempotent password-check operation for protected
// shares. Attempts are rate limited per token so wrong passwords cannot be
// ground through the open endpoint.
func (s *ShareService) VerifyAccess(ctx context.Context, token, password string) (*Resolution, error) {
	share, err := s.findByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	// Revocation, expiry and the download cap still win over a correct
	// password; only then does the password itself get checked.
	res := s.evaluate(share, true)
	if res.Status == StatusRejected {
		return res, nil
	}
	if !share.IsPasswordProtected {
		return res, nil
	}

	if !s.attempts.allow(token) {
		return rejected(ReasonTooManyAttempts), nil
	}
	if !VerifyPassword(password, share.PasswordHash) {
		return rejected(ReasonInvalidPassword), nil
	}
	s.attempts.reset(token)
	return &Resolution{Status: StatusOK, Share: share}, nil
}

// evaluate runs the ordered state checks. When skipPasswordGate is set the
// caller handles the password itself (the verify path).
func (s *ShareService) evaluate(share *models.Share, skipPasswordGate bool) *Resolution {
	switch {
	case share.IsRevoked:
		return rejected(ReasonRevoked)
	case share.Expired(s.now()):
		return rejected(ReasonExpired)
	case share.DownloadsExhausted():
		return rejected(ReasonDownloadLimit)
	case share.IsPasswordProtected && !skipPasswordGate:
		return &Resolution{Status: StatusPasswordRequired, Share: share}
	default:
		return &Resolution{Status: StatusOK, Share: share}
	}
}

// Revoke flips the share to revoked for good. Revoking twice is a no-op.
func (s *ShareService) Revoke(ctx context.Context, ownerID, shareID string) error {
	err := s.shares.Revoke(ctx, shareID, ownerID)
	if errors.Is(err, store.ErrNotFound) && s.fallback != nil {
		return s.fallback.Revoke(ctx, shareID, ownerID)
	}
	return err
}

// ListByOwner returns the owner's shares, newest first.
func (s *ShareService) ListByOwner(ctx context.Context, ownerID string) ([]models.Share, error) {
	return s.shares.FindByOwner(ctx, ownerID)
}

// GetOwned returns the share if it belongs to ownerID.
func (s *ShareService) GetOwned(ctx context.Context, ownerID, shareID string) (*models.Share, error) {
	share, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return share, nil
}

// attemptLimiter counts wrong-password attempts per token in a fixed
// window. It is process-local; that is sufficient to blunt online guessing
// on a single instance.
type attemptLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	state       map[string]*attemptState
	now         func() time.Time
}

type attemptState struct {
	count       int
	windowStart time.Time
}

func newAttemptLimiter(maxAttempts int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		state:       make(map[string]*attemptState),
		now:         time.Now,
	}
}

func (l *attemptLimiter) allow(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	st, ok := l.state[token]
	if !ok || now.Sub(st.windowStart) > l.window {
		l.state[token] = &attemptState{count: 1, windowStart: now}
		return true
	}
	if st.count >= l.maxAttempts {
		return false
	}
	st.count++
	return true
}

func (l *attemptLimiter) reset(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.state, token)
}
