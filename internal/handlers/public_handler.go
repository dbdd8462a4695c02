package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/services"
	"github.com/adhikramm/CertWallet/internal/store"
)

// ResolveShareHandler is the anonymous entry point for a share link. It
// returns the covered certificates on accept, a password challenge for
// protected shares, or the rejection reason.
func ResolveShareHandler(c *fiber.Ctx) error {
	token := c.Params("token")

	res, err := shareService.Resolve(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	switch res.Status {
	case services.StatusPasswordRequired:
		return c.JSON(fiber.Map{"status": "password_required"})
	case services.StatusRejected:
		return rejectionResponse(c, res.Reason)
	}

	return acceptedShareResponse(c, res.Share)
}

// VerifySharePasswordHandler checks the supplied password for a protected
// share. Safe to call repeatedly; attempts are rate limited per token.
func VerifySharePasswordHandler(c *fiber.Ctx) error {
	token := c.Params("token")

	var request struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := shareService.VerifyAccess(c.Context(), token, request.Password)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}
	if res.Status == services.StatusRejected {
		return rejectionResponse(c, res.Reason)
	}

	return acceptedShareResponse(c, res.Share)
}

// DownloadSharedCertificateHandler hands out a presigned download URL for
// one certificate in the share. The download counter increment is the
// atomic cap check; a spent cap rejects here even when validation passed a
// moment earlier.
func DownloadSharedCertificateHandler(c *fiber.Ctx) error {
	token := c.Params("token")
	certID := c.Params("cert_id")

	res, err := resolveWithOptionalPassword(c, token)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}
	if res.Status == services.StatusPasswordRequired {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "password_required"})
	}
	if res.Status == services.StatusRejected {
		return rejectionResponse(c, res.Reason)
	}

	share := res.Share
	if !shareCovers(share, certID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Certificate not covered by this share"})
	}

	cert, err := certService.GetCertificatesByIDs(c.Context(), []string{certID})
	if err != nil || len(cert) == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	recErr := accessService.RecordAccess(c.Context(), services.RecordAccessInput{
		ShareID:       share.ID.Hex(),
		CertificateID: certID,
		AccessType:    models.AccessDownload,
		AccessMethod:  accessMethodFromQuery(c),
		UserAgent:     c.Get("User-Agent"),
	})
	if recErr != nil {
		if errors.Is(recErr, store.ErrDownloadLimit) {
			return rejectionResponse(c, services.ReasonDownloadLimit)
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	url, err := certService.PresignDownload(c.Context(), &cert[0], 10*time.Minute)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{
		"download_url": url,
		"expires_in":   "10 minutes",
	})
}

// resolveWithOptionalPassword runs the validator, feeding in the password
// query parameter when the share turns out to be protected.
func resolveWithOptionalPassword(c *fiber.Ctx, token string) (*services.Resolution, error) {
	res, err := shareService.Resolve(c.Context(), token)
	if err != nil {
		return nil, err
	}
	if res.Status == services.StatusPasswordRequired {
		if password := c.Query("password"); password != "" {
			return shareService.VerifyAccess(c.Context(), token, password)
		}
	}
	return res, nil
}

// acceptedShareResponse records view events, bumps the view counters and
// returns the certificate set with preview URLs.
func acceptedShareResponse(c *fiber.Ctx, share *models.Share) error {
	certs, err := certService.GetCertificatesByIDs(c.Context(), share.CertificateIDs)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	method := accessMethodFromQuery(c)
	for _, cert := range certs {
		// Recorder failures never block the viewer.
		_ = accessService.RecordAccess(c.Context(), services.RecordAccessInput{
			ShareID:       share.ID.Hex(),
			CertificateID: cert.ID.Hex(),
			AccessType:    models.AccessView,
			AccessMethod:  method,
			UserAgent:     c.Get("User-Agent"),
		})
	}

	previews := certService.PresignPreviews(c.Context(), certs, 10*time.Minute)

	return c.JSON(fiber.Map{
		"status":       "ok",
		"certificates": certs,
		"previews":     previews,
	})
}

func shareCovers(share *models.Share, certID string) bool {
	for _, id := range share.CertificateIDs {
		if id == certID {
			return true
		}
	}
	return false
}

// accessMethodFromQuery reads the optional ?via= hint (qrcode, email,
// direct); anything else counts as a plain link access.
func accessMethodFromQuery(c *fiber.Ctx) models.AccessMethod {
	method := models.AccessMethod(c.Query("via"))
	if !models.ValidAccessMethod(method) {
		return models.MethodLink
	}
	return method
}

func rejectionResponse(c *fiber.Ctx, reason string) error {
	status := fiber.StatusGone
	switch reason {
	case services.ReasonNotFound:
		status = fiber.StatusNotFound
	case services.ReasonInvalidPassword:
		status = fiber.StatusUnauthorized
	case services.ReasonTooManyAttempts:
		status = fiber.StatusTooManyRequests
	}
	return c.Status(status).JSON(fiber.Map{
		"status": "rejected",
		"reason": reason,
	})
}
