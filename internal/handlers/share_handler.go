package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/services"
	"github.com/adhikramm/CertWallet/internal/store"
)

var (
	shareService *services.ShareService
	shareMailer  services.Mailer
)

// InitShareHandler wires the share service and mailer into the owner-facing
// share routes.
func InitShareHandler(shares *services.ShareService, mailer services.Mailer) {
	shareService = shares
	shareMailer = mailer
}

// CreateShareHandler creates a share link for a set of certificates.
func CreateShareHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var request struct {
		CertificateIDs []string `json:"certificate_ids"`
		ExpiryDays     int      `json:"expiry_days"`
		Password       string   `json:"password"`
		MaxDownloads   *int     `json:"max_downloads"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	link, err := shareService.CreateShare(c.Context(), userID, services.CreateShareInput{
		CertificateIDs: request.CertificateIDs,
		ExpiryDays:     request.ExpiryDays,
		Password:       request.Password,
		MaxDownloads:   request.MaxDownloads,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyCertificateSet),
			errors.Is(err, services.ErrInvalidExpiry),
			errors.Is(err, services.ErrInvalidMaxDownloads):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Certificate not found"})
		case errors.Is(err, services.ErrNotShareOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
		default:
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
		}
	}

	return c.JSON(fiber.Map{
		"share_url": link.URL,
		"share":     link.Share,
		"unsynced":  link.Unsynced,
	})
}

// ListSharesHandler returns the user's shares with their counters.
func ListSharesHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	shares, err := shareService.ListByOwner(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{"shares": shares})
}

// RevokeShareHandler flips a share to revoked. Revoking twice is fine.
func RevokeShareHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	shareID := c.Params("id")

	if err := shareService.Revoke(c.Context(), userID, shareID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Share not found"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// EmailShareHandler sends the share link to a recipient and records an
// email access event per covered certificate.
func EmailShareHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	shareID := c.Params("id")

	var request struct {
		RecipientEmail string `json:"recipient_email"`
	}
	if err := c.BodyParser(&request); err != nil || request.RecipientEmail == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient_email is required"})
	}

	share, err := shareService.GetOwned(c.Context(), userID, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Share not found"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	user, err := authService.GetProfile(c.Context(), userID)
	senderName := ""
	if err == nil {
		senderName = user.Name
	}

	if err := shareMailer.SendShareLink(c.Context(), request.RecipientEmail, shareService.URLFor(share.Token), senderName); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Failed to send email, please try again"})
	}

	for _, certID := range share.CertificateIDs {
		_ = accessService.RecordAccess(c.Context(), services.RecordAccessInput{
			ShareID:        share.ID.Hex(),
			CertificateID:  certID,
			AccessType:     models.AccessEmail,
			AccessMethod:   models.MethodEmail,
			RecipientEmail: request.RecipientEmail,
			UserAgent:      c.Get("User-Agent"),
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// ShareHistoryHandler returns the audit trail for one of the user's shares.
func ShareHistoryHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	shareID := c.Params("id")

	if _, err := shareService.GetOwned(c.Context(), userID, shareID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Share not found"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	entries, err := accessService.HistoryByShare(c.Context(), shareID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{"history": entries})
}
