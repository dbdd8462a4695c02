package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/services"
	"github.com/adhikramm/CertWallet/internal/store"
)

var (
	certService   *services.CertificateService
	accessService *services.AccessService
)

// InitCertHandler wires the certificate and access services into the
// wallet routes.
func InitCertHandler(certs *services.CertificateService, access *services.AccessService) {
	certService = certs
	accessService = access
}

// UploadCertificateHandler handles multipart certificate uploads.
func UploadCertificateHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to retrieve file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read file"})
	}

	cert, err := certService.UploadCertificate(c.Context(), userID, services.UploadCertificateInput{
		Title:       c.FormValue("title"),
		Issuer:      c.FormValue("issuer"),
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{
		"message":     "Certificate uploaded successfully",
		"certificate": cert,
	})
}

// ListCertificatesHandler returns the authenticated user's wallet.
func ListCertificatesHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	certs, err := certService.ListByOwner(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{"certificates": certs})
}

// GetCertificateMetadataHandler returns one certificate's metadata.
func GetCertificateMetadataHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	certID := c.Params("id")

	cert, err := certService.GetMetadata(c.Context(), certID, userID)
	if err != nil {
		return certErrorResponse(c, err)
	}

	return c.JSON(cert)
}

// DownloadCertificateHandler gives the owner a short-lived download URL for
// their own certificate and records a direct access event.
func DownloadCertificateHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	certID := c.Params("id")

	cert, err := certService.GetMetadata(c.Context(), certID, userID)
	if err != nil {
		return certErrorResponse(c, err)
	}

	url, err := certService.PresignDownload(c.Context(), cert, 10*time.Minute)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	// Owner downloads bypass share counters but still leave an audit entry.
	_ = accessService.RecordAccess(c.Context(), services.RecordAccessInput{
		CertificateID: certID,
		AccessType:    models.AccessDownload,
		AccessMethod:  models.MethodDirect,
		UserAgent:     c.Get("User-Agent"),
	})

	return c.JSON(fiber.Map{
		"download_url": url,
		"expires_in":   "10 minutes",
	})
}

// DeleteCertificateHandler removes a certificate and its stored file.
func DeleteCertificateHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	certID := c.Params("id")

	if err := certService.Delete(c.Context(), certID, userID); err != nil {
		return certErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "Certificate deleted successfully"})
}

// CertificateHistoryHandler returns the audit trail for one certificate.
func CertificateHistoryHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	certID := c.Params("id")

	if _, err := certService.GetMetadata(c.Context(), certID, userID); err != nil {
		return certErrorResponse(c, err)
	}

	entries, err := accessService.HistoryByCertificate(c.Context(), certID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{"history": entries})
}

func certErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Certificate not found"})
	case errors.Is(err, services.ErrNotCertificateOwner):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}
}
