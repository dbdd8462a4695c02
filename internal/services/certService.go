package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/store"
	"github.com/adhikramm/CertWallet/internal/utils"
)

var ErrNotCertificateOwner = errors.New("certificate does not belong to user")

// BlobStorage is the narrow slice of object storage the certificate
// service needs; satisfied by storage.BlobStore.
type BlobStorage interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedGet(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, objectKey string) error
}

// CertificateService manages the wallet: certificate metadata in the store,
// file content in blob storage.
type CertificateService struct {
	certs store.CertificateStore
	blobs BlobStorage
}

func NewCertificateService(certs store.CertificateStore, blobs BlobStorage) *CertificateService {
	return &CertificateService{certs: certs, blobs: blobs}
}

type UploadCertificateInput struct {
	Title       string
	Issuer      string
	Filename    string
	ContentType string
	Data        []byte
	IssuedAt    *time.Time
}

// UploadCertificate stores the file content and its metadata record. The
// two writes run in parallel; if the metadata write fails the uploaded
// object is removed again in the background.
func (s *CertificateService) UploadCertificate(ctx context.Context, ownerID string, in UploadCertificateInput) (models.Certificate, error) {
	if in.Title == "" {
		in.Title = in.Filename
	}
	objectKey := fmt.Sprintf("%s_%s", uuid.NewString(), in.Filename)

	cert := models.Certificate{
		Title:       in.Title,
		Issuer:      in.Issuer,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		ObjectKey:   objectKey,
		OwnerID:     ownerID,
		IssuedAt:    in.IssuedAt,
		CreatedAt:   time.Now(),
	}

	blobResultChan := make(chan error, 1)
	metadataResultChan := make(chan error, 1)

	go func() {
		blobResultChan <- s.blobs.Put(ctx, objectKey, in.Data, in.ContentType)
	}()
	go func() {
		metadataResultChan <- s.certs.Insert(ctx, &cert)
	}()

	blobErr := <-blobResultChan
	metadataErr := <-metadataResultChan

	if blobErr != nil {
		return models.Certificate{}, fmt.Errorf("failed to upload certificate file: %w", blobErr)
	}
	if metadataErr != nil {
		// Try to clean up the uploaded object if metadata creation fails
		go func() {
			if err := s.blobs.Remove(context.Background(), objectKey); err != nil {
				log.Printf("failed to clean up orphaned object %s: %v", objectKey, err)
			}
		}()
		return models.Certificate{}, fmt.Errorf("failed to save certificate metadata: %w", metadataErr)
	}

	return cert, nil
}

// GetCertificatesByIDs fetches metadata for a share's certificate set,
// preserving the share's ordering.
func (s *CertificateService) GetCertificatesByIDs(ctx context.Context, ids []string) ([]models.Certificate, error) {
	return s.certs.FindByIDs(ctx, ids)
}

// ListByOwner returns the user's wallet, newest first.
func (s *CertificateService) ListByOwner(ctx context.Context, ownerID string) ([]models.Certificate, error) {
	return s.certs.FindByOwner(ctx, ownerID)
}

// GetMetadata returns one certificate if it belongs to ownerID.
func (s *CertificateService) GetMetadata(ctx context.Context, id, ownerID string) (*models.Certificate, error) {
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.OwnerID != ownerID {
		return nil, ErrNotCertificateOwner
	}
	return cert, nil
}

// PresignDownload returns a short-lived download URL for the certificate file.
func (s *CertificateService) PresignDownload(ctx context.Context, cert *models.Certificate, expiry time.Duration) (string, error) {
	return s.blobs.PresignedGet(ctx, cert.ObjectKey, expiry)
}

// PresignPreviews generates preview URLs for a batch of certificates in
// parallel, keyed by certificate ID. Certificates whose presign fails are
// simply absent from the result.
func (s *CertificateService) PresignPreviews(ctx context.Context, certs []models.Certificate, expiry time.Duration) map[string]string {
	tasks := make([]utils.ParallelTask, len(certs))
	for i := range certs {
		cert := certs[i]
		tasks[i] = func() (interface{}, error) {
			return s.blobs.PresignedGet(ctx, cert.ObjectKey, expiry)
		}
	}

	results, errs := utils.RunParallelTasks(tasks)
	urls := make(map[string]string, len(certs))
	for i, res := range results {
		if errs[i] != nil {
			continue
		}
		if url, ok := res.(string); ok {
			urls[certs[i].ID.Hex()] = url
		}
	}
	return urls
}

// Delete removes a certificate's metadata and its stored object in parallel.
func (s *CertificateService) Delete(ctx context.Context, id, ownerID string) error {
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cert.OwnerID != ownerID {
		return ErrNotCertificateOwner
	}

	blobDeleteChan := make(chan error, 1)
	metadataDeleteChan := make(chan error, 1)

	go func() {
		blobDeleteChan <- s.blobs.Remove(ctx, cert.ObjectKey)
	}()
	go func() {
		metadataDeleteChan <- s.certs.Delete(ctx, id, ownerID)
	}()

	blobErr := <-blobDeleteChan
	metadataErr := <-metadataDeleteChan

	if blobErr != nil && metadataErr != nil {
		return errors.New("failed to delete from both storage and database")
	} else if blobErr != nil {
		return fmt.Errorf("failed to delete from storage: %w", blobErr)
	} else if metadataErr != nil {
		return fmt.Errorf("failed to delete from database: %w", metadataErr)
	}

	return nil
}
