package services

import (
	"context"
	"log"
)

// Mailer delivers a share link to a recipient. Actual delivery is an
// external concern; implementations wrap whatever transactional email
// provider the deployment uses.
type Mailer interface {
	SendShareLink(ctx context.Context, recipientEmail, shareURL, senderName string) error
}

// LogMailer is the default Mailer: it only logs the send. Useful for
// development and for deployments where email is handled out of band.
type LogMailer struct{}

func (LogMailer) SendShareLink(_ context.Context, recipientEmail, shareURL, senderName string) error {
	log.Printf("share link email to %s from %s: %s", recipientEmail, senderName, shareURL)
	return nil
}
