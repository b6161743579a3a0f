package store

import (
	"context"
	"fmt"

	"confreg/internal/registration/models"
	"confreg/pkg/platform/sentinel"
)

// Store reads and writes registration documents. Implementations return
// sentinel.ErrNotFound for missing documents.
type Store interface {
	FindByRegistrationID(ctx context.Context, registrationID string) (*models.Registration, error)
	Patch(ctx context.Context, documentID string, patch models.Patch) error
	UploadFile(ctx context.Context, filename, contentType string, data []byte) (assetID string, err error)
}

// NotFoundError reports a registration that did not appear within the
// lookup budget, or a document that vanished before a patch.
type NotFoundError struct {
	RegistrationID string
	DocumentID     string
	Attempts       int
}

func (e *NotFoundError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("registration document %s not found", e.DocumentID)
	}
	return fmt.Sprintf("registration %s not found after %d attempt(s)", e.RegistrationID, e.Attempts)
}

func (e *NotFoundError) Unwrap() error { return sentinel.ErrNotFound }
