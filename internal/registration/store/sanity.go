package store

import (
	"context"
	"fmt"

	"confreg/internal/platform/sanity"
	"confreg/internal/registration/models"
)

// Projection of the fields the receipt pipeline reads.
const registrationQuery = `*[_type == "conferenceRegistration" && registrationId == $registrationId][0]{
  _id, registrationId, registrationType, personalDetails,
  selectedRegistration, selectedRegistrationName, participantCategory,
  sponsorType, accommodationType, accommodationNights, numberOfParticipants,
  pricing, paymentStatus, paymentMethod,
  paypalTransactionId, paypalOrderId, razorpayPaymentId, razorpayOrderId,
  paymentId, paymentOrderId, transactionId,
  paymentAmount, paymentCurrency, paymentDate, paymentCapturedAt, registrationDate,
  receiptEmailSent, receiptEmailSentAt, receiptEmailRecipient,
  pdfReceiptGenerated, pdfReceiptStoredInSanity, webhookProcessed,
  lastAutomaticProcessingResult, lastUpdated, pdfReceipt
}`

// CMS is the subset of the Sanity client used by SanityStore.
type CMS interface {
	Query(ctx context.Context, groq string, params map[string]any, out any) error
	Mutate(ctx context.Context, mutations ...sanity.Mutation) (sanity.MutateResult, error)
	UploadFile(ctx context.Context, filename, contentType string, data []byte) (sanity.Asset, error)
}

// SanityStore keeps registrations in the CMS.
type SanityStore struct {
	cms CMS
}

func NewSanityStore(cms CMS) *SanityStore {
	return &SanityStore{cms: cms}
}

func (s *SanityStore) FindByRegistrationID(ctx context.Context, registrationID string) (*models.Registration, error) {
	var reg models.Registration
	if err := s.cms.Query(ctx, registrationQuery, map[string]any{"registrationId": registrationID}, &reg); err != nil {
		return nil, err
	}
	if reg.DocumentID == "" {
		return nil, &NotFoundError{RegistrationID: registrationID, Attempts: 1}
	}
	return &reg, nil
}

func (s *SanityStore) Patch(ctx context.Context, documentID string, patch models.Patch) error {
	_, err := s.cms.Mutate(ctx, sanity.Mutation{Patch: &sanity.PatchOp{
		ID:    documentID,
		Set:   patch.Set,
		Unset: patch.Unset,
	}})
	if err != nil {
		return fmt.Errorf("patch registration %s: %w", documentID, err)
	}
	return nil
}

func (s *SanityStore) UploadFile(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	asset, err := s.cms.UploadFile(ctx, filename, contentType, data)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	return asset.ID, nil
}
