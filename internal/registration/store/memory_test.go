package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"confreg/internal/registration/models"
	"confreg/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) TestPatchSetsNestedPaths() {
	reg := s.store.Put(models.Registration{
		RegistrationID: "REG-1",
		Pricing:        models.Pricing{TotalPrice: "10", Currency: "EUR", PricingPeriod: "early"},
	})

	err := s.store.Patch(s.ctx, reg.DocumentID, models.Patch{Set: map[string]any{
		"pricing.currency":   "USD",
		"pricing.totalPrice": json.Number("100.00"),
		"paymentStatus":      "completed",
	}})
	s.Require().NoError(err)

	got, err := s.store.FindByRegistrationID(s.ctx, "REG-1")
	s.Require().NoError(err)
	s.Equal("USD", got.Pricing.Currency)
	s.Equal("100.00", got.Pricing.TotalPrice.String())
	s.Equal("early", got.Pricing.PricingPeriod)
	s.Equal(models.PaymentCompleted, got.PaymentStatus)
	s.Len(s.store.Patches(), 1)
}

func (s *InMemoryStoreSuite) TestUnset() {
	reg := s.store.Put(models.Registration{RegistrationID: "REG-2", PDFReceipt: models.NewFileRef("file-1")})
	s.Require().NoError(s.store.Patch(s.ctx, reg.DocumentID, models.Patch{Unset: []string{"pdfReceipt"}}))

	got, err := s.store.FindByRegistrationID(s.ctx, "REG-2")
	s.Require().NoError(err)
	s.Nil(got.PDFReceipt)
}

func (s *InMemoryStoreSuite) TestReturnedCopiesAreIsolated() {
	s.store.Put(models.Registration{RegistrationID: "REG-3"})
	got, err := s.store.FindByRegistrationID(s.ctx, "REG-3")
	s.Require().NoError(err)
	got.ReceiptEmailSent = true

	again, err := s.store.FindByRegistrationID(s.ctx, "REG-3")
	s.Require().NoError(err)
	s.False(again.ReceiptEmailSent)
}

func (s *InMemoryStoreSuite) TestMissing() {
	_, err := s.store.FindByRegistrationID(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Patch(s.ctx, "nope", models.Patch{}), sentinel.ErrNotFound)
}
