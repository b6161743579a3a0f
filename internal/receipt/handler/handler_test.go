package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"confreg/internal/payment/gateway"
	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/events"
	"confreg/internal/receipt/handler/mocks"
	"confreg/internal/receipt/service"
	dErrors "confreg/pkg/domain-errors"
	"confreg/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/receipt-mocks.go -package=mocks Service WebhookVerifier PayPalWebhookVerifier
type ReceiptHandlerSuite struct {
	suite.Suite
	svc      *mocks.MockService
	verifier *mocks.MockWebhookVerifier
	paypal   *mocks.MockPayPalWebhookVerifier
	router   chi.Router
	now      time.Time
}

func TestReceiptHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReceiptHandlerSuite))
}

func (s *ReceiptHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.verifier = mocks.NewMockWebhookVerifier(ctrl)
	s.paypal = mocks.NewMockPayPalWebhookVerifier(ctrl)
	s.now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	h := New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil,
		WithWebhookVerifier(s.verifier),
		WithPayPalWebhookVerifier(s.paypal),
		WithAdminToken("admin-secret"),
	)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *ReceiptHandlerSuite) doneResult() *service.Result {
	return &service.Result{
		RegistrationID: "REG-1",
		TransactionID:  "T1",
		Method:         payment.MethodPayPal,
		State:          service.StateDone,
		EmailSent:      true,
		EmailRecipient: "a@b.com",
		MessageID:      "<m-1@test>",
		PDFGenerated:   true,
		PDFUploaded:    true,
		PDFAssetID:     "file-abc-pdf",
		ProcessedAt:    s.now,
	}
}

func (s *ReceiptHandlerSuite) TestProcessCompletion() {
	s.Run("runs the pipeline", func() {
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.ProcessRequest) (*service.Result, error) {
				s.Equal("REG-1", req.RegistrationID)
				s.Equal(payment.MethodPayPal, req.Method)
				s.Equal("T1", req.Payment["transactionId"])
				s.Equal("a@b.com", req.CustomerEmail)
				s.False(req.ForceRetry)
				return s.doneResult(), nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
			"paymentMethod":  "paypal",
			"customerEmail":  "a@b.com",
			"paymentData":    map[string]any{"transactionId": "T1", "orderId": "O1", "amount": "100.00", "currency": "USD"},
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.DecodeJSON(s.T(), rr)
		s.Equal(true, body["success"])
		s.Equal("T1", body["transactionId"])
		s.Equal(true, body["emailSent"])
		s.Equal(true, body["pdfGenerated"])
		s.Equal(true, body["pdfUploaded"])
		data := body["data"].(map[string]any)
		s.Equal("REG-1", data["registrationId"])
		s.Equal("paypal", data["paymentMethod"])
		s.Equal("file-abc-pdf", data["pdfAssetId"])
		s.Equal("DONE", data["state"])
		s.NotEmpty(rr.Header().Get("X-Request-ID"))
	})

	s.Run("reports an already processed receipt", func() {
		res := s.doneResult()
		res.AlreadyProcessed = true
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).Return(res, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
			"paymentMethod":  "paypal",
			"paymentData":    map[string]any{"transactionId": "T1"},
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.DecodeJSON(s.T(), rr)
		s.Equal(true, body["alreadyProcessed"])
		s.Equal("Receipt already processed", body["message"])
	})

	s.Run("lists required parameters", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
		}))

		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Missing required parameters")
		s.ElementsMatch([]any{"registrationId", "paymentData", "paymentMethod"}, testutil.DecodeJSON(s.T(), rr)["required"])
	})

	s.Run("rejects an unknown payment method", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
			"paymentMethod":  "cash",
			"paymentData":    map[string]any{},
		}))
		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Invalid paymentMethod")
	})

	s.Run("rejects malformed JSON", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRawRequest(http.MethodPost, "/payment/process-completion", []byte("{")))
		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Invalid request body")
	})

	s.Run("maps a missing registration to 404", func() {
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).Return(nil,
			dErrors.Wrap(service.ErrRegistrationNotFound, dErrors.CodeNotFound, "Registration not found"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-404",
			"paymentMethod":  "razorpay",
			"paymentData":    map[string]any{"paymentId": "pay_1"},
		}))

		testutil.AssertFailure(s.T(), rr, http.StatusNotFound, "Registration not found")
		s.Equal("REG-404", testutil.DecodeJSON(s.T(), rr)["registrationId"])
	})

	s.Run("maps a concurrent run to 409", func() {
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).Return(nil,
			dErrors.Wrap(service.ErrAlreadyProcessing, dErrors.CodeConflict, "Receipt processing already in progress"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
			"paymentMethod":  "paypal",
			"paymentData":    map[string]any{},
		}))
		testutil.AssertFailure(s.T(), rr, http.StatusConflict, "Receipt processing already in progress")
	})

	s.Run("hides internal failures", func() {
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).Return(nil, errors.New("sanity: connection refused"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
			"paymentMethod":  "paypal",
			"paymentData":    map[string]any{},
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		body := testutil.DecodeJSON(s.T(), rr)
		s.Equal("Internal server error", body["error"])
		s.NotContains(rr.Body.String(), "connection refused")
	})
}

func (s *ReceiptHandlerSuite) TestStatus() {
	s.Run("returns processing flags", func() {
		sentAt := s.now
		s.svc.EXPECT().Status(gomock.Any(), "REG-1").Return(&service.StatusView{
			RegistrationID:   "REG-1",
			PaymentCompleted: true,
			PaymentStatus:    "completed",
			PaymentMethod:    "paypal",
			EmailSent:        true,
			EmailSentAt:      &sentAt,
			EmailRecipient:   "a@b.com",
			PDFGenerated:     true,
			PDFStored:        true,
			WebhookProcessed: true,
			LastUpdated:      &sentAt,
		}, nil)

		rr := testutil.DoRequest(s.router, httptestGet("/payment/process-completion?registrationId=REG-1"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[statusResponse](s.T(), rr)
		s.True(resp.Success)
		s.Equal("REG-1", resp.RegistrationID)
		s.True(resp.Status.PaymentCompleted)
		s.True(resp.Status.EmailSent)
		s.True(resp.Status.PDFStored)
		s.Equal("a@b.com", resp.Status.EmailRecipient)
		s.Require().NotNil(resp.Status.EmailSentAt)
		s.True(resp.Status.EmailSentAt.Equal(sentAt))
	})

	s.Run("requires a registration id", func() {
		rr := testutil.DoRequest(s.router, httptestGet("/payment/process-completion"))
		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Registration ID is required")
	})

	s.Run("404 for an unknown registration", func() {
		s.svc.EXPECT().Status(gomock.Any(), "REG-404").Return(nil,
			dErrors.Wrap(service.ErrRegistrationNotFound, dErrors.CodeNotFound, "Registration not found"))
		rr := testutil.DoRequest(s.router, httptestGet("/payment/process-completion?registrationId=REG-404"))
		testutil.AssertFailure(s.T(), rr, http.StatusNotFound, "Registration not found")
	})
}

func (s *ReceiptHandlerSuite) TestRetry() {
	s.Run("passes force through", func() {
		s.svc.EXPECT().Retry(gomock.Any(), "REG-1", true, "").Return(s.doneResult(), nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/payment/process-completion", map[string]any{
			"registrationId": "REG-1",
			"forceRetry":     true,
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal(true, testutil.DecodeJSON(s.T(), rr)["emailSent"])
	})

	s.Run("400 when no email is known", func() {
		s.svc.EXPECT().Retry(gomock.Any(), "REG-2", false, "").Return(nil,
			dErrors.Wrap(service.ErrNoRecipient, dErrors.CodeBadRequest, "No email address found for registration"))
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/payment/process-completion", map[string]any{
			"registrationId": "REG-2",
		}))
		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "No email address found for registration")
	})
}

func (s *ReceiptHandlerSuite) TestResendReceipt() {
	s.Run("requires the admin token", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/resend-receipt", map[string]any{
			"registrationId": "REG-1",
		}))
		testutil.AssertErrorCode(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("always forces", func() {
		s.svc.EXPECT().Retry(gomock.Any(), "REG-1", true, "ops@b.com").Return(s.doneResult(), nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/payment/resend-receipt", map[string]any{
			"registrationId": "REG-1",
			"customerEmail":  "ops@b.com",
		})
		rr := testutil.DoRequest(s.router, testutil.WithAdminToken(req, "admin-secret"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})
}

func (s *ReceiptHandlerSuite) TestPayPalCapture() {
	event := payment.PaymentEvent{
		TransactionID: "T1", OrderID: "O1", Amount: "100.00", Currency: "USD",
		Status: "COMPLETED", Method: payment.MethodPayPal, CapturedAt: s.now,
	}

	s.Run("payment success is independent of the receipt", func() {
		s.svc.EXPECT().CaptureAndProcess(gomock.Any(), service.CaptureRequest{
			Method: payment.MethodPayPal, RegistrationID: "REG-1", OrderID: "O1",
		}).Return(&service.CaptureResult{
			Event:      event,
			ReceiptErr: errors.New("registration not found"),
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/paypal/capture-order", map[string]any{
			"orderId": "O1", "registrationId": "REG-1",
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.DecodeJSON(s.T(), rr)
		s.Equal(true, body["success"])
		s.Equal("T1", body["transactionId"])
		s.Equal("100.00", body["amount"])
		s.Equal("registration not found", body["receiptError"])
	})

	s.Run("surfaces capture failures", func() {
		s.svc.EXPECT().CaptureAndProcess(gomock.Any(), gomock.Any()).Return(nil,
			dErrors.Wrap(&gateway.Error{Kind: gateway.KindCapture, Gateway: payment.MethodPayPal, Status: 422},
				dErrors.CodeBadGateway, "ORDER_ALREADY_CAPTURED"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/paypal/capture-order", map[string]any{
			"orderId": "O1", "registrationId": "REG-1",
		}))
		testutil.AssertErrorCode(s.T(), rr, http.StatusBadGateway, "bad_gateway")
	})
}

func (s *ReceiptHandlerSuite) TestRazorpayVerify() {
	s.Run("forwards the signature", func() {
		s.svc.EXPECT().CaptureAndProcess(gomock.Any(), service.CaptureRequest{
			Method: payment.MethodRazorpay, RegistrationID: "REG-1",
			OrderID: "order_1", PaymentID: "pay_1", Signature: "sig",
		}).Return(&service.CaptureResult{
			Event:   payment.PaymentEvent{TransactionID: "pay_1", Method: payment.MethodRazorpay, Currency: "INR", Amount: "50.00"},
			Receipt: &service.Result{RegistrationID: "REG-1", TransactionID: "pay_1", Method: payment.MethodRazorpay, EmailSent: false, Failures: []events.StepFailure{{Step: "email", Error: "smtp"}}},
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/razorpay/verify-payment", map[string]any{
			"razorpay_order_id": "order_1", "razorpay_payment_id": "pay_1",
			"razorpay_signature": "sig", "registrationId": "REG-1",
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.DecodeJSON(s.T(), rr)
		s.Equal("pay_1", body["transactionId"])
		s.NotEmpty(body["receiptError"])
		receipt := body["receipt"].(map[string]any)
		s.Equal([]any{"email"}, receipt["failures"])
	})

	s.Run("requires all checkout fields", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/razorpay/verify-payment", map[string]any{
			"razorpay_order_id": "order_1",
		}))
		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Missing required parameters")
	})
}

func (s *ReceiptHandlerSuite) TestRazorpayWebhook() {
	captured := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_9","amount":500000,"currency":"INR","status":"captured","email":"p@b.com","notes":{"registrationId":"REG-9"}}}}}`)

	s.Run("rejects a bad signature", func() {
		s.verifier.EXPECT().VerifyWebhook(captured, "bad").Return(&gateway.Error{Kind: gateway.KindVerification})
		req := testutil.NewRawRequest(http.MethodPost, "/razorpay/webhook", captured)
		req.Header.Set(razorpaySignatureHeader, "bad")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertErrorCode(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("processes a captured payment", func() {
		s.verifier.EXPECT().VerifyWebhook(captured, "good").Return(nil)
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.ProcessRequest) (*service.Result, error) {
				s.Equal("REG-9", req.RegistrationID)
				s.Equal(payment.MethodRazorpay, req.Method)
				s.Equal("5000.00", req.Payment["amount"])
				s.Equal("pay_9", req.Payment["paymentId"])
				s.Equal("p@b.com", req.CustomerEmail)
				return &service.Result{RegistrationID: "REG-9", TransactionID: "pay_9", Method: payment.MethodRazorpay, EmailSent: true}, nil
			})
		req := testutil.NewRawRequest(http.MethodPost, "/razorpay/webhook", captured)
		req.Header.Set(razorpaySignatureHeader, "good")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("acknowledges other events", func() {
		other := []byte(`{"event":"order.paid","payload":{}}`)
		s.verifier.EXPECT().VerifyWebhook(other, "good").Return(nil)
		req := testutil.NewRawRequest(http.MethodPost, "/razorpay/webhook", other)
		req.Header.Set(razorpaySignatureHeader, "good")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal(true, testutil.DecodeJSON(s.T(), rr)["ignored"])
	})
}

func (s *ReceiptHandlerSuite) TestRazorpayPaymentFailed() {
	failed := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_7","order_id":"order_7","amount":500000,"currency":"INR","status":"failed","error_code":"BAD_REQUEST_ERROR","error_description":"Payment processing cancelled by user","notes":{"registrationId":"REG-7"}}}}}`)

	s.verifier.EXPECT().VerifyWebhook(failed, "good").Return(nil)
	s.svc.EXPECT().MarkPaymentFailed(gomock.Any(), service.PaymentFailure{
		RegistrationID: "REG-7",
		Method:         payment.MethodRazorpay,
		PaymentID:      "pay_7",
		Reason:         "Payment processing cancelled by user",
	}).Return(&service.FailureResult{RegistrationID: "REG-7", Applied: true, PaymentStatus: "failed"}, nil)

	req := testutil.NewRawRequest(http.MethodPost, "/razorpay/webhook", failed)
	req.Header.Set(razorpaySignatureHeader, "good")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.DecodeJSON(s.T(), rr)
	s.Equal("failed", body["paymentStatus"])
	s.Equal("REG-7", body["registrationId"])
	s.NotContains(body, "ignored")
}

const (
	payPalCompleted = `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"T5","custom_id":"REG-5","status":"COMPLETED","amount":{"value":"250.00","currency_code":"EUR"},"create_time":"2025-03-14T09:29:00Z","supplementary_data":{"related_ids":{"order_id":"O5"}}}}`
	payPalDenied    = `{"id":"WH-2","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"T6","custom_id":"REG-6","status":"DECLINED","status_details":{"reason":"DECLINED_BY_RISK_FRAUD_FILTERS"}}}`
)

func (s *ReceiptHandlerSuite) TestPayPalWebhook() {
	s.Run("rejects an unverified delivery", func() {
		s.paypal.EXPECT().VerifyWebhook(gomock.Any(), gomock.Any(), []byte(payPalCompleted)).
			Return(&gateway.Error{Kind: gateway.KindVerification})
		rr := testutil.DoRequest(s.router, testutil.NewRawRequest(http.MethodPost, "/paypal/webhook", []byte(payPalCompleted)))
		testutil.AssertErrorCode(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("processes a completed capture", func() {
		s.paypal.EXPECT().VerifyWebhook(gomock.Any(), gomock.Any(), []byte(payPalCompleted)).Return(nil)
		s.svc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.ProcessRequest) (*service.Result, error) {
				s.Equal("REG-5", req.RegistrationID)
				s.Equal(payment.MethodPayPal, req.Method)
				s.Equal("T5", req.Payment["transactionId"])
				s.Equal("O5", req.Payment["orderId"])
				s.Equal("250.00", req.Payment["amount"])
				s.Equal("EUR", req.Payment["currency"])
				return &service.Result{RegistrationID: "REG-5", TransactionID: "T5", Method: payment.MethodPayPal, EmailSent: true}, nil
			})
		rr := testutil.DoRequest(s.router, testutil.NewRawRequest(http.MethodPost, "/paypal/webhook", []byte(payPalCompleted)))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("T5", testutil.DecodeJSON(s.T(), rr)["transactionId"])
	})

	s.Run("marks a denied capture failed", func() {
		s.paypal.EXPECT().VerifyWebhook(gomock.Any(), gomock.Any(), []byte(payPalDenied)).Return(nil)
		s.svc.EXPECT().MarkPaymentFailed(gomock.Any(), service.PaymentFailure{
			RegistrationID: "REG-6",
			Method:         payment.MethodPayPal,
			PaymentID:      "T6",
			Reason:         "DECLINED_BY_RISK_FRAUD_FILTERS",
		}).Return(&service.FailureResult{RegistrationID: "REG-6", Applied: true, PaymentStatus: "failed"}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRawRequest(http.MethodPost, "/paypal/webhook", []byte(payPalDenied)))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("failed", testutil.DecodeJSON(s.T(), rr)["paymentStatus"])
	})

	s.Run("acknowledges other events", func() {
		other := []byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"O5"}}`)
		s.paypal.EXPECT().VerifyWebhook(gomock.Any(), gomock.Any(), other).Return(nil)
		rr := testutil.DoRequest(s.router, testutil.NewRawRequest(http.MethodPost, "/paypal/webhook", other))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal(true, testutil.DecodeJSON(s.T(), rr)["ignored"])
	})
}

func (s *ReceiptHandlerSuite) TestReceiptPDF() {
	doc := []byte("%PDF-1.3 receipt")

	s.Run("streams the rendered receipt", func() {
		s.svc.EXPECT().RenderReceipt(gomock.Any(), "REG-1").Return(doc, "Payment_Receipt_T1.pdf", nil)
		rr := testutil.DoRequest(s.router, httptestGet("/registration/receipt-pdf?registrationId=REG-1"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("application/pdf", rr.Header().Get("Content-Type"))
		s.Equal(`attachment; filename=Payment_Receipt_T1.pdf`, rr.Header().Get("Content-Disposition"))
		s.Equal(doc, rr.Body.Bytes())
	})

	s.Run("accepts the id in a JSON body", func() {
		s.svc.EXPECT().RenderReceipt(gomock.Any(), "REG-2").Return(doc, "Payment_Receipt_T2.pdf", nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/receipt-pdf", map[string]string{"registrationId": "REG-2"}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("requires a registration id", func() {
		rr := testutil.DoRequest(s.router, httptestGet("/registration/receipt-pdf"))
		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Registration ID is required")
	})

	s.Run("unknown registration", func() {
		s.svc.EXPECT().RenderReceipt(gomock.Any(), "REG-404").
			Return(nil, "", dErrors.New(dErrors.CodeNotFound, "Registration not found"))
		rr := testutil.DoRequest(s.router, httptestGet("/registration/receipt-pdf?registrationId=REG-404"))
		testutil.AssertFailure(s.T(), rr, http.StatusNotFound, "Registration not found")
	})
}

// A webhook redelivery after a completed run reaches the service again and
// is answered from its idempotency guard.
func TestPayPalWebhookRedelivery(t *testing.T) {
	testutil.Given(t, "a verified PayPal webhook route", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		verifier := mocks.NewMockPayPalWebhookVerifier(ctrl)
		verifier.EXPECT().VerifyWebhook(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		r := chi.NewRouter()
		New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, WithPayPalWebhookVerifier(verifier)).Register(r)

		testutil.When(t, "the same completed capture arrives twice", func(t *testing.T) {
			gomock.InOrder(
				svc.EXPECT().Process(gomock.Any(), gomock.Any()).
					Return(&service.Result{RegistrationID: "REG-5", TransactionID: "T5", EmailSent: true}, nil),
				svc.EXPECT().Process(gomock.Any(), gomock.Any()).
					Return(&service.Result{RegistrationID: "REG-5", TransactionID: "T5", AlreadyProcessed: true}, nil),
			)
			first := testutil.DoRequest(r, testutil.NewRawRequest(http.MethodPost, "/paypal/webhook", []byte(payPalCompleted)))
			second := testutil.DoRequest(r, testutil.NewRawRequest(http.MethodPost, "/paypal/webhook", []byte(payPalCompleted)))

			testutil.Then(t, "the first delivery sends the receipt", func(t *testing.T) {
				testutil.AssertStatus(t, first, http.StatusOK)
				assert.Equal(t, true, testutil.DecodeJSON(t, first)["emailSent"])
			})
			testutil.And(t, "the redelivery reports it as already processed", func(t *testing.T) {
				testutil.AssertStatus(t, second, http.StatusOK)
				assert.Equal(t, true, testutil.DecodeJSON(t, second)["alreadyProcessed"])
			})
		})
	})
}

func TestWebhookRouteNeedsVerifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockService(ctrl), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	r := chi.NewRouter()
	h.Register(r)

	for _, path := range []string{"/razorpay/webhook", "/paypal/webhook"} {
		rr := testutil.DoRequest(r, testutil.NewRawRequest(http.MethodPost, path, []byte(`{}`)))
		require.NotEqual(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rr.Code, path)
	}
}

func httptestGet(path string) *http.Request {
	return testutil.NewRawRequest(http.MethodGet, path, nil)
}
