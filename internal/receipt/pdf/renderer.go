package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/settings"
	registration "confreg/internal/registration/models"
)

// ErrUnavailable is returned when the PDF engine fails to produce a document.
var ErrUnavailable = errors.New("receipt renderer unavailable")

const (
	pageWidth   = 210.0
	margin      = 15.0
	headerH     = 38.0
	labelWidth  = 55.0
	rowHeight   = 6.5
	qrSize      = 28.0
	pxToMM      = 0.2646
	maxLogoMM   = 40.0
	logoImgName = "logo"
	qrImgName   = "qr"
)

// Renderer turns a receipt Document into PDF bytes.
type Renderer struct {
	logos       LogoFetcher
	logger      *slog.Logger
	compression bool
}

type Option func(*Renderer)

func WithLogoFetcher(f LogoFetcher) Option {
	return func(r *Renderer) { r.logos = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithCompression toggles content stream compression (on by default).
func WithCompression(on bool) Option {
	return func(r *Renderer) { r.compression = on }
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{logger: slog.Default(), compression: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render lays out and renders the receipt for one payment.
func (r *Renderer) Render(ctx context.Context, ev payment.PaymentEvent, reg *registration.Registration, s settings.Settings, generatedAt time.Time) ([]byte, error) {
	return r.RenderDocument(ctx, Layout(ev, reg, s, generatedAt))
}

// RenderDocument renders a resolved document. Output is byte-stable for the
// same document and logo.
func (r *Renderer) RenderDocument(ctx context.Context, doc Document) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: panic: %v", ErrUnavailable, rec)
		}
	}()

	logo := r.loadLogo(ctx, doc.LogoURL)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compression)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetTitle("Payment Receipt", true)
	pdf.SetAuthor(doc.CompanyName, true)
	pdf.SetCreator(doc.CompanyName, true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// header band
	pdf.SetFillColor(doc.HeaderColor.R, doc.HeaderColor.G, doc.HeaderColor.B)
	pdf.Rect(0, 0, pageWidth, headerH, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(margin, 17, tr(doc.CompanyName))
	pdf.SetFont("Helvetica", "", 11)
	pdf.Text(margin, 27, tr(doc.ConferenceTitle))
	if logo != nil {
		r.placeImage(pdf, logoImgName, logo, doc.LogoWidth, doc.LogoHeight)
	}

	// title and QR code
	pdf.SetY(headerH + 10)
	pdf.SetTextColor(Blue.R, Blue.G, Blue.B)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(doc.Title), "", 1, "L", false, 0, "")
	if doc.QRPayload != "" {
		if png, qerr := qrcode.Encode(doc.QRPayload, qrcode.Medium, 256); qerr == nil {
			pdf.RegisterImageOptionsReader(qrImgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
			pdf.ImageOptions(qrImgName, pageWidth-margin-qrSize, headerH+6, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		} else {
			r.logger.WarnContext(ctx, "receipt qr code skipped", "error", qerr)
		}
	}
	pdf.Ln(6)

	for _, sec := range doc.Sections {
		r.section(pdf, tr, sec)
	}

	// contact and footer
	pdf.Ln(4)
	pdf.SetTextColor(TextDark.R, TextDark.G, TextDark.B)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, tr(doc.Contact), "", "L", false)
	pdf.SetY(-30)
	pdf.SetDrawColor(TextMuted.R, TextMuted.G, TextMuted.B)
	pdf.Line(margin, pdf.GetY(), pageWidth-margin, pdf.GetY())
	pdf.Ln(2)
	pdf.SetTextColor(Success.R, Success.G, Success.B)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.MultiCell(0, 5, tr(doc.ThankYou), "", "C", false)
	pdf.SetTextColor(TextMuted.R, TextMuted.G, TextMuted.B)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, tr(doc.Footer), "", 1, "C", false, 0, "")

	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) section(pdf *fpdf.Fpdf, tr func(string) string, sec Section) {
	pdf.Ln(3)
	pdf.SetFillColor(241, 245, 249)
	pdf.SetTextColor(Blue.R, Blue.G, Blue.B)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, tr(sec.Title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
	for _, row := range sec.Rows {
		pdf.SetTextColor(TextMuted.R, TextMuted.G, TextMuted.B)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelWidth, rowHeight, tr(row.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetTextColor(TextDark.R, TextDark.G, TextDark.B)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, rowHeight, tr(row.Value), "", "L", false)
	}
}

// placeImage fits the logo into the configured box at the top right of the
// header band.
func (r *Renderer) placeImage(pdf *fpdf.Fpdf, name string, img image.Image, wPx, hPx float64) {
	if wPx <= 0 || hPx <= 0 {
		wPx, hPx = 72, 24
	}
	// Upscale the box for print resolution, then let fpdf scale back to mm.
	fitted := imaging.Fit(img, int(wPx*4), int(hPx*4), imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		r.logger.Warn("receipt logo encode failed", "error", err)
		return
	}
	b := fitted.Bounds()
	w := wPx * pxToMM * 2
	h := w * float64(b.Dy()) / float64(b.Dx())
	if w > maxLogoMM {
		h = h * maxLogoMM / w
		w = maxLogoMM
	}
	if h > headerH-8 {
		w = w * (headerH - 8) / h
		h = headerH - 8
	}
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, &buf)
	pdf.ImageOptions(name, pageWidth-margin-w, (headerH-h)/2, w, h, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}

func (r *Renderer) loadLogo(ctx context.Context, url string) image.Image {
	if url == "" || r.logos == nil {
		return nil
	}
	img, err := r.logos.Fetch(ctx, url)
	if err != nil {
		r.logger.WarnContext(ctx, "receipt logo unavailable, rendering without it", "url", url, "error", err)
		return nil
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}
	return img
}
