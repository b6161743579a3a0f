package settings

import (
	"context"
	"errors"
	"fmt"

	"confreg/pkg/platform/sentinel"
)

const settingsQuery = `{
  "receipt": *[_type == "receiptSettings" && isActive != false] | order(_updatedAt desc)[0]{
    conferenceTitle, companyName,
    "headerColor": receiptTemplate.headerColor.hex,
    "logoWidth": receiptTemplate.logoSize.width,
    "logoHeight": receiptTemplate.logoSize.height,
    "senderName": emailSettings.senderName,
    "subjectLine": emailSettings.subjectLine,
    "supportEmail": contactInformation.supportEmail,
    "phone": contactInformation.phone,
    "website": contactInformation.website,
    "enablePdfAttachment": pdfSettings.enablePdfAttachment,
    "storePdfInSanity": pdfSettings.storePdfInSanity
  },
  "site": *[_type == "siteSettings"][0]{
    "logoUrl": logo.asset->url,
    "footerText": footer.copyrightText
  }
}`

// Querier runs GROQ queries.
type Querier interface {
	Query(ctx context.Context, groq string, params map[string]any, out any) error
}

// SanitySource reads receiptSettings and siteSettings documents.
type SanitySource struct {
	cms Querier
}

func NewSanitySource(cms Querier) *SanitySource {
	return &SanitySource{cms: cms}
}

type settingsResult struct {
	Receipt *struct {
		ConferenceTitle     string  `json:"conferenceTitle"`
		CompanyName         string  `json:"companyName"`
		HeaderColor         string  `json:"headerColor"`
		LogoWidth           float64 `json:"logoWidth"`
		LogoHeight          float64 `json:"logoHeight"`
		SenderName          string  `json:"senderName"`
		SubjectLine         string  `json:"subjectLine"`
		SupportEmail        string  `json:"supportEmail"`
		Phone               string  `json:"phone"`
		Website             string  `json:"website"`
		EnablePDFAttachment *bool   `json:"enablePdfAttachment"`
		StorePDFInSanity    *bool   `json:"storePdfInSanity"`
	} `json:"receipt"`
	Site *struct {
		LogoURL    string `json:"logoUrl"`
		FooterText string `json:"footerText"`
	} `json:"site"`
}

func (s *SanitySource) Fetch(ctx context.Context) (Partial, error) {
	var res settingsResult
	if err := s.cms.Query(ctx, settingsQuery, nil, &res); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Partial{}, nil
		}
		return Partial{}, fmt.Errorf("query receipt settings: %w", err)
	}

	var p Partial
	if r := res.Receipt; r != nil {
		p.ConferenceTitle = r.ConferenceTitle
		p.CompanyName = r.CompanyName
		p.HeaderColor = r.HeaderColor
		p.LogoWidth = r.LogoWidth
		p.LogoHeight = r.LogoHeight
		p.SenderName = r.SenderName
		p.SubjectLine = r.SubjectLine
		p.ContactEmail = r.SupportEmail
		p.ContactPhone = r.Phone
		p.Website = r.Website
		p.AttachPDF = r.EnablePDFAttachment
		p.StorePDF = r.StorePDFInSanity
	}
	if site := res.Site; site != nil {
		p.LogoURL = site.LogoURL
		p.FooterText = site.FooterText
	}
	return p, nil
}
