package services

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"

	"altotrafico-web/models"
)

const (
	maxString      = 2000
	maxURL         = 2048
	maxFooterLinks = 20
	maxCases       = 50
	maxLegalBody   = 100000

	defaultContactEmail    = "hola@altotrafico.ai"
	defaultContactLocation = "Madrid, España"
)

// ErrInvalidPayload is returned when a document does not have the required shape.
var ErrInvalidPayload = errors.New("invalid payload")

var (
	htmlTags    = regexp.MustCompile(`<[^>]*>`)
	notSlugChar = regexp.MustCompile(`[^a-z0-9-]`)
)

type fields map[string]any

func (f fields) str(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

func (f fields) num(key string) (float64, bool) {
	n, ok := f[key].(float64)
	return n, ok && !math.IsNaN(n) && !math.IsInf(n, 0)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SanitizeString truncates to n runes and strips anything that looks like a tag.
func SanitizeString(s string, n int) string {
	return htmlTags.ReplaceAllString(truncate(s, n), "")
}

// SanitizeURL keeps relative paths, http(s) URLs and "#". Anything else becomes "#".
func SanitizeURL(s string) string {
	u := strings.TrimSpace(truncate(s, maxURL))
	if strings.HasPrefix(u, "/") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") || u == "#" {
		return u
	}
	return "#"
}

func clamp(v float64, lo, hi int) int {
	return int(math.Min(math.Max(v, float64(lo)), float64(hi)))
}

func decodeObject(raw []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, ErrInvalidPayload
	}
	return f, nil
}

// ValidateSettings checks and cleans a site settings document.
func ValidateSettings(raw []byte) (models.SiteSettings, error) {
	d, err := decodeObject(raw)
	if err != nil {
		return models.SiteSettings{}, err
	}

	logoURL, ok1 := d.str("logoUrl")
	logoAlt, ok2 := d.str("logoAlt")
	footerLogoURL, ok3 := d.str("footerLogoUrl")
	w, ok4 := d.num("logoWidth")
	h, ok5 := d.num("logoHeight")
	fw, ok6 := d.num("footerLogoWidth")
	fh, ok7 := d.num("footerLogoHeight")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return models.SiteSettings{}, ErrInvalidPayload
	}

	s := models.SiteSettings{
		LogoURL:          SanitizeURL(logoURL),
		LogoAlt:          SanitizeString(logoAlt, 200),
		LogoWidth:        clamp(w, 1, 1000),
		LogoHeight:       clamp(h, 1, 1000),
		FooterLogoURL:    SanitizeURL(footerLogoURL),
		FooterLogoWidth:  clamp(fw, 1, 1000),
		FooterLogoHeight: clamp(fh, 1, 1000),
		ContactEmail:     defaultContactEmail,
		ContactLocation:  defaultContactLocation,
		ContactLinkedIn:  "#",
	}

	if v, ok := d.str("contactEmail"); ok {
		s.ContactEmail = SanitizeString(v, 200)
	}
	if v, ok := d.str("contactLocation"); ok {
		s.ContactLocation = SanitizeString(v, 200)
	}
	if v, ok := d.str("contactLinkedIn"); ok {
		s.ContactLinkedIn = SanitizeURL(v)
	}
	if v, ok := d.str("faviconUrl"); ok {
		s.FaviconURL = SanitizeURL(v)
	}

	if v, ok := d["chatEnabled"].(bool); ok {
		s.ChatEnabled = v
	}
	if v, ok := d.str("chatApiUrl"); ok && strings.TrimSpace(v) != "" {
		s.ChatAPIURL = SanitizeURL(v)
	}
	if v, ok := d.str("chatApiKey"); ok {
		s.ChatAPIKey = strings.TrimSpace(truncate(v, 500))
	}
	if v, ok := d.str("chatBotName"); ok {
		s.ChatBotName = SanitizeString(v, 100)
	}
	if v, ok := d.str("chatWelcomeMessage"); ok {
		s.ChatWelcomeMessage = SanitizeString(v, 500)
	}

	return s, nil
}

// ValidateFooterLinks checks the legal links list. Malformed items are dropped.
func ValidateFooterLinks(raw []byte) (models.FooterLinksData, error) {
	var doc struct {
		LegalLinks []json.RawMessage `json:"legalLinks"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.LegalLinks == nil {
		return models.FooterLinksData{}, ErrInvalidPayload
	}
	if len(doc.LegalLinks) > maxFooterLinks {
		return models.FooterLinksData{}, ErrInvalidPayload
	}

	links := make([]models.FooterLink, 0, len(doc.LegalLinks))
	for _, item := range doc.LegalLinks {
		var f fields
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			continue
		}
		id, ok1 := f.str("id")
		label, ok2 := f.str("label")
		url, ok3 := f.str("url")
		order, ok4 := f.num("order")
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}

		link := models.FooterLink{
			ID:    SanitizeString(id, 50),
			Label: SanitizeString(label, 100),
			URL:   SanitizeURL(url),
			Order: clamp(order, 0, 100),
		}
		if slug, ok := f.str("slug"); ok {
			link.Slug = notSlugChar.ReplaceAllString(truncate(slug, 100), "")
		}
		if link.Slug != "" {
			link.URL = "/legal/" + link.Slug
		}
		if content, ok := f.str("content"); ok {
			link.Content = truncate(content, maxLegalBody)
		}
		links = append(links, link)
	}

	return models.FooterLinksData{LegalLinks: links}, nil
}

// ValidateCases checks the case study list. Items without id or title are dropped.
func ValidateCases(raw []byte) (models.CasesData, error) {
	var doc struct {
		Cases []json.RawMessage `json:"cases"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Cases == nil {
		return models.CasesData{}, ErrInvalidPayload
	}
	if len(doc.Cases) > maxCases {
		return models.CasesData{}, ErrInvalidPayload
	}

	cases := make([]models.CaseStudy, 0, len(doc.Cases))
	for _, item := range doc.Cases {
		var f fields
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			continue
		}
		id, ok1 := f.str("id")
		title, ok2 := f.str("title")
		if !ok1 || !ok2 {
			continue
		}

		opt := func(key string, n int) string {
			s, _ := f.str(key)
			return SanitizeString(s, n)
		}
		imageURL, _ := f.str("imageUrl")

		cs := models.CaseStudy{
			ID:          SanitizeString(id, 50),
			ImageURL:    SanitizeURL(imageURL),
			ImageAlt:    opt("imageAlt", 300),
			Tag:         opt("tag", 50),
			Title:       SanitizeString(title, 200),
			Description: opt("description", 500),
			Stat1Label:  opt("stat1Label", 50),
			Stat1Value:  opt("stat1Value", 50),
			Stat2Label:  opt("stat2Label", 50),
			Stat2Value:  opt("stat2Value", 50),
		}
		if order, ok := f.num("order"); ok {
			cs.Order = clamp(order, 0, 100)
		}
		cases = append(cases, cs)
	}

	return models.CasesData{Cases: cases}, nil
}

// ValidateHubSpotToken trims a pasted private app token.
func ValidateHubSpotToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 500 || strings.ContainsAny(token, " \t\r\n") {
		return "", ErrInvalidPayload
	}
	return token, nil
}
