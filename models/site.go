package models

// SiteSettings is stored under site:settings. The chat* fields feed the floating chat widget.
type SiteSettings struct {
	LogoURL          string `json:"logoUrl"`
	LogoAlt          string `json:"logoAlt"`
	LogoWidth        int    `json:"logoWidth"`
	LogoHeight       int    `json:"logoHeight"`
	FooterLogoURL    string `json:"footerLogoUrl"`
	FooterLogoWidth  int    `json:"footerLogoWidth"`
	FooterLogoHeight int    `json:"footerLogoHeight"`

	ContactEmail    string `json:"contactEmail,omitempty"`
	ContactLocation string `json:"contactLocation,omitempty"`
	ContactLinkedIn string `json:"contactLinkedIn,omitempty"`
	FaviconURL      string `json:"faviconUrl,omitempty"`

	ChatEnabled        bool   `json:"chatEnabled"`
	ChatAPIURL         string `json:"chatApiUrl,omitempty"`
	ChatAPIKey         string `json:"chatApiKey,omitempty"`
	ChatBotName        string `json:"chatBotName,omitempty"`
	ChatWelcomeMessage string `json:"chatWelcomeMessage,omitempty"`
}

// DefaultSiteSettings is served until an operator saves settings.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		LogoURL:          "/logo.png",
		LogoAlt:          "Alto Tráfico",
		LogoWidth:        160,
		LogoHeight:       40,
		FooterLogoURL:    "/logo.png",
		FooterLogoWidth:  120,
		FooterLogoHeight: 32,
	}
}

type FooterLink struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	URL     string `json:"url"`
	Order   int    `json:"order"`
	Slug    string `json:"slug,omitempty"`
	Content string `json:"content,omitempty"`
}

type FooterLinksData struct {
	LegalLinks []FooterLink `json:"legalLinks"`
}

type CaseStudy struct {
	ID          string `json:"id"`
	ImageURL    string `json:"imageUrl"`
	ImageAlt    string `json:"imageAlt"`
	Tag         string `json:"tag"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Stat1Label  string `json:"stat1Label"`
	Stat1Value  string `json:"stat1Value"`
	Stat2Label  string `json:"stat2Label"`
	Stat2Value  string `json:"stat2Value"`
	Order       int    `json:"order"`
}

type CasesData struct {
	Cases []CaseStudy `json:"cases"`
}

type HubSpotConfig struct {
	AccessToken string `json:"accessToken"`
}

// HubSpotStatus is what the admin API returns instead of the raw token.
type HubSpotStatus struct {
	Configured   bool   `json:"configured"`
	TokenPreview string `json:"tokenPreview"`
}

// MaskToken keeps the first 8 and last 4 characters of a token.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return token[:min(len(token), 4)] + "..."
	}
	return token[:8] + "..." + token[len(token)-4:]
}

// ChatConfig is the public view of the chat widget settings.
type ChatConfig struct {
	Enabled        bool   `json:"enabled"`
	APIURL         string `json:"apiUrl"`
	APIKey         string `json:"apiKey"`
	WelcomeMessage string `json:"welcomeMessage"`
	BotName        string `json:"botName"`
}

// Usable reports whether a widget built from c may make network calls.
func (c ChatConfig) Usable() bool {
	return c.Enabled && c.APIURL != "" && c.APIKey != ""
}

func (s SiteSettings) ChatConfig() ChatConfig {
	return ChatConfig{
		Enabled:        s.ChatEnabled,
		APIURL:         s.ChatAPIURL,
		APIKey:         s.ChatAPIKey,
		WelcomeMessage: s.ChatWelcomeMessage,
		BotName:        s.ChatBotName,
	}
}
