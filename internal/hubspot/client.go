// Package hubspot reads published blog posts from the HubSpot CMS API.
package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"altotrafico-web/internal/storage"
	"altotrafico-web/internal/telemetry"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL = "https://api.hubapi.com/cms/v3/blogs/posts"

	// FetchPostBySlug scans this many recent posts.
	slugScanLimit = 100
	summaryRunes  = 200
	maxPageBytes  = 16 << 20

	cacheGenKey    = "blog:gen"
	cacheKeyPrefix = "blog:posts:"
)

var (
	ErrNotConfigured = errors.New("hubspot: access token is not configured")
	ErrPostNotFound  = errors.New("hubspot: post not found")
)

// StatusError is a non-2xx answer from HubSpot.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HubSpot API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// TokenSource yields the bearer token for HubSpot calls.
type TokenSource interface {
	HubSpotToken(ctx context.Context) (string, error)
}

// StoreTokens prefers the token saved from the admin panel and falls back to
// the environment.
type StoreTokens struct {
	Store    *storage.Store
	EnvToken string
}

func (s StoreTokens) HubSpotToken(ctx context.Context) (string, error) {
	cfg, err := s.Store.ReadHubSpotConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.AccessToken != "" {
		return cfg.AccessToken, nil
	}
	if s.EnvToken != "" {
		return s.EnvToken, nil
	}
	return "", ErrNotConfigured
}

type Config struct {
	APIURL   string
	RPM      int
	CacheTTL time.Duration
}

type Client struct {
	apiURL     string
	tokens     TokenSource
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	cache      storage.KV
	cacheTTL   time.Duration
	metrics    *telemetry.Metrics
	log        *slog.Logger
}

func NewClient(cfg Config, tokens TokenSource, cache storage.KV, metrics *telemetry.Metrics) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 100
	}
	log := slog.Default().With("component", "hubspot")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "HubSpotAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// Client errors mean a bad token or request, not an outage.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState("hubspot", to.String())
		},
	})

	burst := cfg.RPM / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		apiURL:     cfg.APIURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RPM)*0.9/60.0), burst),
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		metrics:    metrics,
		log:        log,
	}
}

type rawPost struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	PostBody        string `json:"postBody"`
	PostSummary     string `json:"postSummary"`
	FeaturedImage   string `json:"featuredImage"`
	PublishDate     string `json:"publishDate"`
	AuthorName      string `json:"authorName"`
	MetaDescription string `json:"metaDescription"`
}

type rawPage struct {
	Total   int       `json:"total"`
	Results []rawPost `json:"results"`
}

// FetchPosts returns published posts, newest first, served from cache when possible.
func (c *Client) FetchPosts(ctx context.Context, limit, offset int) (*models.BlogPage, error) {
	tracer := otel.Tracer("hubspot-client")
	ctx, span := tracer.Start(ctx, "hubspot.fetch_posts")
	defer span.End()
	span.SetAttributes(attribute.Int("hubspot.limit", limit), attribute.Int("hubspot.offset", offset))

	key := c.cacheKey(ctx, limit, offset)
	if page, ok := c.readCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("hubspot.cache_hit", true))
		return page, nil
	}

	token, err := c.tokens.HubSpotToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("state", "PUBLISHED")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "-publishDate")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, "fetch_posts", token, params)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("hubspot.error", true))
		return nil, err
	}

	raw := result.(*rawPage)
	page := &models.BlogPage{Total: raw.Total, Results: make([]models.BlogPost, 0, len(raw.Results))}
	for _, p := range raw.Results {
		page.Results = append(page.Results, mapPost(p))
	}

	c.writeCache(ctx, key, page)
	return page, nil
}

// FetchPostBySlug finds a post by its cleaned slug among the latest posts.
func (c *Client) FetchPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	page, err := c.FetchPosts(ctx, slugScanLimit, 0)
	if err != nil {
		return nil, err
	}
	for i := range page.Results {
		if page.Results[i].Slug == slug {
			p := page.Results[i]
			return &p, nil
		}
	}
	return nil, ErrPostNotFound
}

// TestConnection checks a candidate token. It bypasses the cache and the
// breaker so an operator always gets a live answer.
func (c *Client) TestConnection(ctx context.Context, token string) models.ConnectionResult {
	params := url.Values{}
	params.Set("state", "PUBLISHED")
	params.Set("limit", "1")

	page, err := c.get(ctx, "test_connection", token, params)
	if err == nil {
		return models.ConnectionResult{OK: true, Total: page.Total}
	}

	var se *StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized:
		return models.ConnectionResult{Error: "Token inválido o expirado"}
	case errors.As(err, &se) && se.StatusCode == http.StatusForbidden:
		return models.ConnectionResult{Error: "El token no tiene el scope 'content' habilitado. Ve a HubSpot → Settings → Integrations → Private Apps, edita tu app y activa el scope 'CMS > Blog > Read'."}
	case errors.As(err, &se):
		return models.ConnectionResult{Error: fmt.Sprintf("Error de HubSpot: %d", se.StatusCode)}
	default:
		c.log.Warn("hubspot connection test failed", "error", err)
		return models.ConnectionResult{Error: "No se pudo conectar con HubSpot"}
	}
}

// Sync drops every cached page and refetches the pages the site serves.
func (c *Client) Sync(ctx context.Context) (int, error) {
	if c.cache != nil {
		if _, err := c.cache.Incr(ctx, cacheGenKey, 0); err != nil {
			return 0, fmt.Errorf("invalidate blog cache: %w", err)
		}
	}

	page, err := c.FetchPosts(ctx, slugScanLimit, 0)
	if err != nil {
		return 0, err
	}
	if _, err := c.FetchPosts(ctx, 20, 0); err != nil {
		return 0, err
	}
	c.log.Info("blog cache refreshed", "total", page.Total)
	return page.Total, nil
}

func (c *Client) get(ctx context.Context, op, token string, params url.Values) (page *rawPage, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstream("hubspot", op, err == nil, time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", utils.AcceptEncoding)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := utils.ReadBody(resp, maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("read hubspot response: %w", err)
	}
	page = &rawPage{}
	if err := json.Unmarshal(body, page); err != nil {
		return nil, fmt.Errorf("decode hubspot response: %w", err)
	}
	return page, nil
}

func (c *Client) cacheKey(ctx context.Context, limit, offset int) string {
	gen := "0"
	if c.cache != nil {
		if b, err := c.cache.Get(ctx, cacheGenKey); err == nil {
			gen = string(b)
		}
	}
	return fmt.Sprintf("%s%s:%d:%d", cacheKeyPrefix, gen, limit, offset)
}

func (c *Client) readCache(ctx context.Context, key string) (*models.BlogPage, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var page models.BlogPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (c *Client) writeCache(ctx context.Context, key string, page *models.BlogPage) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.log.Warn("blog cache write failed", "error", err)
	}
}

func mapPost(p rawPost) models.BlogPost {
	summary := p.PostSummary
	if summary == "" {
		summary = p.PostBody
	}
	return models.BlogPost{
		ID:              p.ID,
		Slug:            CleanSlug(p.Slug),
		Name:            p.Name,
		PostBody:        p.PostBody,
		PostSummary:     p.PostSummary,
		SummaryText:     PlainText(summary, summaryRunes),
		FeaturedImage:   p.FeaturedImage,
		PublishDate:     p.PublishDate,
		AuthorName:      p.AuthorName,
		MetaDescription: p.MetaDescription,
	}
}

// PlainText strips markup from an HTML fragment and truncates it to n runes.
func PlainText(html string, n int) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")

	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:n])) + "…"
}
