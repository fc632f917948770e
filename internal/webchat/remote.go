package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"altotrafico-web/internal/telemetry"
	"altotrafico-web/utils"
)

const (
	headerAPIKey = "x-webchat-key"
	maxBodyBytes = 1 << 20
)

// Remote is the webchat API as the controller consumes it.
type Remote interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Envelope, error)
	SendMessage(ctx context.Context, sessionID, content string) (*Envelope, error)
	// FetchMessages returns messages created after the cursor. A zero cursor fetches all.
	FetchMessages(ctx context.Context, sessionID string, after time.Time) (*Envelope, error)
}

type CreateSessionRequest struct {
	Content      string `json:"content"`
	VisitorName  string `json:"visitorName,omitempty"`
	VisitorEmail string `json:"visitorEmail,omitempty"`
}

type sendRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// ErrNoSession is returned by Ping when the API answers without a sessionId.
var ErrNoSession = errors.New("webchat: response carried no sessionId")

// StatusError reports a non-2xx webchat response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webchat: unexpected status %d", e.StatusCode)
}

// HTTPRemote talks to the webchat API over HTTP.
type HTTPRemote struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	metrics    *telemetry.Metrics
}

type RemoteOption func(*HTTPRemote)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *HTTPRemote) { r.httpClient = c }
}

func WithRemoteMetrics(m *telemetry.Metrics) RemoteOption {
	return func(r *HTTPRemote) { r.metrics = m }
}

func NewHTTPRemote(apiURL, apiKey string, opts ...RemoteOption) *HTTPRemote {
	r := &HTTPRemote{
		apiURL:     apiURL,
		apiKey:     apiKey,
		// Deadlines come from the caller's context; a send may outlive the poll timeout.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPRemote) CreateSession(ctx context.Context, req CreateSessionRequest) (*Envelope, error) {
	return r.post(ctx, "create_session", req)
}

func (r *HTTPRemote) SendMessage(ctx context.Context, sessionID, content string) (*Envelope, error) {
	return r.post(ctx, "send_message", sendRequest{SessionID: sessionID, Content: content})
}

func (r *HTTPRemote) FetchMessages(ctx context.Context, sessionID string, after time.Time) (*Envelope, error) {
	u, err := url.Parse(r.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse webchat url: %w", err)
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	if !after.IsZero() {
		q.Set("after", after.UTC().Format(time.RFC3339Nano))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return r.do(req, "fetch_messages")
}

// Ping starts a throwaway session to check URL and key. It succeeds only when
// the API hands back a sessionId.
func (r *HTTPRemote) Ping(ctx context.Context) (string, error) {
	env, err := r.post(ctx, "ping", map[string]string{"action": "start_session", "content": "test"})
	if err != nil {
		return "", err
	}
	if env.SessionID == "" {
		return "", ErrNoSession
	}
	return env.SessionID, nil
}

func (r *HTTPRemote) post(ctx context.Context, op string, body any) (*Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, op)
}

func (r *HTTPRemote) do(req *http.Request, op string) (env *Envelope, err error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordUpstream("webchat", op, err == nil, time.Since(start).Seconds())
	}()

	req.Header.Set(headerAPIKey, r.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", utils.AcceptEncoding)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webchat %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := utils.ReadBody(resp, maxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("webchat %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return ParseEnvelope(raw)
}
