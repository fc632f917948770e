package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"altotrafico-web/internal/auth"
	"altotrafico-web/internal/hubspot"
	"altotrafico-web/internal/ratelimit"
	"altotrafico-web/internal/storage"
	"altotrafico-web/internal/webchat"
	"altotrafico-web/middleware"
	"altotrafico-web/models"
	"altotrafico-web/services"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct horse"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBlog struct {
	mu        sync.Mutex
	page      *models.BlogPage
	err       error
	syncs     int
	testToken string
}

func (f *fakeBlog) FetchPosts(context.Context, int, int) (*models.BlogPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeBlog) FetchPostBySlug(_ context.Context, slug string) (*models.BlogPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.page.Results {
		if f.page.Results[i].Slug == slug {
			return &f.page.Results[i], nil
		}
	}
	return nil, hubspot.ErrPostNotFound
}

func (f *fakeBlog) TestConnection(_ context.Context, token string) models.ConnectionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testToken = token
	if token == "pat-good-token-1234" {
		return models.ConnectionResult{OK: true, Total: 7}
	}
	return models.ConnectionResult{Error: "Token inválido o expirado"}
}

func (f *fakeBlog) Sync(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	if f.err != nil {
		return 0, f.err
	}
	return f.page.Total, nil
}

type fakeQueue struct {
	tasks []*asynq.Task
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type memAuditSink struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (s *memAuditSink) Insert(_ context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *memAuditSink) Recent(_ context.Context, limit int) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AuditEvent{}
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *memAuditSink) Chain(context.Context) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEvent(nil), s.events...), nil
}

type fixture struct {
	router  *gin.Engine
	store   *storage.Store
	blog    *fakeBlog
	queue   *fakeQueue
	auditor *models.AuditLogger
	sink    *memAuditSink
	tester  func(ctx context.Context, apiURL, apiKey string) (string, error)
}

type fixtureOption func(*fixture, *AdminDeps)

func withQueue() fixtureOption {
	return func(f *fixture, d *AdminDeps) {
		f.queue = &fakeQueue{}
		d.Queue = f.queue
	}
}

func withAuditReader() fixtureOption {
	return func(f *fixture, d *AdminDeps) {
		f.sink = &memAuditSink{}
		f.auditor = models.NewAuditLogger(f.sink)
		d.Auditor = f.auditor
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	kv := storage.NewMemoryKV()
	store := storage.NewStore(kv)
	users := services.NewUsersService(store, 4)
	if _, err := users.EnsureUser(context.Background(), "1", "admin", "admin@altotrafico.ai", testPassword); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour, kv)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	authenticator := auth.NewAuthenticator(store, ratelimit.New(ratelimit.WithMaxAttempts(5)), nil)
	authMW := middleware.NewAuthMiddleware(tokens)

	f := &fixture{
		router: gin.New(),
		store:  store,
		blog: &fakeBlog{page: &models.BlogPage{Total: 1, Results: []models.BlogPost{
			{ID: "p1", Slug: "seo-con-ia", Name: "SEO con IA"},
		}}},
		auditor: models.NewAuditLogger(models.LogAuditSink{}),
	}

	deps := AdminDeps{Store: store, Users: users, Blog: f.blog, Auditor: f.auditor}
	deps.ChatTester = func(ctx context.Context, apiURL, apiKey string) (string, error) {
		if f.tester == nil {
			return "", errors.New("no tester")
		}
		return f.tester(ctx, apiURL, apiKey)
	}
	for _, opt := range opts {
		opt(f, &deps)
	}

	audit := middleware.AuditMiddleware(deps.Auditor, nil)
	SetupPublicRoutes(f.router, store, f.blog)
	SetupAuthRoutes(f.router, authenticator, tokens, authMW, false, audit)
	SetupAdminRoutes(f.router, deps, authMW, audit)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"`+testPassword+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var resp models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e utils.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error %q: %v", w.Body.String(), err)
	}
	return e.Message
}

func TestPublic_SettingsAndChatConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.do(t, http.MethodGet, "/api/chat/config", "", "")
	if w.Code != http.StatusOK || decode(t, w)["enabled"] != false {
		t.Fatalf("chat config before setup = %d %s", w.Code, w.Body.String())
	}

	settings := models.DefaultSiteSettings()
	settings.ChatEnabled = true
	settings.ChatAPIURL = "https://chat.example/api/webchat"
	settings.ChatAPIKey = "wk-1"
	settings.ChatBotName = "Asistente"
	if err := f.store.WriteSettings(ctx, settings); err != nil {
		t.Fatal(err)
	}

	w = f.do(t, http.MethodGet, "/api/chat/config", "", "")
	cfg := decode(t, w)
	if cfg["enabled"] != true || cfg["apiKey"] != "wk-1" || cfg["botName"] != "Asistente" {
		t.Errorf("chat config = %v", cfg)
	}

	w = f.do(t, http.MethodGet, "/api/settings", "", "")
	if s := decode(t, w); s["chatApiKey"] != nil || s["logoUrl"] != "/logo.png" {
		t.Errorf("public settings = %v", s)
	}
}

func TestPublic_FooterLinksAndLegal(t *testing.T) {
	f := newFixture(t)
	err := f.store.WriteFooterLinks(context.Background(), models.FooterLinksData{LegalLinks: []models.FooterLink{
		{ID: "1", Label: "Privacidad", URL: "/legal/privacidad", Slug: "privacidad", Content: "Texto legal"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	w := f.do(t, http.MethodGet, "/api/footer-links", "", "")
	if strings.Contains(w.Body.String(), "Texto legal") {
		t.Errorf("footer links leaked content: %s", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/legal/privacidad", "", "")
	if w.Code != http.StatusOK || decode(t, w)["content"] != "Texto legal" {
		t.Errorf("legal = %d %s", w.Code, w.Body.String())
	}

	if w = f.do(t, http.MethodGet, "/api/legal/nope", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing legal = %d", w.Code)
	}
}

func TestPublic_Blog(t *testing.T) {
	f := newFixture(t)

	if w := f.do(t, http.MethodGet, "/api/blog?limit=500", "", ""); w.Code != http.StatusOK {
		t.Errorf("blog = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/blog/SEO-con-IA", "", ""); w.Code != http.StatusOK {
		t.Errorf("blog post by uncleaned slug = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/blog/otro", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown post = %d", w.Code)
	}

	f.blog.err = hubspot.ErrNotConfigured
	w := f.do(t, http.MethodGet, "/api/blog", "", "")
	if w.Code != http.StatusOK || decode(t, w)["total"] != float64(0) {
		t.Errorf("unconfigured blog = %d %s", w.Code, w.Body.String())
	}

	f.blog.err = &hubspot.StatusError{StatusCode: 503}
	if w := f.do(t, http.MethodGet, "/api/blog", "", ""); w.Code != http.StatusBadGateway {
		t.Errorf("upstream failure = %d", w.Code)
	}
}

func TestAuth_LoginSessionLogout(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"`+testPassword+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d", w.Code)
	}
	cookie := w.Result().Cookies()
	if len(cookie) != 1 || cookie[0].Name != middleware.SessionCookie || !cookie[0].HttpOnly {
		t.Errorf("cookies = %+v", cookie)
	}
	var resp models.LoginResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.User.Username != "admin" || resp.Token == "" || strings.Contains(w.Body.String(), "passwordHash") {
		t.Errorf("login body = %s", w.Body.String())
	}

	if w := f.do(t, http.MethodGet, "/api/auth/session", "", resp.Token); w.Code != http.StatusOK {
		t.Errorf("session = %d", w.Code)
	}

	if w := f.do(t, http.MethodPost, "/api/auth/logout", "", resp.Token); w.Code != http.StatusOK {
		t.Errorf("logout = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/auth/session", "", resp.Token); w.Code != http.StatusUnauthorized {
		t.Errorf("session after logout = %d, want 401", w.Code)
	}
}

func TestAuth_FailuresAreUniform(t *testing.T) {
	f := newFixture(t)

	bodies := []string{
		`{"username":"admin","password":"wrong"}`,
		`{"username":"ghost","password":"` + testPassword + `"}`,
		`{"username":"","password":""}`,
	}
	var first string
	for _, b := range bodies {
		w := f.do(t, http.MethodPost, "/api/auth/login", b, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s = %d, want 401", b, w.Code)
		}
		if first == "" {
			first = w.Body.String()
		} else if w.Body.String() != first {
			t.Errorf("response %s differs from %s", w.Body.String(), first)
		}
	}
}

func TestAuth_ThrottleLooksLikeBadPassword(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, "")
	}
	// The window's budget is spent, so the right password gets the same answer.
	w := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"`+testPassword+`"}`, "")
	if w.Code != http.StatusUnauthorized || errorMessage(t, w) != "Credenciales inválidas" {
		t.Errorf("throttled login = %d %s", w.Code, w.Body.String())
	}
}

func TestAdmin_RequiresSession(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/admin/settings", "/api/admin/users", "/api/admin/hubspot-config"} {
		if w := f.do(t, http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without session = %d", path, w.Code)
		}
	}
}

func TestAdmin_SaveSettings(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.do(t, http.MethodPut, "/api/admin/settings", `{"logoUrl":"/a.png"}`, token)
	if w.Code != http.StatusBadRequest || errorMessage(t, w) != "Datos inválidos" {
		t.Errorf("invalid settings = %d %s", w.Code, w.Body.String())
	}

	body := `{"logoUrl":"/a.png","logoAlt":"Alto","logoWidth":200,"logoHeight":50,
		"footerLogoUrl":"/b.png","footerLogoWidth":100,"footerLogoHeight":30,
		"chatEnabled":true,"chatApiUrl":"https://chat.example/api","chatApiKey":"wk"}`
	if w := f.do(t, http.MethodPut, "/api/admin/settings", body, token); w.Code != http.StatusOK {
		t.Fatalf("save settings = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/admin/settings", "", token)
	s := decode(t, w)
	if s["logoUrl"] != "/a.png" || s["chatApiKey"] != "wk" {
		t.Errorf("admin settings = %v", s)
	}
}

func TestAdmin_FooterLinksAndCases(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.do(t, http.MethodPut, "/api/admin/footer-links", `{"legalLinks":[{"id":"1","label":"Aviso","url":"/x","order":1,"slug":"aviso-legal"}]}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("save links = %d", w.Code)
	}
	links, _ := f.store.ReadFooterLinks(context.Background())
	if len(links.LegalLinks) != 1 || links.LegalLinks[0].URL != "/legal/aviso-legal" {
		t.Errorf("stored links = %+v", links)
	}

	if w := f.do(t, http.MethodPut, "/api/admin/cases", `{"nope":true}`, token); w.Code != http.StatusBadRequest {
		t.Errorf("invalid cases = %d", w.Code)
	}
	if w := f.do(t, http.MethodPut, "/api/admin/cases", `{"cases":[{"id":"c1","title":"Retail"}]}`, token); w.Code != http.StatusOK {
		t.Errorf("save cases = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/cases", "", ""); !strings.Contains(w.Body.String(), "Retail") {
		t.Errorf("public cases = %s", w.Body.String())
	}
}

func TestAdmin_HubSpotConfig(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	if w := f.do(t, http.MethodPost, "/api/admin/hubspot-config", "", token); errorMessage(t, w) != "No hay token configurado" {
		t.Errorf("test without token = %s", w.Body.String())
	}

	w := f.do(t, http.MethodPut, "/api/admin/hubspot-config", `{"accessToken":"   "}`, token)
	if w.Code != http.StatusBadRequest || errorMessage(t, w) != "El token es requerido" {
		t.Errorf("empty token = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPut, "/api/admin/hubspot-config", `{"accessToken":"pat-bad"}`, token)
	if w.Code != http.StatusBadRequest || errorMessage(t, w) != "Token inválido o expirado" {
		t.Errorf("bad token = %d %s", w.Code, w.Body.String())
	}
	if cfg, _ := f.store.ReadHubSpotConfig(context.Background()); cfg.AccessToken != "" {
		t.Errorf("bad token was saved")
	}

	w = f.do(t, http.MethodPut, "/api/admin/hubspot-config", `{"accessToken":" pat-good-token-1234 "}`, token)
	if w.Code != http.StatusOK || decode(t, w)["total"] != float64(7) {
		t.Fatalf("good token = %d %s", w.Code, w.Body.String())
	}
	if f.blog.testToken != "pat-good-token-1234" {
		t.Errorf("tested token = %q", f.blog.testToken)
	}

	w = f.do(t, http.MethodGet, "/api/admin/hubspot-config", "", token)
	status := decode(t, w)
	if status["configured"] != true || status["tokenPreview"] != "pat-good...1234" {
		t.Errorf("status = %v", status)
	}

	if w := f.do(t, http.MethodPost, "/api/admin/hubspot-config", "", token); decode(t, w)["ok"] != true {
		t.Errorf("test stored token = %s", w.Body.String())
	}

	if w := f.do(t, http.MethodDelete, "/api/admin/hubspot-config", "", token); w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/admin/hubspot-config", "", token); decode(t, w)["configured"] != false {
		t.Errorf("after delete = %s", w.Body.String())
	}
}

func TestAdmin_BlogSync(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		f := newFixture(t)
		token := f.login(t)

		w := f.do(t, http.MethodPost, "/api/admin/blog", "", token)
		if w.Code != http.StatusOK || decode(t, w)["total"] != float64(1) || f.blog.syncs != 1 {
			t.Errorf("inline sync = %d %s (syncs %d)", w.Code, w.Body.String(), f.blog.syncs)
		}

		f.blog.err = errors.New("boom")
		if w := f.do(t, http.MethodPost, "/api/admin/blog", "", token); errorMessage(t, w) != "Error al sincronizar" {
			t.Errorf("failed sync = %s", w.Body.String())
		}
	})

	t.Run("queued", func(t *testing.T) {
		f := newFixture(t, withQueue())
		token := f.login(t)

		w := f.do(t, http.MethodPost, "/api/admin/blog", "", token)
		if w.Code != http.StatusAccepted || len(f.queue.tasks) != 1 || f.blog.syncs != 0 {
			t.Errorf("queued sync = %d, tasks %d, inline syncs %d", w.Code, len(f.queue.tasks), f.blog.syncs)
		}
	})
}

func TestAdmin_Users(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/api/admin/users", "", token)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "passwordHash") {
		t.Errorf("list users = %d %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"invalid action", `{"action":"promote"}`, http.StatusBadRequest, "Acción inválida"},
		{"missing fields", `{"action":"add","username":"x"}`, http.StatusBadRequest, "Todos los campos son requeridos"},
		{"duplicate", `{"action":"add","username":"admin","email":"a@b.c","password":"p"}`, http.StatusBadRequest, "El nombre de usuario ya existe"},
		{"remove last", `{"action":"remove","id":"1"}`, http.StatusBadRequest, "No puedes eliminar el último usuario"},
		{"update last", `{"action":"update","id":"1","email":"n@b.c"}`, http.StatusBadRequest, "Debe haber al menos un usuario"},
		{"update without id", `{"action":"update"}`, http.StatusBadRequest, "ID de usuario requerido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPut, "/api/admin/users", tt.body, token)
			if w.Code != tt.status || errorMessage(t, w) != tt.msg {
				t.Errorf("= %d %s, want %d %q", w.Code, w.Body.String(), tt.status, tt.msg)
			}
		})
	}

	w = f.do(t, http.MethodPut, "/api/admin/users", `{"action":"add","username":"editor","email":"e@b.c","password":"p"}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("add = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPut, "/api/admin/users", `{"action":"remove","id":"1"}`, token); w.Code != http.StatusOK {
		t.Errorf("remove with two users = %d %s", w.Code, w.Body.String())
	}
}

func TestAdmin_ChatTest(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.do(t, http.MethodPost, "/api/admin/chat/test", "{}", token)
	if w.Code != http.StatusBadRequest || errorMessage(t, w) != "Configura la URL y API Key primero" {
		t.Errorf("unconfigured = %d %s", w.Code, w.Body.String())
	}

	var gotURL, gotKey string
	f.tester = func(_ context.Context, apiURL, apiKey string) (string, error) {
		gotURL, gotKey = apiURL, apiKey
		return "test-1", nil
	}
	w = f.do(t, http.MethodPost, "/api/admin/chat/test", `{"apiUrl":"https://chat.example/api","apiKey":"wk"}`, token)
	if r := decode(t, w); r["success"] != true || r["message"] != "Conexión exitosa" {
		t.Errorf("success = %v", r)
	}
	if gotURL != "https://chat.example/api" || gotKey != "wk" {
		t.Errorf("tested %q %q", gotURL, gotKey)
	}

	f.tester = func(context.Context, string, string) (string, error) { return "", webchat.ErrNoSession }
	w = f.do(t, http.MethodPost, "/api/admin/chat/test", `{"apiUrl":"https://chat.example/api","apiKey":"wk"}`, token)
	if r := decode(t, w); r["success"] != false || r["error"] != "Error: no se recibió sessionId" {
		t.Errorf("no session = %v", r)
	}
}

// The default tester goes over HTTP.
func TestAdmin_ChatTestAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-webchat-key") != "wk" {
			http.Error(w, "no", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sessionId":"abc"}`))
	}))
	defer srv.Close()

	id, err := pingWebchat(context.Background(), srv.URL, "wk")
	if err != nil || id != "abc" {
		t.Errorf("pingWebchat = %q, %v", id, err)
	}
	if _, err := pingWebchat(context.Background(), srv.URL, "bad"); err == nil {
		t.Error("expected error for wrong key")
	}
}

func TestAdmin_Audit(t *testing.T) {
	t.Run("unavailable without reader", func(t *testing.T) {
		f := newFixture(t)
		token := f.login(t)
		if w := f.do(t, http.MethodGet, "/api/admin/audit", "", token); w.Code != http.StatusNotImplemented {
			t.Errorf("audit = %d", w.Code)
		}
	})

	t.Run("records mutations", func(t *testing.T) {
		f := newFixture(t, withAuditReader())
		token := f.login(t)
		f.do(t, http.MethodDelete, "/api/admin/hubspot-config", "", token)
		f.auditor.Wait()

		w := f.do(t, http.MethodGet, "/api/admin/audit", "", token)
		r := decode(t, w)
		// login + delete
		if r["count"] != float64(2) {
			t.Fatalf("audit = %s", w.Body.String())
		}

		w = f.do(t, http.MethodGet, "/api/admin/audit/verify", "", token)
		if decode(t, w)["is_valid"] != true {
			t.Errorf("verify = %s", w.Body.String())
		}

		w = f.do(t, http.MethodGet, "/api/admin/audit/export?format=json", "", token)
		if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Disposition"), ".json") {
			t.Errorf("export = %d %v", w.Code, w.Header())
		}
		if w := f.do(t, http.MethodGet, "/api/admin/audit/export?format=csv", "", token); w.Code != http.StatusBadRequest {
			t.Errorf("csv export = %d", w.Code)
		}
	})
}
