package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/services"
	"github.com/desertthunder/joip/internal/shared"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	next     int
	failList error
}

func newMemoryStore(sessions ...*models.Session) *memoryStore {
	m := &memoryStore{sessions: map[string]*models.Session{}}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *memoryStore) Create(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Channels = models.ParseChannels(strings.Join(s.Channels, ","))
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return err
	}
	m.next++
	s.ID = fmt.Sprintf("s%d", m.next)
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryStore) List() ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	out := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryStore) Get(id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return s, nil
}

func (m *memoryStore) Update(id string, patch models.SessionPatch) (*models.Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	updated := *s
	patch.Apply(&updated)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[id] = &updated
	m.mu.Unlock()
	return &updated, nil
}

func (m *memoryStore) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *memoryStore) SetFavorite(id string, favorite bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	s.IsFavorite = favorite
	return true, nil
}

type stubValidator struct {
	valid map[string]bool
	err   error
}

func (v stubValidator) ValidateChannel(_ context.Context, channel string) (bool, error) {
	return v.valid[channel], v.err
}

type stubExchanger struct {
	cred services.Credential
	err  error
	code string
}

func (e *stubExchanger) Exchange(_ context.Context, code string) (services.Credential, error) {
	e.code = code
	return e.cred, e.err
}

func sampleSession(id string, public bool) *models.Session {
	s := models.NewSession("Cute", []string{"aww", "pics"})
	s.ID = id
	s.IsPublic = public
	return s
}

func newTestAPI(store *memoryStore, media MediaResolver, validator services.ChannelValidator, key string) http.Handler {
	router := NewBasicRouter()
	router.Use(Recover(shared.NopLogger()), RequireAPIKey(key))
	NewAPIHandler(APIOpts{
		Sessions:  store,
		Media:     media,
		Channels:  validator,
		ShareBase: "http://joip.test",
	}).Register(router)
	return router
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRouter(t *testing.T) {
	t.Run("middleware applied in reverse order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("outer"), mark("inner"))
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		do(t, router, http.MethodGet, "/ping", "")
		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("expected outer,inner,handler, got %v", order)
		}
	})

	t.Run("path values", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(r.PathValue("id")))
		})

		rec := do(t, router, http.MethodGet, "/items/abc", "")
		if rec.Body.String() != "abc" {
			t.Errorf("expected abc, got %q", rec.Body.String())
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/only-get", func(w http.ResponseWriter, r *http.Request) {})

		rec := do(t, router, http.MethodPost, "/only-get", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(shared.NopLogger()))
		router.HandleFunc(http.MethodGet, "/boom", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})

		rec := do(t, router, http.MethodGet, "/boom", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if decode(t, rec)["code"] != "internal" {
			t.Errorf("expected internal code, got %s", rec.Body.String())
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var buf strings.Builder
		router := NewBasicRouter()
		router.Use(Logging(shared.NewLogger(&buf)))
		router.HandleFunc(http.MethodGet, "/teapot", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		do(t, router, http.MethodGet, "/teapot", "")
		out := buf.String()
		if !strings.Contains(out, "/teapot") || !strings.Contains(out, "418") {
			t.Errorf("expected path and status in log, got %q", out)
		}
	})

	t.Run("RequireAPIKey", func(t *testing.T) {
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

		tests := []struct {
			name   string
			key    string
			path   string
			header string
			want   int
		}{
			{"disabled", "", "/api/sessions", "", http.StatusOK},
			{"missing header", "secret", "/api/sessions", "", http.StatusUnauthorized},
			{"wrong key", "secret", "/api/sessions", "Bearer nope", http.StatusUnauthorized},
			{"wrong scheme", "secret", "/api/sessions", "Basic secret", http.StatusUnauthorized},
			{"valid key", "secret", "/api/sessions", "Bearer secret", http.StatusOK},
			{"outside api", "secret", "/health", "", http.StatusOK},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := RequireAPIKey(tt.key)(ok)
				rec := do(t, h, http.MethodGet, tt.path, "", "Authorization", tt.header)
				if rec.Code != tt.want {
					t.Errorf("expected %d, got %d", tt.want, rec.Code)
				}
				if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
					t.Error("expected WWW-Authenticate header")
				}
			})
		}
	})
}

func TestAPIHandler(t *testing.T) {
	noMedia := MediaResolverFunc(func(context.Context, *models.Session, int) ([]string, error) {
		return nil, shared.ErrNoMedia
	})

	t.Run("health", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(), noMedia, stubValidator{}, "secret")
		rec := do(t, h, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if decode(t, rec)["status"] != "ok" {
			t.Errorf("expected status ok, got %s", rec.Body.String())
		}
	})

	t.Run("create session", func(t *testing.T) {
		store := newMemoryStore()
		h := newTestAPI(store, noMedia, stubValidator{}, "")

		rec := do(t, h, http.MethodPost, "/api/sessions", `{"title":"Mix","channels":["r/Pics","aww"],"is_public":true}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decode(t, rec)
		if body["interval_seconds"] != float64(models.DefaultInterval) {
			t.Errorf("expected default interval, got %v", body["interval_seconds"])
		}
		if body["transition"] != "fade" {
			t.Errorf("expected fade, got %v", body["transition"])
		}
		if body["share_url"] != "http://joip.test/shared/s1" {
			t.Errorf("expected share url, got %v", body["share_url"])
		}
		if got := store.sessions["s1"].CaptionPrompt; got != models.DefaultCaptionPrompt {
			t.Errorf("expected default caption prompt, got %q", got)
		}
	})

	t.Run("create session validation", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"malformed", `{"title":`},
			{"unknown field", `{"title":"x","channels":["a"],"bogus":1}`},
			{"missing title", `{"channels":["a"]}`},
			{"no channels", `{"title":"x","channels":[]}`},
			{"interval too large", `{"title":"x","channels":["a"],"interval_seconds":61}`},
			{"bad transition", `{"title":"x","channels":["a"],"transition":"spin"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newTestAPI(newMemoryStore(), noMedia, stubValidator{}, "")
				rec := do(t, h, http.MethodPost, "/api/sessions", tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
				}
				if decode(t, rec)["code"] != "invalid_input" {
					t.Errorf("expected invalid_input, got %s", rec.Body.String())
				}
			})
		}
	})

	t.Run("list sessions", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(sampleSession("a", false)), noMedia, stubValidator{}, "")
		rec := do(t, h, http.MethodGet, "/api/sessions", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		sessions, ok := decode(t, rec)["sessions"].([]any)
		if !ok || len(sessions) != 1 {
			t.Errorf("expected 1 session, got %s", rec.Body.String())
		}
	})

	t.Run("list sessions storage failure", func(t *testing.T) {
		store := newMemoryStore()
		store.failList = errors.New("disk gone")
		h := newTestAPI(store, noMedia, stubValidator{}, "")

		rec := do(t, h, http.MethodGet, "/api/sessions", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("get session", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(sampleSession("a", false)), noMedia, stubValidator{}, "")

		rec := do(t, h, http.MethodGet, "/api/sessions/a", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if _, ok := decode(t, rec)["share_url"]; ok {
			t.Error("expected no share url for private session")
		}

		rec = do(t, h, http.MethodGet, "/api/sessions/missing", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("update session", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(sampleSession("a", false)), noMedia, stubValidator{}, "")

		rec := do(t, h, http.MethodPatch, "/api/sessions/a", `{"interval_seconds":30,"transition":"zoom"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["interval_seconds"] != float64(30) || body["transition"] != "zoom" {
			t.Errorf("expected patched fields, got %s", rec.Body.String())
		}

		rec = do(t, h, http.MethodPatch, "/api/sessions/a", `{"interval_seconds":0}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		rec = do(t, h, http.MethodPatch, "/api/sessions/missing", `{"title":"x"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("delete session", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(sampleSession("a", false)), noMedia, stubValidator{}, "")

		rec := do(t, h, http.MethodDelete, "/api/sessions/a", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}

		rec = do(t, h, http.MethodDelete, "/api/sessions/a", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", rec.Code)
		}
	})

	t.Run("favorite", func(t *testing.T) {
		store := newMemoryStore(sampleSession("a", false))
		h := newTestAPI(store, noMedia, stubValidator{}, "")

		rec := do(t, h, http.MethodPut, "/api/sessions/a/favorite", `{"is_favorite":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !store.sessions["a"].IsFavorite {
			t.Error("expected session to be favorited")
		}

		rec = do(t, h, http.MethodPut, "/api/sessions/a/favorite", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without is_favorite, got %d", rec.Code)
		}

		rec = do(t, h, http.MethodPut, "/api/sessions/missing/favorite", `{"is_favorite":false}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("session media", func(t *testing.T) {
		var gotLimit int
		resolver := MediaResolverFunc(func(_ context.Context, s *models.Session, limit int) ([]string, error) {
			gotLimit = limit
			return []string{"https://i.redd.it/1.jpg", "https://i.redd.it/2.png"}, nil
		})
		h := newTestAPI(newMemoryStore(sampleSession("a", false)), resolver, stubValidator{}, "")

		rec := do(t, h, http.MethodGet, "/api/sessions/a/media?limit=5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotLimit != 5 {
			t.Errorf("expected limit 5, got %d", gotLimit)
		}
		if decode(t, rec)["count"] != float64(2) {
			t.Errorf("expected count 2, got %s", rec.Body.String())
		}

		do(t, h, http.MethodGet, "/api/sessions/a/media", "")
		if gotLimit != 20 {
			t.Errorf("expected default limit 20, got %d", gotLimit)
		}

		for _, bad := range []string{"0", "101", "abc"} {
			rec = do(t, h, http.MethodGet, "/api/sessions/a/media?limit="+bad, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400 for limit %s, got %d", bad, rec.Code)
			}
		}
	})

	t.Run("session media errors", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
			code string
		}{
			{"no media", shared.ErrNoMedia, http.StatusNotFound, "no_media"},
			{"auth", &services.AuthError{Kind: services.AuthUnavailable, Err: errors.New("401")}, http.StatusServiceUnavailable, "auth_unavailable"},
			{"no token", shared.ErrNoToken, http.StatusServiceUnavailable, "auth_unavailable"},
			{"upstream", fmt.Errorf("%w: 502", shared.ErrAPIRequest), http.StatusBadGateway, "upstream_error"},
			{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resolver := MediaResolverFunc(func(context.Context, *models.Session, int) ([]string, error) {
					return nil, tt.err
				})
				h := newTestAPI(newMemoryStore(sampleSession("a", false)), resolver, stubValidator{}, "")

				rec := do(t, h, http.MethodGet, "/api/sessions/a/media", "")
				if rec.Code != tt.want {
					t.Errorf("expected %d, got %d", tt.want, rec.Code)
				}
				if decode(t, rec)["code"] != tt.code {
					t.Errorf("expected %s, got %s", tt.code, rec.Body.String())
				}
			})
		}
	})

	t.Run("validate channel", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(), noMedia, stubValidator{valid: map[string]bool{"Pics": true}}, "")

		rec := do(t, h, http.MethodGet, "/api/channels/r%2FPics", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decode(t, rec)
		if body["channel"] != "Pics" || body["valid"] != true {
			t.Errorf("expected valid Pics, got %s", rec.Body.String())
		}

		rec = do(t, h, http.MethodGet, "/api/channels/nope", "")
		if decode(t, rec)["valid"] != false {
			t.Errorf("expected invalid, got %s", rec.Body.String())
		}
	})

	t.Run("shared session", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(sampleSession("pub", true), sampleSession("priv", false)), noMedia, stubValidator{}, "secret")

		rec := do(t, h, http.MethodGet, "/shared/pub", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 without API key, got %d", rec.Code)
		}

		rec = do(t, h, http.MethodGet, "/shared/priv", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected private session to be hidden, got %d", rec.Code)
		}
	})

	t.Run("api key required", func(t *testing.T) {
		h := newTestAPI(newMemoryStore(sampleSession("a", false)), noMedia, stubValidator{}, "secret")

		rec := do(t, h, http.MethodGet, "/api/sessions/a", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}

		rec = do(t, h, http.MethodGet, "/api/sessions/a", "", "Authorization", "Bearer secret")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	redirect := "http://localhost:8080/auth/reddit/callback"

	t.Run("routes follow redirect path", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{}, "state", redirect)
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/auth/reddit/callback" {
			t.Errorf("expected /auth/reddit/callback, got %v", routes)
		}

		h = NewOAuthHandler(&stubExchanger{}, "state", "")
		if routes := h.Routes(); routes[0] != "/callback" {
			t.Errorf("expected /callback fallback, got %v", routes)
		}
	})

	t.Run("successful exchange", func(t *testing.T) {
		ex := &stubExchanger{cred: services.Credential{AccessToken: "tok", ExpiresAtEpochMs: time.Now().Add(time.Hour).UnixMilli()}}
		h := NewOAuthHandler(ex, "xyz", redirect)

		rec := do(t, h, http.MethodGet, "/auth/reddit/callback?state=xyz&code=abc", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ex.code != "abc" {
			t.Errorf("expected code abc, got %q", ex.code)
		}

		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Credential.AccessToken != "tok" {
			t.Errorf("expected tok, got %q", result.Credential.AccessToken)
		}
	})

	t.Run("failures", func(t *testing.T) {
		tests := []struct {
			name  string
			query string
			err   error
			want  int
		}{
			{"state mismatch", "state=bad&code=abc", nil, http.StatusBadRequest},
			{"denied", "state=xyz&error=access_denied", nil, http.StatusBadRequest},
			{"exchange error", "state=xyz&code=abc", errors.New("invalid_grant"), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := NewOAuthHandler(&stubExchanger{err: tt.err}, "xyz", redirect)
				rec := do(t, h, http.MethodGet, "/auth/reddit/callback?"+tt.query, "")
				if rec.Code != tt.want {
					t.Errorf("expected %d, got %d", tt.want, rec.Code)
				}
				if result := <-h.Result(); result.Error() == nil {
					t.Error("expected error result")
				}
			})
		}
	})

	t.Run("replay rejected", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{}, "xyz", redirect)
		do(t, h, http.MethodGet, "/auth/reddit/callback?state=xyz&code=abc", "")

		rec := do(t, h, http.MethodGet, "/auth/reddit/callback?state=xyz&code=abc", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})
}

func TestServer(t *testing.T) {
	t.Run("Addr", func(t *testing.T) {
		if got := Addr(shared.ServerConfig{Host: "127.0.0.1", Port: 3000}); got != "127.0.0.1:3000" {
			t.Errorf("expected 127.0.0.1:3000, got %s", got)
		}
	})

	t.Run("Run stops on cancel", func(t *testing.T) {
		srv := New(shared.ServerConfig{Host: "127.0.0.1", Port: 0}, http.NotFoundHandler(), nil)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx) }()
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("server did not stop")
		}
	})
}
