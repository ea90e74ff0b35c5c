package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/config"
	"github.com/jmdto/linkshort/internal/handlers"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/services"
	"github.com/jmdto/linkshort/internal/shortcode"
	"github.com/jmdto/linkshort/pkg/logger"
)

// memLinkRepo is an in-memory LinkRepository for end-to-end tests.
type memLinkRepo struct {
	mu       sync.Mutex
	links    map[string]*models.Link
	variants map[string]*models.Variant
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{
		links:    make(map[string]*models.Link),
		variants: make(map[string]*models.Variant),
	}
}

func (r *memLinkRepo) codeTakenLocked(code string) bool {
	for _, l := range r.links {
		if l.ShortCode == code {
			return true
		}
	}
	for _, v := range r.variants {
		if v.ShortCode == code {
			return true
		}
	}
	return false
}

func (r *memLinkRepo) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codeTakenLocked(link.ShortCode) {
		return nil, shortcode.ErrCodeTaken
	}
	stored := *link
	stored.CreatedAt = time.Now()
	r.links[link.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memLinkRepo) CreateVariant(ctx context.Context, variant *models.Variant) (*models.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codeTakenLocked(variant.ShortCode) {
		return nil, shortcode.ErrCodeTaken
	}
	if _, ok := r.links[variant.LinkID]; !ok {
		return nil, models.ErrLinkNotFound
	}
	stored := *variant
	r.variants[variant.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memLinkRepo) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.ShortCode == code {
			copied := *l
			return &copied, nil
		}
	}
	return nil, models.ErrLinkNotFound
}

func (r *memLinkRepo) GetVariantByCode(ctx context.Context, code string) (*models.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.ShortCode == code {
			copied := *v
			if parent, ok := r.links[v.LinkID]; ok {
				parentCopy := *parent
				copied.Parent = &parentCopy
			}
			return &copied, nil
		}
	}
	return nil, models.ErrLinkNotFound
}

func (r *memLinkRepo) GetByID(ctx context.Context, id string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, models.ErrLinkNotFound
	}
	copied := *l
	for _, v := range r.variants {
		if v.LinkID == id {
			copied.Variants = append(copied.Variants, *v)
		}
	}
	return &copied, nil
}

func (r *memLinkRepo) GetVariantByID(ctx context.Context, id string) (*models.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variants[id]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, models.ErrLinkNotFound
}

func (r *memLinkRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Link
	for _, l := range r.links {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memLinkRepo) UpdateLongURL(ctx context.Context, id, longURL string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, models.ErrLinkNotFound
	}
	l.LongURL = longURL
	copied := *l
	return &copied, nil
}

func (r *memLinkRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[id]; !ok {
		return models.ErrLinkNotFound
	}
	delete(r.links, id)
	for vid, v := range r.variants {
		if v.LinkID == id {
			delete(r.variants, vid)
		}
	}
	return nil
}

func (r *memLinkRepo) DeleteVariant(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[id]
	if !ok {
		return "", models.ErrLinkNotFound
	}
	delete(r.variants, id)
	return v.ShortCode, nil
}

func (r *memLinkRepo) IncrementLinkClicks(ctx context.Context, code string) error    { return nil }
func (r *memLinkRepo) IncrementVariantClicks(ctx context.Context, code string) error { return nil }
func (r *memLinkRepo) BatchIncrementClicks(ctx context.Context, counts map[models.ClickKey]int64) error {
	return nil
}

func (r *memLinkRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codeTakenLocked(code), nil
}

func (r *memLinkRepo) HealthCheck(ctx context.Context) error { return nil }

// memUserRepo is an in-memory UserRepository for end-to-end tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, models.ErrEmailTaken
		}
	}
	stored := *user
	r.users[user.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, models.ErrUserNotFound
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (r *memUserRepo) List(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return nil, models.ErrUserNotFound
	}
	stored := *user
	r.users[user.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return models.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

type testEnv struct {
	baseURL    string
	client     *http.Client
	adminToken string
	userToken  string
	userID     string
}

// startTestServer wires the full stack on in-memory stores and serves it on
// an ephemeral port.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Shortener.BaseURL = "https://sho.rt"

	log := logger.Discard()
	linkRepo := newMemLinkRepo()
	userRepo := newMemUserRepo()
	tokens := auth.NewTokenManager("server-test-secret", time.Hour)

	userService := services.NewUserService(userRepo, tokens, log)
	linkService := services.NewLinkService(linkRepo, shortcode.NewAllocator(), cfg.Shortener.BaseURL, log)
	resolver := services.NewResolver(linkRepo, nil, nil, log)

	srv := New(cfg, log, Handlers{
		Redirect: handlers.NewRedirectHandler(resolver, log),
		Link:     handlers.NewLinkHandler(linkService),
		User:     handlers.NewUserHandler(userService),
		Auth:     handlers.NewAuthHandler(userService, time.Hour, false),
	}, tokens)

	go func() {
		if err := srv.Start(); err != nil {
			t.Errorf("server failed: %v", err)
		}
	}()
	require.Eventually(t, func() bool {
		return srv.IsRunning() && srv.Addr() != ""
	}, 5*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	ctx := context.Background()
	admin, err := userService.Create(ctx, "admin@test.local", "Admin", "admin-pass", true)
	require.NoError(t, err)
	user, err := userService.Create(ctx, "user@test.local", "User", "user-pass", false)
	require.NoError(t, err)

	adminToken, err := tokens.Issue(admin.ID, true)
	require.NoError(t, err)
	userToken, err := tokens.Issue(user.ID, false)
	require.NoError(t, err)

	return &testEnv{
		baseURL: "http://" + srv.Addr(),
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		adminToken: adminToken,
		userToken:  userToken,
		userID:     user.ID,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestServer_HealthEndpoints(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_AuthRequired(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/v1/links", "", handlers.CreateLinkRequest{LongURL: "https://example.com"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/links", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_AdminOnly(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, http.MethodGet, "/api/v1/users", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/users", env.adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Login(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "", handlers.LoginRequest{
		Email:    "user@test.local",
		Password: "user-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login handlers.LoginResponse
	decodeBody(t, resp, &login)
	assert.NotEmpty(t, login.Token)
	require.NotNil(t, login.User)
	assert.Equal(t, "user@test.local", login.User.Email)

	var sawCookie bool
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName && c.Value == login.Token {
			sawCookie = true
		}
	}
	assert.True(t, sawCookie, "login must also set the session cookie")

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", handlers.LoginRequest{
		Email:    "user@test.local",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_LinkAndRedirectFlow(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/v1/links", env.userToken, handlers.CreateLinkRequest{
		LongURL: "https://example.com/landing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created handlers.LinkResponse
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ShortCode)
	assert.Equal(t, "https://sho.rt/"+created.ShortCode, created.ShortURL)

	// The base code redirects to the stored URL unchanged.
	resp = env.do(t, http.MethodGet, "/"+created.ShortCode, "", nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "https://example.com/landing", resp.Header.Get("Location"))

	// A variant gets its own code and carries its UTM parameters.
	resp = env.do(t, http.MethodPost, "/api/v1/links/"+created.ID+"/variants", env.userToken, handlers.CreateVariantRequest{
		UTMSource: "news",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var variant models.Variant
	decodeBody(t, resp, &variant)
	require.NotEmpty(t, variant.ShortCode)
	assert.NotEqual(t, created.ShortCode, variant.ShortCode)

	resp = env.do(t, http.MethodGet, "/"+variant.ShortCode, "", nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "https://example.com/landing?utm_source=news", resp.Header.Get("Location"))

	// Listing shows the link to its owner.
	resp = env.do(t, http.MethodGet, "/api/v1/links", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing map[string][]handlers.LinkResponse
	decodeBody(t, resp, &listing)
	assert.Len(t, listing["links"], 1)

	// Unknown codes fall through to 404.
	resp = env.do(t, http.MethodGet, "/zzzzz2", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_UserManagement(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/v1/users", env.adminToken, handlers.CreateUserRequest{
		Email:    "new@test.local",
		Name:     "New User",
		Password: "new-pass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.User
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.IsAdmin)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%s/toggle-admin", created.ID), env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled models.User
	decodeBody(t, resp, &toggled)
	assert.True(t, toggled.IsAdmin)

	resp = env.do(t, http.MethodDelete, "/api/v1/users/"+created.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_ShutdownStopsServing(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second

	log := logger.Discard()
	tokens := auth.NewTokenManager("server-test-secret", time.Hour)
	userService := services.NewUserService(newMemUserRepo(), tokens, log)
	linkService := services.NewLinkService(newMemLinkRepo(), shortcode.NewAllocator(), "https://sho.rt", log)
	resolver := services.NewResolver(newMemLinkRepo(), nil, nil, log)

	srv := New(cfg, log, Handlers{
		Redirect: handlers.NewRedirectHandler(resolver, log),
		Link:     handlers.NewLinkHandler(linkService),
		User:     handlers.NewUserHandler(userService),
		Auth:     handlers.NewAuthHandler(userService, time.Hour, false),
	}, tokens)

	go func() { _ = srv.Start() }()
	require.Eventually(t, func() bool { return srv.IsRunning() }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.IsRunning())
}
