package server

import (
	"bytes"
	"context"
	"ctchen222/blog/internal/api/controller"
	"ctchen222/blog/internal/api/repository"
	"ctchen222/blog/internal/api/service"
	"ctchen222/blog/internal/auth"
	"ctchen222/blog/internal/db"
	"ctchen222/blog/internal/storage"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:3000"

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevoker) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = true
	return nil
}

func (m *memRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

type testEnv struct {
	handler http.Handler
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sdb, err := db.SQLiteConnect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sdb.Close() })

	covers, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tokens := auth.NewTokenService("server-test-secret", time.Hour, &memRevoker{revoked: map[string]bool{}})
	userService := service.NewUserService(repository.NewSQLiteUserRepository(sdb), tokens)
	postService := service.NewPostService(repository.NewSQLitePostRepository(sdb), covers)

	srv := NewServer(Deps{
		Users:      controller.NewUserController(userService, controller.CookieOptions{MaxAge: time.Hour}),
		Posts:      controller.NewPostController(postService),
		Verifier:   tokens,
		Storage:    covers,
		CORSOrigin: testOrigin,
	})
	return &testEnv{handler: srv.Engine(), tokens: tokens}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Extras  json.RawMessage `json:"extras"`
}

type postJSON struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Content   string         `json:"content"`
	Cover     string         `json:"cover"`
	Author    map[string]any `json:"author"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func tokenCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func message(t *testing.T, env envelope) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Extras, &m))
	return m.Message
}

func (e *testEnv) registerAndLogin(t *testing.T, username, password string) string {
	t.Helper()
	w, _ := e.do(t, jsonRequest(http.MethodPost, "/register", map[string]string{"username": username, "password": password}), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = e.do(t, jsonRequest(http.MethodPost, "/login", map[string]string{"username": username, "password": password}), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := tokenCookie(w)
	require.NotNil(t, c)
	return c.Value
}

func (e *testEnv) createPost(t *testing.T, token, title string) postJSON {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/post", map[string]string{
		"title": title, "summary": title + " summary", "content": title + " content",
	}, "cover.png", []byte("png-bytes"))
	w, env := e.do(t, req, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p postJSON
	require.NoError(t, json.Unmarshal(env.Extras, &p))
	return p
}

func TestRegister_DuplicateUsername(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]string{"username": "alice", "password": "s3cret"}

	w, env := e.do(t, jsonRequest(http.MethodPost, "/register", body), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")

	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Extras, &user))
	assert.Equal(t, "alice", user["username"])
	assert.NotEmpty(t, user["id"])

	w, env = e.do(t, jsonRequest(http.MethodPost, "/register", body), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "username already taken", message(t, env))
}

func TestRegister_ShortUsername(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, jsonRequest(http.MethodPost, "/register", map[string]string{"username": "abc", "password": "s3cret"}), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_SetsTokenCookie(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.do(t, jsonRequest(http.MethodPost, "/register", map[string]string{"username": "alice", "password": "s3cret"}), "")
	require.Equal(t, http.StatusOK, w.Code)
	var registered map[string]string
	require.NoError(t, json.Unmarshal(env.Extras, &registered))

	w, env = e.do(t, jsonRequest(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "s3cret"}), "")
	require.Equal(t, http.StatusOK, w.Code)

	var identity map[string]string
	require.NoError(t, json.Unmarshal(env.Extras, &identity))
	assert.Equal(t, map[string]string{"id": registered["id"], "username": "alice"}, identity)

	c := tokenCookie(w)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)

	claims, err := e.tokens.Verify(context.Background(), c.Value)
	require.NoError(t, err)
	assert.Equal(t, registered["id"], claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestLogin_WrongCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.registerAndLogin(t, "alice", "s3cret")

	for _, body := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "nobody", "password": "s3cret"},
	} {
		w, env := e.do(t, jsonRequest(http.MethodPost, "/login", body), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "wrong credentials", message(t, env))
		assert.Nil(t, tokenCookie(w))
	}
}

func TestProfile(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerAndLogin(t, "alice", "s3cret")

	w, _ := e.do(t, httptest.NewRequest(http.MethodGet, "/profile", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/profile", nil), "tampered"+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := e.do(t, httptest.NewRequest(http.MethodGet, "/profile", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	var identity map[string]string
	require.NoError(t, json.Unmarshal(env.Extras, &identity))
	assert.Equal(t, "alice", identity["username"])
	assert.NotEmpty(t, identity["id"])
}

func TestLogout_RevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerAndLogin(t, "alice", "s3cret")

	w, env := e.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"ok"`, string(env.Extras))

	c := tokenCookie(w)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)

	w, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/profile", nil), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreatePost_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerAndLogin(t, "alice", "s3cret")

	created := e.createPost(t, token, "Hello")
	assert.NotEmpty(t, created.ID)
	assert.True(t, strings.HasPrefix(created.Cover, "uploads/"))
	assert.True(t, strings.HasSuffix(created.Cover, ".png"))
	assert.Equal(t, map[string]any{"username": "alice"}, created.Author)

	w, env := e.do(t, httptest.NewRequest(http.MethodGet, "/post/"+created.ID, nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	var got postJSON
	require.NoError(t, json.Unmarshal(env.Extras, &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "Hello summary", got.Summary)
	assert.Equal(t, "Hello content", got.Content)
	assert.Equal(t, created.Cover, got.Cover)
	assert.Equal(t, map[string]any{"username": "alice"}, got.Author)

	w, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/"+got.Cover, nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestCreatePost_Validation(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerAndLogin(t, "alice", "s3cret")

	req := multipartRequest(t, http.MethodPost, "/post", map[string]string{"title": "t", "summary": "s", "content": "c"}, "", nil)
	w, _ := e.do(t, req, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing file")

	req = multipartRequest(t, http.MethodPost, "/post", map[string]string{"title": "t", "summary": "s", "content": "c"}, "page.html", []byte("<script>alert(1)</script>"))
	w, _ = e.do(t, req, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "non-image cover")

	req = multipartRequest(t, http.MethodPost, "/post", map[string]string{"title": "t"}, "c.png", []byte("x"))
	w, _ = e.do(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing token")
}

func TestUpdatePost_OnlyAuthor(t *testing.T) {
	e := newTestEnv(t)
	aliceToken := e.registerAndLogin(t, "alice", "s3cret")
	bobToken := e.registerAndLogin(t, "bobby", "hunter2")

	created := e.createPost(t, aliceToken, "Original")

	req := multipartRequest(t, http.MethodPut, "/post", map[string]string{
		"id": created.ID, "title": "Hijacked", "summary": "x", "content": "x",
	}, "evil.png", []byte("evil"))
	w, env := e.do(t, req, bobToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "you are not the author", message(t, env))

	w, env = e.do(t, httptest.NewRequest(http.MethodGet, "/post/"+created.ID, nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got postJSON
	require.NoError(t, json.Unmarshal(env.Extras, &got))
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, created.Cover, got.Cover)
}

func TestUpdatePost_ByAuthor(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerAndLogin(t, "alice", "s3cret")
	created := e.createPost(t, token, "Original")

	req := multipartRequest(t, http.MethodPut, "/post", map[string]string{
		"id": created.ID, "title": "Edited", "summary": "new summary", "content": "new content",
	}, "", nil)
	w, env := e.do(t, req, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated postJSON
	require.NoError(t, json.Unmarshal(env.Extras, &updated))
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, "new summary", updated.Summary)
	assert.Equal(t, created.Cover, updated.Cover, "cover is kept without a new file")

	req = multipartRequest(t, http.MethodPut, "/post", map[string]string{
		"id": created.ID, "title": "Edited", "summary": "s", "content": "c",
	}, "new.jpg", []byte("jpg"))
	w, env = e.do(t, req, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Extras, &updated))
	assert.NotEqual(t, created.Cover, updated.Cover)
	assert.True(t, strings.HasSuffix(updated.Cover, ".jpg"))

	req = multipartRequest(t, http.MethodPut, "/post", map[string]string{
		"id": "missing", "title": "t", "summary": "s", "content": "c",
	}, "", nil)
	w, _ = e.do(t, req, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPosts(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerAndLogin(t, "alice", "s3cret")

	for i := 0; i < 25; i++ {
		e.createPost(t, token, fmt.Sprintf("post %02d", i))
	}

	w, env := e.do(t, httptest.NewRequest(http.MethodGet, "/post", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	var payload struct {
		List []postJSON `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Extras, &payload))
	require.Len(t, payload.List, 20)
	for i, p := range payload.List {
		assert.Equal(t, map[string]any{"username": "alice"}, p.Author)
		assert.Equal(t, fmt.Sprintf("post %02d", 24-i), p.Title)
		if i > 0 {
			assert.False(t, p.CreatedAt.After(payload.List[i-1].CreatedAt), "list must be newest first")
		}
	}
}

func TestGetPost_NotFound(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.do(t, httptest.NewRequest(http.MethodGet, "/post/nope", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "post not found", message(t, env))
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/post", nil)
	req.Header.Set("Origin", testOrigin)
	w, _ := e.do(t, req, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/post", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w, _ = e.do(t, req, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
