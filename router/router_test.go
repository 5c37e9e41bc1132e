package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kolabnaskah/internal/changefeed"
	"kolabnaskah/internal/session"
	"kolabnaskah/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, staticDir string) (http.Handler, sqlmock.Sqlmock, *session.Manager) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := socket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	sessions := session.NewManager("test-secret", time.Hour, nil)
	h := Setup(Deps{
		DB:         db,
		Feed:       changefeed.NewBroker(),
		Hub:        hub,
		Relay:      hub,
		Sessions:   sessions,
		RoomFor:    func(string) string { return "document-collaboration" },
		CORSOrigin: "*",
		StaticDir:  staticDir,
		Base:       context.Background(),
	})
	return h, mock, sessions
}

func TestHealth(t *testing.T) {
	h, mock, _ := newRouter(t, "")
	mock.ExpectPing()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIRequiresSession(t *testing.T) {
	h, _, _ := newRouter(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGuardRedirects(t *testing.T) {
	h, _, sessions := newRouter(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/abc", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))

	token, _, err := sessions.Issue("u1", "ana@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestPagesFallBackToIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	h, _, sessions := newRouter(t, dir)

	token, _, err := sessions.Issue("u1", "ana@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/folders/123", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newRouter(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_rooms")
}
