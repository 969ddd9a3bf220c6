package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/friden-zhang/raspi-todo/docs"
	"github.com/friden-zhang/raspi-todo/internal/config"
	"github.com/friden-zhang/raspi-todo/internal/hub"
	"github.com/friden-zhang/raspi-todo/internal/logger"
	"github.com/friden-zhang/raspi-todo/internal/repo/repotest"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repotest.New()
	h := hub.New(16)
	t.Cleanup(h.Close)
	r := NewRouter(Deps{
		Config:     cfg,
		Logger:     logger.Discard(),
		DB:         okPinger{},
		Todos:      store.Todos(),
		Categories: store.Categories(),
		Hub:        h,
	})
	return r, h
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSystemRoutes(t *testing.T) {
	cfg := config.Config{App: config.AppConfig{Env: "test", Version: "1.2.3"}}
	r, _ := newTestRouter(t, cfg)

	w := get(r, "/version")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":"1.2.3"}`, w.Body.String())

	for _, path := range []string{"/health", "/api/health"} {
		w = get(r, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"ok":true,"db":"ok"}`, w.Body.String())
	}

	w = get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ws":"/ws/updates"`)

	w = get(r, "/swagger-doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "/api", doc.BasePath)
	assert.Contains(t, doc.Paths, "/todos/reorder")
	assert.Contains(t, doc.Paths, "/categories/{id}")

	w = get(r, "/swagger")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, config.Config{})
	req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
	req.Header.Set("Origin", "http://raspberrypi.local:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMutationReachesWebsocketClient(t *testing.T) {
	r, h := newTestRouter(t, config.Config{})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/updates", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, 1, h.Len())

	resp, err := http.Post(srv.URL+"/api/categories", "application/json", bytes.NewBufferString(`{"name":"Garden"}`))
	require.NoError(t, err)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev struct {
		Type string `json:"type"`
		Data struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, hub.CategoryCreated, ev.Type)
	assert.Equal(t, created.ID, ev.Data.ID)
	assert.Equal(t, "Garden", ev.Data.Name)
}

func TestStaticSPA(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	r, _ := newTestRouter(t, config.Config{App: config.AppConfig{StaticDir: dir}})

	w := get(r, "/assets/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	for _, path := range []string{"/", "/board/today"} {
		w = get(r, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "<html>app</html>", w.Body.String(), path)
	}

	w = get(r, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())

	w = get(r, "/api/todos")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStaticDirWithoutIndexIsIgnored(t *testing.T) {
	r, _ := newTestRouter(t, config.Config{App: config.AppConfig{StaticDir: t.TempDir()}})
	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service"`)
}
