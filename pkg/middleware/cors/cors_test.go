package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string, headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	w := serve([]string{"https://APP.workeasy.kr/"}, http.MethodGet, "https://app.workeasy.kr", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.workeasy.kr", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	w := serve([]string{"https://app.workeasy.kr"}, http.MethodGet, "https://evil.example", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWithoutOriginPassesThrough(t *testing.T) {
	w := serve(nil, http.MethodGet, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	preflight := map[string]string{"Access-Control-Request-Method": http.MethodPatch}

	w := serve(nil, http.MethodOptions, "https://any.example", preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Store-ID")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	w = serve([]string{"https://app.workeasy.kr"}, http.MethodOptions, "https://evil.example", preflight)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
