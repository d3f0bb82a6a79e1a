package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workeasy-api/internal/models"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/logger"
)

type validatorStub struct{}

func (validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}, nil
}

type resolverStub struct {
	current *models.StoreContext
	roles   map[string]models.UserRole
}

func (r resolverStub) CurrentStore(context.Context, string) (*models.StoreContext, error) {
	if r.current == nil {
		return &models.StoreContext{}, nil
	}
	return r.current, nil
}

func (r resolverStub) Membership(_ context.Context, storeID, _ string) (models.UserRole, error) {
	role, ok := r.roles[storeID]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrForbidden, "매장 멤버가 아닙니다.")
	}
	return role, nil
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(validatorStub{}))
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFromContext(c).UserID()+"|"+c.GetString(logger.ContextUserIDKey))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "bearer good", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "user-1|user-1", w.Body.String())
			}
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(OptionalJWT(validatorStub{}))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFromContext(c).UserID())
	})

	for header, want := range map[string]string{"": "", "Bearer bad": "", "Bearer good": "user-1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String(), header)
	}
}

func newScopedRouter(resolver StoreResolver, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(validatorStub{}), StoreScope(resolver))
	handlers := append(extra, func(c *gin.Context) {
		role, _ := StoreRoleFromContext(c)
		c.String(http.StatusOK, StoreIDFromContext(c)+"|"+string(role))
	})
	router.GET("/scoped", handlers...)
	router.GET("/stores/:storeId/scoped", handlers...)
	return router
}

func serveScoped(router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer good")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestStoreScopeResolution(t *testing.T) {
	resolver := resolverStub{
		current: &models.StoreContext{Store: &models.Store{ID: "store-home"}, Role: models.RoleStaff},
		roles: map[string]models.UserRole{
			"store-home":  models.RoleStaff,
			"store-owned": models.RoleManager,
		},
	}
	router := newScopedRouter(resolver)

	w := serveScoped(router, "/scoped", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-home|staff", w.Body.String())

	w = serveScoped(router, "/scoped", map[string]string{StoreHeader: "store-owned"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-owned|manager", w.Body.String())

	w = serveScoped(router, "/stores/store-owned/scoped", map[string]string{StoreHeader: "store-home"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-owned|manager", w.Body.String(), "path parameter wins over header")

	w = serveScoped(router, "/scoped?store_id=store-owned", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-owned|manager", w.Body.String())

	w = serveScoped(router, "/scoped?store_id=store-owned", map[string]string{StoreHeader: "store-home"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-home|staff", w.Body.String(), "header wins over query")

	w = serveScoped(router, "/scoped?storeId=store-other", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStoreScopeWithoutStore(t *testing.T) {
	router := newScopedRouter(resolverStub{})

	w := serveScoped(router, "/scoped", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrNoStore.Code)
}

func TestRequireStoreRole(t *testing.T) {
	resolver := resolverStub{roles: map[string]models.UserRole{"store-1": models.RoleStaff, "store-2": models.RoleManager}}
	router := newScopedRouter(resolver, RequireStoreRole(models.RoleManager))

	w := serveScoped(router, "/stores/store-1/scoped", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "매니저 권한이 필요합니다.")

	w = serveScoped(router, "/stores/store-2/scoped", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	router := gin.New()
	router.Use(Metrics(obs))
	router.GET("/shifts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/shifts/abc", "/wp-admin"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"/shifts/:id", "unmatched"}, obs.paths)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNotFound}, obs.statuses)
}
