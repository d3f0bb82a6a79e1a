package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workeasy-api/internal/middleware"
	"github.com/noah-isme/workeasy-api/internal/models"
)

const (
	testUser  = "0b6c1a4e-0000-4000-8000-000000000001"
	testStore = "0b6c1a4e-0000-4000-8000-0000000000aa"
)

type envelope struct {
	Data  json.RawMessage                 `json:"data"`
	Error *struct{ Code, Message string } `json:"error"`
	Meta  map[string]interface{}          `json:"meta"`
}

// newContext builds a gin test context authenticated as testUser and scoped to testStore.
func newContext(method, target string, body interface{}, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: testUser}})
	c.Set(middleware.ContextStoreIDKey, testStore)
	c.Set(middleware.ContextStoreRoleKey, models.RoleManager)
	return c, w
}

func idParam(id string) gin.Param {
	return gin.Param{Key: "id", Value: id}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
