package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tooldir/internal/pkg/jwt"
)

var testSecret = []byte("middleware-secret")

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.POST("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetString(ContextUserIDKey),
			"request_id": c.GetString(ContextRequestIDKey),
		})
	})
	return r
}

func doProbe(r http.Handler, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newEngine(JWTAuth(testSecret))
	require.Equal(t, http.StatusUnauthorized, doProbe(r, nil).Code)
	require.Equal(t, http.StatusUnauthorized, doProbe(r, map[string]string{"Authorization": "Token abc"}).Code)
	require.Equal(t, http.StatusUnauthorized, doProbe(r, map[string]string{"Authorization": "Bearer abc"}).Code)

	token, err := jwt.GenerateToken("u1", "a@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	w := doProbe(r, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"user_id":"u1"`)
}

func TestOptionalJWTAuth(t *testing.T) {
	r := newEngine(OptionalJWTAuth(testSecret))
	w := doProbe(r, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"user_id":""`)

	require.Equal(t, http.StatusUnauthorized, doProbe(r, map[string]string{"Authorization": "Bearer junk"}).Code)

	token, err := jwt.GenerateToken("u2", "", testSecret, time.Hour)
	require.NoError(t, err)
	w = doProbe(r, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"user_id":"u2"`)
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())
	w := doProbe(r, map[string]string{HeaderRequestID: "req-123"})
	require.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	require.Contains(t, w.Body.String(), `"request_id":"req-123"`)

	w = doProbe(r, nil)
	require.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://tools.example.com/"}))
	w := doProbe(r, map[string]string{"Origin": "https://tools.example.com"})
	require.Equal(t, "https://tools.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")

	w = doProbe(r, map[string]string{"Origin": "https://evil.example.com"})
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := newEngine(CORS(nil))
	w = doProbe(open, nil)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
