package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		*capture = Value(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	var seen string
	router := idRouter(&seen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestIDKeepsWellFormedInboundID(t *testing.T) {
	var seen string
	router := idRouter(&seen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "edge-proxy_0042")
	router.ServeHTTP(w, req)

	assert.Equal(t, "edge-proxy_0042", seen)
	assert.Equal(t, "edge-proxy_0042", w.Header().Get("X-Request-ID"))
}

func TestRequestIDReplacesMalformedInboundID(t *testing.T) {
	var seen string
	router := idRouter(&seen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "bad id\nwith newline")
	router.ServeHTTP(w, req)

	require.NotEmpty(t, seen)
	assert.NotEqual(t, "bad id\nwith newline", seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}
