package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRequester() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(Requester(r.Context())))
	})
}

func TestMiddleware_ValidKey(t *testing.T) {
	resolver := StaticResolver{"key-1": "tg:42"}
	handler := Middleware(resolver)(echoRequester())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderName, "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tg:42", rec.Body.String())
}

func TestMiddleware_MissingKey(t *testing.T) {
	handler := Middleware(StaticResolver{})(echoRequester())

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_UnknownKey(t *testing.T) {
	handler := Middleware(StaticResolver{"key-1": "tg:42"})(echoRequester())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderName, "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequester_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, Requester(req.Context()))
}

func TestHashKey_Stable(t *testing.T) {
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
	assert.Len(t, HashKey("abc"), 64)
}
