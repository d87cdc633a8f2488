package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

const testSigningSecret = "signing-secret"

func serveSigned(t *testing.T, enabled bool, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestSignatureMiddleware(testSigningSecret, enabled))
	router.POST("/test", func(c *gin.Context) {
		// the body must still be readable after verification
		data, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(data))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRequestSignature_Valid(t *testing.T) {
	body := `{"key":"abc"}`

	for _, sig := range []string{SignBody([]byte(body), testSigningSecret), strings.TrimPrefix(SignBody([]byte(body), testSigningSecret), "sha256=")} {
		w := serveSigned(t, true, body, sig)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if w.Body.String() != body {
			t.Errorf("expected body to be restored, got %q", w.Body.String())
		}
	}
}

func TestRequestSignature_Rejects(t *testing.T) {
	body := `{"key":"abc"}`

	if w := serveSigned(t, true, body, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: expected 401, got %d", w.Code)
	}
	if w := serveSigned(t, true, body, SignBody([]byte(body), "other-secret")); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", w.Code)
	}
	if w := serveSigned(t, true, `{"key":"tampered"}`, SignBody([]byte(body), testSigningSecret)); w.Code != http.StatusUnauthorized {
		t.Errorf("tampered body: expected 401, got %d", w.Code)
	}
}

func TestRequestSignature_Disabled(t *testing.T) {
	if w := serveSigned(t, false, `{"key":"abc"}`, ""); w.Code != http.StatusOK {
		t.Errorf("expected status 200 when disabled, got %d", w.Code)
	}
}
