package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/khabaroff/apikey-rotator/src/repositories/mock"
	"github.com/khabaroff/apikey-rotator/src/services"
)

// Test helpers for handler tests

// createTestContext creates a test Gin context with recorder
func createTestContext() (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return w, c
}

// newTestManager creates a pool manager over a mock store holding records
func newTestManager(records ...models.KeyRecord) (*services.PoolManager, *mock.StateStore) {
	store := mock.NewStateStore(&models.KeyPool{Version: models.SchemaVersion, Keys: records})
	return services.NewPoolManager(store), store
}

// testRecord creates an active record counted from today
func testRecord(key string, limit, used int) models.KeyRecord {
	return models.KeyRecord{
		Key:        key,
		Name:       "Key " + key,
		Active:     true,
		DailyLimit: limit,
		UsedToday:  used,
		LastReset:  time.Now().UTC(),
	}
}

// performRequest sends a request through router, encoding body as JSON when set
func performRequest(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	return performRequestWithHeader(router, method, path, body, "", "")
}

// performRequestWithHeader is performRequest with one extra request header
func performRequestWithHeader(router http.Handler, method, path string, body interface{}, header, value string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeResponse parses the JSON body of w
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

// assertStatusCode checks if response status code matches expected
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expectedCode int) {
	t.Helper()
	if w.Code != expectedCode {
		t.Errorf("expected status %d, got %d: %s", expectedCode, w.Code, w.Body.String())
	}
}

// assertJSONError checks if response contains expected error message
func assertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedError string) {
	t.Helper()
	response := decodeResponse(t, w)
	if response["error"] != expectedError {
		t.Errorf("expected error '%s', got '%v'", expectedError, response["error"])
	}
}
