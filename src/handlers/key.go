package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/apikey-rotator/src/logging"
	"github.com/khabaroff/apikey-rotator/src/middleware"
	"github.com/khabaroff/apikey-rotator/src/services"
)

// exhaustedMessage is the body text of the 503 returned when no key has quota left
const exhaustedMessage = "All API keys have reached their daily limit. Please try again tomorrow."

// KeyHandler serves key selection and usage accounting
type KeyHandler struct {
	manager *services.PoolManager
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(manager *services.PoolManager) *KeyHandler {
	return &KeyHandler{manager: manager}
}

// KeyRequest is the body of the confirm and failure endpoints
type KeyRequest struct {
	Key string `json:"key" binding:"required"`
}

// HandleNext returns the least used key with quota left
func (kh *KeyHandler) HandleNext(c *gin.Context) {
	sel, err := kh.manager.SelectKey(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// HandleConfirm records one use of a previously selected key
func (kh *KeyHandler) HandleConfirm(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	usage, err := kh.manager.ConfirmUsage(c.Request.Context(), req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// HandleFailure marks a key as exhausted for the rest of the UTC day
func (kh *KeyHandler) HandleFailure(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	ack, err := kh.manager.ReportFailure(c.Request.Context(), req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// HandleLegacyGetKey serves GET /api/get-key[?failed=true&key=...]:
// an optional failure report followed by a selection that is counted
// against the key's quota right away.
func (kh *KeyHandler) HandleLegacyGetKey(c *gin.Context) {
	failed, hasFailed := c.GetQuery("failed")
	key, hasKey := c.GetQuery("key")

	if hasFailed && failed != "true" && failed != "false" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "failed must be true or false",
		})
		return
	}

	reportFailure := failed == "true"
	switch {
	case reportFailure && key == "":
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "key is required when failed=true",
		})
		return
	case !reportFailure && hasKey:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "key is only accepted together with failed=true",
		})
		return
	}

	if reportFailure {
		if _, err := kh.manager.ReportFailure(c.Request.Context(), key); err != nil {
			writeError(c, err)
			return
		}
	}

	sel, err := kh.manager.SelectAndConsume(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// writeError maps core errors to HTTP responses
func writeError(c *gin.Context, err error) {
	var exhausted *services.ExhaustedError

	switch {
	case errors.As(err, &exhausted):
		c.Header("Retry-After", retryAfterSeconds(exhausted.RetryAfter))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     exhaustedMessage,
			"resetTime": exhausted.RetryAfter.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, services.ErrKeyNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "key not found",
		})
	case errors.Is(err, services.ErrQuotaAlreadyExhausted):
		c.JSON(http.StatusConflict, gin.H{
			"error": "key quota already exhausted",
		})
	case errors.Is(err, services.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "key store unavailable",
		})
	default:
		logger := logging.ComponentLogger("key_handler", middleware.GetRequestID(c))
		logger.Error().Err(err).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	}
}

// retryAfterSeconds formats the delay until t for the Retry-After header (at least 1)
func retryAfterSeconds(t time.Time) string {
	secs := int64(math.Ceil(time.Until(t).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
