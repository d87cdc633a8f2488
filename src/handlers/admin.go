package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/apikey-rotator/src/logging"
	"github.com/khabaroff/apikey-rotator/src/middleware"
	"github.com/khabaroff/apikey-rotator/src/services"
)

// AdminHandler handles admin operations
type AdminHandler struct {
	manager      *services.PoolManager
	adminService *services.AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(manager *services.PoolManager, adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		manager:      manager,
		adminService: adminService,
	}
}

// AdminLoginRequest represents the request body for admin login
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse represents the response for successful login
type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// HandleAdminLogin authenticates admin user and returns JWT token
func (ah *AdminHandler) HandleAdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	logger := logging.ComponentLogger("admin", middleware.GetRequestID(c))

	admin, err := ah.adminService.AuthenticateAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logger.Warn().Str("client_ip", c.ClientIP()).Msg("admin login failed")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid username or password",
		})
		return
	}

	token, expiresAt, err := middleware.GenerateAdminToken(admin.Username)
	if err != nil {
		logger.Error().Err(err).Msg("failed to generate admin token")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to generate token",
		})
		return
	}

	c.SetCookie(
		"admin_token",
		token,
		int(middleware.AdminTokenTTL/time.Second),
		"/",
		"",
		true, // Secure
		true, // HttpOnly
	)

	logger.Info().Str("username", admin.Username).Msg("admin logged in")

	c.JSON(http.StatusOK, AdminLoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}

// HandleAdminLogout clears the admin token cookie
func (ah *AdminHandler) HandleAdminLogout(c *gin.Context) {
	c.SetCookie(
		"admin_token",
		"",
		-1,
		"/",
		"",
		true, // Secure
		true, // HttpOnly
	)

	c.JSON(http.StatusOK, gin.H{
		"status": "logged out",
	})
}

// HandleListKeys lists every key with masked values and today's usage
func (ah *AdminHandler) HandleListKeys(c *gin.Context) {
	keys, err := ah.manager.ListKeys(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	active := 0
	for _, k := range keys {
		if k.Active {
			active++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"keys":   keys,
		"total":  len(keys),
		"active": active,
	})
}

// HandleActivateKey returns a key to rotation
func (ah *AdminHandler) HandleActivateKey(c *gin.Context) {
	ah.handleSetActive(c, true)
}

// HandleDeactivateKey removes a key from rotation
func (ah *AdminHandler) HandleDeactivateKey(c *gin.Context) {
	ah.handleSetActive(c, false)
}

func (ah *AdminHandler) handleSetActive(c *gin.Context, active bool) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	if err := ah.manager.SetKeyActive(c.Request.Context(), req.Key, active); err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "key not found",
			})
			return
		}
		writeError(c, err)
		return
	}

	status := "deactivated"
	if active {
		status = "activated"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
	})
}
