package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/rei-deal-drop/internal/auth"
	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new auth handler with service injection
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// setSecureCookie sets a secure HTTP-only cookie
func setSecureCookie(c *gin.Context, name, value string, maxAge int) {
	secure := c.Request.Header.Get("X-Forwarded-Proto") == "https" || c.Request.TLS != nil
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", secure, true)
}

// clearCookie clears a cookie by setting it to empty with past expiration
func clearCookie(c *gin.Context, name string) {
	setSecureCookie(c, name, "", -1)
}

// Login authenticates a user and starts a cookie session
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.startSession(c, response)
}

// Register creates a new user account
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "User created successfully",
		"user":      user,
		"timestamp": now(),
	})
}

// RefreshToken issues a new token pair from the refresh cookie or request body
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie(auth.RefreshCookie)
	if err != nil || refreshToken == "" {
		var req models.RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			respondError(c, errors.InvalidInput("refresh_token is required", err))
			return
		}
		refreshToken = req.RefreshToken
	}

	response, err := h.authService.RefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	h.startSession(c, response)
}

// Logout clears the session cookies
func (h *AuthHandler) Logout(c *gin.Context) {
	clearCookie(c, auth.AuthCookie)
	clearCookie(c, auth.RefreshCookie)
	clearCookie(c, auth.CSRFCookie)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully", "timestamp": now()})
}

func (h *AuthHandler) startSession(c *gin.Context, response *models.LoginResponse) {
	csrfToken, err := auth.NewCSRFToken()
	if err != nil {
		respondError(c, errors.InternalError("failed to generate csrf token", err))
		return
	}

	setSecureCookie(c, auth.AuthCookie, response.Token, int(auth.AccessTokenTTL/time.Second))
	setSecureCookie(c, auth.RefreshCookie, response.RefreshToken, int(auth.RefreshTokenTTL/time.Second))
	setSecureCookie(c, auth.CSRFCookie, csrfToken, int(auth.AccessTokenTTL/time.Second))

	c.JSON(http.StatusOK, gin.H{
		"token":         response.Token,
		"refresh_token": response.RefreshToken,
		"csrf_token":    csrfToken,
		"user":          response.User,
		"expires_at":    now().Add(auth.AccessTokenTTL),
		"timestamp":     now(),
	})
}
