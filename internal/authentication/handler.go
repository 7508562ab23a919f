package authentication

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefreshTokenHeader carries the refresh token for legacy clients that do not
// send it in the body.
const RefreshTokenHeader = "X-Refresh-Token"

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the payload for the legacy refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest is the payload for logging out.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required,refreshtoken"`
}

// LoginResponse withholds tokens when the account is not confirmed.
type LoginResponse struct {
	EmailConfirmed bool   `json:"emailConfirmed"`
	AccessToken    string `json:"accessToken,omitempty"`
	RefreshToken   string `json:"refreshToken,omitempty"`
}

// TokenResponse contains both access and refresh tokens.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// LogoutResponse reports whether an active token was revoked.
type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}

// AuthHandler handles authentication-related HTTP endpoints.
type AuthHandler struct {
	router  *gin.RouterGroup
	service AuthenticationService
	cookies CookieSettings
	logger  *zap.Logger
}

// NewAuthHandler registers auth endpoints on the given router group. Extra
// middleware (rate limiting) is applied to the credential-bearing routes.
func NewAuthHandler(
	router *gin.RouterGroup,
	service AuthenticationService,
	cookies CookieSettings,
	logger *zap.Logger,
	middleware ...gin.HandlerFunc,
) *AuthHandler {
	if err := registerValidations(); err != nil {
		logger.Error("failed to register refresh token validation", zap.Error(err))
	}

	h := &AuthHandler{router: router, service: service, cookies: cookies, logger: logger}
	limited := h.router.Group("/auth", middleware...)
	limited.POST("/login", h.Login)
	limited.POST("/login-v2", h.LoginV2)
	limited.POST("/refresh", h.Refresh)
	limited.POST("/refresh-v2", h.RefreshV2)
	h.router.POST("/auth/logout", h.Logout)
	return h
}

// Login godoc
// @Summary      Login
// @Description  Authenticate and receive both tokens in the body
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      LoginRequest  true  "Login credentials"
// @Success      200      {object}  LoginResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	pair, ok := h.login(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		EmailConfirmed: true,
		AccessToken:    pair.AccessToken,
		RefreshToken:   pair.RefreshToken,
	})
}

// LoginV2 godoc
// @Summary      Login (cookie)
// @Description  Authenticate; the refresh token is set as an HttpOnly cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      LoginRequest  true  "Login credentials"
// @Success      200      {object}  LoginResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/login-v2 [post]
func (h *AuthHandler) LoginV2(c *gin.Context) {
	pair, ok := h.login(c)
	if !ok {
		return
	}
	h.cookies.set(c, pair.RefreshToken, pair.RefreshExpiresAt)
	c.JSON(http.StatusOK, LoginResponse{
		EmailConfirmed: true,
		AccessToken:    pair.AccessToken,
	})
}

func (h *AuthHandler) login(c *gin.Context) (*TokenPair, bool) {
	noStore(c)
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or password format"})
		return nil, false
	}
	pair, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		return pair, true
	case errors.Is(err, ErrAccountNotConfirmed):
		c.JSON(http.StatusOK, LoginResponse{EmailConfirmed: false})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		h.logger.Error("Login service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
	}
	return nil, false
}

// Refresh godoc
// @Summary      Refresh Token
// @Description  Rotate a refresh token sent in the body or the X-Refresh-Token header
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      RefreshRequest  false  "Refresh token payload"
// @Success      200      {object}  TokenResponse
// @Failure      401      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	noStore(c)
	var req RefreshRequest
	if c.Request.ContentLength != 0 {
		// A chunked request with an empty body reads as io.EOF.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.logger.Warn("invalid refresh payload", zap.Error(err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid refresh payload"})
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token = c.GetHeader(RefreshTokenHeader)
	}
	if token == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "refresh token required"})
		return
	}

	pair, ok := h.refresh(c, token, nil)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// RefreshV2 godoc
// @Summary      Refresh Token (cookie)
// @Description  Rotate the refresh token held in the HttpOnly cookie
// @Tags         auth
// @Produce      json
// @Success      200      {object}  TokenResponse
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/refresh-v2 [post]
func (h *AuthHandler) RefreshV2(c *gin.Context) {
	noStore(c)
	token := h.cookies.read(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	pair, ok := h.refresh(c, token, h.cookies.clear)
	if !ok {
		return
	}
	h.cookies.set(c, pair.RefreshToken, pair.RefreshExpiresAt)
	c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken})
}

// refresh writes the error response itself. onFailure runs before that write,
// while headers such as Set-Cookie can still be added.
func (h *AuthHandler) refresh(c *gin.Context, token string, onFailure func(*gin.Context)) (*TokenPair, bool) {
	pair, err := h.service.Refresh(c.Request.Context(), token)
	if err == nil {
		return pair, true
	}
	if onFailure != nil {
		onFailure(c)
	}
	switch {
	case errors.Is(err, ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
	default:
		h.logger.Error("Refresh service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh token"})
	}
	return nil, false
}

// Logout godoc
// @Summary      Logout
// @Description  Revoke a refresh token; repeated calls report revoked=false
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      LogoutRequest  true  "Logout payload"
// @Success      200      {object}  LogoutResponse
// @Failure      422      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout payload", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed refresh token"})
		return
	}
	revoked, err := h.service.Logout(c.Request.Context(), req.RefreshToken)
	switch {
	case err == nil:
		h.cookies.clear(c)
		c.JSON(http.StatusOK, LogoutResponse{Revoked: revoked})
	case errors.Is(err, ErrMalformedRefreshToken):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed refresh token"})
	default:
		h.logger.Error("Logout service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
	}
}
