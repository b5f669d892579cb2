package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required,identifier"`
	Password   string `json:"password" binding:"required,min=8,max=128"`
}

type otpRequestRequest struct {
	Identifier string `json:"identifier" binding:"required,identifier"`
}

type otpVerifyRequest struct {
	Identifier string `json:"identifier" binding:"required,identifier"`
	Code       string `json:"code" binding:"required,numeric,min=4,max=10"`
}

type otpLockoutRequest struct {
	Identifier string `json:"identifier" binding:"required,identifier"`
	Minutes    int    `json:"minutes" binding:"omitempty,min=1,max=10080"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid login request")
		return
	}

	result, err := s.svc.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setAuthCookies(c, result.Tokens.AccessToken, result.Tokens.RefreshToken)
	c.JSON(http.StatusOK, result.Profile)
}

// handleLogout always answers 200: the server revokes what it can and the
// client discards its cookies either way.
func (s *Server) handleLogout(c *gin.Context) {
	access := bearerOrCookie(c, accessCookie)
	refresh, _ := c.Cookie(refreshCookie)

	s.svc.Logout(c.Request.Context(), access, refresh)
	s.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (s *Server) handleRefresh(c *gin.Context) {
	refresh, _ := c.Cookie(refreshCookie)

	access, err := s.svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setAccessCookie(c, access)
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (s *Server) handleSession(c *gin.Context) {
	access := bearerOrCookie(c, accessCookie)

	profile, err := s.svc.Profile(c.Request.Context(), access)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handleOTPRequest answers 200 for every well-formed identifier, known to
// the system or not.
func (s *Server) handleOTPRequest(c *gin.Context) {
	var req otpRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid identifier")
		return
	}

	if err := s.svc.RequestOTP(c.Request.Context(), req.Identifier); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "code sent"})
}

func (s *Server) handleOTPVerify(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid verification request")
		return
	}

	result, err := s.svc.VerifyOTP(c.Request.Context(), req.Identifier, req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setAuthCookies(c, result.Tokens.AccessToken, result.Tokens.RefreshToken)
	c.JSON(http.StatusOK, result.Profile)
}

func (s *Server) handleOTPLockout(c *gin.Context) {
	var req otpLockoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid lockout request")
		return
	}

	access := bearerOrCookie(c, accessCookie)
	duration := time.Duration(req.Minutes) * time.Minute

	if err := s.svc.LockoutOTP(c.Request.Context(), access, req.Identifier, duration); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "locked"})
}
