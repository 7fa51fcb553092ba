package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Password string `json:"password"`
}

type sendOtpRequest struct {
	Email        string `json:"email"`
	PreAuthToken string `json:"preAuthToken"`
}

type verifyOtpRequest struct {
	OTP      string `json:"otp"`
	OTPToken string `json:"otpToken"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		badRequest(c)
		return
	}

	res, err := h.admin.PasswordLogin(c.Request.Context(), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.Session != nil {
		h.setSessionCookie(c.Writer, res.Session)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"preAuthToken": res.PreAuthToken,
		"emailOptions": res.EmailOptions,
	})
}

func (h *Handler) SendOtp(c *gin.Context) {
	var req sendOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	otpToken, err := h.admin.RequestOtp(c.Request.Context(), req.Email, req.PreAuthToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "otpToken": otpToken})
}

func (h *Handler) VerifyOtp(c *gin.Context) {
	var req verifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	session, err := h.admin.VerifyOtp(c.Request.Context(), req.OTP, req.OTPToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c.Writer, session)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Logout(c *gin.Context) {
	h.clearSessionCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) AuthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": h.authenticated(c)})
}

// LoginEntry is the unguarded /admin page. Signed-in admins go straight to
// the ticket list.
func (h *Handler) LoginEntry(c *gin.Context) {
	if h.authenticated(c) {
		c.Redirect(http.StatusFound, ticketsPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false, "login": "/api/login"})
}

func (h *Handler) authenticated(c *gin.Context) bool {
	token, err := c.Cookie(common.AuthCookieName)
	return err == nil && token != "" && h.admin.ValidateSession(token)
}
