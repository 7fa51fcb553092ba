package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	api := r.Group("/api")
	{
		api.POST("/login", h.Login)
		api.POST("/login/send-otp", h.SendOtp)
		api.POST("/login/verify-otp", h.VerifyOtp)
		api.POST("/logout", h.Logout)
		api.GET("/auth-check", h.AuthCheck)

		api.GET("/tickets/:id", h.GetTicket)
		api.POST("/tickets/:id/verify", h.VerifyTicket)
		api.POST("/tickets/:id/cancel", h.CancelTicket)
	}

	r.GET(loginPath, h.LoginEntry)

	admin := r.Group(loginPath, Guard(h.admin))
	{
		admin.GET("/tickets", h.ListTickets)
		admin.POST("/tickets", h.CreateTicket)
		admin.POST("/tickets/:id/complete", h.CompleteTicket)
		admin.POST("/tickets/:id/deliver", h.DeliverTicket)
		admin.POST("/tickets/:id/force-cancel", h.ForceCancelTicket)
		admin.POST("/tickets/:id/force-verify", h.ForceVerifyTicket)
		admin.DELETE("/tickets/:id", h.DeleteTicket)
	}

	return r
}
