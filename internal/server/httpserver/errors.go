package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidTicket = "This ticket is invalid or has already been processed."
	msgVerified      = "Your project details have been submitted. You'll receive a confirmation email shortly."
	msgCancelled     = "Your ticket has been cancelled."
	msgServerError   = "A server error occurred. Please try again."
	msgInvalidInput  = "Invalid request. Please check the submitted details."
	msgUnauthorized  = "Unauthorized"
	msgForbidden     = "You are not allowed to cancel this ticket."
	msgEmailNotSent  = "The ticket was updated but the email could not be sent."
	msgDeliverySent  = "Delivery email sent."
	msgMisconfigured = "The server is not configured for this action."
	msgCompleted     = "Ticket marked as completed."
	msgForceCancel   = "Ticket manually cancelled."
	msgForceVerify   = "Ticket manually verified."
)

// statusFor maps a service error onto an HTTP status and a client-safe
// message. Causes are never echoed back. A failed notification is checked
// first: the ticket change is already committed whatever the mail cause was.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNotificationFailed):
		return http.StatusInternalServerError, msgEmailNotSent
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, msgInvalidInput
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, common.ErrIdentityMismatch):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgInvalidTicket
	case errors.Is(err, common.ErrAlreadyProcessed):
		return http.StatusConflict, msgInvalidTicket
	case errors.Is(err, common.ErrServerMisconfigured):
		return http.StatusInternalServerError, msgMisconfigured
	default:
		return http.StatusInternalServerError, msgServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	} else {
		h.log.Debug(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", code, "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": msg})
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": msgInvalidInput})
}
