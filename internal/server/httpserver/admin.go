package httpserver

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTickets(c *gin.Context) {
	list, err := h.tickets.List(c.Request.Context(), sessionToken(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tickets": list})
}

func (h *Handler) CreateTicket(c *gin.Context) {
	t, err := h.tickets.Create(c.Request.Context(), sessionToken(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "ticket": t})
}

func (h *Handler) CompleteTicket(c *gin.Context) {
	h.adminTransition(c, h.tickets.Complete, msgCompleted)
}

func (h *Handler) ForceCancelTicket(c *gin.Context) {
	h.adminTransition(c, h.tickets.ForceCancel, msgForceCancel)
}

func (h *Handler) ForceVerifyTicket(c *gin.Context) {
	h.adminTransition(c, h.tickets.ForceVerify, msgForceVerify)
}

func (h *Handler) DeliverTicket(c *gin.Context) {
	if err := h.tickets.SendDeliveryEmail(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgDeliverySent})
}

func (h *Handler) DeleteTicket(c *gin.Context) {
	if err := h.tickets.Delete(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type adminAction func(ctx context.Context, session, id string) (*models.Ticket, error)

func (h *Handler) adminTransition(c *gin.Context, action adminAction, msg string) {
	t, err := action(c.Request.Context(), sessionToken(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "ticket": t})
}
