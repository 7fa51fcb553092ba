package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/dmitrijs2005/ticketdesk/internal/server/services"
	"github.com/gin-gonic/gin"
)

// publicTicket is what an unauthenticated client may see of a ticket.
type publicTicket struct {
	ID        string              `json:"id"`
	Status    models.TicketStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

func (h *Handler) GetTicket(c *gin.Context) {
	t, err := h.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ticket":  publicTicket{ID: t.ID, Status: t.Status, CreatedAt: t.CreatedAt},
	})
}

func (h *Handler) VerifyTicket(c *gin.Context) {
	var in services.VerifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}

	if _, err := h.tickets.Verify(c.Request.Context(), c.Param("id"), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgVerified})
}

func (h *Handler) CancelTicket(c *gin.Context) {
	var in services.CancelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}

	if _, err := h.tickets.Cancel(c.Request.Context(), c.Param("id"), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgCancelled})
}
