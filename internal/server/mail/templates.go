package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
)

//go:embed templates/*.txt templates/*.html
var templateFS embed.FS

// Templates renders the notification emails. Text bodies use text/template,
// HTML bodies html/template so client-supplied fields are escaped.
type Templates struct {
	brand string
	text  *texttemplate.Template
	html  *htmltemplate.Template
}

func NewTemplates(brand string) (*Templates, error) {
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &Templates{brand: brand, text: text, html: html}, nil
}

type ticketData struct {
	Brand       string
	Name        string
	Ticket      *models.Ticket
	DetailLines []string
	Reason      string
	TicketURL   string
}

// OTP renders the admin login code email.
func (t *Templates) OTP(to, code string, ttl time.Duration) (Message, error) {
	data := struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(ttl.Round(time.Minute) / time.Minute)}
	return t.render(to, "Your Admin Login OTP", "otp", data)
}

// TicketVerified renders the confirmation sent after a client submits
// project details.
func (t *Templates) TicketVerified(tk *models.Ticket) (Message, error) {
	data := t.ticketData(tk)
	data.DetailLines = strings.Split(tk.ProjectDetails, "\n")
	return t.render(tk.ClientEmail, "Your Project Details are Submitted: Ticket "+tk.ID, "verified", data)
}

// TicketCancelled renders the cancellation notice.
func (t *Templates) TicketCancelled(tk *models.Ticket, reason string) (Message, error) {
	data := t.ticketData(tk)
	data.Reason = reason
	return t.render(tk.ClientEmail, "Your Ticket has been Cancelled: "+tk.ID, "cancelled", data)
}

// ProjectDelivered renders the delivery notice for a completed ticket.
func (t *Templates) ProjectDelivered(tk *models.Ticket, ticketURL string) (Message, error) {
	data := t.ticketData(tk)
	data.TicketURL = ticketURL
	return t.render(tk.ClientEmail, "Your Project has been Delivered: Ticket "+tk.ID, "delivered", data)
}

func (t *Templates) ticketData(tk *models.Ticket) ticketData {
	name := tk.ClientName
	if name == "" {
		name = "Client"
	}
	return ticketData{Brand: t.brand, Name: name, Ticket: tk}
}

func (t *Templates) render(to, subject, name string, data any) (Message, error) {
	var text, html bytes.Buffer
	if err := t.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return Message{}, fmt.Errorf("render %s.txt: %w", name, err)
	}
	if err := t.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s.html: %w", name, err)
	}
	return Message{
		To:      to,
		Subject: subject,
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    html.String(),
	}, nil
}
