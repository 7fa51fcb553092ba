// Package common contains shared constants and sentinel errors used across
// ticketdesk components.
package common

// AuthCookieName is the cookie carrying the admin session token.
const AuthCookieName = "auth_token"

// TicketIDPrefix is the fixed prefix of every generated ticket id.
const TicketIDPrefix = "cs"
