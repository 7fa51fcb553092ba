package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/auth"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/dmitrijs2005/ticketdesk/internal/server/mail"
)

// AdminUser is the fixed principal of every admin session.
const AdminUser = "admin"

// Session is an issued admin session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult is returned by PasswordLogin. In the OTP flow PreAuthToken and
// EmailOptions are set; in one-step mode only Session is.
type LoginResult struct {
	PreAuthToken string
	EmailOptions []string
	Session      *Session
}

// AdminAuthService runs the admin login ceremony:
// password -> emailed one-time code -> session token.
type AdminAuthService struct {
	tokens      *auth.Tokens
	mailer      mail.Sender
	templates   *mail.Templates
	log         logging.Logger
	generateOTP func() (string, error)

	password    string
	recipients  []string
	otpRequired bool
	preAuthTTL  time.Duration
	otpTTL      time.Duration
	sessionTTL  time.Duration
}

// NewAdminAuthService constructs the service from server config.
func NewAdminAuthService(cfg *config.Config, tokens *auth.Tokens, mailer mail.Sender, templates *mail.Templates, log logging.Logger) *AdminAuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &AdminAuthService{
		tokens:      tokens,
		mailer:      mailer,
		templates:   templates,
		log:         log.With("module", "admin-auth"),
		generateOTP: auth.GenerateOTP,
		password:    cfg.AdminPassword,
		recipients:  slices.Clone(cfg.OTPRecipients),
		otpRequired: cfg.OTPRequired,
		preAuthTTL:  cfg.PreAuthTokenValidityDuration,
		otpTTL:      cfg.OTPTokenValidityDuration,
		sessionTTL:  cfg.SessionValidityDuration,
	}
}

// PasswordLogin checks the admin password. With OTP enabled it returns a
// pre-auth token and the addresses a code may be sent to; otherwise it
// returns a session directly.
func (s *AdminAuthService) PasswordLogin(ctx context.Context, password string) (*LoginResult, error) {
	if s.password == "" {
		return nil, fmt.Errorf("%w: admin password is not set", common.ErrServerMisconfigured)
	}
	if s.otpRequired && len(s.recipients) == 0 {
		return nil, fmt.Errorf("%w: no otp recipients configured", common.ErrServerMisconfigured)
	}
	if !auth.CheckPassword(s.password, password) {
		s.log.Warn(ctx, "admin password rejected")
		return nil, common.ErrUnauthorized
	}

	if !s.otpRequired {
		session, err := s.issueSession(auth.Claims{Purpose: auth.PurposeSession, User: AdminUser})
		if err != nil {
			return nil, err
		}
		s.log.Info(ctx, "admin logged in", "mode", "password")
		return &LoginResult{Session: session}, nil
	}

	token, _, err := s.tokens.Issue(auth.Claims{Purpose: auth.PurposePreAuth, PasswordVerified: true}, s.preAuthTTL)
	if err != nil {
		return nil, tokenIssueError(err)
	}
	return &LoginResult{PreAuthToken: token, EmailOptions: slices.Clone(s.recipients)}, nil
}

// RequestOtp emails a fresh 6-digit code to email and returns the OTP token
// that carries it. The pre-auth token is checked before the allow-list.
func (s *AdminAuthService) RequestOtp(ctx context.Context, email, preAuthToken string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || preAuthToken == "" {
		return "", fmt.Errorf("%w: missing email or token", common.ErrInvalidInput)
	}

	claims, err := s.tokens.VerifyFor(preAuthToken, auth.PurposePreAuth)
	if err != nil {
		return "", authError(err)
	}
	if !claims.PasswordVerified {
		return "", common.ErrUnauthorized
	}
	if !slices.Contains(s.recipients, email) {
		return "", fmt.Errorf("%w: email address is not allowed", common.ErrInvalidInput)
	}

	code, err := s.generateOTP()
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	otpToken, _, err := s.tokens.Issue(auth.Claims{Purpose: auth.PurposeOTP, OTP: code, Email: email}, s.otpTTL)
	if err != nil {
		return "", tokenIssueError(err)
	}

	msg, err := s.templates.OTP(email, code, s.otpTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "otp email failed", "error", err)
		return "", mailError(err)
	}

	s.log.Info(ctx, "otp sent", "email", email)
	return otpToken, nil
}

// VerifyOtp exchanges a matching code and OTP token for a session.
func (s *AdminAuthService) VerifyOtp(ctx context.Context, otp, otpToken string) (*Session, error) {
	if otp == "" || otpToken == "" {
		return nil, fmt.Errorf("%w: missing otp or token", common.ErrInvalidInput)
	}

	claims, err := s.tokens.VerifyFor(otpToken, auth.PurposeOTP)
	if err != nil {
		return nil, authError(err)
	}
	if claims.OTP == "" || subtle.ConstantTimeCompare([]byte(claims.OTP), []byte(otp)) != 1 {
		s.log.Warn(ctx, "otp mismatch", "email", claims.Email)
		return nil, common.ErrUnauthorized
	}

	session, err := s.issueSession(auth.Claims{Purpose: auth.PurposeSession, User: AdminUser, Email: claims.Email})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "admin logged in", "mode", "otp", "email", claims.Email)
	return session, nil
}

// ValidateSession reports whether token is a live admin session. It never
// fails; any problem means false.
func (s *AdminAuthService) ValidateSession(token string) bool {
	_, err := s.Authorize(token)
	return err == nil
}

// Authorize returns the session claims, common.ErrUnauthorized for a bad or
// expired token, or common.ErrServerMisconfigured without a signing secret.
func (s *AdminAuthService) Authorize(token string) (*auth.Claims, error) {
	claims, err := s.tokens.VerifyFor(token, auth.PurposeSession)
	if err != nil {
		return nil, authError(err)
	}
	if claims.User != AdminUser {
		return nil, common.ErrUnauthorized
	}
	return claims, nil
}

// OperatorSession issues a session for a local operator who holds the
// signing secret, such as the admin CLI.
func (s *AdminAuthService) OperatorSession(operator string) (*Session, error) {
	claims := auth.Claims{Purpose: auth.PurposeSession, User: AdminUser}
	if operator != "" {
		claims.Subject = "operator:" + operator
	}
	return s.issueSession(claims)
}

// SessionTTL is the lifetime of issued sessions.
func (s *AdminAuthService) SessionTTL() time.Duration { return s.sessionTTL }

func (s *AdminAuthService) issueSession(claims auth.Claims) (*Session, error) {
	token, exp, err := s.tokens.Issue(claims, s.sessionTTL)
	if err != nil {
		return nil, tokenIssueError(err)
	}
	return &Session{Token: token, ExpiresAt: exp}, nil
}

func authError(err error) error {
	if errors.Is(err, common.ErrServerMisconfigured) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
}

func tokenIssueError(err error) error {
	if errors.Is(err, common.ErrServerMisconfigured) {
		return fmt.Errorf("%w: signing secret is not set", common.ErrServerMisconfigured)
	}
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}

func mailError(err error) error {
	if errors.Is(err, common.ErrServerMisconfigured) || errors.Is(err, common.ErrorInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}
