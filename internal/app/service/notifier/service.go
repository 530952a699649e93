package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/logctx"
)

// sendFunc matches smtp.SendMail; injectable so tests never open sockets.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service is the fire-and-forget mail side channel: welcome mail on first
// activation, admin alerts on state transitions, and the admin test mail.
// Failures are logged and reported to the caller but must never block or
// roll back a subscription transition.
type Service struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	send sendFunc
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, log: log, send: smtp.SendMail}
}

// SendWelcomeEmail delivers the set-your-password welcome mail.
func (s *Service) SendWelcomeEmail(ctx context.Context, userID, email, username string) error {
	subject, body := s.renderWelcome(username, email)
	if err := s.deliver(email, subject, body); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("welcome email send failed", "user_id", userID, "email", email, "error", err.Error())
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("welcome email sent", "user_id", userID, "email", email)
	return nil
}

// SendTestEmail delivers the welcome template to an operator-chosen address.
func (s *Service) SendTestEmail(ctx context.Context, email, username string) error {
	if username == "" {
		username = "testuser"
	}
	subject, body := s.renderWelcome(username, email)
	return s.deliver(email, subject, body)
}

// NotifyAdmin sends a plain alert about a subscription transition. Best
// effort: runs detached, errors only logged.
func (s *Service) NotifyAdmin(ctx context.Context, action, email, displayName string) {
	if !s.cfg.Email.AdminNotifications || s.cfg.Email.AdminEmail == "" {
		return
	}
	subject := fmt.Sprintf("[%s] Subscription %s", s.cfg.SiteName, action)
	body := fmt.Sprintf("User: %s (%s)<br>Action: %s<br>Date: %s",
		displayName, email, action, time.Now().Format(time.RFC3339))
	go func() {
		if err := s.deliver(s.cfg.Email.AdminEmail, subject, body); err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("admin notification send failed", "action", action, "error", err.Error())
		}
	}()
}

// renderWelcome fills the operator-configurable templates. Placeholders:
// {site_name}, {username}, {email}.
func (s *Service) renderWelcome(username, email string) (subject, body string) {
	fill := func(t string) string {
		t = strings.ReplaceAll(t, "{site_name}", s.cfg.SiteName)
		t = strings.ReplaceAll(t, "{username}", username)
		t = strings.ReplaceAll(t, "{email}", email)
		return t
	}

	subject = fill(s.cfg.Email.SubjectTemplate)
	heading := fill(s.cfg.Email.HeadingTemplate)
	message := strings.ReplaceAll(fill(s.cfg.Email.MessageTemplate), "\n", "<br>")

	var button string
	if s.cfg.Email.PasswordSetupURL != "" {
		link := s.cfg.Email.PasswordSetupURL
		sep := "?"
		if strings.Contains(link, "?") {
			sep = "&"
		}
		button = fmt.Sprintf(`<p><a href="%s%semail=%s">%s</a></p>`, link, sep, email, fill(s.cfg.Email.ButtonText))
	}

	body = fmt.Sprintf("<h1>%s</h1><p>%s</p>%s", heading, message, button)
	return subject, body
}

func (s *Service) deliver(to, subject, body string) error {
	host := s.cfg.Email.SMTPHost
	if host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	addr := fmt.Sprintf("%s:%d", host, s.cfg.Email.SMTPPort)

	from := s.cfg.Email.FromAddress
	if from == "" {
		from = fmt.Sprintf("no-reply@%s", host)
	}
	fromHeader := from
	if s.cfg.Email.FromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", s.cfg.Email.FromName, from)
	}

	var auth smtp.Auth
	if s.cfg.Email.SMTPUsername != "" && s.cfg.Email.SMTPPassword != "" {
		auth = smtp.PlainAuth("", s.cfg.Email.SMTPUsername, s.cfg.Email.SMTPPassword, host)
	}

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", fromHeader, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)
	return s.send(addr, auth, from, []string{to}, msg)
}
