package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Voidcoolis/AuthHive/internal/config"

	"gopkg.in/gomail.v2"
)

// Mailer 通过 SMTP 同步发送事务邮件，实现 Notifier。
type Mailer struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewMailer 创建一个新的邮件发送器。
func NewMailer(cfg *config.EmailConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
	}
}

// SendVerificationCode 发送邮箱验证码。
func (m *Mailer) SendVerificationCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf(verificationTemplate, code)
	if err := m.send(ctx, email, "Verify your email", body); err != nil {
		return err
	}
	m.logger.Info("verification email sent", slog.String("to", email))
	return nil
}

// SendWelcome 发送欢迎邮件。
func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	body := fmt.Sprintf(welcomeTemplate, name)
	if err := m.send(ctx, email, "Welcome to AuthHive", body); err != nil {
		return err
	}
	m.logger.Info("welcome email sent", slog.String("to", email))
	return nil
}

// SendPasswordResetLink 发送密码重置链接。
func (m *Mailer) SendPasswordResetLink(ctx context.Context, email, resetURL string) error {
	body := fmt.Sprintf(resetRequestTemplate, resetURL)
	if err := m.send(ctx, email, "Reset your password", body); err != nil {
		return err
	}
	m.logger.Info("password reset email sent", slog.String("to", email))
	return nil
}

// SendPasswordChangedConfirmation 发送密码已修改确认。
func (m *Mailer) SendPasswordChangedConfirmation(ctx context.Context, email string) error {
	if err := m.send(ctx, email, "Password reset successful", resetSuccessTemplate); err != nil {
		return err
	}
	m.logger.Info("password changed email sent", slog.String("to", email))
	return nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if m.cfg.SMTPHost == "" || m.cfg.FromEmail == "" {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.FromEmail)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

const verificationTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Verify Your Email</h2>
    <p>Thanks for signing up! Your verification code is:</p>
    <div style="font-size: 32px; font-weight: bold; letter-spacing: 5px; color: #4CAF50; text-align: center;">%s</div>
    <p>Enter this code on the verification page to complete your registration.</p>
    <p>This code will expire in 24 hours for security reasons.</p>
    <p>If you didn't create an account with us, please ignore this email.</p>
  </div>
</body>
</html>`

const welcomeTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome, %s!</h2>
    <p>Your email has been verified and your account is ready to use.</p>
    <p>— The AuthHive team</p>
  </div>
</body>
</html>`

const resetRequestTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password Reset</h2>
    <p>We received a request to reset your password. Click the button below to proceed:</p>
    <div style="text-align: center; margin: 24px 0;">
      <a href="%s" style="background-color: #4CAF50; color: white; padding: 12px 20px; text-decoration: none; border-radius: 5px; font-weight: bold;">Reset Password</a>
    </div>
    <p>This link will expire in 1 hour for security reasons.</p>
    <p>If you didn't request a password reset, please ignore this email.</p>
  </div>
</body>
</html>`

const resetSuccessTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password Reset Successful</h2>
    <p>Your password has been changed. You can now log in with your new password.</p>
    <p>If you did not perform this change, please contact support immediately.</p>
  </div>
</body>
</html>`
