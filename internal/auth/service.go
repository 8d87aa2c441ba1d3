// Package auth 实现认证状态机：注册、邮箱验证、登录、忘记/重置密码。
//
// 每个操作内部的顺序固定为：校验 → 内存变更 → 持久化 → 通知 → 返回。
// 持久化完成后通知才会发出，因此通知失败不会留下半提交状态。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/config"
	"github.com/Voidcoolis/AuthHive/internal/model"
	"github.com/Voidcoolis/AuthHive/internal/pkg/notify"
	"github.com/Voidcoolis/AuthHive/internal/store"
	"github.com/Voidcoolis/AuthHive/internal/token"

	"golang.org/x/crypto/bcrypt"
)

// Service 编排注册、验证、登录、注销、忘记密码、重置密码。
type Service struct {
	store   store.AccountStore
	signer  *token.Signer
	mailer  notify.Notifier // 关键路径邮件，同步发送，失败使操作失败
	courier notify.Notifier // 尽力而为邮件，失败只记日志

	clientURL  string
	bcryptCost int
	codeTTL    time.Duration
	resetTTL   time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewService 创建认证服务。courier 为 nil 时尽力而为邮件也走 mailer。
func NewService(st store.AccountStore, signer *token.Signer, mailer, courier notify.Notifier, cfg *config.Config, logger *slog.Logger) *Service {
	if courier == nil {
		courier = mailer
	}
	return &Service{
		store:      st,
		signer:     signer,
		mailer:     mailer,
		courier:    courier,
		clientURL:  strings.TrimRight(cfg.App.ClientURL, "/"),
		bcryptCost: cfg.Security.BcryptCost,
		codeTTL:    cfg.Security.VerificationCodeTTL,
		resetTTL:   cfg.Security.ResetTokenTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Signup 创建未验证账户，签发会话令牌并发送验证码邮件。
//
// 验证码邮件在关键路径上：发送失败时注册响应失败，
// 但账户已持久化（提交点是存储写入，不做部分回滚）。
func (s *Service) Signup(ctx context.Context, email, password, name string) (*model.Account, string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, "", ErrMissingFields
	}

	// 快路径检查；权威保证是存储层的唯一约束
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, "", ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("lookup account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	code, err := token.NewVerificationCode()
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	exp := now.Add(s.codeTTL)
	acct := &model.Account{
		Email:                 email,
		PasswordHash:          string(hash),
		Name:                  name,
		VerificationCode:      code,
		VerificationExpiresAt: &exp,
		CreatedAt:             now,
	}
	if err := s.store.Create(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, "", ErrDuplicateEmail
		}
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	session, err := s.signer.Issue(acct.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	if err := s.notify(ctx, true, "verification", func(n notify.Notifier) error {
		return n.SendVerificationCode(ctx, acct.Email, code)
	}); err != nil {
		return nil, "", err
	}

	s.logger.Info("account created", slog.String("email", email))
	return acct, session, nil
}

// VerifyEmail 用验证码完成邮箱验证。
//
// isVerified 一旦翻转为 true 即为提交状态；随后的欢迎邮件是尽力而为，
// 发送失败不会撤销验证结果。
func (s *Service) VerifyEmail(ctx context.Context, code string) (*model.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidOrExpiredCode
	}

	acct, err := s.store.FindByActiveVerificationCode(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("lookup verification code: %w", err)
	}

	acct.IsVerified = true
	acct.ClearVerification()
	if err := s.store.Save(ctx, acct); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	_ = s.notify(ctx, false, "welcome", func(n notify.Notifier) error {
		return n.SendWelcome(ctx, acct.Email, acct.Name)
	})

	s.logger.Info("email verified", slog.String("email", acct.Email))
	return acct, nil
}

// Login 校验凭证，更新最近登录时间并签发会话令牌。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Account, string, error) {
	acct, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	acct.LastLoginAt = s.now()
	if err := s.store.Save(ctx, acct); err != nil {
		return nil, "", fmt.Errorf("save account: %w", err)
	}

	session, err := s.signer.Issue(acct.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user logged in", slog.String("email", acct.Email))
	return acct, session, nil
}

// ForgotPassword 签发重置令牌并发送重置链接邮件。
// 新请求无条件覆盖旧令牌：一个账户同一时刻最多一个有效重置令牌。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	resetToken, err := token.NewResetToken()
	if err != nil {
		return err
	}
	exp := s.now().Add(s.resetTTL)
	acct.ResetToken = resetToken
	acct.ResetTokenExpiresAt = &exp
	if err := s.store.Save(ctx, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	resetURL := s.clientURL + "/reset-password/" + resetToken
	if err := s.notify(ctx, true, "reset link", func(n notify.Notifier) error {
		return n.SendPasswordResetLink(ctx, acct.Email, resetURL)
	}); err != nil {
		return err
	}

	s.logger.Info("password reset requested", slog.String("email", acct.Email))
	return nil
}

// ResetPassword 用重置令牌设置新密码。令牌一次性：成功后即被清除。
func (s *Service) ResetPassword(ctx context.Context, resetToken, password string) error {
	if password == "" {
		return ErrMissingFields
	}

	acct, err := s.store.FindByActiveResetToken(ctx, resetToken, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	acct.PasswordHash = string(hash)
	acct.ClearReset()
	if err := s.store.Save(ctx, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	_ = s.notify(ctx, false, "reset confirmation", func(n notify.Notifier) error {
		return n.SendPasswordChangedConfirmation(ctx, acct.Email)
	})

	s.logger.Info("password reset", slog.String("email", acct.Email))
	return nil
}

// Account 按 ID 返回账户，供 check-auth 使用。
func (s *Service) Account(ctx context.Context, id string) (*model.Account, error) {
	return s.store.FindByID(ctx, id)
}

// notify 按 mustSucceed 策略发送通知。
// 关键路径（mustSucceed）走同步 mailer 并把失败上抛；
// 尽力而为走 courier，失败只记日志，绝不回滚已提交的状态。
func (s *Service) notify(ctx context.Context, mustSucceed bool, kind string, send func(notify.Notifier) error) error {
	if mustSucceed {
		if err := send(s.mailer); err != nil {
			return fmt.Errorf("send %s email: %w", kind, err)
		}
		return nil
	}
	if err := send(s.courier); err != nil {
		s.logger.Warn("best-effort email failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	}
	return nil
}
