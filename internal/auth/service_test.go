package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/config"
	"github.com/Voidcoolis/AuthHive/internal/store"
	"github.com/Voidcoolis/AuthHive/internal/token"

	"golang.org/x/crypto/bcrypt"
)

type mockNotifier struct {
	codeErr    error
	welcomeErr error
	resetErr   error
	confirmErr error

	codeCalls    int
	welcomeCalls int
	resetCalls   int
	confirmCalls int

	lastCode     string
	lastResetURL string
}

func (m *mockNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	m.codeCalls++
	m.lastCode = code
	return m.codeErr
}

func (m *mockNotifier) SendWelcome(ctx context.Context, email, name string) error {
	m.welcomeCalls++
	return m.welcomeErr
}

func (m *mockNotifier) SendPasswordResetLink(ctx context.Context, email, resetURL string) error {
	m.resetCalls++
	m.lastResetURL = resetURL
	return m.resetErr
}

func (m *mockNotifier) SendPasswordChangedConfirmation(ctx context.Context, email string) error {
	m.confirmCalls++
	return m.confirmErr
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{ClientURL: "http://localhost:5173"},
		Security: config.SecurityConfig{
			JWTSecret:           "test-secret",
			BcryptCost:          bcrypt.MinCost,
			SessionTTL:          7 * 24 * time.Hour,
			VerificationCodeTTL: 24 * time.Hour,
			ResetTokenTTL:       time.Hour,
		},
	}
}

func newTestService(st store.AccountStore, n *mockNotifier) (*Service, *token.Signer) {
	cfg := testConfig()
	signer := token.NewSigner(cfg.Security.JWTSecret, cfg.Security.SessionTTL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, signer, n, nil, cfg, logger), signer
}

func TestSignup_Success(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, signer := newTestService(st, n)
	ctx := context.Background()

	acct, session, err := svc.Signup(ctx, "new@example.com", "secret123", "Alice")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if acct.IsVerified {
		t.Fatalf("expected account unverified after signup")
	}
	if len(acct.VerificationCode) != 6 || acct.VerificationCode < "100000" {
		t.Fatalf("expected 6-digit code, got %q", acct.VerificationCode)
	}
	if acct.VerificationExpiresAt == nil {
		t.Fatalf("expected verification expiry set")
	}
	if acct.PasswordHash == "secret123" || acct.PasswordHash == "" {
		t.Fatalf("expected hashed password")
	}
	if n.codeCalls != 1 || n.lastCode != acct.VerificationCode {
		t.Fatalf("expected verification email with the issued code")
	}

	id, err := signer.Verify(session)
	if err != nil || id != acct.ID.Hex() {
		t.Fatalf("expected valid session for account, got id=%q err=%v", id, err)
	}
}

func TestSignup_MissingFields(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	cases := [][3]string{
		{"", "pass", "Alice"},
		{"a@example.com", "", "Alice"},
		{"a@example.com", "pass", ""},
		{"  ", "pass", "Alice"},
	}
	for _, c := range cases {
		if _, _, err := svc.Signup(ctx, c[0], c[1], c[2]); !errors.Is(err, ErrMissingFields) {
			t.Fatalf("expected ErrMissingFields for %v, got %v", c, err)
		}
	}
	if n.codeCalls != 0 {
		t.Fatalf("expected no emails sent")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "dup@example.com", "pass1", "First"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, _, err := svc.Signup(ctx, "dup@example.com", "pass2", "Second")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	// 原账户未被覆盖
	acct, err := st.FindByEmail(ctx, "dup@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if acct.Name != "First" {
		t.Fatalf("expected original account untouched, got name %q", acct.Name)
	}
}

func TestSignup_VerificationEmailFailureAbortsResponse(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{codeErr: errors.New("smtp down")}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "new@example.com", "secret", "Alice"); err == nil {
		t.Fatalf("expected signup to fail when verification email fails")
	}

	// 存储写入是提交点：账户已持久化，不做部分回滚
	if _, err := st.FindByEmail(ctx, "new@example.com"); err != nil {
		t.Fatalf("expected account persisted despite email failure, got %v", err)
	}
}

func TestVerifyEmail_Success(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	acct, _, err := svc.Signup(ctx, "v@example.com", "secret", "Alice")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	verified, err := svc.VerifyEmail(ctx, acct.VerificationCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.IsVerified {
		t.Fatalf("expected account verified")
	}
	if verified.HasPendingVerification() {
		t.Fatalf("expected verification fields cleared")
	}
	if n.welcomeCalls != 1 {
		t.Fatalf("expected welcome email sent")
	}
}

func TestVerifyEmail_WelcomeFailureKeepsVerified(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{welcomeErr: errors.New("smtp down")}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	acct, _, err := svc.Signup(ctx, "v@example.com", "secret", "Alice")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// 欢迎邮件失败不影响验证结果
	if _, err := svc.VerifyEmail(ctx, acct.VerificationCode); err != nil {
		t.Fatalf("expected verify to succeed despite welcome failure, got %v", err)
	}
	got, err := st.FindByEmail(ctx, "v@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.IsVerified {
		t.Fatalf("expected account to stay verified")
	}
}

func TestVerifyEmail_InvalidCode(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "v@example.com", "secret", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	for _, code := range []string{"000000", "", "abc"} {
		if _, err := svc.VerifyEmail(ctx, code); !errors.Is(err, ErrInvalidOrExpiredCode) {
			t.Fatalf("expected ErrInvalidOrExpiredCode for %q, got %v", code, err)
		}
	}
}

func TestVerifyEmail_ExpiryBoundary(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }
	acct, _, err := svc.Signup(ctx, "v@example.com", "secret", "Alice")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	code := acct.VerificationCode

	// T+24h+1s：过期
	svc.now = func() time.Time { return issuedAt.Add(24*time.Hour + time.Second) }
	if _, err := svc.VerifyEmail(ctx, code); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}

	// T+23h59m：仍有效
	svc.now = func() time.Time { return issuedAt.Add(23*time.Hour + 59*time.Minute) }
	if _, err := svc.VerifyEmail(ctx, code); err != nil {
		t.Fatalf("expected code valid before expiry, got %v", err)
	}
}

func TestVerifyEmail_OnlyOnce(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	acct, _, err := svc.Signup(ctx, "v@example.com", "secret", "Alice")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	code := acct.VerificationCode

	if _, err := svc.VerifyEmail(ctx, code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	// isVerified 只翻转一次：清除后同一验证码必须失效
	if _, err := svc.VerifyEmail(ctx, code); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected second verify to fail, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, signer := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "l@example.com", "secret123", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	loginAt := time.Now().Add(time.Hour)
	svc.now = func() time.Time { return loginAt }
	acct, session, err := svc.Login(ctx, "l@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !acct.LastLoginAt.Equal(loginAt) {
		t.Fatalf("expected lastLogin updated to %v, got %v", loginAt, acct.LastLoginAt)
	}
	if id, err := signer.Verify(session); err != nil || id != acct.ID.Hex() {
		t.Fatalf("expected valid session, got id=%q err=%v", id, err)
	}

	// 持久化了 lastLogin
	got, err := st.FindByEmail(ctx, "l@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.LastLoginAt.Equal(loginAt) {
		t.Fatalf("expected persisted lastLogin, got %v", got.LastLoginAt)
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "l@example.com", "secret123", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, _, wrongPass := svc.Login(ctx, "l@example.com", "wrong")
	_, _, unknownEmail := svc.Login(ctx, "ghost@example.com", "whatever")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongPass)
	}
	if !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", unknownEmail)
	}
	// 两种失败对外不可区分
	if wrongPass.Error() != unknownEmail.Error() {
		t.Fatalf("expected identical failure messages, got %q vs %q", wrongPass, unknownEmail)
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)

	err := svc.ForgotPassword(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
	if n.resetCalls != 0 {
		t.Fatalf("expected no reset email")
	}
}

func TestForgotPassword_SecondRequestInvalidatesFirstToken(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "f@example.com", "secret", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "f@example.com"); err != nil {
		t.Fatalf("first forgot: %v", err)
	}
	first := resetTokenFromURL(t, n.lastResetURL)

	if err := svc.ForgotPassword(ctx, "f@example.com"); err != nil {
		t.Fatalf("second forgot: %v", err)
	}
	second := resetTokenFromURL(t, n.lastResetURL)

	if first == second {
		t.Fatalf("expected a fresh token on second request")
	}
	// 旧令牌即使未过期也必须失效
	if err := svc.ResetPassword(ctx, first, "newpass"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected first token invalidated, got %v", err)
	}
	if err := svc.ResetPassword(ctx, second, "newpass"); err != nil {
		t.Fatalf("expected second token to work, got %v", err)
	}
}

func TestResetPassword_FullFlow(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "r@example.com", "oldpass", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.ForgotPassword(ctx, "r@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	tok := resetTokenFromURL(t, n.lastResetURL)

	if err := svc.ResetPassword(ctx, tok, "newpass"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n.confirmCalls != 1 {
		t.Fatalf("expected confirmation email sent")
	}

	// 旧密码失效，新密码可登录
	if _, _, err := svc.Login(ctx, "r@example.com", "oldpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "r@example.com", "newpass"); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}

	// 令牌一次性
	if err := svc.ResetPassword(ctx, tok, "another"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected token single-use, got %v", err)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }
	if _, _, err := svc.Signup(ctx, "r@example.com", "oldpass", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.ForgotPassword(ctx, "r@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	tok := resetTokenFromURL(t, n.lastResetURL)

	svc.now = func() time.Time { return issuedAt.Add(time.Hour + time.Second) }
	if err := svc.ResetPassword(ctx, tok, "newpass"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestResetPassword_ConfirmationFailureKeepsNewPassword(t *testing.T) {
	st := store.NewMemoryStore()
	n := &mockNotifier{confirmErr: errors.New("smtp down")}
	svc, _ := newTestService(st, n)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "r@example.com", "oldpass", "Alice"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.ForgotPassword(ctx, "r@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	tok := resetTokenFromURL(t, n.lastResetURL)

	if err := svc.ResetPassword(ctx, tok, "newpass"); err != nil {
		t.Fatalf("expected reset to succeed despite confirmation failure, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "r@example.com", "newpass"); err != nil {
		t.Fatalf("expected new password in effect, got %v", err)
	}
}

func resetTokenFromURL(t *testing.T, resetURL string) string {
	t.Helper()
	i := strings.LastIndex(resetURL, "/")
	if i < 0 || i == len(resetURL)-1 {
		t.Fatalf("unexpected reset url %q", resetURL)
	}
	return resetURL[i+1:]
}
