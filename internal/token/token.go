package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession 表示会话令牌无效。
// 被篡改、格式错误、已过期三种情况统一折叠为该错误，避免对外泄露区别。
var ErrInvalidSession = errors.New("invalid session token")

const resetTokenBytes = 20

// NewVerificationCode 生成 6 位数字验证码，均匀分布在 [100000, 999999]。
//
// 验证码按账户查找，不要求全局唯一，跨账户碰撞是可接受的。
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NewResetToken 生成高熵重置令牌：20 个加密随机字节的十六进制串。
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Signer 签发并校验无状态会话令牌（HS256 JWT）。
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner 创建 Signer。ttl 为零时使用 7 天。
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// TTL 返回令牌有效期（用于设置 Cookie 的 Max-Age）。
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue 为账户签发会话令牌。
func (s *Signer) Issue(accountID string) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify 校验会话令牌的签名与有效期，返回其中的账户 ID。
func (s *Signer) Verify(tokenStr string) (string, error) {
	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}
