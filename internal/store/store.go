package store

import (
	"context"
	"errors"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/model"
)

var (
	// ErrNotFound 表示没有匹配的账户。
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail 表示邮箱已被占用。
	ErrDuplicateEmail = errors.New("email already registered")
)

// AccountStore 定义账户的持久化接口。
//
// 邮箱唯一性必须由存储层的原子约束保证（而不是服务层的先查后写），
// 以避免并发注册竞态。
type AccountStore interface {
	// Create 插入新账户并回填 ID；邮箱已存在时返回 ErrDuplicateEmail。
	Create(ctx context.Context, acct *model.Account) error

	// FindByEmail 按邮箱精确查找（区分大小写，不做归一化）。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByID 按 ID（ObjectID 十六进制串）查找。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByActiveVerificationCode 查找验证码匹配且未过期（expiresAt > now）的账户。
	FindByActiveVerificationCode(ctx context.Context, code string, now time.Time) (*model.Account, error)

	// FindByActiveResetToken 查找重置令牌匹配且未过期的账户。
	FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*model.Account, error)

	// Save 以 last-write-wins 语义整体覆盖账户当前状态。
	Save(ctx context.Context, acct *model.Account) error
}
