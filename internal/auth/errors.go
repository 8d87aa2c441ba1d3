package auth

import "errors"

// 领域错误。HTTP 层用 errors.Is 匹配并映射为状态码；
// 其余错误一律视为内部错误（500），只记日志不外泄。
var (
	// ErrMissingFields 请求缺少必填字段。
	ErrMissingFields = errors.New("all fields are required")

	// ErrDuplicateEmail 邮箱已注册。
	ErrDuplicateEmail = errors.New("user already exists")

	// ErrInvalidCredentials 登录失败。
	// 邮箱不存在与密码错误统一为该错误，避免枚举账户。
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrExpiredCode 验证码不存在或已过期，对外不区分。
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")

	// ErrInvalidOrExpiredToken 重置令牌不存在或已过期，对外不区分。
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

	// ErrEmailNotFound 忘记密码时邮箱未注册。
	ErrEmailNotFound = errors.New("user not found")
)
