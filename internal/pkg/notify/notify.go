package notify

import (
	"context"
	"time"
)

// Notifier 定义面向账户邮箱的事务性消息能力。
//
// 内容与投递渠道对核心流程不可见；调用方只关心"发出并等待成功或失败"。
type Notifier interface {
	// SendVerificationCode 发送邮箱验证码。
	SendVerificationCode(ctx context.Context, email, code string) error
	// SendWelcome 发送验证成功后的欢迎邮件。
	SendWelcome(ctx context.Context, email, name string) error
	// SendPasswordResetLink 发送密码重置链接。
	SendPasswordResetLink(ctx context.Context, email, resetURL string) error
	// SendPasswordChangedConfirmation 发送密码已修改确认。
	SendPasswordChangedConfirmation(ctx context.Context, email string) error
}

// 邮件类型。
const (
	KindVerification = "verification"
	KindWelcome      = "welcome"
	KindResetLink    = "reset_link"
	KindResetDone    = "reset_done"
)

// Message 表示外发邮件队列中的一条消息。
type Message struct {
	Kind      string    `json:"kind"`           // 邮件类型，见 Kind* 常量
	To        string    `json:"to"`             // 收件邮箱
	Name      string    `json:"name,omitempty"` // 欢迎邮件用户名
	Code      string    `json:"code,omitempty"` // 验证码
	URL       string    `json:"url,omitempty"`  // 重置链接
	Timestamp time.Time `json:"timestamp"`      // 消息创建时间
	Retry     int       `json:"retry"`          // 投递重试次数
}
