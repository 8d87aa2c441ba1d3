package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account 表示一个注册用户。
//
// bson 标签对应 MongoDB 文档字段，json 标签对应对外响应。
// 密码哈希、验证码与重置令牌均标记为 json:"-"，任何对外序列化都不会包含它们。
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"` // 邮箱（唯一索引）
	PasswordHash string             `bson:"password" json:"-"`  // bcrypt 哈希
	Name         string             `bson:"name" json:"name"`
	IsVerified   bool               `bson:"isVerified" json:"isVerified"` // 邮箱是否已验证

	// 验证码字段成对出现：要么都存在，要么都缺失。
	VerificationCode      string     `bson:"verificationToken,omitempty" json:"-"`
	VerificationExpiresAt *time.Time `bson:"verificationTokenExpiresAt,omitempty" json:"-"`

	// 重置令牌字段成对出现，新的重置请求无条件覆盖旧令牌。
	ResetToken          string     `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetTokenExpiresAt *time.Time `bson:"resetPasswordExpiresAt,omitempty" json:"-"`

	LastLoginAt time.Time `bson:"lastLogin" json:"lastLogin"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// HasPendingVerification 报告账户是否有待完成的邮箱验证。
func (a *Account) HasPendingVerification() bool {
	return a.VerificationCode != "" && a.VerificationExpiresAt != nil
}

// HasPendingReset 报告账户是否有待完成的密码重置。
func (a *Account) HasPendingReset() bool {
	return a.ResetToken != "" && a.ResetTokenExpiresAt != nil
}

// ClearVerification 清除验证码字段对。
func (a *Account) ClearVerification() {
	a.VerificationCode = ""
	a.VerificationExpiresAt = nil
}

// ClearReset 清除重置令牌字段对。
func (a *Account) ClearReset() {
	a.ResetToken = ""
	a.ResetTokenExpiresAt = nil
}
