package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const accountsCollection = "users"

// MongoStore 基于 MongoDB 的 AccountStore 实现。
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore 创建 MongoStore。
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(accountsCollection)}
}

// EnsureIndexes 创建邮箱唯一索引。
//
// 唯一索引是邮箱唯一性的权威保证，服务层的存在性检查只是快路径优化。
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

// Create 插入新账户。邮箱冲突（包括并发插入）映射为 ErrDuplicateEmail。
func (s *MongoStore) Create(ctx context.Context, acct *model.Account) error {
	if acct.ID.IsZero() {
		acct.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, acct); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// FindByEmail 按邮箱查找账户。
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByID 按 ObjectID 十六进制串查找账户。
func (s *MongoStore) FindByID(ctx context.Context, id string) (*model.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// FindByActiveVerificationCode 查找验证码匹配且未过期的账户。
func (s *MongoStore) FindByActiveVerificationCode(ctx context.Context, code string, now time.Time) (*model.Account, error) {
	return s.findOne(ctx, bson.M{
		"verificationToken":          code,
		"verificationTokenExpiresAt": bson.M{"$gt": now},
	})
}

// FindByActiveResetToken 查找重置令牌匹配且未过期的账户。
func (s *MongoStore) FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*model.Account, error) {
	return s.findOne(ctx, bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": bson.M{"$gt": now},
	})
}

// Save 整体替换账户文档。
//
// 用 ReplaceOne 而不是 $set，使被清除的可选字段（验证码、重置令牌）
// 从文档中消失，保持字段成对出现的约束。
func (s *MongoStore) Save(ctx context.Context, acct *model.Account) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": acct.ID}, acct)
	if err != nil {
		return fmt.Errorf("replace account: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	var acct model.Account
	if err := s.coll.FindOne(ctx, filter).Decode(&acct); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acct, nil
}
