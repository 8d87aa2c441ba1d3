package store

import (
	"context"
	"sync"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore 内存版 AccountStore 实现，用于测试。
//
// 与 MongoStore 语义一致：邮箱唯一性在同一把锁内检查并写入，因此是原子的。
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*model.Account // key: ObjectID hex
	byEmail  map[string]string         // email -> ObjectID hex
}

// NewMemoryStore 创建空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
		byEmail:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[acct.Email]; ok {
		return ErrDuplicateEmail
	}
	if acct.ID.IsZero() {
		acct.ID = primitive.NewObjectID()
	}
	cp := *acct
	s.accounts[cp.ID.Hex()] = &cp
	s.byEmail[cp.Email] = cp.ID.Hex()
	return nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *MemoryStore) FindByActiveVerificationCode(ctx context.Context, code string, now time.Time) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acct := range s.accounts {
		if acct.VerificationCode == code && acct.VerificationExpiresAt != nil && acct.VerificationExpiresAt.After(now) {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acct := range s.accounts {
		if acct.ResetToken == token && acct.ResetTokenExpiresAt != nil && acct.ResetTokenExpiresAt.After(now) {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Save(ctx context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.accounts[acct.ID.Hex()]
	if !ok {
		return ErrNotFound
	}
	if old.Email != acct.Email {
		delete(s.byEmail, old.Email)
		s.byEmail[acct.Email] = acct.ID.Hex()
	}
	cp := *acct
	s.accounts[cp.ID.Hex()] = &cp
	return nil
}
