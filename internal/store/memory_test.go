package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/model"
)

func TestMemoryStore_CreateDuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, &model.Account{Email: "a@example.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.Create(ctx, &model.Account{Email: "a@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestMemoryStore_ConcurrentCreateSameEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(ctx, &model.Account{Email: "race@example.com"})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else if !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one create to win, got %d", created)
	}
}

func TestMemoryStore_FindByActiveVerificationCode(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	issued := time.Now()
	exp := issued.Add(24 * time.Hour)

	acct := &model.Account{
		Email:                 "v@example.com",
		VerificationCode:      "123456",
		VerificationExpiresAt: &exp,
	}
	if err := s.Create(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 过期前 1 分钟可以命中
	if _, err := s.FindByActiveVerificationCode(ctx, "123456", exp.Add(-time.Minute)); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}
	// 过期后 1 秒不命中
	if _, err := s.FindByActiveVerificationCode(ctx, "123456", exp.Add(time.Second)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	// 验证码错误不命中
	if _, err := s.FindByActiveVerificationCode(ctx, "654321", issued); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong code, got %v", err)
	}
}

func TestMemoryStore_FindByActiveResetToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	acct := &model.Account{
		Email:               "r@example.com",
		ResetToken:          "tok-abc",
		ResetTokenExpiresAt: &exp,
	}
	if err := s.Create(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.FindByActiveResetToken(ctx, "tok-abc", exp.Add(-time.Minute)); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}
	if _, err := s.FindByActiveResetToken(ctx, "tok-abc", exp.Add(time.Second)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStore_SaveClearsOptionalFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(24 * time.Hour)

	acct := &model.Account{
		Email:                 "c@example.com",
		VerificationCode:      "111111",
		VerificationExpiresAt: &exp,
	}
	if err := s.Create(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	acct.IsVerified = true
	acct.ClearVerification()
	if err := s.Save(ctx, acct); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.FindByEmail(ctx, "c@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.IsVerified {
		t.Fatalf("expected account verified")
	}
	if got.HasPendingVerification() {
		t.Fatalf("expected verification fields cleared")
	}
	// 清除后旧验证码不再命中
	if _, err := s.FindByActiveVerificationCode(ctx, "111111", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cleared code to miss, got %v", err)
	}
}
