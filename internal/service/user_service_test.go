package service

import (
	"context"
	"errors"
	"testing"

	"github.com/andrewabdallah/taskmanager/internal/repo"
)

func TestRegisterAndValidateCredentials(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(repo.NewMemoryUserRepo())

	u, err := svc.Register(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("expected assigned user id")
	}
	if u.PasswordHash == "s3cret" {
		t.Fatalf("password must be stored hashed")
	}

	got, err := svc.ValidateCredentials(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %d, got %d", u.ID, got.ID)
	}

	if _, err := svc.ValidateCredentials(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password must fail, got %v", err)
	}
	if _, err := svc.ValidateCredentials(ctx, "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must fail, got %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(repo.NewMemoryUserRepo())

	if _, err := svc.Register(ctx, "alice", "one"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "two"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username must fail, got %v", err)
	}
}

func TestRegisterRejectsBlankInput(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(repo.NewMemoryUserRepo())

	if _, err := svc.Register(ctx, "  ", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("blank username must fail, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password must fail, got %v", err)
	}
}
