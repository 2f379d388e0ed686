package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
)

func TestSignup_Success(t *testing.T) {
	env := newTestEnv(true)

	result, err := env.svc.Auth.Signup(context.Background(), &dto.SignupRequest{
		Name:     "Alice",
		Email:    "  Alice@Example.com ",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Signup 应成功，但返回错误: %v", err)
	}
	if result.Token == "" {
		t.Error("Token 不应为空")
	}
	if result.User.Role != model.RoleStudent {
		t.Errorf("未指定角色时期望 student，实际=%s", result.User.Role)
	}
	if result.User.Email != "alice@example.com" {
		t.Errorf("邮箱应规范化为小写，实际=%s", result.User.Email)
	}
	if result.ExpiresIn != 3600 {
		t.Errorf("期望 ExpiresIn=3600，实际=%d", result.ExpiresIn)
	}

	claims, err := env.jwtMgr.ParseToken(result.Token)
	if err != nil {
		t.Fatalf("签发的 Token 应可解析: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("Token 中 UserID 不匹配: %s != %s", claims.UserID, result.User.ID)
	}

	stored, _ := env.users.GetByEmail(context.Background(), "alice@example.com")
	if stored.PasswordHash == "password123" || stored.PasswordHash == "" {
		t.Error("密码应以 bcrypt 哈希存储")
	}
}

func TestSignup_Teacher(t *testing.T) {
	env := newTestEnv(true)

	result, err := env.svc.Auth.Signup(context.Background(), &dto.SignupRequest{
		Name: "Tom", Email: "tom@example.com", Password: "password123", Role: model.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("Signup 应成功，但返回错误: %v", err)
	}
	if result.User.Role != model.RoleTeacher {
		t.Errorf("期望 teacher，实际=%s", result.User.Role)
	}
}

func TestSignup_AdminRejected(t *testing.T) {
	env := newTestEnv(true)

	_, err := env.svc.Auth.Signup(context.Background(), &dto.SignupRequest{
		Name: "Eve", Email: "eve@example.com", Password: "password123", Role: model.RoleAdmin,
	})
	if !errors.Is(err, ErrRoleNotAllowed) {
		t.Errorf("期望 ErrRoleNotAllowed，实际: %v", err)
	}
	if len(env.db.users) != 0 {
		t.Error("被拒绝的注册不应写入用户")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()

	req := &dto.SignupRequest{Name: "Alice", Email: "alice@example.com", Password: "password123"}
	if _, err := env.svc.Auth.Signup(ctx, req); err != nil {
		t.Fatalf("首次注册应成功: %v", err)
	}

	_, err := env.svc.Auth.Signup(ctx, &dto.SignupRequest{Name: "Other", Email: "ALICE@example.com", Password: "password456"})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("期望 ErrEmailExists，实际: %v", err)
	}
}

func TestSignup_BlankName(t *testing.T) {
	env := newTestEnv(true)

	_, err := env.svc.Auth.Signup(context.Background(), &dto.SignupRequest{
		Name: "   ", Email: "blank@example.com", Password: "password123",
	})
	if !errors.Is(err, ErrInvalidUserInput) {
		t.Errorf("期望 ErrInvalidUserInput，实际: %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()
	signup, _ := env.svc.Auth.Signup(ctx, &dto.SignupRequest{Name: "Alice", Email: "alice@example.com", Password: "password123"})

	result, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "Alice@Example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Login 应成功，但返回错误: %v", err)
	}
	if result.User.ID != signup.User.ID {
		t.Errorf("期望用户 %s，实际 %s", signup.User.ID, result.User.ID)
	}
	if result.Token == "" {
		t.Error("Token 不应为空")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()
	_, _ = env.svc.Auth.Signup(ctx, &dto.SignupRequest{Name: "Alice", Email: "alice@example.com", Password: "password123"})

	_, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "wrong_password"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	env := newTestEnv(true)

	_, err := env.svc.Auth.Login(context.Background(), &dto.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials（不区分用户不存在），实际: %v", err)
	}
}

func TestGetCurrentUser(t *testing.T) {
	env := newTestEnv(true)
	alice := env.addUser("Alice", model.RoleStudent)

	resp, err := env.svc.Auth.GetCurrentUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("GetCurrentUser 应成功: %v", err)
	}
	if resp.Name != "Alice" {
		t.Errorf("期望 Name=Alice，实际=%s", resp.Name)
	}

	for _, id := range []string{"not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
		if _, err := env.svc.Auth.GetCurrentUser(context.Background(), id); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("id=%s 期望 ErrUserNotFound，实际: %v", id, err)
		}
	}
}

func TestLogout_BlacklistsToken(t *testing.T) {
	env := newTestEnv(true)

	err := env.svc.Auth.Logout(context.Background(), "jti-1", time.Now().Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	if env.blacklist.jti != "jti-1" {
		t.Errorf("期望 jti-1 加入黑名单，实际=%q", env.blacklist.jti)
	}
	if env.blacklist.ttl <= 0 || env.blacklist.ttl > 30*time.Minute {
		t.Errorf("黑名单 TTL 应为 Token 剩余有效期，实际=%v", env.blacklist.ttl)
	}
}

func TestLogout_BlacklistError(t *testing.T) {
	env := newTestEnv(true)
	env.blacklist.err = errors.New("redis down")

	if err := env.svc.Auth.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err == nil {
		t.Error("黑名单写入失败时应返回错误")
	}
}
