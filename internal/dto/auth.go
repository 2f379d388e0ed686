package dto

// ── 认证模块 DTO ──

// SignupRequest 注册请求
// 公开注册只允许学生与教师，管理员由 cmd/admin 创建
type SignupRequest struct {
	Name     string `json:"name"     binding:"required,notblank,max=100"`
	Email    string `json:"email"    binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Role     string `json:"role"     binding:"omitempty,oneof=student teacher"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
