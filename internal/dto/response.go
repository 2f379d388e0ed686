package dto

import "time"

// ── 认证模块响应 ──

// AuthResponse 注册/登录响应
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expiresIn"` // Token 有效期（秒）
	User      UserResponse `json:"user"`
}

// ── 用户 ──

// UserResponse 用户信息（脱敏）
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ── 班级 ──

// ClassResponse 班级信息
type ClassResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Teacher     *UserResponse  `json:"teacher,omitempty"`
	Members     []UserResponse `json:"members"`
	CreatedAt   string         `json:"createdAt"`
}

// ClassRef 班级引用
type ClassRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// ── 作业 ──

// AssignmentResponse 作业信息
type AssignmentResponse struct {
	ID          string        `json:"id"`
	Class       ClassRef      `json:"class"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	DueDate     string        `json:"dueDate"`
	CreatedBy   *UserResponse `json:"createdBy,omitempty"`
	FilePath    string        `json:"filePath,omitempty"`
	CreatedAt   string        `json:"createdAt"`
}

// AssignmentRef 作业引用
type AssignmentRef struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	ClassID string `json:"classId,omitempty"`
	DueDate string `json:"dueDate,omitempty"`
}

// ── 提交 ──

// SubmissionResponse 提交信息
type SubmissionResponse struct {
	ID          string        `json:"id"`
	Assignment  AssignmentRef `json:"assignment"`
	Student     *UserResponse `json:"student,omitempty"`
	FilePath    string        `json:"filePath,omitempty"`
	Link        string        `json:"link,omitempty"`
	Status      string        `json:"status"`
	Grade       *float64      `json:"grade,omitempty"`
	Feedback    string        `json:"feedback,omitempty"`
	SubmittedAt string        `json:"submittedAt"`
}

// ── 分页 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"pageSize"  binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// FormatTime 统一的时间输出格式
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
