package dto

// ── 班级模块 DTO ──

// CreateClassRequest 创建班级请求
type CreateClassRequest struct {
	Title       string `json:"title"       binding:"required,notblank,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// UpdateClassRequest 更新班级请求，nil 字段保持不变
type UpdateClassRequest struct {
	Title       *string `json:"title"       binding:"omitempty,notblank,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}
