package dto

// ── 作业模块 DTO ──
// 创建与更新均为 multipart/form-data，附件字段名为 file

// CreateAssignmentRequest 布置作业请求
type CreateAssignmentRequest struct {
	ClassID     string `form:"classId"     binding:"required"`
	Title       string `form:"title"       binding:"required,notblank,max=200"`
	Description string `form:"description" binding:"max=5000"`
	DueDate     string `form:"dueDate"     binding:"required"` // RFC3339 或 YYYY-MM-DD
}

// UpdateAssignmentRequest 更新作业请求，nil 字段保持不变
// RemoveExistingFile 仅在未上传新附件时生效
type UpdateAssignmentRequest struct {
	Title              *string `form:"title"              binding:"omitempty,notblank,max=200"`
	Description        *string `form:"description"        binding:"omitempty,max=5000"`
	DueDate            *string `form:"dueDate"`
	RemoveExistingFile bool    `form:"removeExistingFile"`
}
