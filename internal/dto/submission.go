package dto

// ── 提交模块 DTO ──

// CreateSubmissionRequest 提交作业请求（multipart，附件字段名为 file）
type CreateSubmissionRequest struct {
	AssignmentID string `form:"assignmentId" binding:"required"`
}

// GradeSubmissionRequest 评分请求
type GradeSubmissionRequest struct {
	Grade    *float64 `json:"grade"    binding:"required"`
	Feedback string   `json:"feedback" binding:"max=5000"`
}
