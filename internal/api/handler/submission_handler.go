package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/service"
	"github.com/taksh05/Assignment-Portal/pkg/response"
)

// SubmissionHandler 提交与评分 HTTP 处理器
type SubmissionHandler struct {
	submissionSvc service.SubmissionService
}

// NewSubmissionHandler 创建 SubmissionHandler
func NewSubmissionHandler(submissionSvc service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionSvc: submissionSvc}
}

// ListForActor 学生：本人提交；教师：任教班级的提交；管理员：全部
// GET /api/submissions
func (h *SubmissionHandler) ListForActor(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.submissionSvc.ListForActor(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}

// Create 提交作业
// POST /api/submissions (multipart: assignmentId, file)
func (h *SubmissionHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	file, release, err := formUpload(c)
	if err != nil {
		respondBindError(c, err)
		return
	}
	defer release()

	submission, err := h.submissionSvc.Create(c.Request.Context(), actor, &req, file)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, submission)
}

// Get 提交详情
// GET /api/submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	submission, err := h.submissionSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, submission)
}

// Grade 评分
// PUT /api/submissions/:id/grade
func (h *SubmissionHandler) Grade(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	submission, err := h.submissionSvc.Grade(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, submission)
}

// Delete 删除提交
// DELETE /api/submissions/:id
func (h *SubmissionHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.submissionSvc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, nil)
}
