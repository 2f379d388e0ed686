package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/service"
	"github.com/taksh05/Assignment-Portal/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AssignmentHandler 作业模块 HTTP 处理器（含成绩册导出与日历订阅）
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
	exportSvc     service.ExportService
	calendarSvc   service.CalendarService
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(
	assignmentSvc service.AssignmentService,
	exportSvc service.ExportService,
	calendarSvc service.CalendarService,
) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentSvc: assignmentSvc,
		exportSvc:     exportSvc,
		calendarSvc:   calendarSvc,
	}
}

// ListForActor 调用方可见的作业
// GET /api/assignments
func (h *AssignmentHandler) ListForActor(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.assignmentSvc.ListForActor(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}

// Create 布置作业
// POST /api/assignments (multipart: classId, title, description, dueDate, file?)
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateAssignmentRequest
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

	assignment, err := h.assignmentSvc.Create(c.Request.Context(), actor, &req, file)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, assignment)
}

// Get 作业详情
// GET /api/assignments/:id
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.assignmentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, assignment)
}

// Update 修改作业
// PUT /api/assignments/:id (multipart: title?, description?, dueDate?, removeExistingFile?, file?)
func (h *AssignmentHandler) Update(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateAssignmentRequest
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

	assignment, err := h.assignmentSvc.Update(c.Request.Context(), actor, c.Param("id"), &req, file)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, assignment)
}

// Delete 删除作业
// DELETE /api/assignments/:id
func (h *AssignmentHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.assignmentSvc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, nil)
}

// ExportGradebook 导出成绩册
// GET /api/assignments/:id/gradebook.xlsx
func (h *AssignmentHandler) ExportGradebook(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportGradebook(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Calendar 截止时间日历订阅
// GET /api/assignments/calendar.ics
func (h *AssignmentHandler) Calendar(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	text, err := h.calendarSvc.DueDates(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="assignments.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(text))
}
