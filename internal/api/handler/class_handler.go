package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/service"
	"github.com/taksh05/Assignment-Portal/pkg/response"
)

// ClassHandler 班级模块 HTTP 处理器
type ClassHandler struct {
	classSvc      service.ClassService
	assignmentSvc service.AssignmentService
}

// NewClassHandler 创建 ClassHandler
func NewClassHandler(classSvc service.ClassService, assignmentSvc service.AssignmentService) *ClassHandler {
	return &ClassHandler{classSvc: classSvc, assignmentSvc: assignmentSvc}
}

// ListMine 调用方任教或已加入的班级
// GET /api/classes
func (h *ClassHandler) ListMine(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.classSvc.ListMine(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}

// ListAll 全部班级（学生浏览加入）
// GET /api/classes/all
func (h *ClassHandler) ListAll(c *gin.Context) {
	list, err := h.classSvc.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}

// Create 创建班级
// POST /api/classes
func (h *ClassHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	class, err := h.classSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, class)
}

// Get 班级详情
// GET /api/classes/:id
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, class)
}

// Update 修改班级
// PUT /api/classes/:id
func (h *ClassHandler) Update(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	class, err := h.classSvc.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, class)
}

// Delete 删除班级（级联删除作业与提交）
// DELETE /api/classes/:id
func (h *ClassHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.classSvc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, nil)
}

// Join 加入班级
// POST /api/classes/:id/join
func (h *ClassHandler) Join(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	class, err := h.classSvc.Join(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, class)
}

// ListAssignments 班级下的作业
// GET /api/classes/:id/assignments
func (h *ClassHandler) ListAssignments(c *gin.Context) {
	list, err := h.assignmentSvc.ListForClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}
