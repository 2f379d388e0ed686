package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/service"
	"github.com/taksh05/Assignment-Portal/pkg/response"
)

// AdminHandler 管理员视图（路由层限定 admin 角色）
type AdminHandler struct {
	userSvc  service.UserService
	classSvc service.ClassService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(userSvc service.UserService, classSvc service.ClassService) *AdminHandler {
	return &AdminHandler{userSvc: userSvc, classSvc: classSvc}
}

// ListUsers 用户列表（分页，可按角色过滤）
// GET /api/admin/users?role=&page=&pageSize=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	list, total, err := h.userSvc.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListClasses 全部班级
// GET /api/admin/classes
func (h *AdminHandler) ListClasses(c *gin.Context) {
	list, err := h.classSvc.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}
