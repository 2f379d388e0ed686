package handler

import "github.com/taksh05/Assignment-Portal/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Admin      *AdminHandler
	Class      *ClassHandler
	Assignment *AssignmentHandler
	Submission *SubmissionHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Admin:      NewAdminHandler(svc.User, svc.Class),
		Class:      NewClassHandler(svc.Class, svc.Assignment),
		Assignment: NewAssignmentHandler(svc.Assignment, svc.Export, svc.Calendar),
		Submission: NewSubmissionHandler(svc.Submission),
	}
}
