// Package policy 集中式授权决策。
//
// 角色与操作的对应关系由 casbin 决策表表达，请求元组为 (role, resource, action, scope)：
// scope=any 表示无需归属，scope=own 表示调用方必须是资源的归属人。
// 资源是否存在由调用方先行判断，本包只回答"允许/拒绝 + 原因"。
package policy

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// 角色
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// 资源
const (
	ResourceClass      = "class"
	ResourceAssignment = "assignment"
	ResourceSubmission = "submission"
)

// 操作
const (
	ActCreate = "create"
	ActView   = "view"
	ActUpdate = "update"
	ActDelete = "delete"
	ActJoin   = "join"
	ActExport = "export"
	ActGrade  = "grade"
)

const (
	scopeAny   = "any"
	scopeOwn   = "own"
	scopeOther = "other"
)

const modelText = `
[request_definition]
r = sub, obj, act, scope

[policy_definition]
p = sub, obj, act, scope

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act && (p.scope == "any" || p.scope == r.scope)
`

// rules 决策表：admin 对归属类操作一律 any，但不具备学生专属操作（join、提交）
var rules = [][]string{
	{RoleTeacher, ResourceClass, ActCreate, scopeAny},
	{RoleAdmin, ResourceClass, ActCreate, scopeAny},
	{RoleTeacher, ResourceClass, ActUpdate, scopeOwn},
	{RoleAdmin, ResourceClass, ActUpdate, scopeAny},
	{RoleTeacher, ResourceClass, ActDelete, scopeOwn},
	{RoleAdmin, ResourceClass, ActDelete, scopeAny},
	{RoleStudent, ResourceClass, ActJoin, scopeAny},

	{RoleTeacher, ResourceAssignment, ActCreate, scopeOwn},
	{RoleAdmin, ResourceAssignment, ActCreate, scopeAny},
	{RoleTeacher, ResourceAssignment, ActUpdate, scopeOwn},
	{RoleAdmin, ResourceAssignment, ActUpdate, scopeAny},
	{RoleTeacher, ResourceAssignment, ActDelete, scopeOwn},
	{RoleAdmin, ResourceAssignment, ActDelete, scopeAny},
	{RoleTeacher, ResourceAssignment, ActExport, scopeOwn},
	{RoleAdmin, ResourceAssignment, ActExport, scopeAny},

	{RoleStudent, ResourceSubmission, ActCreate, scopeAny},
	{RoleStudent, ResourceSubmission, ActView, scopeOwn},
	{RoleTeacher, ResourceSubmission, ActView, scopeOwn},
	{RoleAdmin, ResourceSubmission, ActView, scopeAny},
	{RoleTeacher, ResourceSubmission, ActGrade, scopeOwn},
	{RoleAdmin, ResourceSubmission, ActGrade, scopeAny},
	{RoleStudent, ResourceSubmission, ActDelete, scopeOwn},
	{RoleTeacher, ResourceSubmission, ActDelete, scopeOwn},
	{RoleAdmin, ResourceSubmission, ActDelete, scopeAny},
}

// Actor 已认证的调用方
type Actor struct {
	ID   string
	Role string
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Decision 授权结果
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Policy 授权策略
type Policy struct {
	enforcer          *casbin.Enforcer
	requireEnrollment bool
}

// New 构建决策表
// requireEnrollment 为 true 时学生只能向已加入班级的作业提交
func New(requireEnrollment bool) (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("加载授权模型失败: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("创建授权执行器失败: %w", err)
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("加载授权规则失败: %w", err)
	}

	return &Policy{enforcer: e, requireEnrollment: requireEnrollment}, nil
}

// RequireEnrollment 是否要求提交前已加入班级
func (p *Policy) RequireEnrollment() bool { return p.requireEnrollment }

// allowed 查询决策表，owned 表示调用方是否为资源归属人
func (p *Policy) allowed(a Actor, obj, act string, owned bool) bool {
	scope := scopeOther
	if owned {
		scope = scopeOwn
	}
	ok, err := p.enforcer.Enforce(a.Role, obj, act, scope)
	return err == nil && ok
}

// ── 班级 ──

func (p *Policy) CanCreateClass(a Actor) Decision {
	if !p.allowed(a, ResourceClass, ActCreate, false) {
		return deny("仅教师或管理员可创建班级")
	}
	return allow()
}

func (p *Policy) CanUpdateClass(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceClass, ActUpdate, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可修改班级")
	}
	return allow()
}

func (p *Policy) CanDeleteClass(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceClass, ActDelete, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可删除班级")
	}
	return allow()
}

// CanJoinClass 仅学生可加入班级；是否已在班级中属于参数校验，由调用方判断
func (p *Policy) CanJoinClass(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceClass, ActJoin, false) {
		return deny("仅学生可加入班级")
	}
	if a.ID == classTeacherID {
		return deny("班级教师无需加入自己的班级")
	}
	return allow()
}

// ── 作业 ──

func (p *Policy) CanCreateAssignment(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceAssignment, ActCreate, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可布置作业")
	}
	return allow()
}

func (p *Policy) CanUpdateAssignment(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceAssignment, ActUpdate, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可修改作业")
	}
	return allow()
}

func (p *Policy) CanDeleteAssignment(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceAssignment, ActDelete, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可删除作业")
	}
	return allow()
}

func (p *Policy) CanExportGradebook(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceAssignment, ActExport, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可导出成绩")
	}
	return allow()
}

// ── 提交 ──

// CanCreateSubmission enrolled 表示学生是否为作业所属班级成员
func (p *Policy) CanCreateSubmission(a Actor, enrolled bool) Decision {
	if !p.allowed(a, ResourceSubmission, ActCreate, false) {
		return deny("仅学生可提交作业")
	}
	if p.requireEnrollment && !enrolled {
		return deny("未加入该作业所属班级")
	}
	return allow()
}

// CanViewSubmission 提交学生、班级教师与管理员可见
func (p *Policy) CanViewSubmission(a Actor, studentID, classTeacherID string) Decision {
	owned := a.ID == studentID
	if a.Role == RoleTeacher {
		owned = a.ID == classTeacherID
	}
	if !p.allowed(a, ResourceSubmission, ActView, owned) {
		return deny("无权查看该提交")
	}
	return allow()
}

func (p *Policy) CanGradeSubmission(a Actor, classTeacherID string) Decision {
	if !p.allowed(a, ResourceSubmission, ActGrade, a.ID == classTeacherID) {
		return deny("仅班级教师或管理员可评分")
	}
	return allow()
}

// CanDeleteSubmission 学生按提交人判断归属，教师按班级归属判断
func (p *Policy) CanDeleteSubmission(a Actor, studentID, classTeacherID string) Decision {
	owned := a.ID == studentID
	if a.Role == RoleTeacher {
		owned = a.ID == classTeacherID
	}
	if !p.allowed(a, ResourceSubmission, ActDelete, owned) {
		return deny("仅提交人、班级教师或管理员可删除提交")
	}
	return allow()
}
