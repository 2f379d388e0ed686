package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ErrExportClassMissing 作业所属班级已不存在
var ErrExportClassMissing = apperrors.New(apperrors.KindNotFound, 13006, "作业所属班级不存在")

// ExportService 导出业务接口
//
// 成绩册以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
// 每名班级学生一行，未提交的学生状态为"未提交"；非成员的历史提交也会列出。
type ExportService interface {
	ExportGradebook(ctx context.Context, actor policy.Actor, assignmentID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	policy *policy.Policy
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, pol *policy.Policy, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, policy: pol, logger: logger}
}

const gradebookSheet = "成绩册"

// gradebookRow 成绩册单行
type gradebookRow struct {
	name        string
	email       string
	status      string
	grade       string
	feedback    string
	submittedAt string
}

// ═══════════════════════════════════════════════════════════
// ExportGradebook 导出单个作业的成绩册
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：作业标题与截止时间（合并单元格）
//   - 第 2 行：表头 姓名 | 邮箱 | 状态 | 成绩 | 评语 | 提交时间
//   - 数据行：按姓名排序

func (s *exportService) ExportGradebook(ctx context.Context, actor policy.Actor, assignmentID string) (*bytes.Buffer, string, error) {
	// 1. 查询作业并鉴权
	if !validID(assignmentID) {
		return nil, "", ErrAssignmentNotFound
	}
	assignment, err := s.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAssignmentNotFound
		}
		s.logger.Error("查询作业失败", zap.Error(err))
		return nil, "", err
	}
	if d := s.policy.CanExportGradebook(actor, classTeacherOf(assignment)); !d.Allowed {
		return nil, "", denied(d)
	}

	// 2. 班级成员与提交
	class, err := s.repo.Class.GetByID(ctx, assignment.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrExportClassMissing
		}
		s.logger.Error("查询班级失败", zap.Error(err))
		return nil, "", err
	}
	submissions, err := s.repo.Submission.ListByAssignment(ctx, assignment.AssignmentID)
	if err != nil {
		s.logger.Error("查询提交列表失败", zap.Error(err))
		return nil, "", err
	}

	rows := buildGradebookRows(class, submissions)

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(gradebookSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(gradebookSheet, "A", "A", 18)
	f.SetColWidth(gradebookSheet, "B", "B", 28)
	f.SetColWidth(gradebookSheet, "C", "D", 10)
	f.SetColWidth(gradebookSheet, "E", "E", 40)
	f.SetColWidth(gradebookSheet, "F", "F", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(gradebookSheet, "A1", fmt.Sprintf("%s（截止 %s）", assignment.Title, assignment.DueDate.UTC().Format("2006-01-02 15:04")))
	f.MergeCell(gradebookSheet, "A1", "F1")
	f.SetCellStyle(gradebookSheet, "A1", "A1", headerStyle)

	// 表头
	for i, h := range []string{"姓名", "邮箱", "状态", "成绩", "评语", "提交时间"} {
		f.SetCellValue(gradebookSheet, cell(colName(i), 2), h)
	}
	f.SetCellStyle(gradebookSheet, "A2", "F2", headerStyle)

	// 数据行
	for i, r := range rows {
		row := i + 3
		f.SetCellValue(gradebookSheet, cell("A", row), r.name)
		f.SetCellValue(gradebookSheet, cell("B", row), r.email)
		f.SetCellValue(gradebookSheet, cell("C", row), r.status)
		f.SetCellValue(gradebookSheet, cell("D", row), r.grade)
		f.SetCellValue(gradebookSheet, cell("E", row), r.feedback)
		f.SetCellValue(gradebookSheet, cell("F", row), r.submittedAt)
	}

	// 4. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, gradebookFilename(assignment), nil
}

// buildGradebookRows 合并班级学生与提交记录
func buildGradebookRows(class *model.Class, submissions []model.Submission) []gradebookRow {
	byStudent := make(map[string]*model.Submission, len(submissions))
	for i := range submissions {
		// 同一学生多次提交时以最新一条为准（列表按提交时间升序）
		byStudent[submissions[i].StudentID] = &submissions[i]
	}

	var rows []gradebookRow
	seen := make(map[string]bool)

	for _, m := range class.Members {
		if m.UserID == class.TeacherID || m.User == nil || m.User.Role != model.RoleStudent {
			continue
		}
		seen[m.UserID] = true
		rows = append(rows, toGradebookRow(m.User, byStudent[m.UserID]))
	}
	for studentID, sub := range byStudent {
		if seen[studentID] {
			continue
		}
		rows = append(rows, toGradebookRow(sub.Student, sub))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].email < rows[j].email
	})
	return rows
}

func toGradebookRow(u *model.User, sub *model.Submission) gradebookRow {
	r := gradebookRow{status: "未提交"}
	if u != nil {
		r.name = u.Name
		r.email = u.Email
	}
	if sub == nil {
		return r
	}

	r.status = sub.Status
	r.feedback = sub.Feedback
	r.submittedAt = sub.CreatedAt.UTC().Format("2006-01-02 15:04")
	if sub.Grade != nil {
		r.grade = fmt.Sprintf("%g", *sub.Grade)
	}
	return r
}

var unsafeFilename = regexp.MustCompile(`[\\/:*?"<>|\s]+`)

func gradebookFilename(a *model.Assignment) string {
	title := unsafeFilename.ReplaceAllString(a.Title, "_")
	if title == "" {
		title = a.AssignmentID
	}
	return fmt.Sprintf("成绩册_%s.xlsx", title)
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
