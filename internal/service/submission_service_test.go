package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
)

func gradePtr(g float64) *float64 { return &g }

func (f *assignmentFixture) submit(t *testing.T, assignmentID string) *dto.SubmissionResponse {
	t.Helper()
	resp, err := f.env.svc.Submission.Create(context.Background(), f.student,
		&dto.CreateSubmissionRequest{AssignmentID: assignmentID}, upload("answer.pdf", "%PDF-1.4 answer"))
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	return resp
}

func TestSubmissionService_Create_Success(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)

	resp := f.submit(t, a.ID)
	if resp.Status != model.SubmissionSubmitted {
		t.Errorf("期望状态 submitted，实际=%s", resp.Status)
	}
	if resp.Grade != nil {
		t.Error("新提交不应有成绩")
	}
	if resp.Student == nil || resp.Student.ID != f.student.ID {
		t.Error("提交学生应为调用方")
	}
	if resp.Assignment.ID != a.ID || resp.Assignment.Title != "HW1" {
		t.Errorf("作业引用错误: %+v", resp.Assignment)
	}
	if !strings.HasPrefix(resp.FilePath, "uploads/submissions/") {
		t.Errorf("文件应位于 submissions 命名空间，实际=%s", resp.FilePath)
	}
}

func TestSubmissionService_Create_FileRequired(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)

	_, err := f.env.svc.Submission.Create(context.Background(), f.student, &dto.CreateSubmissionRequest{AssignmentID: a.ID}, nil)
	if !errors.Is(err, ErrSubmissionFileRequired) {
		t.Errorf("期望 ErrSubmissionFileRequired，实际: %v", err)
	}
}

func TestSubmissionService_Create_FileTooLarge(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)
	big := upload("big.zip", "x")
	big.Size = f.env.cfg.Storage.SubmissionMaxBytes + 1

	_, err := f.env.svc.Submission.Create(context.Background(), f.student, &dto.CreateSubmissionRequest{AssignmentID: a.ID}, big)
	if !errors.Is(err, ErrSubmissionFileTooLarge) {
		t.Errorf("期望 ErrSubmissionFileTooLarge，实际: %v", err)
	}
	if len(f.env.store.saved) != 0 {
		t.Error("超限文件不应写入")
	}
}

func TestSubmissionService_Create_AssignmentNotFound(t *testing.T) {
	f := newAssignmentFixture(t)

	_, err := f.env.svc.Submission.Create(context.Background(), f.student,
		&dto.CreateSubmissionRequest{AssignmentID: "6f1c2f7e-9d5b-4b8e-8a51-6d2f3c1e0a99"}, upload("a.txt", "a"))
	if !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("期望 ErrAssignmentNotFound，实际: %v", err)
	}
	if len(f.env.store.saved) != 0 {
		t.Error("作业不存在时不应写入文件")
	}
}

func TestSubmissionService_Create_NotEnrolled(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)
	outsider := f.env.addUser("Nora", model.RoleStudent)

	_, err := f.env.svc.Submission.Create(context.Background(), outsider,
		&dto.CreateSubmissionRequest{AssignmentID: a.ID}, upload("a.txt", "a"))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("未加入班级期望 ErrForbidden，实际: %v", err)
	}
	if len(f.env.store.saved) != 0 || len(f.env.db.submissions) != 0 {
		t.Error("被拒绝的提交不应留下文件或记录")
	}
}

func TestSubmissionService_Create_EnrollmentOptional(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	teacher := env.addUser("Tina", model.RoleTeacher)
	outsider := env.addUser("Nora", model.RoleStudent)
	class, _ := env.svc.Class.Create(ctx, teacher, &dto.CreateClassRequest{Title: "Algebra"})
	a, _ := env.svc.Assignment.Create(ctx, teacher, &dto.CreateAssignmentRequest{ClassID: class.ID, Title: "HW", DueDate: "2030-01-01"}, nil)

	if _, err := env.svc.Submission.Create(ctx, outsider, &dto.CreateSubmissionRequest{AssignmentID: a.ID}, upload("a.txt", "a")); err != nil {
		t.Errorf("关闭选课要求时应允许提交: %v", err)
	}
}

func TestSubmissionService_Create_NonStudentForbidden(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)
	admin := f.env.addUser("Root", model.RoleAdmin)

	for _, actor := range []struct{ id, role string }{{f.teacher.ID, f.teacher.Role}, {admin.ID, admin.Role}} {
		_, err := f.env.svc.Submission.Create(context.Background(), policyActor(actor.id, actor.role),
			&dto.CreateSubmissionRequest{AssignmentID: a.ID}, upload("a.txt", "a"))
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("role=%s 期望 ErrForbidden，实际: %v", actor.role, err)
		}
	}
}

func TestSubmissionService_Create_PersistFailureDiscardsFile(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)
	f.env.submissions.createErr = errors.New("db down")

	_, err := f.env.svc.Submission.Create(context.Background(), f.student,
		&dto.CreateSubmissionRequest{AssignmentID: a.ID}, upload("a.txt", "a"))
	if err == nil {
		t.Fatal("持久化失败时应返回错误")
	}
	if live := f.env.store.live(); len(live) != 0 {
		t.Errorf("已写入的文件应被清理，残留=%v", live)
	}
}

func TestSubmissionService_Grade(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	a := f.create(t, "HW1", "2030-01-01", false)
	sub := f.submit(t, a.ID)

	resp, err := f.env.svc.Submission.Grade(ctx, f.teacher, sub.ID, &dto.GradeSubmissionRequest{Grade: gradePtr(90), Feedback: " good "})
	if err != nil {
		t.Fatalf("Grade 应成功: %v", err)
	}
	if resp.Status != model.SubmissionGraded {
		t.Errorf("期望状态 graded，实际=%s", resp.Status)
	}
	if resp.Grade == nil || *resp.Grade != 90 {
		t.Errorf("期望成绩 90，实际=%v", resp.Grade)
	}
	if resp.Feedback != "good" {
		t.Errorf("评语应去除首尾空白，实际=%q", resp.Feedback)
	}

	// 重复评分覆盖成绩，状态保持 graded
	resp, err = f.env.svc.Submission.Grade(ctx, f.teacher, sub.ID, &dto.GradeSubmissionRequest{Grade: gradePtr(75)})
	if err != nil {
		t.Fatalf("重复评分应成功: %v", err)
	}
	if *resp.Grade != 75 || resp.Status != model.SubmissionGraded {
		t.Errorf("重复评分结果错误: grade=%v status=%s", *resp.Grade, resp.Status)
	}
}

func TestSubmissionService_Grade_OutOfRange(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)
	sub := f.submit(t, a.ID)

	for _, g := range []*float64{nil, gradePtr(-1), gradePtr(100.5), gradePtr(math.NaN())} {
		_, err := f.env.svc.Submission.Grade(context.Background(), f.teacher, sub.ID, &dto.GradeSubmissionRequest{Grade: g})
		if !errors.Is(err, ErrGradeOutOfRange) {
			t.Errorf("grade=%v 期望 ErrGradeOutOfRange，实际: %v", g, err)
		}
	}
	if f.env.db.submissions[sub.ID].Status != model.SubmissionSubmitted {
		t.Error("非法成绩不应改变提交状态")
	}

	for _, g := range []float64{0, 100} {
		if _, err := f.env.svc.Submission.Grade(context.Background(), f.teacher, sub.ID, &dto.GradeSubmissionRequest{Grade: gradePtr(g)}); err != nil {
			t.Errorf("边界成绩 %v 应被接受: %v", g, err)
		}
	}
}

func TestSubmissionService_Grade_NonOwnerForbidden(t *testing.T) {
	f := newAssignmentFixture(t)
	a := f.create(t, "HW1", "2030-01-01", false)
	sub := f.submit(t, a.ID)
	other := f.env.addUser("Otto", model.RoleTeacher)

	for _, actor := range []struct{ id, role string }{{other.ID, other.Role}, {f.student.ID, f.student.Role}} {
		_, err := f.env.svc.Submission.Grade(context.Background(), policyActor(actor.id, actor.role), sub.ID,
			&dto.GradeSubmissionRequest{Grade: gradePtr(50)})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("role=%s 期望 ErrForbidden，实际: %v", actor.role, err)
		}
	}
	if f.env.db.submissions[sub.ID].Grade != nil {
		t.Error("被拒绝的评分不应写入成绩")
	}
}

func TestSubmissionService_Get_Visibility(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	a := f.create(t, "HW1", "2030-01-01", false)
	sub := f.submit(t, a.ID)
	classmate := f.env.addUser("Cara", model.RoleStudent)
	_, _ = f.env.svc.Class.Join(ctx, classmate, f.classID)
	other := f.env.addUser("Otto", model.RoleTeacher)
	admin := f.env.addUser("Root", model.RoleAdmin)

	allowed := []struct{ id, role string }{{f.student.ID, f.student.Role}, {f.teacher.ID, f.teacher.Role}, {admin.ID, admin.Role}}
	for _, a := range allowed {
		if _, err := f.env.svc.Submission.Get(ctx, policyActor(a.id, a.role), sub.ID); err != nil {
			t.Errorf("role=%s 应可查看: %v", a.role, err)
		}
	}
	denied := []struct{ id, role string }{{classmate.ID, classmate.Role}, {other.ID, other.Role}}
	for _, d := range denied {
		if _, err := f.env.svc.Submission.Get(ctx, policyActor(d.id, d.role), sub.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("role=%s 期望 ErrForbidden，实际: %v", d.role, err)
		}
	}
}

func TestSubmissionService_ListForActor(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	a := f.create(t, "HW1", "2030-01-01", false)
	f.submit(t, a.ID)
	other := f.env.addUser("Otto", model.RoleTeacher)
	admin := f.env.addUser("Root", model.RoleAdmin)

	expect := map[string]int{"student": 1, "owner": 1, "other teacher": 0, "admin": 1}
	actors := map[string]struct{ id, role string }{
		"student":       {f.student.ID, f.student.Role},
		"owner":         {f.teacher.ID, f.teacher.Role},
		"other teacher": {other.ID, other.Role},
		"admin":         {admin.ID, admin.Role},
	}
	for name, a := range actors {
		list, err := f.env.svc.Submission.ListForActor(ctx, policyActor(a.id, a.role))
		if err != nil {
			t.Fatalf("%s: ListForActor 失败: %v", name, err)
		}
		if len(list) != expect[name] {
			t.Errorf("%s: 期望 %d 条，实际 %d", name, expect[name], len(list))
		}
	}
}

func TestSubmissionService_Delete(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	a := f.create(t, "HW1", "2030-01-01", false)
	sub := f.submit(t, a.ID)
	other := f.env.addUser("Otto", model.RoleTeacher)

	if err := f.env.svc.Submission.Delete(ctx, other, sub.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("非班级教师期望 ErrForbidden，实际: %v", err)
	}

	if err := f.env.svc.Submission.Delete(ctx, f.student, sub.ID); err != nil {
		t.Fatalf("提交人应可删除: %v", err)
	}
	if !f.env.store.wasDiscarded(sub.FilePath) {
		t.Error("提交文件应被清理")
	}
	if err := f.env.svc.Submission.Delete(ctx, f.student, sub.ID); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("重复删除期望 ErrSubmissionNotFound，实际: %v", err)
	}
}

// 完整流程：教师建班 → 学生加入 → 布置作业 → 提交 → 评分
func TestSubmissionService_ClassroomFlow(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()

	tSignup, err := env.svc.Auth.Signup(ctx, &dto.SignupRequest{Name: "T", Email: "t@example.com", Password: "password123", Role: model.RoleTeacher})
	if err != nil {
		t.Fatalf("教师注册失败: %v", err)
	}
	aSignup, err := env.svc.Auth.Signup(ctx, &dto.SignupRequest{Name: "A", Email: "a@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("学生注册失败: %v", err)
	}
	teacher := policyActor(tSignup.User.ID, tSignup.User.Role)
	student := policyActor(aSignup.User.ID, aSignup.User.Role)

	class, err := env.svc.Class.Create(ctx, teacher, &dto.CreateClassRequest{Title: "C"})
	if err != nil {
		t.Fatalf("建班失败: %v", err)
	}
	if _, err := env.svc.Class.Join(ctx, student, class.ID); err != nil {
		t.Fatalf("加入班级失败: %v", err)
	}
	x, err := env.svc.Assignment.Create(ctx, teacher, &dto.CreateAssignmentRequest{ClassID: class.ID, Title: "X", DueDate: "2030-01-01T00:00:00Z"}, nil)
	if err != nil {
		t.Fatalf("布置作业失败: %v", err)
	}

	visible, _ := env.svc.Assignment.ListForActor(ctx, student)
	if len(visible) != 1 || visible[0].ID != x.ID {
		t.Fatalf("学生应看到作业 X，实际=%v", visible)
	}

	sub, err := env.svc.Submission.Create(ctx, student, &dto.CreateSubmissionRequest{AssignmentID: x.ID}, upload("x.pdf", "%PDF-1.4"))
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	graded, err := env.svc.Submission.Grade(ctx, teacher, sub.ID, &dto.GradeSubmissionRequest{Grade: gradePtr(90), Feedback: "nice"})
	if err != nil {
		t.Fatalf("评分失败: %v", err)
	}

	mine, _ := env.svc.Submission.ListForActor(ctx, student)
	if len(mine) != 1 {
		t.Fatalf("学生应有 1 条提交，实际=%d", len(mine))
	}
	if mine[0].Status != model.SubmissionGraded || *mine[0].Grade != 90 || mine[0].Feedback != "nice" {
		t.Errorf("学生看到的评分结果错误: %+v", mine[0])
	}
	if graded.ID != mine[0].ID {
		t.Error("评分与列表中的提交应为同一条")
	}
}
