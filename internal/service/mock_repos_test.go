package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taksh05/Assignment-Portal/config"
	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	"github.com/taksh05/Assignment-Portal/pkg/jwt"
	"github.com/taksh05/Assignment-Portal/pkg/storage"
)

// ═══════════════════════════════════════════════════════════
// 内存数据集：各 Mock Repository 共享，以便还原关联关系
// ═══════════════════════════════════════════════════════════

type memDB struct {
	users       map[string]*model.User
	classes     map[string]*model.Class
	members     map[string][]model.ClassMember // key: class_id
	assignments map[string]*model.Assignment
	submissions map[string]*model.Submission
	clock       time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:       make(map[string]*model.User),
		classes:     make(map[string]*model.Class),
		members:     make(map[string][]model.ClassMember),
		assignments: make(map[string]*model.Assignment),
		submissions: make(map[string]*model.Submission),
		clock:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick 单调递增的时间，用于稳定排序
func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) user(id string) *model.User {
	u, ok := db.users[id]
	if !ok {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

func (db *memDB) class(id string) *model.Class {
	c, ok := db.classes[id]
	if !ok {
		return nil
	}
	cp := *c
	cp.Teacher = db.user(c.TeacherID)
	cp.Members = nil
	for _, m := range db.members[id] {
		m.User = db.user(m.UserID)
		cp.Members = append(cp.Members, m)
	}
	return &cp
}

func (db *memDB) assignment(id string) *model.Assignment {
	a, ok := db.assignments[id]
	if !ok {
		return nil
	}
	cp := *a
	cp.Class = db.class(a.ClassID)
	cp.Creator = db.user(a.CreatorID)
	return &cp
}

func (db *memDB) submission(id string) *model.Submission {
	s, ok := db.submissions[id]
	if !ok {
		return nil
	}
	cp := *s
	cp.Assignment = db.assignment(s.AssignmentID)
	cp.Student = db.user(s.StudentID)
	return &cp
}

func (db *memDB) isMember(classID, userID string) bool {
	for _, m := range db.members[classID] {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (db *memDB) visibleClassIDs(userID string) map[string]bool {
	ids := make(map[string]bool)
	for id, c := range db.classes {
		if c.TeacherID == userID || db.isMember(id, userID) {
			ids[id] = true
		}
	}
	return ids
}

// ── Mock UserRepository ──

type mockUserRepo struct{ db *memDB }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	user.CreatedAt = m.db.tick()
	cp := *user
	m.db.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u := m.db.user(id); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, role string, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for id := range m.db.users {
		u := m.db.user(id)
		if role != "" && u.Role != role {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock ClassRepository ──

type mockClassRepo struct {
	db        *memDB
	deleteErr error
}

func (m *mockClassRepo) Create(_ context.Context, class *model.Class) error {
	if class.ClassID == "" {
		class.ClassID = uuid.NewString()
	}
	class.CreatedAt = m.db.tick()
	cp := *class
	cp.Teacher, cp.Members = nil, nil
	m.db.classes[class.ClassID] = &cp
	member := model.ClassMember{ClassID: class.ClassID, UserID: class.TeacherID, JoinedAt: class.CreatedAt}
	m.db.members[class.ClassID] = []model.ClassMember{member}
	class.Members = []model.ClassMember{member}
	return nil
}

func (m *mockClassRepo) GetByID(_ context.Context, id string) (*model.Class, error) {
	if c := m.db.class(id); c != nil {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassRepo) ListByMember(_ context.Context, userID string) ([]model.Class, error) {
	return m.list(m.db.visibleClassIDs(userID)), nil
}

func (m *mockClassRepo) ListAll(_ context.Context) ([]model.Class, error) {
	return m.list(nil), nil
}

func (m *mockClassRepo) list(only map[string]bool) []model.Class {
	var result []model.Class
	for id := range m.db.classes {
		if only != nil && !only[id] {
			continue
		}
		result = append(result, *m.db.class(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (m *mockClassRepo) Update(_ context.Context, class *model.Class) error {
	stored, ok := m.db.classes[class.ClassID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Title = class.Title
	stored.Description = class.Description
	return nil
}

func (m *mockClassRepo) AddMember(_ context.Context, classID, userID string) error {
	if m.db.isMember(classID, userID) {
		return repository.ErrAlreadyMember
	}
	m.db.members[classID] = append(m.db.members[classID], model.ClassMember{ClassID: classID, UserID: userID, JoinedAt: m.db.tick()})
	return nil
}

func (m *mockClassRepo) IsMember(_ context.Context, classID, userID string) (bool, error) {
	return m.db.isMember(classID, userID), nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string) ([]string, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	if _, ok := m.db.classes[id]; !ok {
		return nil, gorm.ErrRecordNotFound
	}

	var paths []string
	for aid, a := range m.db.assignments {
		if a.ClassID != id {
			continue
		}
		if a.FilePath != "" {
			paths = append(paths, a.FilePath)
		}
		for sid, s := range m.db.submissions {
			if s.AssignmentID == aid {
				if s.FilePath != "" {
					paths = append(paths, s.FilePath)
				}
				delete(m.db.submissions, sid)
			}
		}
		delete(m.db.assignments, aid)
	}
	delete(m.db.members, id)
	delete(m.db.classes, id)
	return paths, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	db        *memDB
	createErr error
	updateErr error
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *model.Assignment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if a.AssignmentID == "" {
		a.AssignmentID = uuid.NewString()
	}
	a.CreatedAt = m.db.tick()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	cp.Class, cp.Creator = nil, nil
	m.db.assignments[a.AssignmentID] = &cp
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	if a := m.db.assignment(id); a != nil {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListForUser(_ context.Context, userID string) ([]model.Assignment, error) {
	visible := m.db.visibleClassIDs(userID)
	var result []model.Assignment
	for id, a := range m.db.assignments {
		if visible[a.ClassID] {
			result = append(result, *m.db.assignment(id))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(result[j].DueDate) })
	return result, nil
}

func (m *mockAssignmentRepo) ListByClass(_ context.Context, classID string) ([]model.Assignment, error) {
	var result []model.Assignment
	for id, a := range m.db.assignments {
		if a.ClassID == classID {
			result = append(result, *m.db.assignment(id))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.After(result[j].DueDate) })
	return result, nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, a *model.Assignment) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.db.assignments[a.AssignmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Title = a.Title
	stored.Description = a.Description
	stored.DueDate = a.DueDate
	stored.FilePath = a.FilePath
	stored.UpdatedAt = m.db.tick()
	return nil
}

func (m *mockAssignmentRepo) Delete(_ context.Context, id string) ([]string, error) {
	a, ok := m.db.assignments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	var paths []string
	if a.FilePath != "" {
		paths = append(paths, a.FilePath)
	}
	for sid, s := range m.db.submissions {
		if s.AssignmentID == id {
			if s.FilePath != "" {
				paths = append(paths, s.FilePath)
			}
			delete(m.db.submissions, sid)
		}
	}
	delete(m.db.assignments, id)
	return paths, nil
}

func (m *mockAssignmentRepo) ListFilePaths(_ context.Context) ([]string, error) {
	var paths []string
	for _, a := range m.db.assignments {
		if a.FilePath != "" {
			paths = append(paths, a.FilePath)
		}
	}
	return paths, nil
}

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct {
	db        *memDB
	createErr error
}

func (m *mockSubmissionRepo) Create(_ context.Context, s *model.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	if s.SubmissionID == "" {
		s.SubmissionID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = model.SubmissionSubmitted
	}
	s.CreatedAt = m.db.tick()
	cp := *s
	cp.Assignment, cp.Student = nil, nil
	m.db.submissions[s.SubmissionID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	if s := m.db.submission(id); s != nil {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) filter(keep func(*model.Submission) bool) []model.Submission {
	var result []model.Submission
	for id, s := range m.db.submissions {
		if keep(s) {
			result = append(result, *m.db.submission(id))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (m *mockSubmissionRepo) ListByStudent(_ context.Context, studentID string) ([]model.Submission, error) {
	return m.filter(func(s *model.Submission) bool { return s.StudentID == studentID }), nil
}

func (m *mockSubmissionRepo) ListByTeacher(_ context.Context, teacherID string) ([]model.Submission, error) {
	return m.filter(func(s *model.Submission) bool {
		a, ok := m.db.assignments[s.AssignmentID]
		if !ok {
			return false
		}
		c, ok := m.db.classes[a.ClassID]
		return ok && c.TeacherID == teacherID
	}), nil
}

func (m *mockSubmissionRepo) ListAll(_ context.Context) ([]model.Submission, error) {
	return m.filter(func(*model.Submission) bool { return true }), nil
}

func (m *mockSubmissionRepo) ListByAssignment(_ context.Context, assignmentID string) ([]model.Submission, error) {
	return m.filter(func(s *model.Submission) bool { return s.AssignmentID == assignmentID }), nil
}

func (m *mockSubmissionRepo) UpdateGrade(_ context.Context, id string, grade float64, feedback string) error {
	s, ok := m.db.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Grade = &grade
	s.Feedback = feedback
	s.Status = model.SubmissionGraded
	return nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.db.submissions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.db.submissions, id)
	return nil
}

func (m *mockSubmissionRepo) ListFilePaths(_ context.Context) ([]string, error) {
	var paths []string
	for _, s := range m.db.submissions {
		if s.FilePath != "" {
			paths = append(paths, s.FilePath)
		}
	}
	return paths, nil
}

// ═══════════════════════════════════════════════════════════
// Fake FileStore / TokenBlacklist
// ═══════════════════════════════════════════════════════════

// fakeStore 同步记录写入与清理，便于断言文件是否仍被引用
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	saved     []string
	discarded []string
	contents  map[string]string
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{contents: make(map[string]string)}
}

func (f *fakeStore) Save(_ context.Context, namespace, owner string, up storage.Upload) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(up.Reader)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	p := fmt.Sprintf("uploads/%s/%s-%d-test%s", namespace, owner, f.seq, strings.ToLower(extOf(up.Name)))
	f.saved = append(f.saved, p)
	f.contents[p] = string(data)
	return p, nil
}

func (f *fakeStore) Discard(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, p)
	delete(f.contents, p)
}

// live 已写入且未清理的文件
func (f *fakeStore) live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.contents {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *fakeStore) wasDiscarded(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.discarded {
		if d == p {
			return true
		}
	}
	return false
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

type fakeBlacklist struct {
	jti string
	ttl time.Duration
	err error
}

func (f *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	f.jti, f.ttl = jti, ttl
	return f.err
}

// ═══════════════════════════════════════════════════════════
// 测试环境
// ═══════════════════════════════════════════════════════════

type testEnv struct {
	db          *memDB
	users       *mockUserRepo
	classes     *mockClassRepo
	assignments *mockAssignmentRepo
	submissions *mockSubmissionRepo
	store       *fakeStore
	blacklist   *fakeBlacklist
	cfg         *config.Config
	jwtMgr      *jwt.Manager
	svc         *Service
}

func newTestEnv(requireEnrollment bool) *testEnv {
	db := newMemDB()
	env := &testEnv{
		db:          db,
		users:       &mockUserRepo{db: db},
		classes:     &mockClassRepo{db: db},
		assignments: &mockAssignmentRepo{db: db},
		submissions: &mockSubmissionRepo{db: db},
		store:       newFakeStore(),
		blacklist:   &fakeBlacklist{},
		cfg: &config.Config{
			Server:  config.ServerConfig{BaseURL: "http://localhost:5000"},
			Auth:    config.AuthConfig{JWTSecret: "test-secret-key-for-unit-testing", AccessTokenTTL: time.Hour},
			Storage: config.StorageConfig{AssignmentMaxBytes: 20 << 20, SubmissionMaxBytes: 10 << 20},
			Grading: config.GradingConfig{MaxGrade: 100},
		},
	}
	env.jwtMgr = jwt.NewManager(&env.cfg.Auth)

	pol, err := policy.New(requireEnrollment)
	if err != nil {
		panic(err)
	}

	repo := &repository.Repository{
		User:       env.users,
		Class:      env.classes,
		Assignment: env.assignments,
		Submission: env.submissions,
	}
	env.svc = NewService(env.cfg, repo, env.jwtMgr, env.blacklist, pol, env.store, zap.NewNop())
	return env
}

// addUser 直接写入用户（密码哈希占位）
func (e *testEnv) addUser(name, role string) policy.Actor {
	u := &model.User{Name: name, Email: strings.ToLower(name) + "@example.com", PasswordHash: "x", Role: role}
	_ = e.users.Create(context.Background(), u)
	return policy.Actor{ID: u.UserID, Role: role}
}

func upload(name, content string) *storage.Upload {
	return &storage.Upload{Name: name, Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func policyActor(id, role string) policy.Actor {
	return policy.Actor{ID: id, Role: role}
}
