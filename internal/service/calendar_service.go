package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
)

const calendarProductID = "-//assignment-portal//due dates//ZH"

// CalendarService 截止时间日历订阅
type CalendarService interface {
	// DueDates 生成调用方可见作业的 iCalendar (RFC 5545) 文本
	DueDates(ctx context.Context, actor policy.Actor) (string, error)
}

type calendarService struct {
	repo    *repository.Repository
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, baseURL string, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:    repo,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *calendarService) DueDates(ctx context.Context, actor policy.Actor) (string, error) {
	assignments, err := s.repo.Assignment.ListForUser(ctx, actor.ID)
	if err != nil {
		s.logger.Error("查询作业列表失败", zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("作业截止时间")

	stamp := s.now().UTC()
	for i := range assignments {
		addDueDateEvent(cal, &assignments[i], s.baseURL, stamp)
	}

	return cal.Serialize(), nil
}

// addDueDateEvent 每个作业一个零时长事件，UID 固定以便客户端去重更新
func addDueDateEvent(cal *ics.Calendar, a *model.Assignment, baseURL string, stamp time.Time) {
	event := cal.AddEvent(fmt.Sprintf("%s@assignment-portal", a.AssignmentID))
	event.SetDtStampTime(stamp)
	event.SetModifiedAt(a.UpdatedAt.UTC())
	event.SetStartAt(a.DueDate.UTC())
	event.SetEndAt(a.DueDate.UTC())

	summary := a.Title
	if a.Class != nil && a.Class.Title != "" {
		summary = fmt.Sprintf("[%s] %s", a.Class.Title, a.Title)
	}
	event.SetSummary(summary)
	if a.Description != "" {
		event.SetDescription(a.Description)
	}
	if baseURL != "" && a.FilePath != "" {
		event.SetURL(baseURL + "/" + a.FilePath)
	}
}
