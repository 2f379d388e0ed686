// Package scheduler 后台定时任务。
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout 单次清理的最长执行时间
const sweepTimeout = 5 * time.Minute

// PathSource 提供仍被引用的文件路径，由作业与提交仓储实现
type PathSource interface {
	ListFilePaths(ctx context.Context) ([]string, error)
}

// FileSweeper 删除未被引用的旧文件，由 storage.Store 实现
type FileSweeper interface {
	Sweep(ctx context.Context, referenced map[string]struct{}, minAge time.Duration) (int, error)
}

// Sweeper 孤儿文件清理任务
//
// 异步删除失败或进程在写入文件后、落库前崩溃时，磁盘上会留下无记录引用的文件。
// 只清理早于 minAge 的文件，正在上传但尚未落库的文件不受影响。
type Sweeper struct {
	files   FileSweeper
	sources []PathSource
	minAge  time.Duration
	logger  *zap.Logger
	cron    *cron.Cron
}

// NewSweeper 创建清理任务
func NewSweeper(files FileSweeper, minAge time.Duration, logger *zap.Logger, sources ...PathSource) *Sweeper {
	return &Sweeper{
		files:   files,
		sources: sources,
		minAge:  minAge,
		logger:  logger,
	}
}

// RunOnce 收集引用集合并执行一次清理
// 任一引用来源查询失败时放弃本次清理，避免误删仍被引用的文件
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	referenced := make(map[string]struct{})
	for _, src := range s.sources {
		paths, err := src.ListFilePaths(ctx)
		if err != nil {
			return 0, fmt.Errorf("查询文件引用失败: %w", err)
		}
		for _, p := range paths {
			referenced[p] = struct{}{}
		}
	}

	return s.files.Sweep(ctx, referenced, s.minAge)
}

// Start 按 cron 表达式启动定时清理，上一次未结束时跳过本次
func (s *Sweeper) Start(spec string) error {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("注册孤儿文件清理任务失败: %w", err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("孤儿文件清理任务已启动",
		zap.String("schedule", spec),
		zap.Duration("min_age", s.minAge),
	)
	return nil
}

// Stop 停止调度并等待进行中的清理结束
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("孤儿文件清理失败", zap.Error(err), zap.Int("removed", removed))
		return
	}
	s.logger.Info("孤儿文件清理完成",
		zap.Int("removed", removed),
		zap.Duration("elapsed", time.Since(start)),
	)
}
