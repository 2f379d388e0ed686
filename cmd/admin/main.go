// admin 运维命令行工具，用于创建管理员等注册接口不开放的操作
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/config"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	"github.com/taksh05/Assignment-Portal/internal/service"
	"github.com/taksh05/Assignment-Portal/pkg/database"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
	applogger "github.com/taksh05/Assignment-Portal/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	cli := &commandLine{
		users: service.NewUserService(repository.NewRepository(db), logger),
		out:   os.Stdout,
	}

	if err := cli.run(context.Background(), os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		if appErr, ok := apperrors.As(err); ok {
			fmt.Fprintf(os.Stderr, "错误: %s\n", appErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		}
		os.Exit(1)
	}
}
