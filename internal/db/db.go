package db

import (
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"mip-lab/internal/config"
	"mip-lab/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB 打开数据库并同步表结构
func InitDB(cfg config.DatabaseConfig) (*Store, error) {
	gdb, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := SyncSchema(gdb); err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.Driver).Msg("数据库初始化成功")
	return NewStore(gdb), nil
}

func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(stdlog.New(os.Stderr, "\r\n", stdlog.LstdFlags), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("获取连接池失败: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return gdb, nil
}

// SyncSchema 自动迁移全部表
func SyncSchema(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&model.Instance{},
		&model.Job{},
		&model.SolverRunResult{},
		&model.MetricSample{},
		&model.BatchRun{},
	); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
				cfg.User,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.DBName,
				cfg.Charset,
			)
		}
		return mysql.Open(dsn), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("创建数据库目录失败: %w", err)
				}
			}
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}
