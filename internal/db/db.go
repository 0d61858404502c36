package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Init 初始化数据库连接并执行自动迁移。
// databaseURL 非空时连接 PostgreSQL，否则使用本地 SQLite 文件，
// databasePath 为空时回退到默认值 tasklog.db。
func Init(databasePath, databaseURL string) error {
	var err error

	if url := strings.TrimSpace(databaseURL); url != "" {
		DB, err = gorm.Open(postgres.Open(url), &gorm.Config{})
	} else {
		path := strings.TrimSpace(databasePath)
		if path == "" {
			path = "tasklog.db"
		}
		if err := ensureParentDir(path); err != nil {
			return err
		}
		DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
	if err != nil {
		return err
	}

	// 自动迁移模式，为核心模型创建表
	return DB.AutoMigrate(
		&User{},
		&Task{},
		&Subtask{},
		&TaskProgress{},
		&PeriodicTask{},
		&TaskCompletion{},
		&PeriodicTaskStat{},
	)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
