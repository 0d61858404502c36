package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr       string
	Port             string
	DatabasePath     string
	DatabaseURL      string
	GinMode          string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	InitUserName     string
	InitUserPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// DATABASE_URL 非空时使用 PostgreSQL，否则回退到本地 SQLite 文件。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "tasklog.db"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	openAIModel := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	return AppConfig{
		ListenAddr:       listenAddr,
		Port:             port,
		DatabasePath:     databasePath,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		GinMode:          ginMode,
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:      openAIModel,
		InitUserName:     strings.TrimSpace(os.Getenv("INIT_USER_NAME")),
		InitUserPassword: strings.TrimSpace(os.Getenv("INIT_USER_PASSWORD")),
	}
}
