package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tasklog/internal/config"
	"github.com/tasklog/internal/db"
	"github.com/tasklog/internal/handler"
	"github.com/tasklog/internal/router"
)

func main() {
	// .env 不存在时静默跳过，环境变量优先
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath, cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 确保初始用户存在，首次创建时会在日志中输出API Token
	if err := db.EnsureUser(cfg.InitUserName, cfg.InitUserPassword); err != nil {
		log.Fatalf("failed to ensure initial user: %v", err)
	}

	api := handler.NewAPI(db.DB, handler.AIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
