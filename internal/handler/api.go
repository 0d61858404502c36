package handler

import (
	"github.com/tasklog/internal/service"
	"gorm.io/gorm"
)

// API 聚合各 HTTP 处理器共享的服务依赖
type API struct {
	db          *gorm.DB
	tasks       *service.TaskService
	subtasks    *service.SubtaskService
	progress    *service.ProgressService
	periodic    *service.PeriodicTaskService
	completions *service.CompletionService
	ai          *service.AITaskService
}

// AIConfig 描述 AI 服务所需的接口配置
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewAPI 基于同一 gorm 实例构造全部服务
func NewAPI(db *gorm.DB, ai AIConfig) *API {
	return &API{
		db:          db,
		tasks:       service.NewTaskService(db),
		subtasks:    service.NewSubtaskService(db),
		progress:    service.NewProgressService(db),
		periodic:    service.NewPeriodicTaskService(db),
		completions: service.NewCompletionService(db),
		ai:          service.NewAITaskService(db, ai.APIKey, ai.BaseURL, ai.Model),
	}
}

// AI 返回 AI 服务实例，测试可通过它替换 HTTP 客户端
func (a *API) AI() *service.AITaskService {
	return a.ai
}
