package db

import (
	"time"

	"gorm.io/gorm"
)

// 任务状态、优先级与类型的取值集合，与 API 层保持一致
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
	TaskStatusSuspended  = "suspended"

	TaskTypeUrgent   = "urgent"
	TaskTypeSlow     = "slow"
	TaskTypePeriodic = "periodic"
)

// Task 定义了任务模型
// TaskType 区分急类型（必须有截止日期）、慢类型（跟踪进度百分比）
// 与周期类型（由 PeriodicTask 配置补充周期信息）
// Quadrant 为四象限编号 1-4，0 表示未分配
type Task struct {
	gorm.Model
	UserID               uint   `gorm:"index;not null"`
	Title                string `gorm:"not null"`
	Description          string
	Status               string `gorm:"default:pending"`
	Priority             string `gorm:"default:medium"`
	Quadrant             int
	TaskType             string `gorm:"default:urgent"`
	Deadline             *time.Time
	CompletionPercentage int
}

// Subtask 记录任务的子任务
// OrderIndex 控制展示顺序，Tags 以逗号连接存储
type Subtask struct {
	gorm.Model
	TaskID      uint  `gorm:"index;not null"`
	Task        Task  `gorm:"constraint:OnDelete:CASCADE"`
	Title       string `gorm:"not null"`
	Description string
	Status      string `gorm:"default:pending"`
	Priority    string `gorm:"default:medium"`
	Tags        string
	OrderIndex  int
	StartDate   *time.Time
	EndDate     *time.Time
}

// TaskProgress 记录慢类型任务的每日进度
// Task + Date 采用唯一索引，同一天重复上报时覆盖
type TaskProgress struct {
	gorm.Model
	TaskID        uint      `gorm:"index;index:idx_task_progress_unique,unique"`
	Task          Task      `gorm:"constraint:OnDelete:CASCADE"`
	Date          time.Time `gorm:"index:idx_task_progress_unique,unique"`
	ProgressValue int
	Notes         string
}

// TableName 显式固定进度表的表名，不依赖命名策略的复数推断
func (TaskProgress) TableName() string {
	return "task_progresses"
}
