package db

import (
	"time"

	"gorm.io/gorm"
)

// 周期类型与完成类型的取值集合
const (
	PeriodTypeDaily   = "daily"
	PeriodTypeWeekly  = "weekly"
	PeriodTypeMonthly = "monthly"
	PeriodTypeCustom  = "custom"

	CompletionTypeBoolean = "boolean"
	CompletionTypeNumeric = "numeric"
)

// PeriodicTask 定义了周期任务配置，与 Task 一一对应
// PeriodValue 仅在 PeriodType=custom 时有意义（每个周期的天数）
// 数值型任务通过 TargetValue/Unit 描述目标，例如每天 5 公里
// LastCompletedAt 记录最近一次打卡动作发生的时间（非打卡的逻辑日期）
// NextDueDate 是冗余字段，每次打卡或周期变更后重算
type PeriodicTask struct {
	gorm.Model
	TaskID         uint   `gorm:"uniqueIndex;not null"`
	Task           Task   `gorm:"constraint:OnDelete:CASCADE"`
	PeriodType     string `gorm:"not null"`
	PeriodValue    int
	CompletionType string `gorm:"default:boolean"`
	TargetValue    *float64
	Unit           string
	LastCompletedAt *time.Time
	NextDueDate     *time.Time
}

// TaskCompletion 记录周期任务的打卡台帐
// CompletionDate 是打卡计入的逻辑日期，支持回溯补卡；
// 为空时以 CreatedAt 的日期为准
type TaskCompletion struct {
	gorm.Model
	PeriodicTaskID  uint         `gorm:"index;index:idx_completion_date,priority:1"`
	PeriodicTask    PeriodicTask `gorm:"constraint:OnDelete:CASCADE"`
	CompletionValue *float64
	CompletionDate  *time.Time `gorm:"index:idx_completion_date,priority:2"`
	Notes           string
}

// PeriodicTaskStat 持久化单个统计周期的聚合结果
// PeriodicTask + PeriodStart + PeriodEnd 唯一，聚合刷新走 upsert 避免重复行
type PeriodicTaskStat struct {
	gorm.Model
	PeriodicTaskID uint         `gorm:"index;index:idx_periodic_stat_unique,unique"`
	PeriodicTask   PeriodicTask `gorm:"constraint:OnDelete:CASCADE"`
	PeriodStart    time.Time    `gorm:"index:idx_periodic_stat_unique,unique"`
	PeriodEnd      time.Time    `gorm:"index:idx_periodic_stat_unique,unique"`
	ExpectedCount  int
	ActualCount    int
	ExpectedValue  float64
	ActualValue    float64
}

// TableName 显式固定统计表的表名，不依赖命名策略的复数推断
func (PeriodicTaskStat) TableName() string {
	return "periodic_task_stats"
}
