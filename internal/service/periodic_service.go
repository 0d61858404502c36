package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tasklog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 在任务不存在或不属于当前用户时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrPeriodicTaskNotFound 在周期任务配置不存在时返回
	ErrPeriodicTaskNotFound = errors.New("periodic task not found")
	// ErrPeriodicTaskExists 在任务已存在周期配置时返回
	ErrPeriodicTaskExists = errors.New("periodic task already exists")
	// ErrTaskNotPeriodic 在任务类型不是 periodic 时返回
	ErrTaskNotPeriodic = errors.New("task type is not periodic")
	// ErrInvalidPeriodType 当周期类型不在支持范围内时返回
	ErrInvalidPeriodType = errors.New("invalid period type")
	// ErrInvalidDays 当 upcoming 查询的天数超出 0-365 时返回
	ErrInvalidDays = errors.New("days must be between 0 and 365")
)

// PeriodicTaskService 负责周期任务配置的增改查
// 打卡与统计逻辑在 CompletionService 中
type PeriodicTaskService struct {
	db *gorm.DB
}

// PeriodicTaskInput 定义创建周期任务配置的字段
type PeriodicTaskInput struct {
	TaskID         uint
	PeriodType     string
	PeriodValue    int
	CompletionType string
	TargetValue    *float64
	Unit           string
}

// UpdatePeriodicTaskInput 定义部分更新字段，nil 表示不修改
type UpdatePeriodicTaskInput struct {
	PeriodType     *string
	PeriodValue    *int
	CompletionType *string
	TargetValue    *float64
	Unit           *string
}

// NewPeriodicTaskService 构造 PeriodicTaskService
func NewPeriodicTaskService(gdb *gorm.DB) *PeriodicTaskService {
	return &PeriodicTaskService{db: gdb}
}

// Create 为 periodic 类型任务创建周期配置，并计算初始 next_due_date。
// 统计行不在此处创建，首次打卡时才会惰性生成。
func (s *PeriodicTaskService) Create(userID uint, input PeriodicTaskInput) (*db.PeriodicTask, error) {
	periodType, periodValue, err := normalizePeriod(input.PeriodType, input.PeriodValue)
	if err != nil {
		return nil, err
	}

	var task db.Task
	if err := s.db.Where("id = ? AND user_id = ?", input.TaskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	if task.TaskType != db.TaskTypePeriodic {
		return nil, ErrTaskNotPeriodic
	}

	var existing db.PeriodicTask
	if err := s.db.Where("task_id = ?", input.TaskID).First(&existing).Error; err == nil {
		return nil, ErrPeriodicTaskExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check periodic task: %w", err)
	}

	due := nextDueDate(periodType, periodValue, time.Now())
	periodic := db.PeriodicTask{
		TaskID:         input.TaskID,
		PeriodType:     periodType,
		PeriodValue:    periodValue,
		CompletionType: normalizeCompletionType(input.CompletionType),
		TargetValue:    input.TargetValue,
		Unit:           strings.TrimSpace(input.Unit),
		NextDueDate:    &due,
	}

	if err := s.db.Create(&periodic).Error; err != nil {
		return nil, fmt.Errorf("create periodic task: %w", err)
	}
	return &periodic, nil
}

// Update 部分更新周期配置。周期类型或周期值变化时重算 next_due_date，
// 基准取 last_completed_at（若有过打卡），否则取当前时间。
// 已生成的历史统计行保持原样，不做回溯重算。
func (s *PeriodicTaskService) Update(userID, taskID uint, input UpdatePeriodicTaskInput) (*db.PeriodicTask, error) {
	var task db.Task
	if err := s.db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	if task.TaskType != db.TaskTypePeriodic {
		return nil, ErrTaskNotPeriodic
	}

	var existing db.PeriodicTask
	if err := s.db.Where("task_id = ?", taskID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodicTaskNotFound
		}
		return nil, fmt.Errorf("find periodic task: %w", err)
	}

	periodChanged := false
	if input.PeriodType != nil || input.PeriodValue != nil {
		newType := existing.PeriodType
		if input.PeriodType != nil {
			newType = *input.PeriodType
		}
		newValue := existing.PeriodValue
		if input.PeriodValue != nil {
			newValue = *input.PeriodValue
		}

		normalizedType, normalizedValue, err := normalizePeriod(newType, newValue)
		if err != nil {
			return nil, err
		}
		existing.PeriodType = normalizedType
		existing.PeriodValue = normalizedValue
		periodChanged = true
	}

	if input.CompletionType != nil {
		existing.CompletionType = normalizeCompletionType(*input.CompletionType)
	}
	if input.TargetValue != nil {
		existing.TargetValue = input.TargetValue
	}
	if input.Unit != nil {
		existing.Unit = strings.TrimSpace(*input.Unit)
	}

	if periodChanged {
		from := time.Now()
		if existing.LastCompletedAt != nil {
			from = *existing.LastCompletedAt
		}
		due := nextDueDate(existing.PeriodType, existing.PeriodValue, from)
		existing.NextDueDate = &due
	}

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update periodic task: %w", err)
	}
	return &existing, nil
}

// GetByTaskID 根据任务 ID 获取周期配置（附带任务信息）
func (s *PeriodicTaskService) GetByTaskID(userID, taskID uint) (*db.PeriodicTask, error) {
	var periodic db.PeriodicTask
	err := s.db.Preload("Task").
		Joins("JOIN tasks ON tasks.id = periodic_tasks.task_id").
		Where("periodic_tasks.task_id = ? AND tasks.user_id = ?", taskID, userID).
		First(&periodic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodicTaskNotFound
		}
		return nil, fmt.Errorf("get periodic task: %w", err)
	}
	return &periodic, nil
}

// Upcoming 返回 days 天内到期（或尚无到期日）的周期任务，
// 排除已取消的任务，按到期日升序
func (s *PeriodicTaskService) Upcoming(userID uint, days int) ([]db.PeriodicTask, error) {
	if days < 0 || days > 365 {
		return nil, ErrInvalidDays
	}

	cutoff := normalizeToDate(time.Now()).AddDate(0, 0, days)

	var tasks []db.PeriodicTask
	err := s.db.Preload("Task").
		Joins("JOIN tasks ON tasks.id = periodic_tasks.task_id").
		Where("tasks.user_id = ? AND tasks.status <> ?", userID, db.TaskStatusCancelled).
		Where("periodic_tasks.next_due_date IS NULL OR periodic_tasks.next_due_date <= ?", cutoff).
		Order("periodic_tasks.next_due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list upcoming periodic tasks: %w", err)
	}
	return tasks, nil
}

// getOwnedPeriodicTask 按归属校验加载周期任务，供打卡与统计路径复用
func getOwnedPeriodicTask(gdb *gorm.DB, userID, periodicTaskID uint) (*db.PeriodicTask, error) {
	var periodic db.PeriodicTask
	err := gdb.Joins("JOIN tasks ON tasks.id = periodic_tasks.task_id").
		Where("periodic_tasks.id = ? AND tasks.user_id = ?", periodicTaskID, userID).
		First(&periodic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodicTaskNotFound
		}
		return nil, fmt.Errorf("get periodic task: %w", err)
	}
	return &periodic, nil
}

func normalizePeriod(periodType string, periodValue int) (string, int, error) {
	normalized := strings.TrimSpace(strings.ToLower(periodType))
	switch normalized {
	case db.PeriodTypeDaily, db.PeriodTypeWeekly, db.PeriodTypeMonthly:
		return normalized, 0, nil
	case db.PeriodTypeCustom:
		if periodValue < 1 {
			periodValue = 1
		}
		return normalized, periodValue, nil
	default:
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidPeriodType, periodType)
	}
}

func normalizeCompletionType(completionType string) string {
	if strings.TrimSpace(strings.ToLower(completionType)) == db.CompletionTypeNumeric {
		return db.CompletionTypeNumeric
	}
	return db.CompletionTypeBoolean
}
