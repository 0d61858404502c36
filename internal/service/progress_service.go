package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/tasklog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTaskNotSlow 在非慢类型任务上记录进度时返回
	ErrTaskNotSlow = errors.New("task type is not slow")
	// ErrInvalidProgress 在进度值越界时返回
	ErrInvalidProgress = errors.New("progress value must be between 0 and 100")
)

// ProgressService 负责慢类型任务的每日进度记录
type ProgressService struct {
	db *gorm.DB
}

// ProgressInput 定义进度上报的输入对象
type ProgressInput struct {
	TaskID        uint
	Date          time.Time
	ProgressValue int
	Notes         string
}

// GanttData 汇总甘特图所需的任务信息、子任务区间与进度序列
type GanttData struct {
	Task     db.Task
	Subtasks []db.Subtask
	Progress []db.TaskProgress
}

// NewProgressService 构造 ProgressService
func NewProgressService(gdb *gorm.DB) *ProgressService {
	return &ProgressService{db: gdb}
}

// Record 记录某天的进度：同一天重复上报时覆盖，
// 再把任务的完成百分比同步为最新日期的进度值
func (s *ProgressService) Record(userID uint, input ProgressInput) (*db.TaskProgress, error) {
	var task db.Task
	if err := s.db.Where("id = ? AND user_id = ?", input.TaskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	if task.TaskType != db.TaskTypeSlow {
		return nil, ErrTaskNotSlow
	}
	if input.ProgressValue < 0 || input.ProgressValue > 100 {
		return nil, ErrInvalidProgress
	}

	record := db.TaskProgress{
		TaskID:        input.TaskID,
		Date:          normalizeToDate(input.Date),
		ProgressValue: input.ProgressValue,
		Notes:         input.Notes,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"progress_value", "notes", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}

	if err := s.db.Where("task_id = ? AND date = ?", record.TaskID, record.Date).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload progress: %w", err)
	}

	var latest db.TaskProgress
	if err := s.db.Where("task_id = ?", input.TaskID).Order("date DESC").First(&latest).Error; err == nil {
		if err := s.db.Model(&db.Task{}).Where("id = ?", input.TaskID).
			Update("completion_percentage", latest.ProgressValue).Error; err != nil {
			return nil, fmt.Errorf("sync task percentage: %w", err)
		}
	}

	return &record, nil
}

// History 返回任务的进度历史，按日期升序
func (s *ProgressService) History(userID, taskID uint) ([]db.TaskProgress, error) {
	if err := s.ensureTaskOwned(userID, taskID); err != nil {
		return nil, err
	}

	var records []db.TaskProgress
	if err := s.db.Where("task_id = ?", taskID).Order("date ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return records, nil
}

// Gantt 返回甘特图数据：任务信息、子任务区间与进度序列
func (s *ProgressService) Gantt(userID, taskID uint) (*GanttData, error) {
	var task db.Task
	if err := s.db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	var subtasks []db.Subtask
	if err := s.db.Where("task_id = ?", taskID).Order("order_index ASC, created_at ASC").Find(&subtasks).Error; err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}

	var records []db.TaskProgress
	if err := s.db.Where("task_id = ?", taskID).Order("date ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	return &GanttData{Task: task, Subtasks: subtasks, Progress: records}, nil
}

func (s *ProgressService) ensureTaskOwned(userID, taskID uint) error {
	var task db.Task
	if err := s.db.Select("id").Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("find task: %w", err)
	}
	return nil
}
