package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tasklog/internal/db"
	"gorm.io/gorm"
)

// ErrSubtaskNotFound 在子任务不存在或不属于当前用户时返回
var ErrSubtaskNotFound = errors.New("subtask not found")

// SubtaskService 负责子任务的增删改查，归属校验通过父任务完成
type SubtaskService struct {
	db *gorm.DB
}

// SubtaskInput 定义创建/更新子任务的字段
type SubtaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	Tags        []string
	OrderIndex  *int
	StartDate   *time.Time
	EndDate     *time.Time
}

// NewSubtaskService 构造 SubtaskService
func NewSubtaskService(gdb *gorm.DB) *SubtaskService {
	return &SubtaskService{db: gdb}
}

// List 返回任务的子任务，按 order_index 与创建时间排序
func (s *SubtaskService) List(userID, taskID uint) ([]db.Subtask, error) {
	if err := s.ensureTaskOwned(userID, taskID); err != nil {
		return nil, err
	}

	var subtasks []db.Subtask
	if err := s.db.Where("task_id = ?", taskID).
		Order("order_index ASC, created_at ASC").
		Find(&subtasks).Error; err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	return subtasks, nil
}

// Create 在任务下新建子任务，未指定顺序时追加到末尾
func (s *SubtaskService) Create(userID, taskID uint, input SubtaskInput) (*db.Subtask, error) {
	if err := s.ensureTaskOwned(userID, taskID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTaskTitleRequired
	}

	orderIndex := 0
	if input.OrderIndex != nil {
		orderIndex = *input.OrderIndex
	} else {
		var count int64
		if err := s.db.Model(&db.Subtask{}).Where("task_id = ?", taskID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("count subtasks: %w", err)
		}
		orderIndex = int(count)
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = "medium"
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = db.TaskStatusPending
	}

	subtask := db.Subtask{
		TaskID:      taskID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		Tags:        joinTags(input.Tags),
		OrderIndex:  orderIndex,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}

	if err := s.db.Create(&subtask).Error; err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	return &subtask, nil
}

// Update 更新子任务（整体覆盖提供的字段）
func (s *SubtaskService) Update(userID, taskID, subtaskID uint, input SubtaskInput) (*db.Subtask, error) {
	if err := s.ensureTaskOwned(userID, taskID); err != nil {
		return nil, err
	}

	var existing db.Subtask
	if err := s.db.Where("id = ? AND task_id = ?", subtaskID, taskID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubtaskNotFound
		}
		return nil, fmt.Errorf("find subtask: %w", err)
	}

	if title := strings.TrimSpace(input.Title); title != "" {
		existing.Title = title
	}
	existing.Description = strings.TrimSpace(input.Description)
	if input.Status != "" {
		existing.Status = input.Status
	}
	if input.Priority != "" {
		existing.Priority = input.Priority
	}
	if input.Tags != nil {
		existing.Tags = joinTags(input.Tags)
	}
	if input.OrderIndex != nil {
		existing.OrderIndex = *input.OrderIndex
	}
	if input.StartDate != nil {
		existing.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		existing.EndDate = input.EndDate
	}

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update subtask: %w", err)
	}
	return &existing, nil
}

// Delete 删除子任务
func (s *SubtaskService) Delete(userID, taskID, subtaskID uint) error {
	if err := s.ensureTaskOwned(userID, taskID); err != nil {
		return err
	}

	result := s.db.Where("id = ? AND task_id = ?", subtaskID, taskID).Delete(&db.Subtask{})
	if result.Error != nil {
		return fmt.Errorf("delete subtask: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubtaskNotFound
	}
	return nil
}

func (s *SubtaskService) ensureTaskOwned(userID, taskID uint) error {
	var task db.Task
	if err := s.db.Select("id").Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("find task: %w", err)
	}
	return nil
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}

// SplitTags 将存储的逗号分隔标签还原为切片
func SplitTags(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
