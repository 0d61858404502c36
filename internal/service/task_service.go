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
	// ErrTaskTitleRequired 在创建任务缺少标题或类型时返回
	ErrTaskTitleRequired = errors.New("task title and type are required")
	// ErrDeadlineRequired 在急类型任务未设置截止日期时返回
	ErrDeadlineRequired = errors.New("urgent task requires a deadline")
	// ErrInvalidPercentage 在完成百分比越界或用于非慢类型任务时返回
	ErrInvalidPercentage = errors.New("completion percentage only valid for slow tasks within 0-100")
)

// TaskService 负责任务主表的增删改查与概览统计
type TaskService struct {
	db *gorm.DB
}

// TaskFilter 描述任务列表的过滤条件
// Archived 为 "true"/"false" 时分别只含/排除已完成任务，空串不过滤
type TaskFilter struct {
	Quadrant int
	TaskType string
	Status   string
	Date     *time.Time
	Archived string
}

// TaskInput 定义创建任务的字段
type TaskInput struct {
	Title                string
	Description          string
	Priority             string
	Quadrant             int
	TaskType             string
	Deadline             *time.Time
	CompletionPercentage *int
}

// UpdateTaskInput 定义部分更新字段，nil 表示不修改
// ClearDeadline 为 true 时清空截止日期
type UpdateTaskInput struct {
	Title                *string
	Description          *string
	Status               *string
	Priority             *string
	Quadrant             *int
	TaskType             *string
	Deadline             *time.Time
	ClearDeadline        bool
	CompletionPercentage *int
}

// TaskOverview 汇总任务概览统计
type TaskOverview struct {
	Total          int64
	Completed      int64
	CompletionRate float64
	ByQuadrant     map[int]int64
	ByType         map[string]int64
	AvgProgress    float64
}

// TodayView 汇总今日待办：今天到期或已逾期的急任务、到期待打卡的周期任务
// （附最近一个统计周期）以及进行中的慢任务和其未完结子任务
type TodayView struct {
	Date          time.Time
	UrgentTasks   []db.Task
	PeriodicTasks []PeriodicTodayItem
	SlowTasks     []SlowTodayItem
}

// PeriodicTodayItem 是今日视图中的周期任务条目
type PeriodicTodayItem struct {
	PeriodicTask db.PeriodicTask
	CurrentStats *db.PeriodicTaskStat
}

// SlowTodayItem 是今日视图中的慢任务条目
type SlowTodayItem struct {
	Task     db.Task
	Subtasks []db.Subtask
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb}
}

// List 返回用户的任务集合，支持象限/类型/状态/截止日期过滤
func (s *TaskService) List(userID uint, filter TaskFilter) ([]db.Task, error) {
	query := s.db.Where("user_id = ?", userID)

	if filter.Quadrant > 0 {
		query = query.Where("quadrant = ?", filter.Quadrant)
	}
	if filter.TaskType != "" {
		query = query.Where("task_type = ?", filter.TaskType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Date != nil {
		day := normalizeToDate(*filter.Date)
		query = query.Where("deadline >= ? AND deadline < ?", day, day.AddDate(0, 0, 1))
	}
	switch filter.Archived {
	case "true":
		query = query.Where("status = ?", db.TaskStatusCompleted)
	case "false":
		query = query.Where("status <> ?", db.TaskStatusCompleted)
	}

	var tasks []db.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Get 返回单个任务
func (s *TaskService) Get(userID, taskID uint) (*db.Task, error) {
	var task db.Task
	if err := s.db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// Create 新建任务。急类型必须有截止日期；完成百分比仅慢类型可设置。
func (s *TaskService) Create(userID uint, input TaskInput) (*db.Task, error) {
	title := strings.TrimSpace(input.Title)
	taskType := strings.TrimSpace(input.TaskType)
	if title == "" || taskType == "" {
		return nil, ErrTaskTitleRequired
	}
	if taskType == db.TaskTypeUrgent && input.Deadline == nil {
		return nil, ErrDeadlineRequired
	}

	percentage := 0
	if input.CompletionPercentage != nil {
		if taskType != db.TaskTypeSlow || *input.CompletionPercentage < 0 || *input.CompletionPercentage > 100 {
			return nil, ErrInvalidPercentage
		}
		percentage = *input.CompletionPercentage
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = "medium"
	}

	task := db.Task{
		UserID:               userID,
		Title:                title,
		Description:          strings.TrimSpace(input.Description),
		Status:               db.TaskStatusPending,
		Priority:             priority,
		Quadrant:             input.Quadrant,
		TaskType:             taskType,
		Deadline:             input.Deadline,
		CompletionPercentage: percentage,
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// Update 部分更新任务。慢类型切换为其他类型时完成百分比清零；
// 状态转为已完成时补齐到 100。
func (s *TaskService) Update(userID, taskID uint, input UpdateTaskInput) (*db.Task, error) {
	existing, err := s.Get(userID, taskID)
	if err != nil {
		return nil, err
	}

	wasSlow := existing.TaskType == db.TaskTypeSlow
	wasCompleted := existing.Status == db.TaskStatusCompleted

	if input.Title != nil {
		existing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		existing.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		existing.Status = *input.Status
	}
	if input.Priority != nil {
		existing.Priority = *input.Priority
	}
	if input.Quadrant != nil {
		existing.Quadrant = *input.Quadrant
	}
	if input.TaskType != nil {
		existing.TaskType = *input.TaskType
	}
	if input.ClearDeadline {
		existing.Deadline = nil
	} else if input.Deadline != nil {
		existing.Deadline = input.Deadline
	}

	if input.CompletionPercentage != nil {
		if existing.TaskType != db.TaskTypeSlow || *input.CompletionPercentage < 0 || *input.CompletionPercentage > 100 {
			return nil, ErrInvalidPercentage
		}
		existing.CompletionPercentage = *input.CompletionPercentage
	} else if wasSlow && existing.TaskType != db.TaskTypeSlow {
		existing.CompletionPercentage = 0
	}

	// 任务转为完成时进度补齐到 100
	if !wasCompleted && existing.Status == db.TaskStatusCompleted {
		existing.CompletionPercentage = 100
	}

	if err := s.db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return existing, nil
}

// Delete 删除任务及其级联数据（子任务、进度、周期配置与台帐）
func (s *TaskService) Delete(userID, taskID uint) error {
	task, err := s.Get(userID, taskID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var periodic db.PeriodicTask
		if err := tx.Where("task_id = ?", task.ID).First(&periodic).Error; err == nil {
			if err := tx.Where("periodic_task_id = ?", periodic.ID).Delete(&db.TaskCompletion{}).Error; err != nil {
				return fmt.Errorf("delete completions: %w", err)
			}
			if err := tx.Where("periodic_task_id = ?", periodic.ID).Delete(&db.PeriodicTaskStat{}).Error; err != nil {
				return fmt.Errorf("delete periodic stats: %w", err)
			}
			if err := tx.Delete(&periodic).Error; err != nil {
				return fmt.Errorf("delete periodic task: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find periodic task: %w", err)
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&db.Subtask{}).Error; err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&db.TaskProgress{}).Error; err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		if err := tx.Delete(task).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// Overview 返回任务概览统计：总数、完成数、完成率、象限/类型分布与平均进度
func (s *TaskService) Overview(userID uint) (*TaskOverview, error) {
	overview := &TaskOverview{
		ByQuadrant: make(map[int]int64),
		ByType:     make(map[string]int64),
	}

	base := s.db.Model(&db.Task{}).Where("user_id = ?", userID)

	if err := base.Session(&gorm.Session{}).Count(&overview.Total).Error; err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", db.TaskStatusCompleted).Count(&overview.Completed).Error; err != nil {
		return nil, fmt.Errorf("count completed tasks: %w", err)
	}

	var quadrants []struct {
		Quadrant int
		Count    int64
	}
	if err := base.Session(&gorm.Session{}).
		Select("quadrant, COUNT(*) AS count").
		Where("quadrant > 0").
		Group("quadrant").
		Scan(&quadrants).Error; err != nil {
		return nil, fmt.Errorf("count by quadrant: %w", err)
	}
	for _, row := range quadrants {
		overview.ByQuadrant[row.Quadrant] = row.Count
	}

	var types []struct {
		TaskType string
		Count    int64
	}
	if err := base.Session(&gorm.Session{}).
		Select("task_type, COUNT(*) AS count").
		Group("task_type").
		Scan(&types).Error; err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	for _, row := range types {
		overview.ByType[row.TaskType] = row.Count
	}

	var avg *float64
	if err := base.Session(&gorm.Session{}).
		Select("AVG(completion_percentage)").
		Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("average progress: %w", err)
	}
	if avg != nil {
		overview.AvgProgress = *avg
	}

	if overview.Total > 0 {
		overview.CompletionRate = float64(overview.Completed) / float64(overview.Total) * 100
	}

	return overview, nil
}

// Today 汇总今日待办视图
func (s *TaskService) Today(userID uint) (*TodayView, error) {
	today := normalizeToDate(time.Now())
	view := &TodayView{Date: today}

	if err := s.db.Where("user_id = ? AND task_type = ? AND status NOT IN ?",
		userID, db.TaskTypeUrgent, []string{db.TaskStatusCompleted, db.TaskStatusCancelled}).
		Where("deadline IS NULL OR deadline < ?", today.AddDate(0, 0, 1)).
		Order("deadline ASC, created_at ASC").
		Find(&view.UrgentTasks).Error; err != nil {
		return nil, fmt.Errorf("list urgent tasks: %w", err)
	}

	var periodicTasks []db.PeriodicTask
	if err := s.db.Preload("Task").
		Joins("JOIN tasks ON tasks.id = periodic_tasks.task_id").
		Where("tasks.user_id = ? AND tasks.status = ?", userID, db.TaskStatusInProgress).
		Where("periodic_tasks.next_due_date IS NULL OR periodic_tasks.next_due_date <= ?", today).
		Order("periodic_tasks.next_due_date ASC").
		Find(&periodicTasks).Error; err != nil {
		return nil, fmt.Errorf("list due periodic tasks: %w", err)
	}

	for _, periodic := range periodicTasks {
		item := PeriodicTodayItem{PeriodicTask: periodic}
		var stat db.PeriodicTaskStat
		if err := s.db.Where("periodic_task_id = ?", periodic.ID).
			Order("period_start DESC").
			First(&stat).Error; err == nil {
			item.CurrentStats = &stat
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load current stats: %w", err)
		}
		view.PeriodicTasks = append(view.PeriodicTasks, item)
	}

	var slowTasks []db.Task
	if err := s.db.Where("user_id = ? AND task_type = ? AND status NOT IN ?",
		userID, db.TaskTypeSlow, []string{db.TaskStatusCompleted, db.TaskStatusCancelled}).
		Order("created_at ASC").
		Find(&slowTasks).Error; err != nil {
		return nil, fmt.Errorf("list slow tasks: %w", err)
	}

	for _, task := range slowTasks {
		item := SlowTodayItem{Task: task}
		if err := s.db.Where("task_id = ? AND status IN ?", task.ID,
			[]string{db.TaskStatusPending, db.TaskStatusInProgress}).
			Where("end_date IS NULL OR end_date >= ?", today).
			Order("order_index ASC, created_at ASC").
			Find(&item.Subtasks).Error; err != nil {
			return nil, fmt.Errorf("list subtasks: %w", err)
		}
		view.SlowTasks = append(view.SlowTasks, item)
	}

	return view, nil
}
