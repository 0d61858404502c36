package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tasklog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrCompletionNotFound 在打卡记录不存在或不属于当前用户时返回
	ErrCompletionNotFound = errors.New("completion not found")
	// ErrCompletionValueRequired 在数值型任务打卡缺少数值时返回
	ErrCompletionValueRequired = errors.New("completion value required for numeric task")
)

// CompletionService 负责周期任务的打卡台帐与统计聚合。
// 统计行始终从台帐全量重算后 upsert，从不做增量加减，
// 这样编辑与删除后的聚合不会漂移，出错也能被下一次刷新自愈。
type CompletionService struct {
	db *gorm.DB
}

// CheckInInput 定义打卡时的输入对象
// CompletionDate 为空时默认计入今天
type CheckInInput struct {
	PeriodicTaskID  uint
	CompletionValue *float64
	CompletionDate  *time.Time
	Notes           string
}

// UpdateCompletionInput 定义打卡记录的部分更新字段，nil 表示不修改
type UpdateCompletionInput struct {
	CompletionValue *float64
	CompletionDate  *time.Time
	Notes           *string
}

// NewCompletionService 构造 CompletionService
func NewCompletionService(gdb *gorm.DB) *CompletionService {
	return &CompletionService{db: gdb}
}

// CheckIn 记录一次打卡：插入台帐、更新任务的 last_completed_at 与
// next_due_date（以打卡的逻辑日期为基准），并刷新该日期所在周期的统计。
// 统计刷新失败只记录日志，不影响打卡本身。
func (s *CompletionService) CheckIn(userID uint, input CheckInInput) (*db.TaskCompletion, time.Time, error) {
	periodic, err := getOwnedPeriodicTask(s.db, userID, input.PeriodicTaskID)
	if err != nil {
		return nil, time.Time{}, err
	}

	if periodic.CompletionType == db.CompletionTypeNumeric && input.CompletionValue == nil {
		return nil, time.Time{}, ErrCompletionValueRequired
	}

	targetDate := normalizeToDate(time.Now())
	if input.CompletionDate != nil {
		targetDate = normalizeToDate(*input.CompletionDate)
	}

	record := db.TaskCompletion{
		PeriodicTaskID:  periodic.ID,
		CompletionValue: input.CompletionValue,
		CompletionDate:  &targetDate,
		Notes:           input.Notes,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, time.Time{}, fmt.Errorf("create completion: %w", err)
	}

	now := time.Now()
	due := nextDueDate(periodic.PeriodType, periodic.PeriodValue, targetDate)
	updates := map[string]any{"last_completed_at": now, "next_due_date": due}
	if err := s.db.Model(&db.PeriodicTask{}).Where("id = ?", periodic.ID).Updates(updates).Error; err != nil {
		return nil, time.Time{}, fmt.Errorf("update periodic task: %w", err)
	}

	s.refreshWindow(periodic, targetDate)

	return &record, due, nil
}

// Update 部分更新打卡记录。逻辑日期发生变化时，旧日期与新日期
// 所在的两个周期都会重算；否则只重算原日期所在周期。
func (s *CompletionService) Update(userID, completionID uint, input UpdateCompletionInput) (*db.TaskCompletion, error) {
	record, err := s.getOwnedCompletion(userID, completionID)
	if err != nil {
		return nil, err
	}

	oldDate := effectiveDate(record)

	if input.CompletionValue != nil {
		record.CompletionValue = input.CompletionValue
	}
	if input.CompletionDate != nil {
		normalized := normalizeToDate(*input.CompletionDate)
		record.CompletionDate = &normalized
	}
	if input.Notes != nil {
		record.Notes = *input.Notes
	}

	if err := s.db.Save(record).Error; err != nil {
		return nil, fmt.Errorf("update completion: %w", err)
	}

	periodic, err := getOwnedPeriodicTask(s.db, userID, record.PeriodicTaskID)
	if err != nil {
		return record, nil
	}

	newDate := effectiveDate(record)
	if input.CompletionDate != nil && !newDate.Equal(oldDate) {
		s.refreshWindow(periodic, oldDate)
		s.refreshWindow(periodic, newDate)
	} else {
		s.refreshWindow(periodic, newDate)
	}

	return record, nil
}

// Delete 删除打卡记录并重算其逻辑日期所在周期的统计
func (s *CompletionService) Delete(userID, completionID uint) error {
	record, err := s.getOwnedCompletion(userID, completionID)
	if err != nil {
		return err
	}

	target := effectiveDate(record)

	if err := s.db.Delete(&db.TaskCompletion{}, record.ID).Error; err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}

	periodic, err := getOwnedPeriodicTask(s.db, userID, record.PeriodicTaskID)
	if err != nil {
		return nil
	}
	s.refreshWindow(periodic, target)

	return nil
}

// List 返回周期任务的全部打卡记录，按逻辑日期、创建时间倒序
func (s *CompletionService) List(userID, periodicTaskID uint) ([]db.TaskCompletion, error) {
	if _, err := getOwnedPeriodicTask(s.db, userID, periodicTaskID); err != nil {
		return nil, err
	}

	var records []db.TaskCompletion
	err := s.db.Where("periodic_task_id = ?", periodicTaskID).
		Order("COALESCE(completion_date, created_at) DESC, created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return records, nil
}

// Stats 返回周期任务的统计行，最新周期在前；
// start/end 同时给出时只返回完整落在区间内的周期
func (s *CompletionService) Stats(userID, periodicTaskID uint, start, end *time.Time) ([]db.PeriodicTaskStat, error) {
	if _, err := getOwnedPeriodicTask(s.db, userID, periodicTaskID); err != nil {
		return nil, err
	}

	query := s.db.Where("periodic_task_id = ?", periodicTaskID)
	if start != nil && end != nil {
		query = query.Where("period_start >= ? AND period_end <= ?", normalizeToDate(*start), normalizeToDate(*end))
	}

	var stats []db.PeriodicTaskStat
	if err := query.Order("period_start DESC").Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("list periodic stats: %w", err)
	}
	return stats, nil
}

// RefreshCurrentWindow 重算当前日期所在周期的统计，
// 供没有明确目标日期的维护路径使用
func (s *CompletionService) RefreshCurrentWindow(userID, periodicTaskID uint) error {
	periodic, err := getOwnedPeriodicTask(s.db, userID, periodicTaskID)
	if err != nil {
		return err
	}
	s.refreshWindow(periodic, time.Now())
	return nil
}

// refreshWindow 全量重算 date 所在周期的统计并 upsert。
// 预期字段按任务当前的周期定义与目标值计算；实际字段从台帐重新统计。
// 任何失败只记录日志：打卡/编辑/删除动作本身必须成功。
func (s *CompletionService) refreshWindow(periodic *db.PeriodicTask, date time.Time) {
	if err := s.recomputeWindow(periodic, date); err != nil {
		log.Printf("refresh periodic stats failed (periodic_task=%d date=%s): %v",
			periodic.ID, normalizeToDate(date).Format("2006-01-02"), err)
	}
}

func (s *CompletionService) recomputeWindow(periodic *db.PeriodicTask, date time.Time) error {
	window := periodWindow(periodic.PeriodType, periodic.PeriodValue, date)
	expCount := windowExpectedCount(periodic.PeriodType, periodic.PeriodValue, window)
	expValue := expectedValue(periodic.CompletionType, periodic.TargetValue, periodic.PeriodType, expCount)

	var records []db.TaskCompletion
	if err := s.db.Where("periodic_task_id = ?", periodic.ID).Find(&records).Error; err != nil {
		return fmt.Errorf("load completions: %w", err)
	}

	actualCount := 0
	actualValue := 0.0
	for i := range records {
		day := effectiveDate(&records[i])
		if day.Before(window.Start) || day.After(window.End) {
			continue
		}
		actualCount++
		if records[i].CompletionValue != nil {
			actualValue += *records[i].CompletionValue
		}
	}

	stat := db.PeriodicTaskStat{
		PeriodicTaskID: periodic.ID,
		PeriodStart:    window.Start,
		PeriodEnd:      window.End,
		ExpectedCount:  expCount,
		ActualCount:    actualCount,
		ExpectedValue:  expValue,
		ActualValue:    actualValue,
	}

	// expected_count 在行创建时固定，后续刷新只更新实际值与预期累计值
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "periodic_task_id"}, {Name: "period_start"}, {Name: "period_end"}},
		DoUpdates: clause.AssignmentColumns([]string{"actual_count", "actual_value", "expected_value", "updated_at"}),
	}).Create(&stat).Error; err != nil {
		return fmt.Errorf("upsert periodic stats: %w", err)
	}

	return nil
}

func (s *CompletionService) getOwnedCompletion(userID, completionID uint) (*db.TaskCompletion, error) {
	var record db.TaskCompletion
	err := s.db.Joins("JOIN periodic_tasks ON periodic_tasks.id = task_completions.periodic_task_id").
		Joins("JOIN tasks ON tasks.id = periodic_tasks.task_id").
		Where("task_completions.id = ? AND tasks.user_id = ?", completionID, userID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompletionNotFound
		}
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return &record, nil
}

// effectiveDate 返回打卡计入的逻辑日期：优先 completion_date，
// 缺失时退回创建时间的日期部分
func effectiveDate(record *db.TaskCompletion) time.Time {
	if record.CompletionDate != nil {
		return normalizeToDate(*record.CompletionDate)
	}
	return normalizeToDate(record.CreatedAt)
}
