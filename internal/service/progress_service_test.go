package service

import (
	"errors"
	"testing"

	"github.com/tasklog/internal/db"
)

func TestProgressServiceRecord(t *testing.T) {
	cleanup := setupPeriodicTestDB(t)
	defer cleanup()

	user := createTestUser(t, "alice")
	task := createTestTask(t, user.ID, db.TaskTypeSlow)

	svc := NewProgressService(db.DB)
	record, err := svc.Record(user.ID, ProgressInput{TaskID: task.ID, Date: date(2024, 3, 10), ProgressValue: 30, Notes: "完成第一章"})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if record.ProgressValue != 30 {
		t.Fatalf("unexpected progress value: %d", record.ProgressValue)
	}

	// 同一天重复上报覆盖而不是新增
	record, err = svc.Record(user.ID, ProgressInput{TaskID: task.ID, Date: date(2024, 3, 10), ProgressValue: 45})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if record.ProgressValue != 45 {
		t.Fatalf("expected overwritten value 45, got %d", record.ProgressValue)
	}

	var count int64
	db.DB.Model(&db.TaskProgress{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 progress row, got %d", count)
	}

	// 任务完成百分比同步为最新日期的进度值
	if _, err := svc.Record(user.ID, ProgressInput{TaskID: task.ID, Date: date(2024, 3, 12), ProgressValue: 60}); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	var reloaded db.Task
	if err := db.DB.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if reloaded.CompletionPercentage != 60 {
		t.Fatalf("expected synced percentage 60, got %d", reloaded.CompletionPercentage)
	}

	// 补录更早日期不应回退任务百分比
	if _, err := svc.Record(user.ID, ProgressInput{TaskID: task.ID, Date: date(2024, 3, 11), ProgressValue: 50}); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := db.DB.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if reloaded.CompletionPercentage != 60 {
		t.Fatalf("expected percentage to stay 60, got %d", reloaded.CompletionPercentage)
	}
}

func TestProgressServiceValidation(t *testing.T) {
	cleanup := setupPeriodicTestDB(t)
	defer cleanup()

	user := createTestUser(t, "alice")
	urgent := createTestTask(t, user.ID, db.TaskTypeUrgent)
	slow := createTestTask(t, user.ID, db.TaskTypeSlow)

	svc := NewProgressService(db.DB)
	if _, err := svc.Record(user.ID, ProgressInput{TaskID: urgent.ID, Date: date(2024, 3, 10), ProgressValue: 30}); !errors.Is(err, ErrTaskNotSlow) {
		t.Fatalf("expected ErrTaskNotSlow, got %v", err)
	}
	if _, err := svc.Record(user.ID, ProgressInput{TaskID: slow.ID, Date: date(2024, 3, 10), ProgressValue: 120}); !errors.Is(err, ErrInvalidProgress) {
		t.Fatalf("expected ErrInvalidProgress, got %v", err)
	}
	if _, err := svc.Record(user.ID, ProgressInput{TaskID: 999, Date: date(2024, 3, 10), ProgressValue: 10}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestProgressServiceHistoryAndGantt(t *testing.T) {
	cleanup := setupPeriodicTestDB(t)
	defer cleanup()

	user := createTestUser(t, "alice")
	task := createTestTask(t, user.ID, db.TaskTypeSlow)

	svc := NewProgressService(db.DB)
	for _, item := range []struct {
		day   int
		value int
	}{{12, 60}, {10, 30}, {11, 45}} {
		if _, err := svc.Record(user.ID, ProgressInput{TaskID: task.ID, Date: date(2024, 3, item.day), ProgressValue: item.value}); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	history, err := svc.History(user.ID, task.ID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	// 按日期升序
	if !history[0].Date.Equal(date(2024, 3, 10)) || !history[2].Date.Equal(date(2024, 3, 12)) {
		t.Fatalf("unexpected history order: %v ... %v", history[0].Date, history[2].Date)
	}

	start := date(2024, 3, 10)
	end := date(2024, 3, 15)
	subtask := db.Subtask{TaskID: task.ID, Title: "第一阶段", StartDate: &start, EndDate: &end}
	if err := db.DB.Create(&subtask).Error; err != nil {
		t.Fatalf("failed to create subtask: %v", err)
	}

	gantt, err := svc.Gantt(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Gantt returned error: %v", err)
	}
	if gantt.Task.ID != task.ID {
		t.Fatalf("unexpected gantt task: %d", gantt.Task.ID)
	}
	if len(gantt.Subtasks) != 1 || gantt.Subtasks[0].StartDate == nil {
		t.Fatalf("expected subtask range in gantt data: %+v", gantt.Subtasks)
	}
	if len(gantt.Progress) != 3 {
		t.Fatalf("expected 3 gantt points, got %d", len(gantt.Progress))
	}
}
