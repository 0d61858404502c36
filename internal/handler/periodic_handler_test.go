package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testToken = "test-token"

func setupTestAPI(t *testing.T) (*gin.Engine, *db.User, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(&db.User{}, &db.Task{}, &db.Subtask{}, &db.TaskProgress{}, &db.PeriodicTask{}, &db.TaskCompletion{}, &db.PeriodicTaskStat{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	db.DB = gdb

	user := db.User{Username: "alice", Password: "hashed", APIToken: testToken}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	api := NewAPI(gdb, AIConfig{})
	r := gin.New()
	group := r.Group("/api")
	group.Use(api.AuthRequired())
	{
		group.POST("/tasks", api.CreateTask)
		group.GET("/tasks/:id", api.GetTask)
		group.POST("/periodic", api.CreatePeriodicTask)
		group.POST("/periodic/complete", api.CompletePeriodicTask)
		group.GET("/periodic/upcoming", api.GetUpcoming)
		group.GET("/periodic/:id/stats", api.GetPeriodicStats)
	}

	cleanup := func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return r, &user, cleanup
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r, _, cleanup := setupTestAPI(t)
	defer cleanup()

	w := doJSON(t, r, http.MethodGet, "/api/periodic/upcoming", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/periodic/upcoming", nil, "wrong-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/periodic/upcoming", nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPeriodicCheckInFlow(t *testing.T) {
	r, _, cleanup := setupTestAPI(t)
	defer cleanup()

	// 创建周期任务
	w := doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{
		"title":     "每日跑步",
		"task_type": "periodic",
		"quadrant":  2,
	}, testToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating task, got %d: %s", w.Code, w.Body.String())
	}
	var task struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("failed to decode task: %v", err)
	}

	// 配置周期：每天 5 公里
	w = doJSON(t, r, http.MethodPost, "/api/periodic", map[string]any{
		"task_id":         task.ID,
		"period_type":     "daily",
		"completion_type": "numeric",
		"target_value":    5,
		"unit":            "公里",
	}, testToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating periodic config, got %d: %s", w.Code, w.Body.String())
	}
	var periodic struct {
		ID          uint   `json:"id"`
		NextDueDate string `json:"next_due_date"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &periodic); err != nil {
		t.Fatalf("failed to decode periodic task: %v", err)
	}
	if periodic.NextDueDate == "" {
		t.Fatal("expected next due date in response")
	}

	// 重复配置应返回 409
	w = doJSON(t, r, http.MethodPost, "/api/periodic", map[string]any{
		"task_id":     task.ID,
		"period_type": "daily",
	}, testToken)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate config, got %d", w.Code)
	}

	// 数值型任务缺少完成值应返回 400
	w = doJSON(t, r, http.MethodPost, "/api/periodic/complete", map[string]any{
		"periodic_task_id": periodic.ID,
	}, testToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without completion value, got %d", w.Code)
	}

	// 打卡
	w = doJSON(t, r, http.MethodPost, "/api/periodic/complete", map[string]any{
		"periodic_task_id": periodic.ID,
		"completion_value": 5,
		"notes":            "晨跑",
	}, testToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 checking in, got %d: %s", w.Code, w.Body.String())
	}
	var checkIn struct {
		Completion  map[string]any `json:"completion"`
		NextDueDate string         `json:"next_due_date"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &checkIn); err != nil {
		t.Fatalf("failed to decode check-in response: %v", err)
	}
	if checkIn.NextDueDate == "" || checkIn.Completion["id"] == nil {
		t.Fatalf("unexpected check-in response: %s", w.Body.String())
	}

	// 统计窗口已生成
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/periodic/%d/stats", periodic.ID), nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 loading stats, got %d: %s", w.Code, w.Body.String())
	}
	var stats []struct {
		ActualCount   int     `json:"actual_count"`
		ExpectedCount int     `json:"expected_count"`
		ActualValue   float64 `json:"actual_value"`
		ExpectedValue float64 `json:"expected_value"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat window, got %d", len(stats))
	}
	if stats[0].ActualCount != 1 || stats[0].ExpectedCount != 1 {
		t.Fatalf("unexpected counts: %+v", stats[0])
	}
	if stats[0].ActualValue != 5 || stats[0].ExpectedValue != 5 {
		t.Fatalf("unexpected values: %+v", stats[0])
	}
}

func TestGetUpcomingValidation(t *testing.T) {
	r, _, cleanup := setupTestAPI(t)
	defer cleanup()

	w := doJSON(t, r, http.MethodGet, "/api/periodic/upcoming?days=abc", nil, testToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric days, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/periodic/upcoming?days=400", nil, testToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range days, got %d", w.Code)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	r, _, cleanup := setupTestAPI(t)
	defer cleanup()

	// 急类型缺少截止日期
	w := doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{
		"title":     "交报告",
		"task_type": "urgent",
	}, testToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for urgent task without deadline, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/tasks/999", nil, testToken)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", w.Code)
	}
}
