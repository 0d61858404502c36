package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeAIClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeAIClient) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

func setupAITestAPI(t *testing.T, apiKey string) (*gin.Engine, *API, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(&db.User{}, &db.Task{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	db.DB = gdb

	user := db.User{Username: "alice", Password: "hashed", APIToken: testToken}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	api := NewAPI(gdb, AIConfig{APIKey: apiKey, Model: "gpt-4o-mini"})
	r := gin.New()
	group := r.Group("/api")
	group.Use(api.AuthRequired())
	{
		group.POST("/ai/parse", api.ParseInput)
		group.POST("/ai/summarize", api.SummarizeTasks)
	}

	return r, api, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func aiChatResponse(content string) *http.Response {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	buf, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(buf)),
		Header:     make(http.Header),
	}
}

func TestParseInputEndpoint(t *testing.T) {
	r, api, cleanup := setupAITestAPI(t, "sk-test")
	defer cleanup()

	api.AI().SetHTTPClient(fakeAIClient{handler: func(req *http.Request) (*http.Response, error) {
		return aiChatResponse(`[{"title":"买菜","task_type":"urgent","priority":"high"}]`), nil
	}})

	w := doJSON(t, r, http.MethodPost, "/api/ai/parse", map[string]any{"input": "明天记得买菜"}, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Tasks []struct {
			Title    string `json:"title"`
			TaskType string `json:"task_type"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Tasks) != 1 || response.Tasks[0].Title != "买菜" {
		t.Fatalf("unexpected parse result: %s", w.Body.String())
	}

	// 空输入
	w = doJSON(t, r, http.MethodPost, "/api/ai/parse", map[string]any{"input": "  "}, testToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty input, got %d", w.Code)
	}
}

func TestParseInputWithoutAPIKey(t *testing.T) {
	r, _, cleanup := setupAITestAPI(t, "")
	defer cleanup()

	w := doJSON(t, r, http.MethodPost, "/api/ai/parse", map[string]any{"input": "买菜"}, testToken)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without api key, got %d", w.Code)
	}
}

func TestSummarizeTasksEndpoint(t *testing.T) {
	r, api, cleanup := setupAITestAPI(t, "sk-test")
	defer cleanup()

	var user db.User
	if err := db.DB.Where("api_token = ?", testToken).First(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	task := db.Task{UserID: user.ID, Title: "学习Go", TaskType: db.TaskTypeSlow, Status: db.TaskStatusInProgress, Priority: "medium"}
	if err := db.DB.Create(&task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	api.AI().SetHTTPClient(fakeAIClient{handler: func(req *http.Request) (*http.Response, error) {
		return aiChatResponse("## 总结\n\n- 进行中任务 1 个\n\n<script>alert(1)</script>"), nil
	}})

	w := doJSON(t, r, http.MethodPost, "/api/ai/summarize", nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Summary string `json:"summary"`
		HTML    string `json:"html"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Summary == "" {
		t.Fatal("expected markdown summary")
	}
	if !bytes.Contains([]byte(response.HTML), []byte("<h2")) {
		t.Fatalf("expected rendered heading in HTML: %s", response.HTML)
	}
	// 脚本标签被净化掉
	if bytes.Contains([]byte(response.HTML), []byte("<script>")) {
		t.Fatalf("expected sanitized HTML: %s", response.HTML)
	}
}
