package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tasklog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrAIInputEmpty 在解析输入为空时返回
	ErrAIInputEmpty = errors.New("ai input is empty")
	// ErrAIParseFailed 在模型输出无法解析为任务列表时返回
	ErrAIParseFailed = errors.New("ai response is not a valid task list")
)

const (
	defaultParseTemperature     = 0.3
	defaultSummaryTemperature   = 0.7
	defaultParseSystemPrompt    = "你是一个专业的待办事项解析助手。只返回有效的JSON数组，不要添加任何解释文字。"
	defaultSummarySystemPrompt  = "你是一个专业的任务管理助手，擅长分析任务数据并提供有价值的建议。"
	maxSummaryDeadlinePreviewed = 5
)

// TaskDraft 是自然语言解析得到的任务草稿，交由前端确认后再创建
type TaskDraft struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	TaskType    string  `json:"task_type"`
	Priority    string  `json:"priority"`
	Quadrant    int     `json:"quadrant,omitempty"`
	Deadline    string  `json:"deadline,omitempty"`
	PeriodType  string  `json:"period_type,omitempty"`
	PeriodValue int     `json:"period_value,omitempty"`
	TargetValue float64 `json:"target_value,omitempty"`
}

// AITaskService 基于大模型接口提供自然语言解析与任务总结能力
type AITaskService struct {
	db     *gorm.DB
	client *aiChatClient
}

// NewAITaskService 构造 AITaskService，apiKey 为空时调用会返回 ErrAIAPIKeyMissing
func NewAITaskService(gdb *gorm.DB, apiKey, baseURL, model string) *AITaskService {
	return &AITaskService{
		db:     gdb,
		client: newAIChatClient(apiKey, baseURL, model),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AITaskService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetBaseURL 覆盖默认的模型 API 地址。
func (s *AITaskService) SetBaseURL(base string) {
	s.client.SetBaseURL(base)
}

// ParseTasks 把自然语言输入解析为结构化任务草稿。
// 模型偶尔会包一层 markdown 代码块，解析前先剥掉；
// 急类型草稿缺少截止日期时默认设为明天。
func (s *AITaskService) ParseTasks(ctx context.Context, input string) ([]TaskDraft, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrAIInputEmpty
	}

	userPrompt := buildParsePrompt(trimmed)
	logAIExchange("PARSE", "prompt", userPrompt)

	result, err := s.client.call(ctx, aiChatRequest{
		SystemPrompt: defaultParseSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  defaultParseTemperature,
	})
	if err != nil {
		return nil, err
	}
	logAIExchange("PARSE", "response", result.Content)

	drafts, err := decodeTaskDrafts(result.Content)
	if err != nil {
		return nil, err
	}

	tomorrow := normalizeToDate(time.Now()).AddDate(0, 0, 1).Format("2006-01-02")
	for i := range drafts {
		if strings.TrimSpace(drafts[i].TaskType) == "" {
			drafts[i].TaskType = db.TaskTypeUrgent
		}
		if strings.TrimSpace(drafts[i].Priority) == "" {
			drafts[i].Priority = "medium"
		}
		if drafts[i].TaskType == db.TaskTypeUrgent && strings.TrimSpace(drafts[i].Deadline) == "" {
			drafts[i].Deadline = tomorrow
		}
	}

	return drafts, nil
}

// Summarize 汇总用户的任务数据并生成总结报告（Markdown 文本）
func (s *AITaskService) Summarize(ctx context.Context, userID uint) (string, error) {
	var tasks []db.Task
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		return "", fmt.Errorf("load tasks: %w", err)
	}

	if len(tasks) == 0 {
		return "您还没有创建任何任务。", nil
	}

	userPrompt := buildSummaryPrompt(tasks)
	logAIExchange("SUMMARY", "prompt", userPrompt)

	result, err := s.client.call(ctx, aiChatRequest{
		SystemPrompt: defaultSummarySystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  defaultSummaryTemperature,
	})
	if err != nil {
		return "", err
	}
	logAIExchange("SUMMARY", "response", result.Content)

	if result.Content == "" {
		return "无法生成总结", nil
	}
	return result.Content, nil
}

func buildParsePrompt(input string) string {
	var builder strings.Builder
	builder.WriteString(`你是一个待办事项管理助手。请将用户的自然语言输入解析为结构化的任务列表。

任务类型说明：
- urgent: 急类型任务（必须有截止日期）
- slow: 慢类型任务（需要跟踪进度）
- periodic: 周期任务（需要定期完成，如每天、每周等）

象限说明（可选）：
- 1: 重要且紧急
- 2: 重要不紧急
- 3: 不重要但紧急
- 4: 不重要不紧急

优先级：low, medium, high

请以JSON数组格式返回，每个任务包含以下字段：
{
  "title": "任务标题",
  "description": "任务描述（可选）",
  "task_type": "urgent|slow|periodic",
  "priority": "low|medium|high",
  "quadrant": 1|2|3|4（可选）,
  "deadline": "YYYY-MM-DD"（急类型任务必填）,
  "period_type": "daily|weekly|monthly|custom"（周期任务必填）,
  "period_value": 数字（自定义周期时必填）
}

用户输入：`)
	builder.WriteString(input)
	builder.WriteString("\n\n只返回JSON数组，不要其他文字说明。")
	return builder.String()
}

func buildSummaryPrompt(tasks []db.Task) string {
	total := len(tasks)
	statusCount := make(map[string]int)
	quadrantCount := make(map[int]int)
	typeCount := make(map[string]int)

	type deadlineItem struct {
		title    string
		deadline time.Time
		priority string
	}
	var upcoming []deadlineItem

	for _, task := range tasks {
		statusCount[task.Status]++
		if task.Quadrant > 0 {
			quadrantCount[task.Quadrant]++
		}
		typeCount[task.TaskType]++
		if task.Deadline != nil && task.Status != db.TaskStatusCompleted {
			upcoming = append(upcoming, deadlineItem{title: task.Title, deadline: *task.Deadline, priority: task.Priority})
		}
	}

	for i := 0; i < len(upcoming); i++ {
		for j := i + 1; j < len(upcoming); j++ {
			if upcoming[j].deadline.Before(upcoming[i].deadline) {
				upcoming[i], upcoming[j] = upcoming[j], upcoming[i]
			}
		}
	}
	if len(upcoming) > maxSummaryDeadlinePreviewed {
		upcoming = upcoming[:maxSummaryDeadlinePreviewed]
	}

	completed := statusCount[db.TaskStatusCompleted]
	rate := 0
	if total > 0 {
		rate = completed * 100 / total
	}

	var builder strings.Builder
	builder.WriteString("请根据以下任务数据生成一份简洁的任务总结报告，包括：\n")
	builder.WriteString("1. 总体完成情况\n2. 各象限任务分布\n3. 各类型任务分布\n4. 即将到期的任务提醒\n5. 改进建议\n\n")
	fmt.Fprintf(&builder, "任务数据：\n- 总任务数：%d\n- 已完成：%d\n- 进行中：%d\n- 待处理：%d\n- 完成率：%d%%\n\n",
		total, completed, statusCount[db.TaskStatusInProgress], statusCount[db.TaskStatusPending], rate)
	fmt.Fprintf(&builder, "象限分布：\n- 重要且紧急：%d\n- 重要不紧急：%d\n- 不重要但紧急：%d\n- 不重要不紧急：%d\n\n",
		quadrantCount[1], quadrantCount[2], quadrantCount[3], quadrantCount[4])
	fmt.Fprintf(&builder, "类型分布：\n- 急类型：%d\n- 慢类型：%d\n- 周期类型：%d\n\n",
		typeCount[db.TaskTypeUrgent], typeCount[db.TaskTypeSlow], typeCount[db.TaskTypePeriodic])

	builder.WriteString("即将到期的任务：\n")
	for _, item := range upcoming {
		fmt.Fprintf(&builder, "- %s (%s, %s优先级)\n", item.title, item.deadline.Format("2006-01-02"), item.priority)
	}

	builder.WriteString("\n请用中文生成一份友好、简洁的总结报告。")
	return builder.String()
}

// decodeTaskDrafts 从模型输出中提取 JSON 数组，容忍 markdown 代码块包裹
func decodeTaskDrafts(content string) ([]TaskDraft, error) {
	jsonText := strings.TrimSpace(content)
	if strings.HasPrefix(jsonText, "```") {
		jsonText = strings.TrimPrefix(jsonText, "```json")
		jsonText = strings.TrimPrefix(jsonText, "```")
		jsonText = strings.TrimSuffix(strings.TrimSpace(jsonText), "```")
		jsonText = strings.TrimSpace(jsonText)
	}

	var drafts []TaskDraft
	if err := json.Unmarshal([]byte(jsonText), &drafts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIParseFailed, err)
	}
	return drafts, nil
}
