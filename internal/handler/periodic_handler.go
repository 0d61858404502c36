package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/db"
	"github.com/tasklog/internal/service"
)

type periodicTaskPayload struct {
	TaskID         uint     `json:"task_id"`
	PeriodType     string   `json:"period_type"`
	PeriodValue    int      `json:"period_value"`
	CompletionType string   `json:"completion_type"`
	TargetValue    *float64 `json:"target_value"`
	Unit           string   `json:"unit"`
}

type updatePeriodicTaskPayload struct {
	PeriodType     *string  `json:"period_type"`
	PeriodValue    *int     `json:"period_value"`
	CompletionType *string  `json:"completion_type"`
	TargetValue    *float64 `json:"target_value"`
	Unit           *string  `json:"unit"`
}

type checkInPayload struct {
	PeriodicTaskID  uint     `json:"periodic_task_id"`
	CompletionValue *float64 `json:"completion_value"`
	CompletionDate  string   `json:"completion_date"`
	Notes           string   `json:"notes"`
}

type updateCompletionPayload struct {
	CompletionValue *float64 `json:"completion_value"`
	CompletionDate  *string  `json:"completion_date"`
	Notes           *string  `json:"notes"`
}

// CreatePeriodicTask 为 periodic 类型任务创建周期配置
func (a *API) CreatePeriodicTask(c *gin.Context) {
	var payload periodicTaskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	periodic, err := a.periodic.Create(currentUserID(c), service.PeriodicTaskInput{
		TaskID:         payload.TaskID,
		PeriodType:     payload.PeriodType,
		PeriodValue:    payload.PeriodValue,
		CompletionType: payload.CompletionType,
		TargetValue:    payload.TargetValue,
		Unit:           payload.Unit,
	})
	if err != nil {
		handlePeriodicError(c, err)
		return
	}
	c.JSON(http.StatusCreated, periodicTaskToPayload(*periodic))
}

// GetPeriodicTaskByTaskID 根据任务ID返回周期配置
func (a *API) GetPeriodicTaskByTaskID(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	periodic, err := a.periodic.GetByTaskID(currentUserID(c), taskID)
	if err != nil {
		handlePeriodicError(c, err)
		return
	}
	c.JSON(http.StatusOK, periodicTaskToPayload(*periodic))
}

// UpdatePeriodicTask 部分更新周期配置，周期变化时重算下次到期日
func (a *API) UpdatePeriodicTask(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	var payload updatePeriodicTaskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	periodic, err := a.periodic.Update(currentUserID(c), taskID, service.UpdatePeriodicTaskInput{
		PeriodType:     payload.PeriodType,
		PeriodValue:    payload.PeriodValue,
		CompletionType: payload.CompletionType,
		TargetValue:    payload.TargetValue,
		Unit:           payload.Unit,
	})
	if err != nil {
		handlePeriodicError(c, err)
		return
	}
	c.JSON(http.StatusOK, periodicTaskToPayload(*periodic))
}

// GetUpcoming 返回未来 N 天内到期的周期任务，days 默认 7
func (a *API) GetUpcoming(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的days参数")
			return
		}
		days = parsed
	}

	items, err := a.periodic.Upcoming(currentUserID(c), days)
	if err != nil {
		handlePeriodicError(c, err)
		return
	}

	result := make([]gin.H, 0, len(items))
	for _, item := range items {
		entry := periodicTaskToPayload(item)
		entry["task"] = taskToPayload(item.Task)
		result = append(result, entry)
	}
	c.JSON(http.StatusOK, result)
}

// CompletePeriodicTask 打卡：创建完成记录并刷新统计
func (a *API) CompletePeriodicTask(c *gin.Context) {
	var payload checkInPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	completionDate, ok := parseOptionalDate(payload.CompletionDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的完成日期")
		return
	}

	completion, nextDue, err := a.completions.CheckIn(currentUserID(c), service.CheckInInput{
		PeriodicTaskID:  payload.PeriodicTaskID,
		CompletionValue: payload.CompletionValue,
		CompletionDate:  completionDate,
		Notes:           payload.Notes,
	})
	if err != nil {
		handlePeriodicError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"completion":    completionToPayload(*completion),
		"next_due_date": nextDue.Format(dateFormat),
	})
}

// GetCompletions 返回某个周期任务的全部打卡记录
func (a *API) GetCompletions(c *gin.Context) {
	periodicTaskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的周期任务ID")
		return
	}

	records, err := a.completions.List(currentUserID(c), periodicTaskID)
	if err != nil {
		handlePeriodicError(c, err)
		return
	}

	result := make([]gin.H, 0, len(records))
	for _, record := range records {
		result = append(result, completionToPayload(record))
	}
	c.JSON(http.StatusOK, result)
}

// UpdateCompletion 修改打卡记录，日期变化时新旧窗口统计均会刷新
func (a *API) UpdateCompletion(c *gin.Context) {
	completionID, err := parseUintParam(c, "completionId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的记录ID")
		return
	}

	var payload updateCompletionPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	input := service.UpdateCompletionInput{
		CompletionValue: payload.CompletionValue,
		Notes:           payload.Notes,
	}
	if payload.CompletionDate != nil {
		date, ok := parseOptionalDate(*payload.CompletionDate)
		if !ok || date == nil {
			respondError(c, http.StatusBadRequest, "无效的完成日期")
			return
		}
		input.CompletionDate = date
	}

	record, err := a.completions.Update(currentUserID(c), completionID, input)
	if err != nil {
		handlePeriodicError(c, err)
		return
	}
	c.JSON(http.StatusOK, completionToPayload(*record))
}

// DeleteCompletion 删除打卡记录并刷新所在窗口的统计
func (a *API) DeleteCompletion(c *gin.Context) {
	completionID, err := parseUintParam(c, "completionId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的记录ID")
		return
	}

	if err := a.completions.Delete(currentUserID(c), completionID); err != nil {
		handlePeriodicError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "打卡记录已删除"})
}

// GetPeriodicStats 返回周期任务的统计序列，可选起止日期过滤
func (a *API) GetPeriodicStats(c *gin.Context) {
	periodicTaskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的周期任务ID")
		return
	}

	start, ok := parseOptionalDate(c.Query("period_start"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return
	}
	end, ok := parseOptionalDate(c.Query("period_end"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	}

	stats, err := a.completions.Stats(currentUserID(c), periodicTaskID, start, end)
	if err != nil {
		handlePeriodicError(c, err)
		return
	}

	result := make([]gin.H, 0, len(stats))
	for _, stat := range stats {
		result = append(result, statToPayload(stat))
	}
	c.JSON(http.StatusOK, result)
}

func periodicTaskToPayload(periodic db.PeriodicTask) gin.H {
	item := gin.H{
		"id":              periodic.ID,
		"task_id":         periodic.TaskID,
		"period_type":     periodic.PeriodType,
		"period_value":    periodic.PeriodValue,
		"completion_type": periodic.CompletionType,
		"target_value":    periodic.TargetValue,
		"unit":            periodic.Unit,
		"created_at":      periodic.CreatedAt.Format(time.RFC3339),
		"updated_at":      periodic.UpdatedAt.Format(time.RFC3339),
	}
	if periodic.LastCompletedAt != nil {
		item["last_completed_at"] = periodic.LastCompletedAt.Format(time.RFC3339)
	}
	if periodic.NextDueDate != nil {
		item["next_due_date"] = formatDate(periodic.NextDueDate)
	}
	if periodic.Task.ID != 0 {
		item["task"] = taskToPayload(periodic.Task)
	}
	return item
}

func completionToPayload(record db.TaskCompletion) gin.H {
	item := gin.H{
		"id":               record.ID,
		"periodic_task_id": record.PeriodicTaskID,
		"completion_value": record.CompletionValue,
		"notes":            record.Notes,
		"created_at":       record.CreatedAt.Format(time.RFC3339),
		"updated_at":       record.UpdatedAt.Format(time.RFC3339),
	}
	if record.CompletionDate != nil {
		item["completion_date"] = formatDate(record.CompletionDate)
	}
	return item
}

func statToPayload(stat db.PeriodicTaskStat) gin.H {
	return gin.H{
		"id":               stat.ID,
		"periodic_task_id": stat.PeriodicTaskID,
		"period_start":     stat.PeriodStart.Format(dateFormat),
		"period_end":       stat.PeriodEnd.Format(dateFormat),
		"expected_count":   stat.ExpectedCount,
		"actual_count":     stat.ActualCount,
		"expected_value":   stat.ExpectedValue,
		"actual_value":     stat.ActualValue,
	}
}

func handlePeriodicError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrPeriodicTaskNotFound):
		respondError(c, http.StatusNotFound, "周期任务不存在")
	case errors.Is(err, service.ErrCompletionNotFound):
		respondError(c, http.StatusNotFound, "打卡记录不存在")
	case errors.Is(err, service.ErrPeriodicTaskExists):
		respondError(c, http.StatusConflict, "该任务已存在周期配置")
	case errors.Is(err, service.ErrTaskNotPeriodic):
		respondError(c, http.StatusBadRequest, "任务类型必须为periodic")
	case errors.Is(err, service.ErrInvalidPeriodType):
		respondError(c, http.StatusBadRequest, "无效的周期类型")
	case errors.Is(err, service.ErrInvalidDays):
		respondError(c, http.StatusBadRequest, "days参数必须在0-365之间")
	case errors.Is(err, service.ErrCompletionValueRequired):
		respondError(c, http.StatusBadRequest, "数值型任务打卡必须提供完成值")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
