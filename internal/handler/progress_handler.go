package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/db"
	"github.com/tasklog/internal/service"
)

type progressPayload struct {
	TaskID        uint   `json:"task_id"`
	Date          string `json:"date"`
	ProgressValue int    `json:"progress_value"`
	Notes         string `json:"notes"`
}

// RecordProgress 上报慢任务某天的进度，同一天重复上报时覆盖
func (a *API) RecordProgress(c *gin.Context) {
	var payload progressPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	date, ok := parseOptionalDate(payload.Date)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}
	if date == nil {
		today := time.Now()
		date = &today
	}

	record, err := a.progress.Record(currentUserID(c), service.ProgressInput{
		TaskID:        payload.TaskID,
		Date:          *date,
		ProgressValue: payload.ProgressValue,
		Notes:         payload.Notes,
	})
	if err != nil {
		handleProgressError(c, err)
		return
	}
	c.JSON(http.StatusCreated, progressToPayload(*record))
}

// GetProgressHistory 返回慢任务的进度历史，按日期升序
func (a *API) GetProgressHistory(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	records, err := a.progress.History(currentUserID(c), taskID)
	if err != nil {
		handleProgressError(c, err)
		return
	}

	result := make([]gin.H, 0, len(records))
	for _, record := range records {
		result = append(result, progressToPayload(record))
	}
	c.JSON(http.StatusOK, result)
}

// GetGanttData 返回甘特图所需的任务区间与进度序列
func (a *API) GetGanttData(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	data, err := a.progress.Gantt(currentUserID(c), taskID)
	if err != nil {
		handleProgressError(c, err)
		return
	}

	progress := make([]gin.H, 0, len(data.Progress))
	for _, record := range data.Progress {
		progress = append(progress, progressToPayload(record))
	}

	c.JSON(http.StatusOK, gin.H{
		"task":     taskToPayload(data.Task),
		"subtasks": serializeSubtasks(data.Subtasks),
		"progress": progress,
	})
}

func progressToPayload(record db.TaskProgress) gin.H {
	return gin.H{
		"id":             record.ID,
		"task_id":        record.TaskID,
		"date":           record.Date.Format(dateFormat),
		"progress_value": record.ProgressValue,
		"notes":          record.Notes,
		"created_at":     record.CreatedAt.Format(time.RFC3339),
		"updated_at":     record.UpdatedAt.Format(time.RFC3339),
	}
}

func handleProgressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrTaskNotSlow):
		respondError(c, http.StatusBadRequest, "仅慢类型任务支持进度记录")
	case errors.Is(err, service.ErrInvalidProgress):
		respondError(c, http.StatusBadRequest, "进度值必须在0-100之间")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
