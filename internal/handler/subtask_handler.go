package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/db"
	"github.com/tasklog/internal/service"
)

type subtaskPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	OrderIndex  *int     `json:"order_index"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
}

// GetSubtasks 返回任务下的子任务列表，按排序值升序
func (a *API) GetSubtasks(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	subtasks, err := a.subtasks.List(currentUserID(c), taskID)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializeSubtasks(subtasks))
}

// CreateSubtask 为任务创建子任务
func (a *API) CreateSubtask(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	input, ok := bindSubtaskInput(c)
	if !ok {
		return
	}

	subtask, err := a.subtasks.Create(currentUserID(c), taskID, *input)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subtaskToPayload(*subtask))
}

// UpdateSubtask 更新子任务
func (a *API) UpdateSubtask(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}
	subtaskID, err := parseUintParam(c, "subtaskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的子任务ID")
		return
	}

	input, ok := bindSubtaskInput(c)
	if !ok {
		return
	}

	subtask, err := a.subtasks.Update(currentUserID(c), taskID, subtaskID, *input)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, subtaskToPayload(*subtask))
}

// DeleteSubtask 删除子任务
func (a *API) DeleteSubtask(c *gin.Context) {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}
	subtaskID, err := parseUintParam(c, "subtaskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的子任务ID")
		return
	}

	if err := a.subtasks.Delete(currentUserID(c), taskID, subtaskID); err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "子任务已删除"})
}

func bindSubtaskInput(c *gin.Context) (*service.SubtaskInput, bool) {
	var payload subtaskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return nil, false
	}

	startDate, ok := parseOptionalDate(payload.StartDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return nil, false
	}
	endDate, ok := parseOptionalDate(payload.EndDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return nil, false
	}

	return &service.SubtaskInput{
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
		Priority:    payload.Priority,
		Tags:        payload.Tags,
		OrderIndex:  payload.OrderIndex,
		StartDate:   startDate,
		EndDate:     endDate,
	}, true
}

func serializeSubtasks(subtasks []db.Subtask) []gin.H {
	result := make([]gin.H, 0, len(subtasks))
	for _, subtask := range subtasks {
		result = append(result, subtaskToPayload(subtask))
	}
	return result
}

func subtaskToPayload(subtask db.Subtask) gin.H {
	item := gin.H{
		"id":          subtask.ID,
		"task_id":     subtask.TaskID,
		"title":       subtask.Title,
		"description": subtask.Description,
		"status":      subtask.Status,
		"priority":    subtask.Priority,
		"tags":        service.SplitTags(subtask.Tags),
		"order_index": subtask.OrderIndex,
		"created_at":  subtask.CreatedAt.Format(time.RFC3339),
		"updated_at":  subtask.UpdatedAt.Format(time.RFC3339),
	}
	if subtask.StartDate != nil {
		item["start_date"] = formatDate(subtask.StartDate)
	}
	if subtask.EndDate != nil {
		item["end_date"] = formatDate(subtask.EndDate)
	}
	return item
}

func handleSubtaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrSubtaskNotFound):
		respondError(c, http.StatusNotFound, "子任务不存在")
	case errors.Is(err, service.ErrTaskTitleRequired):
		respondError(c, http.StatusBadRequest, "标题为必填项")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
