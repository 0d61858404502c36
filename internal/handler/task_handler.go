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

type taskPayload struct {
	Title                string `json:"title"`
	Description          string `json:"description"`
	Priority             string `json:"priority"`
	Quadrant             int    `json:"quadrant"`
	TaskType             string `json:"task_type"`
	Deadline             string `json:"deadline"`
	CompletionPercentage *int   `json:"completion_percentage"`
}

type updateTaskPayload struct {
	Title                *string `json:"title"`
	Description          *string `json:"description"`
	Status               *string `json:"status"`
	Priority             *string `json:"priority"`
	Quadrant             *int    `json:"quadrant"`
	TaskType             *string `json:"task_type"`
	Deadline             *string `json:"deadline"`
	CompletionPercentage *int    `json:"completion_percentage"`
}

// GetTasks 返回任务列表，支持象限/类型/状态/日期/归档过滤
func (a *API) GetTasks(c *gin.Context) {
	filter := service.TaskFilter{
		TaskType: c.Query("type"),
		Status:   c.Query("status"),
		Archived: c.Query("archived"),
	}

	if raw := c.Query("quadrant"); raw != "" {
		quadrant, err := strconv.Atoi(raw)
		if err != nil || quadrant < 1 || quadrant > 4 {
			respondError(c, http.StatusBadRequest, "无效的象限参数")
			return
		}
		filter.Quadrant = quadrant
	}

	if raw := c.Query("date"); raw != "" {
		date, ok := parseOptionalDate(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, "无效的日期参数")
			return
		}
		filter.Date = date
	}

	tasks, err := a.tasks.List(currentUserID(c), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取任务列表失败")
		return
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskToPayload(task))
	}
	c.JSON(http.StatusOK, items)
}

// GetTask 返回单个任务详情
func (a *API) GetTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	task, err := a.tasks.Get(currentUserID(c), id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToPayload(*task))
}

// CreateTask 创建任务
func (a *API) CreateTask(c *gin.Context) {
	var payload taskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	deadline, ok := parseOptionalDate(payload.Deadline)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的截止日期")
		return
	}

	task, err := a.tasks.Create(currentUserID(c), service.TaskInput{
		Title:                payload.Title,
		Description:          payload.Description,
		Priority:             payload.Priority,
		Quadrant:             payload.Quadrant,
		TaskType:             payload.TaskType,
		Deadline:             deadline,
		CompletionPercentage: payload.CompletionPercentage,
	})
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, taskToPayload(*task))
}

// UpdateTask 部分更新任务
func (a *API) UpdateTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	var payload updateTaskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	input := service.UpdateTaskInput{
		Title:                payload.Title,
		Description:          payload.Description,
		Status:               payload.Status,
		Priority:             payload.Priority,
		Quadrant:             payload.Quadrant,
		TaskType:             payload.TaskType,
		CompletionPercentage: payload.CompletionPercentage,
	}

	if payload.Deadline != nil {
		if *payload.Deadline == "" {
			input.ClearDeadline = true
		} else {
			deadline, ok := parseOptionalDate(*payload.Deadline)
			if !ok {
				respondError(c, http.StatusBadRequest, "无效的截止日期")
				return
			}
			input.Deadline = deadline
		}
	}

	task, err := a.tasks.Update(currentUserID(c), id, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToPayload(*task))
}

// DeleteTask 删除任务及其关联数据
func (a *API) DeleteTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	if err := a.tasks.Delete(currentUserID(c), id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "任务已删除"})
}

// GetTaskStats 返回任务概览统计
func (a *API) GetTaskStats(c *gin.Context) {
	overview, err := a.tasks.Overview(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取统计信息失败")
		return
	}

	byQuadrant := gin.H{}
	for quadrant, count := range overview.ByQuadrant {
		byQuadrant[strconv.Itoa(quadrant)] = count
	}
	byType := gin.H{}
	for taskType, count := range overview.ByType {
		byType[taskType] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           overview.Total,
		"completed":       overview.Completed,
		"completion_rate": overview.CompletionRate,
		"by_quadrant":     byQuadrant,
		"by_type":         byType,
		"avg_progress":    overview.AvgProgress,
	})
}

// GetTodayTodos 返回今日待办视图
func (a *API) GetTodayTodos(c *gin.Context) {
	view, err := a.tasks.Today(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取今日TODO失败")
		return
	}

	urgent := make([]gin.H, 0, len(view.UrgentTasks))
	for _, task := range view.UrgentTasks {
		urgent = append(urgent, taskToPayload(task))
	}

	periodic := make([]gin.H, 0, len(view.PeriodicTasks))
	for _, item := range view.PeriodicTasks {
		entry := periodicTaskToPayload(item.PeriodicTask)
		if item.CurrentStats != nil {
			entry["current_stats"] = statToPayload(*item.CurrentStats)
		} else {
			entry["current_stats"] = nil
		}
		periodic = append(periodic, entry)
	}

	slow := make([]gin.H, 0, len(view.SlowTasks))
	for _, item := range view.SlowTasks {
		entry := taskToPayload(item.Task)
		entry["subtasks"] = serializeSubtasks(item.Subtasks)
		slow = append(slow, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"date":           view.Date.Format(dateFormat),
		"urgent_tasks":   urgent,
		"periodic_tasks": periodic,
		"slow_tasks":     slow,
	})
}

func taskToPayload(task db.Task) gin.H {
	item := gin.H{
		"id":                    task.ID,
		"title":                 task.Title,
		"description":           task.Description,
		"status":                task.Status,
		"priority":              task.Priority,
		"quadrant":              task.Quadrant,
		"task_type":             task.TaskType,
		"completion_percentage": task.CompletionPercentage,
		"created_at":            task.CreatedAt.Format(time.RFC3339),
		"updated_at":            task.UpdatedAt.Format(time.RFC3339),
	}
	if task.Deadline != nil {
		item["deadline"] = formatDate(task.Deadline)
	}
	return item
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrTaskTitleRequired):
		respondError(c, http.StatusBadRequest, "标题和任务类型为必填项")
	case errors.Is(err, service.ErrDeadlineRequired):
		respondError(c, http.StatusBadRequest, "急类型任务必须设置截止日期")
	case errors.Is(err, service.ErrInvalidPercentage):
		respondError(c, http.StatusBadRequest, "完成百分比必须在0-100之间且仅慢类型任务可设置")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
