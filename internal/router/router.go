package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tasklog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(a *handler.API) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 需要认证的API路由
	api := r.Group("/api")
	api.Use(a.AuthRequired())
	{
		api.GET("/tasks", a.GetTasks)
		api.GET("/tasks/today", a.GetTodayTodos)
		api.GET("/tasks/stats", a.GetTaskStats)
		api.GET("/tasks/:id", a.GetTask)
		api.POST("/tasks", a.CreateTask)
		api.PUT("/tasks/:id", a.UpdateTask)
		api.DELETE("/tasks/:id", a.DeleteTask)

		api.GET("/subtasks/:taskId", a.GetSubtasks)
		api.POST("/subtasks/:taskId", a.CreateSubtask)
		api.PUT("/subtasks/:taskId/:subtaskId", a.UpdateSubtask)
		api.DELETE("/subtasks/:taskId/:subtaskId", a.DeleteSubtask)

		api.POST("/progress", a.RecordProgress)
		api.GET("/progress/gantt/:taskId", a.GetGanttData)
		api.GET("/progress/:taskId", a.GetProgressHistory)

		api.POST("/periodic", a.CreatePeriodicTask)
		api.POST("/periodic/complete", a.CompletePeriodicTask)
		api.GET("/periodic/upcoming", a.GetUpcoming)
		api.GET("/periodic/task/:taskId", a.GetPeriodicTaskByTaskID)
		api.PUT("/periodic/task/:taskId", a.UpdatePeriodicTask)
		api.GET("/periodic/:id/stats", a.GetPeriodicStats)
		api.GET("/periodic/:id/completions", a.GetCompletions)
		api.PUT("/periodic/completions/:completionId", a.UpdateCompletion)
		api.DELETE("/periodic/completions/:completionId", a.DeleteCompletion)

		api.POST("/ai/parse", a.ParseInput)
		api.POST("/ai/summarize", a.SummarizeTasks)
	}

	return r
}
