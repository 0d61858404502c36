package handler

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tasklog/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type aiParsePayload struct {
	Input string `json:"input"`
}

// ParseInput 将自然语言描述解析为任务草稿列表
func (a *API) ParseInput(c *gin.Context) {
	var payload aiParsePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	drafts, err := a.ai.ParseTasks(c.Request.Context(), payload.Input)
	if err != nil {
		handleAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": drafts})
}

// SummarizeTasks 生成任务总结，返回原始 Markdown 与净化后的 HTML
func (a *API) SummarizeTasks(c *gin.Context) {
	summary, err := a.ai.Summarize(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleAIError(c, err)
		return
	}

	htmlContent, err := renderMarkdown(summary)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "渲染总结失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"html":    htmlContent,
	})
}

func renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

func handleAIError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAIInputEmpty):
		respondError(c, http.StatusBadRequest, "输入内容不能为空")
	case errors.Is(err, service.ErrAIAPIKeyMissing):
		respondError(c, http.StatusServiceUnavailable, "AI服务未配置")
	case errors.Is(err, service.ErrAIParseFailed):
		respondError(c, http.StatusBadGateway, "AI返回内容无法解析")
	default:
		respondError(c, http.StatusBadGateway, "AI服务调用失败")
	}
}
