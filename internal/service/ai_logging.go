package service

import (
	"log"
	"strings"
)

// 解析提示词与模型回复都可能很长，日志里只保留开头一段
const aiLogPreviewRunes = 1024

// logAIExchange 记录一次模型交互，kind 为 PARSE（自然语言解析）或
// SUMMARY（任务总结），phase 区分 prompt 与 response，
// 方便排查解析失败或总结内容异常。
func logAIExchange(kind, phase, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Printf("[AI %s] %s: <empty>", kind, phase)
		return
	}

	runes := []rune(trimmed)
	if len(runes) > aiLogPreviewRunes {
		log.Printf("[AI %s] %s (runes=%d): %s…(truncated)", kind, phase, len(runes), string(runes[:aiLogPreviewRunes]))
		return
	}
	log.Printf("[AI %s] %s (runes=%d): %s", kind, phase, len(runes), trimmed)
}
