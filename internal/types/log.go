package types

import "strings"

// LogLevel 日志级别
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
)

// ParseLogLevel 解析级别字符串，无法识别时返回 info
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelSuccess:
		return LogLevelSuccess
	case LogLevelWarn, "warning":
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// SimpleLog 诊断日志条目
type SimpleLog struct {
	Date     string   `json:"date"` // 2006/1/2
	Time     string   `json:"time"` // 15:04:05
	Message  string   `json:"message"`
	Platform string   `json:"platform"` // dewu 等，空表示全局
	Level    LogLevel `json:"level"`
}

// LogQuery 日志查询参数，零值字段不参与筛选
type LogQuery struct {
	Keyword  string   `json:"keyword"`
	Limit    int      `json:"limit"` // 默认100
	Platform string   `json:"platform"`
	Level    LogLevel `json:"level"`
}

// Matches 判断日志是否满足查询条件（不含条数限制）
func (q LogQuery) Matches(log SimpleLog) bool {
	if q.Keyword != "" && !strings.Contains(log.Message, q.Keyword) {
		return false
	}
	if q.Platform != "" && log.Platform != q.Platform {
		return false
	}
	if q.Level != "" && log.Level != q.Level {
		return false
	}
	return true
}
