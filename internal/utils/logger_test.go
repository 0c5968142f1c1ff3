package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"Multipost/internal/config"
	"Multipost/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type captureService struct {
	mu   sync.Mutex
	logs []types.SimpleLog
}

func (c *captureService) Add(log types.SimpleLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, log)
}

func (c *captureService) all() []types.SimpleLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.SimpleLog(nil), c.logs...)
}

func TestLogger_ForwardsToService(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(config.LogConfig{Level: "info"}, "", false, zapcore.AddSync(&buf))
	svc := &captureService{}
	l.SetLogService(svc)

	l.InfoWithPlatform("dewu", "开始上传")
	l.SuccessWithPlatform("dewu", "发布完成")
	l.Warn("未找到发布按钮")

	logs := svc.all()
	require.Len(t, logs, 3)
	assert.Equal(t, "dewu", logs[0].Platform)
	assert.Equal(t, types.LogLevelInfo, logs[0].Level)
	assert.Equal(t, types.LogLevelSuccess, logs[1].Level)
	assert.Equal(t, "", logs[2].Platform)
	assert.Equal(t, types.LogLevelWarn, logs[2].Level)

	out := buf.String()
	assert.Contains(t, out, "开始上传")
	assert.Contains(t, out, `"platform": "dewu"`)
	assert.Contains(t, out, "WARN")
}

func TestLogger_DebugOnlyInDebugMode(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewLogger(config.LogConfig{Level: "info"}, "", false, zapcore.AddSync(&buf))
	svc := &captureService{}
	quiet.SetLogService(svc)

	quiet.Debug("隐藏的调试信息")
	assert.Empty(t, svc.all())
	assert.NotContains(t, buf.String(), "隐藏的调试信息")

	buf.Reset()
	verbose := NewLogger(config.LogConfig{Level: "info"}, "", true, zapcore.AddSync(&buf))
	verbose.DebugWithPlatform("dewu", "可见的调试信息")
	assert.Contains(t, buf.String(), "可见的调试信息")
}

func TestLogger_WritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := NewLogger(config.LogConfig{Level: "info", MaxSize: 1}, dir, false, zapcore.AddSync(&buf))

	l.ErrorWithPlatform("dewu", "视频下载失败")
	require.NoError(t, l.zl.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "multipost.log"))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"msg":"视频下载失败"`)
	assert.Contains(t, line, `"level":"error"`)
}

func TestGetLogger_Fallback(t *testing.T) {
	prev := SetDefaultLogger(nil)
	t.Cleanup(func() { SetDefaultLogger(prev) })

	l := GetLogger()
	require.NotNil(t, l)
	assert.Same(t, l, GetLogger())
}
