package service

import (
	"strings"
	"testing"
	"time"

	"Multipost/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func warnLog(clock, msg string) types.SimpleLog {
	return types.SimpleLog{Date: "2025/1/1", Time: clock, Message: msg, Platform: "dewu", Level: types.LogLevelWarn}
}

func TestLogDeduplicator_UnmatchedPassesThrough(t *testing.T) {
	d := NewLogDeduplicator()
	log := types.SimpleLog{Time: "10:00:00", Message: "开始上传封面: c.jpg", Level: types.LogLevelInfo}

	result := d.Process(log)
	require.Len(t, result, 1)
	assert.Equal(t, log, result[0].SimpleLog)
	assert.False(t, result[0].IsMerged)
	assert.Zero(t, d.GetPendingCount())
}

func TestLogDeduplicator_MergesNotFoundAcrossRuns(t *testing.T) {
	d := NewLogDeduplicator()

	// 不同运行 ID 前缀归为同一组
	assert.Nil(t, d.Process(warnLog("10:00:00", "[0a1b2c3d] 未找到标题输入框")))
	assert.Nil(t, d.Process(warnLog("10:00:05", "[9f8e7d6c] 未找到标题输入框")))
	assert.Nil(t, d.Process(warnLog("10:00:09", "[11223344] 未找到标题输入框")))
	assert.Equal(t, 1, d.GetPendingCount())

	result := d.FlushAll()
	require.Len(t, result, 2)
	assert.Equal(t, "[0a1b2c3d] 未找到标题输入框", result[0].Message)
	assert.True(t, result[1].IsMerged)
	assert.Equal(t, 3, result[1].RepeatCount)
	assert.Equal(t, "10:00:00", result[1].StartTime)
	assert.Equal(t, "10:00:09", result[1].EndTime)
	assert.Contains(t, result[1].Message, "重复出现 3 次")
	assert.Equal(t, "dewu", result[1].Platform)
}

func TestLogDeduplicator_WindowExceededStartsNewGroup(t *testing.T) {
	d := NewLogDeduplicator()

	assert.Nil(t, d.Process(warnLog("10:00:00", "未找到发布按钮")))
	assert.Nil(t, d.Process(warnLog("10:00:10", "未找到发布按钮")))

	result := d.Process(warnLog("10:05:00", "未找到发布按钮"))
	require.Len(t, result, 2)
	assert.Equal(t, 2, result[1].RepeatCount)
	assert.Equal(t, 1, d.GetPendingCount())
}

func TestLogDeduplicator_SingleLineFlushesAsIs(t *testing.T) {
	d := NewLogDeduplicator()
	log := warnLog("10:00:00", "Cookie验证失败，缺少: [sessionid]")
	assert.Nil(t, d.Process(log))

	result := d.FlushAll()
	require.Len(t, result, 1)
	assert.Equal(t, log, result[0].SimpleLog)
	assert.False(t, result[0].IsMerged)
}

func TestLogDeduplicator_ShowLast(t *testing.T) {
	d := NewLogDeduplicator()
	d.Process(warnLog("10:00:00", "[-] 等待登录，缺少Cookie: [a]"))
	d.Process(warnLog("10:00:10", "[-] 等待登录，缺少Cookie: [a]"))
	d.Process(warnLog("10:00:20", "[-] 等待登录，缺少Cookie: [a]"))

	result := d.FlushAll()
	require.Len(t, result, 3)
	assert.Equal(t, "10:00:00", result[0].Time)
	assert.True(t, result[1].IsMerged)
	assert.Equal(t, "10:00:20", result[2].Time)
}

func TestLogDeduplicator_FlushIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	d := NewLogDeduplicator()
	d.now = func() time.Time { return now }

	d.Process(warnLog("10:00:00", "未找到上传区域"))
	assert.Empty(t, d.FlushIdle())

	now = now.Add(d.maxIdle)
	result := d.FlushIdle()
	require.Len(t, result, 1)
	assert.Zero(t, d.GetPendingCount())
}

func TestNormalizeMessage(t *testing.T) {
	assert.Equal(t, "上传等待超时（检查），继续执行", normalizeMessage("[abcdef01] 上传等待超时（15 次检查），继续执行"))
	assert.Equal(t, "检测Cookie失败", normalizeMessage("第 3 次检测Cookie失败"))
}

func TestLogService_MergesAndQueries(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newLogService(100, time.Hour)
	s.Add(types.SimpleLog{Time: "10:00:00", Message: "开始执行发布流程", Level: types.LogLevelInfo, Platform: "dewu"})
	for i := 0; i < 3; i++ {
		s.Add(warnLog("10:00:01", "未找到确定按钮，可能需要手动确认"))
	}
	s.Add(types.SimpleLog{Time: "10:00:05", Message: "发布流程完成", Level: types.LogLevelSuccess})
	assert.Equal(t, 2, s.Count())
	s.Close()
	s.Close()

	assert.Equal(t, 4, s.Count())
	warns := s.Query(types.LogQuery{Level: types.LogLevelWarn})
	require.Len(t, warns, 2)
	assert.True(t, strings.Contains(warns[0].Message, "重复出现 3 次"))
	assert.Equal(t, []string{"dewu"}, s.GetPlatforms())

	flow := s.Query(types.LogQuery{Keyword: "发布流程"})
	require.Len(t, flow, 2)
	assert.Equal(t, "发布流程完成", flow[0].Message)
}

func TestLogService_DisableDedupFlushesPending(t *testing.T) {
	s := newLogService(100, time.Hour)
	defer s.Close()

	s.Add(warnLog("10:00:00", "未找到发布按钮"))
	s.Add(warnLog("10:00:01", "未找到发布按钮"))
	assert.Zero(t, s.Count())

	s.SetDedupEnabled(false)
	assert.False(t, s.IsDedupEnabled())
	assert.Equal(t, 2, s.Count())

	s.Add(warnLog("10:00:02", "未找到发布按钮"))
	assert.Equal(t, 3, s.Count())
}

func TestLogService_LimitAndClear(t *testing.T) {
	s := newLogService(3, time.Hour)
	defer s.Close()

	for _, m := range []string{"a", "b", "c", "d"} {
		s.Add(types.SimpleLog{Message: m, Level: types.LogLevelInfo})
	}
	all := s.Query(types.LogQuery{})
	require.Len(t, all, 3)
	assert.Equal(t, "d", all[0].Message)
	assert.Equal(t, "b", all[2].Message)

	s.Clear()
	assert.Zero(t, s.Count())
}
