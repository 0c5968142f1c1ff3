package service

import (
	"regexp"
	"strconv"
	"sync"
	"time"

	"Multipost/internal/types"
)

// MergeRule 日志归并规则
type MergeRule struct {
	Pattern    *regexp.Regexp
	TimeWindow time.Duration // 相邻两条的最大间隔
	MaxCount   int
	ShowFirst  bool // 先输出第一条原文，再输出归并提示
	ShowLast   bool
}

// MergedLog 归并后的日志
type MergedLog struct {
	types.SimpleLog
	IsMerged    bool   `json:"isMerged"`
	RepeatCount int    `json:"repeatCount"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

type logGroup struct {
	rule     *MergeRule
	firstLog types.SimpleLog
	lastLog  types.SimpleLog
	count    int
	lastTime time.Time // 日志自身时间
	seenAt   time.Time // 收到最后一条的时间
}

// LogDeduplicator 日志去重归并器
type LogDeduplicator struct {
	rules  []MergeRule
	groups map[string]*logGroup
	mutex  sync.Mutex
	// maxIdle 组内超过这么久没有新日志就在 FlushIdle 时输出
	maxIdle time.Duration
	now     func() time.Time
}

// NewLogDeduplicator 创建日志归并器
func NewLogDeduplicator() *LogDeduplicator {
	return &LogDeduplicator{
		rules:   defaultRules(),
		groups:  make(map[string]*logGroup),
		maxIdle: 3 * time.Second,
		now:     time.Now,
	}
}

func defaultRules() []MergeRule {
	return []MergeRule{
		// 元素定位失败
		{
			Pattern:    regexp.MustCompile(`未找到|没有找到`),
			TimeWindow: 30 * time.Second,
			MaxCount:   50,
			ShowFirst:  true,
		},
		// 上传与登录等待中的轮询
		{
			Pattern:    regexp.MustCompile(`等待登录|缺少Cookie|上传等待|等待上传`),
			TimeWindow: 30 * time.Second,
			MaxCount:   100,
			ShowFirst:  true,
			ShowLast:   true,
		},
		// Cookie 检测失败
		{
			Pattern:    regexp.MustCompile(`(?i)cookie.*失败|target closed`),
			TimeWindow: 30 * time.Second,
			MaxCount:   100,
			ShowFirst:  true,
		},
		{
			Pattern:    regexp.MustCompile(`(?i)重试|retry`),
			TimeWindow: 15 * time.Second,
			MaxCount:   30,
		},
	}
}

var (
	runIDPrefix = regexp.MustCompile(`^\[[0-9a-f]{8}\] `)
	volatile    = regexp.MustCompile(`\d{2}:\d{2}:\d{2}|第\s*\d+\s*次|\d+\s*次|\d+`)
)

// normalizeMessage 去掉运行 ID、时间和计数，用于比较
func normalizeMessage(message string) string {
	return volatile.ReplaceAllString(runIDPrefix.ReplaceAllString(message, ""), "")
}

func (d *LogDeduplicator) matchRule(message string) *MergeRule {
	for i := range d.rules {
		if d.rules[i].Pattern.MatchString(message) {
			return &d.rules[i]
		}
	}
	return nil
}

func generateKey(log types.SimpleLog) string {
	return string(log.Level) + "|" + log.Platform + "|" + normalizeMessage(log.Message)
}

// Process 处理单条日志，返回需要立即输出的日志
func (d *LogDeduplicator) Process(log types.SimpleLog) []MergedLog {
	rule := d.matchRule(log.Message)
	if rule == nil {
		return []MergedLog{{SimpleLog: log}}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	logTime, err := time.Parse("15:04:05", log.Time)
	if err != nil {
		logTime = d.now()
	}
	key := generateKey(log)

	if group, ok := d.groups[key]; ok {
		if logTime.Sub(group.lastTime) <= rule.TimeWindow && group.count < rule.MaxCount {
			group.count++
			group.lastTime = logTime
			group.lastLog = log
			group.seenAt = d.now()
			return nil
		}
		result := d.flushGroup(key)
		d.groups[key] = d.newGroup(rule, log, logTime)
		return result
	}

	d.groups[key] = d.newGroup(rule, log, logTime)
	return nil
}

func (d *LogDeduplicator) newGroup(rule *MergeRule, log types.SimpleLog, logTime time.Time) *logGroup {
	return &logGroup{
		rule:     rule,
		firstLog: log,
		lastLog:  log,
		count:    1,
		lastTime: logTime,
		seenAt:   d.now(),
	}
}

// flushGroup 调用方需持有锁
func (d *LogDeduplicator) flushGroup(key string) []MergedLog {
	group, ok := d.groups[key]
	if !ok {
		return nil
	}
	delete(d.groups, key)

	first, last := group.firstLog, group.lastLog
	if group.count == 1 {
		return []MergedLog{{SimpleLog: first, RepeatCount: 1}}
	}

	var results []MergedLog
	summary := MergedLog{
		SimpleLog:   types.SimpleLog{Date: first.Date, Time: first.Time, Platform: first.Platform, Level: first.Level},
		IsMerged:    true,
		RepeatCount: group.count,
		StartTime:   first.Time,
		EndTime:     last.Time,
	}
	if group.rule.ShowFirst {
		results = append(results, MergedLog{SimpleLog: first, RepeatCount: 1})
		summary.Message = "  ↳ 该消息重复出现 " + strconv.Itoa(group.count) + " 次 (" + first.Time + " ~ " + last.Time + ")"
	} else {
		summary.Message = first.Message + " (×" + strconv.Itoa(group.count) + ")"
	}
	results = append(results, summary)
	if group.rule.ShowLast {
		results = append(results, MergedLog{SimpleLog: last, RepeatCount: 1})
	}
	return results
}

// FlushAll 输出所有待归并的日志
func (d *LogDeduplicator) FlushAll() []MergedLog {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var results []MergedLog
	for key := range d.groups {
		results = append(results, d.flushGroup(key)...)
	}
	return results
}

// FlushIdle 只输出超过 maxIdle 没有新日志的组
func (d *LogDeduplicator) FlushIdle() []MergedLog {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	now := d.now()
	var results []MergedLog
	for key, g := range d.groups {
		if now.Sub(g.seenAt) >= d.maxIdle {
			results = append(results, d.flushGroup(key)...)
		}
	}
	return results
}

// GetPendingCount 待归并的组数
func (d *LogDeduplicator) GetPendingCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.groups)
}
