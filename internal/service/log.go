package service

import (
	"sort"
	"sync"
	"time"

	"Multipost/internal/types"
)

// LogService 内存日志服务，收集诊断日志并归并重复行
type LogService struct {
	logs         []types.SimpleLog
	mutex        sync.RWMutex
	limit        int
	deduplicator *LogDeduplicator
	enableDedup  bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLogService 创建日志服务并启动定时刷新，用完需 Close
func NewLogService() *LogService {
	return newLogService(500, time.Second)
}

func newLogService(limit int, flushInterval time.Duration) *LogService {
	s := &LogService{
		logs:         make([]types.SimpleLog, 0, limit),
		limit:        limit,
		deduplicator: NewLogDeduplicator(),
		enableDedup:  true,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go s.flushLoop(flushInterval)
	return s
}

func (s *LogService) flushLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.append(s.deduplicator.FlushIdle())
		}
	}
}

// Close 停止刷新协程并输出所有待归并的日志
func (s *LogService) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.append(s.deduplicator.FlushAll())
	})
}

func (s *LogService) append(merged []MergedLog) {
	if len(merged) == 0 {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, m := range merged {
		s.logs = append(s.logs, m.SimpleLog)
	}
	s.trimLocked()
}

func (s *LogService) trimLocked() {
	if len(s.logs) > s.limit {
		s.logs = s.logs[len(s.logs)-s.limit:]
	}
}

// Add 实现 utils.LogServiceInterface
func (s *LogService) Add(log types.SimpleLog) {
	s.mutex.RLock()
	dedup := s.enableDedup
	s.mutex.RUnlock()

	if dedup {
		s.append(s.deduplicator.Process(log))
		return
	}
	s.append([]MergedLog{{SimpleLog: log}})
}

// Query 倒序查询，最新的在前
func (s *LogService) Query(query types.LogQuery) []types.SimpleLog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	result := make([]types.SimpleLog, 0, limit)
	for i := len(s.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if query.Matches(s.logs[i]) {
			result = append(result, s.logs[i])
		}
	}
	return result
}

// Clear 清空日志与待归并的组
func (s *LogService) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logs = make([]types.SimpleLog, 0, s.limit)
	s.deduplicator.FlushAll()
}

func (s *LogService) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.logs)
}

// SetDedupEnabled 关闭归并时先输出所有待归并的日志
func (s *LogService) SetDedupEnabled(enabled bool) {
	s.mutex.Lock()
	was := s.enableDedup
	s.enableDedup = enabled
	s.mutex.Unlock()

	if was && !enabled {
		s.append(s.deduplicator.FlushAll())
	}
}

func (s *LogService) IsDedupEnabled() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.enableDedup
}

// GetPlatforms 有日志的平台，按名称排序
func (s *LogService) GetPlatforms() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seen := make(map[string]bool)
	for _, log := range s.logs {
		if log.Platform != "" {
			seen[log.Platform] = true
		}
	}
	platforms := make([]string, 0, len(seen))
	for p := range seen {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}
