package engine

import "sync/atomic"

// RunGuard 防止同一引擎上的发布流程重入
type RunGuard struct {
	running atomic.Bool
}

// TryAcquire 没有流程在运行时占用并返回 true，否则不做任何修改返回 false
func (g *RunGuard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

// Release 无条件释放
func (g *RunGuard) Release() {
	g.running.Store(false)
}

// Running 当前是否有流程在运行
func (g *RunGuard) Running() bool {
	return g.running.Load()
}
