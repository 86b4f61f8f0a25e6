// Package engine 定义动画渲染引擎的外部契约。引擎本身（文档解析、
// 时间轴插值、光栅化）不在本仓库内实现，由绑定包在进程启动时注册。
package engine

import (
	"image/draw"
	"sync"
)

// Animation 是一个已构建的动画实例。实例不可跨 goroutine 共享：
// 渲染池会为每个 worker 独立构建一个实例。
type Animation interface {
	// Size 返回画布尺寸（像素）。
	Size() (width, height float64)
	// Duration 返回动画总时长（秒）。
	Duration() float64
	// FrameRate 返回动画自身声明的帧率。
	FrameRate() float64
	// SeekToTime 把时间轴定位到指定秒数。
	SeekToTime(seconds float64)
	// Render 把当前帧绘制到目标表面。
	Render(dst draw.Image) error
}

// Builder 从处理后的文档文本构建动画实例。
type Builder interface {
	Build(document string) (Animation, error)
}

// BuilderFunc 让普通函数实现 Builder。
type BuilderFunc func(document string) (Animation, error)

// Build 实现 Builder。
func (f BuilderFunc) Build(document string) (Animation, error) { return f(document) }

var (
	registryMu sync.Mutex
	registered Builder
)

// Register 注册进程默认的引擎绑定，通常由绑定包在 init 中调用。
// 后注册者覆盖先注册者。
func Register(b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered = b
}

// Default 返回已注册的引擎绑定，未注册时返回 nil。
func Default() Builder {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registered
}
