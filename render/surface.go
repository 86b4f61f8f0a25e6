// Package render 驱动多 worker 帧渲染：按帧序号轮转分片，每个 worker
// 持有私有动画实例与渲染表面，输出按严格递增帧序写出。
package render

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// newTarget 创建 worker 专用的渲染表面，预乘 RGBA。
func newTarget(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// clear 把表面重置为全透明，worker 复用表面渲染下一帧前调用。
func clear(img *image.RGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

// toNRGBA 把渲染结果归一化为非预乘 RGBA 再编码，scratch 跨帧复用。
func toNRGBA(src *image.RGBA, scratch *image.NRGBA) *image.NRGBA {
	if scratch == nil || scratch.Bounds() != src.Bounds() {
		scratch = image.NewNRGBA(src.Bounds())
	}
	xdraw.Draw(scratch, scratch.Bounds(), src, src.Bounds().Min, xdraw.Src)
	return scratch
}
