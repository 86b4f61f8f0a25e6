package text

import (
	"log"
	"math"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/lotio/lotio/fonts"
)

// Mode 选择文本宽度的度量精度。三档精度递增、速度递减。
type Mode int

const (
	// Fast 用字形 advance 求和，最快，可能高估斜体等字形的实际覆盖。
	Fast Mode = iota
	// Accurate 用排版后的包围盒，对大多数字体最接近渲染结果。
	Accurate
	// PixelPerfect 离屏光栅化后逐像素扫描，最慢但不受度量表误差影响。
	PixelPerfect
)

func (m Mode) String() string {
	switch m {
	case Fast:
		return "fast"
	case Accurate:
		return "accurate"
	case PixelPerfect:
		return "pixel-perfect"
	}
	return "unknown"
}

// ParseMode 解析命令行里的度量模式名，大小写不敏感。
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "fast":
		return Fast, true
	case "accurate":
		return Accurate, true
	case "pixel-perfect", "pixelperfect":
		return PixelPerfect, true
	}
	return Fast, false
}

// FontRef 标识一次度量所用的字体。Name 是文档里的字体全名，
// Family/Style 来自文档的字体声明，可能为空。
type FontRef struct {
	Name   string
	Family string
	Style  string
}

// WidthMeasurer 暴露宽度度量，供编排层与测试替换实现。
type WidthMeasurer interface {
	// Width 返回文本在指定字号下的渲染宽度（px）。多行文本取最宽一行。
	// 结果保证非负且有限；度量失败按 0 处理。
	Width(font FontRef, size float64, text string) float64
}

// canvas 内部以 mm 为长度单位，字号以 pt 计。文档坐标按 px==pt 处理，
// 度量结果除以该系数换回 pt。
const mmPerPt = 25.4 / 72

// Measurer 基于 canvas 字体栈实现三档精度的宽度度量。
type Measurer struct {
	Fonts *fonts.Library
	Mode  Mode
	Log   *log.Logger // 调试输出，nil 时静默
	Debug bool
}

// Width 实现 WidthMeasurer。
func (m *Measurer) Width(font FontRef, size float64, text string) float64 {
	if text == "" || size <= 0 {
		return 0
	}
	face, found, err := m.Fonts.Face(font.Family, font.Style, font.Name, size)
	if err != nil {
		m.debugf("度量失败，字体 %s: %v", font.Name, err)
		return 0
	}
	if !found {
		m.debugf("找不到字体 %s（family=%s style=%s），用默认字体度量", font.Name, font.Family, font.Style)
	}
	max := 0.0
	for _, line := range splitLines(text) {
		w := m.lineWidth(face, line)
		if w > max {
			max = w
		}
	}
	if math.IsNaN(max) || math.IsInf(max, 0) || max < 0 {
		return 0
	}
	return max
}

// splitLines 按 \r / \n / \r\n 切分，度量逐行进行。
func splitLines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
}

func (m *Measurer) lineWidth(face *canvas.FontFace, line string) float64 {
	switch m.Mode {
	case Fast:
		return face.TextWidth(line) / mmPerPt
	case Accurate:
		return canvas.NewTextLine(face, line, canvas.Left).Bounds().W() / mmPerPt
	default:
		return m.renderedWidth(face, line)
	}
}

// renderedWidth 把单行文本离屏光栅化，从行起点向右找最后一个非透明
// 像素列。抗锯齿可能让包围盒略小于可见像素，因此取两者中的较大值，
// 并给扫描结果加 1px 余量。
func (m *Measurer) renderedWidth(face *canvas.FontFace, line string) float64 {
	textLine := canvas.NewTextLine(face, line, canvas.Left)
	bounds := textLine.Bounds()
	boxWidth := bounds.W() / mmPerPt
	if boxWidth <= 0 {
		return 0
	}

	const padPx = 20.0
	widthPx := math.Ceil(boxWidth) + padPx*2
	heightPx := math.Ceil(bounds.H()/mmPerPt) + padPx*2
	c := canvas.New(widthPx*mmPerPt, heightPx*mmPerPt)
	ctx := canvas.NewContext(c)
	// 基线锚点取在让包围盒左下角落在 (padPx, padPx) 的位置。
	ctx.DrawText(padPx*mmPerPt-bounds.X0, padPx*mmPerPt-bounds.Y0, textLine)

	img := rasterizer.Draw(c, canvas.DPMM(1/mmPerPt), canvas.DefaultColorSpace)
	rect := img.Bounds()
	startX := rect.Min.X + int(padPx)
	rightmost := -1
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Max.X - 1; x >= startX; x-- {
			if x <= rightmost {
				break
			}
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				rightmost = x
				break
			}
		}
	}
	if rightmost < startX {
		return boxWidth
	}
	rendered := float64(rightmost-startX+1) + 1
	return math.Max(rendered, boxWidth)
}

func (m *Measurer) debugf(format string, args ...any) {
	if m.Debug && m.Log != nil {
		m.Log.Printf("[metrics] "+format, args...)
	}
}
