package text

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lotio/lotio/document"
)

// DefaultPadding 是目标宽度的默认留白系数：文本最多占目标宽度的 97%。
const DefaultPadding = 0.97

// 新旧宽度差小于该值时视为未变宽，不做关键帧补偿。
const widthEpsilon = 0.1

// Options 配置改写流程。
type Options struct {
	// Padding 为 (0,1] 的留白系数，越小留白越多；非法值回退默认。
	Padding float64
	Debug   bool
	Log     *log.Logger
}

// Processor 把覆盖配置应用到动画文档：先处理图片资源路径，再对文本层
// 做两遍处理——第一遍只读度量生成修改计划，第二遍统一写回。
type Processor struct {
	measure WidthMeasurer
	opts    Options
}

// NewProcessor 创建改写器。measure 不能为 nil。
func NewProcessor(measure WidthMeasurer, opts Options) *Processor {
	if opts.Padding <= 0 || opts.Padding > 1 {
		opts.Padding = DefaultPadding
	}
	if opts.Log == nil {
		opts.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Processor{measure: measure, opts: opts}
}

// Plan 是第一遍度量得到的单层修改计划。
type Plan struct {
	Layer         string
	Text          string
	Size          float64
	OriginalWidth float64
	NewWidth      float64
}

// Process 应用覆盖配置。对同一文档重复调用且覆盖内容相同时结果不变。
// 单个图层的问题（找不到、缺字体信息）只记录警告；返回错误仅在写回
// 文档失败时出现。
func (p *Processor) Process(doc *document.Document, ov *Overrides) error {
	if ov == nil {
		return nil
	}
	p.applyImageOverrides(doc, ov)
	if len(ov.Text) == 0 {
		return nil
	}
	plans := p.planText(doc, ov)
	for i := len(plans) - 1; i >= 0; i-- {
		if err := p.apply(doc, plans[i]); err != nil {
			return err
		}
	}
	return nil
}

// planText 按文档声明顺序为每个被覆盖的文本层生成计划。
// 这一遍不写文档，度量全部基于改写前的状态。
func (p *Processor) planText(doc *document.Document, ov *Overrides) []Plan {
	var plans []Plan
	seen := map[string]bool{}
	for _, name := range doc.TextLayerNames() {
		spec, ok := ov.Text[name]
		if !ok {
			continue
		}
		seen[name] = true
		if plan, ok := p.planLayer(doc, name, spec); ok {
			plans = append(plans, plan)
		}
	}
	for _, name := range sortedKeys(ov.Text) {
		if !seen[name] {
			p.warnf("找不到文本层 %s，对应覆盖被忽略", name)
		}
	}
	return plans
}

func (p *Processor) planLayer(doc *document.Document, name string, spec TextOverride) (Plan, bool) {
	layer, err := doc.TextLayer(name)
	if err != nil {
		p.warnf("读取图层 %s 失败: %v", name, err)
		return Plan{}, false
	}
	style, err := layer.TextStyle()
	if err != nil {
		p.warnf("图层 %s 缺少文本样式，跳过", name)
		return Plan{}, false
	}
	if style.FontName == "" {
		p.warnf("图层 %s 缺少字体信息，跳过", name)
		return Plan{}, false
	}

	text := spec.Value
	if text == "" {
		text = style.Text
	}
	if text == "" {
		p.warnf("图层 %s 没有可用文本，跳过", name)
		return Plan{}, false
	}

	family, fontStyle, _ := doc.Font(style.FontName)
	font := FontRef{Name: style.FontName, Family: family, Style: fontStyle}

	// 目标宽度优先级：覆盖配置 > 图层文本框 > 画布宽度。
	target := doc.Width()
	if style.BoxWidth > 0 {
		target = style.BoxWidth
	}
	if spec.TextBoxWidth > 0 {
		target = spec.TextBoxWidth
	}

	// 宽度基线取文档里的原始文本：关键帧补偿比较的是改写前后
	// 渲染宽度的实际变化。
	plan := Plan{
		Layer:         name,
		Text:          text,
		Size:          style.Size,
		OriginalWidth: p.measure.Width(font, style.Size, style.Text),
	}
	plan.NewWidth = p.measure.Width(font, plan.Size, plan.Text)

	if spec.MinSize > 0 && spec.MaxSize > 0 {
		padded := target * p.opts.Padding
		sized := func(s string) func(float64) float64 {
			return func(size float64) float64 { return p.measure.Width(font, size, s) }
		}
		size, err := OptimalSize(sized(text), style.Size, spec.MinSize, spec.MaxSize, padded)
		switch {
		case err == nil:
			plan.Size = size
		case errors.Is(err, ErrNoFit):
			p.debugf("图层 %s 的文本在 minSize=%g 下放不进 %.1fpx，改用后备文本", name, spec.MinSize, padded)
			if spec.FallbackText == "" {
				p.warnf("图层 %s 没有配置后备文本，该图层将渲染为空", name)
			}
			plan.Text = spec.FallbackText
			size, err := OptimalSize(sized(plan.Text), spec.MinSize, spec.MinSize, spec.MaxSize, padded)
			if err != nil {
				// 后备文本也放不下：保底用最小字号渲染，允许溢出。
				p.warnf("图层 %s 的后备文本同样超宽，按 minSize=%g 渲染", name, spec.MinSize)
				size = spec.MinSize
			}
			plan.Size = size
		}
		plan.NewWidth = p.measure.Width(font, plan.Size, plan.Text)
		p.debugf("图层 %s: 字号 %g -> %g，宽度 %.1f -> %.1f（目标 %.1f）",
			name, style.Size, plan.Size, plan.OriginalWidth, plan.NewWidth, padded)
	}
	return plan, true
}

// apply 把计划写回文档。文本变宽时把画布外（X<0）的入场关键帧按宽度差
// 左移，保持滑入动画的可见终点；变窄时保持原位，这是既定策略。
func (p *Processor) apply(doc *document.Document, plan Plan) error {
	layer, err := doc.TextLayer(plan.Layer)
	if err != nil {
		return err
	}
	if err := layer.SetText(plan.Text, plan.Size); err != nil {
		return err
	}
	if diff := plan.NewWidth - plan.OriginalWidth; diff > widthEpsilon {
		if n := layer.ShiftAnimatorX(diff); n > 0 {
			p.debugf("图层 %s 的 %d 个画布外关键帧左移 %.1fpx", plan.Layer, n, diff)
		}
	}
	return nil
}

// applyImageOverrides 改写 assets 中图片资源的目录与文件名。
// 单个资源的问题（找不到、URL、本地文件缺失）都只警告并保留原引用。
func (p *Processor) applyImageOverrides(doc *document.Document, ov *Overrides) {
	if len(ov.Images) == 0 {
		return
	}
	if !doc.HasAssets() {
		p.warnf("文档没有 assets 数组，图片覆盖不生效")
		return
	}
	for _, id := range sortedKeys(ov.Images) {
		spec := ov.Images[id]
		asset, err := doc.Asset(id)
		if err != nil {
			p.warnf("找不到资源 %s，对应覆盖被忽略", id)
			continue
		}
		dir, file, ok := p.resolveImagePath(id, spec, asset.FileName())
		if !ok {
			continue
		}
		if full := localImagePath(dir, file, ov.BaseDir); full != "" {
			if _, err := os.Stat(full); err != nil {
				p.warnf("图片文件不存在: %s（资源 %s 保留原引用）", full, id)
				continue
			}
		}
		asset.SetPath(dir, file)
		p.debugf("资源 %s 的路径改为 %s%s", id, dir, file)
	}
}

// resolveImagePath 按 filePath/fileName 的组合推导资源的目录与文件名。
// 目录总是以分隔符结尾；根目录 "/" 归一化为空串，避免引擎拼出 //。
func (p *Processor) resolveImagePath(id string, spec ImageOverride, existing string) (dir, file string, ok bool) {
	if isURL(spec.FilePath) || isURL(spec.FileName) {
		p.warnf("资源 %s 的覆盖是 URL，不支持远程图片，忽略", id)
		return "", "", false
	}
	switch {
	case spec.FilePath == "" && spec.FileName != "":
		// fileName 里可能带完整路径，拆出目录部分。
		dir, file = splitImagePath(spec.FileName)
	case spec.FilePath != "" && spec.FileName != "":
		dir, file = spec.FilePath, spec.FileName
	default:
		// 只给目录：文件名沿用资源现有引用。
		if existing == "" {
			p.warnf("资源 %s 没有现有文件名，只给 filePath 的覆盖无法应用", id)
			return "", "", false
		}
		dir, file = spec.FilePath, existing
	}
	dir = normalizeDir(dir)
	return dir, file, true
}

func splitImagePath(path string) (dir, file string) {
	idx := strings.LastIndexAny(path, "/\\")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func normalizeDir(dir string) string {
	if dir == "" {
		return ""
	}
	if !strings.HasSuffix(dir, "/") && !strings.HasSuffix(dir, "\\") {
		dir += "/"
	}
	if dir == "/" {
		return ""
	}
	return dir
}

// localImagePath 推导用于存在性检查的本地路径。相对目录基于覆盖配置
// 所在目录解析；无法解析时返回空串，跳过检查。
func localImagePath(dir, file, baseDir string) string {
	if file == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		return filepath.Join(dir, file)
	}
	if baseDir == "" {
		return ""
	}
	return filepath.Join(baseDir, dir, file)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Processor) warnf(format string, args ...any) {
	p.opts.Log.Printf("警告: "+format, args...)
}

func (p *Processor) debugf(format string, args ...any) {
	if p.opts.Debug {
		p.opts.Log.Printf("[text] "+format, args...)
	}
}
