package text

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotio/lotio/document"
)

// stubMeasurer 用可预测的线性模型代替真实字体度量：
// 最宽一行的宽度 = 行字符数 × 字号。
type stubMeasurer struct{}

func (stubMeasurer) Width(font FontRef, size float64, text string) float64 {
	if text == "" || size <= 0 {
		return 0
	}
	max := 0
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' }) {
		if len(line) > max {
			max = len(line)
		}
	}
	return float64(max) * size
}

const processorDoc = `{
    "w": 1920,
    "h": 1080,
    "fr": 25,
    "fonts": {"list": [{"fName": "SegoeUI-Bold", "fFamily": "Segoe UI", "fStyle": "Bold"}]},
    "assets": [{"id": "image_0", "u": "images/", "p": "img_0.png"}],
    "layers": [
        {
            "ty": 5,
            "nm": "title",
            "t": {
                "d": {"k": [{"s": {"t": "HelloWorld", "s": 36, "f": "SegoeUI-Bold", "sz": [600, 120]}, "t": 0}]},
                "a": [{"a": {"p": {"a": 1, "k": [{"t": 0, "s": [-500, 0]}, {"t": 30, "s": [0, 0]}]}}}]
            }
        }
    ]
}`

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	return NewProcessor(stubMeasurer{}, Options{
		Log: log.New(&bytes.Buffer{}, "", 0),
	})
}

func parseDoc(t *testing.T, data string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(data))
	if err != nil {
		t.Fatalf("解析测试文档失败: %v", err)
	}
	return doc
}

func titleStyle(t *testing.T, doc *document.Document) document.TextStyle {
	t.Helper()
	layer, err := doc.TextLayer("title")
	if err != nil {
		t.Fatalf("找不到 title 层: %v", err)
	}
	style, err := layer.TextStyle()
	if err != nil {
		t.Fatalf("读取样式失败: %v", err)
	}
	return style
}

// 文本在原始字号放得下：向上搜索后贴着 maxSize。
// 目标宽度 600×0.97=582，每字符宽=字号，10 字符时 50pt 仍只有 500。
func TestProcessGrowsToCap(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {MinSize: 10, MaxSize: 50},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	style := titleStyle(t, doc)
	if style.Size < 49 || style.Size > 50 {
		t.Fatalf("字号应贴近上限 50，实际 %g", style.Size)
	}
	if style.Text != "HelloWorld" {
		t.Fatalf("没有覆盖值时文本不应改变: %q", style.Text)
	}
}

// 最小字号也放不下：改用后备文本并为其重新选号。
func TestProcessFallsBackWhenNoFit(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	long := strings.Repeat("x", 40) // 40 字符 × 20pt = 800 > 582
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {MinSize: 20, MaxSize: 50, Value: long, FallbackText: "ab"},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	style := titleStyle(t, doc)
	if style.Text != "ab" {
		t.Fatalf("应改用后备文本: %q", style.Text)
	}
	if style.Size < 49 || style.Size > 50 {
		t.Fatalf("后备文本应重新向上选号，实际 %g", style.Size)
	}
}

// 后备文本也放不下：按最小字号渲染，允许溢出。
func TestProcessFallbackOverflow(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	long := strings.Repeat("x", 40)
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {MinSize: 20, MaxSize: 50, Value: long, FallbackText: strings.Repeat("y", 60)},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	style := titleStyle(t, doc)
	if style.Size != 20 {
		t.Fatalf("溢出时应保底用 minSize，实际 %g", style.Size)
	}
	if style.Text != strings.Repeat("y", 60) {
		t.Fatalf("应使用后备文本: %q", style.Text)
	}
}

// 放不下又没配后备文本：图层被置空，但必须留下明确警告。
func TestProcessEmptyFallbackWarns(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	var buf bytes.Buffer
	p := NewProcessor(stubMeasurer{}, Options{Log: log.New(&buf, "", 0)})
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {MinSize: 20, MaxSize: 50, Value: strings.Repeat("x", 40)},
	}}
	if err := p.Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	style := titleStyle(t, doc)
	if style.Text != "" {
		t.Fatalf("空后备文本应置空图层: %q", style.Text)
	}
	if !strings.Contains(buf.String(), "后备文本") {
		t.Fatalf("应警告后备文本缺失: %s", buf.String())
	}
}

// 只给覆盖值不给字号区间：文本替换，字号保持原样。
func TestProcessValueOnly(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {Value: "Short"},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	style := titleStyle(t, doc)
	if style.Text != "Short" || style.Size != 36 {
		t.Fatalf("只替换文本时字号不应变: %+v", style)
	}
}

// 新文本更宽时，画布外（X<0）的入场关键帧按宽度差左移。
func TestProcessShiftsKeyframesWhenWider(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Text: map[string]TextOverride{
		// 20 字符 × 36pt = 720，比原来的 360 宽 360。
		"title": {Value: strings.Repeat("w", 20)},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	out, _ := doc.Marshal()
	if !strings.Contains(string(out), "-860") {
		t.Fatalf("入场关键帧应从 -500 左移到 -860: %s", out)
	}
}

// 变窄是既定的空操作：关键帧保持原位。
func TestProcessNarrowerKeepsKeyframes(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {Value: "ab"}, // 72 << 360
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	out, _ := doc.Marshal()
	if !strings.Contains(string(out), "-500") {
		t.Fatalf("变窄时关键帧不应移动: %s", out)
	}
}

// 覆盖指向不存在的图层：警告并忽略，不影响其余处理。
func TestProcessUnknownLayerIgnored(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	var buf bytes.Buffer
	p := NewProcessor(stubMeasurer{}, Options{Log: log.New(&buf, "", 0)})
	ov := &Overrides{Text: map[string]TextOverride{
		"nope": {Value: "x"},
	}}
	if err := p.Process(doc, ov); err != nil {
		t.Fatalf("未知图层不应导致失败: %v", err)
	}
	if !strings.Contains(buf.String(), "nope") {
		t.Fatalf("应记录找不到图层的警告: %s", buf.String())
	}
	out, _ := doc.Marshal()
	if !bytes.Equal(out, []byte(processorDoc)) {
		t.Fatalf("没有生效的覆盖时文档不应被改动")
	}
}

// 重复处理同一覆盖集合不叠加：文本与关键帧都保持稳定。
func TestProcessIdempotent(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Text: map[string]TextOverride{
		"title": {Value: strings.Repeat("w", 20)},
	}}
	p := newTestProcessor(t)
	if err := p.Process(doc, ov); err != nil {
		t.Fatalf("第一次处理失败: %v", err)
	}
	first, _ := doc.Marshal()
	if err := p.Process(doc, ov); err != nil {
		t.Fatalf("第二次处理失败: %v", err)
	}
	second, _ := doc.Marshal()
	if !bytes.Equal(first, second) {
		t.Fatalf("重复处理改变了文档")
	}
}

// 只给 filePath 的图片覆盖：目录改写，文件名沿用资源现有引用。
func TestProcessImageFilePathOnly(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "img_0.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("准备测试图片失败: %v", err)
	}
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Images: map[string]ImageOverride{
		"image_0": {FilePath: dir},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	asset, _ := doc.Asset("image_0")
	if asset.Dir() != dir+"/" || asset.FileName() != "img_0.png" {
		t.Fatalf("路径改写不对: %s%s", asset.Dir(), asset.FileName())
	}
}

// fileName 里带路径：拆出目录部分。
func TestProcessImageFileNameWithPath(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	ov := &Overrides{Images: map[string]ImageOverride{
		"image_0": {FileName: "sub/pic.png"},
	}}
	if err := newTestProcessor(t).Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	asset, _ := doc.Asset("image_0")
	if asset.Dir() != "sub/" || asset.FileName() != "pic.png" {
		t.Fatalf("路径拆分不对: %s%s", asset.Dir(), asset.FileName())
	}
}

// URL 覆盖不支持：警告并保留原引用。
func TestProcessImageURLRejected(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	var buf bytes.Buffer
	p := NewProcessor(stubMeasurer{}, Options{Log: log.New(&buf, "", 0)})
	ov := &Overrides{Images: map[string]ImageOverride{
		"image_0": {FilePath: "https://example.com/images"},
	}}
	if err := p.Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	asset, _ := doc.Asset("image_0")
	if asset.Dir() != "images/" || asset.FileName() != "img_0.png" {
		t.Fatalf("URL 覆盖不应生效: %s%s", asset.Dir(), asset.FileName())
	}
	if !strings.Contains(buf.String(), "URL") {
		t.Fatalf("应记录 URL 警告: %s", buf.String())
	}
}

// 本地文件不存在：警告并保留原引用。
func TestProcessImageMissingFileRetained(t *testing.T) {
	doc := parseDoc(t, processorDoc)
	var buf bytes.Buffer
	p := NewProcessor(stubMeasurer{}, Options{Log: log.New(&buf, "", 0)})
	ov := &Overrides{
		Images:  map[string]ImageOverride{"image_0": {FilePath: filepath.Join(t.TempDir(), "missing")}},
		BaseDir: "",
	}
	if err := p.Process(doc, ov); err != nil {
		t.Fatalf("处理失败: %v", err)
	}
	asset, _ := doc.Asset("image_0")
	if asset.Dir() != "images/" {
		t.Fatalf("缺失文件的覆盖不应生效: %s", asset.Dir())
	}
	if !strings.Contains(buf.String(), "不存在") {
		t.Fatalf("应记录文件缺失警告: %s", buf.String())
	}
}
