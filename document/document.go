// Package document 提供对 Lottie 动画 JSON 的一次性解析与树上修改。
// 文档只在渲染开始前被改写一次：解析为可变树，按需修改节点，最后统一
// 重新序列化，避免基于文本偏移量的原地编辑带来的位移风险。
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// 文本层的层类型编号（Lottie ty 字段）。
const textLayerType = 5

// SoftBreak 是部分 Lottie 生产工具用作软换行标记的 U+0003（ETX）。
// 渲染引擎约定以 \r 表示换行，归一化时统一替换。
const SoftBreak = "\x03"

var (
	// ErrLayerNotFound 表示按名称找不到对应的文本层。
	ErrLayerNotFound = errors.New("document: 找不到指定图层")
	// ErrAssetNotFound 表示按 id 找不到对应的资源项。
	ErrAssetNotFound = errors.New("document: 找不到指定资源")
	// ErrNoTextStyle 表示文本层缺少可写的文本样式节点。
	ErrNoTextStyle = errors.New("document: 图层缺少文本样式节点")
)

// Document 是解析后的动画文档。树只通过本包的方法修改；
// 未被修改过的文档在 Marshal 时原样返回输入字节。
type Document struct {
	root  map[string]any
	raw   []byte
	dirty bool
}

// Parse 解析动画 JSON。解析失败属于致命配置错误，由调用方终止流程。
func Parse(data []byte) (*Document, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("document: 解析动画 JSON 失败: %w", err)
	}
	return &Document{root: root, raw: data}, nil
}

// Marshal 序列化文档。若从未修改过则返回原始输入，保证空改写集合的
// 往返恒等；修改过的树以固定缩进重新序列化，结果对相同输入是确定的。
func (d *Document) Marshal() ([]byte, error) {
	if !d.dirty {
		return d.raw, nil
	}
	out, err := json.MarshalIndent(d.root, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("document: 序列化动画 JSON 失败: %w", err)
	}
	return out, nil
}

// Width 返回画布宽度（w 字段），缺失时返回 0。
func (d *Document) Width() float64 { return numField(d.root, "w") }

// Height 返回画布高度（h 字段），缺失时返回 0。
func (d *Document) Height() float64 { return numField(d.root, "h") }

// FrameRate 返回文档声明的帧率（fr 字段），缺失时返回 0。
func (d *Document) FrameRate() float64 { return numField(d.root, "fr") }

// TextLayerNames 按声明顺序返回所有文本层（ty:5）的名称。
func (d *Document) TextLayerNames() []string {
	var names []string
	for _, raw := range arrayField(d.root, "layers") {
		layer, ok := raw.(map[string]any)
		if !ok || numField(layer, "ty") != textLayerType {
			continue
		}
		if name, ok := layer["nm"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// TextLayer 按名称查找文本层。非文本层（ty != 5）不参与匹配。
func (d *Document) TextLayer(name string) (*Layer, error) {
	for _, raw := range arrayField(d.root, "layers") {
		layer, ok := raw.(map[string]any)
		if !ok || numField(layer, "ty") != textLayerType {
			continue
		}
		if n, ok := layer["nm"].(string); ok && n == name {
			return &Layer{doc: d, node: layer, name: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
}

// Font 在 fonts.list 中按 fName 查找字体声明，返回 family 与 style。
func (d *Document) Font(fontName string) (family, style string, ok bool) {
	fonts, isMap := d.root["fonts"].(map[string]any)
	if !isMap {
		return "", "", false
	}
	for _, raw := range arrayField(fonts, "list") {
		def, isMap := raw.(map[string]any)
		if !isMap {
			continue
		}
		if name, _ := def["fName"].(string); name != fontName {
			continue
		}
		family, _ = def["fFamily"].(string)
		style, _ = def["fStyle"].(string)
		return family, style, true
	}
	return "", "", false
}

// Asset 按 id 查找 assets 数组中的资源项。
func (d *Document) Asset(id string) (*Asset, error) {
	for _, raw := range arrayField(d.root, "assets") {
		asset, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if aid, ok := asset["id"].(string); ok && aid == id {
			return &Asset{doc: d, node: asset}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
}

// HasAssets 报告文档是否带有 assets 数组。
func (d *Document) HasAssets() bool {
	return len(arrayField(d.root, "assets")) > 0
}

// NormalizeSoftBreaks 将所有文本层样式中的软换行标记归一化为 \r，
// 同时统一 \n 与 \r\n，返回被修改的图层数。
func (d *Document) NormalizeSoftBreaks() int {
	changed := 0
	for _, raw := range arrayField(d.root, "layers") {
		layer, ok := raw.(map[string]any)
		if !ok || numField(layer, "ty") != textLayerType {
			continue
		}
		style, ok := textStyleNode(layer)
		if !ok {
			continue
		}
		text, ok := style["t"].(string)
		if !ok {
			continue
		}
		normalized := NormalizeBreaks(text)
		if normalized != text {
			style["t"] = normalized
			d.dirty = true
			changed++
		}
	}
	return changed
}

// NormalizeBreaks 将一个文本值中的软换行标记（U+0003、其转义写法）以及
// \n、\r\n 统一替换为渲染引擎约定的 \r。
func NormalizeBreaks(s string) string {
	// 双重转义的生产工具会把标记以字面量 \u0003 留在字符串里。
	s = strings.ReplaceAll(s, `\u0003`, "\r")
	s = strings.ReplaceAll(s, SoftBreak, "\r")
	s = strings.ReplaceAll(s, "\r\n", "\r")
	s = strings.ReplaceAll(s, "\n", "\r")
	return s
}

// Layer 是文档中的一个文本层视图，修改通过它写回树。
type Layer struct {
	doc  *Document
	node map[string]any
	name string
}

// Name 返回图层名称。
func (l *Layer) Name() string { return l.name }

// TextStyle 是文本层样式节点（t.d.k[0].s）里的关键字段。
type TextStyle struct {
	Text     string  // t：文本内容
	Size     float64 // s：字号
	FontName string  // f：字体全名，例如 "SegoeUI-Bold"
	BoxWidth float64 // sz[0]：文本框宽度，未声明时为 0
}

// TextStyle 读取图层当前的文本样式。
func (l *Layer) TextStyle() (TextStyle, error) {
	style, ok := textStyleNode(l.node)
	if !ok {
		return TextStyle{}, fmt.Errorf("%w: %s", ErrNoTextStyle, l.name)
	}
	ts := TextStyle{
		Size: numField(style, "s"),
	}
	ts.Text, _ = style["t"].(string)
	ts.FontName, _ = style["f"].(string)
	if sz := arrayField(style, "sz"); len(sz) >= 2 {
		if w, ok := sz[0].(float64); ok {
			ts.BoxWidth = w
		}
	}
	return ts, nil
}

// SetText 写回新的文本内容与字号。结构字符转义由序列化负责，
// 这里只保证换行标记已经是 \r 形式。
func (l *Layer) SetText(text string, size float64) error {
	style, ok := textStyleNode(l.node)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTextStyle, l.name)
	}
	style["t"] = NormalizeBreaks(text)
	style["s"] = size
	l.doc.dirty = true
	return nil
}

// ShiftAnimatorX 将图层文本动画器位置轨道（t.a[i].a.p，a==1 的关键帧）
// 中 X 为负值（画布外）的关键帧整体左移 delta，返回移动的关键帧数。
// 只有新文本更宽时调用方才会传入正的 delta；变窄时按既定策略不补偿。
func (l *Layer) ShiftAnimatorX(delta float64) int {
	if delta <= 0 {
		return 0
	}
	text, ok := l.node["t"].(map[string]any)
	if !ok {
		return 0
	}
	shifted := 0
	for _, rawAnimator := range arrayField(text, "a") {
		animator, ok := rawAnimator.(map[string]any)
		if !ok {
			continue
		}
		props, ok := animator["a"].(map[string]any)
		if !ok {
			continue
		}
		pos, ok := props["p"].(map[string]any)
		if !ok || numField(pos, "a") != 1 {
			continue
		}
		for _, rawKeyframe := range arrayField(pos, "k") {
			keyframe, ok := rawKeyframe.(map[string]any)
			if !ok {
				continue
			}
			start := arrayField(keyframe, "s")
			if len(start) == 0 {
				continue
			}
			x, ok := start[0].(float64)
			if !ok || x >= 0 {
				continue
			}
			start[0] = x - delta
			shifted++
		}
	}
	if shifted > 0 {
		l.doc.dirty = true
	}
	return shifted
}

// Asset 是 assets 数组中一项资源的视图。
type Asset struct {
	doc  *Document
	node map[string]any
}

// FileName 返回资源现有的文件名（p 字段）。
func (a *Asset) FileName() string {
	name, _ := a.node["p"].(string)
	return name
}

// Dir 返回资源现有的目录（u 字段）。
func (a *Asset) Dir() string {
	dir, _ := a.node["u"].(string)
	return dir
}

// SetPath 改写资源的目录与文件名（u/p 字段）。
func (a *Asset) SetPath(dir, fileName string) {
	a.node["u"] = dir
	a.node["p"] = fileName
	a.doc.dirty = true
}

// textStyleNode 沿 t.d.k[0].s 下行到文本样式对象。
func textStyleNode(layer map[string]any) (map[string]any, bool) {
	text, ok := layer["t"].(map[string]any)
	if !ok {
		return nil, false
	}
	data, ok := text["d"].(map[string]any)
	if !ok {
		return nil, false
	}
	keyframes := arrayField(data, "k")
	if len(keyframes) == 0 {
		return nil, false
	}
	first, ok := keyframes[0].(map[string]any)
	if !ok {
		return nil, false
	}
	style, ok := first["s"].(map[string]any)
	return style, ok
}

func numField(m map[string]any, key string) float64 {
	v, ok := m[key].(float64)
	if !ok {
		return 0
	}
	return v
}

func arrayField(m map[string]any, key string) []any {
	arr, _ := m[key].([]any)
	return arr
}
