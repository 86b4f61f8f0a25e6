// Package text 实现渲染前的图层改写：覆盖配置解析、三种精度的文本
// 宽度度量、自适应字号二分搜索，以及把结果写回动画文档的编排。
package text

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lotio/lotio/document"
)

// TextOverride 是一个文本层的覆盖配置。MinSize/MaxSize 同时给出时才启用
// 自适应字号；TextBoxWidth 为 0 表示沿用文档声明的文本框宽度。
type TextOverride struct {
	MinSize      float64 `json:"minSize"`
	MaxSize      float64 `json:"maxSize"`
	FallbackText string  `json:"fallbackText"`
	Value        string  `json:"value"`
	TextBoxWidth float64 `json:"textBoxWidth"`
}

// ImageOverride 是一个图片资源的路径覆盖。FilePath 只改目录时，
// 文件名沿用资源现有引用。
type ImageOverride struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
}

// Overrides 对应 layer-overrides 配置文件。BaseDir 是配置文件所在目录的
// 绝对路径，用于解析相对图片路径。
type Overrides struct {
	Text    map[string]TextOverride  `json:"textLayers"`
	Images  map[string]ImageOverride `json:"imageLayers"`
	BaseDir string                   `json:"-"`
}

// ParseOverridesFile 读取并校验覆盖配置。结构性错误（非法字号区间、
// 图片覆盖两个字段都为空）属于致命配置错误，在任何渲染开始前拒绝。
func ParseOverridesFile(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("text: 读取覆盖配置失败: %w", err)
	}
	var ov Overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("text: 解析覆盖配置 %s 失败: %w", path, err)
	}

	base := filepath.Dir(path)
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	ov.BaseDir = base

	for name, spec := range ov.Text {
		if err := validateTextOverride(name, spec); err != nil {
			return nil, err
		}
		// 覆盖值里的软换行标记同样归一化为 \r。
		spec.Value = document.NormalizeBreaks(spec.Value)
		spec.FallbackText = document.NormalizeBreaks(spec.FallbackText)
		ov.Text[name] = spec
	}
	for id, spec := range ov.Images {
		if id == "" {
			return nil, fmt.Errorf("text: 覆盖配置 %s 中存在空的资源 id", path)
		}
		if spec.FilePath == "" && spec.FileName == "" {
			return nil, fmt.Errorf("text: 资源 %s 的 filePath 与 fileName 均为空", id)
		}
	}
	return &ov, nil
}

func validateTextOverride(name string, spec TextOverride) error {
	if spec.MinSize < 0 {
		return fmt.Errorf("text: 图层 %s 的 minSize 不能为负数", name)
	}
	if spec.MaxSize < 0 {
		return fmt.Errorf("text: 图层 %s 的 maxSize 不能为负数", name)
	}
	if spec.TextBoxWidth < 0 {
		return fmt.Errorf("text: 图层 %s 的 textBoxWidth 不能为负数", name)
	}
	if spec.MinSize > 0 && spec.MaxSize > 0 && spec.MaxSize <= spec.MinSize {
		return fmt.Errorf("text: 图层 %s 的 maxSize(%g) 必须大于 minSize(%g)", name, spec.MaxSize, spec.MinSize)
	}
	return nil
}
