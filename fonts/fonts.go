// Package fonts 管理文本度量所需的字体资源：按名称注册字体数据、
// 按目录约定加载字体文件，并在查找失败时退回内置默认字体。
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lmregular "github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/tdewolff/canvas"
)

// Library 缓存字体字节与解析后的字体族。查找顺序与渲染引擎的
// 字体管理器一致：先按 family+style 匹配，再按字体全名，最后退回默认字体。
type Library struct {
	mu       sync.Mutex
	blobs    map[string][]byte // by font name, e.g. "SegoeUI-Bold"
	families map[string]*familyEntry
	fallback *canvas.FontFamily
}

type familyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// NewLibrary 创建一个空字体库。
func NewLibrary() *Library {
	return &Library{
		blobs:    map[string][]byte{},
		families: map[string]*familyEntry{},
	}
}

// Register 注册一份字体数据，name 为字体名（通常是文件基础名）。
func (l *Library) Register(name string, data []byte) {
	if name == "" || len(data) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blobs[name] = data
}

// LoadDir 把目录下的 .ttf/.otf 文件按基础名注册进来，返回注册数量。
// 已注册过的名字不覆盖，目录加载顺序即字体优先级。目录不存在时
// 静默返回 0，由调用方决定还要尝试哪些目录。
func (l *Library) LoadDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if l.registered(name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil || len(data) == 0 {
			continue
		}
		l.Register(name, data)
		count++
	}
	return count
}

func (l *Library) registered(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.blobs[name]
	return ok
}

// Face 解析出度量用的字体面，size 单位为 pt。
// found 为 false 表示所有候选都没命中，face 是内置默认字体。
func (l *Library) Face(family, style, name string, size float64) (face *canvas.FontFace, found bool, err error) {
	fam, famStyle, found, err := l.resolve(family, style, name)
	if err != nil {
		return nil, false, err
	}
	return fam.Face(size, canvas.Black, famStyle, canvas.FontNormal), found, nil
}

// resolve 依次尝试 family、字体全名两类候选；没有任何命中时使用默认字体。
func (l *Library) resolve(family, style, name string) (*canvas.FontFamily, canvas.FontStyle, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := family + "|" + style + "|" + name
	if entry, ok := l.families[key]; ok {
		return entry.family, entry.style, true, nil
	}

	parsedStyle := ParseStyle(style)
	for _, candidate := range []string{family + "-" + style, name, family} {
		data, ok := l.blobs[candidate]
		if !ok {
			continue
		}
		fam := canvas.NewFontFamily(candidate)
		if err := fam.LoadFont(data, 0, parsedStyle); err != nil {
			continue // 数据损坏的字体跳过，继续尝试下一个候选
		}
		l.families[key] = &familyEntry{family: fam, style: parsedStyle}
		return fam, parsedStyle, true, nil
	}

	fallback, err := l.ensureFallback()
	if err != nil {
		return nil, canvas.FontRegular, false, err
	}
	return fallback, canvas.FontRegular, false, nil
}

func (l *Library) ensureFallback() (*canvas.FontFamily, error) {
	if l.fallback != nil {
		return l.fallback, nil
	}
	family := canvas.NewFontFamily("lotio-fallback")
	if err := family.LoadFont(lmregular.TTF, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("fonts: 加载内置默认字体失败: %w", err)
	}
	l.fallback = family
	return family, nil
}

// ParseStyle 把 Lottie 字体声明里的样式字符串映射到 canvas 样式位。
func ParseStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	// 带修饰的字重名先匹配，否则 "semibold" 会被 "bold" 截走。
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}
