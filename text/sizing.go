package text

import (
	"errors"
	"math"
)

// ErrNoFit 表示即使在最小字号下文本仍超出目标宽度，调用方应改用后备文本。
var ErrNoFit = errors.New("text: 最小字号下仍超出目标宽度")

const (
	// 放大搜索的二分迭代次数。区间 [authored, maxSize] 通常很窄，10 次足够。
	growIterations = 10
	// 缩小搜索允许更多迭代，另配 0.1pt 的区间收敛早退。
	shrinkIterations = 15
	shrinkBracket    = 0.1
)

// OptimalSize 在约束区间内二分搜索适配目标宽度的最大字号。
//
// targetWidth <= 0 视为无宽度约束，原样返回 authored。文本在 authored
// 字号已放得下时向上搜索 [authored, maxSize]；放不下时先检查 minSize，
// minSize 也放不下则返回 ErrNoFit，否则向下搜索 [minSize, authored]。
// measure 必须对相同字号返回相同宽度。
func OptimalSize(measure func(size float64) float64, authored, minSize, maxSize, targetWidth float64) (float64, error) {
	if targetWidth <= 0 {
		return authored, nil
	}
	if measure(authored) <= targetWidth {
		lo, hi, best := authored, maxSize, authored
		for i := 0; i < growIterations; i++ {
			mid := (lo + hi) / 2
			if measure(mid) <= targetWidth {
				best, lo = mid, mid
			} else {
				hi = mid
			}
		}
		return math.Min(best, maxSize), nil
	}
	if measure(minSize) > targetWidth {
		return 0, ErrNoFit
	}
	lo, hi, best := minSize, authored, minSize
	for i := 0; i < shrinkIterations; i++ {
		mid := (lo + hi) / 2
		if measure(mid) <= targetWidth {
			best, lo = mid, mid
		} else {
			hi = mid
		}
		if hi-lo < shrinkBracket {
			break
		}
	}
	return best, nil
}
