package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// encodeFrame 把一帧编码为完整的 PNG 字节串。默认用最快压缩级别：
// 逐帧流式输出时编码时间比文件体积重要。
func encodeFrame(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: 编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}
