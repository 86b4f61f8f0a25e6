package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/lotio/lotio/engine"
)

// Config 配置一次渲染。零值字段取各自的默认。
type Config struct {
	// Stream 为 true 时把 PNG 帧按序写入 Out，否则逐帧写文件到 OutputDir。
	Stream    bool
	OutputDir string
	// FPS <= 0 时沿用动画自身的帧率。
	FPS float64
	// Workers <= 0 时取 CPU 核数。
	Workers int
	// Compression 的零值映射为 png.BestSpeed。
	Compression png.CompressionLevel
	Debug       bool
	Log         *log.Logger
	// Out 是 Stream 模式的输出，nil 时用标准输出。
	Out io.Writer
}

// Result 汇总一次渲染的帧数统计。
type Result struct {
	Total     int
	Completed int
	Failed    int
}

var errNoBuilder = errors.New("render: 没有可用的渲染引擎")

// 进度日志的批次大小：每完成这么多帧打印一次。
const progressBatch = 10

// Render 把处理后的文档渲染为 PNG 帧序列。帧按序号在 worker 间轮转
// 分片，每个 worker 独立构建动画实例；单帧失败只计数跳过，不中断
// 整体渲染。
func Render(builder engine.Builder, doc string, cfg Config) (Result, error) {
	if builder == nil {
		return Result{}, errNoBuilder
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.Compression == 0 {
		cfg.Compression = png.BestSpeed
	}

	// 先构建一个探针实例读取时长、帧率与画布尺寸。
	probe, err := builder.Build(doc)
	if err != nil {
		return Result{}, fmt.Errorf("render: 构建动画失败: %w", err)
	}
	duration := probe.Duration()
	fps := cfg.FPS
	if fps <= 0 {
		fps = probe.FrameRate()
	}
	if duration <= 0 || fps <= 0 {
		return Result{}, fmt.Errorf("render: 动画时长(%g)或帧率(%g)非法", duration, fps)
	}
	w, h := probe.Size()
	width, height := int(math.Ceil(w)), int(math.Ceil(h))
	if width <= 0 || height <= 0 {
		return Result{}, fmt.Errorf("render: 画布尺寸非法: %gx%g", w, h)
	}

	total := int(math.Ceil(duration * fps))
	if total < 1 {
		total = 1
	}
	times := frameTimes(total, duration)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > total {
		workers = total
	}

	var sink *frameSink
	writerDone := make(chan struct{})
	var writerErr error
	if cfg.Stream {
		sink = newFrameSink(total)
		out := cfg.Out
		if out == nil {
			out = os.Stdout
		}
		go func() {
			defer close(writerDone)
			_, writerErr = sink.drain(out)
		}()
	} else {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("render: 创建输出目录失败: %w", err)
		}
	}

	if cfg.Debug {
		logger.Printf("[render] %d 帧 %dx%d，%d 个 worker，fps=%g", total, width, height, workers, fps)
	}

	var completed, failed atomic.Int64
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			anim, err := builder.Build(doc)
			if err != nil {
				// 实例构建失败：该 worker 的全部分片按失败计。
				logger.Printf("警告: worker %d 构建动画失败: %v", worker, err)
				for i := worker; i < total; i += workers {
					failed.Add(1)
				}
				return
			}
			target := newTarget(width, height)
			var scratch *image.NRGBA
			for i := worker; i < total; i += workers {
				data, err := renderFrame(anim, target, &scratch, times[i], cfg.Compression)
				if err != nil {
					failed.Add(1)
					logger.Printf("警告: 第 %d 帧渲染失败，跳过: %v", i, err)
					continue
				}
				if sink != nil {
					sink.publish(i, data)
				} else if err := writeFrameFile(cfg.OutputDir, i, data); err != nil {
					failed.Add(1)
					logger.Printf("警告: %v", err)
					continue
				}
				if n := completed.Add(1); n%progressBatch == 0 || int(n)+int(failed.Load()) == total {
					logger.Printf("已渲染 %d/%d 帧", n, total)
				}
			}
		}(worker)
	}
	wg.Wait()

	if sink != nil {
		sink.close()
		<-writerDone
		if writerErr != nil {
			return Result{}, writerErr
		}
	}

	result := Result{
		Total:     total,
		Completed: int(completed.Load()),
		Failed:    int(failed.Load()),
	}
	if result.Failed > 0 {
		logger.Printf("警告: %d 帧渲染失败，已从输出中跳过", result.Failed)
	}
	return result, nil
}

func renderFrame(anim engine.Animation, target *image.RGBA, scratch **image.NRGBA, t float64, level png.CompressionLevel) ([]byte, error) {
	clear(target)
	anim.SeekToTime(t)
	if err := anim.Render(target); err != nil {
		return nil, err
	}
	*scratch = toNRGBA(target, *scratch)
	return encodeFrame(*scratch, level)
}

func writeFrameFile(dir string, index int, data []byte) error {
	path := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("render: 写入 %s 失败: %w", path, err)
	}
	return nil
}

// frameTimes 给出每帧的时间戳：均匀铺满时长，最后一帧钉在结尾，
// 保证收尾状态总能渲染到。
func frameTimes(n int, duration float64) []float64 {
	times := make([]float64, n)
	if n == 1 {
		return times
	}
	for i := range times {
		times[i] = float64(i) / float64(n-1) * duration
	}
	times[n-1] = duration
	return times
}
