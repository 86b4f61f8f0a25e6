package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lotio/lotio/document"
	"github.com/lotio/lotio/engine"
	"github.com/lotio/lotio/fonts"
	"github.com/lotio/lotio/render"
	"github.com/lotio/lotio/text"
)

func main() {
	stream := flag.Bool("stream", false, "把 PNG 帧按序写到标准输出，而不是写文件")
	debug := flag.Bool("debug", false, "输出调试日志与处理后的文档")
	overridesPath := flag.String("layer-overrides", "", "图层覆盖配置 JSON 路径")
	padding := flag.Float64("text-padding", text.DefaultPadding, "文本目标宽度的留白系数，(0,1]")
	modeName := flag.String("text-measurement-mode", "accurate", "文本宽度度量模式: fast | accurate | pixel-perfect")
	workers := flag.Int("workers", 0, "渲染 worker 数，0 表示按 CPU 核数")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 || len(args) > 3 {
		usage()
		os.Exit(2)
	}
	input, outDir := args[0], args[1]
	fps := 0.0
	if len(args) == 3 {
		parsed, err := strconv.ParseFloat(args[2], 64)
		if err != nil || parsed <= 0 {
			log.Fatalf("非法的 fps 参数: %s", args[2])
		}
		fps = parsed
	}

	mode, ok := text.ParseMode(*modeName)
	if !ok {
		log.Fatalf("未知的度量模式: %s", *modeName)
	}
	if *padding <= 0 || *padding > 1 {
		log.Fatalf("text-padding 必须在 (0,1] 内: %g", *padding)
	}

	cfg := config{
		input:     input,
		outDir:    outDir,
		overrides: *overridesPath,
		stream:    *stream,
		debug:     *debug,
		padding:   *padding,
		mode:      mode,
		fps:       fps,
		workers:   *workers,
	}
	result, err := run(cfg)
	if err != nil {
		log.Fatalf("渲染失败: %v", err)
	}
	log.Printf("完成：%d/%d 帧（失败 %d）", result.Completed, result.Total, result.Failed)
}

type config struct {
	input     string
	outDir    string
	overrides string
	stream    bool
	debug     bool
	padding   float64
	mode      text.Mode
	fps       float64
	workers   int
}

// run 串联文档解析、图层改写与帧渲染。
func run(cfg config) (render.Result, error) {
	builder := engine.Default()
	if builder == nil {
		return render.Result{}, fmt.Errorf("没有注册任何渲染引擎绑定")
	}

	data, err := os.ReadFile(cfg.input)
	if err != nil {
		return render.Result{}, fmt.Errorf("无法读取动画文件 %s: %w", cfg.input, err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return render.Result{}, err
	}

	var overrides *text.Overrides
	if cfg.overrides != "" {
		overrides, err = text.ParseOverridesFile(cfg.overrides)
		if err != nil {
			return render.Result{}, err
		}
	}

	library := fonts.NewLibrary()
	loadFontDirs(library, cfg)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if n := doc.NormalizeSoftBreaks(); n > 0 && cfg.debug {
		logger.Printf("[main] 归一化了 %d 个图层的软换行标记", n)
	}

	measurer := &text.Measurer{Fonts: library, Mode: cfg.mode, Log: logger, Debug: cfg.debug}
	processor := text.NewProcessor(measurer, text.Options{
		Padding: cfg.padding,
		Debug:   cfg.debug,
		Log:     logger,
	})
	if err := processor.Process(doc, overrides); err != nil {
		return render.Result{}, err
	}

	processed, err := doc.Marshal()
	if err != nil {
		return render.Result{}, err
	}
	if cfg.debug {
		if err := writeDebugDoc(processed, cfg); err != nil {
			logger.Printf("警告: %v", err)
		}
	}

	return render.Render(builder, string(processed), render.Config{
		Stream:    cfg.stream,
		OutputDir: cfg.outDir,
		FPS:       cfg.fps,
		Workers:   cfg.workers,
		Debug:     cfg.debug,
		Log:       logger,
	})
}

// loadFontDirs 按约定顺序加载字体目录：覆盖配置旁的 fonts/、工作目录
// 的 fonts/，最后是系统字体目录。后加载的不覆盖已注册的同名字体文件，
// 因此顺序即优先级由 Register 的先后决定。
func loadFontDirs(library *fonts.Library, cfg config) {
	var dirs []string
	if cfg.overrides != "" {
		dirs = append(dirs, filepath.Join(filepath.Dir(cfg.overrides), "fonts"))
	}
	dirs = append(dirs, "fonts", "/usr/local/share/fonts")
	for _, dir := range dirs {
		if n := library.LoadDir(dir); n > 0 && cfg.debug {
			log.Printf("[main] 从 %s 加载了 %d 个字体", dir, n)
		}
	}
}

// writeDebugDoc 把处理后的文档落盘，便于排查改写结果。
func writeDebugDoc(processed []byte, cfg config) error {
	dir := cfg.outDir
	if cfg.stream || dir == "-" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	path := filepath.Join(dir, "processed.json")
	if err := os.WriteFile(path, processed, 0o644); err != nil {
		return fmt.Errorf("写入调试文档失败: %w", err)
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `用法: %s [选项] <animation.json> <输出目录|-> [fps]

把 Lottie 动画渲染为 PNG 帧序列。--stream 模式下输出目录写 "-"，
帧按序写到标准输出。

选项:
`, filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}
