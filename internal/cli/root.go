package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/config"
	"github.com/nerdneilsfield/go-pdf-translator/internal/export"
	"github.com/nerdneilsfield/go-pdf-translator/internal/layout"
	"github.com/nerdneilsfield/go-pdf-translator/internal/logger"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pdfparse"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
	"github.com/nerdneilsfield/go-pdf-translator/internal/translator"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	openaiprov "github.com/nerdneilsfield/go-pdf-translator/pkg/providers/openai"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/raw"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"

	googleprov "github.com/nerdneilsfield/go-pdf-translator/pkg/providers/google"
)

var (
	// 命令行标志变量
	cfgFile      string
	sourceLang   string
	targetLang   string
	providerName string
	formatName   string
	exportKind   string
	bilingual    bool
	useCache     bool
	cacheDir     string
	debugMode    bool
	noFeatures   bool
	subsetFonts  bool
	pdfaOutput   bool
	fontFile     string
	termUnify    bool
	qualityCheck bool
	workers      int
	dryRun       bool
	showConfig   bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pdftranslator [flags] input.pdf [output]",
		Short: "保留版面的 PDF 文档翻译工具",
		Long: `pdftranslator 解析 PDF 的文档结构（标题、段落、图表标题、公式、
页眉页脚与脚注），按块翻译正文并在原位置回填译文，生成保留原始
版面的译文 PDF，或导出为 Markdown / HTML / DOCX。

支持的翻译提供商:
  - openai: OpenAI 兼容的对话接口
  - google: Google Translate
  - raw:    原样返回（调试用）`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args: func(cmd *cobra.Command, args []string) error {
			if showConfig {
				return nil
			}
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("accepts 1 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
				os.Exit(1)
			}
			applyFlags(cmd, cfg)

			log := logger.New(cfg.LogLevel, cfg.LogFile, cfg.Debug)
			defer func() {
				_ = log.Sync()
			}()

			if showConfig {
				printConfig(cfg)
				return
			}

			inputPath := args[0]
			outputPath := ""
			if len(args) == 2 {
				outputPath = args[1]
			}

			if dryRun {
				printDryRun(cfg, inputPath, outputPath)
				return
			}

			p, err := buildPipeline(cfg, log)
			if err != nil {
				log.Error("初始化失败", zap.Error(err))
				os.Exit(1)
			}

			req := pipeline.Request{
				InputPath:  inputPath,
				OutputPath: outputPath,
				Format:     pipeline.Format(cfg.Export.Format),
				SourceLang: cfg.SourceLang,
				TargetLang: cfg.TargetLang,
				Bilingual:  cfg.Export.Bilingual,
				Strategy: translator.Strategy{
					Provider:           cfg.Translate.Provider,
					UseCache:           cfg.UseCache,
					UseTermConsistency: cfg.Translate.UseTermConsistency,
					UsePriority:        cfg.Translate.UsePriority,
				},
				PDFOptions: export.Options{
					Kind:        cfg.Export.Kind,
					SubsetFonts: cfg.Export.SubsetFonts,
					PDFA:        cfg.Export.PDFA,
					FontFile:    cfg.Export.FontFile,
				},
			}

			sink := newProgressSink()
			defer sink.Stop()

			start := time.Now()
			result, err := p.Run(cmd.Context(), req, sink.Report)
			if err != nil {
				log.Error("翻译失败", zap.Error(err))
				os.Exit(1)
			}

			log.Info("翻译完成",
				zap.String("输入文件", inputPath),
				zap.String("输出文件", result.OutputPath),
				zap.Int("总块数", result.TotalBlocks),
				zap.Int("失败块数", result.FailedBlocks),
				zap.Duration("耗时", time.Since(start)),
			)
		},
	}

	addGlobalFlags(rootCmd)
	rootCmd.AddCommand(NewProvidersCommand())
	return rootCmd
}

// buildPipeline 按配置组装解析器、翻译编排器与导出器
func buildPipeline(cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, error) {
	registry := providers.NewRegistry()
	for name, pc := range cfg.Providers {
		p, err := buildProvider(name, pc)
		if err != nil {
			log.Warn("跳过不可用的翻译提供商",
				zap.String("provider", name), zap.Error(err))
			continue
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	parseCfg := pdfparse.DefaultConfig()
	parseCfg.UseFeatures = cfg.Parse.UseFeatures
	parseCfg.VFontPattern = cfg.Parse.VFontPattern
	parseCfg.VCharPattern = cfg.Parse.VCharPattern
	parseCfg.UseCache = cfg.UseCache
	parseCfg.CacheDir = cfg.CacheDir
	parseCfg.Enhance.HeaderBand = cfg.Parse.HeaderBand
	parseCfg.Enhance.FooterBand = cfg.Parse.FooterBand
	parseCfg.Enhance.SimilarityThreshold = cfg.Parse.SimilarityMin
	parseCfg.Structure.FontTier1 = cfg.Parse.H1FontSize
	parseCfg.Structure.FontTier2 = cfg.Parse.H2FontSize
	parseCfg.Structure.FontTier3 = cfg.Parse.H3FontSize
	parseCfg.Rules.MinRegionArea = cfg.Parse.MinRegionArea
	parseCfg.Rules.MergeDistance = cfg.Parse.RegionMergeDist

	parser, err := pdfparse.New(pdfparse.NewPDFExtractor(log), layout.NewClassifier(layout.DefaultClassifierConfig()), parseCfg, log)
	if err != nil {
		return nil, err
	}

	batchCfg := translator.DefaultBatchConfig()
	batchCfg.Workers = cfg.Translate.Workers
	batchCfg.MaxRetries = cfg.Translate.MaxRetries
	batchCfg.UsePriority = cfg.Translate.UsePriority
	batchCfg.QualityCheck = cfg.Translate.QualityCheck
	batchCfg.QualityThreshold = cfg.Translate.QualityThreshold
	batchCfg.TargetLatency = cfg.Translate.TargetLatency()
	batchCfg.TargetErrorRate = cfg.Translate.TargetErrorRate

	cache := translation.NewCache(cfg.UseCache, cfg.CacheDir)
	unifier := translator.NewTermUnifier(translator.DefaultTermConfig(), nil, log)
	orch := translator.NewOrchestrator(registry, cache, batchCfg, unifier, translator.NewControl(), log)

	return pipeline.New(parser, orch, export.NewPDFExporter(log), log), nil
}

// buildProvider 根据配置实例化翻译提供商
func buildProvider(name string, pc config.ProviderConfig) (translation.Provider, error) {
	switch pc.Type {
	case "openai":
		c := openaiprov.DefaultConfig()
		c.APIKey = pc.APIKey
		if c.APIKey == "" {
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if pc.BaseURL != "" {
			c.APIEndpoint = pc.BaseURL
		}
		if pc.Model != "" {
			c.Model = pc.Model
		}
		if pc.Temperature > 0 {
			c.Temperature = float32(pc.Temperature)
		}
		if pc.MaxTokens > 0 {
			c.MaxTokens = pc.MaxTokens
		}
		if pc.Timeout > 0 {
			c.Timeout = time.Duration(pc.Timeout) * time.Second
		}
		return openaiprov.New(c), nil
	case "google":
		c := googleprov.DefaultConfig()
		c.APIKey = pc.APIKey
		if c.APIKey == "" {
			c.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
		if pc.BaseURL != "" {
			c.APIEndpoint = pc.BaseURL
		}
		return googleprov.New(c), nil
	case "raw":
		return raw.New(), nil
	default:
		return nil, fmt.Errorf("未知的提供商类型: %s (%s)", pc.Type, name)
	}
}

// applyFlags 命令行参数覆盖配置
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("source") {
		cfg.SourceLang = sourceLang
	}
	if cmd.Flags().Changed("target") {
		cfg.TargetLang = targetLang
	}
	if cmd.Flags().Changed("provider") {
		cfg.Translate.Provider = providerName
	}
	if cmd.Flags().Changed("format") {
		cfg.Export.Format = formatName
	}
	if cmd.Flags().Changed("kind") {
		cfg.Export.Kind = exportKind
	}
	if cmd.Flags().Changed("bilingual") {
		cfg.Export.Bilingual = bilingual
	}
	if cmd.Flags().Changed("cache") {
		cfg.UseCache = useCache
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir = cacheDir
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debugMode
	}
	if cmd.Flags().Changed("no-features") {
		cfg.Parse.UseFeatures = !noFeatures
	}
	if cmd.Flags().Changed("subset-fonts") {
		cfg.Export.SubsetFonts = subsetFonts
	}
	if cmd.Flags().Changed("pdfa") {
		cfg.Export.PDFA = pdfaOutput
	}
	if cmd.Flags().Changed("font") {
		cfg.Export.FontFile = fontFile
	}
	if cmd.Flags().Changed("term-consistency") {
		cfg.Translate.UseTermConsistency = termUnify
	}
	if cmd.Flags().Changed("quality-check") {
		cfg.Translate.QualityCheck = qualityCheck
	}
	if cmd.Flags().Changed("workers") {
		cfg.Translate.Workers = workers
	}
}

// addGlobalFlags 添加全局标志
func addGlobalFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&sourceLang, "source", "", "源语言")
	rootCmd.PersistentFlags().StringVar(&targetLang, "target", "", "目标语言")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "", "翻译提供商 (openai, google, raw)")
	rootCmd.PersistentFlags().StringVar(&formatName, "format", "", "输出格式 (pdf, markdown, html, docx)")
	rootCmd.PersistentFlags().StringVar(&exportKind, "kind", "", "PDF 输出模式 (mono, dual)")
	rootCmd.PersistentFlags().BoolVar(&bilingual, "bilingual", false, "双语输出")
	rootCmd.PersistentFlags().BoolVar(&useCache, "cache", true, "是否使用缓存")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "缓存目录路径")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试模式")
	rootCmd.PersistentFlags().BoolVar(&noFeatures, "no-features", false, "禁用特征分类器，只用规则")
	rootCmd.PersistentFlags().BoolVar(&subsetFonts, "subset-fonts", false, "嵌入字体前做子集化")
	rootCmd.PersistentFlags().BoolVar(&pdfaOutput, "pdfa", false, "输出 PDF/A-2B 标识")
	rootCmd.PersistentFlags().StringVar(&fontFile, "font", "", "译文字体文件路径")
	rootCmd.PersistentFlags().BoolVar(&termUnify, "term-consistency", false, "启用术语一致性")
	rootCmd.PersistentFlags().BoolVar(&qualityCheck, "quality-check", false, "启用译文相似度质检")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "并发翻译 worker 数")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "只显示将要执行的操作")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "显示当前配置信息")
}

// printConfig 显示当前配置信息
func printConfig(cfg *config.Config) {
	fmt.Println("当前配置:")
	fmt.Printf("  源语言: %s\n", cfg.SourceLang)
	fmt.Printf("  目标语言: %s\n", cfg.TargetLang)
	fmt.Printf("  翻译提供商: %s\n", cfg.Translate.Provider)
	fmt.Printf("  并发 worker: %d\n", cfg.Translate.Workers)
	fmt.Printf("  优先级调度: %t\n", cfg.Translate.UsePriority)
	fmt.Printf("  术语一致性: %t\n", cfg.Translate.UseTermConsistency)
	fmt.Printf("  输出格式: %s (%s)\n", cfg.Export.Format, cfg.Export.Kind)
	fmt.Printf("  特征分类器: %t\n", cfg.Parse.UseFeatures)
	fmt.Printf("  缓存: %t (%s)\n", cfg.UseCache, cfg.CacheDir)
	if len(cfg.Providers) > 0 {
		fmt.Println("  已配置的提供商:")
		for name, pc := range cfg.Providers {
			fmt.Printf("    - %s (类型 %s, 模型 %s)\n", name, pc.Type, pc.Model)
		}
	}
}

// printDryRun 预演模式输出
func printDryRun(cfg *config.Config, inputPath, outputPath string) {
	fmt.Println("预演模式 - 将要执行的操作:")
	fmt.Printf("  输入文件: %s\n", inputPath)
	if info, err := os.Stat(inputPath); err == nil {
		fmt.Printf("  文件大小: %d 字节\n", info.Size())
	} else {
		fmt.Printf("  警告: 无法读取输入文件: %v\n", err)
	}
	if outputPath != "" {
		fmt.Printf("  输出文件: %s\n", outputPath)
	} else {
		fmt.Printf("  输出文件: 自动生成 (_translated)\n")
	}
	fmt.Printf("  %s -> %s，提供商 %s\n", cfg.SourceLang, cfg.TargetLang, cfg.Translate.Provider)
	fmt.Printf("  输出格式 %s (%s)\n", cfg.Export.Format, cfg.Export.Kind)
	fmt.Println("去掉 --dry-run 以执行实际翻译")
}

// NewProvidersCommand 列出可用的翻译提供商
func NewProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "列出支持的翻译提供商",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				cfg = config.NewDefaultConfig()
			}
			fmt.Println("支持的翻译提供商:")
			for name, pc := range cfg.Providers {
				fmt.Printf("  - %s (类型 %s)\n", name, pc.Type)
			}
		},
	}
}
