package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig 保存单个翻译服务配置
type ProviderConfig struct {
	Type        string  `mapstructure:"type"`        // openai、google 或 raw
	APIKey      string  `mapstructure:"api_key"`     // 服务密钥
	BaseURL     string  `mapstructure:"base_url"`    // 覆盖默认端点
	Model       string  `mapstructure:"model"`       // 模型标识
	Temperature float64 `mapstructure:"temperature"` // 采样温度
	MaxTokens   int     `mapstructure:"max_tokens"`  // 最大输出 token
	Timeout     int     `mapstructure:"timeout"`     // 请求超时（秒）
}

// ParseConfig 解析阶段配置
type ParseConfig struct {
	UseFeatures     bool    `mapstructure:"use_features"`     // 启用特征分类器
	VFontPattern    string  `mapstructure:"vfont_pattern"`    // 用户公式字体正则
	VCharPattern    string  `mapstructure:"vchar_pattern"`    // 用户公式字符正则
	HeaderBand      float64 `mapstructure:"header_band"`      // 页眉候选区高度比例
	FooterBand      float64 `mapstructure:"footer_band"`      // 页脚候选区起始比例
	SimilarityMin   float64 `mapstructure:"similarity_min"`   // 页眉页脚去重相似度阈值
	H1FontSize      float64 `mapstructure:"h1_font_size"`     // 一级标题字号下限
	H2FontSize      float64 `mapstructure:"h2_font_size"`     // 二级标题字号下限
	H3FontSize      float64 `mapstructure:"h3_font_size"`     // 三级标题字号下限
	MinRegionArea   float64 `mapstructure:"min_region_area"`  // 最小区域面积（pt²）
	RegionMergeDist float64 `mapstructure:"region_merge_dist"` // 区域合并距离（pt）
}

// TranslateConfig 翻译阶段配置
type TranslateConfig struct {
	Provider           string  `mapstructure:"provider"`             // 默认翻译服务名
	Workers            int     `mapstructure:"workers"`              // 并发 worker 数
	MaxRetries         int     `mapstructure:"max_retries"`          // 单块最大重试
	UsePriority        bool    `mapstructure:"use_priority"`         // 优先级调度
	UseTermConsistency bool    `mapstructure:"use_term_consistency"` // 术语一致性
	QualityCheck       bool    `mapstructure:"quality_check"`        // 译文相似度质检
	QualityThreshold   float64 `mapstructure:"quality_threshold"`    // 相似度阈值
	TargetLatencyMs    int     `mapstructure:"target_latency_ms"`    // 自适应目标延迟
	TargetErrorRate    float64 `mapstructure:"target_error_rate"`    // 自适应目标错误率
}

// ExportConfig 导出阶段配置
type ExportConfig struct {
	Format      string `mapstructure:"format"`       // pdf、markdown、html、docx
	Kind        string `mapstructure:"kind"`         // mono 或 dual
	Bilingual   bool   `mapstructure:"bilingual"`    // 双语输出
	SubsetFonts bool   `mapstructure:"subset_fonts"` // 字体子集化
	PDFA        bool   `mapstructure:"pdfa"`         // PDF/A-2B 标识
	FontFile    string `mapstructure:"font_file"`    // 译文字体文件
}

// Config 保存翻译器的所有配置
type Config struct {
	SourceLang string `mapstructure:"source_lang"`
	TargetLang string `mapstructure:"target_lang"`

	Providers       map[string]ProviderConfig `mapstructure:"providers"`
	Parse           ParseConfig               `mapstructure:"parse"`
	Translate       TranslateConfig           `mapstructure:"translate"`
	Export          ExportConfig              `mapstructure:"export"`

	UseCache bool   `mapstructure:"use_cache"`
	CacheDir string `mapstructure:"cache_dir"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Debug    bool   `mapstructure:"debug"`
}

// LoadConfig 从文件加载配置，未指定时查找家目录与当前目录
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".pdf-translator")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PDF_TRANSLATOR")

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件则使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// 名字里带点的服务需要逐个解码
	providersRaw := v.GetStringMap("providers")
	if len(providersRaw) > 0 {
		config.Providers = make(map[string]ProviderConfig)
		for name := range providersRaw {
			var pc ProviderConfig
			if err := v.UnmarshalKey(fmt.Sprintf("providers.%s", name), &pc); err == nil {
				config.Providers[name] = pc
			}
		}
	}

	if config.CacheDir == "" {
		config.CacheDir = getDefaultCacheDir()
	}
	return &config, nil
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		SourceLang: "en",
		TargetLang: "zh",
		Providers: map[string]ProviderConfig{
			"openai": {Type: "openai", Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 4096, Timeout: 120},
			"google": {Type: "google"},
			"raw":    {Type: "raw"},
		},
		Parse: ParseConfig{
			UseFeatures:     true,
			HeaderBand:      0.08,
			FooterBand:      0.92,
			SimilarityMin:   0.7,
			H1FontSize:      16,
			H2FontSize:      13,
			H3FontSize:      11,
			MinRegionArea:   100,
			RegionMergeDist: 20,
		},
		Translate: TranslateConfig{
			Provider:         "openai",
			Workers:          5,
			MaxRetries:       3,
			UsePriority:      true,
			QualityThreshold: 0.95,
			TargetLatencyMs:  1200,
			TargetErrorRate:  0.05,
		},
		Export: ExportConfig{
			Format: "pdf",
			Kind:   "mono",
		},
		UseCache: true,
		CacheDir: getDefaultCacheDir(),
		LogLevel: "info",
	}
}

// TargetLatency 自适应目标延迟
func (c *TranslateConfig) TargetLatency() time.Duration {
	if c.TargetLatencyMs <= 0 {
		return 1200 * time.Millisecond
	}
	return time.Duration(c.TargetLatencyMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	def := NewDefaultConfig()
	v.SetDefault("source_lang", def.SourceLang)
	v.SetDefault("target_lang", def.TargetLang)
	v.SetDefault("use_cache", def.UseCache)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("parse.use_features", def.Parse.UseFeatures)
	v.SetDefault("parse.header_band", def.Parse.HeaderBand)
	v.SetDefault("parse.footer_band", def.Parse.FooterBand)
	v.SetDefault("parse.similarity_min", def.Parse.SimilarityMin)
	v.SetDefault("parse.h1_font_size", def.Parse.H1FontSize)
	v.SetDefault("parse.h2_font_size", def.Parse.H2FontSize)
	v.SetDefault("parse.h3_font_size", def.Parse.H3FontSize)
	v.SetDefault("parse.min_region_area", def.Parse.MinRegionArea)
	v.SetDefault("parse.region_merge_dist", def.Parse.RegionMergeDist)
	v.SetDefault("translate.provider", def.Translate.Provider)
	v.SetDefault("translate.workers", def.Translate.Workers)
	v.SetDefault("translate.max_retries", def.Translate.MaxRetries)
	v.SetDefault("translate.use_priority", def.Translate.UsePriority)
	v.SetDefault("translate.quality_threshold", def.Translate.QualityThreshold)
	v.SetDefault("translate.target_latency_ms", def.Translate.TargetLatencyMs)
	v.SetDefault("translate.target_error_rate", def.Translate.TargetErrorRate)
	v.SetDefault("export.format", def.Export.Format)
	v.SetDefault("export.kind", def.Export.Kind)
}

func getDefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pdf-translator")
	}
	return filepath.Join(".", ".pdf-translator-cache")
}
