package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Config Google Translate配置
type Config struct {
	providers.BaseConfig
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	config := Config{
		BaseConfig: providers.DefaultConfig(),
	}
	config.APIEndpoint = "https://translation.googleapis.com/language/translate/v2"
	return config
}

// Provider Google Translate提供商
type Provider struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
}

// New 创建新的Google Translate提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://translation.googleapis.com/language/translate/v2"
	}

	retryCfg := retry.DefaultConfig()
	if config.MaxRetries > 0 {
		retryCfg.MaxAttempts = config.MaxRetries + 1
	}
	if config.RetryDelay > 0 {
		retryCfg.InitialDelay = config.RetryDelay
	}

	return &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: retry.New(retryCfg, func(err error) bool {
			return translation.IsRetryableError(err) || retry.IsNetworkError(err)
		}),
	}
}

// Name 提供商名称
func (p *Provider) Name() string {
	return "google"
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, text string, meta translation.TranslateMeta) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", translation.ErrEmptyText
	}

	resp, err := p.translate(ctx, translateRequest{
		Q:      text,
		Source: providers.NormalizeLang(meta.SourceLang),
		Target: providers.NormalizeLang(meta.TargetLang),
		Format: "text",
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data.Translations) == 0 {
		return "", translation.NewRetryableError(translation.ErrCodeProvider, "no translation returned", nil)
	}

	return resp.Data.Translations[0].TranslatedText, nil
}

// translate 执行翻译请求，网络瞬时错误、429 和 5xx 按退避重试
func (p *Provider) translate(ctx context.Context, req translateRequest) (*translateResponse, error) {
	params := url.Values{}
	params.Set("key", p.config.APIKey)
	params.Set("q", req.Q)
	params.Set("source", req.Source)
	params.Set("target", req.Target)
	params.Set("format", req.Format)
	body := params.Encode()

	var result *translateResponse
	err := p.retrier.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.config.APIEndpoint, strings.NewReader(body))
		if err != nil {
			return translation.NewTranslationError(translation.ErrCodeNetwork, "create request", err)
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for k, v := range p.config.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var translateResp translateResponse
			if err := json.NewDecoder(resp.Body).Decode(&translateResp); err != nil {
				return translation.NewTranslationError(translation.ErrCodeProvider, "decode response", err)
			}
			result = &translateResp
			return nil
		}

		errBody, _ := io.ReadAll(resp.Body)
		msg := resp.Status
		var apiErr apiError
		if uerr := json.Unmarshal(errBody, &apiErr); uerr == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return translation.NewRetryableError(translation.ErrCodeProvider, "google api error: "+msg, nil)
		}
		return translation.NewTranslationError(translation.ErrCodeProvider, "google api error: "+msg, nil)
	})
	if err != nil {
		var terr *translation.TranslationError
		if errors.As(err, &terr) {
			return nil, err
		}
		return nil, translation.WrapError(err, translation.ErrCodeNetwork, "google translate request")
	}
	return result, nil
}

// translateRequest 翻译请求
type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

// translateResponse 翻译响应
type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
		} `json:"translations"`
	} `json:"data"`
}

// apiError API错误
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
