package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

func testConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.APIEndpoint = endpoint
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestProviderTranslate(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery.Store(r.Form.Get("q"))
		assert.Equal(t, "en", r.Form.Get("source"), "语言别名应规范化为 BCP47 标签")
		assert.Equal(t, "zh", r.Form.Get("target"), "语言别名应规范化为 BCP47 标签")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"你好"}]}}`))
	}))
	t.Cleanup(server.Close)

	p := New(testConfig(server.URL))
	meta := translation.TranslateMeta{SourceLang: "english", TargetLang: "chinese"}
	out, err := p.Translate(context.Background(), "hello", meta)
	require.NoError(t, err)

	assert.Equal(t, "你好", out)
	assert.Equal(t, "hello", gotQuery.Load())
}

func TestProviderTranslateRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"好"}]}}`))
	}))
	t.Cleanup(server.Close)

	p := New(testConfig(server.URL))
	out, err := p.Translate(context.Background(), "ok",
		translation.TranslateMeta{SourceLang: "en", TargetLang: "zh"})
	require.NoError(t, err)

	assert.Equal(t, "好", out)
	assert.Equal(t, int32(2), calls.Load(), "429 应触发重试")
}

func TestProviderTranslateClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"invalid api key"}}`))
	}))
	t.Cleanup(server.Close)

	p := New(testConfig(server.URL))
	_, err := p.Translate(context.Background(), "hello",
		translation.TranslateMeta{SourceLang: "en", TargetLang: "zh"})

	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid api key")
	assert.Equal(t, int32(1), calls.Load(), "4xx 不应重试")
	assert.False(t, translation.IsRetryableError(err))
}

func TestProviderTranslateEmptyText(t *testing.T) {
	p := New(DefaultConfig())
	_, err := p.Translate(context.Background(), "  ", translation.TranslateMeta{})
	assert.ErrorIs(t, err, translation.ErrEmptyText)
}
