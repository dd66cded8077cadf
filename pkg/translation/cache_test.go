package translation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	t.Run("未命中", func(t *testing.T) {
		_, ok := c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("写入后命中", func(t *testing.T) {
		require.NoError(t, c.Set("k1", "v1"))
		got, ok := c.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, "v1", got)
	})

	t.Run("删除", func(t *testing.T) {
		require.NoError(t, c.Set("k2", "v2"))
		require.NoError(t, c.Delete("k2"))
		_, ok := c.Get("k2")
		assert.False(t, ok)
	})

	t.Run("统计", func(t *testing.T) {
		stats := c.Stats()
		assert.Greater(t, stats.Hits, int64(0))
		assert.Greater(t, stats.Misses, int64(0))
	})
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)

	require.NoError(t, c.Set("key", "翻译结果"))
	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "翻译结果", got)

	// 落盘后新实例也能命中
	c2 := NewFileCache(dir)
	got, ok = c2.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "翻译结果", got)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, f := range files {
		if filepath.Ext(f.Name()) == ".cache" {
			found = true
		}
	}
	assert.True(t, found, "应有 .cache 文件落盘")
}

func TestGenerateCacheKey(t *testing.T) {
	meta := TranslateMeta{SourceLang: "en", TargetLang: "zh", Model: "m1"}

	t.Run("同输入同键", func(t *testing.T) {
		k1 := GenerateCacheKey("openai", meta, "hello")
		k2 := GenerateCacheKey("openai", meta, "hello")
		assert.Equal(t, k1, k2)
	})

	t.Run("不同文本不同键", func(t *testing.T) {
		k1 := GenerateCacheKey("openai", meta, "hello")
		k2 := GenerateCacheKey("openai", meta, "world")
		assert.NotEqual(t, k1, k2)
	})

	t.Run("不同提供商不同键", func(t *testing.T) {
		k1 := GenerateCacheKey("openai", meta, "hello")
		k2 := GenerateCacheKey("google", meta, "hello")
		assert.NotEqual(t, k1, k2)
	})

	t.Run("参数变化改变键", func(t *testing.T) {
		meta2 := meta
		meta2.Temperature = 0.9
		k1 := GenerateCacheKey("openai", meta, "hello")
		k2 := GenerateCacheKey("openai", meta2, "hello")
		assert.NotEqual(t, k1, k2)
	})

	t.Run("术语表顺序不影响键", func(t *testing.T) {
		m1 := meta
		m1.Glossary = map[string]string{"a": "甲", "b": "乙"}
		m2 := meta
		m2.Glossary = map[string]string{"b": "乙", "a": "甲"}
		assert.Equal(t,
			GenerateCacheKey("openai", m1, "hello"),
			GenerateCacheKey("openai", m2, "hello"))
	})
}

func TestCanonicalJSON(t *testing.T) {
	type params struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	s1, err := CanonicalJSON(params{B: 1, A: "x"})
	require.NoError(t, err)
	s2, err := CanonicalJSON(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, s1, s2, "键应按字典序排列")
}

func TestNewCacheFactory(t *testing.T) {
	assert.Nil(t, NewCache(false, ""), "禁用缓存时返回 nil")

	c := NewCache(true, "")
	_, isMem := c.(*MemoryCache)
	assert.True(t, isMem, "无目录时退化为内存缓存")

	c = NewCache(true, t.TempDir())
	_, isFile := c.(*FileCache)
	assert.True(t, isFile)
}
