package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/raw"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	t.Run("注册与查询", func(t *testing.T) {
		require.NoError(t, r.Register(raw.New()))
		p, err := r.Get("raw")
		require.NoError(t, err)
		assert.Equal(t, "raw", p.Name())
	})

	t.Run("重复注册报错", func(t *testing.T) {
		err := r.Register(raw.New())
		assert.Error(t, err)
	})

	t.Run("未知提供商", func(t *testing.T) {
		_, err := r.Get("nonexistent")
		assert.Error(t, err)
	})

	t.Run("列表与移除", func(t *testing.T) {
		assert.Contains(t, r.List(), "raw")
		r.Remove("raw")
		_, err := r.Get("raw")
		assert.Error(t, err)
	})
}

func TestNormalizeLang(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"中文别名", "chinese", "zh"},
		{"简体中文别名", "chinese_simplified", "zh-CN"},
		{"英文别名", "english", "en"},
		{"已规范", "ja", "ja"},
		{"大小写", "EN", "en"},
		{"下划线转连字符", "zh_TW", "zh-TW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLang(tt.input))
		})
	}
}
