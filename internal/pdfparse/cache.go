package pdfparse

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// parseCache 解析结果的文件缓存，键为文件内容哈希加配置指纹。
// 所有操作尽力而为，缓存故障只降级不报错。
type parseCache struct {
	dir    string
	logger *zap.Logger
}

func newParseCache(dir string, logger *zap.Logger) *parseCache {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if logger != nil {
			logger.Warn("parse cache disabled", zap.String("dir", dir), zap.Error(err))
		}
		return nil
	}
	return &parseCache{dir: dir, logger: logger}
}

// key 文件内容和解析配置共同决定缓存键，配置变更自动失效
func (c *parseCache) key(path string, cfg Config) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	cfgJSON, err := translation.CanonicalJSON(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(data, []byte(cfgJSON)...))
	return fmt.Sprintf("%x", sum), nil
}

func (c *parseCache) load(key string) (*document.Document, bool) {
	data, err := os.ReadFile(filepath.Join(c.dir, key+".json"))
	if err != nil {
		return nil, false
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Warn("invalid parse cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &doc, true
}

func (c *parseCache) store(key string, doc *document.Document) {
	data, err := json.Marshal(doc)
	if err != nil {
		c.logger.Warn("marshal parse cache entry", zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, key+".json"), data, 0o644); err != nil {
		c.logger.Warn("write parse cache entry", zap.String("key", key), zap.Error(err))
	}
}
