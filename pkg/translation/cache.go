package translation

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryCache 内存翻译记忆
type MemoryCache struct {
	data  map[string]cacheEntry
	mutex sync.Mutex
	stats CacheStats
}

// cacheEntry 缓存条目
type cacheEntry struct {
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get 获取缓存
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.data[key]
	if !exists {
		c.stats.Misses++
		return "", false
	}
	c.stats.Hits++
	return entry.Value, true
}

// Set 设置缓存
func (c *MemoryCache) Set(key string, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheEntry{Value: value, Timestamp: time.Now()}
	c.stats.Sets++
	c.stats.Entries = len(c.data)
	return nil
}

// Delete 删除缓存
func (c *MemoryCache) Delete(key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	c.stats.Entries = len(c.data)
	return nil
}

// Clear 清除所有缓存
func (c *MemoryCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]cacheEntry)
	c.stats = CacheStats{}
	return nil
}

// Stats 获取缓存统计信息
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.stats
}

// FileCache 文件翻译记忆，内存做二级缓存
type FileCache struct {
	basePath string
	memory   *MemoryCache
	mutex    sync.Mutex
	stats    CacheStats
}

// NewFileCache 创建文件缓存，目录创建失败时退化为纯内存缓存
func NewFileCache(basePath string) *FileCache {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return &FileCache{
			basePath: "",
			memory:   NewMemoryCache(),
		}
	}

	return &FileCache{
		basePath: basePath,
		memory:   NewMemoryCache(),
	}
}

// generateFileName 根据key生成文件名
func (c *FileCache) generateFileName(key string) string {
	hash := md5.Sum([]byte(key))
	return fmt.Sprintf("%x.cache", hash)
}

// getFilePath 获取缓存文件路径
func (c *FileCache) getFilePath(key string) string {
	if c.basePath == "" {
		return ""
	}
	return filepath.Join(c.basePath, c.generateFileName(key))
}

// Get 获取缓存
func (c *FileCache) Get(key string) (string, bool) {
	// 先检查内存缓存
	if value, ok := c.memory.Get(key); ok {
		c.addHit()
		return value, true
	}

	if c.basePath == "" {
		c.addMiss()
		return "", false
	}

	data, err := os.ReadFile(c.getFilePath(key))
	if err != nil {
		c.addMiss()
		return "", false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.addMiss()
		return "", false
	}

	// 回填内存缓存
	_ = c.memory.Set(key, entry.Value)
	c.addHit()
	return entry.Value, true
}

// Set 设置缓存
func (c *FileCache) Set(key string, value string) error {
	if err := c.memory.Set(key, value); err != nil {
		return err
	}

	if c.basePath == "" {
		return nil
	}

	entry := cacheEntry{Value: value, Timestamp: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return WrapError(err, ErrCodeCache, "marshal cache entry")
	}

	if err := os.WriteFile(c.getFilePath(key), data, 0o644); err != nil {
		return WrapError(err, ErrCodeCache, "write cache file")
	}

	c.mutex.Lock()
	c.stats.Sets++
	c.stats.Entries++
	c.mutex.Unlock()
	return nil
}

// Delete 删除缓存
func (c *FileCache) Delete(key string) error {
	_ = c.memory.Delete(key)

	if c.basePath == "" {
		return nil
	}

	if err := os.Remove(c.getFilePath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear 清除所有缓存
func (c *FileCache) Clear() error {
	_ = c.memory.Clear()

	if c.basePath == "" {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.basePath, "*.cache"))
	if err != nil {
		return err
	}
	for _, file := range files {
		os.Remove(file)
	}

	c.mutex.Lock()
	c.stats = CacheStats{}
	c.mutex.Unlock()
	return nil
}

// Stats 获取缓存统计信息
func (c *FileCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.stats
}

func (c *FileCache) addHit() {
	c.mutex.Lock()
	c.stats.Hits++
	c.mutex.Unlock()
}

func (c *FileCache) addMiss() {
	c.mutex.Lock()
	c.stats.Misses++
	c.mutex.Unlock()
}

// CanonicalJSON 深度按键排序的确定性序列化，map 插入顺序不影响结果
func CanonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	// 反序列化再序列化一次，encoding/json 对 map 键做字典序输出
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// GenerateCacheKey 生成翻译记忆键：提供者名 + 规范化参数 + 文本哈希
func GenerateCacheKey(provider string, meta TranslateMeta, text string) string {
	params, err := CanonicalJSON(meta)
	if err != nil {
		params = fmt.Sprintf("%s->%s", meta.SourceLang, meta.TargetLang)
	}
	textHash := sha256.Sum256([]byte(text))
	keyData := fmt.Sprintf("provider:%s|params:%s|text:%x", provider, params, textHash)
	hash := md5.Sum([]byte(keyData))
	return fmt.Sprintf("%x", hash)
}

// NewCache 根据配置创建缓存实例
func NewCache(useCache bool, cacheDir string) Cache {
	if !useCache {
		return nil
	}
	if cacheDir != "" {
		return NewFileCache(cacheDir)
	}
	return NewMemoryCache()
}
