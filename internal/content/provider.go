// Package content 提供生成牌堆所需的记忆文本池。
// 文本可以来自外部HTTP服务，也可以退回到内置池；
// 外层用带TTL的缓存装饰，避免每局开始都拉一次。
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/logger"
	"go.uber.org/zap"
)

// Provider 记忆文本池提供者
type Provider interface {
	// GetPool 获取文本池，返回的切片调用方不得修改
	GetPool(ctx context.Context) ([]string, error)
}

// NewProvider 根据配置组装文本池提供者
// 配置了外部地址则用HTTP拉取并回退到内置池，否则直接用内置池
func NewProvider(cfg *config.PoolConfig) Provider {
	var base Provider = NewBuiltinProvider()
	if cfg.URL != "" {
		base = &fallbackProvider{
			primary:  NewHTTPProvider(cfg.URL, cfg.Timeout),
			fallback: base,
		}
	}
	if cfg.CacheTTL > 0 {
		base = NewCached(base, cfg.CacheTTL)
	}
	return base
}

// HTTPProvider 从外部服务拉取文本池
// 响应体为JSON字符串数组
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider 创建HTTP文本池提供者
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// GetPool 拉取文本池
func (p *HTTPProvider) GetPool(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPoolFetchFailed)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPoolFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(
			fmt.Errorf("状态码%d", resp.StatusCode),
			errors.ErrPoolFetchFailed,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPoolFetchFailed)
	}

	var pool []string
	if err := json.Unmarshal(body, &pool); err != nil {
		return nil, errors.Wrap(err, errors.ErrPoolFetchFailed)
	}
	return pool, nil
}

// fallbackProvider 主源失败时退回备用源
type fallbackProvider struct {
	primary  Provider
	fallback Provider
}

// GetPool 获取文本池
func (p *fallbackProvider) GetPool(ctx context.Context) ([]string, error) {
	pool, err := p.primary.GetPool(ctx)
	if err == nil {
		return pool, nil
	}
	logger.Warn("外部文本池拉取失败，使用内置池", zap.Error(err))
	return p.fallback.GetPool(ctx)
}

// Cached 带TTL的文本池缓存
type Cached struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	pool      []string
	fetchedAt time.Time
}

// NewCached 创建缓存装饰器
func NewCached(inner Provider, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
	}
}

// GetPool 获取文本池，缓存未过期时直接返回
func (c *Cached) GetPool(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if c.pool != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		pool := c.pool
		c.mu.RUnlock()
		return pool, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// 等锁期间可能已有其他协程刷新过
	if c.pool != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.pool, nil
	}

	pool, err := c.inner.GetPool(ctx)
	if err != nil {
		// 拉取失败时宁可用过期缓存也不让开局失败
		if c.pool != nil {
			logger.Warn("刷新文本池失败，沿用过期缓存", zap.Error(err))
			return c.pool, nil
		}
		return nil, err
	}

	c.pool = pool
	c.fetchedAt = c.now()
	return pool, nil
}
